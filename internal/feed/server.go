package feed

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/nao1215/feedhub/internal/config"
	"github.com/nao1215/feedhub/internal/content"
	"github.com/nao1215/feedhub/internal/notification"
	"github.com/nao1215/feedhub/internal/push"
	"github.com/nao1215/feedhub/internal/realtime"
	"github.com/nao1215/feedhub/internal/session"
	"github.com/nao1215/feedhub/pkg/logging"
	"github.com/nao1215/feedhub/pkg/middleware"
)

// Server はfeedhubサービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// cfg はサービスの設定。
	cfg config.Config
	// registry は接続中のセッション。
	registry *session.Registry
	// gateway はWebSocket接続の受付。
	gateway *realtime.Gateway
	// logger はサーバーのロガー。
	logger zerolog.Logger
}

// NewServer はデータベース接続を受け取り、全コンポーネントを結線したサーバーを生成する。
// スキーマはdatabase.Openで適用済みであること。
func NewServer(cfg config.Config, db *sql.DB, logger zerolog.Logger) *Server {
	registry := session.NewRegistry()
	contents := content.NewSQLStore(db)
	notifications := notification.NewSQLStore(db)
	bus := push.NewTransportBus(logger, cfg.PushTimeout)
	dispatcher := notification.NewDispatcher(contents, notifications, registry, bus, logger)

	gw := realtime.NewGateway(registry, cfg.JWTSecret, []string{cfg.FrontendURL}, realtime.Options{
		BufferSize:   cfg.SessionBufferSize,
		PingInterval: cfg.PingInterval,
		PongWait:     cfg.PongWait,
		WriteWait:    cfg.WriteWait,
	}, logger)

	router := gin.New()
	router.Use(middleware.Recovery(logging.Component(logger, "recovery")))
	router.Use(middleware.RequestLogger(logging.Component(logger, "http")))
	router.Use(middleware.CORS([]string{cfg.FrontendURL}))

	s := &Server{
		router:   router,
		cfg:      cfg,
		registry: registry,
		gateway:  gw,
		logger:   logging.Component(logger, "server"),
	}
	s.setupRoutes(
		content.NewHandler(contents, dispatcher, logger),
		notification.NewHandler(notifications, cfg.NotificationListLimit, logger),
	)
	return s
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes(contents *content.Handler, notifications *notification.Handler) {
	if s.cfg.DevTokenEnabled {
		auth := s.router.Group("/auth")
		{
			// 開発用トークン発行
			auth.POST("/dev-token", s.handleDevToken())
		}
	}

	// リアルタイム通知（ハンドシェイク時にトークンを検証する）
	s.router.GET("/ws", s.gateway.Handler())

	// 認証必須のAPIエンドポイント
	api := s.router.Group("/api/v1")
	api.Use(middleware.JWTAuth(s.cfg.JWTSecret))
	{
		contents.Register(api)
		notifications.Register(api)
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "feedhub", "sessions": s.registry.Len()})
	})
}

// devTokenRequest は開発用トークン発行リクエストのJSON構造。
type devTokenRequest struct {
	// UserID はトークンに埋め込むユーザーID。
	UserID int64 `json:"user_id" binding:"required,gt=0"`
}

// handleDevToken は指定したユーザーIDの開発用JWTトークンを発行するハンドラを返す。
// 本番環境ではDEV_TOKEN_ENABLEDで無効化すること。
func (s *Server) handleDevToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req devTokenRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		token, err := middleware.GenerateJWT(s.cfg.JWTSecret, req.UserID)
		if err != nil {
			s.logger.Error().Err(err).Msg("JWT生成エラー")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "トークン生成に失敗しました"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"token":   token,
			"user_id": req.UserID,
		})
	}
}

// Handler はルーターをhttp.Handlerとして返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run はHTTPサーバーを起動し、ctxが終了するとグレースフルシャットダウンする。
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", srv.Addr).Msg("feedhubサービスを起動します")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("HTTPサーバーの起動に失敗: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info().Msg("シャットダウンを開始します")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := srv.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("HTTPサーバーの停止に失敗: %w", err))
	}
	// WebSocket接続はハイジャック済みのためHTTPサーバーの停止では閉じられない
	if err := s.gateway.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("セッションの停止に失敗: %w", err))
	}
	s.logger.Info().Msg("シャットダウンが完了しました")
	return errors.Join(errs...)
}
