package realtime

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/nao1215/feedhub/internal/session"
	"github.com/nao1215/feedhub/pkg/logging"
	"github.com/nao1215/feedhub/pkg/middleware"
)

// Options は接続ごとの送受信設定。
type Options struct {
	// BufferSize は送信バッファのメッセージ数。
	BufferSize int
	// PingInterval はpingの送信間隔。
	PingInterval time.Duration
	// PongWait はpong応答を待つ上限時間。PingIntervalより長くすること。
	PongWait time.Duration
	// WriteWait は1回の書き込みの上限時間。
	WriteWait time.Duration
}

// SessionRegistry はゲートウェイが使うレジストリ操作。session.Registryが実装する。
type SessionRegistry interface {
	Register(s *session.Session)
	Remove(sessionID string)
	Drain() []*session.Session
}

// Gateway はWebSocket接続を受け付け、セッションの登録と除去を管理する。
type Gateway struct {
	// upgrader はHTTP接続をWebSocketへ切り替える。
	upgrader websocket.Upgrader
	// registry は接続中のセッションの登録先。
	registry SessionRegistry
	// jwtSecret はハンドシェイク時のトークン検証に使う秘密鍵。
	jwtSecret string
	// opts は接続ごとの設定。
	opts Options
	// logger はゲートウェイのロガー。
	logger zerolog.Logger
	// mu はclosedとactive.Addを保護する。
	mu sync.Mutex
	// closed はShutdown開始後にtrueになり、以降の接続は登録しない。
	closed bool
	// active は処理中の接続数を数える。
	active sync.WaitGroup
}

// NewGateway はゲートウェイを生成する。
// allowedOriginsに含まれないOriginからのブラウザ接続は拒否する。Originを送らないクライアントは許可する。
func NewGateway(registry SessionRegistry, jwtSecret string, allowedOrigins []string, opts Options, logger zerolog.Logger) *Gateway {
	return &Gateway{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || lo.Contains(allowedOrigins, origin)
			},
		},
		registry:  registry,
		jwtSecret: jwtSecret,
		opts:      opts,
		logger:    logging.Component(logger, "realtime"),
	}
}

// Handler はWebSocketのハンドシェイクを処理するハンドラを返す。
// トークンはAuthorizationヘッダー、またはtokenクエリパラメータで受け取る。
func (g *Gateway) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := middleware.TokenFromRequest(c.Request)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		claims, err := middleware.ParseJWT(g.jwtSecret, tokenString)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		ws, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgraderがエラーレスポンスを書き込み済み
			g.logger.Warn().Err(err).Int64("user_id", claims.UserID).Msg("WebSocketへの切り替えに失敗")
			return
		}

		g.serve(ws, claims.UserID)
	}
}

// admit はShutdown前であればセッションを登録してtrueを返す。
// 判定と登録を同じロックの中で行い、Drain後に登録が残らないようにする。
func (g *Gateway) admit(s *session.Session) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return false
	}
	g.active.Add(1)
	g.registry.Register(s)
	return true
}

// serve は接続を登録し、切断されるまで読み込みを続ける。
func (g *Gateway) serve(ws *websocket.Conn, userID int64) {
	sessionID := uuid.NewString()
	log := g.logger.With().Str("session_id", sessionID).Int64("user_id", userID).Logger()

	cn := newConn(ws, g.opts, func() { g.registry.Remove(sessionID) }, log)
	if !g.admit(&session.Session{ID: sessionID, UserID: userID, Transport: cn}) {
		log.Info().Msg("停止処理中のため接続を閉じます")
		cn.shutdown()
		return
	}
	defer g.active.Done()
	log.Info().Msg("セッションが接続しました")

	go cn.writeLoop()
	cn.readLoop()
	cn.shutdown()

	log.Info().Msg("セッションが切断しました")
}

// Shutdown は全セッションをレジストリから取り除いて閉じ、接続処理の終了をctxの期限まで待つ。
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	g.closed = true
	sessions := g.registry.Drain()
	g.mu.Unlock()

	for _, s := range sessions {
		if err := s.Transport.Close(); err != nil {
			g.logger.Warn().Err(err).Str("session_id", s.ID).Msg("セッションのクローズに失敗")
		}
	}
	g.logger.Info().Int("sessions", len(sessions)).Msg("全セッションを閉じました")

	done := make(chan struct{})
	go func() {
		g.active.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
