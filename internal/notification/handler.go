package notification

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/nao1215/feedhub/pkg/logging"
	"github.com/nao1215/feedhub/pkg/middleware"
)

// maxListLimit は一覧取得で指定できる件数の上限。
const maxListLimit = 100

// Handler は通知の一覧取得と既読化のHTTPハンドラ。
type Handler struct {
	// store は通知の読み書きに使うストア。
	store Store
	// defaultLimit はlimit未指定時の取得件数。
	defaultLimit int
	// logger はハンドラのロガー。
	logger zerolog.Logger
}

// NewHandler は通知APIのハンドラを生成する。
func NewHandler(store Store, defaultLimit int, logger zerolog.Logger) *Handler {
	return &Handler{
		store:        store,
		defaultLimit: min(max(defaultLimit, 1), maxListLimit),
		logger:       logging.Component(logger, "notification-api"),
	}
}

// Register は認証済みのルーターグループに通知APIを登録する。
func (h *Handler) Register(api *gin.RouterGroup) {
	notifications := api.Group("/notifications")
	{
		// 通知一覧取得
		notifications.GET("", h.handleList())
		// 未読通知一覧取得
		notifications.GET("/unread", h.handleListUnread())
		// 未読通知数取得
		notifications.GET("/unread/count", h.handleCountUnread())
		// 通知を既読にする
		notifications.PUT("/:id/read", h.handleMarkAsRead())
		// 全通知を既読にする
		notifications.PUT("/read-all", h.handleMarkAllAsRead())
	}
}

// notificationResponse は通知のJSONレスポンス構造。
type notificationResponse struct {
	// ID は通知の一意識別子。
	ID int64 `json:"id"`
	// Kind は通知の種類。
	Kind string `json:"kind"`
	// Content は通知の要約文。
	Content string `json:"content"`
	// PostID は起点となった投稿のID。
	PostID int64 `json:"post_id"`
	// ActorID は操作を行ったユーザーのID。
	ActorID int64 `json:"actor_id"`
	// IsRead は通知の既読状態。
	IsRead bool `json:"is_read"`
	// CreatedAt は通知の作成日時（RFC3339形式）。
	CreatedAt string `json:"created_at"`
}

func toNotificationResponse(r Record, _ int) notificationResponse {
	return notificationResponse{
		ID:        r.ID,
		Kind:      string(r.Kind),
		Content:   r.Content,
		PostID:    r.PostID,
		ActorID:   r.ActorID,
		IsRead:    r.Read,
		CreatedAt: r.CreatedAt.Format(time.RFC3339),
	}
}

// parseLimit はlimitクエリを解釈する。未指定時はデフォルト値、上限はmaxListLimit。
func (h *Handler) parseLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return h.defaultLimit, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, false
	}
	return min(limit, maxListLimit), true
}

// handleList は認証済みユーザーの通知一覧を返すハンドラ。
func (h *Handler) handleList() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := middleware.GetUserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}
		limit, ok := h.parseLimit(c)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limitは正の整数で指定してください"})
			return
		}

		records, err := h.store.ListForRecipient(c.Request.Context(), userID, limit)
		if err != nil {
			h.logger.Error().Err(err).Int64("user_id", userID).Msg("通知一覧取得エラー")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "通知一覧の取得に失敗しました"})
			return
		}

		c.JSON(http.StatusOK, lo.Map(records, toNotificationResponse))
	}
}

// handleListUnread は認証済みユーザーの未読通知一覧を返すハンドラ。
func (h *Handler) handleListUnread() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := middleware.GetUserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}
		limit, ok := h.parseLimit(c)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limitは正の整数で指定してください"})
			return
		}

		records, err := h.store.ListUnreadForRecipient(c.Request.Context(), userID, limit)
		if err != nil {
			h.logger.Error().Err(err).Int64("user_id", userID).Msg("未読通知一覧取得エラー")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "未読通知一覧の取得に失敗しました"})
			return
		}

		c.JSON(http.StatusOK, lo.Map(records, toNotificationResponse))
	}
}

// handleCountUnread は認証済みユーザーの未読通知数を返すハンドラ。
func (h *Handler) handleCountUnread() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := middleware.GetUserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		n, err := h.store.CountUnread(c.Request.Context(), userID)
		if err != nil {
			h.logger.Error().Err(err).Int64("user_id", userID).Msg("未読通知数取得エラー")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "未読通知数の取得に失敗しました"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"count": n})
	}
}

// handleMarkAsRead は指定された通知を既読にするハンドラ。
// 存在しない通知は何もせず成功とする。
func (h *Handler) handleMarkAsRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := middleware.GetUserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "通知IDが不正です"})
			return
		}

		// 通知の存在確認と所有者チェック
		rec, err := h.store.Get(c.Request.Context(), id)
		switch {
		case errors.Is(err, ErrNotFound):
			c.JSON(http.StatusOK, gin.H{"message": "通知を既読にしました"})
			return
		case err != nil:
			h.logger.Error().Err(err).Int64("notification_id", id).Msg("通知取得エラー")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "通知の取得に失敗しました"})
			return
		}

		if rec.RecipientID != userID {
			c.JSON(http.StatusForbidden, gin.H{"error": "この通知を操作する権限がありません"})
			return
		}

		if err := h.store.MarkRead(c.Request.Context(), id); err != nil {
			h.logger.Error().Err(err).Int64("notification_id", id).Msg("通知既読処理エラー")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "通知の既読処理に失敗しました"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "通知を既読にしました"})
	}
}

// handleMarkAllAsRead は認証済みユーザーの全通知を既読にするハンドラ。
func (h *Handler) handleMarkAllAsRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := middleware.GetUserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		if err := h.store.MarkAllRead(c.Request.Context(), userID); err != nil {
			h.logger.Error().Err(err).Int64("user_id", userID).Msg("全通知既読処理エラー")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "全通知の既読処理に失敗しました"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "全通知を既読にしました"})
	}
}
