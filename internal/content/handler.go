package content

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/nao1215/feedhub/pkg/event"
	"github.com/nao1215/feedhub/pkg/logging"
	"github.com/nao1215/feedhub/pkg/middleware"
)

// Store は書き込みハンドラが使う永続化操作。SQLStoreが実装する。
type Store interface {
	CreatePost(ctx context.Context, userID int64, body string) (Post, error)
	DeletePost(ctx context.Context, postID, userID int64) error
	CreateComment(ctx context.Context, postID, userID int64, body string) (Comment, error)
	DeleteComment(ctx context.Context, commentID, userID int64) error
	LikePost(ctx context.Context, postID, userID int64) error
	UnlikePost(ctx context.Context, postID, userID int64) error
	LikeComment(ctx context.Context, commentID, userID int64) (int64, error)
	UnlikeComment(ctx context.Context, commentID, userID int64) error
}

// Notifier はドメインイベントを通知として処理する。notification.Dispatcherが実装する。
type Notifier interface {
	Notify(ctx context.Context, ev event.DomainEvent) (bool, error)
}

// Handler は投稿・コメント・いいねのHTTPハンドラ。
type Handler struct {
	// store は書き込み先のストア。
	store Store
	// notifier は書き込み後に通知を作成する。
	notifier Notifier
	// logger はハンドラのロガー。
	logger zerolog.Logger
}

// NewHandler は書き込みAPIのハンドラを生成する。
func NewHandler(store Store, notifier Notifier, logger zerolog.Logger) *Handler {
	return &Handler{
		store:    store,
		notifier: notifier,
		logger:   logging.Component(logger, "content-api"),
	}
}

// Register は認証済みのルーターグループに書き込みAPIを登録する。
func (h *Handler) Register(api *gin.RouterGroup) {
	// 投稿
	api.POST("/posts", h.handleCreatePost())
	api.DELETE("/posts/:id", h.handleDeletePost())
	// コメント
	api.POST("/comments", h.handleCreateComment())
	api.DELETE("/comments/:id", h.handleDeleteComment())
	// いいね
	api.POST("/like/posts/:id", h.handleLikePost())
	api.DELETE("/unlike/posts/:id", h.handleUnlikePost())
	api.POST("/like/comments/:id", h.handleLikeComment())
	api.DELETE("/unlike/comments/:id", h.handleUnlikeComment())
}

// createPostRequest は投稿作成リクエストのJSON構造。
type createPostRequest struct {
	// Content は投稿本文。
	Content string `json:"content" binding:"required,max=2000"`
}

// createCommentRequest はコメント作成リクエストのJSON構造。
type createCommentRequest struct {
	// PostID はコメント先の投稿ID。
	PostID int64 `json:"post_id" binding:"required,gt=0"`
	// Content はコメント本文。
	Content string `json:"content" binding:"required,max=2000"`
}

// postResponse は投稿のJSONレスポンス構造。
type postResponse struct {
	ID        int64  `json:"id"`
	UserID    int64  `json:"user_id"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

// commentResponse はコメントのJSONレスポンス構造。
// 保存済みのコメントを書き換えず、応答用に投稿者IDを明示して組み立てる。
type commentResponse struct {
	ID        int64  `json:"id"`
	PostID    int64  `json:"post_id"`
	AuthorID  int64  `json:"author_id"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

// likeResponse はいいねのJSONレスポンス構造。
type likeResponse struct {
	PostID    int64 `json:"post_id"`
	CommentID int64 `json:"comment_id,omitempty"`
	UserID    int64 `json:"user_id"`
}

// notify は書き込み成功後に通知を作成する。
// 通知の失敗はログに残すだけで、書き込みの応答には影響させない。
func (h *Handler) notify(ctx context.Context, ev event.DomainEvent) {
	if _, err := h.notifier.Notify(ctx, ev); err != nil {
		h.logger.Error().Err(err).
			Str("kind", string(ev.Kind)).
			Int64("post_id", ev.PostID).
			Int64("actor_id", ev.ActorID).
			Msg("通知の作成に失敗（書き込みは成功扱い）")
	}
}

// idParam はパスパラメータidを正の整数として取り出す。
func idParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// handleCreatePost は投稿を作成するハンドラ。
func (h *Handler) handleCreatePost() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := middleware.GetUserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		var req createPostRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "リクエストが不正です: " + err.Error()})
			return
		}

		p, err := h.store.CreatePost(c.Request.Context(), userID, req.Content)
		if err != nil {
			h.logger.Error().Err(err).Int64("user_id", userID).Msg("投稿作成エラー")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "投稿の作成に失敗しました"})
			return
		}

		c.JSON(http.StatusCreated, postResponse{
			ID:        p.ID,
			UserID:    p.UserID,
			Content:   p.Content,
			CreatedAt: p.CreatedAt.Format(time.RFC3339),
		})
	}
}

// handleDeletePost は自分の投稿を削除するハンドラ。
func (h *Handler) handleDeletePost() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := middleware.GetUserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}
		postID, ok := idParam(c)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "投稿IDが不正です"})
			return
		}

		err := h.store.DeletePost(c.Request.Context(), postID, userID)
		switch {
		case errors.Is(err, ErrPostNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, ErrNotOwner):
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		case err != nil:
			h.logger.Error().Err(err).Int64("post_id", postID).Msg("投稿削除エラー")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "投稿の削除に失敗しました"})
		default:
			c.Status(http.StatusNoContent)
		}
	}
}

// handleCreateComment はコメントを作成し、投稿の所有者へ通知するハンドラ。
func (h *Handler) handleCreateComment() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := middleware.GetUserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		var req createCommentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "リクエストが不正です: " + err.Error()})
			return
		}

		cm, err := h.store.CreateComment(c.Request.Context(), req.PostID, userID, req.Content)
		switch {
		case errors.Is(err, ErrPostNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		case err != nil:
			h.logger.Error().Err(err).Int64("post_id", req.PostID).Msg("コメント作成エラー")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "コメントの作成に失敗しました"})
			return
		}

		h.notify(c.Request.Context(), event.NewComment(cm.PostID, userID))

		c.JSON(http.StatusCreated, commentResponse{
			ID:        cm.ID,
			PostID:    cm.PostID,
			AuthorID:  cm.UserID,
			Content:   cm.Content,
			CreatedAt: cm.CreatedAt.Format(time.RFC3339),
		})
	}
}

// handleDeleteComment は自分のコメントを削除するハンドラ。
func (h *Handler) handleDeleteComment() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := middleware.GetUserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}
		commentID, ok := idParam(c)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "コメントIDが不正です"})
			return
		}

		err := h.store.DeleteComment(c.Request.Context(), commentID, userID)
		switch {
		case errors.Is(err, ErrCommentNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, ErrNotOwner):
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		case err != nil:
			h.logger.Error().Err(err).Int64("comment_id", commentID).Msg("コメント削除エラー")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "コメントの削除に失敗しました"})
		default:
			c.Status(http.StatusNoContent)
		}
	}
}

// handleLikePost は投稿にいいねし、投稿の所有者へ通知するハンドラ。
func (h *Handler) handleLikePost() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := middleware.GetUserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}
		postID, ok := idParam(c)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "投稿IDが不正です"})
			return
		}

		err := h.store.LikePost(c.Request.Context(), postID, userID)
		switch {
		case errors.Is(err, ErrPostNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		case errors.Is(err, ErrAlreadyLiked):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		case err != nil:
			h.logger.Error().Err(err).Int64("post_id", postID).Msg("いいねエラー")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "いいねに失敗しました"})
			return
		}

		h.notify(c.Request.Context(), event.NewLikePost(postID, userID))

		c.JSON(http.StatusCreated, likeResponse{PostID: postID, UserID: userID})
	}
}

// handleUnlikePost は投稿へのいいねを取り消すハンドラ。
func (h *Handler) handleUnlikePost() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := middleware.GetUserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}
		postID, ok := idParam(c)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "投稿IDが不正です"})
			return
		}

		if err := h.store.UnlikePost(c.Request.Context(), postID, userID); err != nil {
			h.logger.Error().Err(err).Int64("post_id", postID).Msg("いいね取り消しエラー")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "いいねの取り消しに失敗しました"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "いいねを取り消しました"})
	}
}

// handleLikeComment はコメントにいいねし、コメントが属する投稿の所有者へ通知するハンドラ。
func (h *Handler) handleLikeComment() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := middleware.GetUserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}
		commentID, ok := idParam(c)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "コメントIDが不正です"})
			return
		}

		postID, err := h.store.LikeComment(c.Request.Context(), commentID, userID)
		switch {
		case errors.Is(err, ErrCommentNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		case errors.Is(err, ErrAlreadyLiked):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		case err != nil:
			h.logger.Error().Err(err).Int64("comment_id", commentID).Msg("いいねエラー")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "いいねに失敗しました"})
			return
		}

		h.notify(c.Request.Context(), event.NewLikeComment(postID, userID))

		c.JSON(http.StatusCreated, likeResponse{PostID: postID, CommentID: commentID, UserID: userID})
	}
}

// handleUnlikeComment はコメントへのいいねを取り消すハンドラ。
func (h *Handler) handleUnlikeComment() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := middleware.GetUserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}
		commentID, ok := idParam(c)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "コメントIDが不正です"})
			return
		}

		if err := h.store.UnlikeComment(c.Request.Context(), commentID, userID); err != nil {
			h.logger.Error().Err(err).Int64("comment_id", commentID).Msg("いいね取り消しエラー")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "いいねの取り消しに失敗しました"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "いいねを取り消しました"})
	}
}
