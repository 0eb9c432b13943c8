package notification

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nao1215/feedhub/pkg/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// setupTestHandler はインメモリSQLiteで通知APIのルーターを構築する。
// JWTミドルウェアの代わりにX-User-IDヘッダーからユーザーIDを設定する。
func setupTestHandler(t *testing.T) (*SQLStore, *gin.Engine) {
	t.Helper()

	store := newTestStore(t)
	router := gin.New()
	api := router.Group("/api/v1")
	api.Use(func(c *gin.Context) {
		if id, err := strconv.ParseInt(c.GetHeader("X-User-ID"), 10, 64); err == nil {
			middleware.SetUserID(c, id)
		}
		c.Next()
	})
	NewHandler(store, 20, zerolog.Nop()).Register(api)
	return store, router
}

// doRequest はテスト用のHTTPリクエストを実行する。
func doRequest(router *gin.Engine, method, path string, userID int64) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if userID != 0 {
		req.Header.Set("X-User-ID", strconv.FormatInt(userID, 10))
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), "body=%s", w.Body.String())
	return v
}

// TestHandler_List は通知一覧取得を検証する。
func TestHandler_List(t *testing.T) {
	t.Parallel()

	t.Run("自分宛ての通知だけを返すこと", func(t *testing.T) {
		t.Parallel()

		store, router := setupTestHandler(t)
		_, err := store.Create(t.Context(), commentRecord(10, 2, 1))
		require.NoError(t, err)
		_, err = store.Create(t.Context(), commentRecord(20, 3, 1))
		require.NoError(t, err)

		w := doRequest(router, http.MethodGet, "/api/v1/notifications", 2)
		require.Equal(t, http.StatusOK, w.Code)

		got := decode[[]notificationResponse](t, w)
		require.Len(t, got, 1)
		assert.Equal(t, "comment", got[0].Kind)
		assert.Equal(t, "replied to your post", got[0].Content)
		assert.Equal(t, int64(10), got[0].PostID)
		assert.Equal(t, int64(1), got[0].ActorID)
		assert.False(t, got[0].IsRead)
	})

	t.Run("通知が無い場合は空配列を返すこと", func(t *testing.T) {
		t.Parallel()

		_, router := setupTestHandler(t)
		w := doRequest(router, http.MethodGet, "/api/v1/notifications", 2)

		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, "[]", w.Body.String())
	})

	t.Run("limitで件数を絞れること", func(t *testing.T) {
		t.Parallel()

		store, router := setupTestHandler(t)
		for range 5 {
			_, err := store.Create(t.Context(), commentRecord(10, 2, 1))
			require.NoError(t, err)
		}

		w := doRequest(router, http.MethodGet, "/api/v1/notifications?limit=2", 2)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, decode[[]notificationResponse](t, w), 2)
	})

	t.Run("不正なlimitは400を返すこと", func(t *testing.T) {
		t.Parallel()

		_, router := setupTestHandler(t)
		for _, q := range []string{"0", "-1", "abc"} {
			w := doRequest(router, http.MethodGet, "/api/v1/notifications?limit="+q, 2)
			assert.Equal(t, http.StatusBadRequest, w.Code, "limit=%s", q)
		}
	})

	t.Run("ユーザーIDが無い場合は401を返すこと", func(t *testing.T) {
		t.Parallel()

		_, router := setupTestHandler(t)
		w := doRequest(router, http.MethodGet, "/api/v1/notifications", 0)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

// TestHandler_Unread は未読通知の一覧と件数を検証する。
func TestHandler_Unread(t *testing.T) {
	t.Parallel()

	store, router := setupTestHandler(t)
	first, err := store.Create(t.Context(), commentRecord(10, 2, 1))
	require.NoError(t, err)
	_, err = store.Create(t.Context(), commentRecord(11, 2, 3))
	require.NoError(t, err)
	require.NoError(t, store.MarkRead(t.Context(), first.ID))

	w := doRequest(router, http.MethodGet, "/api/v1/notifications/unread", 2)
	require.Equal(t, http.StatusOK, w.Code)
	unread := decode[[]notificationResponse](t, w)
	require.Len(t, unread, 1)
	assert.Equal(t, int64(11), unread[0].PostID)

	w = doRequest(router, http.MethodGet, "/api/v1/notifications/unread/count", 2)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"count":1}`, w.Body.String())
}

// TestHandler_MarkAsRead は通知の既読化を検証する。
func TestHandler_MarkAsRead(t *testing.T) {
	t.Parallel()

	t.Run("自分宛ての通知を既読にできること", func(t *testing.T) {
		t.Parallel()

		store, router := setupTestHandler(t)
		rec, err := store.Create(t.Context(), commentRecord(10, 2, 1))
		require.NoError(t, err)

		w := doRequest(router, http.MethodPut, "/api/v1/notifications/"+strconv.FormatInt(rec.ID, 10)+"/read", 2)
		require.Equal(t, http.StatusOK, w.Code)

		got, err := store.Get(t.Context(), rec.ID)
		require.NoError(t, err)
		assert.True(t, got.Read)
	})

	t.Run("他人の通知は403を返し既読にならないこと", func(t *testing.T) {
		t.Parallel()

		store, router := setupTestHandler(t)
		rec, err := store.Create(t.Context(), commentRecord(10, 2, 1))
		require.NoError(t, err)

		w := doRequest(router, http.MethodPut, "/api/v1/notifications/"+strconv.FormatInt(rec.ID, 10)+"/read", 3)
		require.Equal(t, http.StatusForbidden, w.Code)

		got, err := store.Get(t.Context(), rec.ID)
		require.NoError(t, err)
		assert.False(t, got.Read)
	})

	t.Run("存在しない通知は何もせず200を返すこと", func(t *testing.T) {
		t.Parallel()

		_, router := setupTestHandler(t)
		w := doRequest(router, http.MethodPut, "/api/v1/notifications/999/read", 2)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("数値でないIDは400を返すこと", func(t *testing.T) {
		t.Parallel()

		_, router := setupTestHandler(t)
		w := doRequest(router, http.MethodPut, "/api/v1/notifications/abc/read", 2)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

// TestHandler_MarkAllAsRead は全通知の既読化を検証する。
func TestHandler_MarkAllAsRead(t *testing.T) {
	t.Parallel()

	store, router := setupTestHandler(t)
	for range 3 {
		_, err := store.Create(t.Context(), commentRecord(10, 2, 1))
		require.NoError(t, err)
	}

	w := doRequest(router, http.MethodPut, "/api/v1/notifications/read-all", 2)
	require.Equal(t, http.StatusOK, w.Code)

	n, err := store.CountUnread(t.Context(), 2)
	require.NoError(t, err)
	assert.Zero(t, n)
}
