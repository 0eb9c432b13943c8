package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nao1215/feedhub/internal/config"
	"github.com/nao1215/feedhub/internal/database"
	"github.com/nao1215/feedhub/pkg/event"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig() config.Config {
	return config.Config{
		Port:                  "0",
		JWTSecret:             "test-secret",
		FrontendURL:           "http://localhost:3000",
		PushTimeout:           time.Second,
		SessionBufferSize:     8,
		PingInterval:          time.Second,
		PongWait:              10 * time.Second,
		WriteWait:             time.Second,
		NotificationListLimit: 20,
		DevTokenEnabled:       true,
		ShutdownTimeout:       2 * time.Second,
	}
}

// setupTestServer はインメモリSQLiteでサーバーを構築し、httptestで公開する。
func setupTestServer(t *testing.T, cfg config.Config) (*Server, *httptest.Server) {
	t.Helper()

	db, err := database.OpenInMemory(t.Context(), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s := NewServer(cfg, db, zerolog.Nop())
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

// call はJSONリクエストを送信し、ステータスコードとデコード済みボディを返す。
func call(t *testing.T, ts *httptest.Server, method, path, token string, body any) (int, map[string]any) {
	t.Helper()

	var reqBody bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&reqBody).Encode(body))
	}
	req, err := http.NewRequestWithContext(t.Context(), method, ts.URL+path, &reqBody)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func devToken(t *testing.T, ts *httptest.Server, userID int64) string {
	t.Helper()

	status, body := call(t, ts, http.MethodPost, "/auth/dev-token", "", gin.H{"user_id": userID})
	require.Equal(t, http.StatusOK, status)
	tok, ok := body["token"].(string)
	require.True(t, ok)
	return tok
}

// TestServer_HealthCheck はヘルスチェックエンドポイントを検証する。
func TestServer_HealthCheck(t *testing.T) {
	t.Parallel()

	_, ts := setupTestServer(t, testConfig())
	status, body := call(t, ts, http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "feedhub", body["service"])
}

// TestServer_Auth は認証まわりのルーティングを検証する。
func TestServer_Auth(t *testing.T) {
	t.Parallel()

	t.Run("トークンなしのAPI呼び出しは401を返すこと", func(t *testing.T) {
		t.Parallel()

		_, ts := setupTestServer(t, testConfig())
		status, _ := call(t, ts, http.MethodGet, "/api/v1/notifications", "", nil)
		assert.Equal(t, http.StatusUnauthorized, status)
	})

	t.Run("開発用トークン発行を無効にできること", func(t *testing.T) {
		t.Parallel()

		cfg := testConfig()
		cfg.DevTokenEnabled = false
		_, ts := setupTestServer(t, cfg)

		status, _ := call(t, ts, http.MethodPost, "/auth/dev-token", "", gin.H{"user_id": 1})
		assert.Equal(t, http.StatusNotFound, status)
	})

	t.Run("ユーザーIDの無い開発用トークン発行は400を返すこと", func(t *testing.T) {
		t.Parallel()

		_, ts := setupTestServer(t, testConfig())
		status, _ := call(t, ts, http.MethodPost, "/auth/dev-token", "", gin.H{})
		assert.Equal(t, http.StatusBadRequest, status)
	})
}

// TestServer_RealtimeNotification はコメントからWebSocketへのプッシュ、通知の既読化までを通しで検証する。
func TestServer_RealtimeNotification(t *testing.T) {
	t.Parallel()

	s, ts := setupTestServer(t, testConfig())
	tokenA := devToken(t, ts, 1)
	tokenB := devToken(t, ts, 2)

	// BがWebSocketで接続する
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?token=" + tokenB
	ws, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = ws.Close() })
	require.Eventually(t, func() bool {
		return len(s.registry.SessionsFor(2)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	// Bが投稿し、Aがコメントする
	status, post := call(t, ts, http.MethodPost, "/api/v1/posts", tokenB, gin.H{"content": "hello"})
	require.Equal(t, http.StatusCreated, status)
	postID := int64(post["id"].(float64))

	status, _ = call(t, ts, http.MethodPost, "/api/v1/comments", tokenA, gin.H{"post_id": postID, "content": "nice"})
	require.Equal(t, http.StatusCreated, status)

	// Bにシグナルが届く
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := ws.ReadMessage()
	require.NoError(t, err)
	got, err := event.DecodePush(msg)
	require.NoError(t, err)
	assert.Equal(t, event.PushEventNotifications, got.Event)

	// Bの未読通知が1件ある
	status, count := call(t, ts, http.MethodGet, "/api/v1/notifications/unread/count", tokenB, nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, count["count"])

	// Aには通知が無い
	status, count = call(t, ts, http.MethodGet, "/api/v1/notifications/unread/count", tokenA, nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 0, count["count"])

	// 全既読にすると未読が0になる
	status, _ = call(t, ts, http.MethodPut, "/api/v1/notifications/read-all", tokenB, nil)
	require.Equal(t, http.StatusOK, status)
	status, count = call(t, ts, http.MethodGet, "/api/v1/notifications/unread/count", tokenB, nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 0, count["count"])

	// 自分の投稿へのいいねでは通知が増えない
	status, _ = call(t, ts, http.MethodPost, "/api/v1/like/posts/"+strconv.FormatInt(postID, 10), tokenB, nil)
	require.Equal(t, http.StatusCreated, status)
	status, count = call(t, ts, http.MethodGet, "/api/v1/notifications/unread/count", tokenB, nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 0, count["count"])
}

// TestServer_Run はRunがctxの終了でグレースフルに停止することを検証する。
func TestServer_Run(t *testing.T) {
	t.Parallel()

	db, err := database.OpenInMemory(t.Context(), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s := NewServer(testConfig(), db, zerolog.Nop())
	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Runが停止しませんでした")
	}
}
