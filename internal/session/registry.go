package session

import (
	"context"
	"sync"

	"github.com/samber/lo"
)

// Transport はセッションへの一方向の送信手段。
// Sendはctxの期限を超えてブロックしてはならない。
type Transport interface {
	Send(ctx context.Context, payload []byte) error
	Close() error
}

// Session は認証済みユーザーの1本のリアルタイム接続。
type Session struct {
	// ID は接続ごとに一意な識別子。
	ID string
	// UserID は接続の所有者。1ユーザーが複数のセッションを持てる。
	UserID int64
	// Transport はこの接続への送信手段。
	Transport Transport
}

// Registry は接続中のセッションをユーザーIDで索引付けして保持する。
// ゼロ値は使用できないため、NewRegistryで生成すること。
type Registry struct {
	mu     sync.RWMutex
	byID   map[string]*Session
	byUser map[int64]map[string]*Session
}

// NewRegistry は空のレジストリを生成する。
func NewRegistry() *Registry {
	return &Registry{
		byID:   make(map[string]*Session),
		byUser: make(map[int64]map[string]*Session),
	}
}

// Register はセッションを登録し、以降の参照から見えるようにする。
// 同じIDで再登録した場合は既存の対応を置き換える。
func (r *Registry) Register(s *Session) {
	if s == nil || s.ID == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.removeLocked(s.ID)
	r.byID[s.ID] = s
	set, ok := r.byUser[s.UserID]
	if !ok {
		set = make(map[string]*Session)
		r.byUser[s.UserID] = set
	}
	set[s.ID] = s
}

// Remove はセッションを無条件に取り除く。存在しない場合は何もしない。
func (r *Registry) Remove(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.removeLocked(sessionID)
}

// removeLocked はr.muを保持した状態で呼び出すこと。
func (r *Registry) removeLocked(sessionID string) {
	s, ok := r.byID[sessionID]
	if !ok {
		return
	}
	delete(r.byID, sessionID)

	set := r.byUser[s.UserID]
	delete(set, sessionID)
	// 空になったユーザー索引は残さない
	if len(set) == 0 {
		delete(r.byUser, s.UserID)
	}
}

// SessionsFor は呼び出し時点でそのユーザーが持つセッションのスナップショットを返す。
// 返されたスライスは呼び出し側が自由に扱ってよい。
func (r *Registry) SessionsFor(userID int64) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, ok := r.byUser[userID]
	if !ok {
		return nil
	}
	return lo.Values(set)
}

// Len は登録中のセッション数を返す。
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.byID)
}

// Drain はすべてのセッションを取り除き、取り除いたセッションを返す。
// シャットダウン時に各接続を閉じるために使用する。
func (r *Registry) Drain() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	drained := lo.Values(r.byID)
	r.byID = make(map[string]*Session)
	r.byUser = make(map[int64]map[string]*Session)
	return drained
}
