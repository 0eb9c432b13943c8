package notification_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/nao1215/feedhub/internal/database"
	"github.com/nao1215/feedhub/internal/mocks"
	"github.com/nao1215/feedhub/internal/notification"
	"github.com/nao1215/feedhub/internal/push"
	"github.com/nao1215/feedhub/internal/session"
	"github.com/nao1215/feedhub/pkg/event"
)

// fakeOwners は投稿IDと所有者の対応を保持するOwnerLookup。
type fakeOwners struct {
	mu     sync.Mutex
	owners map[int64]int64
	err    error
}

func newFakeOwners(owners map[int64]int64) *fakeOwners {
	return &fakeOwners{owners: owners}
}

func (f *fakeOwners) PostOwner(_ context.Context, postID int64) (int64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, false, f.err
	}
	owner, ok := f.owners[postID]
	return owner, ok, nil
}

func (f *fakeOwners) delete(postID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.owners, postID)
}

type nopTransport struct{}

func (nopTransport) Send(context.Context, []byte) error { return nil }
func (nopTransport) Close() error                       { return nil }

func connect(r *session.Registry, userID int64) *session.Session {
	s := &session.Session{ID: uuid.NewString(), UserID: userID, Transport: nopTransport{}}
	r.Register(s)
	return s
}

// TestDispatcher_Notify はDispatcher.Notifyの振り分けを検証する。
func TestDispatcher_Notify(t *testing.T) {
	t.Parallel()

	const (
		userA int64 = 1
		userB int64 = 2
	)

	t.Run("他人の投稿へのコメントで通知が1件作成され接続中のセッションへプッシュされること", func(t *testing.T) {
		t.Parallel()

		ctrl := gomock.NewController(t)
		store := mocks.NewMockStore(ctrl)
		bus := mocks.NewMockBus(ctrl)
		registry := session.NewRegistry()
		sessionB := connect(registry, userB)
		connect(registry, userA)

		store.EXPECT().
			Create(gomock.Any(), notification.Record{
				Kind:        event.KindComment,
				Content:     "replied to your post",
				PostID:      10,
				RecipientID: userB,
				ActorID:     userA,
			}).
			Return(notification.Record{ID: 1, Kind: event.KindComment, PostID: 10, RecipientID: userB, ActorID: userA}, nil).
			Times(1)
		bus.EXPECT().Push(sessionB, event.PushMessage{Event: "notifications"}).Times(1)

		d := notification.NewDispatcher(newFakeOwners(map[int64]int64{10: userB}), store, registry, bus, zerolog.Nop())
		created, err := d.Notify(t.Context(), event.NewComment(10, userA))

		require.NoError(t, err)
		assert.True(t, created)
	})

	t.Run("自分の投稿へのコメントでは通知もプッシュも行われないこと", func(t *testing.T) {
		t.Parallel()

		ctrl := gomock.NewController(t)
		store := mocks.NewMockStore(ctrl)
		bus := mocks.NewMockBus(ctrl)
		registry := session.NewRegistry()
		connect(registry, userA)

		store.EXPECT().Create(gomock.Any(), gomock.Any()).Times(0)
		bus.EXPECT().Push(gomock.Any(), gomock.Any()).Times(0)

		d := notification.NewDispatcher(newFakeOwners(map[int64]int64{11: userA}), store, registry, bus, zerolog.Nop())
		created, err := d.Notify(t.Context(), event.NewComment(11, userA))

		require.NoError(t, err)
		assert.False(t, created)
	})

	t.Run("複数端末で接続中の場合はすべてのセッションへ同じシグナルが届くこと", func(t *testing.T) {
		t.Parallel()

		ctrl := gomock.NewController(t)
		store := mocks.NewMockStore(ctrl)
		bus := mocks.NewMockBus(ctrl)
		registry := session.NewRegistry()
		phone := connect(registry, userB)
		laptop := connect(registry, userB)

		store.EXPECT().Create(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, r notification.Record) (notification.Record, error) {
				r.ID = 7
				return r, nil
			}).
			Times(1)
		bus.EXPECT().Push(phone, event.NotificationsChanged()).Times(1)
		bus.EXPECT().Push(laptop, event.NotificationsChanged()).Times(1)

		d := notification.NewDispatcher(newFakeOwners(map[int64]int64{12: userB}), store, registry, bus, zerolog.Nop())
		created, err := d.Notify(t.Context(), event.NewLikePost(12, userA))

		require.NoError(t, err)
		assert.True(t, created)
	})

	t.Run("通知先が未接続でも通知は作成されプッシュは行われないこと", func(t *testing.T) {
		t.Parallel()

		ctrl := gomock.NewController(t)
		store := mocks.NewMockStore(ctrl)
		bus := mocks.NewMockBus(ctrl)

		store.EXPECT().Create(gomock.Any(), gomock.Any()).Return(notification.Record{ID: 1}, nil).Times(1)
		bus.EXPECT().Push(gomock.Any(), gomock.Any()).Times(0)

		d := notification.NewDispatcher(newFakeOwners(map[int64]int64{10: userB}), store, session.NewRegistry(), bus, zerolog.Nop())
		created, err := d.Notify(t.Context(), event.NewLikeComment(10, userA))

		require.NoError(t, err)
		assert.True(t, created)
	})

	t.Run("投稿が削除済みの場合はエラーにならず何もしないこと", func(t *testing.T) {
		t.Parallel()

		ctrl := gomock.NewController(t)
		store := mocks.NewMockStore(ctrl)
		bus := mocks.NewMockBus(ctrl)
		registry := session.NewRegistry()
		connect(registry, userB)

		store.EXPECT().Create(gomock.Any(), gomock.Any()).Times(0)
		bus.EXPECT().Push(gomock.Any(), gomock.Any()).Times(0)

		owners := newFakeOwners(map[int64]int64{10: userB})
		owners.delete(10)

		d := notification.NewDispatcher(owners, store, registry, bus, zerolog.Nop())
		created, err := d.Notify(t.Context(), event.NewComment(10, userA))

		require.NoError(t, err)
		assert.False(t, created)
	})

	t.Run("通知の保存に失敗した場合はエラーを返しプッシュしないこと", func(t *testing.T) {
		t.Parallel()

		ctrl := gomock.NewController(t)
		store := mocks.NewMockStore(ctrl)
		bus := mocks.NewMockBus(ctrl)
		registry := session.NewRegistry()
		connect(registry, userB)

		storageErr := errors.Join(notification.ErrStorage, errors.New("database is locked"))
		store.EXPECT().Create(gomock.Any(), gomock.Any()).Return(notification.Record{}, storageErr).Times(1)
		bus.EXPECT().Push(gomock.Any(), gomock.Any()).Times(0)

		d := notification.NewDispatcher(newFakeOwners(map[int64]int64{10: userB}), store, registry, bus, zerolog.Nop())
		created, err := d.Notify(t.Context(), event.NewComment(10, userA))

		require.Error(t, err)
		assert.ErrorIs(t, err, notification.ErrStorage)
		assert.False(t, created)
	})

	t.Run("所有者の解決に失敗した場合はErrStorageを返すこと", func(t *testing.T) {
		t.Parallel()

		ctrl := gomock.NewController(t)
		store := mocks.NewMockStore(ctrl)
		bus := mocks.NewMockBus(ctrl)
		store.EXPECT().Create(gomock.Any(), gomock.Any()).Times(0)
		bus.EXPECT().Push(gomock.Any(), gomock.Any()).Times(0)

		owners := newFakeOwners(nil)
		owners.err = errors.New("disk I/O error")

		d := notification.NewDispatcher(owners, store, session.NewRegistry(), bus, zerolog.Nop())
		created, err := d.Notify(t.Context(), event.NewComment(10, userA))

		assert.ErrorIs(t, err, notification.ErrStorage)
		assert.False(t, created)
	})

	t.Run("未知のイベント種別は検索前に拒否されること", func(t *testing.T) {
		t.Parallel()

		ctrl := gomock.NewController(t)
		store := mocks.NewMockStore(ctrl)
		bus := mocks.NewMockBus(ctrl)
		owners := newFakeOwners(nil)
		owners.err = errors.New("must not be called")

		d := notification.NewDispatcher(owners, store, session.NewRegistry(), bus, zerolog.Nop())
		created, err := d.Notify(t.Context(), event.DomainEvent{Kind: "share", PostID: 10, ActorID: userA})

		assert.ErrorIs(t, err, event.ErrUnknownKind)
		assert.False(t, created)
	})
}

// TestDispatcher_Notify_SQLStore は実際のストアを使い、通知レコードが正確に1件作成されることを検証する。
func TestDispatcher_Notify_SQLStore(t *testing.T) {
	t.Parallel()

	db, err := database.OpenInMemory(t.Context(), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store := notification.NewSQLStore(db)
	owners := newFakeOwners(map[int64]int64{10: 2, 11: 1})
	d := notification.NewDispatcher(owners, store, session.NewRegistry(), push.NopBus{}, zerolog.Nop())

	created, err := d.Notify(t.Context(), event.NewComment(10, 1))
	require.NoError(t, err)
	require.True(t, created)

	created, err = d.Notify(t.Context(), event.NewComment(11, 1))
	require.NoError(t, err)
	require.False(t, created)

	got, err := store.ListForRecipient(t.Context(), 2, 20)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, event.KindComment, got[0].Kind)
	assert.Equal(t, int64(10), got[0].PostID)
	assert.Equal(t, int64(2), got[0].RecipientID)
	assert.Equal(t, int64(1), got[0].ActorID)
	assert.False(t, got[0].Read)

	self, err := store.ListForRecipient(t.Context(), 1, 20)
	require.NoError(t, err)
	assert.Empty(t, self)
}
