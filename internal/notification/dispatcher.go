package notification

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/nao1215/feedhub/internal/push"
	"github.com/nao1215/feedhub/internal/session"
	"github.com/nao1215/feedhub/pkg/event"
	"github.com/nao1215/feedhub/pkg/logging"
)

// OwnerLookup は投稿IDから所有者を引く。
type OwnerLookup interface {
	// PostOwner は投稿の所有者IDを返す。投稿が存在しない場合はfoundがfalseになる。
	PostOwner(ctx context.Context, postID int64) (ownerID int64, found bool, err error)
}

// SessionLookup は接続中のセッションをユーザーIDで引く。
type SessionLookup interface {
	SessionsFor(userID int64) []*session.Session
}

// Dispatcher はドメインイベントから通知を作成し、通知先の接続中セッションへシグナルを送る。
// 呼び出し間で状態を持たず、配信できなかったプッシュを後から再送することもない。
type Dispatcher struct {
	owners   OwnerLookup
	store    Store
	sessions SessionLookup
	bus      push.Bus
	logger   zerolog.Logger
}

// NewDispatcher はDispatcherを生成する。
func NewDispatcher(owners OwnerLookup, store Store, sessions SessionLookup, bus push.Bus, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		owners:   owners,
		store:    store,
		sessions: sessions,
		bus:      bus,
		logger:   logging.Component(logger, "dispatcher"),
	}
}

// Notify はイベントを通知として処理し、通知レコードを作成した場合にtrueを返す。
//
// 投稿が見つからない場合（同時に削除された場合を含む）と、操作者自身が通知先になる場合は
// 何もせずfalseを返す。これらはエラーではない。
// 通知レコードの作成に失敗した場合はErrStorageを包んだエラーを返す。
// プッシュの失敗はBus内で処理され、ここには影響しない。
func (d *Dispatcher) Notify(ctx context.Context, ev event.DomainEvent) (bool, error) {
	if err := ev.Validate(); err != nil {
		return false, err
	}
	log := d.logger.With().Str("kind", string(ev.Kind)).Int64("post_id", ev.PostID).Int64("actor_id", ev.ActorID).Logger()

	recipientID, found, err := d.owners.PostOwner(ctx, ev.PostID)
	if err != nil {
		return false, fmt.Errorf("%w: 投稿の所有者の解決に失敗: %w", ErrStorage, err)
	}
	if !found {
		log.Warn().Msg("投稿が見つからないため通知をスキップします")
		return false, nil
	}
	if recipientID == ev.ActorID {
		log.Debug().Msg("自分自身への通知のためスキップします")
		return false, nil
	}

	rec, err := d.store.Create(ctx, Record{
		Kind:        ev.Kind,
		Content:     ev.Content,
		PostID:      ev.PostID,
		RecipientID: recipientID,
		ActorID:     ev.ActorID,
	})
	if err != nil {
		return false, err
	}

	sessions := d.sessions.SessionsFor(recipientID)
	msg := event.NotificationsChanged()
	for _, s := range sessions {
		d.bus.Push(s, msg)
	}

	log.Info().
		Int64("notification_id", rec.ID).
		Int64("recipient_id", recipientID).
		Int("sessions", len(sessions)).
		Msg("通知を作成しました")
	return true, nil
}
