//go:generate go run go.uber.org/mock/mockgen -source=bus.go -destination=../mocks/mock_bus.go -package=mocks

// Package push はリアルタイムセッションへのベストエフォートなプッシュ配信を提供する。
//
// 書き込み処理側はBusだけに依存し、送信先の接続が生きているか、
// どのトランスポートで届くかを知らない。送信失敗はここで握りつぶしてログに残すだけで、
// 呼び出し元へエラーとして伝播させることも、再送することもない。
package push

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/nao1215/feedhub/internal/session"
	"github.com/nao1215/feedhub/pkg/event"
	"github.com/nao1215/feedhub/pkg/logging"
)

// Bus は1セッションへプッシュメッセージを届ける。
type Bus interface {
	// Push はメッセージの配信を試みる。失敗しても呼び出し元には何も返さない。
	Push(s *session.Session, msg event.PushMessage)
}

// TransportBus はセッションのTransportを使って配信するBus。
type TransportBus struct {
	// logger は送信失敗を記録するロガー。
	logger zerolog.Logger
	// timeout は1回の送信試行の上限時間。
	timeout time.Duration
}

// NewTransportBus は送信試行ごとにtimeoutで打ち切るBusを生成する。
func NewTransportBus(logger zerolog.Logger, timeout time.Duration) *TransportBus {
	return &TransportBus{
		logger:  logging.Component(logger, "push"),
		timeout: timeout,
	}
}

// Push はメッセージをシリアライズしてセッションの送信バッファへ渡す。
// 書き込み処理のレイテンシを守るため、timeoutを超えて待つことはない。
func (b *TransportBus) Push(s *session.Session, msg event.PushMessage) {
	if s == nil || s.Transport == nil {
		return
	}
	log := b.logger.With().Str("session_id", s.ID).Int64("user_id", s.UserID).Str("event", msg.Event).Logger()

	payload, err := event.EncodePush(msg)
	if err != nil {
		log.Error().Err(err).Msg("プッシュメッセージの生成に失敗")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	if err := s.Transport.Send(ctx, payload); err != nil {
		log.Warn().Err(err).Msg("プッシュ送信に失敗（破棄します）")
		return
	}
	log.Debug().Msg("プッシュを送信しました")
}

// NopBus は何も配信しないBus。書き込み処理のテストで使用する。
type NopBus struct{}

// Push は何もしない。
func (NopBus) Push(*session.Session, event.PushMessage) {}
