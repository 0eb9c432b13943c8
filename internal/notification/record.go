package notification

import (
	"errors"
	"time"

	"github.com/nao1215/feedhub/pkg/event"
)

var (
	// ErrStorage は通知ストアが利用できない、または書き込みが競合したことを表す。
	ErrStorage = errors.New("通知ストアの操作に失敗しました")
	// ErrNotFound は指定された通知が存在しないことを表す。
	ErrNotFound = errors.New("通知が見つかりません")
)

// Record は永続化された通知。既読化以外で変更されることはない。
type Record struct {
	// ID は通知の一意識別子。
	ID int64
	// Kind は通知の種類。
	Kind event.Kind
	// Content は人が読むための要約文。
	Content string
	// PostID は通知の起点となった投稿のID。
	PostID int64
	// RecipientID は通知先のユーザーID。
	RecipientID int64
	// ActorID は操作を行ったユーザーのID。
	ActorID int64
	// Read は既読状態。
	Read bool
	// CreatedAt は通知の作成日時。
	CreatedAt time.Time
}
