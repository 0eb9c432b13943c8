// Package event はフィードの書き込み処理が発行するドメインイベントと、
// リアルタイムセッションへ送るプッシュメッセージの型を定義する。
package event

import (
	"errors"
	"fmt"
)

// Kind はドメインイベントの種類を表す。
type Kind string

const (
	// KindComment は投稿にコメントが付いたことを表す。
	KindComment Kind = "comment"
	// KindLikePost は投稿にいいねが付いたことを表す。
	KindLikePost Kind = "like-post"
	// KindLikeComment はコメントにいいねが付いたことを表す。
	KindLikeComment Kind = "like-comment"
)

// ErrUnknownKind は未知のイベント種別を表す。
var ErrUnknownKind = errors.New("未知のイベント種別です")

// Valid は既知のイベント種別かどうかを返す。
func (k Kind) Valid() bool {
	switch k {
	case KindComment, KindLikePost, KindLikeComment:
		return true
	default:
		return false
	}
}

// DomainEvent は「誰かに変更を知らせるべき」ことを表す一時的な事実。
// 書き込み処理で生成され、ディスパッチャーが即座に消費する。そのまま永続化はしない。
type DomainEvent struct {
	// Kind はイベントの種類。
	Kind Kind
	// Content は人が読むための要約文。
	Content string
	// PostID は通知の起点となった投稿のID。通知先はこの投稿の所有者になる。
	PostID int64
	// ActorID は操作を行ったユーザーのID。
	ActorID int64
}

// Validate はイベントの必須項目を検証する。
func (e DomainEvent) Validate() error {
	if !e.Kind.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownKind, e.Kind)
	}
	if e.PostID <= 0 || e.ActorID <= 0 {
		return fmt.Errorf("イベントの投稿IDまたは操作者IDが不正です: post=%d actor=%d", e.PostID, e.ActorID)
	}
	return nil
}

// NewComment は投稿へのコメントを表すイベントを生成する。
func NewComment(postID, actorID int64) DomainEvent {
	return DomainEvent{Kind: KindComment, Content: "replied to your post", PostID: postID, ActorID: actorID}
}

// NewLikePost は投稿へのいいねを表すイベントを生成する。
func NewLikePost(postID, actorID int64) DomainEvent {
	return DomainEvent{Kind: KindLikePost, Content: "liked your post", PostID: postID, ActorID: actorID}
}

// NewLikeComment はコメントへのいいねを表すイベントを生成する。
// postIDにはコメントが属する投稿のIDを渡す。通知の宛先は投稿の所有者で、コメントの投稿者ではない。
func NewLikeComment(postID, actorID int64) DomainEvent {
	return DomainEvent{Kind: KindLikeComment, Content: "liked a comment on your post", PostID: postID, ActorID: actorID}
}

// PushEventNotifications は通知一覧が変化したことを表すプッシュのタグ。
const PushEventNotifications = "notifications"

// PushMessage はリアルタイムセッションへ送る軽量なシグナル。
// 内容は含めず、受信側は通知一覧を再取得する。
type PushMessage struct {
	// Event はシグナルの種類。
	Event string `json:"event"`
}

// NotificationsChanged は通知一覧の再取得を促すプッシュメッセージを返す。
func NotificationsChanged() PushMessage {
	return PushMessage{Event: PushEventNotifications}
}
