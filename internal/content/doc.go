// Package content はフィードの投稿・コメント・いいねの書き込みを扱う。
//
// コメントやいいねが保存されると、対応するドメインイベントをNotifierへ渡す。
// 通知の作成に失敗しても書き込み自体は成功として応答する。
// 通知と投稿データは同じトランザクションで結合されていない。
package content
