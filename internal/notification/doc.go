// Package notification は通知の永続化とリアルタイム配信の振り分けを提供する。
//
// 書き込み処理（コメント・いいね）から渡されたドメインイベントについて、
// Dispatcherが通知先を解決し、自己通知を除外し、Storeに永続レコードを作成した上で、
// 通知先が接続中であればそのセッションにだけ軽量なシグナルをプッシュする。
// 永続レコードが正であり、プッシュはレイテンシ短縮のための補助にすぎない。
// 既読管理と一覧取得のHTTPハンドラもここで提供する。
package notification
