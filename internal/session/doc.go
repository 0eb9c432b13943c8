// Package session は接続中のリアルタイムセッションを管理するレジストリを提供する。
//
// レジストリはセッションIDとユーザーIDの二つの索引を持ち、
// 接続・切断とディスパッチャーからの参照が並行して行われても
// 中途半端な状態が観測されないよう、自身のロックで内部状態を保護する。
// 外部のコードが内部の索引を直接走査することはない。
package session
