// Package realtime はWebSocketによるリアルタイムセッションのゲートウェイを提供する。
//
// 接続ごとに1つのセッションをレジストリへ登録し、送信は接続専用の
// 有界バッファと書き込みゴルーチンを通して順序通りに行う。
// 切断を検知すると、接続を閉じる前にレジストリから取り除く。
package realtime
