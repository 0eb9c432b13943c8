// Package feed はfeedhubサービスのHTTPサーバーを組み立てる。
//
// SQLiteのストア、セッションレジストリ、プッシュ用のBus、通知ディスパッチャーを結線し、
// 書き込みAPI、通知API、WebSocketゲートウェイを1つのGinルーターに載せる。
// 停止時はHTTPサーバーを止めた後、接続中の全セッションを閉じる。
package feed
