// Package middleware はGinベースのHTTP APIで使用する共通ミドルウェアを提供する。
//
// JWT認証トークンの検証、リクエストログ、パニックリカバリ、
// CORS設定など、全エンドポイントで共通して使用するミドルウェアを含む。
// WebSocketハンドシェイク用にトークンの取り出しと検証も単体で公開する。
package middleware
