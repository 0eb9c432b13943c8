// Package config はfeedhubサービスの設定を環境変数から読み込む。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config はサービス全体の設定値。
type Config struct {
	// Port はHTTPサーバーのリッスンポート。
	Port string `envconfig:"PORT" default:"8080" validate:"required,numeric"`
	// DatabasePath はSQLiteデータベースファイルのパス。
	DatabasePath string `envconfig:"DATABASE_PATH" default:"/data/feed.db" validate:"required"`
	// JWTSecret はJWT署名用の秘密鍵。
	JWTSecret string `envconfig:"JWT_SECRET" default:"dev-secret-key" validate:"required"`
	// FrontendURL はCORSで許可するフロントエンドのオリジン。
	FrontendURL string `envconfig:"FRONTEND_URL" default:"http://localhost:3000" validate:"required,url"`
	// LogLevel はログレベル。
	LogLevel string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=trace debug info warn error"`
	// LogPretty はコンソール向けの整形ログを有効にする。
	LogPretty bool `envconfig:"LOG_PRETTY" default:"false"`
	// PushTimeout は1セッションへのプッシュ送信を待つ上限時間。
	PushTimeout time.Duration `envconfig:"PUSH_TIMEOUT" default:"100ms" validate:"gt=0"`
	// SessionBufferSize はセッションごとの送信バッファのメッセージ数。
	SessionBufferSize int `envconfig:"SESSION_BUFFER_SIZE" default:"16" validate:"gt=0"`
	// PingInterval はWebSocketのping送信間隔。
	PingInterval time.Duration `envconfig:"PING_INTERVAL" default:"30s" validate:"gt=0"`
	// PongWait はpong応答を待つ上限時間。PingIntervalより長くなければならない。
	PongWait time.Duration `envconfig:"PONG_WAIT" default:"60s" validate:"gtfield=PingInterval"`
	// WriteWait はWebSocketへの1回の書き込みの上限時間。
	WriteWait time.Duration `envconfig:"WRITE_WAIT" default:"10s" validate:"gt=0"`
	// NotificationListLimit は通知一覧のデフォルト取得件数。
	NotificationListLimit int `envconfig:"NOTIFICATION_LIST_LIMIT" default:"20" validate:"gt=0,lte=100"`
	// DevTokenEnabled は開発用トークン発行エンドポイントを有効にする。
	DevTokenEnabled bool `envconfig:"DEV_TOKEN_ENABLED" default:"true"`
	// ShutdownTimeout はグレースフルシャットダウンの上限時間。
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s" validate:"gt=0"`
}

// Load は.envファイル（存在する場合）と環境変数から設定を読み込み、検証する。
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf(".envファイルの読み込みに失敗: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("環境変数の読み込みに失敗: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate は設定値を検証する。
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("設定値が不正です: %w", err)
	}
	return nil
}
