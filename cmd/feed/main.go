// feedhubサービスのエントリポイント。
// 投稿・コメント・いいねの書き込みAPI、通知API、WebSocketによるリアルタイム通知を提供する。
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/nao1215/feedhub/internal/config"
	"github.com/nao1215/feedhub/internal/database"
	"github.com/nao1215/feedhub/internal/feed"
	"github.com/nao1215/feedhub/pkg/logging"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("feedhubサービスが異常終了しました")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogPretty, os.Stderr)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg.DatabasePath, logger)
	if err != nil {
		return fmt.Errorf("データベースの初期化に失敗: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error().Err(err).Msg("データベースのクローズに失敗")
		}
	}()

	return feed.NewServer(cfg, db, logger).Run(ctx)
}
