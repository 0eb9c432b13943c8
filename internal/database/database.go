// Package database はSQLiteデータベースへの接続とスキーマの適用を行う。
package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"net/url"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/nao1215/feedhub/pkg/migration"
)

//go:embed migrations/*.sql
var migrations embed.FS

// pragmas は接続ごとに適用するSQLiteの設定。
var pragmas = []string{
	"busy_timeout(5000)",
	"journal_mode(WAL)",
	"foreign_keys(1)",
}

// Open は指定パスのSQLiteデータベースを開き、未適用のマイグレーションを実行する。
func Open(ctx context.Context, path string, logger zerolog.Logger) (*sql.DB, error) {
	return open(ctx, "file:"+path, logger)
}

// OpenInMemory はプロセス内で完結するインメモリデータベースを開く。
// 接続ごとに別のデータベースにならないよう、接続数を1に制限する。
func OpenInMemory(ctx context.Context, logger zerolog.Logger) (*sql.DB, error) {
	return open(ctx, fmt.Sprintf("file:%s?mode=memory", uuid.NewString()), logger)
}

func open(ctx context.Context, dsn string, logger zerolog.Logger) (*sql.DB, error) {
	q := url.Values{}
	for _, p := range pragmas {
		q.Add("_pragma", p)
	}
	sep := "?"
	if u, err := url.Parse(dsn); err == nil && u.RawQuery != "" {
		sep = "&"
	}

	db, err := sql.Open("sqlite", dsn+sep+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	// SQLiteは書き込みが直列化されるため、接続は1本に絞ってロック待ちを避ける
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("データベースへの疎通確認に失敗: %w", err)
	}
	if err := migration.Run(db, migrations, "migrations", logger); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}
	return db, nil
}
