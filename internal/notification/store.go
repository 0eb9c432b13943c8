//go:generate go run go.uber.org/mock/mockgen -source=store.go -destination=../mocks/mock_store.go -package=mocks

package notification

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nao1215/feedhub/pkg/event"
)

// Store は通知レコードの唯一の書き手。
type Store interface {
	// Create は新しい通知を永続化し、採番済みのレコードを返す。
	Create(ctx context.Context, r Record) (Record, error)
	// Get は通知を1件取得する。存在しない場合はErrNotFoundを返す。
	Get(ctx context.Context, id int64) (Record, error)
	// MarkRead は通知を既読にする。対象が無い、または既読の場合も成功する。
	MarkRead(ctx context.Context, id int64) error
	// MarkAllRead は通知先の全通知を既読にする。
	MarkAllRead(ctx context.Context, recipientID int64) error
	// ListForRecipient は通知先の通知を新しい順に最大limit件返す。
	ListForRecipient(ctx context.Context, recipientID int64, limit int) ([]Record, error)
	// ListUnreadForRecipient は通知先の未読通知を新しい順に最大limit件返す。
	ListUnreadForRecipient(ctx context.Context, recipientID int64, limit int) ([]Record, error)
	// CountUnread は通知先の未読通知数を返す。
	CountUnread(ctx context.Context, recipientID int64) (int, error)
}

// SQLStore はSQLiteに通知を保存するStore。
type SQLStore struct {
	// db はSQLiteデータベース接続。
	db *sql.DB
	// now は作成日時の採番に使う時計。
	now func() time.Time
}

// NewSQLStore はSQLiteをバックエンドとするStoreを生成する。
// スキーマはdatabase.Openで適用済みであること。
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, now: time.Now}
}

// storageError は下位のエラーをErrStorageで包む。
func storageError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}

// Create は通知を未読状態で保存する。
func (s *SQLStore) Create(ctx context.Context, r Record) (Record, error) {
	r.Read = false
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now().UTC()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (kind, content, post_id, recipient_id, actor_id, is_read, created_at)
		VALUES (?, ?, ?, ?, ?, 0, ?)`,
		string(r.Kind), r.Content, r.PostID, r.RecipientID, r.ActorID, r.CreatedAt.UnixNano(),
	)
	if err != nil {
		return Record{}, storageError("通知の作成に失敗", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Record{}, storageError("通知IDの取得に失敗", err)
	}
	r.ID = id
	return r, nil
}

// Get は通知を1件取得する。
func (s *SQLStore) Get(ctx context.Context, id int64) (Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, kind, content, post_id, recipient_id, actor_id, is_read, created_at
		FROM notifications WHERE id = ?`, id)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, storageError("通知の取得に失敗", err)
	}
	return r, nil
}

// MarkRead は通知を既読にする。
func (s *SQLStore) MarkRead(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE notifications SET is_read = 1 WHERE id = ? AND is_read = 0`, id); err != nil {
		return storageError("通知の既読処理に失敗", err)
	}
	return nil
}

// MarkAllRead は通知先の全通知を既読にする。
func (s *SQLStore) MarkAllRead(ctx context.Context, recipientID int64) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE notifications SET is_read = 1 WHERE recipient_id = ? AND is_read = 0`, recipientID); err != nil {
		return storageError("全通知の既読処理に失敗", err)
	}
	return nil
}

// ListForRecipient は通知先の通知を新しい順に返す。limitが0以下の場合は空を返す。
func (s *SQLStore) ListForRecipient(ctx context.Context, recipientID int64, limit int) ([]Record, error) {
	return s.list(ctx, `
		SELECT id, kind, content, post_id, recipient_id, actor_id, is_read, created_at
		FROM notifications WHERE recipient_id = ?
		ORDER BY created_at DESC, id DESC LIMIT ?`, recipientID, limit)
}

// ListUnreadForRecipient は通知先の未読通知を新しい順に返す。
func (s *SQLStore) ListUnreadForRecipient(ctx context.Context, recipientID int64, limit int) ([]Record, error) {
	return s.list(ctx, `
		SELECT id, kind, content, post_id, recipient_id, actor_id, is_read, created_at
		FROM notifications WHERE recipient_id = ? AND is_read = 0
		ORDER BY created_at DESC, id DESC LIMIT ?`, recipientID, limit)
}

// CountUnread は通知先の未読通知数を返す。
func (s *SQLStore) CountUnread(ctx context.Context, recipientID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE recipient_id = ? AND is_read = 0`, recipientID,
	).Scan(&n)
	if err != nil {
		return 0, storageError("未読通知数の取得に失敗", err)
	}
	return n, nil
}

func (s *SQLStore) list(ctx context.Context, query string, recipientID int64, limit int) ([]Record, error) {
	if limit <= 0 {
		return []Record{}, nil
	}

	rows, err := s.db.QueryContext(ctx, query, recipientID, limit)
	if err != nil {
		return nil, storageError("通知一覧の取得に失敗", err)
	}
	defer func() { _ = rows.Close() }()

	records := make([]Record, 0)
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, storageError("通知の読み取りに失敗", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("通知一覧の走査に失敗", err)
	}
	return records, nil
}

// scanner は*sql.Rowと*sql.Rowsの共通部分。
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (Record, error) {
	var (
		r         Record
		kind      string
		read      int64
		createdAt int64
	)
	if err := sc.Scan(&r.ID, &kind, &r.Content, &r.PostID, &r.RecipientID, &r.ActorID, &read, &createdAt); err != nil {
		return Record{}, err
	}
	r.Kind = event.Kind(kind)
	r.Read = read != 0
	r.CreatedAt = time.Unix(0, createdAt).UTC()
	return r, nil
}
