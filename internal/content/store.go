package content

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrPostNotFound は投稿が存在しないことを表す。
	ErrPostNotFound = errors.New("投稿が見つかりません")
	// ErrCommentNotFound はコメントが存在しないことを表す。
	ErrCommentNotFound = errors.New("コメントが見つかりません")
	// ErrAlreadyLiked は同じユーザーが既にいいねしていることを表す。
	ErrAlreadyLiked = errors.New("既にいいねしています")
	// ErrNotOwner は操作対象の所有者ではないことを表す。
	ErrNotOwner = errors.New("この操作を行う権限がありません")
)

// Post はフィードの投稿。
type Post struct {
	// ID は投稿の一意識別子。
	ID int64
	// UserID は投稿者のユーザーID。
	UserID int64
	// Content は投稿本文。
	Content string
	// CreatedAt は投稿日時。
	CreatedAt time.Time
}

// Comment は投稿へのコメント。
type Comment struct {
	// ID はコメントの一意識別子。
	ID int64
	// PostID はコメント先の投稿ID。
	PostID int64
	// UserID はコメントしたユーザーのID。
	UserID int64
	// Content はコメント本文。
	Content string
	// CreatedAt はコメント日時。
	CreatedAt time.Time
}

// SQLStore はSQLiteに投稿・コメント・いいねを保存する。
type SQLStore struct {
	// db はSQLiteデータベース接続。
	db *sql.DB
	// now は作成日時の採番に使う時計。
	now func() time.Time
}

// NewSQLStore はSQLiteをバックエンドとするストアを生成する。
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, now: time.Now}
}

// CreatePost は投稿を保存する。
func (s *SQLStore) CreatePost(ctx context.Context, userID int64, body string) (Post, error) {
	p := Post{UserID: userID, Content: body, CreatedAt: s.now().UTC()}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO posts (user_id, content, created_at) VALUES (?, ?, ?)`,
		p.UserID, p.Content, p.CreatedAt.UnixNano(),
	)
	if err != nil {
		return Post{}, fmt.Errorf("投稿の作成に失敗: %w", err)
	}
	if p.ID, err = res.LastInsertId(); err != nil {
		return Post{}, fmt.Errorf("投稿IDの取得に失敗: %w", err)
	}
	return p, nil
}

// PostOwner は投稿の所有者IDを返す。投稿が存在しない場合はfoundがfalseになる。
func (s *SQLStore) PostOwner(ctx context.Context, postID int64) (int64, bool, error) {
	var owner int64
	err := s.db.QueryRowContext(ctx, `SELECT user_id FROM posts WHERE id = ?`, postID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("投稿の所有者の取得に失敗: %w", err)
	}
	return owner, true, nil
}

// DeletePost は投稿と、それに付随するコメント・いいねを削除する。
// 所有者以外はErrNotOwnerになる。
func (s *SQLStore) DeletePost(ctx context.Context, postID, userID int64) error {
	owner, found, err := s.PostOwner(ctx, postID)
	if err != nil {
		return err
	}
	if !found {
		return ErrPostNotFound
	}
	if owner != userID {
		return ErrNotOwner
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, postID); err != nil {
		return fmt.Errorf("投稿の削除に失敗: %w", err)
	}
	return nil
}

// CreateComment は投稿にコメントを保存する。投稿が無い場合はErrPostNotFoundになる。
func (s *SQLStore) CreateComment(ctx context.Context, postID, userID int64, body string) (Comment, error) {
	cm := Comment{PostID: postID, UserID: userID, Content: body, CreatedAt: s.now().UTC()}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO comments (post_id, user_id, content, created_at)
		SELECT ?, ?, ?, ? WHERE EXISTS (SELECT 1 FROM posts WHERE id = ?)`,
		cm.PostID, cm.UserID, cm.Content, cm.CreatedAt.UnixNano(), cm.PostID,
	)
	if err != nil {
		return Comment{}, fmt.Errorf("コメントの作成に失敗: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return Comment{}, fmt.Errorf("コメント作成結果の取得に失敗: %w", err)
	} else if n == 0 {
		return Comment{}, ErrPostNotFound
	}
	if cm.ID, err = res.LastInsertId(); err != nil {
		return Comment{}, fmt.Errorf("コメントIDの取得に失敗: %w", err)
	}
	return cm, nil
}

// CommentPost はコメントが属する投稿のIDを返す。コメントが無い場合はfoundがfalseになる。
func (s *SQLStore) CommentPost(ctx context.Context, commentID int64) (int64, bool, error) {
	var postID int64
	err := s.db.QueryRowContext(ctx, `SELECT post_id FROM comments WHERE id = ?`, commentID).Scan(&postID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("コメントの取得に失敗: %w", err)
	}
	return postID, true, nil
}

// DeleteComment はコメントを削除する。所有者以外はErrNotOwnerになる。
func (s *SQLStore) DeleteComment(ctx context.Context, commentID, userID int64) error {
	var owner int64
	err := s.db.QueryRowContext(ctx, `SELECT user_id FROM comments WHERE id = ?`, commentID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrCommentNotFound
	}
	if err != nil {
		return fmt.Errorf("コメントの取得に失敗: %w", err)
	}
	if owner != userID {
		return ErrNotOwner
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM comments WHERE id = ?`, commentID); err != nil {
		return fmt.Errorf("コメントの削除に失敗: %w", err)
	}
	return nil
}

// LikePost は投稿にいいねする。
// 投稿が無い場合はErrPostNotFound、既にいいね済みの場合はErrAlreadyLikedになる。
func (s *SQLStore) LikePost(ctx context.Context, postID, userID int64) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO post_likes (post_id, user_id, created_at)
		SELECT ?, ?, ? WHERE EXISTS (SELECT 1 FROM posts WHERE id = ?)`,
		postID, userID, s.now().UTC().UnixNano(), postID,
	)
	if err != nil {
		return fmt.Errorf("投稿へのいいねに失敗: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("いいね結果の取得に失敗: %w", err)
	}
	if n > 0 {
		return nil
	}

	// 挿入されなかった理由を区別する
	if _, found, err := s.PostOwner(ctx, postID); err != nil {
		return err
	} else if !found {
		return ErrPostNotFound
	}
	return ErrAlreadyLiked
}

// UnlikePost は投稿へのいいねを取り消す。いいねしていない場合も成功する。
func (s *SQLStore) UnlikePost(ctx context.Context, postID, userID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM post_likes WHERE post_id = ? AND user_id = ?`, postID, userID); err != nil {
		return fmt.Errorf("投稿へのいいね取り消しに失敗: %w", err)
	}
	return nil
}

// LikeComment はコメントにいいねし、コメントが属する投稿のIDを返す。
// コメントが無い場合はErrCommentNotFound、既にいいね済みの場合はErrAlreadyLikedになる。
func (s *SQLStore) LikeComment(ctx context.Context, commentID, userID int64) (int64, error) {
	postID, found, err := s.CommentPost(ctx, commentID)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, ErrCommentNotFound
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO comment_likes (comment_id, user_id, created_at)
		SELECT ?, ?, ? WHERE EXISTS (SELECT 1 FROM comments WHERE id = ?)`,
		commentID, userID, s.now().UTC().UnixNano(), commentID,
	)
	if err != nil {
		return 0, fmt.Errorf("コメントへのいいねに失敗: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("いいね結果の取得に失敗: %w", err)
	}
	if n > 0 {
		return postID, nil
	}

	if _, found, err := s.CommentPost(ctx, commentID); err != nil {
		return 0, err
	} else if !found {
		return 0, ErrCommentNotFound
	}
	return 0, ErrAlreadyLiked
}

// UnlikeComment はコメントへのいいねを取り消す。いいねしていない場合も成功する。
func (s *SQLStore) UnlikeComment(ctx context.Context, commentID, userID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM comment_likes WHERE comment_id = ? AND user_id = ?`, commentID, userID); err != nil {
		return fmt.Errorf("コメントへのいいね取り消しに失敗: %w", err)
	}
	return nil
}
