package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/userman/internal/model"
)

// PostgresPostRepo はPostgreSQLを使用した投稿リポジトリ。
type PostgresPostRepo struct {
	db *sql.DB
}

// NewPostgresPostRepo はPostgresPostRepoを生成する。
func NewPostgresPostRepo(db *sql.DB) *PostgresPostRepo {
	return &PostgresPostRepo{db: db}
}

// Create は投稿を作成する。
func (r *PostgresPostRepo) Create(ctx context.Context, post *model.Post) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO posts (id, user_id, title, body, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		post.ID, post.UserID, post.Title, post.Body, post.CreatedAt, post.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert post: %w", err)
	}
	return nil
}

// ListByUserID は指定ユーザーの投稿一覧を作成日時昇順で返す。
func (r *PostgresPostRepo) ListByUserID(ctx context.Context, userID string) ([]model.Post, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, title, body, created_at, updated_at
		 FROM posts WHERE user_id = $1 ORDER BY created_at, id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	defer rows.Close()

	var posts []model.Post
	for rows.Next() {
		var post model.Post
		if err := rows.Scan(
			&post.ID, &post.UserID, &post.Title, &post.Body,
			&post.CreatedAt, &post.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate posts: %w", err)
	}

	return posts, nil
}

// compile-time interface check
var _ PostRepository = (*PostgresPostRepo)(nil)
