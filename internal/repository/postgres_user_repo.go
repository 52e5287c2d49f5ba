package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/userman/internal/model"
	"github.com/lib/pq"
)

// isValidID はIDがUUIDとして解釈できるかを返す。
// users.idはUUIDカラムのため、不正な形式のIDをそのまま$1に束縛すると
// ドライバが22P02（invalid input syntax for type uuid）を返す。
// どの行にも一致しえない値は問い合わせずに未検出として扱う。
func isValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// findableColumns はFindByFieldで検索を許可するカラムの許可リスト。
// カラム名をSQLに埋め込むため、ここにない値は受け付けない。
var findableColumns = map[string]struct{}{
	"name":  {},
	"email": {},
}

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// ListAll は全ユーザーを投稿つきで取得する。
func (r *PostgresUserRepo) ListAll(ctx context.Context) ([]*model.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, email, password_hash, created_at, updated_at
		 FROM users ORDER BY created_at, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		user := &model.User{}
		if err := rows.Scan(
			&user.ID, &user.Name, &user.Email, &user.PasswordHash,
			&user.CreatedAt, &user.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}

	if err := r.loadPosts(ctx, users); err != nil {
		return nil, err
	}

	return users, nil
}

// FindByID は指定IDのユーザーを投稿つきで取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if !isValidID(id) {
		return nil, nil
	}

	user := &model.User{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, email, password_hash, created_at, updated_at
		 FROM users WHERE id = $1`,
		id,
	).Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}

	if err := r.loadPosts(ctx, []*model.User{user}); err != nil {
		return nil, err
	}

	return user, nil
}

// FindByField は指定カラムの値でユーザーを検索する。見つからない場合はnilを返す。
// excludeIDが空でない場合、そのIDのレコードは除外する（自分自身へのリネーム許可のため）。
func (r *PostgresUserRepo) FindByField(ctx context.Context, field, value, excludeID string) (*model.User, error) {
	if _, ok := findableColumns[field]; !ok {
		return nil, fmt.Errorf("column not allowed for lookup: %q", field)
	}

	query := fmt.Sprintf(
		`SELECT id, name, email, password_hash, created_at, updated_at
		 FROM users WHERE %s = $1`, field,
	)
	args := []any{value}
	// 不正な形式のexcludeIDはどの行にも一致しないため除外句ごと省く
	if excludeID != "" && isValidID(excludeID) {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}

	user := &model.User{}
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&user.ID, &user.Name, &user.Email, &user.PasswordHash,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by %s: %w", field, err)
	}

	return user, nil
}

// Create はユーザーを作成する。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, password_hash, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		user.ID, user.Name, user.Email, user.PasswordHash, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// UpdateFields は部分更新を適用する。nilでないフィールドのみをSET句に含める。
func (r *PostgresUserRepo) UpdateFields(ctx context.Context, id string, update model.UserUpdate) error {
	if update.IsEmpty() {
		return nil
	}
	if !isValidID(id) {
		return fmt.Errorf("user not found: %s", id)
	}

	var sets []string
	var args []any

	appendSet := func(column string, value string) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if update.Name != nil {
		appendSet("name", *update.Name)
	}
	if update.Email != nil {
		appendSet("email", *update.Email)
	}
	if update.PasswordHash != nil {
		appendSet("password_hash", *update.PasswordHash)
	}

	args = append(args, time.Now())
	sets = append(sets, fmt.Sprintf("updated_at = $%d", len(args)))

	args = append(args, id)
	query := fmt.Sprintf("UPDATE users SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user not found: %s", id)
	}
	return nil
}

// DeleteByID は指定IDのユーザーを削除する。関連するpostsはCASCADE削除される。
func (r *PostgresUserRepo) DeleteByID(ctx context.Context, id string) error {
	if !isValidID(id) {
		return fmt.Errorf("user not found: %s", id)
	}

	result, err := r.db.ExecContext(ctx,
		`DELETE FROM users WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user not found: %s", id)
	}
	return nil
}

// loadPosts はユーザー集合の投稿を1クエリで取得して各ユーザーに割り当てる。
func (r *PostgresUserRepo) loadPosts(ctx context.Context, users []*model.User) error {
	if len(users) == 0 {
		return nil
	}

	ids := make([]string, len(users))
	byID := make(map[string]*model.User, len(users))
	for i, u := range users {
		ids[i] = u.ID
		byID[u.ID] = u
		u.Posts = []model.Post{}
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, title, body, created_at, updated_at
		 FROM posts WHERE user_id = ANY($1) ORDER BY created_at, id`,
		pq.Array(ids),
	)
	if err != nil {
		return fmt.Errorf("failed to load posts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var post model.Post
		if err := rows.Scan(
			&post.ID, &post.UserID, &post.Title, &post.Body,
			&post.CreatedAt, &post.UpdatedAt,
		); err != nil {
			return fmt.Errorf("failed to scan post: %w", err)
		}
		if owner, ok := byID[post.UserID]; ok {
			owner.Posts = append(owner.Posts, post)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate posts: %w", err)
	}

	return nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
