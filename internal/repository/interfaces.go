// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/userman/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
// 読み取り系は関連する投稿をイーガーロードして返す。
// ユニーク制約の最終的な担保はストレージ層（usersテーブルのunique index）が行う。
// FindByFieldによる事前チェックは競合しうる参考値にすぎない。
type UserRepository interface {
	// ListAll は全ユーザーを投稿つきで取得する。
	ListAll(ctx context.Context) ([]*model.User, error)

	// FindByID は指定IDのユーザーを投稿つきで取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByField は指定カラム（name/email）の値でユーザーを検索する。
	// excludeIDが空でない場合、そのIDのレコードは検索対象から除外する。
	// 見つからない場合はnilを返す。許可外のカラム名はエラー。
	FindByField(ctx context.Context, field, value, excludeID string) (*model.User, error)

	// Create はユーザーを作成する。
	Create(ctx context.Context, user *model.User) error

	// UpdateFields は部分更新を適用する。nilでないフィールドのみ更新し、
	// updated_atを現在時刻に進める。
	UpdateFields(ctx context.Context, id string, update model.UserUpdate) error

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するpostsはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// PostRepository は投稿データの永続化インターフェース。
// 投稿はイーガーロード対象の関連コレクションであり、書き込みはシーダーのみが行う。
type PostRepository interface {
	// Create は投稿を作成する。
	Create(ctx context.Context, post *model.Post) error

	// ListByUserID は指定ユーザーの投稿一覧を作成日時昇順で返す。
	ListByUserID(ctx context.Context, userID string) ([]model.Post, error)
}
