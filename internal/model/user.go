// Package model はドメインモデルを定義する。
package model

import "time"

// User はユーザーレコードを表す。
// PasswordHashはbcryptハッシュのみを保持し、平文パスワードは永続化しない。
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time

	// Posts はユーザーが所有する投稿のコレクション。
	// 取得系の操作でイーガーロードされる。
	Posts []Post
}

// Post はユーザーに紐づく投稿を表す。
// 投稿の内容自体はこのサービスの関心外で、関連コレクションとして同時取得するのみ。
type Post struct {
	ID        string
	UserID    string
	Title     string
	Body      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserUpdate は部分更新の値オブジェクト。
// nilでないフィールドだけがレコードに適用される（許可リスト: name, email, password）。
type UserUpdate struct {
	Name         *string
	Email        *string
	PasswordHash *string
}

// IsEmpty は適用すべきフィールドが1つもないことを返す。
func (u UserUpdate) IsEmpty() bool {
	return u.Name == nil && u.Email == nil && u.PasswordHash == nil
}
