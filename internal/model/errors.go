// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError はサービス層からハンドラーへ伝搬するエラーを表す。
// CodeでHTTPステータスへのマッピングを決め、Messageをそのままレスポンスに載せる。
type APIError struct {
	Code    string // エラーコード
	Message string // ユーザー向けメッセージ
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidationFailed    = "VALIDATION_FAILED"
	ErrCodeUserNotFound        = "USER_NOT_FOUND"
	ErrCodeOldPasswordMismatch = "OLD_PASSWORD_MISMATCH"
)

// UserNotFoundMessage はユーザー未検出時のレスポンスメッセージ。
const UserNotFoundMessage = "User not found"

// GenericFailureMessage は予期しない失敗時の汎用メッセージ。
// クライアントが文字列一致で扱うため、ローカライズ済みのまま変更しない。
const GenericFailureMessage = "Có lỗi phát sinh, vui lòng thử lại."

// NewValidationError はバリデーション失敗エラーを生成する。
// messageには最初に失敗したルールのメッセージを渡す。
func NewValidationError(message string) *APIError {
	return &APIError{
		Code:    ErrCodeValidationFailed,
		Message: message,
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:    ErrCodeUserNotFound,
		Message: UserNotFoundMessage,
	}
}

// NewOldPasswordMismatchError はパスワード変更時に現在のパスワードが一致しない場合のエラーを生成する。
func NewOldPasswordMismatchError() *APIError {
	return &APIError{
		Code:    ErrCodeOldPasswordMismatch,
		Message: "The current password does not match.",
	}
}
