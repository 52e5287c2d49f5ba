// Package handler はHTTPハンドラーとルーティングを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/userman/internal/model"
	"github.com/hitoshi/userman/internal/user"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// List は全ユーザーを投稿つきで返す。
	List(ctx context.Context) ([]*model.User, error)
	// Get は指定IDのユーザーを投稿つきで返す。
	Get(ctx context.Context, id string) (*model.User, error)
	// Create は入力を検証して新規ユーザーを作成する。
	Create(ctx context.Context, input user.CreateInput) (*model.User, error)
	// Update は存在するフィールドだけを指定ユーザーに適用する。
	Update(ctx context.Context, id string, input user.UpdateInput) (*model.User, error)
	// Delete は指定IDのユーザーを完全に削除する。
	Delete(ctx context.Context, id string) error
}

// UserHandler はユーザーCRUDのHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{
		service: service,
	}
}

// createUserRequest はユーザー作成リクエストのボディ。
// ポインタで「フィールドが送られていない」ことを空文字と区別する。
type createUserRequest struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
}

// updateUserRequest はユーザー更新リクエストのボディ。
type updateUserRequest struct {
	Name                 *string `json:"name"`
	Email                *string `json:"email"`
	Password             *string `json:"password"`
	OldPassword          *string `json:"old_password"`
	PasswordConfirmation *string `json:"password_confirmation"`
}

// postResponse は投稿のAPIレスポンス。
type postResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// userResponse はユーザーのAPIレスポンス。パスワードハッシュは決して含めない。
type userResponse struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Email     string         `json:"email"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Posts     []postResponse `json:"posts"`
}

// messageResponse はメッセージのみのレスポンス。
type messageResponse struct {
	Message string `json:"message"`
}

// updateUserResponse は更新成功時のレスポンス。
type updateUserResponse struct {
	Message string       `json:"message"`
	Data    userResponse `json:"data"`
}

// genericFailureResponse は予期しない失敗時のレスポンス。
// statusフィールドはクライアント互換のため常に0。
type genericFailureResponse struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// List は全ユーザーの一覧を返す。
// GET /api/users
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]userResponse, len(users))
	for i, u := range users {
		resp[i] = toUserResponse(u)
	}

	writeJSON(w, http.StatusOK, resp)
}

// Create はユーザーを作成する。
// POST /api/users
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	decodeLenient(r, &req)

	created, err := h.service.Create(r.Context(), user.CreateInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toUserResponse(created))
}

// Show は指定IDのユーザーを返す。
// GET /api/users/{id}
func (h *UserHandler) Show(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	u, err := h.service.Get(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(u))
}

// Update は指定ユーザーに部分更新を適用する。
// PUT /api/users/{id}, PATCH /api/users/{id}
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateUserRequest
	decodeLenient(r, &req)

	updated, err := h.service.Update(r.Context(), id, user.UpdateInput{
		Name:                 req.Name,
		Email:                req.Email,
		Password:             req.Password,
		OldPassword:          req.OldPassword,
		PasswordConfirmation: req.PasswordConfirmation,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, updateUserResponse{
		Message: "User updated successfully",
		Data:    toUserResponse(updated),
	})
}

// Delete は指定IDのユーザーを削除する。
// DELETE /api/users/{id}
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.Delete(r.Context(), id); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "User deleted successfully"})
}

// decodeLenient はリクエストボディをJSONとしてデコードする。
// 空ボディや不正なJSONはエラーにせず「フィールドなし」として扱う。
// 欠落フィールドの扱いはバリデーション層に一本化されている。
func decodeLenient(r *http.Request, dst any) {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		slog.Debug("request body ignored",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
}

// toUserResponse はドメインのUserをAPIレスポンス型に変換する。
func toUserResponse(u *model.User) userResponse {
	posts := make([]postResponse, len(u.Posts))
	for i, p := range u.Posts {
		posts[i] = postResponse{
			ID:        p.ID,
			UserID:    p.UserID,
			Title:     p.Title,
			Body:      p.Body,
			CreatedAt: p.CreatedAt,
			UpdatedAt: p.UpdatedAt,
		}
	}
	return userResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
		Posts:     posts,
	}
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// handleServiceError はサービス層のエラーを適切なHTTPレスポンスに変換する。
// APIError以外のエラーはすべて最終防衛線として汎用メッセージの500になる。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case model.ErrCodeValidationFailed:
			writeJSON(w, http.StatusUnprocessableEntity, messageResponse{Message: apiErr.Message})
			return
		case model.ErrCodeUserNotFound:
			writeJSON(w, http.StatusNotFound, messageResponse{Message: apiErr.Message})
			return
		case model.ErrCodeOldPasswordMismatch:
			writeJSON(w, http.StatusBadRequest, messageResponse{Message: apiErr.Message})
			return
		}
	}

	slog.Error("internal server error", slog.String("error", err.Error()))
	writeJSON(w, http.StatusInternalServerError, genericFailureResponse{
		Message: model.GenericFailureMessage,
		Status:  0,
	})
}
