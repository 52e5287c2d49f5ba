package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/userman/internal/model"
	"github.com/hitoshi/userman/internal/user"
)

// --- モック定義 ---

// mockUserService はUserServiceInterfaceのモック実装。
type mockUserService struct {
	listFn   func(ctx context.Context) ([]*model.User, error)
	getFn    func(ctx context.Context, id string) (*model.User, error)
	createFn func(ctx context.Context, input user.CreateInput) (*model.User, error)
	updateFn func(ctx context.Context, id string, input user.UpdateInput) (*model.User, error)
	deleteFn func(ctx context.Context, id string) error
}

func (m *mockUserService) List(ctx context.Context) ([]*model.User, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockUserService) Get(ctx context.Context, id string) (*model.User, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, model.NewUserNotFoundError()
}

func (m *mockUserService) Create(ctx context.Context, input user.CreateInput) (*model.User, error) {
	if m.createFn != nil {
		return m.createFn(ctx, input)
	}
	return nil, errors.New("createFn not set")
}

func (m *mockUserService) Update(ctx context.Context, id string, input user.UpdateInput) (*model.User, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, input)
	}
	return nil, errors.New("updateFn not set")
}

func (m *mockUserService) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

// newTestRouter はユーザーサービスのモックだけを差し込んだルーターを返す。
func newTestRouter(svc UserServiceInterface) http.Handler {
	return NewRouter(&RouterDeps{
		CORSAllowedOrigin: "http://localhost:3000",
		UserService:       svc,
	})
}

func testUser() *model.User {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return &model.User{
		ID:           "user-1",
		Name:         "Alice",
		Email:        "alice@example.com",
		PasswordHash: "$2a$10$secret-hash",
		CreatedAt:    now,
		UpdatedAt:    now,
		Posts: []model.Post{
			{
				ID:        "post-1",
				UserID:    "user-1",
				Title:     "First Post",
				Body:      "Hello",
				CreatedAt: now,
				UpdatedAt: now,
			},
		},
	}
}

// --- GET /api/users テスト ---

func TestUserHandler_List_Success(t *testing.T) {
	svc := &mockUserService{
		listFn: func(ctx context.Context) ([]*model.User, error) {
			return []*model.User{testUser()}, nil
		},
	}
	router := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var body []map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(body) != 1 {
		t.Fatalf("len(users) = %d, want 1", len(body))
	}
	if body[0]["name"] != "Alice" {
		t.Errorf("name = %v, want Alice", body[0]["name"])
	}

	// 投稿がネストされて返ること
	posts, ok := body[0]["posts"].([]interface{})
	if !ok || len(posts) != 1 {
		t.Fatalf("posts = %v, want 1 nested post", body[0]["posts"])
	}
}

func TestUserHandler_List_Empty_ReturnsEmptyArray(t *testing.T) {
	svc := &mockUserService{
		listFn: func(ctx context.Context) ([]*model.User, error) {
			return []*model.User{}, nil
		},
	}
	router := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	// nullではなく[]が返ること
	if got := strings.TrimSpace(w.Body.String()); got != "[]" {
		t.Errorf("body = %q, want []", got)
	}
}

func TestUserHandler_List_InternalError(t *testing.T) {
	svc := &mockUserService{
		listFn: func(ctx context.Context) ([]*model.User, error) {
			return nil, errors.New("connection refused")
		},
	}
	router := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusInternalServerError)
	}

	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["message"] != "Có lỗi phát sinh, vui lòng thử lại." {
		t.Errorf("message = %v, want generic failure message", body["message"])
	}
	if body["status"] != float64(0) {
		t.Errorf("status field = %v, want 0", body["status"])
	}
}

// --- POST /api/users テスト ---

func TestUserHandler_Create_Success(t *testing.T) {
	var gotInput user.CreateInput
	svc := &mockUserService{
		createFn: func(ctx context.Context, input user.CreateInput) (*model.User, error) {
			gotInput = input
			u := testUser()
			u.Posts = nil
			return u, nil
		},
	}
	router := newTestRouter(svc)

	reqBody := `{"name":"Alice","email":"alice@example.com","password":"secret1"}`
	req := httptest.NewRequest(http.MethodPost, "/api/users", strings.NewReader(reqBody))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}

	if gotInput.Name == nil || *gotInput.Name != "Alice" {
		t.Errorf("input.Name = %v, want Alice", gotInput.Name)
	}
	if gotInput.Email == nil || *gotInput.Email != "alice@example.com" {
		t.Errorf("input.Email = %v, want alice@example.com", gotInput.Email)
	}
	if gotInput.Password == nil || *gotInput.Password != "secret1" {
		t.Errorf("input.Password = %v, want secret1", gotInput.Password)
	}

	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["name"] != "Alice" {
		t.Errorf("name = %v, want Alice", body["name"])
	}
}

func TestUserHandler_Create_ValidationError(t *testing.T) {
	svc := &mockUserService{
		createFn: func(ctx context.Context, input user.CreateInput) (*model.User, error) {
			return nil, model.NewValidationError("The name field is required.")
		},
	}
	router := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/users", strings.NewReader(`{}`))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusUnprocessableEntity)
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["message"] != "The name field is required." {
		t.Errorf("message = %q, want %q", body["message"], "The name field is required.")
	}
}

// TestUserHandler_Create_MalformedJSON_TreatedAsEmpty は不正なJSONボディが
// 「フィールドなし」として扱われ、バリデーション層に委ねられることを検証する。
func TestUserHandler_Create_MalformedJSON_TreatedAsEmpty(t *testing.T) {
	var gotInput user.CreateInput
	called := false
	svc := &mockUserService{
		createFn: func(ctx context.Context, input user.CreateInput) (*model.User, error) {
			called = true
			gotInput = input
			return nil, model.NewValidationError("The name field is required.")
		},
	}
	router := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/users", strings.NewReader(`{not json`))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if !called {
		t.Fatal("expected Create to be called with empty input")
	}
	if gotInput.Name != nil || gotInput.Email != nil || gotInput.Password != nil {
		t.Errorf("expected all input fields to be nil, got %+v", gotInput)
	}
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnprocessableEntity)
	}
}

// --- GET /api/users/{id} テスト ---

func TestUserHandler_Show_Success(t *testing.T) {
	svc := &mockUserService{
		getFn: func(ctx context.Context, id string) (*model.User, error) {
			if id != "user-1" {
				t.Errorf("id = %q, want %q", id, "user-1")
			}
			return testUser(), nil
		},
	}
	router := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/users/user-1", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["id"] != "user-1" {
		t.Errorf("id = %v, want user-1", body["id"])
	}
	posts, ok := body["posts"].([]interface{})
	if !ok || len(posts) != 1 {
		t.Errorf("posts = %v, want 1 nested post", body["posts"])
	}
}

func TestUserHandler_Show_NotFound(t *testing.T) {
	svc := &mockUserService{
		getFn: func(ctx context.Context, id string) (*model.User, error) {
			return nil, model.NewUserNotFoundError()
		},
	}
	router := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/users/missing", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["message"] != "User not found" {
		t.Errorf("message = %q, want %q", body["message"], "User not found")
	}
}

// --- PUT/PATCH /api/users/{id} テスト ---

func TestUserHandler_Update_Success(t *testing.T) {
	var gotID string
	var gotInput user.UpdateInput
	svc := &mockUserService{
		updateFn: func(ctx context.Context, id string, input user.UpdateInput) (*model.User, error) {
			gotID = id
			gotInput = input
			u := testUser()
			u.Name = "Alice Updated"
			return u, nil
		},
	}
	router := newTestRouter(svc)

	reqBody := `{"name":"Alice Updated"}`
	req := httptest.NewRequest(http.MethodPut, "/api/users/user-1", strings.NewReader(reqBody))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	if gotID != "user-1" {
		t.Errorf("id = %q, want %q", gotID, "user-1")
	}
	if gotInput.Name == nil || *gotInput.Name != "Alice Updated" {
		t.Errorf("input.Name = %v, want Alice Updated", gotInput.Name)
	}
	if gotInput.Password != nil {
		t.Errorf("input.Password = %v, want nil", gotInput.Password)
	}

	var body struct {
		Message string                 `json:"message"`
		Data    map[string]interface{} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Message != "User updated successfully" {
		t.Errorf("message = %q, want %q", body.Message, "User updated successfully")
	}
	if body.Data["name"] != "Alice Updated" {
		t.Errorf("data.name = %v, want Alice Updated", body.Data["name"])
	}
}

func TestUserHandler_Update_PatchAlsoRoutes(t *testing.T) {
	called := false
	svc := &mockUserService{
		updateFn: func(ctx context.Context, id string, input user.UpdateInput) (*model.User, error) {
			called = true
			return testUser(), nil
		},
	}
	router := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodPatch, "/api/users/user-1", strings.NewReader(`{"name":"X"}`))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if !called {
		t.Error("expected Update to be called via PATCH")
	}
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestUserHandler_Update_NotFound(t *testing.T) {
	svc := &mockUserService{
		updateFn: func(ctx context.Context, id string, input user.UpdateInput) (*model.User, error) {
			return nil, model.NewUserNotFoundError()
		},
	}
	router := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodPut, "/api/users/missing", strings.NewReader(`{"name":"X"}`))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestUserHandler_Update_ValidationError(t *testing.T) {
	svc := &mockUserService{
		updateFn: func(ctx context.Context, id string, input user.UpdateInput) (*model.User, error) {
			return nil, model.NewValidationError("The email is already registered.")
		},
	}
	router := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodPut, "/api/users/user-1", strings.NewReader(`{"email":"taken@example.com"}`))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusUnprocessableEntity)
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["message"] != "The email is already registered." {
		t.Errorf("message = %q, want %q", body["message"], "The email is already registered.")
	}
}

func TestUserHandler_Update_OldPasswordMismatch(t *testing.T) {
	svc := &mockUserService{
		updateFn: func(ctx context.Context, id string, input user.UpdateInput) (*model.User, error) {
			return nil, model.NewOldPasswordMismatchError()
		},
	}
	router := newTestRouter(svc)

	reqBody := `{"password":"newpass","old_password":"wrong","password_confirmation":"newpass"}`
	req := httptest.NewRequest(http.MethodPut, "/api/users/user-1", strings.NewReader(reqBody))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["message"] != "The current password does not match." {
		t.Errorf("message = %q, want %q", body["message"], "The current password does not match.")
	}
}

// TestUserHandler_Update_PasswordFieldsReachService は更新リクエストのパスワード系
// フィールドがそのままサービスに渡ることを検証する。
func TestUserHandler_Update_PasswordFieldsReachService(t *testing.T) {
	var gotInput user.UpdateInput
	svc := &mockUserService{
		updateFn: func(ctx context.Context, id string, input user.UpdateInput) (*model.User, error) {
			gotInput = input
			return testUser(), nil
		},
	}
	router := newTestRouter(svc)

	reqBody := `{"password":"newpass","old_password":"oldpass","password_confirmation":"newpass"}`
	req := httptest.NewRequest(http.MethodPut, "/api/users/user-1", strings.NewReader(reqBody))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if gotInput.Password == nil || *gotInput.Password != "newpass" {
		t.Errorf("input.Password = %v, want newpass", gotInput.Password)
	}
	if gotInput.OldPassword == nil || *gotInput.OldPassword != "oldpass" {
		t.Errorf("input.OldPassword = %v, want oldpass", gotInput.OldPassword)
	}
	if gotInput.PasswordConfirmation == nil || *gotInput.PasswordConfirmation != "newpass" {
		t.Errorf("input.PasswordConfirmation = %v, want newpass", gotInput.PasswordConfirmation)
	}
}

// --- DELETE /api/users/{id} テスト ---

func TestUserHandler_Delete_Success(t *testing.T) {
	deleteCalled := false
	svc := &mockUserService{
		deleteFn: func(ctx context.Context, id string) error {
			deleteCalled = true
			if id != "user-1" {
				t.Errorf("id = %q, want %q", id, "user-1")
			}
			return nil
		},
	}
	router := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodDelete, "/api/users/user-1", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	if !deleteCalled {
		t.Error("expected Delete to be called")
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["message"] != "User deleted successfully" {
		t.Errorf("message = %q, want %q", body["message"], "User deleted successfully")
	}
}

func TestUserHandler_Delete_NotFound(t *testing.T) {
	svc := &mockUserService{
		deleteFn: func(ctx context.Context, id string) error {
			return model.NewUserNotFoundError()
		},
	}
	router := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodDelete, "/api/users/missing", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

// --- レスポンス形状テスト ---

// TestUserResponses_NeverContainPasswordHash は全レスポンスにパスワード関連
// フィールドが含まれないことを検証する。
func TestUserResponses_NeverContainPasswordHash(t *testing.T) {
	svc := &mockUserService{
		listFn: func(ctx context.Context) ([]*model.User, error) {
			return []*model.User{testUser()}, nil
		},
		getFn: func(ctx context.Context, id string) (*model.User, error) {
			return testUser(), nil
		},
		updateFn: func(ctx context.Context, id string, input user.UpdateInput) (*model.User, error) {
			return testUser(), nil
		},
	}
	router := newTestRouter(svc)

	requests := []struct {
		method string
		path   string
		body   string
	}{
		{http.MethodGet, "/api/users", ""},
		{http.MethodGet, "/api/users/user-1", ""},
		{http.MethodPut, "/api/users/user-1", `{"name":"X"}`},
	}

	for _, tt := range requests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			var reqBody *strings.Reader
			if tt.body != "" {
				reqBody = strings.NewReader(tt.body)
			} else {
				reqBody = strings.NewReader("")
			}
			req := httptest.NewRequest(tt.method, tt.path, reqBody)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			got := w.Body.String()
			if strings.Contains(got, "password") || strings.Contains(got, "secret-hash") {
				t.Errorf("response body leaks password data: %s", got)
			}
		})
	}
}
