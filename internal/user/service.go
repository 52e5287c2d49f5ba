// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/userman/internal/model"
	"github.com/hitoshi/userman/internal/password"
	"github.com/hitoshi/userman/internal/repository"
	"github.com/hitoshi/userman/internal/validation"
)

// MetricsRecorder はユーザーライフサイクルのメトリクス記録インターフェース。
type MetricsRecorder interface {
	RecordUserCreated()
	RecordUserUpdated()
	RecordUserDeleted()
}

// Service はユーザーCRUDのサービス層。
// バリデーションポリシーとパスワード変更のゲート処理を担当する。
type Service struct {
	userRepo repository.UserRepository
	hasher   *password.Hasher
	metrics  MetricsRecorder
}

// NewService はServiceの新しいインスタンスを生成する。
// metricsはnilでもよい（記録をスキップする）。
func NewService(userRepo repository.UserRepository, hasher *password.Hasher, metrics MetricsRecorder) *Service {
	return &Service{
		userRepo: userRepo,
		hasher:   hasher,
		metrics:  metrics,
	}
}

// CreateInput はユーザー作成の入力。
// nilのフィールドは「リクエストに含まれなかった」ことを表す。
type CreateInput struct {
	Name     *string
	Email    *string
	Password *string
}

// UpdateInput はユーザー更新の入力。
// name/email/passwordのうち存在するフィールドだけが適用される。
// passwordが存在する場合はold_passwordとpassword_confirmationが必須になる。
type UpdateInput struct {
	Name                 *string
	Email                *string
	Password             *string
	OldPassword          *string
	PasswordConfirmation *string
}

// createRules はユーザー作成時のバリデーションルール。
// 宣言順に評価され、最初の違反メッセージがレスポンスになる。
var createRules = []validation.FieldRules{
	{Field: "name", Rules: []validation.Rule{
		{Kind: validation.Required},
		{Kind: validation.Max, Limit: 255},
		{Kind: validation.Unique},
	}},
	{Field: "email", Rules: []validation.Rule{
		{Kind: validation.Required},
		{Kind: validation.Email},
		{Kind: validation.Unique},
	}},
	{Field: "password", Rules: []validation.Rule{
		{Kind: validation.Required},
		{Kind: validation.Min, Limit: 6},
	}},
}

// updateRules はユーザー更新時のバリデーションルール。
// すべてのフィールドは任意で、存在する場合のみ検証される。
var updateRules = []validation.FieldRules{
	{Field: "name", Rules: []validation.Rule{
		{Kind: validation.Max, Limit: 255},
		{Kind: validation.Unique},
	}},
	{Field: "email", Rules: []validation.Rule{
		{Kind: validation.Email},
		{Kind: validation.Unique},
	}},
	{Field: "password", Rules: []validation.Rule{
		{Kind: validation.Min, Limit: 6},
		{Kind: validation.Max, Limit: 32},
	}},
	{Field: "old_password", Rules: []validation.Rule{
		{Kind: validation.RequiredWith, Other: "password"},
	}},
	{Field: "password_confirmation", Rules: []validation.Rule{
		{Kind: validation.RequiredWith, Other: "password"},
		{Kind: validation.Same, Other: "password"},
	}},
}

// updateMessages は更新時のフィールド/ルール別メッセージ上書きテーブル。
var updateMessages = map[string]string{
	"name.unique":                         "The name is already in use. Please choose another one.",
	"email.unique":                        "The email is already registered.",
	"password.min":                        "The password must be at least 6 characters.",
	"password.max":                        "The password must not exceed 32 characters.",
	"password.required":                   "Please enter a new password.",
	"old_password.required_with":          "Please enter the old password.",
	"password_confirmation.required_with": "Please enter a confirmation password.",
	"password_confirmation.same":          "Password confirmation does not match.",
}

// List は全ユーザーを投稿つきで返す。
func (s *Service) List(ctx context.Context) ([]*model.User, error) {
	users, err := s.userRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// Get は指定IDのユーザーを投稿つきで返す。
func (s *Service) Get(ctx context.Context, id string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// Create は入力を検証し、パスワードをハッシュ化して新規ユーザーを作成する。
func (s *Service) Create(ctx context.Context, input CreateInput) (*model.User, error) {
	in := validation.Input{
		"name":     toField(input.Name),
		"email":    toField(input.Email),
		"password": toField(input.Password),
	}

	violation, err := validation.Evaluate(ctx, createRules, in, validation.Options{
		Unique: s.uniqueChecker(""),
	})
	if err != nil {
		return nil, fmt.Errorf("validation failed unexpectedly: %w", err)
	}
	if violation != nil {
		return nil, model.NewValidationError(violation.Message)
	}

	hash, err := s.hasher.Hash(*input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	user := &model.User{
		ID:           uuid.New().String(),
		Name:         *input.Name,
		Email:        *input.Email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
		Posts:        []model.Post{},
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("user created",
		slog.String("user_id", user.ID),
		slog.String("name", user.Name),
	)
	if s.metrics != nil {
		s.metrics.RecordUserCreated()
	}

	return user, nil
}

// Update は入力を検証し、存在するフィールドだけを指定ユーザーに適用する。
// パスワード変更時は現在のパスワードの照合をゲートとして要求する。
func (s *Service) Update(ctx context.Context, id string, input UpdateInput) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	in := validation.Input{
		"name":                  toField(input.Name),
		"email":                 toField(input.Email),
		"password":              toField(input.Password),
		"old_password":          toField(input.OldPassword),
		"password_confirmation": toField(input.PasswordConfirmation),
	}

	violation, err := validation.Evaluate(ctx, updateRules, in, validation.Options{
		Messages: updateMessages,
		Unique:   s.uniqueChecker(id),
	})
	if err != nil {
		return nil, fmt.Errorf("validation failed unexpectedly: %w", err)
	}
	if violation != nil {
		return nil, model.NewValidationError(violation.Message)
	}

	update := model.UserUpdate{
		Name:  input.Name,
		Email: input.Email,
	}

	if input.Password != nil {
		// バリデーション済みなのでold_passwordは存在するが、念のため照合前に確認する
		if input.OldPassword == nil || !s.hasher.Verify(user.PasswordHash, *input.OldPassword) {
			return nil, model.NewOldPasswordMismatchError()
		}
		hash, err := s.hasher.Hash(*input.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		update.PasswordHash = &hash
	}

	if err := s.userRepo.UpdateFields(ctx, id, update); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	updated, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to reload user: %w", err)
	}
	if updated == nil {
		return nil, model.NewUserNotFoundError()
	}

	slog.Info("user updated", slog.String("user_id", id))
	if s.metrics != nil {
		s.metrics.RecordUserUpdated()
	}

	return updated, nil
}

// Delete は指定IDのユーザーを完全に削除する。
func (s *Service) Delete(ctx context.Context, id string) error {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}

	if err := s.userRepo.DeleteByID(ctx, id); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	slog.Info("user deleted", slog.String("user_id", id))
	if s.metrics != nil {
		s.metrics.RecordUserDeleted()
	}

	return nil
}

// uniqueChecker はexcludeIDを束縛した重複チェック関数を返す。
// 事前チェックであり、書き込みとの競合はストレージのユニーク制約が拒否する。
func (s *Service) uniqueChecker(excludeID string) validation.UniqueFunc {
	return func(ctx context.Context, field, value string) (bool, error) {
		existing, err := s.userRepo.FindByField(ctx, field, value, excludeID)
		if err != nil {
			return false, err
		}
		return existing != nil, nil
	}
}

// toField は任意入力のポインタをvalidation.Fieldに変換する。
func toField(p *string) validation.Field {
	if p == nil {
		return validation.Field{}
	}
	return validation.Field{Present: true, Value: *p}
}
