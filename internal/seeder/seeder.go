// Package seeder は開発用のサンプルデータを生成する。
// 本番のリクエスト経路では使用しない。
package seeder

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/userman/internal/model"
	"github.com/hitoshi/userman/internal/password"
	"github.com/hitoshi/userman/internal/repository"
)

// DefaultPassword は生成ユーザー共通の開発用パスワード。
const DefaultPassword = "password"

// サンプル投稿の素材。ランダム性の品質は重要ではない。
var sampleTitles = []string{
	"Getting started",
	"Weekly notes",
	"Thoughts on testing",
	"Release checklist",
	"Reading list",
}

var sampleBodies = []string{
	"Lorem ipsum dolor sit amet, consectetur adipiscing elit.",
	"Sed do eiusmod tempor incididunt ut labore et dolore magna aliqua.",
	"Ut enim ad minim veniam, quis nostrud exercitation ullamco.",
}

// Config はシーダーの設定。
type Config struct {
	Users        int // 生成するユーザー数
	PostsPerUser int // ユーザーごとの投稿数
}

// Seeder はサンプルユーザーと投稿をリポジトリ経由で生成する。
// ドメインの不変条件（ユニーク制約、ハッシュ済みパスワード）はリポジトリと
// サービス層と同じ経路で守られる。
type Seeder struct {
	userRepo repository.UserRepository
	postRepo repository.PostRepository
	hasher   *password.Hasher
	config   Config
}

// NewSeeder はSeederを生成する。
func NewSeeder(userRepo repository.UserRepository, postRepo repository.PostRepository, hasher *password.Hasher, config Config) *Seeder {
	return &Seeder{
		userRepo: userRepo,
		postRepo: postRepo,
		hasher:   hasher,
		config:   config,
	}
}

// Run はサンプルデータを生成する。
// 既に同名のユーザーが存在する場合はそのユーザーをスキップするため、再実行しても安全。
func (s *Seeder) Run(ctx context.Context) error {
	// 全ユーザーで同じ開発用パスワードを使うため、ハッシュは1回だけ計算する
	hash, err := s.hasher.Hash(DefaultPassword)
	if err != nil {
		return fmt.Errorf("failed to hash seed password: %w", err)
	}

	created := 0
	for i := 1; i <= s.config.Users; i++ {
		name := fmt.Sprintf("user%d", i)

		existing, err := s.userRepo.FindByField(ctx, "name", name, "")
		if err != nil {
			return fmt.Errorf("failed to check existing user: %w", err)
		}
		if existing != nil {
			continue
		}

		now := time.Now()
		u := &model.User{
			ID:           uuid.New().String(),
			Name:         name,
			Email:        fmt.Sprintf("user%d@example.com", i),
			PasswordHash: hash,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.userRepo.Create(ctx, u); err != nil {
			return fmt.Errorf("failed to seed user %s: %w", name, err)
		}

		for j := 0; j < s.config.PostsPerUser; j++ {
			post := &model.Post{
				ID:        uuid.New().String(),
				UserID:    u.ID,
				Title:     sampleTitles[rand.Intn(len(sampleTitles))],
				Body:      sampleBodies[rand.Intn(len(sampleBodies))],
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := s.postRepo.Create(ctx, post); err != nil {
				return fmt.Errorf("failed to seed post for %s: %w", name, err)
			}
		}

		created++
	}

	slog.Info("seeding completed",
		slog.Int("users_created", created),
		slog.Int("posts_per_user", s.config.PostsPerUser),
	)

	return nil
}
