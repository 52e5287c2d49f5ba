// Package password はパスワードの一方向ハッシュ化と照合を提供する。
// ハッシュにはbcryptを使用する。ソルトはbcryptがハッシュ内に埋め込むため、
// 別途の管理は不要。
package password

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost はbcryptの既定コストファクター。
const DefaultCost = bcrypt.DefaultCost

// Hasher はパスワードのハッシュ化と照合を行う。
type Hasher struct {
	cost int
}

// NewHasher は指定コストのHasherを生成する。
// costがbcryptの有効範囲外の場合はDefaultCostを使用する。
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &Hasher{cost: cost}
}

// Hash は平文パスワードのbcryptハッシュを返す。
func (h *Hasher) Hash(plaintext string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// Verify は平文パスワードがハッシュと一致するかを返す。
func (h *Hasher) Verify(hashed, plaintext string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plaintext)) == nil
}
