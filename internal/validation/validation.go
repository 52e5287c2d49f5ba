// Package validation はフィールド単位の宣言的バリデーションを提供する。
// ルールは列挙された構造体のリストとして定義し、宣言順に評価して
// 最初に失敗したルールのメッセージを返す（first error wins）。
package validation

import (
	"context"
	"fmt"
	"net/mail"
	"unicode/utf8"
)

// RuleKind はルールの種別を表す。
type RuleKind string

const (
	// Required はフィールドが存在し空でないことを要求する。
	Required RuleKind = "required"
	// RequiredWith はOtherフィールドが存在する場合に限り存在を要求する。
	RequiredWith RuleKind = "required_with"
	// Email はRFC 5322のアドレス形式であることを要求する。
	Email RuleKind = "email"
	// Min は最小文字数を要求する。
	Min RuleKind = "min"
	// Max は最大文字数を要求する。
	Max RuleKind = "max"
	// Same はOtherフィールドと同じ値であることを要求する。
	Same RuleKind = "same"
	// Unique は既存レコードと値が重複しないことを要求する。
	Unique RuleKind = "unique"
)

// Rule は1つのバリデーションルールを表す。
type Rule struct {
	Kind  RuleKind
	Limit int    // Min/Max の文字数
	Other string // RequiredWith/Same の比較対象フィールド名
}

// FieldRules はフィールドに適用するルールの順序付きリスト。
type FieldRules struct {
	Field string
	Rules []Rule
}

// Field は入力値とその存在有無を表す。
// 部分更新では「フィールドが送られていない」ことと「空文字」を区別する必要がある。
type Field struct {
	Present bool
	Value   string
}

// Input はフィールド名から入力値へのマップ。
type Input map[string]Field

// UniqueFunc は値が既存レコードと衝突するかを返す。
// 除外すべきレコードID等の絞り込みは呼び出し側がクロージャで束縛する。
type UniqueFunc func(ctx context.Context, field, value string) (bool, error)

// Violation はルール違反を表す。
type Violation struct {
	Field   string
	Kind    RuleKind
	Message string
}

// Options は評価時のオプション。
type Options struct {
	// Messages は "field.kind" をキーとするメッセージの上書きテーブル。
	Messages map[string]string
	// Unique はUniqueルールの重複チェックに使う。未設定の場合Uniqueルールはエラーになる。
	Unique UniqueFunc
}

// Evaluate はルールを宣言順に評価し、最初の違反を返す。
// 違反がなければ(nil, nil)。重複チェック自体が失敗した場合は第2戻り値でエラーを返す。
//
// 評価の約束:
//   - Required/RequiredWith以外のルールは、フィールドが存在しない場合スキップされる。
//   - RequiredWithは比較対象フィールドが存在する場合のみ発火する。
func Evaluate(ctx context.Context, fields []FieldRules, in Input, opts Options) (*Violation, error) {
	for _, fr := range fields {
		f := in[fr.Field]

		for _, rule := range fr.Rules {
			ok, err := check(ctx, rule, fr.Field, f, in, opts.Unique)
			if err != nil {
				return nil, err
			}
			if !ok {
				return &Violation{
					Field:   fr.Field,
					Kind:    rule.Kind,
					Message: message(fr.Field, rule, opts.Messages),
				}, nil
			}
		}
	}
	return nil, nil
}

// check は単一ルールを評価する。違反時はfalseを返す。
func check(ctx context.Context, rule Rule, field string, f Field, in Input, unique UniqueFunc) (bool, error) {
	switch rule.Kind {
	case Required:
		return f.Present && f.Value != "", nil

	case RequiredWith:
		if !in[rule.Other].Present {
			return true, nil
		}
		return f.Present && f.Value != "", nil

	case Email:
		if !f.Present {
			return true, nil
		}
		addr, err := mail.ParseAddress(f.Value)
		return err == nil && addr.Address == f.Value, nil

	case Min:
		if !f.Present {
			return true, nil
		}
		return utf8.RuneCountInString(f.Value) >= rule.Limit, nil

	case Max:
		if !f.Present {
			return true, nil
		}
		return utf8.RuneCountInString(f.Value) <= rule.Limit, nil

	case Same:
		if !f.Present {
			return true, nil
		}
		return f.Value == in[rule.Other].Value, nil

	case Unique:
		if !f.Present {
			return true, nil
		}
		if unique == nil {
			return false, fmt.Errorf("unique rule on %q requires a UniqueFunc", field)
		}
		taken, err := unique(ctx, field, f.Value)
		if err != nil {
			return false, fmt.Errorf("uniqueness check for %s failed: %w", field, err)
		}
		return !taken, nil

	default:
		return false, fmt.Errorf("unknown rule kind: %q", rule.Kind)
	}
}

// message は違反メッセージを解決する。上書きテーブルが優先される。
func message(field string, rule Rule, overrides map[string]string) string {
	if m, ok := overrides[field+"."+string(rule.Kind)]; ok {
		return m
	}
	return defaultMessage(field, rule)
}

// defaultMessage はルール種別ごとの既定メッセージを返す。
func defaultMessage(field string, rule Rule) string {
	switch rule.Kind {
	case Required:
		return fmt.Sprintf("The %s field is required.", field)
	case RequiredWith:
		return fmt.Sprintf("The %s field is required when %s is present.", field, rule.Other)
	case Email:
		return fmt.Sprintf("The %s must be a valid email address.", field)
	case Min:
		return fmt.Sprintf("The %s must be at least %d characters.", field, rule.Limit)
	case Max:
		return fmt.Sprintf("The %s must not be greater than %d characters.", field, rule.Limit)
	case Same:
		return fmt.Sprintf("The %s and %s must match.", field, rule.Other)
	case Unique:
		return fmt.Sprintf("The %s has already been taken.", field)
	default:
		return fmt.Sprintf("The %s is invalid.", field)
	}
}
