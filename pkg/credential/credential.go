// Package credential は端末ローカルに永続化する認証トークンの保存先を提供する。
//
// アクセストークンとリフレッシュトークンは固定キー "access" と "refresh" で保存される。
// ログイン・新規登録の成功時とトークン更新の成功時に書き込まれ、
// 認証付きリクエストの直前に読み込まれ、ログアウトまたは更新失敗時に削除される。
package credential

import (
	"context"
	"fmt"
)

const (
	// KeyAccess はアクセストークンの保存キー。
	KeyAccess = "access"
	// KeyRefresh はリフレッシュトークンの保存キー。
	KeyRefresh = "refresh"
)

// Store は文字列のキーと値を保存する永続ストア。
// 実装は複数のgoroutineから同時に呼び出されても安全でなければならない。
type Store interface {
	// Get はキーに対応する値を返す。存在しない場合okはfalseになる。
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	// Set はキーに値を保存する。既存の値は上書きされる。
	Set(ctx context.Context, key, value string) error
	// Delete は指定したキーをすべて削除する。存在しないキーは無視される。
	Delete(ctx context.Context, keys ...string) error
}

// Pair はアクセストークンとリフレッシュトークンの組。
// 空文字列はそのトークンが保存されていないことを表す。
type Pair struct {
	// Access はリソースAPIの呼び出しに使う短命なトークン。
	Access string
	// Refresh は新しいアクセストークンを取得するための長命なトークン。
	Refresh string
}

// HasAccess はアクセストークンが存在するかを返す。
func (p Pair) HasAccess() bool { return p.Access != "" }

// HasRefresh はリフレッシュトークンが存在するかを返す。
func (p Pair) HasRefresh() bool { return p.Refresh != "" }

// Load はストアからトークンの組を読み込む。
func Load(ctx context.Context, s Store) (Pair, error) {
	access, _, err := s.Get(ctx, KeyAccess)
	if err != nil {
		return Pair{}, fmt.Errorf("アクセストークンの読み込みに失敗: %w", err)
	}
	refresh, _, err := s.Get(ctx, KeyRefresh)
	if err != nil {
		return Pair{}, fmt.Errorf("リフレッシュトークンの読み込みに失敗: %w", err)
	}
	return Pair{Access: access, Refresh: refresh}, nil
}

// Save はトークンの組をストアに書き込む。空のトークンは書き込まない。
func Save(ctx context.Context, s Store, p Pair) error {
	if p.HasAccess() {
		if err := s.Set(ctx, KeyAccess, p.Access); err != nil {
			return fmt.Errorf("アクセストークンの保存に失敗: %w", err)
		}
	}
	if p.HasRefresh() {
		if err := s.Set(ctx, KeyRefresh, p.Refresh); err != nil {
			return fmt.Errorf("リフレッシュトークンの保存に失敗: %w", err)
		}
	}
	return nil
}

// Clear は両方のトークンをストアから削除する。
func Clear(ctx context.Context, s Store) error {
	if err := s.Delete(ctx, KeyAccess, KeyRefresh); err != nil {
		return fmt.Errorf("認証トークンの削除に失敗: %w", err)
	}
	return nil
}
