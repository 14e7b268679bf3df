// Package session はログイン中のユーザー・カート・認証トークンの寿命を1つのオブジェクトで管理する。
//
// Sessionはプログラム開始時に生成し、ログアウトまたはセッション切れで状態を破棄する。
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Olatundeawo/ordora/internal/cart"
	"github.com/Olatundeawo/ordora/internal/storefront"
	"github.com/Olatundeawo/ordora/pkg/credential"
	"github.com/Olatundeawo/ordora/pkg/httpclient"
)

// KeyUser はログイン中のユーザー情報を保存するキー。
const KeyUser = "user"

// ErrEmptyCart は空のカートで注文しようとしたことを表す。
var ErrEmptyCart = errors.New("カートが空です")

// Session はユーザー・カート・認証トークンをまとめたセッション。
type Session struct {
	// api はストアフロントAPIクライアント。
	api *storefront.Client
	// store は認証トークンとユーザー情報の保存先。
	store credential.Store
	// cart はカート。
	cart *cart.Cart
	// logger は構造化ロガー。
	logger *zap.Logger

	mu   sync.RWMutex
	user *storefront.User
}

// Option はSessionの設定を変更する関数。
type Option func(*Session)

// WithLogger はロガーを設定する。
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithCart はカートを差し替える。
func WithCart(c *cart.Cart) Option {
	return func(s *Session) {
		if c != nil {
			s.cart = c
		}
	}
}

// New は新しいセッションを生成する。
func New(api *storefront.Client, store credential.Store, opts ...Option) *Session {
	s := &Session{
		api:    api,
		store:  store,
		cart:   cart.New(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// API はストアフロントAPIクライアントを返す。
func (s *Session) API() *storefront.Client { return s.api }

// Cart はカートを返す。
func (s *Session) Cart() *cart.Cart { return s.cart }

// User はログイン中のユーザーを返す。ログインしていない場合okはfalse。
func (s *Session) User() (storefront.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return storefront.User{}, false
	}
	return *s.user, true
}

// Login はログインし、成功した場合はトークンとユーザーを保存する。
func (s *Session) Login(ctx context.Context, email, password string) (httpclient.Result[storefront.AuthResponse], error) {
	res, err := s.api.Login(ctx, email, password)
	if err != nil || !res.OK {
		return res, err
	}
	if err := s.establish(ctx, res.Data); err != nil {
		return res, err
	}
	s.logger.Info("[Session] ログインしました", zap.String("role", string(res.Data.User.Role)))
	return res, nil
}

// Register は新規登録し、成功した場合はトークンとユーザーを保存する。
func (s *Session) Register(ctx context.Context, in storefront.RegisterInput) (httpclient.Result[storefront.AuthResponse], error) {
	res, err := s.api.Register(ctx, in)
	if err != nil || !res.OK {
		return res, err
	}
	if err := s.establish(ctx, res.Data); err != nil {
		return res, err
	}
	s.logger.Info("[Session] 新規登録しました", zap.String("role", string(res.Data.User.Role)))
	return res, nil
}

// establish はログイン結果を保存してセッションを開始する。
func (s *Session) establish(ctx context.Context, auth storefront.AuthResponse) error {
	if err := credential.Save(ctx, s.store, credential.Pair{Access: auth.Access, Refresh: auth.Refresh}); err != nil {
		return err
	}

	b, err := json.Marshal(auth.User)
	if err != nil {
		return fmt.Errorf("ユーザー情報のシリアライズに失敗: %w", err)
	}
	if err := s.store.Set(ctx, KeyUser, string(b)); err != nil {
		return fmt.Errorf("ユーザー情報の保存に失敗: %w", err)
	}

	user := auth.User
	s.mu.Lock()
	s.user = &user
	s.mu.Unlock()
	return nil
}

// Restore は保存済みのユーザー情報を読み込む。
// リフレッシュトークンがない場合はログインしていないものとしてfalseを返す。
func (s *Session) Restore(ctx context.Context) (bool, error) {
	ok, err := s.Authenticated(ctx)
	if err != nil || !ok {
		return false, err
	}

	raw, found, err := s.store.Get(ctx, KeyUser)
	if err != nil {
		return false, fmt.Errorf("ユーザー情報の読み込みに失敗: %w", err)
	}
	if !found {
		return false, nil
	}

	var user storefront.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return false, fmt.Errorf("ユーザー情報のデシリアライズに失敗: %w", err)
	}

	s.mu.Lock()
	s.user = &user
	s.mu.Unlock()
	return true, nil
}

// Authenticated はリフレッシュトークンが保存されているかを返す。
func (s *Session) Authenticated(ctx context.Context) (bool, error) {
	pair, err := credential.Load(ctx, s.store)
	if err != nil {
		return false, err
	}
	return pair.HasRefresh(), nil
}

// Logout はトークン・ユーザー・カートをすべて破棄する。
func (s *Session) Logout(ctx context.Context) error {
	s.reset()
	if err := s.store.Delete(ctx, credential.KeyAccess, credential.KeyRefresh, KeyUser); err != nil {
		return fmt.Errorf("ログアウトに失敗: %w", err)
	}
	s.logger.Info("[Session] ログアウトしました")
	return nil
}

// reset はメモリ上の状態を破棄する。
func (s *Session) reset() {
	s.mu.Lock()
	s.user = nil
	s.mu.Unlock()
	s.cart.Clear()
}

// Observe はAPI呼び出しのエラーを検査し、セッション切れの場合はローカルの状態を破棄する。
// errはそのまま返す。
func (s *Session) Observe(ctx context.Context, err error) error {
	if !httpclient.IsSessionExpired(err) {
		return err
	}
	s.logger.Warn("[Session] セッションが切れたため状態を破棄します")
	if lerr := s.Logout(ctx); lerr != nil {
		return errors.Join(err, lerr)
	}
	return err
}

// Checkout はカートの内容で注文を作成する。
// 注文が作成された場合だけカートを空にする。
func (s *Session) Checkout(ctx context.Context) (httpclient.Result[storefront.Order], error) {
	items := s.cart.OrderItems()
	if len(items) == 0 {
		return httpclient.Result[storefront.Order]{}, ErrEmptyCart
	}

	res, err := s.api.CreateOrder(ctx, items)
	if err != nil {
		return res, s.Observe(ctx, err)
	}
	if res.OK {
		s.cart.Clear()
		s.logger.Info("[Session] 注文を作成しました", zap.Int64("order_id", res.Data.ID))
	}
	return res, nil
}
