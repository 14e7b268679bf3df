// Package storefront はバックエンドの認証・商品・注文・支払いAPIを型付きで呼び出すクライアントを提供する。
//
// 認証が必要な呼び出しはすべて httpclient.Client.Do を経由するため、
// アクセストークンの付与と期限切れ時の更新はこのパッケージでは扱わない。
package storefront

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/Olatundeawo/ordora/pkg/httpclient"
)

// Gateway はバックエンドへの送信手段。
// Doは認証付き、Sendは認証なしで送信する。
type Gateway interface {
	Do(ctx context.Context, path string, req httpclient.Request) (*http.Response, error)
	Send(ctx context.Context, path string, req httpclient.Request) (*http.Response, error)
}

// Client はストアフロントAPIのクライアント。
type Client struct {
	// gw はバックエンドへの送信手段。
	gw Gateway
	// logger は構造化ロガー。
	logger *zap.Logger
}

// Option はClientの設定を変更する関数。
type Option func(*Client)

// WithLogger はロガーを設定する。
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New は新しいストアフロントAPIクライアントを生成する。
func New(gw Gateway, opts ...Option) *Client {
	c := &Client{gw: gw, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// call はリクエストを送信してレスポンスをResultに変換する共通処理。
// gatedがtrueの場合は認証付きで送信する。
func call[T any](ctx context.Context, c *Client, gated bool, method, path string, body any) (httpclient.Result[T], error) {
	req, err := httpclient.NewJSONRequest(method, body)
	if err != nil {
		return httpclient.Result[T]{}, err
	}

	send := c.gw.Send
	if gated {
		send = c.gw.Do
	}

	resp, err := send(ctx, path, req)
	if err != nil {
		return httpclient.Result[T]{}, err
	}

	res, err := httpclient.Decode[T](resp)
	if err != nil {
		return res, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if !res.OK {
		c.logger.Debug("[Storefront] APIがエラーを返しました",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", res.Status),
		)
	}
	return res, nil
}
