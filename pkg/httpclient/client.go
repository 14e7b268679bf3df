package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/Olatundeawo/ordora/pkg/credential"
)

// RefreshPath はアクセストークン更新エンドポイントのパス。
const RefreshPath = "auth/token/refresh/"

// defaultTimeout はHTTPクライアントの既定タイムアウト。
const defaultTimeout = 30 * time.Second

// maxDiscardBytes は再送前に読み捨てる401レスポンス本文の上限。
const maxDiscardBytes = 64 << 10

// Client はバックエンドAPI用のHTTPクライアント。
// 認証付きリクエストではトークンの付与・更新・再送を一手に引き受ける。
type Client struct {
	// httpClient は内部で使用するHTTPクライアント。
	httpClient *http.Client
	// baseURL はバックエンドAPIのベースURL。
	baseURL string
	// store は認証トークンの保存先。
	store credential.Store
	// logger は構造化ロガー。
	logger *zap.Logger
	// metrics はPrometheusカウンタ。登録先が指定されない場合はnil。
	metrics *metrics
	// coalesce は同じリフレッシュトークンによる同時更新を1回にまとめるか。
	coalesce bool
	// renewals は進行中のトークン更新。
	renewals singleflight.Group
}

// Option はClientの設定を変更する関数。
type Option func(*Client)

// WithHTTPClient は内部で使用するHTTPクライアントを差し替える。
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout はHTTPクライアントのタイムアウトを設定する。
// 0以下の値は無視する。
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithLogger はロガーを設定する。
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithRenewalCoalescing は同時に発生したトークン更新をまとめるかを設定する。
// 既定では有効。無効にすると401を受けた呼び出しがそれぞれ更新を行う。
func WithRenewalCoalescing(enabled bool) Option {
	return func(c *Client) {
		c.coalesce = enabled
	}
}

// WithRegisterer はPrometheusカウンタの登録先を設定する。
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *Client) {
		if reg != nil {
			c.metrics = newMetrics(reg)
		}
	}
}

// New は新しいHTTPクライアントを生成する。
// baseURLにはバックエンドAPIのベースURL（例: "https://api.example.com/"）を指定する。
func New(baseURL string, store credential.Store, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		baseURL:  baseURL,
		store:    store,
		logger:   zap.NewNop(),
		coalesce: true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Request は送信するリクエストの内容。
// Bodyはバイト列で保持するため、トークン更新後に同じ内容で再送できる。
type Request struct {
	// Method はHTTPメソッド。空の場合はGET。
	Method string
	// Header は追加するリクエストヘッダー。Authorizationは上書きされる。
	Header http.Header
	// Body はリクエストボディ。
	Body []byte
}

// NewJSONRequest はbodyをJSONにシリアライズしたRequestを生成する。
// bodyがnilの場合はボディなしになる。
func NewJSONRequest(method string, body any) (Request, error) {
	req := Request{Method: method}
	if body == nil {
		return req, nil
	}
	b, err := json.Marshal(body)
	if err != nil {
		return Request{}, fmt.Errorf("リクエストボディのシリアライズに失敗: %w", err)
	}
	req.Body = b
	return req, nil
}

// Do は保存済みのアクセストークンを付与してリクエストを送信する。
//
// 401以外のレスポンスはそのまま返す。401の場合はリフレッシュトークンで
// アクセストークンを更新し、新しいトークンで1回だけ再送して、その結果を
// ステータスに関わらず返す。リフレッシュトークンがない場合や更新が拒否された
// 場合は *SessionExpiredError を返す。拒否時は保存済みの両トークンを削除する。
// 通信エラーは再送せず、保存済みのトークンも変更しない。
func (c *Client) Do(ctx context.Context, path string, req Request) (*http.Response, error) {
	pair, err := credential.Load(ctx, c.store)
	if err != nil {
		c.metrics.request(outcomeFailed)
		return nil, fmt.Errorf("認証情報の読み込みに失敗: %w", err)
	}

	resp, err := c.dispatch(ctx, path, req, bearer(pair.Access))
	if err != nil {
		c.metrics.request(outcomeFailed)
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		c.metrics.request(outcomePassed)
		return resp, nil
	}
	discard(resp)

	if !pair.HasRefresh() {
		c.logger.Info("[Gateway] リフレッシュトークンがないためセッションを終了します", zap.String("path", path))
		c.metrics.request(outcomeExpired)
		return nil, &SessionExpiredError{}
	}

	access, err := c.renew(ctx, pair.Refresh)
	if err != nil {
		if IsSessionExpired(err) {
			c.metrics.request(outcomeExpired)
		} else {
			c.metrics.request(outcomeFailed)
		}
		return nil, err
	}

	retried, err := c.dispatch(ctx, path, req, bearer(access))
	if err != nil {
		c.metrics.request(outcomeFailed)
		return nil, err
	}
	c.logger.Debug("[Gateway] トークン更新後に再送しました",
		zap.String("path", path),
		zap.Int("status", retried.StatusCode),
	)
	c.metrics.request(outcomeRenewed)
	return retried, nil
}

// Send は認証ヘッダーを付与せずにリクエストを送信する。
// ログイン・新規登録・公開APIの呼び出しに使用し、トークン更新は行わない。
func (c *Client) Send(ctx context.Context, path string, req Request) (*http.Response, error) {
	return c.dispatch(ctx, path, req, "")
}

// renew はアクセストークンを更新する。
// 同時更新をまとめる設定の場合、同じリフレッシュトークンでの更新は1回だけ実行される。
func (c *Client) renew(ctx context.Context, refresh string) (string, error) {
	if !c.coalesce {
		return c.renewOnce(ctx, refresh)
	}

	ch := c.renewals.DoChan(refresh, func() (any, error) {
		// 待機中の他の呼び出しのため、最初の呼び出し元のキャンセルでは中断しない
		return c.renewOnce(context.WithoutCancel(ctx), refresh)
	})

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("トークン更新の待機が中断されました: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		if res.Shared {
			c.logger.Debug("[Gateway] 進行中のトークン更新結果を共有しました")
		}
		return res.Val.(string), nil
	}
}

// refreshRequest はトークン更新リクエストの本文。
type refreshRequest struct {
	Refresh string `json:"refresh"`
}

// refreshResponse はトークン更新レスポンスの本文。
type refreshResponse struct {
	Access string `json:"access"`
}

// renewOnce はトークン更新エンドポイントを1回呼び出し、新しいアクセストークンを保存する。
func (c *Client) renewOnce(ctx context.Context, refresh string) (string, error) {
	req, err := NewJSONRequest(http.MethodPost, refreshRequest{Refresh: refresh})
	if err != nil {
		return "", err
	}

	resp, err := c.dispatch(ctx, RefreshPath, req, "")
	if err != nil {
		c.metrics.renewal(renewalFailed)
		return "", fmt.Errorf("トークン更新に失敗: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.metrics.renewal(renewalRejected)
		c.logger.Warn("[Gateway] トークン更新が拒否されたため認証情報を削除します", zap.Int("status", resp.StatusCode))
		expired := &SessionExpiredError{RenewalStatus: resp.StatusCode}
		if err := credential.Clear(ctx, c.store); err != nil {
			return "", errors.Join(expired, err)
		}
		return "", expired
	}

	var payload refreshResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		c.metrics.renewal(renewalFailed)
		return "", fmt.Errorf("%w: %w", ErrInvalidRenewalResponse, err)
	}
	if payload.Access == "" {
		c.metrics.renewal(renewalFailed)
		return "", fmt.Errorf("%w: accessが空です", ErrInvalidRenewalResponse)
	}

	if err := c.store.Set(ctx, credential.KeyAccess, payload.Access); err != nil {
		c.metrics.renewal(renewalFailed)
		return "", fmt.Errorf("アクセストークンの保存に失敗: %w", err)
	}

	c.metrics.renewal(renewalSuccess)
	c.logger.Info("[Gateway] アクセストークンを更新しました")
	return payload.Access, nil
}

// dispatch はHTTPリクエストを組み立てて送信する共通処理。
// authorizationが空でない場合はAuthorizationヘッダーとして最後に設定する。
func (c *Client) dispatch(ctx context.Context, path string, req Request, authorization string) (*http.Response, error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.url(path), body)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	for key, values := range req.Header {
		httpReq.Header.Del(key)
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	if authorization != "" {
		httpReq.Header.Set("Authorization", authorization)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの送信に失敗: %w", err)
	}

	c.logger.Debug("[Gateway] レスポンスを受信しました",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
	)
	return resp, nil
}

// url はベースURLとパスを1つのスラッシュで連結する。
func (c *Client) url(path string) string {
	return strings.TrimRight(c.baseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

// bearer はアクセストークンからAuthorizationヘッダーの値を作る。
// トークンがない場合もヘッダーは送信し、値は "Bearer null" になる。
func bearer(access string) string {
	if access == "" {
		return "Bearer null"
	}
	return "Bearer " + access
}

// discard はレスポンス本文を読み捨てて閉じる。
func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDiscardBytes))
	_ = resp.Body.Close()
}
