package storefront

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/Olatundeawo/ordora/pkg/httpclient"
)

// ErrInvalidInterval は問い合わせ間隔が0以下であることを表す。
var ErrInvalidInterval = errors.New("問い合わせ間隔は0より大きい値を指定してください")

// CreateQRPayment は注文に対するQRコード決済を作成する。
func (c *Client) CreateQRPayment(ctx context.Context, orderID int64) (httpclient.Result[Payment], error) {
	return call[Payment](ctx, c, true, http.MethodPost, pathf("goods/payments/create-qr/%d/", orderID), nil)
}

// CustomerPayments はログイン中の顧客の支払い履歴を新しい順に取得する。
func (c *Client) CustomerPayments(ctx context.Context) (httpclient.Result[[]Payment], error) {
	res, err := call[[]Payment](ctx, c, true, http.MethodGet, "goods/customers/payments/", nil)
	if err != nil || !res.OK {
		return res, err
	}
	sort.SliceStable(res.Data, func(i, j int) bool {
		return res.Data[i].CreatedAt.After(res.Data[j].CreatedAt)
	})
	return res, nil
}

// PaymentByOrder は注文の支払いを取得する。
func (c *Client) PaymentByOrder(ctx context.Context, orderID int64) (httpclient.Result[Payment], error) {
	return call[Payment](ctx, c, true, http.MethodGet, pathf("goods/payments/order/%d/", orderID), nil)
}

// PaymentStatus は参照番号で支払い状況を取得する。
func (c *Client) PaymentStatus(ctx context.Context, reference string) (httpclient.Result[PaymentStatus], error) {
	return call[PaymentStatus](ctx, c, true, http.MethodGet, pathf("goods/payments/status/%s/", url.PathEscape(reference)), nil)
}

// FilterPayments は指定した状態の支払いだけを返す。statusが空の場合はすべて返す。
func FilterPayments(payments []Payment, status PaymentState) []Payment {
	if status == "" {
		return payments
	}
	var out []Payment
	for _, p := range payments {
		if p.Status == status {
			out = append(out, p)
		}
	}
	return out
}

// WatchPayment は支払いが確定するまでintervalごとに状況を問い合わせる。
// 確定した状態（paid, successful, failed）になった時点の状況を返す。
// コンテキストがキャンセルされた場合や問い合わせが失敗した場合はエラーを返す。
// intervalが0以下の場合は問い合わせずにErrInvalidIntervalを返す。
func (c *Client) WatchPayment(ctx context.Context, reference string, interval time.Duration) (PaymentStatus, error) {
	if interval <= 0 {
		return PaymentStatus{}, fmt.Errorf("%w: %s", ErrInvalidInterval, interval)
	}
	c.logger.Info("[Storefront] 支払い状況の監視を開始します",
		zap.String("reference", reference),
		zap.Duration("interval", interval),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		res, err := c.PaymentStatus(ctx, reference)
		if err != nil {
			return PaymentStatus{}, err
		}
		if !res.OK {
			return PaymentStatus{}, fmt.Errorf("支払い状況の取得に失敗: status=%d: %s", res.Status, res.Errors.First())
		}
		if res.Data.Status.Terminal() {
			return res.Data, nil
		}

		select {
		case <-ctx.Done():
			return res.Data, ctx.Err()
		case <-ticker.C:
		}
	}
}
