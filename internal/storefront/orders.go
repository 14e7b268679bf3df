package storefront

import (
	"context"
	"net/http"

	"github.com/Olatundeawo/ordora/pkg/httpclient"
)

// createOrderRequest は注文作成リクエストの本文。
type createOrderRequest struct {
	Items []OrderItem `json:"items"`
}

// CreateOrder は明細から注文を作成する。
func (c *Client) CreateOrder(ctx context.Context, items []OrderItem) (httpclient.Result[Order], error) {
	errs := httpclient.FieldErrors{}
	if len(items) == 0 {
		errs.Add("items", "カートが空です。")
	}
	for _, it := range items {
		if it.Product <= 0 {
			errs.Add("items.product", "商品IDが不正です。")
		}
		if it.Quantity <= 0 {
			errs.Add("items.quantity", "数量は1以上である必要があります。")
		}
	}
	if len(errs) > 0 {
		return httpclient.Invalid[Order](errs), nil
	}

	return call[Order](ctx, c, true, http.MethodPost, "goods/create/order/", createOrderRequest{Items: items})
}

// CustomerOrders はログイン中の顧客の注文一覧を取得する。
func (c *Client) CustomerOrders(ctx context.Context) (httpclient.Result[[]Order], error) {
	return call[[]Order](ctx, c, true, http.MethodGet, "goods/customer/order/", nil)
}

// CustomerOrder はログイン中の顧客の注文を1件取得する。
func (c *Client) CustomerOrder(ctx context.Context, id int64) (httpclient.Result[Order], error) {
	return call[Order](ctx, c, true, http.MethodGet, pathf("goods/customer/order/%d/", id), nil)
}

// ProducerOrders はログイン中の生産者の商品を含む注文一覧を取得する。
func (c *Client) ProducerOrders(ctx context.Context) (httpclient.Result[[]Order], error) {
	return call[[]Order](ctx, c, true, http.MethodGet, "goods/producer/order/", nil)
}

// ProducerOrder はログイン中の生産者の商品を含む注文を1件取得する。
func (c *Client) ProducerOrder(ctx context.Context, id int64) (httpclient.Result[Order], error) {
	return call[Order](ctx, c, true, http.MethodGet, pathf("goods/producer/order/%d/", id), nil)
}

// ProducerDashboard は出品数と注文数を集計する。
// どちらかの取得に失敗した場合はその結果をそのまま返す。
func (c *Client) ProducerDashboard(ctx context.Context) (httpclient.Result[Dashboard], error) {
	goods, err := c.MyGoods(ctx)
	if err != nil {
		return httpclient.Result[Dashboard]{}, err
	}
	if !goods.OK {
		return httpclient.Result[Dashboard]{Status: goods.Status, Errors: goods.Errors}, nil
	}

	orders, err := c.ProducerOrders(ctx)
	if err != nil {
		return httpclient.Result[Dashboard]{}, err
	}
	if !orders.OK {
		return httpclient.Result[Dashboard]{Status: orders.Status, Errors: orders.Errors}, nil
	}

	d := Dashboard{Products: len(goods.Data), Orders: len(orders.Data)}
	for _, o := range orders.Data {
		if o.Status == OrderPending {
			d.PendingOrders++
		}
	}
	return httpclient.Result[Dashboard]{OK: true, Status: orders.Status, Data: d}, nil
}
