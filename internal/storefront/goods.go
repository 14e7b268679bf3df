package storefront

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/Olatundeawo/ordora/internal/money"
	"github.com/Olatundeawo/ordora/pkg/httpclient"
)

// pathf はパスを組み立てる。
func pathf(format string, args ...any) string {
	return fmt.Sprintf(format, args...)
}

// ListGoods は全商品の一覧を取得する。認証は不要。
func (c *Client) ListGoods(ctx context.Context) (httpclient.Result[[]Product], error) {
	return call[[]Product](ctx, c, false, http.MethodGet, "goods/", nil)
}

// GetProduct は商品を1件取得する。
func (c *Client) GetProduct(ctx context.Context, id int64) (httpclient.Result[Product], error) {
	return call[Product](ctx, c, true, http.MethodGet, pathf("goods/%d/", id), nil)
}

// MyGoods はログイン中の生産者が出品した商品を取得する。
func (c *Client) MyGoods(ctx context.Context) (httpclient.Result[[]Product], error) {
	return call[[]Product](ctx, c, true, http.MethodGet, "goods/me/", nil)
}

// CreateProduct は商品を出品する。
func (c *Client) CreateProduct(ctx context.Context, in ProductInput) (httpclient.Result[Product], error) {
	if errs := validateProduct(in); len(errs) > 0 {
		return httpclient.Invalid[Product](errs), nil
	}
	return call[Product](ctx, c, true, http.MethodPost, "goods/create/", in)
}

// UpdateProduct は出品済みの商品を更新する。
func (c *Client) UpdateProduct(ctx context.Context, id int64, in ProductInput) (httpclient.Result[Product], error) {
	if errs := validateProduct(in); len(errs) > 0 {
		return httpclient.Invalid[Product](errs), nil
	}
	return call[Product](ctx, c, true, http.MethodPut, pathf("goods/%d/update/", id), in)
}

// DeleteProduct は出品済みの商品を削除する。
func (c *Client) DeleteProduct(ctx context.Context, id int64) (httpclient.Result[struct{}], error) {
	return call[struct{}](ctx, c, true, http.MethodDelete, pathf("goods/%d/delete/", id), nil)
}

// validateProduct は商品の入力内容を検証する。
func validateProduct(in ProductInput) httpclient.FieldErrors {
	errs := httpclient.FieldErrors{}
	if strings.TrimSpace(in.Name) == "" {
		errs.Add("name", msgRequired)
	}
	if strings.TrimSpace(in.Description) == "" {
		errs.Add("description", msgRequired)
	}
	if strings.TrimSpace(in.Price) == "" {
		errs.Add("price", msgRequired)
	} else if _, err := money.Parse(in.Price); err != nil {
		errs.Add("price", "有効な金額を入力してください。")
	}
	if in.Quality < 0 {
		errs.Add("quality", "0以上の数を入力してください。")
	}
	return errs
}
