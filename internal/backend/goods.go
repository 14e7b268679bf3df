package backend

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Olatundeawo/ordora/internal/money"
	"github.com/Olatundeawo/ordora/internal/storefront"
	"github.com/Olatundeawo/ordora/pkg/middleware"
)

// bindProduct はリクエストボディを商品入力として読み取り検証する。
// 価格は小数2桁に正規化する。失敗した場合は400を返してfalseを返す。
func bindProduct(c *gin.Context) (storefront.ProductInput, bool) {
	var in storefront.ProductInput
	if err := c.ShouldBindJSON(&in); err != nil {
		detail(c, http.StatusBadRequest, "リクエストボディが不正です。")
		return in, false
	}

	errs := map[string][]string{}
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	if in.Name == "" {
		errs["name"] = []string{msgRequired}
	}
	if in.Description == "" {
		errs["description"] = []string{msgRequired}
	}
	if cents, err := money.Parse(in.Price); err != nil {
		errs["price"] = []string{"有効な数値を入力してください。"}
	} else {
		in.Price = money.Format(cents)
	}
	if in.Quality < 0 {
		errs["quality"] = []string{"0以上の値を入力してください。"}
	}
	if len(errs) > 0 {
		fieldErrors(c, errs)
		return in, false
	}
	return in, true
}

// handleListGoods はすべての商品を返すハンドラを返す。
func (s *Server) handleListGoods() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, s.state.listProducts(nil))
	}
}

// handleMyGoods はログイン中の生産者の商品を返すハンドラを返す。
// 生産者以外には空のリストを返す。
func (s *Server) handleMyGoods() gin.HandlerFunc {
	return func(c *gin.Context) {
		if middleware.GetRole(c) != string(storefront.RoleProducer) {
			c.JSON(http.StatusOK, []storefront.Product{})
			return
		}
		producer := middleware.GetUserID(c)
		c.JSON(http.StatusOK, s.state.listProducts(func(p *storefront.Product) bool {
			return p.Producer == producer
		}))
	}
}

// handleGetProduct は商品を1件返すハンドラを返す。
func (s *Server) handleGetProduct() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		p, err := s.state.product(id)
		if err != nil {
			s.stateError(c, err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

// handleCreateProduct は商品を登録するハンドラを返す。生産者のみ実行できる。
func (s *Server) handleCreateProduct() gin.HandlerFunc {
	return func(c *gin.Context) {
		if middleware.GetRole(c) != string(storefront.RoleProducer) {
			detail(c, http.StatusForbidden, "商品を登録できるのは生産者のみです。")
			return
		}
		in, ok := bindProduct(c)
		if !ok {
			return
		}
		p := s.state.createProduct(middleware.GetUserID(c), in)
		s.logger.Info("[Backend] 商品を登録しました", zap.Int64("product_id", p.ID), zap.Int64("producer", p.Producer))
		c.JSON(http.StatusCreated, p)
	}
}

// handleUpdateProduct は商品を更新するハンドラを返す。出品者本人のみ実行できる。
func (s *Server) handleUpdateProduct() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		in, ok := bindProduct(c)
		if !ok {
			return
		}
		p, err := s.state.updateProduct(middleware.GetUserID(c), id, in)
		if err != nil {
			s.stateError(c, err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

// handleDeleteProduct は商品を削除するハンドラを返す。出品者本人のみ実行できる。
func (s *Server) handleDeleteProduct() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		if err := s.state.deleteProduct(middleware.GetUserID(c), id); err != nil {
			s.stateError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
