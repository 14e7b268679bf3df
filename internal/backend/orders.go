package backend

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Olatundeawo/ordora/internal/money"
	"github.com/Olatundeawo/ordora/internal/storefront"
	"github.com/Olatundeawo/ordora/pkg/middleware"
)

// handleCreateOrder は注文を作成するハンドラを返す。
func (s *Server) handleCreateOrder() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Items []storefront.OrderItem `json:"items"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			detail(c, http.StatusBadRequest, "リクエストボディが不正です。")
			return
		}
		if len(req.Items) == 0 {
			fieldErrors(c, map[string][]string{"items": {"商品を1つ以上指定してください。"}})
			return
		}
		for _, it := range req.Items {
			if it.Quantity <= 0 {
				fieldErrors(c, map[string][]string{"items": {fmt.Sprintf("商品 %d の数量は1以上で指定してください。", it.Product)}})
				return
			}
		}

		o, err := s.state.createOrder(middleware.GetUserID(c), req.Items)
		switch {
		case errors.Is(err, errNotFound):
			fieldErrors(c, map[string][]string{"items": {"存在しない商品が含まれています。"}})
			return
		case errors.Is(err, errOutOfStock):
			fieldErrors(c, map[string][]string{"items": {"在庫が不足しています。"}})
			return
		case errors.Is(err, money.ErrOverflow):
			fieldErrors(c, map[string][]string{"items": {"合計金額が上限を超えています。"}})
			return
		case err != nil:
			s.stateError(c, err)
			return
		}

		s.logger.Info("[Backend] 注文を作成しました",
			zap.Int64("order_id", o.ID),
			zap.Int64("customer", o.Customer),
			zap.String("total_price", o.TotalPrice),
		)
		c.JSON(http.StatusCreated, o)
	}
}

// handleCustomerOrders はログイン中の顧客の注文を返すハンドラを返す。
func (s *Server) handleCustomerOrders() gin.HandlerFunc {
	return func(c *gin.Context) {
		customer := middleware.GetUserID(c)
		c.JSON(http.StatusOK, s.state.listOrders(func(o *storefront.Order) bool {
			return o.Customer == customer
		}))
	}
}

// handleCustomerOrder はログイン中の顧客の注文を1件返すハンドラを返す。
func (s *Server) handleCustomerOrder() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		customer := middleware.GetUserID(c)
		o, err := s.state.findOrder(id, func(o *storefront.Order) bool { return o.Customer == customer })
		if err != nil {
			s.stateError(c, err)
			return
		}
		c.JSON(http.StatusOK, o)
	}
}

// handleProducerOrders はログイン中の生産者の商品を含む注文を返すハンドラを返す。
func (s *Server) handleProducerOrders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, s.state.producerOrders(middleware.GetUserID(c)))
	}
}

// handleProducerOrder はログイン中の生産者の商品を含む注文を1件返すハンドラを返す。
func (s *Server) handleProducerOrder() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		o, err := s.state.producerOrder(middleware.GetUserID(c), id)
		if err != nil {
			s.stateError(c, err)
			return
		}
		c.JSON(http.StatusOK, o)
	}
}
