package backend

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/Olatundeawo/ordora/internal/storefront"
	"github.com/Olatundeawo/ordora/pkg/middleware"
)

// webhookEventCompleted は決済完了を表すwebhookイベント名。
const webhookEventCompleted = "charge.completed"

// referenceFor は注文の支払い参照番号を返す。
func referenceFor(orderID int64, at time.Time) string {
	return fmt.Sprintf("order-%d-%d", orderID, at.Unix())
}

// orderFromReference は参照番号から注文IDを取り出す。
func orderFromReference(ref string) (int64, bool) {
	rest, ok := strings.CutPrefix(ref, "order-")
	if !ok {
		return 0, false
	}
	idPart, _, _ := strings.Cut(rest, "-")
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// handleCreateQRPayment は注文のQRコード決済を作成するハンドラを返す。
func (s *Server) handleCreateQRPayment() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		p, err := s.state.createPayment(middleware.GetUserID(c), id, s.opts.CheckoutURL)
		if errors.Is(err, errAlreadyPaid) {
			detail(c, http.StatusBadRequest, "この注文は支払い済みです。")
			return
		}
		if err != nil {
			s.stateError(c, err)
			return
		}
		s.logger.Info("[Backend] QRコード決済を作成しました",
			zap.Int64("order_id", p.Order),
			zap.String("reference", p.Reference),
		)
		c.JSON(http.StatusCreated, p)
	}
}

// handleCustomerPayments はログイン中の顧客の支払いを返すハンドラを返す。
func (s *Server) handleCustomerPayments() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, s.state.customerPayments(middleware.GetUserID(c)))
	}
}

// handlePaymentByOrder は注文の支払いを返すハンドラを返す。
func (s *Server) handlePaymentByOrder() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		p, err := s.state.paymentForOrder(middleware.GetUserID(c), id)
		if err != nil {
			s.stateError(c, err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

// handlePaymentStatus は参照番号で支払い状況を返すハンドラを返す。
func (s *Server) handlePaymentStatus() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := s.state.paymentByReference(middleware.GetUserID(c), c.Param("reference"))
		if err != nil {
			s.stateError(c, err)
			return
		}
		c.JSON(http.StatusOK, storefront.PaymentStatus{Reference: p.Reference, Status: p.Status})
	}
}

// handleWebhook は決済事業者からの通知を受け取るハンドラを返す。
// charge.completed イベントのみ処理し、それ以外は ignored を返す。
func (s *Server) handleWebhook() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.opts.WebhookSecret != "" && c.GetHeader("verif-hash") != s.opts.WebhookSecret {
			detail(c, http.StatusUnauthorized, "署名が不正です。")
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil || !gjson.ValidBytes(body) {
			detail(c, http.StatusBadRequest, "リクエストボディが不正です。")
			return
		}

		payload := gjson.ParseBytes(body)
		if payload.Get("event").String() != webhookEventCompleted {
			c.JSON(http.StatusOK, gin.H{"status": "ignored"})
			return
		}

		ref := payload.Get("data.tx_ref").String()
		orderID := payload.Get("data.meta.order_id").Int()
		if orderID <= 0 {
			var ok bool
			if orderID, ok = orderFromReference(ref); !ok {
				detail(c, http.StatusBadRequest, "注文IDがありません。")
				return
			}
		}

		switch storefront.PaymentState(payload.Get("data.status").String()) {
		case storefront.PaymentSuccessful:
			err = s.state.settle(ref, orderID)
		case storefront.PaymentFailed:
			err = s.state.fail(ref)
		default:
			c.JSON(http.StatusOK, gin.H{"status": "ignored"})
			return
		}
		if errors.Is(err, errNotFound) {
			detail(c, http.StatusNotFound, "注文または支払いが見つかりません。")
			return
		}
		if err != nil {
			s.stateError(c, err)
			return
		}

		s.logger.Info("[Backend] 決済通知を処理しました",
			zap.String("reference", ref),
			zap.Int64("order_id", orderID),
			zap.String("status", payload.Get("data.status").String()),
		)
		c.JSON(http.StatusOK, gin.H{"status": "success"})
	}
}
