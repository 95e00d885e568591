package router

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"

	"shophub.store/storefront/pkg/global"
	"shophub.store/storefront/pkg/models"
	"shophub.store/storefront/pkg/orders"
	"shophub.store/storefront/pkg/payu"
)

// InitiatePayment signs gateway parameters for an order the caller owns.
// The amount must equal the order total so a tampered client cannot pay less.
func (s *Server) InitiatePayment(c *gin.Context) {
	var req payu.PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	orderID, ok := parseID(c, "transactionId", req.TransactionID)
	if !ok {
		return
	}

	order, err := s.deps.Orders.Get(c.Request.Context(), currentUser(c), orderID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if order.PaymentStatus != models.PaymentPending {
		c.JSON(http.StatusConflict, global.ErrorResponse("Order is not awaiting payment", []global.ValidationError{
			{Field: "transactionId", Message: "Payment status is " + string(order.PaymentStatus), Code: "not_pending"},
		}))
		return
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil || !amount.Equal(decimal.NewFromFloat(order.Total).Round(2)) {
		c.JSON(http.StatusBadRequest, global.ErrorResponse("Amount does not match order total", []global.ValidationError{
			{Field: "amount", Message: "Amount must equal the order total", Code: "amount_mismatch"},
		}))
		return
	}

	signed, err := s.deps.Gateway.Sign(req)
	if err != nil {
		s.respondError(c, err)
		return
	}

	// Browsers without the SPA get the self-submitting form directly.
	if c.NegotiateFormat(gin.MIMEJSON, gin.MIMEHTML) == gin.MIMEHTML {
		c.Status(http.StatusOK)
		c.Header("Content-Type", "text/html; charset=utf-8")
		if err := payu.RenderForm(c.Writer, signed); err != nil {
			s.logger.Error("failed to render payment form", zap.Error(err))
		}
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(signed))
}

func (s *Server) PaymentSuccess(c *gin.Context) {
	s.handleCallback(c, true)
}

func (s *Server) PaymentFailure(c *gin.Context) {
	s.handleCallback(c, false)
}

// handleCallback verifies the gateway post, settles the order and sends the
// browser back to the storefront checkout page.
func (s *Server) handleCallback(c *gin.Context, successRoute bool) {
	if err := c.Request.ParseForm(); err != nil {
		s.redirectCheckout(c, false, "", "invalid_callback")
		return
	}
	cb := s.deps.Gateway.ParseCallback(c.Request.PostForm)
	txnID := c.Param("txnid")

	orderID, err := bson.ObjectIDFromHex(txnID)
	if err != nil {
		s.logger.Warn("payment callback for unknown transaction", zap.String("txnid", txnID))
		s.redirectCheckout(c, false, "", "invalid_transaction")
		return
	}

	outcome := orders.PaymentOutcome{
		OrderID:   orderID,
		GatewayID: cb.MihPayID,
		Mode:      cb.Mode,
		BankRef:   cb.BankRefNum,
		BankCode:  cb.BankCode,
	}
	if amt, err := decimal.NewFromString(cb.Fields.Amount); err == nil {
		outcome.Amount = amt.InexactFloat64()
	}

	// The settle must finish even if the browser goes away.
	ctx := context.WithoutCancel(c.Request.Context())

	verifyErr := s.deps.Gateway.Verify(cb)
	if verifyErr == nil && cb.Fields.TxnID != txnID {
		verifyErr = global.ErrGatewaySignatureMismatch
	}
	// An unverified post says nothing about the payment; the order stays
	// pending for the signed callback.
	if verifyErr != nil {
		s.deps.Orders.RejectCallback(outcome, verifyErr)
		s.redirectCheckout(c, false, txnID, "signature_mismatch")
		return
	}

	if successRoute && cb.Succeeded() {
		order, err := s.deps.Orders.ConfirmPayment(ctx, outcome)
		if err != nil {
			s.logger.Error("failed to confirm payment", zap.String("order_id", txnID), zap.Error(err))
			s.redirectCheckout(c, false, txnID, "confirmation_failed")
			return
		}
		if !order.HasBeenPaid() {
			// An earlier callback already failed this order.
			s.redirectCheckout(c, false, txnID, "payment_"+string(order.PaymentStatus))
			return
		}
		s.redirectCheckout(c, true, txnID, "")
		return
	}

	outcome.Reason = cb.Reason()
	order, err := s.deps.Orders.FailPayment(ctx, outcome)
	if err != nil {
		s.logger.Error("failed to record payment failure", zap.String("order_id", txnID), zap.Error(err))
	} else if order.HasBeenPaid() {
		s.redirectCheckout(c, true, txnID, "")
		return
	}
	s.redirectCheckout(c, false, txnID, outcome.Reason)
}

func (s *Server) redirectCheckout(c *gin.Context, success bool, orderID, reason string) {
	q := url.Values{}
	if success {
		q.Set("status", "success")
	} else {
		q.Set("status", "failure")
		q.Set("error", reason)
	}
	if orderID != "" {
		q.Set("orderId", orderID)
	}
	c.Redirect(http.StatusFound, strings.TrimRight(s.cfg.FrontendURL, "/")+"/checkout?"+q.Encode())
}
