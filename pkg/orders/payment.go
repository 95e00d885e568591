package orders

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"

	"shophub.store/storefront/pkg/global"
	"shophub.store/storefront/pkg/models"
)

// PaymentOutcome is a verified (or rejected) gateway result for one order.
type PaymentOutcome struct {
	OrderID   bson.ObjectID
	GatewayID string
	Amount    float64
	Mode      string
	BankRef   string
	BankCode  string
	Reason    string
}

// ConfirmPayment marks a pending order paid and confirmed. Repeated callbacks
// for an order that already left pending are ignored.
func (o *Orchestrator) ConfirmPayment(ctx context.Context, out PaymentOutcome) (*models.Order, error) {
	now := o.now()
	update := models.PaymentUpdate{
		PaymentStatus: models.PaymentPaid,
		Status:        models.OrderConfirmed,
		TransactionID: out.GatewayID,
		Details: models.PaymentDetails{
			Gateway:              models.DefaultPaymentMethod,
			GatewayTransactionID: out.GatewayID,
			Amount:               out.Amount,
			Status:               "success",
			PaidAt:               &now,
			PaymentMethod:        out.Mode,
			BankRefNum:           out.BankRef,
			BankCode:             out.BankCode,
		},
	}
	return o.settle(ctx, out.OrderID, update, "paid")
}

// FailPayment marks a pending order failed and cancelled, and returns its
// reserved stock. Stock is only returned by the call that moved the order
// out of pending.
func (o *Orchestrator) FailPayment(ctx context.Context, out PaymentOutcome) (*models.Order, error) {
	now := o.now()
	reason := out.Reason
	if reason == "" {
		reason = "payment_failed"
	}
	update := models.PaymentUpdate{
		PaymentStatus: models.PaymentFailed,
		Status:        models.OrderCancelled,
		TransactionID: out.GatewayID,
		Details: models.PaymentDetails{
			Gateway:              models.DefaultPaymentMethod,
			GatewayTransactionID: out.GatewayID,
			Amount:               out.Amount,
			Status:               "failure",
			FailedAt:             &now,
			PaymentMethod:        out.Mode,
			BankRefNum:           out.BankRef,
			BankCode:             out.BankCode,
			Error:                reason,
		},
	}
	return o.settle(ctx, out.OrderID, update, "failed")
}

// RejectCallback records a gateway post that failed verification. The order
// is left untouched so the genuine callback can still settle it.
func (o *Orchestrator) RejectCallback(out PaymentOutcome, cause error) {
	o.logger.Warn("rejecting payment callback",
		zap.String("order_id", out.OrderID.Hex()),
		zap.String("gateway_txn", out.GatewayID),
		zap.Error(cause),
	)
	paymentResults.WithLabelValues("rejected").Inc()
}

func (o *Orchestrator) settle(ctx context.Context, orderID bson.ObjectID, update models.PaymentUpdate, result string) (*models.Order, error) {
	current, err := o.findForSettle(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !current.PaymentStatus.CanTransitionTo(update.PaymentStatus) {
		return o.ignoreSettled(current), nil
	}

	// The store re-checks pending, so a concurrent callback still loses here.
	updated, err := o.orders.UpdatePayment(ctx, orderID, update)
	if err != nil {
		if errors.Is(err, global.ErrNotFound) {
			return nil, err
		}
		return nil, upstream("update payment", err)
	}

	order, err := o.findForSettle(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !updated {
		return o.ignoreSettled(order), nil
	}

	paymentResults.WithLabelValues(result).Inc()
	if update.PaymentStatus == models.PaymentFailed {
		o.restock(ctx, order)
	}
	return order, nil
}

func (o *Orchestrator) restock(ctx context.Context, order *models.Order) {
	demands := make([]*demand, 0, len(order.Items))
	byID := make(map[bson.ObjectID]*demand)
	for _, it := range order.Items {
		d, ok := byID[it.Product]
		if !ok {
			d = &demand{id: it.Product}
			byID[it.Product] = d
			demands = append(demands, d)
		}
		d.qty += it.Quantity
	}
	o.release(ctx, demands, "payment failed")
	o.invalidate(ctx, order.User.Hex(), demands)
}

func (o *Orchestrator) findForSettle(ctx context.Context, orderID bson.ObjectID) (*models.Order, error) {
	order, err := o.orders.FindOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, global.ErrNotFound) {
			return nil, err
		}
		return nil, upstream("find order", err)
	}
	return order, nil
}

func (o *Orchestrator) ignoreSettled(order *models.Order) *models.Order {
	o.logger.Info("ignoring payment callback for settled order",
		zap.String("order_id", order.ID.Hex()),
		zap.String("payment_status", string(order.PaymentStatus)),
	)
	paymentResults.WithLabelValues("duplicate").Inc()
	return order
}
