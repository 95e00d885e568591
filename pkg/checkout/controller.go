// Package checkout drives a cart from shipping details through order
// creation to the payment gateway and back.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"shophub.store/storefront/pkg/cart"
	"shophub.store/storefront/pkg/global"
	"shophub.store/storefront/pkg/models"
	"shophub.store/storefront/pkg/payu"
)

const DefaultTimeout = 15 * time.Second

type Step int

const (
	StepShipping Step = iota
	StepPayment
	StepGatewayRedirect
	StepSuccess
	StepFailure
)

func (s Step) String() string {
	switch s {
	case StepShipping:
		return "shipping"
	case StepPayment:
		return "payment"
	case StepGatewayRedirect:
		return "gateway_redirect"
	case StepSuccess:
		return "success"
	case StepFailure:
		return "failure"
	}
	return "unknown"
}

var (
	ErrEmptyCart     = fmt.Errorf("%w: cart is empty", global.ErrInvalidRequest)
	ErrWrongStep     = fmt.Errorf("%w: not allowed at this checkout step", global.ErrInvalidRequest)
	ErrPaymentFailed = errors.New("payment failed")
)

// CartBridge is the part of cart.Bridge checkout needs.
type CartBridge interface {
	State() cart.State
	Session() cart.Session
	SaveForPayment(ctx context.Context) error
	RestoreAfterPayment(ctx context.Context) (cart.State, error)
	ClearAfterPayment(ctx context.Context) (cart.State, error)
}

type OrderAPI interface {
	CreateOrder(ctx context.Context, token string, req models.CreateOrderRequest) (*models.Order, error)
	GetOrder(ctx context.Context, token, id string) (*models.Order, error)
}

type PaymentAPI interface {
	InitiatePayment(ctx context.Context, token string, req payu.PaymentRequest) (payu.SignedRequest, error)
}

type Options struct {
	// SavedProfile and HasPriorOrder together let a returning buyer skip
	// the shipping form.
	SavedProfile  *models.ShippingInfo
	HasPriorOrder bool
	Timeout       time.Duration
}

type Controller struct {
	mu       sync.Mutex
	bridge   CartBridge
	orders   OrderAPI
	payments PaymentAPI
	logger   *zap.Logger
	timeout  time.Duration

	step           Step
	shipping       models.ShippingInfo
	reusingProfile bool
	order          *models.Order
	lastErr        error
}

func NewController(bridge CartBridge, orders OrderAPI, payments PaymentAPI, opts Options, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Controller{
		bridge:   bridge,
		orders:   orders,
		payments: payments,
		logger:   logger,
		timeout:  opts.Timeout,
		step:     StepShipping,
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if opts.SavedProfile != nil {
		c.shipping = *opts.SavedProfile
		if opts.HasPriorOrder {
			c.reusingProfile = true
			c.step = StepPayment
		}
	}
	return c
}

func (c *Controller) Step() Step {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.step
}

// Shipping returns the shipping details in use, read-only when a saved
// profile is being reused.
func (c *Controller) Shipping() (models.ShippingInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shipping, c.reusingProfile
}

func (c *Controller) Order() *models.Order {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order
}

// Err is the message to show on the current step, if any.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// ChangeShipping leaves a reused profile and goes back to the form. The
// entered details are kept.
func (c *Controller) ChangeShipping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.step != StepPayment {
		return ErrWrongStep
	}
	c.step = StepShipping
	c.reusingProfile = false
	c.lastErr = nil
	return nil
}

// SubmitShipping validates the form and advances to the payment step.
func (c *Controller) SubmitShipping(info models.ShippingInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.step != StepShipping {
		return ErrWrongStep
	}

	info.ApplyDefaults()
	c.shipping = info
	if errs := ValidateShipping(info); errs != nil {
		c.lastErr = errs
		return errs
	}
	c.lastErr = nil
	c.step = StepPayment
	return nil
}

// PlaceOrder snapshots the cart, creates the order and asks for signed
// gateway parameters. Any failure restores the cart and leaves the
// controller on the payment step with the error recorded. A retry after a
// failed initiation reuses the order already placed for the same cart.
func (c *Controller) PlaceOrder(ctx context.Context) (payu.SignedRequest, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.step != StepPayment {
		return payu.SignedRequest{}, ErrWrongStep
	}
	state := c.bridge.State()
	if len(state.Items) == 0 {
		c.lastErr = ErrEmptyCart
		return payu.SignedRequest{}, ErrEmptyCart
	}
	if state.IsPaymentInProgress {
		c.lastErr = cart.ErrPaymentInProgress
		return payu.SignedRequest{}, cart.ErrPaymentInProgress
	}
	token := c.bridge.Session().Token

	if err := c.bridge.SaveForPayment(ctx); err != nil {
		c.lastErr = err
		return payu.SignedRequest{}, err
	}

	req := orderRequest(state, c.shipping)
	order := c.reusableOrder(ctx, token, req)
	if order == nil {
		orderCtx, cancel := context.WithTimeout(ctx, c.timeout)
		created, err := c.orders.CreateOrder(orderCtx, token, req)
		cancel()
		if err != nil {
			return payu.SignedRequest{}, c.abort(ctx, "order creation failed", err)
		}
		order = created
	}
	c.order = order

	payCtx, cancel := context.WithTimeout(ctx, c.timeout)
	signed, err := c.payments.InitiatePayment(payCtx, token, paymentRequest(order, state, c.shipping))
	cancel()
	if err != nil {
		return payu.SignedRequest{}, c.abort(ctx, "payment initiation failed", err)
	}

	c.lastErr = nil
	c.step = StepGatewayRedirect
	return signed, nil
}

// reusableOrder returns the order from an earlier attempt that never reached
// the gateway. It still holds the stock for this cart, so placing a second
// order would compete with it. The order is reused only while the server
// still has it pending and it matches req.
func (c *Controller) reusableOrder(ctx context.Context, token string, req models.CreateOrderRequest) *models.Order {
	if c.order == nil || !sameOrder(c.order, req) {
		return nil
	}
	getCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	current, err := c.orders.GetOrder(getCtx, token, c.order.ID.Hex())
	if err != nil {
		c.logger.Warn("could not check earlier order, placing a new one",
			zap.String("order_id", c.order.ID.Hex()),
			zap.Error(err),
		)
		return nil
	}
	if current.PaymentStatus != models.PaymentPending {
		return nil
	}
	return current
}

func sameOrder(order *models.Order, req models.CreateOrderRequest) bool {
	if len(order.Items) != len(req.Items) {
		return false
	}
	if !decimal.NewFromFloat(order.Total).Round(2).Equal(decimal.NewFromFloat(req.Total).Round(2)) {
		return false
	}
	shipping := req.ShippingInfo
	shipping.ApplyDefaults()
	if order.ShippingInfo != shipping {
		return false
	}
	for i, it := range req.Items {
		got := order.Items[i]
		if got.Product.Hex() != it.Product || got.Quantity != it.Quantity || !maps.Equal(got.SelectedOptions, it.SelectedOptions) {
			return false
		}
	}
	return true
}

// abort puts the cart back after a failed attempt. The restore runs even if
// ctx was the one that timed out.
func (c *Controller) abort(ctx context.Context, msg string, cause error) error {
	c.logger.Warn(msg, zap.Error(cause))
	if _, err := c.bridge.RestoreAfterPayment(context.WithoutCancel(ctx)); err != nil {
		c.logger.Error("failed to restore cart after checkout failure", zap.Error(err))
	}
	c.lastErr = cause
	c.step = StepPayment
	return cause
}

// Resume settles the cart after the browser comes back from the gateway.
// On failure the returned error wraps ErrPaymentFailed and carries the
// gateway's reason.
func (c *Controller) Resume(ctx context.Context, ret Return) (cart.State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ret.Success {
		state, err := c.bridge.ClearAfterPayment(ctx)
		if err != nil {
			c.logger.Warn("failed to discard cart snapshot", zap.Error(err))
		}
		c.step = StepSuccess
		c.lastErr = nil
		return state, nil
	}

	state, err := c.bridge.RestoreAfterPayment(ctx)
	if err != nil {
		c.logger.Warn("failed to restore cart after payment failure", zap.Error(err))
	}
	c.step = StepFailure
	c.lastErr = fmt.Errorf("%w: %s", ErrPaymentFailed, ret.Reason)
	return state, c.lastErr
}

// Retry returns from the failure screen to the payment step.
func (c *Controller) Retry() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.step != StepFailure {
		return ErrWrongStep
	}
	c.step = StepPayment
	return nil
}

func orderRequest(state cart.State, shipping models.ShippingInfo) models.CreateOrderRequest {
	items := make([]models.OrderItemRequest, len(state.Items))
	for i, it := range state.Items {
		items[i] = models.OrderItemRequest{
			Product:         it.ProductID,
			Name:            it.Name,
			Quantity:        it.Quantity,
			Price:           it.UnitPrice,
			Image:           it.Image,
			SelectedOptions: it.SelectedOptions,
		}
	}
	return models.CreateOrderRequest{
		Items:         items,
		ShippingInfo:  shipping,
		Total:         state.Total.InexactFloat64(),
		Tax:           state.Tax.InexactFloat64(),
		Shipping:      state.Shipping.InexactFloat64(),
		Discount:      state.Discount.InexactFloat64(),
		PaymentStatus: models.PaymentPending,
		PaymentMethod: models.DefaultPaymentMethod,
	}
}

func paymentRequest(order *models.Order, state cart.State, shipping models.ShippingInfo) payu.PaymentRequest {
	names := make([]string, len(state.Items))
	for i, it := range state.Items {
		names[i] = it.Name
	}
	return payu.PaymentRequest{
		TransactionID: order.ID.Hex(),
		Amount:        state.Total.StringFixed(2),
		Description:   strings.Join(names, ", "),
		FirstName:     shipping.FirstName,
		Email:         shipping.Email,
		Phone:         shipping.Phone,
	}
}
