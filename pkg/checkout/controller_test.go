package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"shophub.store/storefront/pkg/cart"
	"shophub.store/storefront/pkg/global"
	"shophub.store/storefront/pkg/memstore"
	"shophub.store/storefront/pkg/models"
	"shophub.store/storefront/pkg/orders"
	"shophub.store/storefront/pkg/payu"
)

const token = "tok-1"

// backend plays the REST server: it resolves the token and calls the
// orchestrator and gateway directly.
type backend struct {
	orch     *orders.Orchestrator
	gateway  *payu.Gateway
	userID   bson.ObjectID
	orderErr error
	payErr   error
	block    bool
	created  int
}

func (b *backend) CreateOrder(ctx context.Context, tok string, req models.CreateOrderRequest) (*models.Order, error) {
	if tok != token {
		return nil, global.ErrUnauthenticated
	}
	if b.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if b.orderErr != nil {
		return nil, b.orderErr
	}
	b.created++
	return b.orch.Create(ctx, b.userID, req)
}

func (b *backend) GetOrder(ctx context.Context, tok, id string) (*models.Order, error) {
	if tok != token {
		return nil, global.ErrUnauthenticated
	}
	orderID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, global.ErrInvalidRequest
	}
	return b.orch.Get(ctx, b.userID, orderID)
}

func (b *backend) InitiatePayment(_ context.Context, tok string, req payu.PaymentRequest) (payu.SignedRequest, error) {
	if b.payErr != nil {
		return payu.SignedRequest{}, b.payErr
	}
	return b.gateway.Sign(req)
}

type emptyRemote struct{}

func (emptyRemote) GetCart(context.Context, string) ([]cart.LineItem, error) { return nil, nil }
func (emptyRemote) AddItem(context.Context, string, cart.LineItem) error     { return nil }
func (emptyRemote) UpdateItem(context.Context, string, string, int) error    { return nil }
func (emptyRemote) RemoveItem(context.Context, string, string) error         { return nil }
func (emptyRemote) ClearCart(context.Context, string) error                  { return nil }

type fixture struct {
	store   *memstore.Store
	storage cart.Storage
	api     *backend
	product *models.Product
	userID  bson.ObjectID
}

func newFixture(t *testing.T, stock int) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memstore.New()

	product := &models.Product{Name: "Tee", Price: 25, StockCount: stock}
	require.NoError(t, store.InsertProduct(ctx, product))
	user := &models.User{Name: "Asha", Email: "asha@example.com"}
	require.NoError(t, store.CreateUser(ctx, user))

	storage, err := cart.NewFileStorage(t.TempDir())
	require.NoError(t, err)

	return &fixture{
		store:   store,
		storage: storage,
		product: product,
		userID:  user.ID,
		api: &backend{
			orch: orders.NewOrchestrator(store, store, store, nil, nil),
			gateway: payu.NewGateway(payu.Config{
				MerchantKey:  "gtKFFx",
				MerchantSalt: "eCwWELxi",
				BaseURL:      "https://test.payu.in",
				CallbackURL:  "http://localhost:8000",
			}),
			userID: user.ID,
		},
	}
}

// bridge starts a fresh session, as a page load would.
func (f *fixture) bridge(t *testing.T) *cart.Bridge {
	t.Helper()
	b := cart.NewBridge(cart.Session{Token: token, UserID: f.userID.Hex()}, f.storage, emptyRemote{}, nil, nil)
	b.Hydrate(context.Background())
	return b
}

func (f *fixture) filledBridge(t *testing.T) *cart.Bridge {
	t.Helper()
	ctx := context.Background()
	b := f.bridge(t)
	_, err := b.AddItem(ctx, cart.ProductSnapshot{ID: f.product.ID.Hex(), Name: "Tee", Price: 25}, 2, nil)
	require.NoError(t, err)
	_, err = b.ApplyCoupon(ctx, "SAVE10")
	require.NoError(t, err)
	return b
}

func shippingInfo() models.ShippingInfo {
	return models.ShippingInfo{
		FirstName: "Asha",
		LastName:  "Rao",
		Email:     "asha@example.com",
		Phone:     "+91 98765 43210",
		Address:   "12 MG Road",
		City:      "Pune",
		State:     "MH",
		ZipCode:   "411001",
	}
}

func (f *fixture) stock(t *testing.T) int {
	t.Helper()
	p, err := f.store.FindProduct(context.Background(), f.product.ID)
	require.NoError(t, err)
	return p.StockCount
}

func TestCheckout_EndToEndSuccess(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()
	b := f.filledBridge(t)

	before := b.State()
	assert.Equal(t, "50.00", before.Subtotal.StringFixed(2))
	assert.Equal(t, "5.00", before.Discount.StringFixed(2))
	assert.Equal(t, "4.00", before.Tax.StringFixed(2))
	assert.Equal(t, "9.99", before.Shipping.StringFixed(2))
	assert.Equal(t, "58.99", before.Total.StringFixed(2))

	c := NewController(b, f.api, f.api, Options{}, nil)
	assert.Equal(t, StepShipping, c.Step())
	require.NoError(t, c.SubmitShipping(shippingInfo()))
	assert.Equal(t, StepPayment, c.Step())

	signed, err := c.PlaceOrder(ctx)
	require.NoError(t, err)
	assert.Equal(t, StepGatewayRedirect, c.Step())
	assert.True(t, b.State().IsPaymentInProgress)

	order := c.Order()
	require.NotNil(t, order)
	assert.Equal(t, order.ID.Hex(), signed.TxnID)
	assert.Equal(t, "58.99", signed.Amount)
	assert.Equal(t, "Tee", signed.ProductInfo)
	assert.Equal(t, "https://test.payu.in/_payment", signed.Action)
	assert.Equal(t, 58.99, order.Total)
	assert.Equal(t, 8, f.stock(t))

	// The browser comes back as a fresh page load.
	returned := f.bridge(t)
	assert.True(t, returned.State().IsPaymentInProgress)
	c2 := NewController(returned, f.api, f.api, Options{}, nil)

	state, err := c2.Resume(ctx, ParseReturn(url.Values{"status": {"success"}, "orderId": {order.ID.Hex()}}))
	require.NoError(t, err)
	assert.Equal(t, StepSuccess, c2.Step())
	assert.Empty(t, state.Items)
	assert.False(t, state.IsPaymentInProgress)

	var snap cart.Snapshot
	found, err := f.storage.Load(ctx, cart.SnapshotKey, &snap)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCheckout_GatewayFailureRestoresCart(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()
	b := f.filledBridge(t)
	before := b.State()

	c := NewController(b, f.api, f.api, Options{}, nil)
	require.NoError(t, c.SubmitShipping(shippingInfo()))
	_, err := c.PlaceOrder(ctx)
	require.NoError(t, err)

	returned := f.bridge(t)
	c2 := NewController(returned, f.api, f.api, Options{}, nil)
	state, err := c2.Resume(ctx, ParseReturn(url.Values{"status": {"failure"}, "error": {"card_declined"}}))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPaymentFailed)
	assert.Contains(t, err.Error(), "card_declined")
	assert.Equal(t, StepFailure, c2.Step())

	require.Len(t, state.Items, 1)
	assert.Equal(t, 2, state.Items[0].Quantity)
	require.NotNil(t, state.Coupon)
	assert.Equal(t, "SAVE10", state.Coupon.Code)
	assert.True(t, before.Total.Equal(state.Total))
	assert.False(t, state.IsPaymentInProgress)

	require.NoError(t, c2.Retry())
	assert.Equal(t, StepPayment, c2.Step())
}

func TestCheckout_OrderFailureRestoresCart(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	b := f.filledBridge(t)

	c := NewController(b, f.api, f.api, Options{}, nil)
	require.NoError(t, c.SubmitShipping(shippingInfo()))

	_, err := c.PlaceOrder(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, global.ErrInsufficientStock)
	assert.Contains(t, err.Error(), "Only 1 left")
	assert.Equal(t, StepPayment, c.Step())
	assert.ErrorIs(t, c.Err(), global.ErrInsufficientStock)

	state := b.State()
	assert.False(t, state.IsPaymentInProgress)
	require.Len(t, state.Items, 1)
	assert.Equal(t, "58.99", state.Total.StringFixed(2))
	assert.Equal(t, 1, f.stock(t))

	info, _ := c.Shipping()
	assert.Equal(t, "Pune", info.City)
}

func TestCheckout_PaymentInitiationFailureRestoresCart(t *testing.T) {
	f := newFixture(t, 10)
	f.api.payErr = fmt.Errorf("%w: gateway unreachable", global.ErrUpstreamFailure)
	b := f.filledBridge(t)

	c := NewController(b, f.api, f.api, Options{}, nil)
	require.NoError(t, c.SubmitShipping(shippingInfo()))

	_, err := c.PlaceOrder(context.Background())
	assert.ErrorIs(t, err, global.ErrUpstreamFailure)
	assert.Equal(t, StepPayment, c.Step())
	assert.False(t, b.State().IsPaymentInProgress)
	assert.Len(t, b.State().Items, 1)
}

func TestCheckout_RetryAfterInitiationFailureReusesOrder(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()
	f.api.payErr = fmt.Errorf("%w: gateway unreachable", global.ErrUpstreamFailure)
	b := f.filledBridge(t)

	c := NewController(b, f.api, f.api, Options{}, nil)
	require.NoError(t, c.SubmitShipping(shippingInfo()))

	_, err := c.PlaceOrder(ctx)
	require.ErrorIs(t, err, global.ErrUpstreamFailure)
	first := c.Order()
	require.NotNil(t, first)
	assert.Equal(t, 0, f.stock(t))

	f.api.payErr = nil
	signed, err := c.PlaceOrder(ctx)
	require.NoError(t, err)
	assert.Equal(t, StepGatewayRedirect, c.Step())
	assert.Equal(t, first.ID.Hex(), signed.TxnID)
	assert.Equal(t, 1, f.api.created)
	assert.Equal(t, 0, f.stock(t))
}

func TestCheckout_RetryPlacesNewOrderOnceEarlierOneSettled(t *testing.T) {
	f := newFixture(t, 4)
	ctx := context.Background()
	f.api.payErr = fmt.Errorf("%w: gateway unreachable", global.ErrUpstreamFailure)
	b := f.filledBridge(t)

	c := NewController(b, f.api, f.api, Options{}, nil)
	require.NoError(t, c.SubmitShipping(shippingInfo()))
	_, err := c.PlaceOrder(ctx)
	require.Error(t, err)
	first := c.Order()

	_, err = f.api.orch.FailPayment(ctx, orders.PaymentOutcome{OrderID: first.ID})
	require.NoError(t, err)

	f.api.payErr = nil
	signed, err := c.PlaceOrder(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID.Hex(), signed.TxnID)
	assert.Equal(t, 2, f.api.created)
	assert.Equal(t, 2, f.stock(t))
}

func TestCheckout_TimeoutCountsAsFailure(t *testing.T) {
	f := newFixture(t, 10)
	f.api.block = true
	b := f.filledBridge(t)

	c := NewController(b, f.api, f.api, Options{Timeout: 20 * time.Millisecond}, nil)
	require.NoError(t, c.SubmitShipping(shippingInfo()))

	_, err := c.PlaceOrder(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, b.State().IsPaymentInProgress)
	assert.Len(t, b.State().Items, 1)
}

func TestCheckout_EmptyCartRejected(t *testing.T) {
	f := newFixture(t, 10)
	c := NewController(f.bridge(t), f.api, f.api, Options{}, nil)
	require.NoError(t, c.SubmitShipping(shippingInfo()))

	_, err := c.PlaceOrder(context.Background())
	assert.ErrorIs(t, err, ErrEmptyCart)
	assert.ErrorIs(t, err, global.ErrInvalidRequest)
}

func TestCheckout_SavedProfileSkipsShipping(t *testing.T) {
	f := newFixture(t, 10)
	profile := shippingInfo()

	c := NewController(f.filledBridge(t), f.api, f.api, Options{SavedProfile: &profile, HasPriorOrder: true}, nil)
	assert.Equal(t, StepPayment, c.Step())
	info, readOnly := c.Shipping()
	assert.True(t, readOnly)
	assert.Equal(t, "Asha", info.FirstName)

	require.NoError(t, c.ChangeShipping())
	assert.Equal(t, StepShipping, c.Step())
	info, readOnly = c.Shipping()
	assert.False(t, readOnly)
	assert.Equal(t, "Asha", info.FirstName)

	// A profile without a prior order only pre-fills the form.
	c = NewController(f.filledBridge(t), f.api, f.api, Options{SavedProfile: &profile}, nil)
	assert.Equal(t, StepShipping, c.Step())
}

func TestCheckout_ShippingValidation(t *testing.T) {
	f := newFixture(t, 10)
	c := NewController(f.filledBridge(t), f.api, f.api, Options{}, nil)

	info := shippingInfo()
	info.FirstName = ""
	info.Email = "not-an-email"
	info.Phone = "abc"

	err := c.SubmitShipping(info)
	require.Error(t, err)
	assert.ErrorIs(t, err, global.ErrInvalidRequest)

	var fields FieldErrors
	require.True(t, errors.As(err, &fields))
	assert.Equal(t, "firstName is required", fields["firstName"])
	assert.Contains(t, fields, "email")
	assert.Contains(t, fields, "phone")
	assert.Len(t, fields, 3)
	assert.Equal(t, StepShipping, c.Step())

	_, err = c.PlaceOrder(context.Background())
	assert.ErrorIs(t, err, ErrWrongStep)
}

func TestParseReturn(t *testing.T) {
	tests := []struct {
		query string
		want  Return
	}{
		{"status=success&orderId=abc", Return{Success: true, OrderID: "abc"}},
		{"success=true", Return{Success: true}},
		{"status=failure&error=card_declined&orderId=abc", Return{Reason: "card_declined", OrderID: "abc"}},
		{"status=failure", Return{Reason: "payment_failed"}},
		{"status=weird", Return{Reason: "payment_failed"}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			q, err := url.ParseQuery(tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ParseReturn(q))
			assert.True(t, Returning(q))
		})
	}
	assert.False(t, Returning(url.Values{}))
}
