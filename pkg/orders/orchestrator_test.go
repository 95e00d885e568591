package orders

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"shophub.store/storefront/pkg/global"
	"shophub.store/storefront/pkg/memstore"
	"shophub.store/storefront/pkg/models"
)

type recordingCache struct {
	mu       sync.Mutex
	products []string
	carts    []string
}

func (r *recordingCache) InvalidateProducts(_ context.Context, ids ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products = append(r.products, ids...)
	return nil
}

func (r *recordingCache) InvalidateCart(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.carts = append(r.carts, userID)
	return nil
}

// racyProducts reports a lost race for one product after validation passed.
type racyProducts struct {
	*memstore.Store
	loseOn bson.ObjectID
}

func (r *racyProducts) DecrementStock(ctx context.Context, id bson.ObjectID, qty int) (bool, error) {
	if id == r.loseOn {
		return false, nil
	}
	return r.Store.DecrementStock(ctx, id, qty)
}

type failingOrders struct {
	*memstore.Store
}

func (failingOrders) InsertOrder(context.Context, *models.Order) error {
	return errors.New("write concern timeout")
}

type failingUsers struct{}

func (failingUsers) AppendOrder(context.Context, bson.ObjectID, models.Transaction, models.ShippingInfo) error {
	return errors.New("user document locked")
}

type fixture struct {
	store *memstore.Store
	cache *recordingCache
	user  *models.User
	a, b  *models.Product
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{store: memstore.New(), cache: &recordingCache{}}

	f.user = &models.User{Name: "Asha", Email: "asha@example.com"}
	require.NoError(t, f.store.CreateUser(ctx, f.user))
	_, err := f.store.AddCartLine(ctx, f.user.ID, models.CartLine{LineID: "l1", Product: bson.NewObjectID(), Quantity: 1})
	require.NoError(t, err)

	f.a = &models.Product{Name: "A", Price: 25, StockCount: 10, Images: []string{"a.jpg"}}
	f.b = &models.Product{Name: "B", Price: 5, StockCount: 5}
	require.NoError(t, f.store.InsertProduct(ctx, f.a))
	require.NoError(t, f.store.InsertProduct(ctx, f.b))
	return f
}

func (f *fixture) orchestrator() *Orchestrator {
	return NewOrchestrator(f.store, f.store, f.store, f.cache, nil)
}

func (f *fixture) stock(t *testing.T, p *models.Product) int {
	t.Helper()
	got, err := f.store.FindProduct(context.Background(), p.ID)
	require.NoError(t, err)
	return got.StockCount
}

func (f *fixture) orderCount(t *testing.T) int64 {
	t.Helper()
	_, total, err := f.store.ListOrders(context.Background(), f.user.ID, 1, 100)
	require.NoError(t, err)
	return total
}

func shipping() models.ShippingInfo {
	return models.ShippingInfo{
		FirstName: "Asha", LastName: "Rao", Email: "asha@example.com", Phone: "9876543210",
		Address: "12 MG Road", City: "Pune", State: "MH", ZipCode: "411001",
	}
}

func request(items ...models.OrderItemRequest) models.CreateOrderRequest {
	return models.CreateOrderRequest{
		Items:        items,
		ShippingInfo: shipping(),
		Total:        49.00,
		Tax:          4.00,
		Shipping:     0,
		Discount:     5.00,
	}
}

func line(p *models.Product, qty int) models.OrderItemRequest {
	return models.OrderItemRequest{Product: p.ID.Hex(), Name: p.Name, Quantity: qty, Price: p.Price}
}

func TestCreate_Succeeds(t *testing.T) {
	f := newFixture(t)
	order, err := f.orchestrator().Create(context.Background(), f.user.ID, request(line(f.a, 2)))
	require.NoError(t, err)

	assert.Equal(t, models.PaymentPending, order.PaymentStatus)
	assert.Equal(t, models.OrderPending, order.Status)
	assert.Equal(t, models.DefaultPaymentMethod, order.PaymentMethod)
	assert.Equal(t, models.DefaultCountry, order.ShippingInfo.Country)
	require.Len(t, order.Items, 1)
	assert.Equal(t, "a.jpg", order.Items[0].Image)
	assert.Equal(t, 8, f.stock(t, f.a))

	stored, err := f.store.FindOrder(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, f.user.ID, stored.User)

	u, _ := f.store.FindUserByID(context.Background(), f.user.ID)
	assert.Equal(t, []bson.ObjectID{order.ID}, u.Orders)
	require.Len(t, u.Transactions, 1)
	assert.Equal(t, 49.00, u.Transactions[0].Amount)
	assert.Empty(t, u.Cart)
	assert.Equal(t, "Pune", u.ShippingProfile.City)

	assert.Equal(t, []string{f.a.ID.Hex()}, f.cache.products)
	assert.Equal(t, []string{f.user.ID.Hex()}, f.cache.carts)
}

func TestCreate_EmptyItems(t *testing.T) {
	f := newFixture(t)
	_, err := f.orchestrator().Create(context.Background(), f.user.ID, request())
	assert.ErrorIs(t, err, global.ErrInvalidRequest)
	assert.Zero(t, f.orderCount(t))
}

func TestCreate_BadInput(t *testing.T) {
	f := newFixture(t)
	o := f.orchestrator()

	_, err := o.Create(context.Background(), f.user.ID, request(models.OrderItemRequest{Product: "nope", Quantity: 1}))
	assert.ErrorIs(t, err, global.ErrInvalidRequest)

	_, err = o.Create(context.Background(), f.user.ID, request(line(f.a, 0)))
	assert.ErrorIs(t, err, global.ErrInvalidRequest)

	req := request(line(f.a, 1))
	req.Total = -1
	_, err = o.Create(context.Background(), f.user.ID, req)
	assert.ErrorIs(t, err, global.ErrInvalidRequest)
}

func TestCreate_MissingProductTouchesNothing(t *testing.T) {
	f := newFixture(t)
	missing := models.OrderItemRequest{Product: bson.NewObjectID().Hex(), Quantity: 1}

	_, err := f.orchestrator().Create(context.Background(), f.user.ID, request(line(f.a, 1), missing))
	assert.ErrorIs(t, err, global.ErrNotFound)
	assert.Equal(t, 10, f.stock(t, f.a))
	assert.Zero(t, f.orderCount(t))
}

func TestCreate_InsufficientStockIsAtomic(t *testing.T) {
	f := newFixture(t)

	_, err := f.orchestrator().Create(context.Background(), f.user.ID, request(line(f.a, 1), line(f.b, 100)))
	require.ErrorIs(t, err, global.ErrInsufficientStock)

	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, "B", stockErr.Name)
	assert.Equal(t, 5, stockErr.Remaining)
	assert.Contains(t, err.Error(), "5 left")

	assert.Equal(t, 10, f.stock(t, f.a))
	assert.Equal(t, 5, f.stock(t, f.b))
	assert.Zero(t, f.orderCount(t))

	u, _ := f.store.FindUserByID(context.Background(), f.user.ID)
	assert.Len(t, u.Cart, 1)
}

func TestCreate_DuplicateLinesShareStock(t *testing.T) {
	f := newFixture(t)
	small := line(f.b, 3)
	small.SelectedOptions = map[string]string{"size": "S"}
	large := line(f.b, 3)
	large.SelectedOptions = map[string]string{"size": "L"}

	_, err := f.orchestrator().Create(context.Background(), f.user.ID, request(small, large))
	assert.ErrorIs(t, err, global.ErrInsufficientStock)
	assert.Equal(t, 5, f.stock(t, f.b))
}

func TestCreate_LostRaceCompensates(t *testing.T) {
	f := newFixture(t)
	products := &racyProducts{Store: f.store, loseOn: f.b.ID}
	o := NewOrchestrator(products, f.store, f.store, nil, nil)

	_, err := o.Create(context.Background(), f.user.ID, request(line(f.a, 2), line(f.b, 1)))
	assert.ErrorIs(t, err, global.ErrInsufficientStock)
	assert.Equal(t, 10, f.stock(t, f.a))
	assert.Zero(t, f.orderCount(t))
}

func TestCreate_InsertFailureCompensates(t *testing.T) {
	f := newFixture(t)
	o := NewOrchestrator(f.store, failingOrders{f.store}, f.store, nil, nil)

	_, err := o.Create(context.Background(), f.user.ID, request(line(f.a, 2), line(f.b, 1)))
	assert.ErrorIs(t, err, global.ErrUpstreamFailure)
	assert.Equal(t, 10, f.stock(t, f.a))
	assert.Equal(t, 5, f.stock(t, f.b))
}

func TestCreate_UserUpdateFailureStillReturnsOrder(t *testing.T) {
	f := newFixture(t)
	o := NewOrchestrator(f.store, f.store, failingUsers{}, nil, nil)

	order, err := o.Create(context.Background(), f.user.ID, request(line(f.a, 1)))
	require.NoError(t, err)
	assert.NotNil(t, order)
	assert.EqualValues(t, 1, f.orderCount(t))
}

func TestCreate_ConcurrentCheckoutsNeverOversell(t *testing.T) {
	f := newFixture(t)
	o := f.orchestrator()

	var wg sync.WaitGroup
	var placed atomic.Int32
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := o.Create(context.Background(), f.user.ID, request(line(f.b, 1))); err == nil {
				placed.Add(1)
			} else {
				assert.ErrorIs(t, err, global.ErrInsufficientStock)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 5, placed.Load())
	assert.Equal(t, 0, f.stock(t, f.b))
	assert.EqualValues(t, 5, f.orderCount(t))
}

func TestGet_ChecksOwnership(t *testing.T) {
	f := newFixture(t)
	o := f.orchestrator()
	order, err := o.Create(context.Background(), f.user.ID, request(line(f.a, 1)))
	require.NoError(t, err)

	got, err := o.Get(context.Background(), f.user.ID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)

	_, err = o.Get(context.Background(), bson.NewObjectID(), order.ID)
	assert.ErrorIs(t, err, global.ErrUnauthorized)

	_, err = o.Get(context.Background(), f.user.ID, bson.NewObjectID())
	assert.ErrorIs(t, err, global.ErrNotFound)
}

func TestList_Paginates(t *testing.T) {
	f := newFixture(t)
	o := f.orchestrator()
	for range 3 {
		_, err := o.Create(context.Background(), f.user.ID, request(line(f.a, 1)))
		require.NoError(t, err)
	}

	page, err := o.List(context.Background(), f.user.ID, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.EqualValues(t, 3, page.Total)
	assert.Equal(t, 2, page.Pages)
	assert.Len(t, page.Orders, 2)

	empty, err := o.List(context.Background(), bson.NewObjectID(), 1, 20)
	require.NoError(t, err)
	assert.NotNil(t, empty.Orders)
	assert.Zero(t, empty.Pages)
}
