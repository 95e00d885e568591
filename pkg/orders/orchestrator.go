package orders

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"

	"shophub.store/storefront/pkg/global"
	"shophub.store/storefront/pkg/models"
)

// Orchestrator turns a checkout request into a persisted order.
type Orchestrator struct {
	products ProductStore
	orders   OrderStore
	users    UserStore
	cache    CacheInvalidator
	logger   *zap.Logger
	now      func() time.Time
}

func NewOrchestrator(products ProductStore, orders OrderStore, users UserStore, cache CacheInvalidator, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		products: products,
		orders:   orders,
		users:    users,
		cache:    cache,
		logger:   logger,
		now:      time.Now,
	}
}

// demand is the total quantity requested for one product across all lines.
type demand struct {
	id      bson.ObjectID
	product *models.Product
	qty     int
}

// Create validates every line, reserves stock for all of them, then persists
// the order. Nothing is written unless every line can be fulfilled, and a
// failure after stock was reserved gives that stock back.
func (o *Orchestrator) Create(ctx context.Context, userID bson.ObjectID, req models.CreateOrderRequest) (*models.Order, error) {
	demands, err := o.validate(ctx, req)
	if err != nil {
		orderRejections.WithLabelValues(rejectionReason(err)).Inc()
		return nil, err
	}

	if err := o.reserve(ctx, demands); err != nil {
		orderRejections.WithLabelValues(rejectionReason(err)).Inc()
		return nil, err
	}

	order := o.buildOrder(userID, req, demands)
	if err := o.orders.InsertOrder(ctx, order); err != nil {
		o.release(ctx, demands, "order insert failed")
		orderRejections.WithLabelValues("upstream").Inc()
		return nil, upstream("insert order", err)
	}

	txn := models.Transaction{
		OrderID:       order.ID,
		Amount:        order.Total,
		Status:        order.PaymentStatus,
		PaymentMethod: order.PaymentMethod,
		Date:          order.CreatedAt,
	}
	if err := o.users.AppendOrder(ctx, userID, txn, order.ShippingInfo); err != nil {
		// The order is already the source of truth; the user record catches up on the next order.
		o.logger.Error("failed to append order to user",
			zap.String("user_id", userID.Hex()),
			zap.String("order_id", order.ID.Hex()),
			zap.Error(err),
		)
	}

	o.invalidate(ctx, userID.Hex(), demands)
	ordersCreated.Inc()
	o.logger.Info("order created",
		zap.String("order_id", order.ID.Hex()),
		zap.String("user_id", userID.Hex()),
		zap.Int("items", order.GetItemCount()),
		zap.Float64("total", order.Total),
	)
	return order, nil
}

// validate checks shape, existence and stock for every line in input order
// without side effects.
func (o *Orchestrator) validate(ctx context.Context, req models.CreateOrderRequest) ([]*demand, error) {
	if len(req.Items) == 0 {
		return nil, invalid("order must contain at least one item")
	}
	for _, v := range []float64{req.Total, req.Tax, req.Shipping, req.Discount} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, invalid("order amounts must be non-negative")
		}
	}

	var ordered []*demand
	byID := make(map[bson.ObjectID]*demand)
	for i, item := range req.Items {
		if item.Quantity < 1 {
			return nil, invalid("item %d: quantity must be at least 1", i)
		}
		id, err := bson.ObjectIDFromHex(item.Product)
		if err != nil {
			return nil, invalid("item %d: invalid product id %q", i, item.Product)
		}

		d, seen := byID[id]
		if !seen {
			p, err := o.products.FindProduct(ctx, id)
			if errors.Is(err, global.ErrNotFound) {
				return nil, fmt.Errorf("%w: product %s", global.ErrNotFound, item.Product)
			}
			if err != nil {
				return nil, upstream("find product", err)
			}
			d = &demand{id: id, product: p}
			byID[id] = d
			ordered = append(ordered, d)
		}
		d.qty += item.Quantity

		if d.product.StockCount < d.qty {
			return nil, &InsufficientStockError{ProductID: item.Product, Name: d.product.Name, Remaining: d.product.StockCount}
		}
	}
	return ordered, nil
}

// reserve decrements each product conditionally. If any decrement loses a
// race, everything reserved so far is released.
func (o *Orchestrator) reserve(ctx context.Context, demands []*demand) error {
	for i, d := range demands {
		ok, err := o.products.DecrementStock(ctx, d.id, d.qty)
		if err != nil {
			o.release(ctx, demands[:i], "stock decrement failed")
			return upstream("decrement stock", err)
		}
		if ok {
			continue
		}

		o.release(ctx, demands[:i], "stock changed during checkout")
		remaining := 0
		if fresh, err := o.products.FindProduct(ctx, d.id); err == nil {
			remaining = fresh.StockCount
		}
		return &InsufficientStockError{ProductID: d.id.Hex(), Name: d.product.Name, Remaining: remaining}
	}
	return nil
}

// release gives back stock for demands. It runs on a context detached from
// the request so a cancelled caller cannot strand reserved units.
func (o *Orchestrator) release(ctx context.Context, demands []*demand, reason string) {
	if len(demands) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	for _, d := range demands {
		if err := o.products.IncrementStock(ctx, d.id, d.qty); err != nil {
			o.logger.Error("failed to release reserved stock",
				zap.String("product_id", d.id.Hex()),
				zap.Int("quantity", d.qty),
				zap.String("reason", reason),
				zap.Error(err),
			)
			continue
		}
		stockCompensations.Inc()
	}
}

func (o *Orchestrator) buildOrder(userID bson.ObjectID, req models.CreateOrderRequest, demands []*demand) *models.Order {
	products := make(map[bson.ObjectID]*models.Product, len(demands))
	for _, d := range demands {
		products[d.id] = d.product
	}

	items := make([]models.OrderItem, 0, len(req.Items))
	for _, it := range req.Items {
		id, _ := bson.ObjectIDFromHex(it.Product)
		p := products[id]
		item := models.OrderItem{
			Product:         id,
			Name:            p.Name,
			Quantity:        it.Quantity,
			Price:           it.Price,
			Image:           it.Image,
			SelectedOptions: it.SelectedOptions,
		}
		if item.Image == "" {
			item.Image = p.PrimaryImage()
		}
		items = append(items, item)
	}

	shipping := req.ShippingInfo
	shipping.ApplyDefaults()

	status := req.PaymentStatus
	if status == "" {
		status = models.PaymentPending
	}
	method := req.PaymentMethod
	if method == "" {
		method = models.DefaultPaymentMethod
	}

	now := o.now()
	return &models.Order{
		ID:            bson.NewObjectID(),
		User:          userID,
		Items:         items,
		ShippingInfo:  shipping,
		Total:         req.Total,
		Tax:           req.Tax,
		Shipping:      req.Shipping,
		Discount:      req.Discount,
		PaymentStatus: status,
		Status:        models.OrderPending,
		PaymentMethod: method,
		TransactionID: req.TransactionID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func (o *Orchestrator) invalidate(ctx context.Context, userID string, demands []*demand) {
	if o.cache == nil {
		return
	}
	ids := make([]string, len(demands))
	for i, d := range demands {
		ids[i] = d.id.Hex()
	}
	if err := o.cache.InvalidateProducts(ctx, ids...); err != nil {
		o.logger.Warn("failed to invalidate product cache", zap.Error(err))
	}
	if err := o.cache.InvalidateCart(ctx, userID); err != nil {
		o.logger.Warn("failed to invalidate cart cache", zap.Error(err))
	}
}

// Get returns an order the caller owns.
func (o *Orchestrator) Get(ctx context.Context, userID, orderID bson.ObjectID) (*models.Order, error) {
	order, err := o.orders.FindOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.IsOwnedBy(userID) {
		return nil, global.ErrUnauthorized
	}
	return order, nil
}

// List returns a page of the caller's orders, newest first.
func (o *Orchestrator) List(ctx context.Context, userID bson.ObjectID, page, limit int) (models.OrderPage, error) {
	page, limit = global.NormalizePage(page, limit)
	orders, total, err := o.orders.ListOrders(ctx, userID, page, limit)
	if err != nil {
		return models.OrderPage{}, upstream("list orders", err)
	}
	if orders == nil {
		orders = []models.Order{}
	}
	return models.OrderPage{
		Orders: orders,
		Total:  total,
		Page:   page,
		Pages:  global.PageCount(total, limit),
	}, nil
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, global.ErrInvalidRequest):
		return "invalid"
	case errors.Is(err, global.ErrNotFound):
		return "not_found"
	case errors.Is(err, global.ErrInsufficientStock):
		return "insufficient_stock"
	default:
		return "upstream"
	}
}
