package orders

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ordersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_orders_created_total",
		Help: "Orders persisted after stock was reserved.",
	})
	orderRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_order_rejections_total",
		Help: "Order creation attempts that were rejected, by reason.",
	}, []string{"reason"})
	paymentResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_payment_callbacks_total",
		Help: "Gateway callbacks applied to orders, by result.",
	}, []string{"result"})
	stockCompensations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_stock_compensations_total",
		Help: "Stock decrements rolled back after a failed order.",
	})
)
