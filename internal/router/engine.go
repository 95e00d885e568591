package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"

	"shophub.store/storefront/pkg/auth"
	"shophub.store/storefront/pkg/global"
	"shophub.store/storefront/pkg/models"
	"shophub.store/storefront/pkg/orders"
	"shophub.store/storefront/pkg/payu"
)

type ProductReader interface {
	FindProduct(ctx context.Context, id bson.ObjectID) (*models.Product, error)
}

type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	FindUserByID(ctx context.Context, id bson.ObjectID) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)

	GetCart(ctx context.Context, userID bson.ObjectID) ([]models.CartLine, error)
	AddCartLine(ctx context.Context, userID bson.ObjectID, line models.CartLine) (models.CartLine, error)
	UpdateCartLine(ctx context.Context, userID bson.ObjectID, lineID string, quantity int) error
	RemoveCartLine(ctx context.Context, userID bson.ObjectID, lineID string) error
	ClearCart(ctx context.Context, userID bson.ObjectID) error
}

type Cache interface {
	GetOrLoadProduct(ctx context.Context, id string, load func(context.Context) (*models.Product, error)) (*models.Product, bool, error)
	GetOrLoadCart(ctx context.Context, userID string, load func(context.Context) ([]models.CartLineView, error)) ([]models.CartLineView, bool, error)
	InvalidateProducts(ctx context.Context, ids ...string) error
	InvalidateCart(ctx context.Context, userID string) error
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the HTTP layer is built from.
type Deps struct {
	Products ProductReader
	Users    UserStore
	Orders   *orders.Orchestrator
	Cache    Cache
	Gateway  *payu.Gateway
	Auth     *auth.Service
	// Health lists the backends /api/health pings, by name.
	Health map[string]Pinger
	Logger *zap.Logger
}

type Server struct {
	cfg    global.Config
	deps   Deps
	logger *zap.Logger
}

func NewServer(cfg global.Config, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{cfg: cfg, deps: deps, logger: logger}
}

// Engine builds the gin engine with every route registered.
func (s *Server) Engine() *gin.Engine {
	if s.cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	registerValidators(s.logger)

	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(s.logger), RequestMetrics())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     s.cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length", "X-Cache"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	api.Use(RequestTimeout(s.cfg.RequestTimeout))
	{
		api.GET("/health", s.HealthCheck)

		authGroup := api.Group("/auth")
		{
			authGroup.POST("/signup", s.Signup)
			authGroup.POST("/login", s.Login)
			authGroup.GET("/profile", AuthMiddleware(s.deps.Auth), s.Profile)
		}

		products := api.Group("/products")
		{
			products.GET("/:id", s.GetProduct)
		}

		cart := api.Group("/user/cart")
		cart.Use(AuthMiddleware(s.deps.Auth))
		{
			cart.GET("", s.GetCart)
			cart.POST("", s.AddToCart)
			cart.PUT("", s.UpdateCartItem)
			cart.DELETE("", s.RemoveFromCart)
		}

		orderGroup := api.Group("/orders")
		orderGroup.Use(AuthMiddleware(s.deps.Auth))
		{
			orderGroup.POST("", s.CreateOrder)
			orderGroup.GET("", s.ListOrders)
			orderGroup.GET("/:id", s.GetOrder)
		}

		payments := api.Group("/payments/payu")
		{
			payments.POST("/initiate", AuthMiddleware(s.deps.Auth), s.InitiatePayment)
			// The gateway posts these from the buyer's browser; the hash
			// is the authentication.
			payments.POST("/success/:txnid", s.PaymentSuccess)
			payments.POST("/failure/:txnid", s.PaymentFailure)
		}
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, global.ErrorResponse("Route not found", nil))
	})
	return router
}
