package main

import (
	"context"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"shophub.store/storefront/internal/router"
	"shophub.store/storefront/pkg/auth"
	"shophub.store/storefront/pkg/global"
	"shophub.store/storefront/pkg/memstore"
	"shophub.store/storefront/pkg/mongo"
	"shophub.store/storefront/pkg/orders"
	"shophub.store/storefront/pkg/payu"
	"shophub.store/storefront/pkg/redis"
)

type store interface {
	orders.ProductStore
	orders.OrderStore
	orders.UserStore
	router.UserStore
}

func main() {
	envErr := godotenv.Load()
	logger := global.Logger()
	defer func() { _ = logger.Sync() }()
	if envErr != nil {
		logger.Warn("no .env file loaded, using process environment", zap.Error(envErr))
	}

	cfg, err := global.LoadConfig()
	if err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	health := map[string]router.Pinger{}

	var db store
	switch cfg.StoreDriver {
	case "memory":
		logger.Warn("using in-memory store; data is lost on restart")
		db = memstore.New()
	case "mongo":
		client, err := mongo.Connect(ctx, cfg.MongoURI)
		if err != nil {
			logger.Fatal("failed to connect to MongoDB", zap.Error(err))
		}
		defer func() { _ = client.Disconnect(context.Background()) }()
		logger.Info("connected to MongoDB", zap.String("database", cfg.DatabaseName))

		database := client.Database(cfg.DatabaseName)
		if err := mongo.EnsureIndexes(ctx, database, logger); err != nil {
			logger.Fatal("failed to ensure indexes", zap.Error(err))
		}
		ms := mongo.NewStore(database)
		health["database"] = ms
		db = ms
	default:
		logger.Fatal("unknown STORE_DRIVER", zap.String("driver", cfg.StoreDriver))
	}

	redisClient := redis.NewClient(cfg.RedisAddress, cfg.RedisPassword)
	defer redisClient.Close()
	cache := redis.NewCache(redisClient, logger.Named("cache"))
	pingCtx, pingCancel := global.GetDefaultTimer()
	defer pingCancel()
	if err := cache.Ping(pingCtx); err != nil {
		// The cache fails open, so the API can serve without it.
		logger.Warn("redis unreachable at startup", zap.String("address", cfg.RedisAddress), zap.Error(err))
	}
	health["cache"] = cache

	srv := router.NewServer(cfg, router.Deps{
		Products: db,
		Users:    db,
		Orders:   orders.NewOrchestrator(db, db, db, cache, logger.Named("orders")),
		Cache:    cache,
		Gateway: payu.NewGateway(payu.Config{
			MerchantKey:  cfg.PayU.MerchantKey,
			MerchantSalt: cfg.PayU.MerchantSalt,
			BaseURL:      cfg.PayU.BaseURL,
			CallbackURL:  cfg.BackendURL,
		}),
		Auth:   auth.NewService(cfg.JWTSecret, cfg.TokenTTL),
		Health: health,
		Logger: logger.Named("http"),
	})

	logger.Info("server is running", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
	if err := srv.Engine().Run(":" + cfg.Port); err != nil {
		logger.Error("failed to run server", zap.Error(err))
		os.Exit(1)
	}
}
