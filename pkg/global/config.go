package global

import (
	"fmt"
	"time"
)

// Config is read once at startup and handed to constructors.
type Config struct {
	Port           string
	Env            string
	StoreDriver    string
	MongoURI       string
	DatabaseName   string
	RedisAddress   string
	RedisPassword  string
	JWTSecret      string
	TokenTTL       time.Duration
	RequestTimeout time.Duration
	CORSOrigins    []string
	BackendURL     string
	FrontendURL    string
	PayU           PayUConfig
}

type PayUConfig struct {
	MerchantKey  string
	MerchantSalt string
	BaseURL      string
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func LoadConfig() (Config, error) {
	cfg := Config{
		Port:           GetEnvOrDefault("PORT", "8000"),
		Env:            GetEnvOrDefault("ENV", "development"),
		StoreDriver:    GetEnvOrDefault("STORE_DRIVER", "mongo"),
		MongoURI:       GetEnvOrDefault("MONGODB_URI", ""),
		DatabaseName:   GetEnvOrDefault("MONGODB_DATABASE", "storefront"),
		RedisAddress:   GetEnvOrDefault("REDIS_ADDRESS", "localhost:6379"),
		RedisPassword:  GetEnvOrDefault("REDIS_PASSWORD", ""),
		JWTSecret:      GetEnvOrDefault("JWT_SECRET", ""),
		TokenTTL:       GetDurationOrDefault("TOKEN_TTL", 7*24*time.Hour),
		RequestTimeout: GetDurationOrDefault("REQUEST_TIMEOUT", 10*time.Second),
		CORSOrigins:    GetListOrDefault("CORS_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}),
		BackendURL:     GetEnvOrDefault("BACKEND_URL", "http://localhost:8000"),
		FrontendURL:    GetEnvOrDefault("FRONTEND_URL", "http://localhost:5173"),
		PayU: PayUConfig{
			MerchantKey:  GetEnvOrDefault("PAYU_MERCHANT_KEY", ""),
			MerchantSalt: GetEnvOrDefault("PAYU_MERCHANT_SALT", ""),
			BaseURL:      GetEnvOrDefault("PAYU_BASE_URL", "https://test.payu.in"),
		},
	}

	if cfg.StoreDriver == "mongo" && cfg.MongoURI == "" {
		return cfg, fmt.Errorf("MONGODB_URI is not set in environment variables")
	}
	if cfg.JWTSecret == "" {
		return cfg, fmt.Errorf("JWT_SECRET is not set in environment variables")
	}
	if cfg.PayU.MerchantKey == "" || cfg.PayU.MerchantSalt == "" {
		return cfg, fmt.Errorf("PAYU_MERCHANT_KEY and PAYU_MERCHANT_SALT must be set")
	}
	return cfg, nil
}
