package global

import (
	"sync"

	"go.uber.org/zap"
)

var (
	logger     *zap.Logger
	loggerOnce sync.Once
)

// Logger returns the process logger, built on first use from ENV.
func Logger() *zap.Logger {
	loggerOnce.Do(func() {
		var err error
		if GetEnvOrDefault("ENV", "development") == "production" {
			logger, err = zap.NewProduction()
		} else {
			logger, err = zap.NewDevelopment()
		}
		if err != nil {
			logger = zap.NewNop()
		}
	})
	return logger
}
