package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	redisclient "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"shophub.store/storefront/pkg/models"
)

const (
	ProductTTL = 24 * time.Hour
	CartTTL    = 15 * time.Minute
	cartJitter = time.Minute
)

var ErrCacheMiss = errors.New("cache miss")

func productKey(id string) string { return fmt.Sprintf("product:%s", id) }
func cartKey(userID string) string { return fmt.Sprintf("cart:%s", userID) }

// Cache is a read-through cache for product documents and joined cart views.
// Redis failures are logged and the loader is used instead.
type Cache struct {
	client *redisclient.Client
	logger *zap.Logger
	group  singleflight.Group
}

func NewCache(client *redisclient.Client, logger *zap.Logger) *Cache {
	return &Cache{client: client, logger: logger}
}

func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Cache) getJSON(ctx context.Context, key string, v any) error {
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redisclient.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return nil
}

func (c *Cache) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	if err := c.getJSON(ctx, productKey(id), &product); err != nil {
		return nil, err
	}
	return &product, nil
}

// SetProduct stores the product and indexes it under its category list.
func (c *Cache) SetProduct(ctx context.Context, product *models.Product) error {
	productJSON, err := json.Marshal(product)
	if err != nil {
		return fmt.Errorf("failed to marshal product %s: %w", product.ID.Hex(), err)
	}

	pipe := c.client.TxPipeline()
	pipe.Set(ctx, productKey(product.ID.Hex()), productJSON, ProductTTL)
	if product.Category != "" {
		categoryKey := fmt.Sprintf("category:%s", product.Category)
		pipe.LRem(ctx, categoryKey, 0, product.ID.Hex())
		pipe.LPush(ctx, categoryKey, product.ID.Hex())
		pipe.Expire(ctx, categoryKey, ProductTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache product %s: %w", product.ID.Hex(), err)
	}
	return nil
}

// GetOrLoadProduct reports whether the product came from the cache.
// Concurrent misses for one id share a single load.
func (c *Cache) GetOrLoadProduct(ctx context.Context, id string, load func(context.Context) (*models.Product, error)) (*models.Product, bool, error) {
	product, err := c.GetProduct(ctx, id)
	if err == nil {
		return product, true, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		c.logger.Warn("product cache read failed", zap.String("product_id", id), zap.Error(err))
	}

	v, err, _ := c.group.Do(productKey(id), func() (any, error) {
		p, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if err := c.SetProduct(ctx, p); err != nil {
			c.logger.Warn("product cache write failed", zap.String("product_id", id), zap.Error(err))
		}
		return p, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.(*models.Product), false, nil
}

func (c *Cache) InvalidateProducts(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = productKey(id)
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to invalidate products: %w", err)
	}
	return nil
}

// GetOrLoadCart caches the joined cart view for CartTTL plus up to a minute
// of jitter so carts written together do not expire together.
func (c *Cache) GetOrLoadCart(ctx context.Context, userID string, load func(context.Context) ([]models.CartLineView, error)) ([]models.CartLineView, bool, error) {
	var lines []models.CartLineView
	err := c.getJSON(ctx, cartKey(userID), &lines)
	if err == nil {
		return lines, true, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		c.logger.Warn("cart cache read failed", zap.String("user_id", userID), zap.Error(err))
	}

	v, err, _ := c.group.Do(cartKey(userID), func() (any, error) {
		lines, err := load(ctx)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(lines)
		if err == nil {
			err = c.client.Set(ctx, cartKey(userID), raw, CartTTL+rand.N(cartJitter)).Err()
		}
		if err != nil {
			c.logger.Warn("cart cache write failed", zap.String("user_id", userID), zap.Error(err))
		}
		return lines, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.([]models.CartLineView), false, nil
}

func (c *Cache) InvalidateCart(ctx context.Context, userID string) error {
	if err := c.client.Del(ctx, cartKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate cart %s: %w", userID, err)
	}
	return nil
}
