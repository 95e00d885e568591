package redis

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"

	"shophub.store/storefront/pkg/cart"
	"shophub.store/storefront/pkg/models"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := NewClient(mr.Addr(), "")
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, zap.NewNop()), mr
}

func TestProductCache_ReadThrough(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()
	product := &models.Product{ID: bson.NewObjectID(), Name: "Lamp", Category: "home", Price: 30, StockCount: 3}
	id := product.ID.Hex()

	var loads atomic.Int32
	load := func(context.Context) (*models.Product, error) {
		loads.Add(1)
		return product, nil
	}

	got, hit, err := cache.GetOrLoadProduct(ctx, id, load)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "Lamp", got.Name)

	got, hit, err = cache.GetOrLoadProduct(ctx, id, load)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 3, got.StockCount)
	assert.Equal(t, int32(1), loads.Load())

	assert.Equal(t, ProductTTL, mr.TTL("product:"+id))
	members, err := mr.List("category:home")
	require.NoError(t, err)
	assert.Equal(t, []string{id}, members)

	require.NoError(t, cache.InvalidateProducts(ctx, id))
	assert.False(t, mr.Exists("product:"+id))
	_, err = cache.GetProduct(ctx, id)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestProductCache_LoadErrorNotCached(t *testing.T) {
	cache, mr := newTestCache(t)
	boom := errors.New("boom")

	_, _, err := cache.GetOrLoadProduct(context.Background(), "abc", func(context.Context) (*models.Product, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("product:abc"))
}

func TestCartCache_SingleflightAndJitter(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	var loads atomic.Int32
	release := make(chan struct{})
	load := func(context.Context) ([]models.CartLineView, error) {
		loads.Add(1)
		<-release
		return []models.CartLineView{{LineID: "l1", Name: "Mug", UnitPrice: 8, Quantity: 2}}, nil
	}

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lines, _, err := cache.GetOrLoadCart(ctx, "u1", load)
			assert.NoError(t, err)
			assert.Len(t, lines, 1)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), loads.Load())
	ttl := mr.TTL("cart:u1")
	assert.GreaterOrEqual(t, ttl, CartTTL)
	assert.Less(t, ttl, CartTTL+cartJitter)

	lines, hit, err := cache.GetOrLoadCart(ctx, "u1", load)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "Mug", lines[0].Name)

	require.NoError(t, cache.InvalidateCart(ctx, "u1"))
	assert.False(t, mr.Exists("cart:u1"))
}

func TestCache_FailsOpenWhenRedisDown(t *testing.T) {
	cache, mr := newTestCache(t)
	mr.Close()

	lines, hit, err := cache.GetOrLoadCart(context.Background(), "u1", func(context.Context) ([]models.CartLineView, error) {
		return []models.CartLineView{{LineID: "l1"}}, nil
	})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Len(t, lines, 1)
}

func TestSessionStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := NewClient(mr.Addr(), "")
	defer client.Close()
	ctx := context.Background()

	var store cart.Storage = NewSessionStore(client, "sess-1", time.Hour)

	var items []cart.LineItem
	ok, err := store.Load(ctx, cart.StorageKey, &items)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Save(ctx, cart.StorageKey, []cart.LineItem{{LineID: "l1", Quantity: 2}}))
	assert.True(t, mr.Exists("session:sess-1:cart"))
	assert.Equal(t, time.Hour, mr.TTL("session:sess-1:cart"))

	ok, err = store.Load(ctx, cart.StorageKey, &items)
	require.NoError(t, err)
	assert.True(t, ok)
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].Quantity)

	require.NoError(t, store.Delete(ctx, cart.StorageKey))
	assert.False(t, mr.Exists("session:sess-1:cart"))
}
