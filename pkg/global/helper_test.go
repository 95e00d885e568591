package global

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDurationOrDefault(t *testing.T) {
	t.Setenv("SF_TIMEOUT", "15s")
	assert.Equal(t, 15*time.Second, GetDurationOrDefault("SF_TIMEOUT", time.Second))

	t.Setenv("SF_TIMEOUT", "30")
	assert.Equal(t, 30*time.Second, GetDurationOrDefault("SF_TIMEOUT", time.Second))

	t.Setenv("SF_TIMEOUT", "soon")
	assert.Equal(t, time.Second, GetDurationOrDefault("SF_TIMEOUT", time.Second))
}

func TestGetListOrDefault(t *testing.T) {
	t.Setenv("SF_ORIGINS", " http://a.test , ,http://b.test")
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, GetListOrDefault("SF_ORIGINS", nil))
}

func TestPagination(t *testing.T) {
	assert.Equal(t, 3, PageCount(41, 20))
	assert.Equal(t, 2, PageCount(40, 20))
	assert.Equal(t, 0, PageCount(0, 20))

	p, l := NormalizePage(0, 500)
	assert.Equal(t, 1, p)
	assert.Equal(t, 100, l)
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("PAYU_MERCHANT_KEY", "key")
	t.Setenv("PAYU_MERCHANT_SALT", "salt")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "storefront", cfg.DatabaseName)
	assert.Equal(t, "https://test.payu.in", cfg.PayU.BaseURL)

	t.Setenv("JWT_SECRET", "")
	_, err = LoadConfig()
	assert.Error(t, err)
}
