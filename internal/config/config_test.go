package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func baseEnv() map[string]string {
	return map[string]string{
		"DATABASE_URL": "postgres://localhost/pasteleria",
		"REDIS_URL":    "redis://localhost:6379/0",
		"JWT_SECRET":   "secret",
	}
}

func TestLoadDefaults(t *testing.T) {
	env := baseEnv()
	env["STORE_TIMEZONE"] = ""
	env["CART_TTL"] = ""
	env["WEBPAY_SANDBOX"] = ""
	cfg, err := LoadForTests(env)
	require.NoError(t, err)

	require.Equal(t, "America/Santiago", cfg.StoreTimeZone)
	require.Equal(t, "America/Santiago", cfg.Location().String())
	require.Equal(t, 7*24*time.Hour, cfg.CartTTL)
	require.Equal(t, 30*time.Second, cfg.LockTTL)
	require.True(t, cfg.WebpaySandbox)
	require.Equal(t, int64(1<<20), cfg.MaxBodyBytes)
	require.Equal(t, ":8080", cfg.HTTPAddr())
}

func TestLoadOverrides(t *testing.T) {
	env := baseEnv()
	env["PORT"] = ":9000"
	env["CORS_ALLOWED_ORIGINS"] = "https://pasteleria.cl, https://admin.pasteleria.cl ,"
	env["CART_TTL"] = "48h"
	env["CART_RATE_LIMIT"] = "10-S"
	env["STORE_TIMEZONE"] = "UTC"
	cfg, err := LoadForTests(env)
	require.NoError(t, err)

	require.Equal(t, ":9000", cfg.HTTPAddr())
	require.Equal(t, []string{"https://pasteleria.cl", "https://admin.pasteleria.cl"}, cfg.CORSAllowedOrigins)
	require.Equal(t, 48*time.Hour, cfg.CartTTL)
	require.Equal(t, "10-S", cfg.CartRateLimit)
	require.Equal(t, time.UTC, cfg.Location())
}

func TestLoadRequiredKeys(t *testing.T) {
	for _, key := range []string{"DATABASE_URL", "REDIS_URL", "JWT_SECRET"} {
		env := baseEnv()
		env[key] = ""
		_, err := LoadForTests(env)
		require.ErrorContains(t, err, key)
	}
}

func TestLoadRejectsUnknownTimeZone(t *testing.T) {
	env := baseEnv()
	env["STORE_TIMEZONE"] = "Mars/Olympus"
	_, err := LoadForTests(env)
	require.ErrorContains(t, err, "STORE_TIMEZONE")
}

func TestLoadRequiresWebpayKeysOutsideSandbox(t *testing.T) {
	env := baseEnv()
	env["WEBPAY_SANDBOX"] = "false"
	env["WEBPAY_COMMERCE_CODE"] = ""
	env["WEBPAY_API_KEY"] = ""
	_, err := LoadForTests(env)
	require.ErrorContains(t, err, "WEBPAY")

	env["WEBPAY_COMMERCE_CODE"] = "597055555532"
	env["WEBPAY_API_KEY"] = "key"
	cfg, err := LoadForTests(env)
	require.NoError(t, err)
	require.False(t, cfg.WebpaySandbox)
}
