package bootstrap

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"xstock-options/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_SQLiteWithoutRedis(t *testing.T) {
	cfg := &config.Config{
		DatabaseDriver: "sqlite",
		DatabaseURL:    filepath.Join(t.TempDir(), "venue.db"),
		AdminKey:       "k",
		RiskFreeRate:   0.05,
	}
	app, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer app.Close()

	assert.Nil(t, app.Redis)
	resp, err := app.Fiber.Test(httptest.NewRequest("GET", "/health/json", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestNew_BadRedisURL(t *testing.T) {
	cfg := &config.Config{
		DatabaseDriver: "sqlite",
		DatabaseURL:    ":memory:",
		RedisURL:       "not-a-url://",
	}
	_, err := New(context.Background(), cfg)
	assert.Error(t, err)
}
