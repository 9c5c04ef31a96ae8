package router

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"xstock-options/internal/config"
	"xstock-options/internal/infrastructure/cache"
	"xstock-options/internal/infrastructure/database"
	"xstock-options/internal/middleware"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const adminKey = "test-admin-key"

type client struct {
	t         *testing.T
	app       *fiber.App
	accountID string
	apiKey    string
	admin     bool
}

func (c client) do(method, path string, body interface{}) (int, map[string]interface{}) {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if c.accountID != "" {
		req.Header.Set(middleware.AccountIDHeader, c.accountID)
		req.Header.Set(middleware.APIKeyHeader, c.apiKey)
	}
	if c.admin {
		req.Header.Set(middleware.AdminKeyHeader, adminKey)
	}
	resp, err := c.app.Test(req, -1)
	require.NoError(c.t, err)
	var out map[string]interface{}
	require.NoError(c.t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func data(out map[string]interface{}) map[string]interface{} {
	d, _ := out["data"].(map[string]interface{})
	return d
}

func setupApp(t *testing.T, withRedis bool) *fiber.App {
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))

	deps := Deps{DB: db, BcryptCost: bcrypt.MinCost}
	if withRedis {
		mr := miniredis.RunT(t)
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { rdb.Close() })
		deps.Redis = cache.Wrap(rdb)
	}
	cfg := &config.Config{AdminKey: adminKey, RiskFreeRate: 0.05}
	return CreateApp(cfg, deps)
}

func register(t *testing.T, app *fiber.App, name string) client {
	admin := client{t: t, app: app, admin: true}
	status, out := admin.do("POST", "/api/v1/accounts/register", map[string]string{"name": name})
	require.Equal(t, fiber.StatusCreated, status, out)
	d := data(out)
	return client{
		t:         t,
		app:       app,
		accountID: d["account"].(map[string]interface{})["account_id"].(string),
		apiKey:    d["api_key"].(string),
	}
}

func TestEndToEnd(t *testing.T) {
	for _, withRedis := range []bool{false, true} {
		t.Run("redis="+strconv.FormatBool(withRedis), func(t *testing.T) {
			app := setupApp(t, withRedis)
			admin := client{t: t, app: app, admin: true}
			seller := register(t, app, "seller")
			alice := register(t, app, "alice")

			for _, dep := range []map[string]interface{}{
				{"account_id": seller.accountID, "asset": "xAAPL", "amount": 100_000_000},
				{"account_id": alice.accountID, "asset": "USDC", "amount": 200_000_000},
			} {
				status, out := admin.do("POST", "/api/v1/holdings/deposit", dep)
				require.Equal(t, fiber.StatusCreated, status, out)
			}

			// seller runs the xAAPL feed
			status, out := admin.do("POST", "/api/v1/oracle/feeds", map[string]interface{}{
				"asset": "xAAPL", "authority": seller.accountID, "decimals": 6,
			})
			require.Equal(t, fiber.StatusCreated, status, out)
			for _, p := range []int{148_000_000, 149_500_000, 151_000_000, 150_000_000} {
				status, out = seller.do("POST", "/api/v1/oracle/feeds/xAAPL/price", map[string]interface{}{
					"price": p, "conf": 50_000, "status": "ok",
				})
				require.Equal(t, fiber.StatusOK, status, out)
			}
			status, _ = alice.do("POST", "/api/v1/oracle/feeds/xAAPL/price", map[string]interface{}{
				"price": 1, "status": "ok",
			})
			assert.Equal(t, fiber.StatusForbidden, status)

			expiry := time.Now().Add(30 * 24 * time.Hour).Unix()
			status, out = seller.do("GET", "/api/v1/pricing/suggest/xAAPL?strike=155&amount=1000000&expiry_ts="+strconv.FormatInt(expiry, 10), nil)
			require.Equal(t, fiber.StatusOK, status, out)
			assert.Equal(t, 150.0, data(out)["spot"])

			status, out = seller.do("POST", "/api/v1/options/create-covered-call", map[string]interface{}{
				"uid": 7, "underlying_asset": "xAAPL", "quote_asset": "USDC",
				"strike": 155_000_000, "premium": 5_000_000, "amount": 1_000_000, "expiry_ts": expiry,
			})
			require.Equal(t, fiber.StatusCreated, status, out)
			id := data(out)["covered_call"].(map[string]interface{})["id"].(string)

			status, out = seller.do("POST", "/api/v1/options/"+id+"/list-for-sale", map[string]interface{}{"ask_price": 6_000_000})
			require.Equal(t, fiber.StatusOK, status, out)

			status, out = seller.do("GET", "/api/v1/marketplace/listed?asset=xAAPL", nil)
			require.Equal(t, fiber.StatusOK, status)
			assert.Len(t, out["data"], 1)

			status, out = alice.do("POST", "/api/v1/options/"+id+"/buy", nil)
			require.Equal(t, fiber.StatusOK, status, out)
			assert.Equal(t, "sold_open", data(out)["state"])

			status, out = alice.do("GET", "/api/v1/options/"+id+"/risk", nil)
			require.Equal(t, fiber.StatusOK, status, out)
			assert.Equal(t, 150.0, data(out)["spot"])
			assert.Equal(t, 155.0, data(out)["strike_per_unit"])
			assert.Equal(t, true, data(out)["implied"].(map[string]interface{})["converged"])

			status, out = alice.do("POST", "/api/v1/options/"+id+"/exercise", nil)
			require.Equal(t, fiber.StatusOK, status, out)
			assert.Equal(t, "exercised", data(out)["state"])

			status, out = alice.do("GET", "/api/v1/options/"+id, nil)
			require.Equal(t, fiber.StatusOK, status)
			assert.Equal(t, "exercised", data(out)["state"])

			status, out = alice.do("GET", "/api/v1/holdings", nil)
			require.Equal(t, fiber.StatusOK, status)
			balances := map[string]float64{}
			for _, h := range out["data"].([]interface{}) {
				m := h.(map[string]interface{})
				balances[m["asset"].(string)] = m["balance"].(float64)
			}
			assert.Equal(t, float64(1_000_000), balances["xAAPL"])
			assert.Equal(t, float64(200_000_000-6_000_000-155_000_000), balances["USDC"])

			status, out = seller.do("GET", "/api/v1/transactions", nil)
			require.Equal(t, fiber.StatusOK, status)
			assert.NotEmpty(t, out["data"])

			status, out = seller.do("GET", "/api/v1/option-events", nil)
			require.Equal(t, fiber.StatusOK, status)
			assert.Len(t, out["data"], 2)

			status, out = client{t: t, app: app}.do("GET", "/health/json", nil)
			require.Equal(t, fiber.StatusOK, status, out)
			assert.Equal(t, "ok", out["status"])
		})
	}
}

func TestUnauthenticatedRoutes(t *testing.T) {
	app := setupApp(t, false)
	anon := client{t: t, app: app}

	status, _ := anon.do("POST", "/api/v1/options/create-covered-call", map[string]interface{}{})
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, _ = anon.do("POST", "/api/v1/holdings/deposit", map[string]interface{}{})
	assert.Equal(t, fiber.StatusForbidden, status)

	status, _ = anon.do("POST", "/api/v1/pricing/quote", map[string]interface{}{
		"spot": 100, "strike": 100, "volatility": 0.2, "time": 1,
	})
	assert.Equal(t, fiber.StatusOK, status)
}

func TestRFQAndShareVaultRoutes(t *testing.T) {
	app := setupApp(t, false)
	admin := client{t: t, app: app, admin: true}
	writer := register(t, app, "writer")
	mm := register(t, app, "mm")

	for _, dep := range []map[string]interface{}{
		{"account_id": writer.accountID, "asset": "xAAPL", "amount": 2_000_000},
		{"account_id": mm.accountID, "asset": "USDC", "amount": 10_000_000},
	} {
		status, out := admin.do("POST", "/api/v1/holdings/deposit", dep)
		require.Equal(t, fiber.StatusCreated, status, out)
	}
	status, out := admin.do("POST", "/api/v1/oracle/feeds", map[string]interface{}{
		"asset": "xAAPL", "authority": writer.accountID, "decimals": 6,
	})
	require.Equal(t, fiber.StatusCreated, status, out)
	status, out = writer.do("POST", "/api/v1/oracle/feeds/xAAPL/price", map[string]interface{}{
		"price": 150_000_000, "conf": 50_000, "status": "ok",
	})
	require.Equal(t, fiber.StatusOK, status, out)

	now := time.Now()
	status, out = writer.do("POST", "/api/v1/rfqs", map[string]interface{}{
		"underlying_asset": "xAAPL", "quote_asset": "USDC",
		"expiry_ts": now.Add(7 * 24 * time.Hour).Unix(), "valid_until_ts": now.Add(time.Hour).Unix(),
		"strike": 160_000_000, "size": 1_000_000, "premium_floor": 2_000_000,
	})
	require.Equal(t, fiber.StatusCreated, status, out)
	rfqID := data(out)["id"].(string)
	assert.Equal(t, float64(150_000_000), data(out)["oracle_price"])

	status, out = admin.do("POST", "/api/v1/rfq-makers", map[string]interface{}{"account_id": mm.accountID})
	require.Equal(t, fiber.StatusCreated, status, out)
	status, out = mm.do("POST", "/api/v1/rfqs/"+rfqID+"/fill", map[string]interface{}{"premium": 2_500_000})
	require.Equal(t, fiber.StatusOK, status, out)
	assert.Equal(t, "filled", data(out)["status"])

	status, out = writer.do("GET", "/api/v1/holdings", nil)
	require.Equal(t, fiber.StatusOK, status)
	balances := map[string]float64{}
	for _, h := range out["data"].([]interface{}) {
		m := h.(map[string]interface{})
		balances[m["asset"].(string)] = m["balance"].(float64)
	}
	assert.Equal(t, float64(2_500_000), balances["USDC"])

	status, out = admin.do("POST", "/api/v1/share-vaults", map[string]interface{}{
		"asset": "xAAPL", "authority": writer.accountID, "utilization_cap_bps": 10_000,
	})
	require.Equal(t, fiber.StatusCreated, status, out)
	status, out = writer.do("POST", "/api/v1/share-vaults/xAAPL/deposit", map[string]interface{}{"amount": 1_500_000})
	require.Equal(t, fiber.StatusOK, status, out)
	status, out = writer.do("POST", "/api/v1/share-vaults/xAAPL/advance-epoch", map[string]interface{}{"premium_earned": 500_000})
	require.Equal(t, fiber.StatusOK, status, out)
	assert.Equal(t, float64(1), data(out)["epoch"])

	status, out = writer.do("GET", "/api/v1/share-vaults/xAAPL/position", nil)
	require.Equal(t, fiber.StatusOK, status, out)
	assert.Equal(t, float64(2_000_000), data(out)["value"])

	status, _ = client{t: t, app: app}.do("POST", "/api/v1/share-vaults/xAAPL/deposit", map[string]interface{}{"amount": 1})
	assert.Equal(t, fiber.StatusUnauthorized, status)
}
