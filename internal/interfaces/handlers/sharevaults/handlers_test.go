package sharevaults

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	auditsvc "xstock-options/internal/application/audit"
	"xstock-options/internal/application/holdings"
	svsvc "xstock-options/internal/application/sharevaults"
	"xstock-options/internal/auth"
	"xstock-options/internal/domain"
	"xstock-options/internal/infrastructure/database"
	"xstock-options/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var (
	keeper    = uuid.MustParse("00000000-0000-0000-0000-0000000000c1")
	depositor = uuid.MustParse("00000000-0000-0000-0000-0000000000c2")
)

func setupShareVaultTest(t *testing.T) *fiber.App {
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	for _, id := range []uuid.UUID{keeper, depositor} {
		require.NoError(t, db.Create(&domain.Account{AccountID: id, Name: id.String()[30:], APIKeyHash: "unused"}).Error)
	}
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		if err := holdings.Credit(tx, keeper, "xAAPL", 250_000); err != nil {
			return err
		}
		return holdings.Credit(tx, depositor, "xAAPL", 1_000_000)
	}))

	ts := time.Unix(1_700_000_000, 0)
	h := &Handlers{
		Service: &svsvc.Service{DB: db, Now: func() time.Time {
			ts = ts.Add(time.Hour)
			return ts
		}},
		Audit: &auditsvc.Service{DB: db},
	}
	app := fiber.New()
	// tests pick the caller with a header instead of API keys
	asCaller := func(c *fiber.Ctx) error {
		id, err := uuid.Parse(c.Get("X-Test-Account"))
		if err == nil {
			c.Locals("account", &auth.AccountShape{AccountID: id})
		}
		return c.Next()
	}
	app.Post("/share-vaults", middleware.RequireAdmin("admin"), h.Create)
	app.Get("/share-vaults/:asset", h.Get)
	app.Get("/share-vaults/:asset/position", asCaller, h.Position)
	app.Post("/share-vaults/:asset/deposit", asCaller, h.Deposit)
	app.Post("/share-vaults/:asset/withdrawals", asCaller, h.RequestWithdrawal)
	app.Post("/share-vaults/:asset/withdrawals/process", asCaller, h.ProcessWithdrawal)
	app.Post("/share-vaults/:asset/advance-epoch", asCaller, h.AdvanceEpoch)
	app.Get("/share-vaults/:asset/events", h.Events)
	return app
}

func call(t *testing.T, app *fiber.App, method, path string, body interface{}, headers map[string]string) (int, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func as(id uuid.UUID) map[string]string {
	return map[string]string{"X-Test-Account": id.String()}
}

func code(body map[string]interface{}) interface{} {
	return body["error"].(map[string]interface{})["code"]
}

func TestShareVaultLifecycle(t *testing.T) {
	app := setupShareVaultTest(t)
	admin := map[string]string{middleware.AdminKeyHeader: "admin"}
	create := map[string]interface{}{"asset": "xAAPL", "authority": keeper, "utilization_cap_bps": 5_000}

	status, _ := call(t, app, "POST", "/share-vaults", create, nil)
	assert.Equal(t, fiber.StatusForbidden, status)
	status, body := call(t, app, "POST", "/share-vaults", create, admin)
	require.Equal(t, fiber.StatusCreated, status, body)
	assert.Equal(t, "1", body["data"].(map[string]interface{})["share_price"])
	status, _ = call(t, app, "POST", "/share-vaults", create, admin)
	assert.Equal(t, fiber.StatusConflict, status)

	status, body = call(t, app, "POST", "/share-vaults/xAAPL/deposit", map[string]interface{}{"amount": 1_000_000}, as(depositor))
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, float64(1_000_000), body["data"].(map[string]interface{})["minted"])

	status, body = call(t, app, "POST", "/share-vaults/xAAPL/withdrawals", map[string]interface{}{"shares": 2_000_000}, as(depositor))
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)
	assert.Equal(t, "InsufficientShares", code(body))

	status, body = call(t, app, "POST", "/share-vaults/xAAPL/withdrawals", map[string]interface{}{"shares": 500_000}, as(depositor))
	require.Equal(t, fiber.StatusCreated, status, body)

	status, body = call(t, app, "POST", "/share-vaults/xAAPL/withdrawals/process", nil, as(depositor))
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "EpochNotSettled", code(body))

	status, _ = call(t, app, "POST", "/share-vaults/xAAPL/advance-epoch", map[string]interface{}{"premium_earned": 250_000}, as(depositor))
	assert.Equal(t, fiber.StatusForbidden, status)
	status, body = call(t, app, "POST", "/share-vaults/xAAPL/advance-epoch", map[string]interface{}{"premium_earned": 250_000}, as(keeper))
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, "1.25", body["data"].(map[string]interface{})["share_price"])

	status, body = call(t, app, "POST", "/share-vaults/xAAPL/withdrawals/process", nil, as(depositor))
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, float64(625_000), body["data"].(map[string]interface{})["amount"])

	status, body = call(t, app, "GET", "/share-vaults/xAAPL/position", nil, as(depositor))
	require.Equal(t, fiber.StatusOK, status)
	pos := body["data"].(map[string]interface{})
	assert.Equal(t, float64(500_000), pos["shares"])
	assert.Equal(t, float64(625_000), pos["value"])
	assert.Nil(t, pos["pending_withdrawal"])

	status, body = call(t, app, "GET", "/share-vaults/xAAPL", nil, nil)
	require.Equal(t, fiber.StatusOK, status)
	v := body["data"].(map[string]interface{})
	assert.Equal(t, float64(625_000), v["total_assets"])
	assert.Equal(t, float64(312_500), v["deployable"])

	status, body = call(t, app, "GET", "/share-vaults/xAAPL/events", nil, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, body["data"], 5)
}

func TestShareVault_Errors(t *testing.T) {
	app := setupShareVaultTest(t)

	status, _ := call(t, app, "GET", "/share-vaults/xTSLA", nil, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	status, _ = call(t, app, "GET", "/share-vaults/xTSLA/events", nil, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	status, _ = call(t, app, "POST", "/share-vaults/xAAPL/deposit", map[string]interface{}{"amount": 1}, nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	status, _ = call(t, app, "GET", "/share-vaults/xAAPL/position", nil, nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
}
