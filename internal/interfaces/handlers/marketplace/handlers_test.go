package marketplace

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	mktsvc "xstock-options/internal/application/marketplace"
	"xstock-options/internal/domain"
	"xstock-options/internal/infrastructure/database"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var (
	now    = time.Unix(1_700_000_000, 0)
	seller = uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	buyer  = uuid.MustParse("00000000-0000-0000-0000-00000000000b")
)

func seed(t *testing.T, db *gorm.DB, uid uint64, asset string, mutate func(*domain.CoveredCall)) {
	t.Helper()
	cc := &domain.CoveredCall{
		ID:              domain.DeriveCoveredCallID(seller, asset, uid),
		UID:             uid,
		Seller:          seller,
		UnderlyingAsset: asset,
		QuoteAsset:      "USDC",
		Strike:          150_000_000,
		Premium:         5_000_000,
		AskPrice:        5_000_000,
		Amount:          100_000_000,
		ExpiryTs:        now.Unix() + 3600,
		Version:         1,
	}
	if mutate != nil {
		mutate(cc)
	}
	require.NoError(t, db.Create(cc).Error)
}

func setupMarketplaceTest(t *testing.T) *fiber.App {
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))

	seed(t, db, 1, "xAAPL", nil)
	seed(t, db, 2, "xAAPL", func(cc *domain.CoveredCall) {
		cc.IsListed = true
		cc.AskPrice = 3_000_000
	})
	seed(t, db, 3, "xTSLA", func(cc *domain.CoveredCall) {
		cc.Buyer = &buyer
	})
	seed(t, db, 4, "xAAPL", func(cc *domain.CoveredCall) {
		cc.ExpiryTs = now.Unix() - 1
	})

	h := &Handlers{Service: &mktsvc.Service{DB: db, Now: func() time.Time { return now }}}
	app := fiber.New()
	app.Get("/options", h.GetOptions)
	app.Get("/listed", h.GetListed)
	return app
}

func get(t *testing.T, app *fiber.App, path string) (int, map[string]interface{}) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest("GET", path, nil))
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestGetOptions_Filters(t *testing.T) {
	app := setupMarketplaceTest(t)

	status, out := get(t, app, "/options")
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, out["data"], 4)

	_, out = get(t, app, "/options?asset=xTSLA")
	assert.Len(t, out["data"], 1)

	_, out = get(t, app, "/options?participant="+buyer.String())
	require.Len(t, out["data"], 1)
	assert.Equal(t, "sold_open", out["data"].([]interface{})[0].(map[string]interface{})["state"])

	_, out = get(t, app, "/options?state=listed")
	assert.Len(t, out["data"], 1)

	status, _ = get(t, app, "/options?state=bogus")
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = get(t, app, "/options?participant=nope")
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestGetListed_CheapestFirst(t *testing.T) {
	app := setupMarketplaceTest(t)

	status, out := get(t, app, "/listed?asset=xAAPL")
	require.Equal(t, fiber.StatusOK, status)
	data := out["data"].([]interface{})
	require.Len(t, data, 2)
	assert.Equal(t, float64(2), data[0].(map[string]interface{})["uid"])
	assert.Equal(t, float64(1), data[1].(map[string]interface{})["uid"])
}
