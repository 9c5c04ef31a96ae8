package transactions

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	txsvc "xstock-options/internal/application/transactions"
	"xstock-options/internal/auth"
	"xstock-options/internal/domain"
	"xstock-options/internal/infrastructure/database"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupTxTest(t *testing.T) (*Handlers, *gorm.DB) {
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	return &Handlers{Service: &txsvc.Service{DB: db}}, db
}

func TestGetTransactions_Unauthenticated(t *testing.T) {
	h, _ := setupTxTest(t)
	app := fiber.New()
	app.Get("/transactions", h.GetTransactions)

	resp, err := app.Test(httptest.NewRequest("GET", "/transactions", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestGetTransactions_Directions(t *testing.T) {
	h, db := setupTxTest(t)
	me, other := uuid.New(), uuid.New()
	ccID := uuid.New()
	require.NoError(t, db.Create(&domain.Transaction{Type: domain.TxDeposit, Asset: "USDC", ToAccountID: &me, Amount: 2_500_000}).Error)
	require.NoError(t, db.Create(&domain.Transaction{Type: domain.TxPremium, Asset: "USDC", FromAccountID: &me, ToAccountID: &other, Amount: 1_000_000, CoveredCallID: &ccID}).Error)
	require.NoError(t, db.Create(&domain.Transaction{Type: domain.TxDeposit, Asset: "USDC", ToAccountID: &other, Amount: 7}).Error)

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("account", &auth.AccountShape{AccountID: me, Name: "me"})
		return c.Next()
	})
	app.Get("/transactions", h.GetTransactions)

	resp, err := app.Test(httptest.NewRequest("GET", "/transactions", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var out struct {
		Data []txsvc.FormattedTx `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Len(t, out.Data, 2)
	directions := map[string]string{}
	for _, tx := range out.Data {
		directions[tx.Type] = tx.Direction
	}
	assert.Equal(t, "in", directions[domain.TxDeposit])
	assert.Equal(t, "out", directions[domain.TxPremium])
}
