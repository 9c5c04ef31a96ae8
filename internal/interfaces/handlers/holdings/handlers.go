package holdings

import (
	holdsvc "xstock-options/internal/application/holdings"
	"xstock-options/internal/middleware"
	"xstock-options/internal/pkg/response"
	"xstock-options/internal/pkg/units"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Handlers struct {
	Service *holdsvc.Service
}

type holdingView struct {
	Asset          string          `json:"asset"`
	Balance        uint64          `json:"balance"`
	DisplayBalance decimal.Decimal `json:"display_balance"`
}

// DepositRequest is the faucet body. Amount is in base units.
type DepositRequest struct {
	AccountID uuid.UUID `json:"account_id"`
	Asset     string    `json:"asset"`
	Amount    uint64    `json:"amount"`
}

// GET /api/v1/holdings
func (h *Handlers) ViewHoldings(c *fiber.Ctx) error {
	account := middleware.GetAccount(c)
	if account == nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	rows, err := h.Service.ViewHoldings(c.UserContext(), account.AccountID)
	if err != nil {
		return response.DomainError(c, err)
	}
	out := make([]holdingView, 0, len(rows))
	for _, r := range rows {
		out = append(out, holdingView{
			Asset:          r.Asset,
			Balance:        r.Balance,
			DisplayBalance: units.ToDisplay(r.Balance, units.DefaultDecimals),
		})
	}
	return response.Success(c, "Holdings fetched successfully", out, nil)
}

// POST /api/v1/holdings/deposit (admin)
func (h *Handlers) Deposit(c *fiber.Ctx) error {
	var req DepositRequest
	if err := c.BodyParser(&req); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	holding, err := h.Service.Deposit(c.UserContext(), req.AccountID, req.Asset, req.Amount)
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.SuccessCreated(c, "Deposit recorded successfully", holding, nil)
}
