package transactions

import (
	txsvc "xstock-options/internal/application/transactions"
	"xstock-options/internal/middleware"
	"xstock-options/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service *txsvc.Service
}

// GET /api/v1/transactions
func (h *Handlers) GetTransactions(c *fiber.Ctx) error {
	account := middleware.GetAccount(c)
	if account == nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	data, err := h.Service.ViewTransactions(c.UserContext(), account.AccountID)
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, "Transactions fetched successfully", data, nil)
}
