package optionevents

import (
	oesvc "xstock-options/internal/application/optionevents"
	"xstock-options/internal/middleware"
	"xstock-options/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service *oesvc.Service
}

// GET /api/v1/option-events
func (h *Handlers) GetAccountEvents(c *fiber.Ctx) error {
	account := middleware.GetAccount(c)
	if account == nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	events, err := h.Service.GetAccountEvents(c.UserContext(), account.AccountID)
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, "Option events fetched successfully", events, nil)
}
