package options

import (
	"context"

	oesvc "xstock-options/internal/application/optionevents"
	optsvc "xstock-options/internal/application/options"
	pricingsvc "xstock-options/internal/application/pricing"
	txsvc "xstock-options/internal/application/transactions"
	"xstock-options/internal/middleware"
	"xstock-options/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Handlers struct {
	Service      *optsvc.Service
	Pricing      *pricingsvc.Service
	Events       *oesvc.Service
	Transactions *txsvc.Service
}

type listForSaleRequest struct {
	AskPrice uint64 `json:"ask_price"`
}

// POST /api/v1/options/create-covered-call
func (h *Handlers) CreateCoveredCall(c *fiber.Ctx) error {
	account := middleware.GetAccount(c)
	if account == nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	var in optsvc.CreateInput
	if err := c.BodyParser(&in); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	in.Seller = account.AccountID

	view, err := h.Service.Create(c.UserContext(), in)
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.SuccessCreated(c, "Covered call created successfully", view, nil)
}

// POST /api/v1/options/:id/list-for-sale
func (h *Handlers) ListForSale(c *fiber.Ctx) error {
	var req listForSaleRequest
	if err := c.BodyParser(&req); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	return h.transition(c, "Option listed for sale", func(ctx context.Context, id, caller uuid.UUID) (*optsvc.OptionView, error) {
		return h.Service.ListForSale(ctx, id, caller, req.AskPrice)
	})
}

// POST /api/v1/options/:id/cancel-listing
func (h *Handlers) CancelListing(c *fiber.Ctx) error {
	return h.transition(c, "Listing cancelled", h.Service.CancelListing)
}

// POST /api/v1/options/:id/buy
func (h *Handlers) Buy(c *fiber.Ctx) error {
	return h.transition(c, "Option purchased successfully", h.Service.Buy)
}

// POST /api/v1/options/:id/exercise
func (h *Handlers) Exercise(c *fiber.Ctx) error {
	return h.transition(c, "Option exercised successfully", h.Service.Exercise)
}

// POST /api/v1/options/:id/reclaim
func (h *Handlers) Reclaim(c *fiber.Ctx) error {
	return h.transition(c, "Collateral reclaimed successfully", h.Service.Reclaim)
}

// GET /api/v1/options/:id
func (h *Handlers) GetOption(c *fiber.Ctx) error {
	id, err := optionID(c)
	if err != nil {
		return response.Error(c, "Invalid option id format", fiber.StatusBadRequest, nil)
	}
	view, err := h.Service.Get(c.UserContext(), id)
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, "Option fetched successfully", view, nil)
}

// GET /api/v1/options/:id/risk
func (h *Handlers) GetRisk(c *fiber.Ctx) error {
	id, err := optionID(c)
	if err != nil {
		return response.Error(c, "Invalid option id format", fiber.StatusBadRequest, nil)
	}
	view, err := h.Pricing.Risk(c.UserContext(), id)
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, "Option risk computed successfully", view, nil)
}

// GET /api/v1/options/:id/events
func (h *Handlers) GetEvents(c *fiber.Ctx) error {
	id, err := optionID(c)
	if err != nil {
		return response.Error(c, "Invalid option id format", fiber.StatusBadRequest, nil)
	}
	events, err := h.Events.GetOptionEvents(c.UserContext(), id)
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, "Option events fetched successfully", events, nil)
}

// GET /api/v1/options/:id/transactions
func (h *Handlers) GetTransactions(c *fiber.Ctx) error {
	id, err := optionID(c)
	if err != nil {
		return response.Error(c, "Invalid option id format", fiber.StatusBadRequest, nil)
	}
	txs, err := h.Transactions.ViewOptionTransactions(c.UserContext(), id)
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, "Option transactions fetched successfully", txs, nil)
}

type transitionFunc func(ctx context.Context, id, caller uuid.UUID) (*optsvc.OptionView, error)

func (h *Handlers) transition(c *fiber.Ctx, message string, fn transitionFunc) error {
	account := middleware.GetAccount(c)
	if account == nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	id, err := optionID(c)
	if err != nil {
		return response.Error(c, "Invalid option id format", fiber.StatusBadRequest, nil)
	}
	view, err := fn(c.UserContext(), id, account.AccountID)
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, message, view, nil)
}

func optionID(c *fiber.Ctx) (uuid.UUID, error) {
	return uuid.Parse(c.Params("id"))
}
