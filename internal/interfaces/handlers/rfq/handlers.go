package rfq

import (
	"context"

	auditsvc "xstock-options/internal/application/audit"
	rfqsvc "xstock-options/internal/application/rfq"
	"xstock-options/internal/domain"
	"xstock-options/internal/middleware"
	"xstock-options/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Handlers struct {
	Service *rfqsvc.Service
	Audit   *auditsvc.Service
}

type fillRequest struct {
	Premium uint64 `json:"premium"`
}

type makerRequest struct {
	AccountID uuid.UUID `json:"account_id"`
}

// POST /api/v1/rfqs
func (h *Handlers) Create(c *fiber.Ctx) error {
	account := middleware.GetAccount(c)
	if account == nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	var in rfqsvc.CreateInput
	if err := c.BodyParser(&in); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	in.Creator = account.AccountID

	r, err := h.Service.Create(c.UserContext(), in)
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.SuccessCreated(c, "RFQ created successfully", r, nil)
}

// GET /api/v1/rfqs?status=&asset=&creator=&limit=
func (h *Handlers) List(c *fiber.Ctx) error {
	var f rfqsvc.Filter
	if s := c.Query("status"); s != "" {
		st, ok := domain.ParseRFQStatus(s)
		if !ok {
			return response.Error(c, "status must be open, filled, cancelled or expired", fiber.StatusBadRequest, nil)
		}
		f.Status = st
	}
	if s := c.Query("creator"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			return response.Error(c, "Invalid creator id format", fiber.StatusBadRequest, nil)
		}
		f.Creator = id
	}
	f.UnderlyingAsset = c.Query("asset")
	f.Limit = c.QueryInt("limit", rfqsvc.DefaultListLimit)
	if f.Limit <= 0 || f.Limit > rfqsvc.DefaultListLimit {
		return response.Error(c, "limit must be within 1..100", fiber.StatusBadRequest, nil)
	}

	rfqs, err := h.Service.List(c.UserContext(), f)
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, "RFQs fetched successfully", rfqs, fiber.Map{"count": len(rfqs)})
}

// GET /api/v1/rfqs/:id
func (h *Handlers) Get(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Invalid RFQ id format", fiber.StatusBadRequest, nil)
	}
	r, err := h.Service.Get(c.UserContext(), id)
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, "RFQ fetched successfully", r, nil)
}

// POST /api/v1/rfqs/:id/fill
func (h *Handlers) Fill(c *fiber.Ctx) error {
	var req fillRequest
	if err := c.BodyParser(&req); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	return h.act(c, "RFQ filled successfully", func(ctx context.Context, id, caller uuid.UUID) (*domain.RFQ, error) {
		return h.Service.Fill(ctx, id, caller, req.Premium)
	})
}

// POST /api/v1/rfqs/:id/cancel
func (h *Handlers) Cancel(c *fiber.Ctx) error {
	return h.act(c, "RFQ cancelled", h.Service.Cancel)
}

// POST /api/v1/rfqs/:id/expire: anyone may close an RFQ whose window ended.
func (h *Handlers) Expire(c *fiber.Ctx) error {
	return h.act(c, "RFQ expired", h.Service.Expire)
}

// POST /api/v1/rfqs/:id/admin-cancel (admin)
func (h *Handlers) AdminCancel(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Invalid RFQ id format", fiber.StatusBadRequest, nil)
	}
	r, err := h.Service.AdminCancel(c.UserContext(), id)
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, "RFQ cancelled by admin", r, nil)
}

// GET /api/v1/rfqs/:id/events
func (h *Handlers) Events(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Invalid RFQ id format", fiber.StatusBadRequest, nil)
	}
	if _, err := h.Service.Get(c.UserContext(), id); err != nil {
		return response.DomainError(c, err)
	}
	events, err := h.Audit.Events(c.UserContext(), domain.SubjectRFQ, id)
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, "RFQ events fetched successfully", events, nil)
}

// POST /api/v1/rfq-makers (admin)
func (h *Handlers) AddMaker(c *fiber.Ctx) error {
	var req makerRequest
	if err := c.BodyParser(&req); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	m, err := h.Service.AddMaker(c.UserContext(), req.AccountID)
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.SuccessCreated(c, "Maker registered successfully", m, nil)
}

// POST /api/v1/rfq-makers/:account/deactivate (admin)
func (h *Handlers) DeactivateMaker(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("account"))
	if err != nil {
		return response.Error(c, "Invalid account id format", fiber.StatusBadRequest, nil)
	}
	m, err := h.Service.DeactivateMaker(c.UserContext(), id)
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, "Maker deactivated", m, nil)
}

// GET /api/v1/rfq-makers/:account
func (h *Handlers) GetMaker(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("account"))
	if err != nil {
		return response.Error(c, "Invalid account id format", fiber.StatusBadRequest, nil)
	}
	m, err := h.Service.GetMaker(c.UserContext(), id)
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, "Maker fetched successfully", m, nil)
}

type actionFunc func(ctx context.Context, id, caller uuid.UUID) (*domain.RFQ, error)

func (h *Handlers) act(c *fiber.Ctx, message string, fn actionFunc) error {
	account := middleware.GetAccount(c)
	if account == nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Invalid RFQ id format", fiber.StatusBadRequest, nil)
	}
	r, err := fn(c.UserContext(), id, account.AccountID)
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, message, r, nil)
}
