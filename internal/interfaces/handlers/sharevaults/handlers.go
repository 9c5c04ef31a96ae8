package sharevaults

import (
	auditsvc "xstock-options/internal/application/audit"
	svsvc "xstock-options/internal/application/sharevaults"
	"xstock-options/internal/domain"
	"xstock-options/internal/middleware"
	"xstock-options/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Handlers struct {
	Service *svsvc.Service
	Audit   *auditsvc.Service
}

type amountRequest struct {
	Amount uint64 `json:"amount"`
}

type withdrawalRequest struct {
	Shares uint64 `json:"shares"`
}

type processRequest struct {
	RequestID uuid.UUID `json:"request_id"`
}

type epochRequest struct {
	PremiumEarned uint64 `json:"premium_earned"`
}

// POST /api/v1/share-vaults (admin)
func (h *Handlers) Create(c *fiber.Ctx) error {
	var in svsvc.CreateInput
	if err := c.BodyParser(&in); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	v, err := h.Service.Create(c.UserContext(), in)
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.SuccessCreated(c, "Share vault created successfully", v, nil)
}

// GET /api/v1/share-vaults/:asset
func (h *Handlers) Get(c *fiber.Ctx) error {
	v, err := h.Service.Get(c.UserContext(), c.Params("asset"))
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, "Share vault fetched successfully", v, nil)
}

// GET /api/v1/share-vaults/:asset/position
func (h *Handlers) Position(c *fiber.Ctx) error {
	account := middleware.GetAccount(c)
	if account == nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	pos, err := h.Service.Position(c.UserContext(), c.Params("asset"), account.AccountID)
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, "Share vault position fetched successfully", pos, nil)
}

// POST /api/v1/share-vaults/:asset/deposit
func (h *Handlers) Deposit(c *fiber.Ctx) error {
	account := middleware.GetAccount(c)
	if account == nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	var req amountRequest
	if err := c.BodyParser(&req); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	res, err := h.Service.Deposit(c.UserContext(), c.Params("asset"), account.AccountID, req.Amount)
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, "Deposit accepted", res, nil)
}

// POST /api/v1/share-vaults/:asset/withdrawals
func (h *Handlers) RequestWithdrawal(c *fiber.Ctx) error {
	account := middleware.GetAccount(c)
	if account == nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	var req withdrawalRequest
	if err := c.BodyParser(&req); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	w, err := h.Service.RequestWithdrawal(c.UserContext(), c.Params("asset"), account.AccountID, req.Shares)
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.SuccessCreated(c, "Withdrawal requested", w, nil)
}

// POST /api/v1/share-vaults/:asset/withdrawals/process: an empty body picks
// the caller's open request.
func (h *Handlers) ProcessWithdrawal(c *fiber.Ctx) error {
	account := middleware.GetAccount(c)
	if account == nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	var req processRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
		}
	}
	w, err := h.Service.ProcessWithdrawal(c.UserContext(), c.Params("asset"), account.AccountID, req.RequestID)
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, "Withdrawal processed", w, nil)
}

// POST /api/v1/share-vaults/:asset/advance-epoch: caller must be the vault
// authority.
func (h *Handlers) AdvanceEpoch(c *fiber.Ctx) error {
	account := middleware.GetAccount(c)
	if account == nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	var req epochRequest
	if err := c.BodyParser(&req); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	v, err := h.Service.AdvanceEpoch(c.UserContext(), c.Params("asset"), account.AccountID, req.PremiumEarned)
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, "Epoch advanced", v, nil)
}

// GET /api/v1/share-vaults/:asset/events
func (h *Handlers) Events(c *fiber.Ctx) error {
	v, err := h.Service.Get(c.UserContext(), c.Params("asset"))
	if err != nil {
		return response.DomainError(c, err)
	}
	events, err := h.Audit.Events(c.UserContext(), domain.SubjectShareVault, v.ID)
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, "Share vault events fetched successfully", events, nil)
}
