package oracle

import (
	oraclesvc "xstock-options/internal/application/oracle"
	"xstock-options/internal/middleware"
	"xstock-options/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service *oraclesvc.Service
}

// POST /api/v1/oracle/feeds (admin)
func (h *Handlers) CreateFeed(c *fiber.Ctx) error {
	var in oraclesvc.CreateFeedInput
	if err := c.BodyParser(&in); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	feed, err := h.Service.CreateFeed(c.UserContext(), in)
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.SuccessCreated(c, "Price feed created successfully", feed, nil)
}

// POST /api/v1/oracle/feeds/:asset/price: caller must be the feed authority.
func (h *Handlers) UpdatePrice(c *fiber.Ctx) error {
	account := middleware.GetAccount(c)
	if account == nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	var in oraclesvc.UpdatePriceInput
	if err := c.BodyParser(&in); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	feed, err := h.Service.UpdatePrice(c.UserContext(), c.Params("asset"), account.AccountID, in)
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, "Price updated successfully", feed, nil)
}

// GET /api/v1/oracle/feeds/:asset
func (h *Handlers) GetFeed(c *fiber.Ctx) error {
	feed, err := h.Service.GetFeed(c.UserContext(), c.Params("asset"))
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, "Price feed fetched successfully", fiber.Map{
		"feed": feed,
		"spot": feed.Spot(),
	}, nil)
}

// GET /api/v1/oracle/feeds/:asset/history?limit=
func (h *Handlers) GetHistory(c *fiber.Ctx) error {
	asset := c.Params("asset")
	if _, err := h.Service.GetFeed(c.UserContext(), asset); err != nil {
		return response.DomainError(c, err)
	}
	limit := c.QueryInt("limit", oraclesvc.DefaultHistoryLimit)
	if limit <= 0 || limit > oraclesvc.DefaultHistoryLimit {
		return response.Error(c, "limit must be within 1..500", fiber.StatusBadRequest, nil)
	}
	samples, err := h.Service.History(c.UserContext(), asset, limit)
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, "Price history fetched successfully", samples, fiber.Map{"count": len(samples)})
}
