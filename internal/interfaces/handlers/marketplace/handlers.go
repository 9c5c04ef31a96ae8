package marketplace

import (
	mktsvc "xstock-options/internal/application/marketplace"
	"xstock-options/internal/domain"
	"xstock-options/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Handlers struct {
	Service *mktsvc.Service
}

// GET /api/v1/marketplace/options?asset=&participant=&state=
func (h *Handlers) GetOptions(c *fiber.Ctx) error {
	f := mktsvc.Filter{Asset: c.Query("asset")}
	if p := c.Query("participant"); p != "" {
		id, err := uuid.Parse(p)
		if err != nil {
			return response.Error(c, "Invalid participant format", fiber.StatusBadRequest, nil)
		}
		f.Participant = id
	}
	if s := c.Query("state"); s != "" {
		st, ok := domain.ParseOptionState(s)
		if !ok {
			return response.Error(c, "Unknown option state", fiber.StatusBadRequest, nil)
		}
		f.State = st
	}
	entries, err := h.Service.Scan(c.UserContext(), f)
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, "Options fetched successfully", entries, fiber.Map{"count": len(entries)})
}

// GET /api/v1/marketplace/listed?asset=
func (h *Handlers) GetListed(c *fiber.Ctx) error {
	entries, err := h.Service.Listed(c.UserContext(), c.Query("asset"))
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, "Listed options fetched successfully", entries, fiber.Map{"count": len(entries)})
}
