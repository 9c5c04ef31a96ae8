package pricing

import (
	"strconv"

	pricingsvc "xstock-options/internal/application/pricing"
	"xstock-options/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service *pricingsvc.Service
}

// POST /api/v1/pricing/quote
func (h *Handlers) Quote(c *fiber.Ctx) error {
	var in pricingsvc.QuoteInput
	if err := c.BodyParser(&in); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	q, err := h.Service.Quote(in)
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, "Option priced successfully", q, nil)
}

// POST /api/v1/pricing/implied-volatility
func (h *Handlers) ImpliedVolatility(c *fiber.Ctx) error {
	var in pricingsvc.IVInput
	if err := c.BodyParser(&in); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	v, err := h.Service.ImpliedVolatility(in)
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, "Implied volatility computed", v, nil)
}

// POST /api/v1/pricing/historical-volatility
func (h *Handlers) HistoricalVolatility(c *fiber.Ctx) error {
	var in pricingsvc.HVInput
	if err := c.BodyParser(&in); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	return response.Success(c, "Historical volatility computed", h.Service.HistoricalVolatility(in), nil)
}

// GET /api/v1/pricing/suggest/:asset?strike=&expiry_ts=&amount=&option_type=
func (h *Handlers) Suggest(c *fiber.Ctx) error {
	in := pricingsvc.SuggestInput{
		Strike:     c.QueryFloat("strike"),
		ExpiryTs:   int64(c.QueryInt("expiry_ts")),
		OptionType: c.Query("option_type"),
	}
	if a := c.Query("amount"); a != "" {
		amount, err := strconv.ParseUint(a, 10, 64)
		if err != nil {
			return response.Error(c, "amount must be a base-unit integer", fiber.StatusBadRequest, nil)
		}
		in.Amount = amount
	}
	s, err := h.Service.Suggest(c.UserContext(), c.Params("asset"), in)
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, "Premium suggested", s, nil)
}
