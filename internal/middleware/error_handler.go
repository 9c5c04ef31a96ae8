package middleware

import (
	"errors"

	"xstock-options/internal/domain"
	"xstock-options/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// ErrorHandler catches whatever a handler returned unanswered. Venue
// rejections keep their status and code; routing errors keep Fiber's status;
// anything else is logged against the trace and answered with a bare 500.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return response.Error(c, fe.Message, fe.Code, nil)
	}
	if domain.Code(err) != "" && response.StatusFor(err) != fiber.StatusInternalServerError {
		return response.DomainError(c, err)
	}
	log.Error().
		Err(err).
		Str("trace_id", GetTraceID(c)).
		Str("method", c.Method()).
		Str("route", c.Route().Path).
		Msg("venue request failed")
	return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, map[string]interface{}{
		"trace_id": GetTraceID(c),
	})
}
