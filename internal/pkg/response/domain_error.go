package response

import (
	"errors"

	"xstock-options/internal/domain"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

var domainStatus = []struct {
	err    error
	status int
}{
	{domain.ErrInvalidParameters, fiber.StatusBadRequest},
	{domain.ErrUnauthorized, fiber.StatusForbidden},
	{domain.ErrNotFound, fiber.StatusNotFound},
	{domain.ErrAlreadyExists, fiber.StatusConflict},
	{domain.ErrOptionNotListed, fiber.StatusConflict},
	{domain.ErrOptionExpired, fiber.StatusConflict},
	{domain.ErrOptionAlreadyExercised, fiber.StatusConflict},
	{domain.ErrOptionNotExpired, fiber.StatusConflict},
	{domain.ErrInsufficientFunds, fiber.StatusUnprocessableEntity},
	{domain.ErrInsufficientCollateral, fiber.StatusUnprocessableEntity},
	{domain.ErrBalanceOverflow, fiber.StatusUnprocessableEntity},
	{domain.ErrRFQNotOpen, fiber.StatusConflict},
	{domain.ErrRFQExpired, fiber.StatusConflict},
	{domain.ErrRFQNotExpired, fiber.StatusConflict},
	{domain.ErrMakerNotActive, fiber.StatusForbidden},
	{domain.ErrPremiumBelowFloor, fiber.StatusUnprocessableEntity},
	{domain.ErrZeroShares, fiber.StatusUnprocessableEntity},
	{domain.ErrInsufficientShares, fiber.StatusUnprocessableEntity},
	{domain.ErrWithdrawalProcessed, fiber.StatusConflict},
	{domain.ErrEpochNotSettled, fiber.StatusConflict},
}

// StatusFor maps a service error to its HTTP status; unknown errors are 500.
func StatusFor(err error) int {
	for _, d := range domainStatus {
		if errors.Is(err, d.err) {
			return d.status
		}
	}
	return fiber.StatusInternalServerError
}

// DomainError sends err with its mapped status and rejection code. Unknown
// errors are logged and hidden behind "Internal Server Error".
func DomainError(c *fiber.Ctx, err error) error {
	status := StatusFor(err)
	if status == fiber.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Path()).Msg("unhandled service error")
		return Error(c, "Internal Server Error", status, nil)
	}
	return ErrorWithCode(c, err.Error(), status, domain.Code(err), nil)
}
