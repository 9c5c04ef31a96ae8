package middleware

import (
	"crypto/subtle"
	"errors"

	"xstock-options/internal/auth"
	"xstock-options/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

const (
	accountLocal = "account"

	AccountIDHeader = "X-Account-Id"
	APIKeyHeader    = "X-Api-Key"
	AdminKeyHeader  = "X-Admin-Key"
)

// RequireAuth authenticates the caller from the account headers. Returns 401 with standard error format if not.
func RequireAuth(finder auth.AccountFinder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if finder == nil {
			return response.Error(c, "Authentication unavailable", fiber.StatusServiceUnavailable, nil)
		}
		account, err := finder.FindByIDAndKey(c.Get(AccountIDHeader), c.Get(APIKeyHeader))
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrCredentialsMissing),
				errors.Is(err, auth.ErrInvalidAccount),
				errors.Is(err, auth.ErrIncorrectAPIKey):
				return response.Unauthorized(c, err.Error())
			}
			log.Error().Err(err).Str("trace_id", GetTraceID(c)).Msg("account lookup failed")
			return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
		}
		c.Locals(accountLocal, &auth.AccountShape{AccountID: account.AccountID, Name: account.Name})
		return c.Next()
	}
}

// RequireAdmin guards operator routes with the shared admin key. An empty key disables them.
func RequireAdmin(adminKey string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		got := c.Get(AdminKeyHeader)
		if adminKey == "" || subtle.ConstantTimeCompare([]byte(got), []byte(adminKey)) != 1 {
			return response.Error(c, "User is Forbidden from performing this action", fiber.StatusForbidden, nil)
		}
		return c.Next()
	}
}

// GetAccount returns the authenticated account from Locals (nil if unauthenticated).
func GetAccount(c *fiber.Ctx) *auth.AccountShape {
	a, _ := c.Locals(accountLocal).(*auth.AccountShape)
	return a
}
