package auth

import (
	"errors"

	authsvc "xstock-options/internal/auth"
	"xstock-options/internal/middleware"
	"xstock-options/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Handlers holds dependencies for account endpoints.
type Handlers struct {
	DB         *gorm.DB
	BcryptCost int
}

// Register POST /api/v1/accounts/register (admin): creates an account. When
// no api_key is supplied one is generated; the key is only ever returned here.
func (h *Handlers) Register(c *fiber.Ctx) error {
	var req authsvc.RegisterInput
	if err := c.BodyParser(&req); err != nil {
		return response.Error(c, "Account name and API key are required", fiber.StatusBadRequest, nil)
	}
	if req.APIKey == "" {
		key, err := authsvc.GenerateAPIKey()
		if err != nil {
			return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
		}
		req.APIKey = key
	}

	account, err := authsvc.Register(h.DB, req, h.BcryptCost)
	if err != nil {
		switch {
		case errors.Is(err, authsvc.ErrNameAPIKeyRequired), errors.Is(err, authsvc.ErrInvalidName):
			return response.Error(c, err.Error(), fiber.StatusBadRequest, nil)
		case errors.Is(err, authsvc.ErrNameTaken):
			return response.Error(c, err.Error(), fiber.StatusConflict, nil)
		default:
			log.Error().Err(err).Str("name", req.Name).Msg("account registration failed")
			return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
		}
	}
	log.Info().Str("account_id", account.AccountID.String()).Str("name", account.Name).Msg("account registered")
	return response.SuccessCreated(c, "Account registered successfully", fiber.Map{
		"account": authsvc.AccountShape{AccountID: account.AccountID, Name: account.Name},
		"api_key": req.APIKey,
	}, nil)
}

// Me GET /api/v1/accounts/me: return the authenticated account.
func (h *Handlers) Me(c *fiber.Ctx) error {
	account, err := authsvc.VerifyAccount(middleware.GetAccount(c))
	if err != nil {
		return response.Error(c, err.Error(), fiber.StatusUnauthorized, nil)
	}
	return response.Success(c, "Authenticated", fiber.Map{"account": account}, nil)
}
