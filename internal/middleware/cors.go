package middleware

import (
	"strings"

	"xstock-options/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

const devPasswordHeader = "dev-password"

// CORSConfig lists which trading frontends may call the venue from a browser.
type CORSConfig struct {
	AllowedSuffix string
	DevPassword   string
}

// CORS admits browser origins ending with AllowedSuffix, local frontends,
// and requests carrying the dev password. Requests without an Origin
// (bots, market makers, the CLI) pass through untouched.
func CORS(cfg CORSConfig) fiber.Handler {
	suffix := strings.ToLower(cfg.AllowedSuffix)
	return func(c *fiber.Ctx) error {
		origin := c.Get(fiber.HeaderOrigin)
		if origin == "" {
			return c.Next()
		}
		allowed := isLocalOrigin(origin) ||
			(suffix != "" && strings.HasSuffix(strings.ToLower(origin), suffix)) ||
			(cfg.DevPassword != "" && c.Get(devPasswordHeader) == cfg.DevPassword)
		if !allowed {
			log.Warn().
				Str("origin", origin).
				Str("trace_id", GetTraceID(c)).
				Str("path", c.Path()).
				Msg("frontend origin rejected")
			return response.ErrorWithCode(c, "Origin is not an allowed trading frontend", fiber.StatusForbidden, "OriginNotAllowed", map[string]interface{}{
				"origin": origin,
			})
		}
		setCORSHeaders(c, origin)
		if c.Method() == fiber.MethodOptions {
			return c.SendStatus(fiber.StatusNoContent)
		}
		return c.Next()
	}
}

func isLocalOrigin(origin string) bool {
	return strings.HasPrefix(origin, "http://localhost:") || strings.HasPrefix(origin, "http://127.0.0.1:")
}

func setCORSHeaders(c *fiber.Ctx, origin string) {
	c.Set(fiber.HeaderAccessControlAllowOrigin, origin)
	c.Set(fiber.HeaderAccessControlAllowCredentials, "true")
	c.Set(fiber.HeaderAccessControlAllowMethods, "GET, POST, DELETE, OPTIONS")
	c.Set(fiber.HeaderAccessControlAllowHeaders, strings.Join([]string{
		fiber.HeaderContentType, devPasswordHeader, AccountIDHeader, APIKeyHeader, AdminKeyHeader, traceIDHeader,
	}, ", "))
	c.Set(fiber.HeaderAccessControlExposeHeaders, strings.Join([]string{traceIDHeader, VenueVersionHeader}, ", "))
}
