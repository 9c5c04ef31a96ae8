package middleware

import (
	"github.com/gofiber/fiber/v2"
)

// VenueVersionHeader carries the server build on every API response.
const VenueVersionHeader = "X-Venue-Version"

// APIHeaders marks responses as uncacheable: balances, quotes and option
// state are only valid at the moment they were read.
func APIHeaders(version string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderCacheControl, "no-store")
		if version != "" {
			c.Set(VenueVersionHeader, version)
		}
		return c.Next()
	}
}
