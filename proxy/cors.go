package proxy

import (
	"github.com/gofiber/fiber/v2"
)

// CORS header values served on every response. The relay is called from a
// mobile webview and from browsers during development, so all origins are
// permitted.
const (
	corsAllowOrigin  = "*"
	corsAllowHeaders = "authorization, x-client-info, apikey, content-type"
	corsAllowMethods = "POST, GET, OPTIONS"
)

// corsMiddleware sets the CORS headers and answers OPTIONS preflights with
// 200 and an empty body.
func corsMiddleware(c *fiber.Ctx) error {
	c.Set("Access-Control-Allow-Origin", corsAllowOrigin)
	c.Set("Access-Control-Allow-Headers", corsAllowHeaders)
	c.Set("Access-Control-Allow-Methods", corsAllowMethods)

	if c.Method() == fiber.MethodOptions {
		// 200 with an empty body; SendStatus would fill in the status text.
		return c.Status(fiber.StatusOK).SendString("")
	}

	return c.Next()
}
