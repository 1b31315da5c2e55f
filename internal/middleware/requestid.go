package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-ID"

// RequestID tags every request with an X-Request-ID, minting one when the
// caller did not supply it. The id lands in locals so handlers can correlate
// their log lines with the access log.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
			c.Set(requestIDHeader, id)
		}
		c.Locals(requestIDHeader, id)
		return c.Next()
	}
}
