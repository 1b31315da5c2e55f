package routes

import (
	"context"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// RegisterKeeperRoutes adds the manual keeper trigger, useful in demos and
// when the interval is long.
func RegisterKeeperRoutes(api fiber.Router, d Deps) {
	api.Post("/keeper/run", func(c *fiber.Ctx) error {
		if d.Keeper.Busy() {
			return c.Status(http.StatusConflict).JSON(fiber.Map{"status": "already_running"})
		}
		go d.Keeper.RunCycle(context.Background())
		return c.JSON(fiber.Map{"status": "started"})
	})
}
