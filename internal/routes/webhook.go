package routes

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/xaviersharwin10/mnee-chat/internal/bot"
)

// RegisterWebhookRoutes wires the inbound chat webhook. Each message spawns
// an independent unit of work; the provider gets its acknowledgement
// immediately so slow ledger operations never trigger redelivery.
func RegisterWebhookRoutes(app *fiber.App, d Deps) {
	app.Post("/webhook", func(c *fiber.Ctx) error {
		in := bot.Inbound{
			Identity:    c.FormValue("From"),
			Text:        c.FormValue("Body"),
			ProfileName: c.FormValue("ProfileName"),
			MessageID:   c.FormValue("MessageSid"),
		}

		if d.Deduper.Seen(c.UserContext(), in.MessageID) {
			d.Logger.Info("duplicate delivery suppressed", "message_id", in.MessageID)
		} else {
			// Detached from the request context: the reply outlives the ack.
			go d.Router.Handle(context.Background(), in)
		}

		c.Set(fiber.HeaderContentType, "text/xml")
		return c.SendString("<Response></Response>")
	})
}
