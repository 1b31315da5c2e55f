package routes

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/xaviersharwin10/mnee-chat/internal/wallet"
)

// RegisterNotifyRoutes adds the deposit-notice endpoint. The demo frontend
// calls it after an on-chain transfer confirms, so recipients hear about
// credits that never passed through the chat surface.
func RegisterNotifyRoutes(api fiber.Router, d Deps) {
	api.Post("/notify-transfer", func(c *fiber.Ctx) error {
		var body struct {
			ToPhone     string `json:"to_phone"`
			Amount      string `json:"amount"`
			TxHash      string `json:"tx_hash"`
			FromAddress string `json:"from_address"`
		}
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(http.StatusBadRequest, "invalid body")
		}
		identity := wallet.Normalize(body.ToPhone)
		if identity == "" || body.Amount == "" {
			return fiber.NewError(http.StatusBadRequest, "to_phone and amount are required")
		}

		from := "External Wallet"
		if len(body.FromAddress) >= 8 {
			from = body.FromAddress[:8] + "..."
		}
		var b strings.Builder
		fmt.Fprintf(&b, "💰 *You received %s MNEE!*\n\nFrom: %s\n\n", body.Amount, from)
		if body.TxHash != "" && d.Cfg.ExplorerBaseURL != "" {
			fmt.Fprintf(&b, "🔗 %s/tx/%s\n\n", strings.TrimSuffix(d.Cfg.ExplorerBaseURL, "/"), body.TxHash)
		}
		b.WriteString("Type *balance* to check your funds!")

		if _, err := d.Notifier.Send(c.UserContext(), identity, b.String()); err != nil {
			d.Logger.Error("transfer notice failed", "identity", identity, "error", err)
			return fiber.NewError(http.StatusBadGateway, "notification failed")
		}
		return c.JSON(fiber.Map{"status": "sent"})
	})
}
