package routes

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/xaviersharwin10/mnee-chat/internal/wallet"
)

// RegisterWalletRoutes adds the wallet lookup and faucet endpoints used by
// operators and the demo frontend.
func RegisterWalletRoutes(api fiber.Router, d Deps) {
	api.Get("/wallet/:phone", func(c *fiber.Ctx) error {
		identity := wallet.Normalize(c.Params("phone"))
		if identity == "" {
			return fiber.NewError(http.StatusBadRequest, "phone must contain digits")
		}
		handle, err := d.Resolver.Resolve(c.UserContext(), identity)
		if err != nil {
			d.Logger.Error("wallet lookup failed", "identity", identity, "error", err)
			return fiber.NewError(http.StatusBadGateway, "wallet lookup failed")
		}
		return c.JSON(fiber.Map{
			"phone":   handle.Identity,
			"address": handle.Address,
			"backend": handle.Backend,
		})
	})

	api.Post("/faucet/:phone", func(c *fiber.Ctx) error {
		identity := wallet.Normalize(c.Params("phone"))
		if identity == "" {
			return fiber.NewError(http.StatusBadRequest, "phone must contain digits")
		}
		handle, err := d.Resolver.Resolve(c.UserContext(), identity)
		if err != nil {
			d.Logger.Error("faucet resolve failed", "identity", identity, "error", err)
			return fiber.NewError(http.StatusBadGateway, "wallet lookup failed")
		}
		amount, txHash, err := d.Payments.Faucet(c.UserContext(), handle.Address)
		if err != nil {
			d.Logger.Error("faucet failed", "identity", identity, "error", err)
			return fiber.NewError(http.StatusBadGateway, "faucet failed")
		}
		return c.JSON(fiber.Map{
			"phone":   handle.Identity,
			"address": handle.Address,
			"amount":  amount.String(),
			"tx_hash": txHash,
		})
	})
}
