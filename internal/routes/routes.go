package routes

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/xaviersharwin10/mnee-chat/internal/bot"
	"github.com/xaviersharwin10/mnee-chat/internal/config"
	"github.com/xaviersharwin10/mnee-chat/internal/keeper"
	"github.com/xaviersharwin10/mnee-chat/internal/middleware"
	"github.com/xaviersharwin10/mnee-chat/internal/notification"
	"github.com/xaviersharwin10/mnee-chat/internal/payments"
	"github.com/xaviersharwin10/mnee-chat/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg      config.Config
	DB       *pgxpool.Pool
	Cache    *redis.Client
	Logger   *slog.Logger
	Router   *bot.Router
	Resolver *wallet.Resolver
	Payments *payments.Service
	Keeper   *keeper.Keeper
	Deduper  *middleware.Deduper
	Notifier notification.Notifier
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	// Plain text access log: [HH:MM:SS] 200 -  145ms METHOD /path
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))

	RegisterHealthRoutes(app, d)
	RegisterWebhookRoutes(app, d)

	api := app.Group("/api")
	RegisterWalletRoutes(api, d)
	RegisterNotifyRoutes(api, d)
	RegisterKeeperRoutes(api, d)

	return nil
}
