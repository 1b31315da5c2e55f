package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/xaviersharwin10/mnee-chat/internal/bot"
	"github.com/xaviersharwin10/mnee-chat/internal/config"
	"github.com/xaviersharwin10/mnee-chat/internal/custody"
	"github.com/xaviersharwin10/mnee-chat/internal/infra"
	"github.com/xaviersharwin10/mnee-chat/internal/intent"
	"github.com/xaviersharwin10/mnee-chat/internal/keeper"
	"github.com/xaviersharwin10/mnee-chat/internal/ledger"
	"github.com/xaviersharwin10/mnee-chat/internal/logging"
	"github.com/xaviersharwin10/mnee-chat/internal/middleware"
	"github.com/xaviersharwin10/mnee-chat/internal/notification"
	"github.com/xaviersharwin10/mnee-chat/internal/payments"
	"github.com/xaviersharwin10/mnee-chat/internal/ratelimit"
	"github.com/xaviersharwin10/mnee-chat/internal/routes"
	"github.com/xaviersharwin10/mnee-chat/internal/server"
	"github.com/xaviersharwin10/mnee-chat/internal/wallet"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)

	ctx := context.Background()

	// Postgres is optional: without it the identity map lives only in
	// memory and reverse lookups do not survive restarts.
	var db *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		db, err = infra.NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("connect postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
	} else {
		logger.Warn("DATABASE_URL not set, identity map is in-memory only")
	}

	// Redis is optional too: without it rate limiting is per-process and
	// webhook dedupe is disabled.
	var cache *redis.Client
	if cfg.RedisURL != "" {
		cache, err = infra.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error("connect redis", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := cache.Close(); err != nil {
				logger.Warn("close redis", "error", err)
			}
		}()
	} else {
		logger.Warn("REDIS_URL not set, rate limits are per-process and dedupe is off")
	}

	var backend custody.Backend
	if cfg.CustodyURL != "" {
		backend = custody.NewRemoteBackend(cfg.CustodyURL, cfg.CustodyAPIKey)
	} else {
		backend = custody.NewLocalBackend(cfg.WalletSalt, cfg.RPCURL)
	}
	logger.Info("custody backend selected", "kind", string(backend.Kind()))

	var repo wallet.Repository
	if db != nil {
		repo = wallet.NewPostgresRepository(db)
	} else {
		repo = wallet.NewMemoryRepository()
	}
	resolver, err := wallet.NewResolver(ctx, backend, repo, logger)
	if err != nil {
		logger.Error("build resolver", "error", err)
		os.Exit(1)
	}

	rpc := ledger.NewRPCClient(cfg.RPCURL)
	evm := ledger.NewEVM(rpc, backend, cfg.Network, cfg.ReceiptTimeout)
	token := ledger.NewEVMToken(evm, cfg.TokenAddress)

	svcCfg := payments.Config{
		Token:        token,
		Backend:      backend,
		Network:      cfg.Network,
		FaucetAmount: cfg.FaucetAmount,
		Logger:       logger,
	}
	// Unset contract addresses leave the matching feature disabled.
	var locks ledger.Locks
	var schedules ledger.Schedules
	if c := ledger.NewEVMRequests(evm, cfg.RequestAddress); c != nil {
		svcCfg.Requests = c
	}
	if c := ledger.NewEVMLocks(evm, cfg.LockAddress); c != nil {
		svcCfg.Locks = c
		locks = c
	}
	if c := ledger.NewEVMSchedules(evm, cfg.ScheduleAddress); c != nil {
		svcCfg.Schedules = c
		schedules = c
	}

	var sponsor string
	if cfg.SponsorIdentity != "" {
		handle, err := resolver.Resolve(ctx, cfg.SponsorIdentity)
		if err != nil {
			logger.Error("resolve sponsor identity", "error", err)
			os.Exit(1)
		}
		sponsor = handle.Address
	}
	svcCfg.Sponsor = sponsor

	paymentsSvc := payments.NewService(svcCfg)

	var notifier notification.Notifier
	if cfg.TwilioConfigured() {
		notifier = notification.NewTwilioNotifier(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFrom)
	} else {
		logger.Warn("Twilio not configured, notifications go to the log")
		notifier = notification.NewLoggerNotifier(logger)
	}

	var limiter ratelimit.Store
	if cache != nil {
		limiter = ratelimit.NewRedisStore(cache, cfg.RateLimit, cfg.RateLimitWindow)
	} else {
		limiter = ratelimit.NewMemoryStore(cfg.RateLimit, cfg.RateLimitWindow)
	}

	oracle := intent.NewGeminiOracle(cfg.GeminiAPIKey, cfg.GeminiModel)
	var parser *intent.Parser
	if oracle != nil {
		logger.Info("NLP oracle enabled", "model", cfg.GeminiModel)
		parser = intent.NewParser(oracle, logger)
	} else {
		parser = intent.NewParser(nil, logger)
	}

	router := bot.NewRouter(bot.Config{
		Resolver: resolver,
		Parser:   parser,
		Payments: paymentsSvc,
		Notifier: notifier,
		Limiter:  limiter,
		Explorer: cfg.ExplorerBaseURL,
		Logger:   logger,
	})

	obligations := keeper.New(keeper.Config{
		Schedules: schedules,
		Locks:     locks,
		Payments:  paymentsSvc,
		Resolver:  resolver,
		Notifier:  notifier,
		Sponsor:   sponsor,
		Interval:  cfg.KeeperInterval,
		Logger:    logger,
	})

	keeperCtx, stopKeeper := context.WithCancel(ctx)
	defer stopKeeper()
	if sponsor != "" && (schedules != nil || locks != nil) {
		go obligations.Start(keeperCtx)
	} else {
		logger.Warn("keeper idle: needs SPONSOR_IDENTITY and at least one obligation contract")
	}

	srv, err := server.New(routes.Deps{
		Cfg:      cfg,
		DB:       db,
		Cache:    cache,
		Logger:   logger,
		Router:   router,
		Resolver: resolver,
		Payments: paymentsSvc,
		Keeper:   obligations,
		Deduper:  middleware.NewDeduper(cache, logger),
		Notifier: notifier,
	})
	if err != nil {
		logger.Error("build server", "error", err)
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- srv.Listen()
	}()
	logger.Info("listening", "addr", cfg.Address(), "env", cfg.AppEnv)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-srvErrCh:
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
		return
	}

	stopKeeper()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server exited cleanly")
}
