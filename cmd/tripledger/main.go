package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"tripledger/internal/amqp"
	"tripledger/internal/analytics"
	"tripledger/internal/cache"
	"tripledger/internal/cli"
	apphttp "tripledger/internal/http"
	"tripledger/internal/log"
	"tripledger/internal/rates"
	"tripledger/internal/services"
	"tripledger/internal/settings"
	"tripledger/internal/tripctx"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	store := cli.InitStore(logger, cfg.SQLiteDBPath)
	defer store.Close()

	settingsSvc := settings.New(store)
	slogger := logger.Logger

	providerFactory := func(name string) rates.Provider {
		return rates.NewProvider(name, cfg.RateEndpoint, nil, slogger)
	}

	ctx := context.Background()
	rateSvc := rates.NewService(
		providerFactory(settingsSvc.RateProvider(ctx)),
		func(ctx context.Context) time.Duration {
			return time.Duration(settingsSvc.RateCacheTTL(ctx)) * time.Second
		},
		slogger,
	)

	resolver := tripctx.NewResolver(store, slogger)

	cacheMgr := cache.NewManager()
	rateSvc.RegisterCache(cacheMgr)
	resolver.RegisterCaches(cacheMgr)
	cacheMgr.StartCleanup(cfg.CacheCleanupInterval)
	defer cacheMgr.Stop()

	// AMQP is optional; without it expense events are simply not published.
	var publisher services.EventPublisher
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err.Error())
			os.Exit(1)
		}
		amqpClient = client
		publisher = client
		defer amqpClient.Close()
		logger.Info("AMQP publisher initialized", "exchange", cfg.AMQPExchange)
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	expenseSvc := services.NewExpenseService(store, resolver, rateSvc, settingsSvc, publisher, slogger)
	tripSvc := services.NewTripService(store, resolver, settingsSvc, slogger)
	analyticsSvc := analytics.New(store, settingsSvc, slogger)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Store:           store,
		Resolver:        resolver,
		Trips:           tripSvc,
		Expenses:        expenseSvc,
		Analytics:       analyticsSvc,
		Rates:           rateSvc,
		Settings:        settingsSvc,
		ProviderFactory: providerFactory,
		Logger:          logger.WithComponent(log.ComponentHTTP),
	})
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	runCtx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err.Error())
		}
	})

	logger.Info("Starting tripledger server", "port", cfg.Port, "db", cfg.SQLiteDBPath)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", log.FieldError, err.Error(), "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(runCtx, done)
	logger.Info("Server stopped gracefully")
}
