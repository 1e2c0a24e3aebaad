package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/voyager-erp/voyager-erp/internal/accounts"
	"github.com/voyager-erp/voyager-erp/internal/app"
	"github.com/voyager-erp/voyager-erp/internal/catalog"
	"github.com/voyager-erp/voyager-erp/internal/contacts"
	"github.com/voyager-erp/voyager-erp/internal/ledger"
	"github.com/voyager-erp/voyager-erp/internal/observability"
	"github.com/voyager-erp/voyager-erp/internal/platform/cache"
	"github.com/voyager-erp/voyager-erp/internal/platform/db"
	"github.com/voyager-erp/voyager-erp/internal/purchasing"
	"github.com/voyager-erp/voyager-erp/internal/sales"
	"github.com/voyager-erp/voyager-erp/internal/shared"
	"github.com/voyager-erp/voyager-erp/internal/treasury"
	"github.com/voyager-erp/voyager-erp/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, caching disabled", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)

	catalogRepo := catalog.NewRepository(pool)
	catalogHandler := catalog.NewHandler(logger, catalogRepo)

	contactsRepo := contacts.NewRepository(pool)
	contactsHandler := contacts.NewHandler(logger, contactsRepo)

	accountsRepo := accounts.NewRepository(pool)
	accountsHandler := accounts.NewHandler(logger, accountsRepo)

	ledgerRepo := ledger.NewRepository(pool)
	ledgerCache := ledger.NewCache(redisClient, cfg.LedgerCacheTTL)
	ledgerService := ledger.NewService(ledgerRepo, catalogRepo)
	ledgerHandler := ledger.NewHandler(logger, ledgerService, ledgerCache)

	salesRepo := sales.NewRepository(pool)
	salesService := sales.NewService(salesRepo, auditLogger, idempotencyStore, ledgerCache)
	salesHandler := sales.NewHandler(logger, salesService)

	purchasingRepo := purchasing.NewRepository(pool)
	purchasingService := purchasing.NewService(purchasingRepo, auditLogger, idempotencyStore, ledgerCache,
		purchasing.ServiceConfig{StrictItemMatch: cfg.StrictItemMatch})
	purchasingHandler := purchasing.NewHandler(logger, purchasingService)

	treasuryRepo := treasury.NewRepository(pool)
	treasuryService := treasury.NewService(treasuryRepo, auditLogger, idempotencyStore,
		treasury.ServiceConfig{RefAccount1: cfg.RefAccount1, RefAccount2: cfg.RefAccount2})
	treasuryHandler := treasury.NewHandler(logger, treasuryService)

	metrics := observability.NewMetrics()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("build job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, jobClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		LedgerHandler:     ledgerHandler,
		CatalogHandler:    catalogHandler,
		ContactsHandler:   contactsHandler,
		AccountsHandler:   accountsHandler,
		SalesHandler:      salesHandler,
		PurchasingHandler: purchasingHandler,
		TreasuryHandler:   treasuryHandler,
		JobHandler:        jobHandler,
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
