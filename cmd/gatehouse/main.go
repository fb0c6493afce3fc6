package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gatehouse-vms/gatehouse/internal/app"
	"github.com/gatehouse-vms/gatehouse/internal/auth"
	"github.com/gatehouse-vms/gatehouse/internal/masterdata"
	"github.com/gatehouse-vms/gatehouse/internal/platform/cache"
	"github.com/gatehouse-vms/gatehouse/internal/platform/db"
	"github.com/gatehouse-vms/gatehouse/internal/users"
	"github.com/gatehouse-vms/gatehouse/internal/visitors"
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

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	tokens := auth.NewTokenStore(redisClient, cfg.TokenTTL)
	authService := auth.NewService(auth.NewRepository(pool))
	authHandler := auth.NewHandler(logger, authService, tokens)
	guard := auth.Middleware{Tokens: tokens, Logger: logger}

	usersService := users.NewService(users.NewRepository(pool), cfg.MasterPasswordHash)
	usersHandler := users.NewHandler(logger, usersService, guard)

	masterDataHandler := masterdata.NewHandler(logger, masterdata.NewRepository(pool))

	visitorRepo := visitors.NewRepository(pool)
	visitorService := visitors.NewService(visitorRepo, usersService)
	reporter := visitors.NewReporter(visitorRepo, redisClient, cfg.ReportCacheTTL, logger)
	visitorsHandler := visitors.NewHandler(logger, visitorService, reporter, guard)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		AuthHandler:       authHandler,
		AuthMiddleware:    guard,
		UsersHandler:      usersHandler,
		MasterDataHandler: masterDataHandler,
		VisitorsHandler:   visitorsHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("server listening", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server run", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", slog.Any("error", err))
	}
}
