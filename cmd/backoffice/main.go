// Package main is the entry point for the nexbit back-office admin server.
// Runs on port 8081 and exposes admin-only endpoints protected by RBAC.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/nexbit/tradecore/internal/backoffice"
	"github.com/nexbit/tradecore/internal/config"
	"github.com/nexbit/tradecore/internal/payments"
	"github.com/nexbit/tradecore/internal/repository"
	"github.com/nexbit/tradecore/internal/service"
)

func main() {
	// ── Logger ────────────────────────────────────────────────────────────────
	cfg := config.MustLoad()

	var logHandler slog.Handler
	if cfg.IsProd() {
		logHandler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		logHandler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	logger.Info("starting nexbit backoffice server",
		"env", cfg.Server.Env, "port", cfg.Server.BackofficePort)

	// ── Database ──────────────────────────────────────────────────────────────
	db, err := sqlx.Connect("postgres", cfg.DB.DSN)
	if err != nil {
		logger.Error("database connection failed", "err", err)
		os.Exit(1)
	}
	db.SetMaxOpenConns(cfg.DB.MaxOpenConns)
	db.SetMaxIdleConns(cfg.DB.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.DB.ConnMaxLifetime)

	if err = db.Ping(); err != nil {
		logger.Error("database ping failed", "err", err)
		os.Exit(1)
	}
	logger.Info("database connected")

	// ── Repositories ──────────────────────────────────────────────────────────
	userRepo := repository.NewUserRepository(db)
	walletRepo := repository.NewWalletRepository(db)
	positionRepo := repository.NewPositionRepository(db)
	depositRepo := repository.NewDepositRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)

	// ── Services ──────────────────────────────────────────────────────────────
	settingsSvc := service.NewSettingsService(settingsRepo)
	if err = settingsSvc.Refresh(context.Background()); err != nil {
		logger.Error("initial settings load failed", "err", err)
		os.Exit(1)
	}

	priceSvc := service.NewPriceService(cfg)
	provider := payments.NewClient(cfg)

	authSvc := service.NewAuthService(db, userRepo, walletRepo, settingsSvc, cfg)
	depositSvc := service.NewDepositService(db, depositRepo, walletRepo, userRepo, provider, settingsSvc, cfg)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Router ────────────────────────────────────────────────────────────────
	router := backoffice.SetupBackofficeRouter(backoffice.BackofficeDeps{
		DB:           db,
		AuthSvc:      authSvc,
		DepositSvc:   depositSvc,
		SettingsSvc:  settingsSvc,
		PriceSvc:     priceSvc,
		UserRepo:     userRepo,
		WalletRepo:   walletRepo,
		PositionRepo: positionRepo,
		DepositRepo:  depositRepo,
		Hub:          nil, // backoffice does not directly serve WS
		Cfg:          cfg,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.BackofficePort,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// ── Start ─────────────────────────────────────────────────────────────────
	go func() {
		logger.Info("backoffice http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("backoffice server error", "err", err)
			stop()
		}
	}()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err = srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("backoffice shutdown error", "err", err)
	}

	db.Close()
	logger.Info("backoffice server stopped cleanly")
}
