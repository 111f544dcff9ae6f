package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/MrJamesThe3rd/merenda/internal/config"
	"github.com/MrJamesThe3rd/merenda/internal/contract"
	contractStore "github.com/MrJamesThe3rd/merenda/internal/contract/store"
	"github.com/MrJamesThe3rd/merenda/internal/database"
	"github.com/MrJamesThe3rd/merenda/internal/demand"
	"github.com/MrJamesThe3rd/merenda/internal/export"
	merendaHttp "github.com/MrJamesThe3rd/merenda/internal/http"
	contractHandler "github.com/MrJamesThe3rd/merenda/internal/http/contract"
	exportHandler "github.com/MrJamesThe3rd/merenda/internal/http/export"
	importHandler "github.com/MrJamesThe3rd/merenda/internal/http/importcsv"
	matchingHandler "github.com/MrJamesThe3rd/merenda/internal/http/matching"
	"github.com/MrJamesThe3rd/merenda/internal/http/middleware"
	orderHandler "github.com/MrJamesThe3rd/merenda/internal/http/order"
	procurementHandler "github.com/MrJamesThe3rd/merenda/internal/http/procurement"
	"github.com/MrJamesThe3rd/merenda/internal/importer"
	"github.com/MrJamesThe3rd/merenda/internal/logger"
	"github.com/MrJamesThe3rd/merenda/internal/matching"
	menuStore "github.com/MrJamesThe3rd/merenda/internal/menu/store"
	"github.com/MrJamesThe3rd/merenda/internal/order"
	orderStore "github.com/MrJamesThe3rd/merenda/internal/order/store"
	"github.com/MrJamesThe3rd/merenda/internal/procurement"
	"github.com/MrJamesThe3rd/merenda/internal/reconciliation"
)

func main() {
	tokenFor := flag.String("token", "", "print a bearer token for the given operator and exit")
	tokenTTL := flag.Duration("token-ttl", 12*time.Hour, "lifetime of tokens printed with -token")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.Log.Level, Encoding: cfg.Log.Encoding})
	defer log.Sync() //nolint:errcheck

	if *tokenFor != "" {
		token, err := middleware.IssueToken(cfg.Auth.JWTSecret, *tokenFor, *tokenTTL)
		if err != nil {
			log.Fatal("failed to issue token", zap.Error(err))
		}

		fmt.Println(token)

		return
	}

	if err := run(cfg, log); err != nil {
		log.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	db, err := database.New(cfg.ConnectionString())
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	if cfg.DB.Migrate {
		if err := database.Migrate(db, log); err != nil {
			return err
		}
	}

	menus := menuStore.New(db)

	var (
		ledger = contract.NewLedger(contractStore.New(db), log.Named("ledger"), contract.Options{
			MaxAttempts:  cfg.Ledger.MaxAttempts,
			RetryBackoff: cfg.Ledger.RetryBackoff,
		})
		engine             = matching.NewEngine()
		calculator         = demand.NewCalculator(menus, menus, cfg.Demand.DefaultPerCapitaGrams)
		reporter           = reconciliation.NewReporter(menus, ledger, engine)
		processor          = order.NewProcessor(ledger, orderStore.New(db), log.Named("orders"))
		procurementService = procurement.NewService(calculator, ledger, engine, reporter, processor)
	)

	var (
		matchingService = matching.NewService(ledger, engine)
		importService   = importer.NewService(log.Named("importer"))
		exportService   = export.NewService(processor)
	)

	router := merendaHttp.New(merendaHttp.Handlers{
		Contracts:   contractHandler.NewHandler(ledger, log),
		Procurement: procurementHandler.NewHandler(procurementService, log),
		Orders:      orderHandler.NewHandler(procurementService, processor, log),
		Import:      importHandler.NewHandler(importService, ledger, log),
		Matching:    matchingHandler.NewHandler(matchingService, log),
		Export:      exportHandler.NewHandler(exportService, log),
	}, merendaHttp.Options{
		JWTSecret:      cfg.Auth.JWTSecret,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Logger:         log,
	})

	if cfg.Auth.JWTSecret == "" {
		log.Warn("JWT_SECRET is empty, API authentication is disabled")
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)

	go func() {
		log.Info("starting server", zap.String("addr", server.Addr), zap.String("app", cfg.App.Name))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.Timeout)
	defer cancel()

	return server.Shutdown(shutdownCtx)
}
