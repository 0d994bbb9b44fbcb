package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/govalues/money"

	"github.com/coopware/treasury/internal/httpapi"
	"github.com/coopware/treasury/internal/storage/memory"
	pgstore "github.com/coopware/treasury/internal/storage/postgres"
	"github.com/coopware/treasury/internal/treasury"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Logger (slog to stdout). Level via LOG_LEVEL; format via LOG_FORMAT (json|text, default json)
	logger := buildLoggerFromEnv()
	slog.SetDefault(logger)

	// One currency per deployment, TREASURY_CURRENCY (default GHS).
	currency := strings.ToUpper(strings.TrimSpace(os.Getenv("TREASURY_CURRENCY")))
	if currency == "" {
		currency = "GHS"
	}
	probe, err := money.NewAmountFromMinorUnits(currency, 0)
	if err != nil {
		logger.Error("unsupported currency", "currency", currency, "err", err)
		os.Exit(1)
	}
	scale := probe.Curr().Scale()

	var srvMux http.Handler
	var closeFn func()

	if dsn := strings.TrimSpace(os.Getenv("DATABASE_URL")); dsn != "" {
		// Use Postgres store when DATABASE_URL is provided
		pg, err := pgstore.Open(ctx, dsn)
		if err != nil {
			logger.Error("failed to connect to postgres", "err", err)
			os.Exit(1)
		}
		closeFn = func() { pg.Close() }
		if devSeedEnabled() {
			member, project, cash, err := pg.SeedDev(ctx, currency)
			if err != nil {
				logger.Error("dev seed failed", "err", err)
			} else {
				logDevSeed(logger, "postgres", member, project, cash)
				printDevSeedBanner(member, project, cash)
			}
		}
		srvMux = httpapi.New(pg, pg, pg, pg, pg, pg, currency, scale, logger).Handler()
		logger.Info("storage backend: postgres")
	} else {
		// Default to in-memory store with a small dev seed
		store := memory.New()
		member := treasury.Member{ID: uuid.New(), Name: "Ada Mensah", Email: "ada@example.org"}
		project := treasury.Project{ID: uuid.New(), Name: "Building Fund", Active: true}
		zero, _ := money.NewAmountFromMinorUnits(currency, 0)
		cash := treasury.FinancialAccount{
			ID: uuid.New(), OwnerID: member.ID, Name: "Main Cash", Currency: currency,
			InitialBalance: zero, CurrentBalance: zero, CanReceivePayments: true, Active: true,
		}
		store.SeedMember(member)
		store.SeedProject(project)
		store.SeedAccount(cash)
		logDevSeed(logger, "memory", member, project, cash)
		printDevSeedBanner(member, project, cash)
		srvMux = httpapi.New(store, store, store, store, store, store, currency, scale, logger).Handler()
		logger.Info("storage backend: memory")
	}

	srv := &http.Server{
		Addr:              ":8080",
		Handler:           srvMux,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("treasury service listening", "addr", srv.Addr, "currency", currency)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctxShutdown); err != nil {
			logger.Error("server shutdown error", "err", err)
		}
	case err := <-errCh:
		logger.Error("server error", "err", err)
	}
	if closeFn != nil {
		closeFn()
	}
}

func devSeedEnabled() bool {
	dev := strings.ToLower(strings.TrimSpace(os.Getenv("DEV_SEED")))
	return dev == "1" || dev == "true" || dev == "yes"
}

// logDevSeed emits structured logs with useful IDs
func logDevSeed(l *slog.Logger, backend string, member treasury.Member, project treasury.Project, cash treasury.FinancialAccount) {
	l.Info("DEV seed ("+backend+")",
		"member_id", member.ID.String(),
		"project_id", project.ID.String(),
		"cash_account_id", cash.ID.String(),
	)
}

// printDevSeedBanner prints a simple banner to stdout for easy copy/paste of IDs
func printDevSeedBanner(member treasury.Member, project treasury.Project, cash treasury.FinancialAccount) {
	fmt.Println("==================== DEV SEED ====================")
	fmt.Printf("member_id: %s\n", member.ID.String())
	fmt.Printf("project_id: %s\n", project.ID.String())
	fmt.Printf("cash_account_id: %s\n", cash.ID.String())
	fmt.Println("==================================================")
}

// parseLogLevel maps env values to slog.Leveler
func parseLogLevel(s string) slog.Leveler {
	switch s {
	case "DEBUG", "debug":
		return slog.LevelDebug
	case "WARN", "WARNING", "warn", "warning":
		return slog.LevelWarn
	case "ERROR", "ERR", "error", "err":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func buildLoggerFromEnv() *slog.Logger {
	level := parseLogLevel(os.Getenv("LOG_LEVEL"))
	format := strings.ToLower(strings.TrimSpace(os.Getenv("LOG_FORMAT")))
	if format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	}
	// default to JSON
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
