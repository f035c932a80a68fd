package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/DaerkerOfc/Klowsky/internal/adapter/handler"
	"github.com/DaerkerOfc/Klowsky/internal/adapter/middleware"
	"github.com/DaerkerOfc/Klowsky/internal/adapter/storage"
	"github.com/DaerkerOfc/Klowsky/internal/core/config"
	"github.com/DaerkerOfc/Klowsky/internal/core/ledger"
	"github.com/DaerkerOfc/Klowsky/internal/core/security"
	"github.com/DaerkerOfc/Klowsky/internal/core/worker"
)

// backend is a ledger store that can also remember idempotent responses.
type backend interface {
	ledger.Store
	middleware.ResponseStore
}

func main() {
	// 1. Load Config
	cfg := config.LoadConfig()

	// 2. Setup Logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Pick storage
	var (
		store        backend
		closeStore   = func() {}
		snapshotDone <-chan struct{}
	)
	if cfg.UsesMemoryStore() {
		mem := storage.NewMemoryStore()
		snap, err := storage.LoadSnapshot(cfg.SnapshotPath)
		switch {
		case err == nil:
			if err := mem.Restore(snap); err != nil {
				slog.Error("Snapshot restore failed", "path", cfg.SnapshotPath, "error", err)
				os.Exit(1)
			}
			slog.Info("Snapshot restored", "path", cfg.SnapshotPath, "accounts", len(snap.Accounts), "transfers", len(snap.Transfers))
		case errors.Is(err, os.ErrNotExist):
			slog.Info("No snapshot found, starting empty", "path", cfg.SnapshotPath)
		default:
			slog.Error("Snapshot load failed", "path", cfg.SnapshotPath, "error", err)
			os.Exit(1)
		}

		if cfg.SnapshotInterval > 0 {
			snapshotDone = worker.StartSnapshotWorker(ctx, cfg.SnapshotInterval, func() error {
				return mem.Persist(cfg.SnapshotPath)
			}, logger)
		}
		store = mem
	} else {
		dbPool, err := storage.ConnectDB(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
		if err != nil {
			slog.Error("Database connection failed", "error", err)
			os.Exit(1)
		}
		if err := storage.Migrate(ctx, dbPool); err != nil {
			slog.Error("Migration failed", "error", err)
			os.Exit(1)
		}
		store = storage.NewPostgresStore(dbPool)
		closeStore = dbPool.Close
	}

	// 4. Engine
	engine := ledger.NewEngine(store, security.RandomGenerator{}, logger,
		ledger.WithCreateAttempts(cfg.CreateMaxAttempts))

	// 5. Setup Fiber
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	app.Use(cors.New())
	app.Use(middleware.RequestID())

	// 6. Routes
	handler.Register(app, engine, store)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("Server starting", "env", cfg.Env, "port", cfg.Port, "memory_store", cfg.UsesMemoryStore())
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("Server forced to shutdown", "error", err)
		}
	}()

	<-stop
	slog.Info("Shutting down server...")

	// Finish in-flight requests before the last snapshot or pool close.
	if err := app.Shutdown(); err != nil {
		slog.Error("Server shutdown failed", "error", err)
	}

	cancel()
	if snapshotDone != nil {
		<-snapshotDone
		slog.Info("Final snapshot written", "path", cfg.SnapshotPath)
	}
	closeStore()

	slog.Info("Server exited")
}
