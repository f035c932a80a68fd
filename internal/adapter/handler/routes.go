package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/DaerkerOfc/Klowsky/internal/adapter/middleware"
	"github.com/DaerkerOfc/Klowsky/internal/core/ledger"
)

// Register mounts the /v1 API and /health on app.
func Register(app *fiber.App, engine *ledger.Engine, responses middleware.ResponseStore) {
	accountHandler := &AccountHandler{Engine: engine}
	transactionHandler := &TransactionHandler{Engine: engine}
	healthHandler := &HealthHandler{Store: engine}

	app.Get("/health", healthHandler.Health)

	api := app.Group("/v1")

	api.Post("/accounts", accountHandler.CreateAccount)
	api.Get("/accounts/:key", accountHandler.GetAccount)
	api.Get("/accounts/:key/balance", accountHandler.GetBalance)
	api.Get("/accounts/:key/transfers/last", accountHandler.GetLastReceived)
	api.Get("/accounts/:key/transfers", accountHandler.GetHistory)

	api.Post("/transfers", middleware.Idempotency(responses), transactionHandler.Transfer)
	api.Post("/admin/credit", middleware.Idempotency(responses), transactionHandler.Credit)
}
