package handler

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/DaerkerOfc/Klowsky/internal/core/domain"
	"github.com/DaerkerOfc/Klowsky/internal/core/ledger"
)

type TransactionHandler struct {
	Engine *ledger.Engine
}

// Request Models
type CreditRequest struct {
	Key    string `json:"key"`
	Amount Amount `json:"amount"`
}

type TransferRequest struct {
	SourceKey string `json:"source_key"`
	DestKey   string `json:"dest_key"`
	Amount    Amount `json:"amount"`
}

// Transfer API
func (h *TransactionHandler) Transfer(c *fiber.Ctx) error {
	var req TransferRequest
	if err := c.BodyParser(&req); err != nil {
		slog.Warn("Invalid transfer body", "error", err)
		return badRequest(c, "INVALID_BODY", "Invalid request body")
	}
	if req.SourceKey == "" || req.DestKey == "" || req.Amount == "" {
		return badRequest(c, "MISSING_FIELDS", "amount, source_key and dest_key are required")
	}

	amount, err := domain.ParseAmount(string(req.Amount))
	if err != nil {
		return writeError(c, err)
	}

	rec, err := h.Engine.Transfer(c.UserContext(), req.SourceKey, req.DestKey, amount)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(fiber.Map{
		"message":  "Transfer complete",
		"transfer": viewTransfer(*rec),
	})
}

// Credit API. Admin top-up; gating access is left to the deployment.
func (h *TransactionHandler) Credit(c *fiber.Ctx) error {
	var req CreditRequest
	if err := c.BodyParser(&req); err != nil {
		slog.Warn("Invalid credit body", "error", err)
		return badRequest(c, "INVALID_BODY", "Invalid request body")
	}
	if req.Key == "" || req.Amount == "" {
		return badRequest(c, "MISSING_FIELDS", "amount and key are required")
	}

	amount, err := domain.ParseAmount(string(req.Amount))
	if err != nil {
		return writeError(c, err)
	}

	acc, err := h.Engine.Credit(c.UserContext(), req.Key, amount)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "Credit applied",
		"balance": domain.FormatAmount(acc.Balance),
	})
}
