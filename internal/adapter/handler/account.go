package handler

import (
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/DaerkerOfc/Klowsky/internal/core/domain"
	"github.com/DaerkerOfc/Klowsky/internal/core/ledger"
)

type AccountHandler struct {
	Engine *ledger.Engine
}

// CreateAccountRequest defines what the user sends us
type CreateAccountRequest struct {
	Name string `json:"name"`
}

func (h *AccountHandler) CreateAccount(c *fiber.Ctx) error {
	var req CreateAccountRequest
	if err := c.BodyParser(&req); err != nil {
		slog.Warn("Invalid account body", "error", err)
		return badRequest(c, "INVALID_BODY", "Invalid request body")
	}

	account, err := h.Engine.CreateAccount(c.UserContext(), req.Name)
	if err != nil {
		return writeError(c, err)
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"name":    account.Name,
		"key":     account.Key,
		"uid":     account.UID,
		"balance": domain.FormatAmount(account.Balance),
	})
}

func (h *AccountHandler) GetAccount(c *fiber.Ctx) error {
	account, err := h.Engine.GetAccountByKey(c.UserContext(), c.Params("key"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"name": account.Name, "key": account.Key})
}

func (h *AccountHandler) GetBalance(c *fiber.Ctx) error {
	balance, err := h.Engine.GetBalance(c.UserContext(), c.Params("key"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"balance": domain.FormatAmount(balance)})
}

func (h *AccountHandler) GetLastReceived(c *fiber.Ctx) error {
	rec, err := h.Engine.GetLastReceivedTransfer(c.UserContext(), c.Params("key"))
	if err != nil {
		return writeError(c, err)
	}
	if rec == nil {
		return c.Status(http.StatusNotFound).JSON(fiber.Map{"message": "No transfer found", "code": "NO_TRANSFER"})
	}
	v := viewTransfer(*rec)
	return c.JSON(fiber.Map{"from": v.From, "amount": v.Amount, "timestamp": v.Timestamp})
}

func (h *AccountHandler) GetHistory(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", ledger.DefaultHistoryLimit)
	history, err := h.Engine.History(c.UserContext(), c.Params("key"), limit)
	if err != nil {
		return writeError(c, err)
	}

	transfers := make([]transferView, 0, len(history))
	for _, rec := range history {
		transfers = append(transfers, viewTransfer(rec))
	}
	return c.JSON(fiber.Map{"transfers": transfers})
}
