package handler

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/DaerkerOfc/Klowsky/internal/adapter/middleware"
	"github.com/DaerkerOfc/Klowsky/internal/core/domain"
)

// Amount accepts "1.000,00", "40.00" or a bare JSON number.
type Amount string

func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = Amount(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*a = Amount(n.String())
	return nil
}

func statusFor(err error) int {
	switch domain.KindOf(err) {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindInsufficientFunds:
		return http.StatusUnprocessableEntity
	case domain.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps a domain error to its status and stable code.
func writeError(c *fiber.Ctx, err error) error {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error("Request failed", "error", err, "path", c.Path(), "request_id", middleware.GetRequestID(c))
		return c.Status(status).JSON(fiber.Map{"error": "internal error", "code": domain.CodeOf(err)})
	}
	slog.Warn("Request rejected", "code", domain.CodeOf(err), "path", c.Path(), "request_id", middleware.GetRequestID(c))
	return c.Status(status).JSON(fiber.Map{"error": err.Error(), "code": domain.CodeOf(err)})
}

func badRequest(c *fiber.Ctx, code, msg string) error {
	return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": msg, "code": code})
}

type transferView struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	To        string `json:"to"`
	Amount    string `json:"amount"`
	Timestamp string `json:"timestamp"`
}

func viewTransfer(rec domain.TransferRecord) transferView {
	return transferView{
		ID:        rec.ID,
		From:      rec.SourceKey,
		To:        rec.DestKey,
		Amount:    domain.FormatAmount(rec.Amount),
		Timestamp: rec.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
	}
}
