package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is a named balance identified by its key.
type Account struct {
	Key       string          `json:"key"`
	UID       string          `json:"uid"`
	Name      string          `json:"name"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
}

// TransferRecord is one committed entry of the transfer log.
// Seq is the insertion order and breaks timestamp ties.
type TransferRecord struct {
	ID        string          `json:"id"`
	Seq       int64           `json:"seq"`
	SourceKey string          `json:"source_key"`
	DestKey   string          `json:"dest_key"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
}
