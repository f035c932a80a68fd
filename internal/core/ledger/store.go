package ledger

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/DaerkerOfc/Klowsky/internal/core/domain"
)

// Store is the Account Store plus the Transfer Log. Every balance write
// goes through ApplyDelta, either directly or inside RunInTx.
type Store interface {
	// CreateAccount inserts acc with a zero balance. A taken key or uid
	// yields domain.ErrDuplicateKey.
	CreateAccount(ctx context.Context, acc domain.Account) (*domain.Account, error)
	GetAccount(ctx context.Context, key string) (*domain.Account, error)
	// ApplyDelta atomically adds delta to the balance. It fails with
	// domain.ErrInsufficientFunds instead of going below zero.
	ApplyDelta(ctx context.Context, key string, delta decimal.Decimal) (*domain.Account, error)

	// LastReceived returns nil, nil when key never received a transfer.
	LastReceived(ctx context.Context, key string) (*domain.TransferRecord, error)
	// History lists transfers touching key, newest first.
	History(ctx context.Context, key string, limit int) ([]domain.TransferRecord, error)

	// RunInTx commits everything fn did if it returns nil and undoes all
	// of it otherwise.
	RunInTx(ctx context.Context, fn func(tx Tx) error) error
	Ping(ctx context.Context) error
}

// Tx is one all-or-nothing unit of work.
type Tx interface {
	// LockAccount takes the account's exclusive lock until the transaction
	// ends and returns its current state.
	LockAccount(ctx context.Context, key string) (*domain.Account, error)
	// ApplyDelta behaves like Store.ApplyDelta on a locked account.
	ApplyDelta(ctx context.Context, key string, delta decimal.Decimal) (*domain.Account, error)
	// AppendTransfer adds a record to the log. Seq and CreatedAt are final
	// once the transaction has committed.
	AppendTransfer(ctx context.Context, sourceKey, destKey string, amount decimal.Decimal) (*domain.TransferRecord, error)
}
