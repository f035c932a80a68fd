// Package ledger owns account balances and moves value between them.
//
// All mutations are funnelled through a Store. Transfers lock both accounts
// in ascending key order, check the source balance while holding the locks
// and commit the debit, the credit and the log record in one transaction.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/DaerkerOfc/Klowsky/internal/core/domain"
	"github.com/DaerkerOfc/Klowsky/internal/core/security"
)

const (
	DefaultCreateAttempts = 5
	DefaultHistoryLimit   = 10
	MaxHistoryLimit       = 100
)

type Engine struct {
	store          Store
	keys           security.Generator
	logger         *slog.Logger
	createAttempts int
}

type Option func(*Engine)

// WithCreateAttempts bounds how many generated keys are tried before
// CreateAccount gives up with domain.ErrConflict.
func WithCreateAttempts(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.createAttempts = n
		}
	}
}

func NewEngine(store Store, keys security.Generator, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		store:          store,
		keys:           keys,
		logger:         logger,
		createAttempts: DefaultCreateAttempts,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CreateAccount opens an account with a fresh key and uid and a zero balance.
func (e *Engine) CreateAccount(ctx context.Context, name string) (*domain.Account, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	for attempt := 1; attempt <= e.createAttempts; attempt++ {
		key, err := e.keys.NewKey()
		if err != nil {
			return nil, fmt.Errorf("generate key: %w", err)
		}
		uid, err := e.keys.NewUID()
		if err != nil {
			return nil, fmt.Errorf("generate uid: %w", err)
		}

		acc, err := e.store.CreateAccount(ctx, domain.Account{
			Key:     key,
			UID:     uid,
			Name:    name,
			Balance: decimal.Zero,
		})
		if errors.Is(err, domain.ErrDuplicateKey) {
			e.logger.Warn("account key collision, regenerating", "attempt", attempt, "key", key)
			continue
		}
		if err != nil {
			return nil, err
		}

		e.logger.Info("account created", "key", acc.Key, "name", acc.Name)
		return acc, nil
	}

	return nil, domain.ErrConflict
}

func (e *Engine) GetAccountByKey(ctx context.Context, key string) (*domain.Account, error) {
	return e.store.GetAccount(ctx, key)
}

func (e *Engine) GetBalance(ctx context.Context, key string) (decimal.Decimal, error) {
	acc, err := e.store.GetAccount(ctx, key)
	if err != nil {
		return decimal.Zero, err
	}
	return acc.Balance, nil
}

// Credit tops up a single account. It produces no transfer record.
func (e *Engine) Credit(ctx context.Context, key string, amount decimal.Decimal) (*domain.Account, error) {
	amount, err := domain.ValidateAmount(amount)
	if err != nil {
		return nil, err
	}

	acc, err := e.store.ApplyDelta(ctx, key, amount)
	if err != nil {
		return nil, err
	}

	e.logger.Info("account credited", "key", key, "amount", domain.FormatAmount(amount))
	return acc, nil
}

// Transfer moves amount from sourceKey to destKey. On any error neither
// balance nor the transfer log has changed.
func (e *Engine) Transfer(ctx context.Context, sourceKey, destKey string, amount decimal.Decimal) (*domain.TransferRecord, error) {
	amount, err := domain.ValidateAmount(amount)
	if err != nil {
		return nil, err
	}
	if sourceKey == destKey {
		return nil, domain.ErrSameAccount
	}

	e.logger.Debug("transfer started",
		"source", sourceKey,
		"dest", destKey,
		"amount", domain.FormatAmount(amount),
	)

	var rec *domain.TransferRecord
	err = e.store.RunInTx(ctx, func(tx Tx) error {
		locked, err := lockInOrder(ctx, tx, sourceKey, destKey)
		if err != nil {
			return err
		}

		source, dest := locked[sourceKey], locked[destKey]
		if source == nil {
			return domain.ErrSourceNotFound
		}
		if dest == nil {
			return domain.ErrDestinationNotFound
		}
		if source.Balance.LessThan(amount) {
			return domain.ErrInsufficientFunds
		}

		if _, err := tx.ApplyDelta(ctx, sourceKey, amount.Neg()); err != nil {
			return err
		}
		if _, err := tx.ApplyDelta(ctx, destKey, amount); err != nil {
			return err
		}

		rec, err = tx.AppendTransfer(ctx, sourceKey, destKey, amount)
		return err
	})
	if err != nil {
		if domain.KindOf(err) == domain.KindInternal {
			e.logger.Error("transfer failed", "source", sourceKey, "dest", destKey, "error", err)
		} else {
			e.logger.Warn("transfer rejected", "source", sourceKey, "dest", destKey, "reason", domain.CodeOf(err))
		}
		return nil, err
	}

	e.logger.Info("transfer committed",
		"seq", rec.Seq,
		"source", sourceKey,
		"dest", destKey,
		"amount", domain.FormatAmount(amount),
	)
	return rec, nil
}

// lockInOrder locks both accounts in ascending key order so two opposite
// transfers between the same pair cannot deadlock. Missing accounts are
// absent from the result.
func lockInOrder(ctx context.Context, tx Tx, a, b string) (map[string]*domain.Account, error) {
	first, second := a, b
	if second < first {
		first, second = second, first
	}

	locked := make(map[string]*domain.Account, 2)
	for _, key := range []string{first, second} {
		acc, err := tx.LockAccount(ctx, key)
		if errors.Is(err, domain.ErrAccountNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		locked[key] = acc
	}
	return locked, nil
}

// GetLastReceivedTransfer returns nil, nil when key has received nothing.
func (e *Engine) GetLastReceivedTransfer(ctx context.Context, key string) (*domain.TransferRecord, error) {
	return e.store.LastReceived(ctx, key)
}

// History lists recent transfers in or out of key, newest first.
func (e *Engine) History(ctx context.Context, key string, limit int) ([]domain.TransferRecord, error) {
	if _, err := e.store.GetAccount(ctx, key); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	return e.store.History(ctx, key, limit)
}

func (e *Engine) Ping(ctx context.Context) error {
	return e.store.Ping(ctx)
}
