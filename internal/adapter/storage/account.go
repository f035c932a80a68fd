package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/DaerkerOfc/Klowsky/internal/core/domain"
)

const uniqueViolation = "23505"

const accountColumns = `key, uid, name, balance::text, created_at`

type AccountRepository struct {
	db *pgxpool.Pool
}

func NewAccountRepository(db *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{db: db}
}

// CreateAccount
func (r *AccountRepository) CreateAccount(ctx context.Context, acc domain.Account) (*domain.Account, error) {
	query := `
		INSERT INTO accounts (key, uid, name, balance)
		VALUES ($1, $2, $3, 0)
		RETURNING ` + accountColumns

	created, err := scanAccount(r.db.QueryRow(ctx, query, acc.Key, acc.UID, acc.Name))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, domain.ErrDuplicateKey
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	return created, nil
}

// GetAccount
func (r *AccountRepository) GetAccount(ctx context.Context, key string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE key = $1`
	acc, err := scanAccount(r.db.QueryRow(ctx, query, key))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account %s: %w", key, err)
	}
	return acc, nil
}

// ApplyDelta adds delta in a single conditional UPDATE, so concurrent
// callers serialize on the row and the balance never goes negative.
func (r *AccountRepository) ApplyDelta(ctx context.Context, key string, delta decimal.Decimal) (*domain.Account, error) {
	return applyDelta(ctx, r.db, key, delta)
}

func applyDelta(ctx context.Context, q querier, key string, delta decimal.Decimal) (*domain.Account, error) {
	query := `
		UPDATE accounts
		SET balance = balance + $1::numeric
		WHERE key = $2 AND balance + $1::numeric >= 0
		RETURNING ` + accountColumns

	acc, err := scanAccount(q.QueryRow(ctx, query, delta.String(), key))
	if err == nil {
		return acc, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to update balance for %s: %w", key, err)
	}

	// No row updated: either the account is missing or the guard refused.
	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE key = $1)`, key).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check account %s: %w", key, err)
	}
	if !exists {
		return nil, domain.ErrAccountNotFound
	}
	return nil, domain.ErrInsufficientFunds
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var (
		acc     domain.Account
		balance string
	)
	if err := row.Scan(&acc.Key, &acc.UID, &acc.Name, &balance, &acc.CreatedAt); err != nil {
		return nil, err
	}
	b, err := decimal.NewFromString(balance)
	if err != nil {
		return nil, fmt.Errorf("parse balance %q: %w", balance, err)
	}
	acc.Balance = b
	return &acc, nil
}
