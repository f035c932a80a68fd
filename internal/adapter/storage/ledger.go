package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/DaerkerOfc/Klowsky/internal/core/domain"
	"github.com/DaerkerOfc/Klowsky/internal/core/ledger"
)

const transferColumns = `id::text, seq, source_key, dest_key, amount::text, created_at`

type LedgerRepository struct {
	db *pgxpool.Pool
}

func NewLedgerRepository(db *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// RunInTx wraps fn in a database transaction.
func (r *LedgerRepository) RunInTx(ctx context.Context, fn func(tx ledger.Tx) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx failed: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit failed: %w", err)
	}
	return nil
}

// LastReceived returns the newest transfer into key.
func (r *LedgerRepository) LastReceived(ctx context.Context, key string) (*domain.TransferRecord, error) {
	query := `
		SELECT ` + transferColumns + `
		FROM transfers
		WHERE dest_key = $1
		ORDER BY created_at DESC, seq DESC
		LIMIT 1
	`
	rec, err := scanTransfer(r.db.QueryRow(ctx, query, key))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch last transfer for %s: %w", key, err)
	}
	return rec, nil
}

// History fetches the latest transfers in or out of key.
func (r *LedgerRepository) History(ctx context.Context, key string, limit int) ([]domain.TransferRecord, error) {
	query := `
		SELECT ` + transferColumns + `
		FROM transfers
		WHERE source_key = $1 OR dest_key = $1
		ORDER BY created_at DESC, seq DESC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, key, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var history []domain.TransferRecord
	for rows.Next() {
		rec, err := scanTransfer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transfer: %w", err)
		}
		history = append(history, *rec)
	}
	return history, rows.Err()
}

type pgTx struct {
	tx pgx.Tx
}

// LockAccount holds the row lock until commit or rollback.
func (t *pgTx) LockAccount(ctx context.Context, key string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE key = $1 FOR UPDATE`
	acc, err := scanAccount(t.tx.QueryRow(ctx, query, key))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock account %s: %w", key, err)
	}
	return acc, nil
}

func (t *pgTx) ApplyDelta(ctx context.Context, key string, delta decimal.Decimal) (*domain.Account, error) {
	return applyDelta(ctx, t.tx, key, delta)
}

func (t *pgTx) AppendTransfer(ctx context.Context, sourceKey, destKey string, amount decimal.Decimal) (*domain.TransferRecord, error) {
	query := `
		INSERT INTO transfers (id, source_key, dest_key, amount)
		VALUES ($1, $2, $3, $4::numeric)
		RETURNING ` + transferColumns

	rec, err := scanTransfer(t.tx.QueryRow(ctx, query, uuid.New(), sourceKey, destKey, amount.String()))
	if err != nil {
		return nil, fmt.Errorf("failed to insert transfer: %w", err)
	}
	return rec, nil
}

func scanTransfer(row pgx.Row) (*domain.TransferRecord, error) {
	var (
		rec    domain.TransferRecord
		amount string
	)
	if err := row.Scan(&rec.ID, &rec.Seq, &rec.SourceKey, &rec.DestKey, &amount, &rec.CreatedAt); err != nil {
		return nil, err
	}
	a, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	rec.Amount = a
	return &rec, nil
}
