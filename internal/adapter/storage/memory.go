package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/DaerkerOfc/Klowsky/internal/core/domain"
	"github.com/DaerkerOfc/Klowsky/internal/core/ledger"
)

// MemoryStore keeps accounts and the transfer log in process memory.
// Each account has its own mutex so unrelated transfers run in parallel.
type MemoryStore struct {
	// gate is held shared by every writer and exclusively by Snapshot and
	// Restore, so a snapshot never sees half of a transfer.
	gate sync.RWMutex

	mu       sync.RWMutex
	accounts map[string]*accountRow
	uids     map[string]struct{}

	logMu    sync.Mutex
	log      []domain.TransferRecord
	lastSeen time.Time

	idemMu sync.Mutex
	idem   map[string]cachedResponse

	now func() time.Time
}

type accountRow struct {
	mu  sync.Mutex
	acc domain.Account
}

type cachedResponse struct {
	status int
	body   []byte
}

var _ ledger.Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[string]*accountRow),
		uids:     make(map[string]struct{}),
		idem:     make(map[string]cachedResponse),
		now:      time.Now,
	}
}

func (s *MemoryStore) CreateAccount(_ context.Context, acc domain.Account) (*domain.Account, error) {
	s.gate.RLock()
	defer s.gate.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[acc.Key]; ok {
		return nil, domain.ErrDuplicateKey
	}
	if _, ok := s.uids[acc.UID]; ok {
		return nil, domain.ErrDuplicateKey
	}

	acc.Balance = decimal.Zero
	acc.CreatedAt = s.now().UTC()
	s.accounts[acc.Key] = &accountRow{acc: acc}
	s.uids[acc.UID] = struct{}{}

	cp := acc
	return &cp, nil
}

func (s *MemoryStore) row(key string) (*accountRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.accounts[key]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return r, nil
}

func (s *MemoryStore) GetAccount(_ context.Context, key string) (*domain.Account, error) {
	r, err := s.row(key)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := r.acc
	return &cp, nil
}

func (s *MemoryStore) ApplyDelta(_ context.Context, key string, delta decimal.Decimal) (*domain.Account, error) {
	s.gate.RLock()
	defer s.gate.RUnlock()

	r, err := s.row(key)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.apply(delta)
}

// apply must be called with r.mu held.
func (r *accountRow) apply(delta decimal.Decimal) (*domain.Account, error) {
	next := r.acc.Balance.Add(delta)
	if next.IsNegative() {
		return nil, domain.ErrInsufficientFunds
	}
	r.acc.Balance = next
	cp := r.acc
	return &cp, nil
}

func (s *MemoryStore) LastReceived(_ context.Context, key string) (*domain.TransferRecord, error) {
	s.logMu.Lock()
	defer s.logMu.Unlock()
	for i := len(s.log) - 1; i >= 0; i-- {
		if s.log[i].DestKey == key {
			rec := s.log[i]
			return &rec, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) History(_ context.Context, key string, limit int) ([]domain.TransferRecord, error) {
	s.logMu.Lock()
	defer s.logMu.Unlock()
	var out []domain.TransferRecord
	for i := len(s.log) - 1; i >= 0 && len(out) < limit; i-- {
		if s.log[i].SourceKey == key || s.log[i].DestKey == key {
			out = append(out, s.log[i])
		}
	}
	return out, nil
}

func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

// RunInTx runs fn while holding the locks it takes. Deltas are undone in
// reverse order and buffered transfers dropped when fn fails.
func (s *MemoryStore) RunInTx(ctx context.Context, fn func(tx ledger.Tx) error) error {
	s.gate.RLock()
	defer s.gate.RUnlock()

	tx := &memTx{store: s, locked: make(map[string]*accountRow, 2)}
	defer tx.release()

	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	if err := ctx.Err(); err != nil {
		tx.rollback()
		return err
	}
	s.commitTransfers(tx.pending)
	return nil
}

// commitTransfers appends to the log. Timestamps never go backwards even
// if the wall clock does.
func (s *MemoryStore) commitTransfers(pending []*domain.TransferRecord) {
	if len(pending) == 0 {
		return
	}
	s.logMu.Lock()
	defer s.logMu.Unlock()
	for _, rec := range pending {
		at := s.now().UTC()
		if at.Before(s.lastSeen) {
			at = s.lastSeen
		}
		s.lastSeen = at
		rec.Seq = int64(len(s.log)) + 1
		rec.CreatedAt = at
		s.log = append(s.log, *rec)
	}
}

type memTx struct {
	store   *MemoryStore
	locked  map[string]*accountRow
	order   []*accountRow
	undo    []undoEntry
	pending []*domain.TransferRecord
}

type undoEntry struct {
	row   *accountRow
	delta decimal.Decimal
}

func (t *memTx) LockAccount(_ context.Context, key string) (*domain.Account, error) {
	if r, ok := t.locked[key]; ok {
		cp := r.acc
		return &cp, nil
	}
	r, err := t.store.row(key)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	t.locked[key] = r
	t.order = append(t.order, r)
	cp := r.acc
	return &cp, nil
}

func (t *memTx) ApplyDelta(_ context.Context, key string, delta decimal.Decimal) (*domain.Account, error) {
	r, ok := t.locked[key]
	if !ok {
		return nil, fmt.Errorf("account %s is not locked by this transaction", key)
	}
	acc, err := r.apply(delta)
	if err != nil {
		return nil, err
	}
	t.undo = append(t.undo, undoEntry{row: r, delta: delta})
	return acc, nil
}

func (t *memTx) AppendTransfer(_ context.Context, sourceKey, destKey string, amount decimal.Decimal) (*domain.TransferRecord, error) {
	rec := &domain.TransferRecord{
		ID:        uuid.NewString(),
		SourceKey: sourceKey,
		DestKey:   destKey,
		Amount:    amount,
	}
	t.pending = append(t.pending, rec)
	return rec, nil
}

func (t *memTx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		u := t.undo[i]
		u.row.acc.Balance = u.row.acc.Balance.Sub(u.delta)
	}
	t.undo = nil
	t.pending = nil
}

func (t *memTx) release() {
	for i := len(t.order) - 1; i >= 0; i-- {
		t.order[i].mu.Unlock()
	}
}
