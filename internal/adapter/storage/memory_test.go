package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
	"unsafe"

	"github.com/shopspring/decimal"

	"github.com/DaerkerOfc/Klowsky/internal/core/domain"
	"github.com/DaerkerOfc/Klowsky/internal/core/ledger"
)

var ctx = context.Background()

func seed(t *testing.T, s *MemoryStore, key, uid string) {
	t.Helper()
	if _, err := s.CreateAccount(ctx, domain.Account{Key: key, UID: uid, Name: key}); err != nil {
		t.Fatalf("CreateAccount(%s) err=%v", key, err)
	}
}

func TestMemoryCreateRejectsDuplicates(t *testing.T) {
	s := NewMemoryStore()
	seed(t, s, "AAA-111", "U1")

	if _, err := s.CreateAccount(ctx, domain.Account{Key: "AAA-111", UID: "U2"}); !errors.Is(err, domain.ErrDuplicateKey) {
		t.Fatalf("duplicate key: want ErrDuplicateKey, got %v", err)
	}
	if _, err := s.CreateAccount(ctx, domain.Account{Key: "BBB-222", UID: "U1"}); !errors.Is(err, domain.ErrDuplicateKey) {
		t.Fatalf("duplicate uid: want ErrDuplicateKey, got %v", err)
	}

	acc, err := s.GetAccount(ctx, "AAA-111")
	if err != nil {
		t.Fatal(err)
	}
	if !acc.Balance.IsZero() || acc.CreatedAt.IsZero() {
		t.Fatalf("unexpected new account %+v", acc)
	}
	if _, err := s.GetAccount(ctx, "BBB-222"); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("want ErrAccountNotFound, got %v", err)
	}
}

func TestMemoryApplyDeltaNeverNegative(t *testing.T) {
	s := NewMemoryStore()
	seed(t, s, "AAA-111", "U1")

	if _, err := s.ApplyDelta(ctx, "AAA-111", decimal.RequireFromString("5")); err != nil {
		t.Fatal(err)
	}
	if _, err := s.ApplyDelta(ctx, "AAA-111", decimal.RequireFromString("-5.01")); !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("want ErrInsufficientFunds, got %v", err)
	}
	acc, err := s.ApplyDelta(ctx, "AAA-111", decimal.RequireFromString("-5"))
	if err != nil {
		t.Fatal(err)
	}
	if !acc.Balance.IsZero() {
		t.Fatalf("balance=%s want 0", acc.Balance)
	}
	if _, err := s.ApplyDelta(ctx, "NOP-000", decimal.NewFromInt(1)); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("want ErrAccountNotFound, got %v", err)
	}
}

func TestMemoryConcurrentApplyDelta(t *testing.T) {
	s := NewMemoryStore()
	seed(t, s, "AAA-111", "U1")

	const workers = 100
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			if _, err := s.ApplyDelta(ctx, "AAA-111", decimal.RequireFromString("0.25")); err != nil {
				t.Errorf("ApplyDelta: %v", err)
			}
		}()
	}
	wg.Wait()

	acc, _ := s.GetAccount(ctx, "AAA-111")
	if !acc.Balance.Equal(decimal.NewFromInt(25)) {
		t.Fatalf("balance=%s want 25", acc.Balance)
	}
}

func TestMemoryTxRollback(t *testing.T) {
	s := NewMemoryStore()
	seed(t, s, "AAA-111", "U1")
	seed(t, s, "BBB-222", "U2")
	_, _ = s.ApplyDelta(ctx, "AAA-111", decimal.NewFromInt(10))

	boom := errors.New("boom")
	err := s.RunInTx(ctx, func(tx ledger.Tx) error {
		if _, err := tx.LockAccount(ctx, "AAA-111"); err != nil {
			return err
		}
		if _, err := tx.LockAccount(ctx, "BBB-222"); err != nil {
			return err
		}
		if _, err := tx.ApplyDelta(ctx, "AAA-111", decimal.NewFromInt(-4)); err != nil {
			return err
		}
		if _, err := tx.ApplyDelta(ctx, "BBB-222", decimal.NewFromInt(4)); err != nil {
			return err
		}
		if _, err := tx.AppendTransfer(ctx, "AAA-111", "BBB-222", decimal.NewFromInt(4)); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("want boom, got %v", err)
	}

	a, _ := s.GetAccount(ctx, "AAA-111")
	b, _ := s.GetAccount(ctx, "BBB-222")
	if !a.Balance.Equal(decimal.NewFromInt(10)) || !b.Balance.IsZero() {
		t.Fatalf("rollback failed: a=%s b=%s", a.Balance, b.Balance)
	}
	if rec, _ := s.LastReceived(ctx, "BBB-222"); rec != nil {
		t.Fatalf("transfer leaked into log: %+v", rec)
	}
}

func TestMemoryTxRequiresLock(t *testing.T) {
	s := NewMemoryStore()
	seed(t, s, "AAA-111", "U1")
	err := s.RunInTx(ctx, func(tx ledger.Tx) error {
		_, err := tx.ApplyDelta(ctx, "AAA-111", decimal.NewFromInt(1))
		return err
	})
	if err == nil {
		t.Fatal("expected error for unlocked account")
	}
}

func appendTransfer(t *testing.T, s *MemoryStore, src, dst string) {
	t.Helper()
	err := s.RunInTx(ctx, func(tx ledger.Tx) error {
		_, err := tx.AppendTransfer(ctx, src, dst, decimal.NewFromInt(1))
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestMemoryLogTiesAndClockSkew(t *testing.T) {
	s := NewMemoryStore()
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	appendTransfer(t, s, "AAA-111", "CCC-333")
	appendTransfer(t, s, "BBB-222", "CCC-333")

	last, err := s.LastReceived(ctx, "CCC-333")
	if err != nil {
		t.Fatal(err)
	}
	if last.SourceKey != "BBB-222" || last.Seq != 2 {
		t.Fatalf("tie not broken by insertion order: %+v", last)
	}

	// clock goes backwards; timestamps must not
	s.now = func() time.Time { return fixed.Add(-time.Minute) }
	appendTransfer(t, s, "DDD-444", "CCC-333")
	last, _ = s.LastReceived(ctx, "CCC-333")
	if last.SourceKey != "DDD-444" || last.CreatedAt.Before(fixed) {
		t.Fatalf("timestamp went backwards: %+v", last)
	}
}

func TestMemoryHistory(t *testing.T) {
	s := NewMemoryStore()
	appendTransfer(t, s, "AAA-111", "BBB-222")
	appendTransfer(t, s, "CCC-333", "DDD-444")
	appendTransfer(t, s, "BBB-222", "CCC-333")

	h, err := s.History(ctx, "BBB-222", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(h) != 2 || h[0].Seq != 3 || h[1].Seq != 1 {
		t.Fatalf("unexpected history %+v", h)
	}
	h, _ = s.History(ctx, "BBB-222", 1)
	if len(h) != 1 {
		t.Fatalf("limit ignored: %d", len(h))
	}
}

func TestSnapshotRestore(t *testing.T) {
	s := NewMemoryStore()
	seed(t, s, "AAA-111", "U1")
	seed(t, s, "BBB-222", "U2")
	_, _ = s.ApplyDelta(ctx, "AAA-111", decimal.RequireFromString("100.50"))
	appendTransfer(t, s, "AAA-111", "BBB-222")

	path := filepath.Join(t.TempDir(), "ledger.json")
	if err := s.Persist(path); err != nil {
		t.Fatalf("Persist err=%v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("tmp file left behind: %v", err)
	}

	snap, err := LoadSnapshot(path)
	if err != nil {
		t.Fatalf("LoadSnapshot err=%v", err)
	}
	if snap.Meta.Storage != "json_snapshot" || snap.Meta.Version != snapshotVersion {
		t.Fatalf("meta mismatch: %+v", snap.Meta)
	}

	restored := NewMemoryStore()
	if err := restored.Restore(snap); err != nil {
		t.Fatal(err)
	}
	a, err := restored.GetAccount(ctx, "AAA-111")
	if err != nil {
		t.Fatal(err)
	}
	if !a.Balance.Equal(decimal.RequireFromString("100.5")) {
		t.Fatalf("restored balance=%s want 100.50", a.Balance)
	}
	if last, _ := restored.LastReceived(ctx, "BBB-222"); last == nil || last.SourceKey != "AAA-111" {
		t.Fatalf("restored log mismatch: %+v", last)
	}
	if _, err := restored.CreateAccount(ctx, domain.Account{Key: "CCC-333", UID: "U1"}); !errors.Is(err, domain.ErrDuplicateKey) {
		t.Fatalf("restored uid index missing: %v", err)
	}

	// new transfers continue the sequence
	appendTransfer(t, restored, "AAA-111", "BBB-222")
	if last, _ := restored.LastReceived(ctx, "BBB-222"); last.Seq != 2 {
		t.Fatalf("seq=%d want 2", last.Seq)
	}
}

func TestRestoreRejectsBadSnapshot(t *testing.T) {
	s := NewMemoryStore()
	bad := Snapshot{
		Meta:     Meta{Version: snapshotVersion},
		Accounts: []domain.Account{{Key: "AAA-111", UID: "U1", Balance: decimal.NewFromInt(-1)}},
	}
	if err := s.Restore(bad); err == nil {
		t.Fatal("expected negative balance to be rejected")
	}

	dup := Snapshot{
		Meta: Meta{Version: snapshotVersion},
		Accounts: []domain.Account{
			{Key: "AAA-111", UID: "U1"},
			{Key: "BBB-222", UID: "U1"},
		},
	}
	if err := s.Restore(dup); !errors.Is(err, domain.ErrDuplicateKey) {
		t.Fatalf("want ErrDuplicateKey, got %v", err)
	}

	if err := s.Restore(Snapshot{Meta: Meta{Version: snapshotVersion + 1}}); err == nil {
		t.Fatal("expected future version to be rejected")
	}
}

func TestMemoryIdempotencyKeepsFirstResponse(t *testing.T) {
	s := NewMemoryStore()
	if _, _, found, _ := s.LookupResponse(ctx, "k1"); found {
		t.Fatal("unexpected hit")
	}
	_ = s.SaveResponse(ctx, "k1", 200, []byte(`{"ok":true}`))
	_ = s.SaveResponse(ctx, "k1", 500, []byte(`{"ok":false}`))

	status, body, found, err := s.LookupResponse(ctx, "k1")
	if err != nil || !found || status != 200 || string(body) != `{"ok":true}` {
		t.Fatalf("got status=%d body=%s found=%v err=%v", status, body, found, err)
	}
}

func TestMemoryIdempotencyOwnsKey(t *testing.T) {
	s := NewMemoryStore()
	buf := []byte("key-0000")
	key := unsafe.String(&buf[0], len(buf))
	_ = s.SaveResponse(ctx, key, 200, []byte(`{}`))

	// the caller's buffer gets reused for the next request
	copy(buf, "key-0001")

	if _, _, found, _ := s.LookupResponse(ctx, "key-0000"); !found {
		t.Fatal("stored key changed with the caller's buffer")
	}
	if _, _, found, _ := s.LookupResponse(ctx, "key-0001"); found {
		t.Fatal("unsaved key reported as hit")
	}
}

func TestSaveSnapshotRemovesTmpOnFailure(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "ledger.json")
	// a non-empty directory in the way makes the rename fail
	if err := os.MkdirAll(filepath.Join(target, "busy"), 0o755); err != nil {
		t.Fatal(err)
	}

	if err := SaveSnapshot(target, NewMemoryStore().Snapshot()); err == nil {
		t.Fatal("expected rename over a directory to fail")
	}
	if _, err := os.Stat(target + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("tmp file left behind: %v", err)
	}
}
