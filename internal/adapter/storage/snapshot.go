package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/DaerkerOfc/Klowsky/internal/core/domain"
)

const snapshotVersion = 1

type Meta struct {
	Storage   string    `json:"storage"`
	Version   int       `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// Snapshot is the full state of a MemoryStore.
type Snapshot struct {
	Meta      Meta                    `json:"_meta"`
	Accounts  []domain.Account        `json:"accounts"`
	Transfers []domain.TransferRecord `json:"transfers"`
}

// Snapshot copies every account and the whole transfer log. Writers are
// paused for the duration of the copy.
func (s *MemoryStore) Snapshot() Snapshot {
	s.gate.Lock()
	defer s.gate.Unlock()

	snap := Snapshot{
		Meta: Meta{Storage: "json_snapshot", Version: snapshotVersion},
	}

	s.mu.RLock()
	for _, r := range s.accounts {
		snap.Accounts = append(snap.Accounts, r.acc)
	}
	s.mu.RUnlock()
	sort.Slice(snap.Accounts, func(i, j int) bool { return snap.Accounts[i].Key < snap.Accounts[j].Key })

	s.logMu.Lock()
	snap.Transfers = append([]domain.TransferRecord(nil), s.log...)
	s.logMu.Unlock()

	return snap
}

// Restore replaces the store's state with snap.
func (s *MemoryStore) Restore(snap Snapshot) error {
	if snap.Meta.Version > snapshotVersion {
		return fmt.Errorf("snapshot version %d is newer than supported %d", snap.Meta.Version, snapshotVersion)
	}

	accounts := make(map[string]*accountRow, len(snap.Accounts))
	uids := make(map[string]struct{}, len(snap.Accounts))
	for _, acc := range snap.Accounts {
		if acc.Balance.IsNegative() {
			return fmt.Errorf("snapshot account %s has negative balance %s", acc.Key, acc.Balance)
		}
		if _, ok := accounts[acc.Key]; ok {
			return fmt.Errorf("snapshot account %s: %w", acc.Key, domain.ErrDuplicateKey)
		}
		if _, ok := uids[acc.UID]; ok {
			return fmt.Errorf("snapshot uid %s: %w", acc.UID, domain.ErrDuplicateKey)
		}
		accounts[acc.Key] = &accountRow{acc: acc}
		uids[acc.UID] = struct{}{}
	}

	s.gate.Lock()
	defer s.gate.Unlock()

	s.mu.Lock()
	s.accounts = accounts
	s.uids = uids
	s.mu.Unlock()

	s.logMu.Lock()
	s.log = append([]domain.TransferRecord(nil), snap.Transfers...)
	s.lastSeen = time.Time{}
	if n := len(s.log); n > 0 {
		s.lastSeen = s.log[n-1].CreatedAt
	}
	s.logMu.Unlock()

	return nil
}

// LoadSnapshot reads a snapshot written by SaveSnapshot.
func LoadSnapshot(path string) (Snapshot, error) {
	var snap Snapshot
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(&snap); err != nil {
		return snap, fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	return snap, nil
}

// SaveSnapshot writes snap to path+".tmp" and renames it over path, so a
// crash mid-write leaves the previous file intact.
func SaveSnapshot(path string, snap Snapshot) error {
	snap.Meta.Storage = "json_snapshot"
	snap.Meta.Timestamp = time.Now().UTC()
	tmp := path + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// Persist saves the current state to path.
func (s *MemoryStore) Persist(path string) error {
	return SaveSnapshot(path, s.Snapshot())
}
