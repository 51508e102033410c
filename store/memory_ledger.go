package store

import (
	"context"
	"sync"

	"visitortrack/api/models"
)

type MemoryLedger struct {
	mu      sync.RWMutex
	entries map[string]*models.VisitorLedgerEntry
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{entries: make(map[string]*models.VisitorLedgerEntry)}
}

func (l *MemoryLedger) Apply(_ context.Context, delta models.LedgerDelta) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[delta.UserID]
	if !ok {
		entry = &models.VisitorLedgerEntry{UserID: delta.UserID}
		l.entries[delta.UserID] = entry
	}
	entry.Apply(delta)
	return nil
}

func (l *MemoryLedger) Lookup(_ context.Context, userIDs []string) (map[string]models.VisitorLedgerEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[string]models.VisitorLedgerEntry, len(userIDs))
	for _, id := range userIDs {
		if entry, ok := l.entries[id]; ok {
			out[id] = *entry
		}
	}
	return out, nil
}

var _ Ledger = (*MemoryLedger)(nil)
