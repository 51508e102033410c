package models

import "time"

// VisitorLedgerEntry holds running per-user totals. It trails the event store and
// is never recomputed from raw events.
type VisitorLedgerEntry struct {
	UserID         string    `json:"userId"`
	TotalEvents    int64     `json:"totalEvents"`
	TotalSessions  int64     `json:"totalSessions"`
	TotalPurchases int64     `json:"totalPurchases"`
	TotalRevenue   float64   `json:"totalRevenue"`
	FirstSeen      time.Time `json:"firstSeen"`
	LastSeen       time.Time `json:"lastSeen"`
}

// LedgerDelta is the increment a single event contributes to its user's ledger entry.
type LedgerDelta struct {
	UserID    string
	Events    int64
	Sessions  int64
	Purchases int64
	Revenue   float64
	SeenAt    time.Time
}

func DeltaFor(e Event) LedgerDelta {
	d := LedgerDelta{UserID: e.UserID, Events: 1, SeenAt: e.Timestamp}
	switch e.EventType {
	case EventSessionStart:
		d.Sessions = 1
	case EventPurchase:
		d.Purchases = 1
		d.Revenue = e.Revenue()
	}
	return d
}

// Apply folds d into the entry.
func (l *VisitorLedgerEntry) Apply(d LedgerDelta) {
	l.TotalEvents += d.Events
	l.TotalSessions += d.Sessions
	l.TotalPurchases += d.Purchases
	l.TotalRevenue += d.Revenue
	if l.FirstSeen.IsZero() || d.SeenAt.Before(l.FirstSeen) {
		l.FirstSeen = d.SeenAt
	}
	if d.SeenAt.After(l.LastSeen) {
		l.LastSeen = d.SeenAt
	}
}
