package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"visitortrack/api/models"
)

// PostgresLedger keeps visitor totals in the visitor_ledger table.
type PostgresLedger struct {
	db *sql.DB
}

func NewPostgresLedger(db *sql.DB) *PostgresLedger {
	return &PostgresLedger{db: db}
}

func (l *PostgresLedger) Apply(ctx context.Context, d models.LedgerDelta) error {
	query := `
		INSERT INTO visitor_ledger (
			user_id, total_events, total_sessions, total_purchases, total_revenue, first_seen, last_seen
		) VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			total_events = visitor_ledger.total_events + EXCLUDED.total_events,
			total_sessions = visitor_ledger.total_sessions + EXCLUDED.total_sessions,
			total_purchases = visitor_ledger.total_purchases + EXCLUDED.total_purchases,
			total_revenue = visitor_ledger.total_revenue + EXCLUDED.total_revenue,
			first_seen = LEAST(visitor_ledger.first_seen, EXCLUDED.first_seen),
			last_seen = GREATEST(visitor_ledger.last_seen, EXCLUDED.last_seen)
	`
	_, err := l.db.ExecContext(ctx, query,
		d.UserID, d.Events, d.Sessions, d.Purchases, d.Revenue, d.SeenAt,
	)
	if err != nil {
		return fmt.Errorf("applying ledger delta for %s: %w", d.UserID, err)
	}
	return nil
}

func (l *PostgresLedger) Lookup(ctx context.Context, userIDs []string) (map[string]models.VisitorLedgerEntry, error) {
	out := make(map[string]models.VisitorLedgerEntry, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}

	query := `
		SELECT user_id, total_events, total_sessions, total_purchases, total_revenue, first_seen, last_seen
		FROM visitor_ledger
		WHERE user_id = ANY($1)
	`
	rows, err := l.db.QueryContext(ctx, query, pq.Array(userIDs))
	if err != nil {
		return nil, fmt.Errorf("looking up ledger entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var e models.VisitorLedgerEntry
		if err := rows.Scan(
			&e.UserID,
			&e.TotalEvents,
			&e.TotalSessions,
			&e.TotalPurchases,
			&e.TotalRevenue,
			&e.FirstSeen,
			&e.LastSeen,
		); err != nil {
			return nil, fmt.Errorf("scanning ledger row: %w", err)
		}
		out[e.UserID] = e
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating ledger rows: %w", err)
	}
	return out, nil
}

var _ Ledger = (*PostgresLedger)(nil)
