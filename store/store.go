// Package store holds the storage backends behind the event store, session
// tracker, visitor ledger and admin accounts.
package store

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"

	"visitortrack/api/models"
)

// psq is the PostgreSQL statement builder with dollar placeholders.
var psq = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// chq is the ClickHouse statement builder; clickhouse-go binds positional '?' placeholders.
var chq = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// EventStore is an append-only collection of events keyed by EventID.
type EventStore interface {
	// Insert stores one event. It fails with a DuplicateKey error when the id exists.
	Insert(ctx context.Context, event models.Event) error

	// InsertBatch stores events independently. The returned slice holds one entry
	// per input event: nil when stored, the rejection otherwise.
	InsertBatch(ctx context.Context, events []models.Event) []error

	// Query returns one page of matching events.
	Query(ctx context.Context, filter models.EventFilter, page models.Pagination) (*models.EventPage, error)

	// Scan returns every matching event in timestamp order.
	Scan(ctx context.Context, filter models.EventFilter) ([]models.Event, error)
}

// SessionStore persists sessions with per-session atomic updates.
type SessionStore interface {
	// Create fails with a Conflict error when the session id exists.
	Create(ctx context.Context, session *models.Session) error

	Get(ctx context.Context, sessionID string) (*models.Session, error)

	// Update applies fn to the session while holding that session exclusively and
	// persists the result when fn returns nil.
	Update(ctx context.Context, sessionID string, fn func(*models.Session) error) (*models.Session, error)

	Query(ctx context.Context, filter models.SessionFilter, page models.Pagination) (*models.SessionPage, error)

	Count(ctx context.Context, filter models.SessionFilter) (int64, error)

	Scan(ctx context.Context, filter models.SessionFilter) ([]*models.Session, error)

	// ExpireIdle moves every ACTIVE session whose LastActivityAt is before cutoff to
	// EXPIRED with EndTime = cutoff and returns how many changed.
	ExpireIdle(ctx context.Context, cutoff time.Time) (int64, error)
}

// Ledger keeps running per-visitor totals.
type Ledger interface {
	Apply(ctx context.Context, delta models.LedgerDelta) error

	// Lookup returns the entries that exist for the given users.
	Lookup(ctx context.Context, userIDs []string) (map[string]models.VisitorLedgerEntry, error)
}

// KeyGuard claims idempotency keys for backends that cannot enforce uniqueness themselves.
type KeyGuard interface {
	// Claim reports false when the key was already claimed.
	Claim(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

const (
	DefaultEventLimit   = 50
	DefaultSessionLimit = 20
	MaxPageLimit        = 1000
)

func normalizePage(p models.Pagination, defaultLimit int) models.Pagination {
	if p.Page <= 0 {
		p.Page = 1
	}
	if p.Limit <= 0 {
		p.Limit = defaultLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	if p.SortOrder != models.SortAsc {
		p.SortOrder = models.SortDesc
	}
	return p
}

func pageOffset(p models.Pagination) int {
	return (p.Page - 1) * p.Limit
}
