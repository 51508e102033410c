package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"visitortrack/api/apperrors"
	"visitortrack/api/models"
	"visitortrack/api/utils"
)

var sessionColumns = []string{
	"session_id", "user_id", "status", "start_time", "end_time", "duration_ms",
	"page_views", "event_count", "entry_page", "exit_page", "metadata", "last_activity_at",
}

const selectSessionSQL = `
	SELECT session_id, user_id, status, start_time, end_time, duration_ms,
		page_views, event_count, entry_page, exit_page, metadata, last_activity_at
	FROM sessions
	WHERE session_id = $1`

// PostgresSessionStore implements SessionStore on PostgreSQL. Per-session atomicity
// comes from row locks (SELECT ... FOR UPDATE) and single-statement updates.
type PostgresSessionStore struct {
	db *sql.DB
}

func NewPostgresSessionStore(db *sql.DB) *PostgresSessionStore {
	return &PostgresSessionStore{db: db}
}

func (s *PostgresSessionStore) Create(ctx context.Context, session *models.Session) error {
	metadata, err := marshalMetadata(session.Metadata)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO sessions (
			session_id, user_id, status, start_time, page_views, event_count,
			entry_page, metadata, last_activity_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (session_id) DO NOTHING
	`
	res, err := s.db.ExecContext(ctx, query,
		session.SessionID, session.UserID, string(session.Status), session.StartTime,
		session.PageViews, session.EventCount, nullString(session.EntryPage), metadata,
		session.LastActivityAt,
	)
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading insert result: %w", err)
	}
	if n == 0 {
		return apperrors.Conflict("session '%s' already exists", session.SessionID)
	}
	return nil
}

func (s *PostgresSessionStore) Get(ctx context.Context, sessionID string) (*models.Session, error) {
	session, err := scanSession(s.db.QueryRowContext(ctx, selectSessionSQL, sessionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("session '%s' not found", sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("getting session: %w", err)
	}
	return session, nil
}

func (s *PostgresSessionStore) Update(ctx context.Context, sessionID string, fn func(*models.Session) error) (*models.Session, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning session update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	session, err := scanSession(tx.QueryRowContext(ctx, selectSessionSQL+" FOR UPDATE", sessionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("session '%s' not found", sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("locking session: %w", err)
	}

	if err := fn(session); err != nil {
		return session, err
	}

	query := `
		UPDATE sessions
		SET status = $2, end_time = $3, duration_ms = $4, page_views = $5,
			event_count = $6, exit_page = $7, last_activity_at = $8
		WHERE session_id = $1
	`
	if _, err := tx.ExecContext(ctx, query,
		session.SessionID, string(session.Status), session.EndTime, session.DurationMs,
		session.PageViews, session.EventCount, nullString(session.ExitPage), session.LastActivityAt,
	); err != nil {
		return nil, fmt.Errorf("updating session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing session update: %w", err)
	}
	return session, nil
}

func applySessionFilter(qb sq.SelectBuilder, f models.SessionFilter) sq.SelectBuilder {
	if f.UserID != "" {
		qb = qb.Where(sq.Eq{"user_id": f.UserID})
	}
	if f.Status != "" {
		qb = qb.Where(sq.Eq{"status": string(f.Status)})
	}
	if !f.StartedFrom.IsZero() {
		qb = qb.Where(sq.GtOrEq{"start_time": f.StartedFrom})
	}
	if !f.StartedTo.IsZero() {
		qb = qb.Where(sq.Lt{"start_time": f.StartedTo})
	}
	return qb
}

func (s *PostgresSessionStore) Query(ctx context.Context, filter models.SessionFilter, page models.Pagination) (*models.SessionPage, error) {
	page = normalizePage(page, DefaultSessionLimit)

	total, err := s.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	direction := "DESC"
	if page.SortOrder == models.SortAsc {
		direction = "ASC"
	}
	query, args, err := applySessionFilter(psq.Select(sessionColumns...).From("sessions"), filter).
		OrderBy("start_time "+direction, "session_id ASC").
		Limit(uint64(page.Limit)).
		Offset(uint64(pageOffset(page))).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building session query: %w", err)
	}

	items, err := s.scanAll(ctx, query, args)
	if err != nil {
		return nil, err
	}
	return &models.SessionPage{
		Items:      items,
		Total:      total,
		TotalPages: utils.TotalPages(total, page.Limit),
	}, nil
}

func (s *PostgresSessionStore) Count(ctx context.Context, filter models.SessionFilter) (int64, error) {
	query, args, err := applySessionFilter(psq.Select("COUNT(*)").From("sessions"), filter).ToSql()
	if err != nil {
		return 0, fmt.Errorf("building session count: %w", err)
	}
	var total int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("counting sessions: %w", err)
	}
	return total, nil
}

func (s *PostgresSessionStore) Scan(ctx context.Context, filter models.SessionFilter) ([]*models.Session, error) {
	query, args, err := applySessionFilter(psq.Select(sessionColumns...).From("sessions"), filter).
		OrderBy("start_time ASC", "session_id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building session scan: %w", err)
	}
	return s.scanAll(ctx, query, args)
}

func (s *PostgresSessionStore) ExpireIdle(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		UPDATE sessions
		SET status = 'EXPIRED',
			end_time = $1,
			duration_ms = (EXTRACT(EPOCH FROM ($1::timestamptz - start_time)) * 1000)::bigint
		WHERE status = 'ACTIVE' AND last_activity_at < $1
	`
	res, err := s.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("expiring idle sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading expire result: %w", err)
	}
	return n, nil
}

func (s *PostgresSessionStore) scanAll(ctx context.Context, query string, args []any) ([]*models.Session, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	sessions := make([]*models.Session, 0)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning session row: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating session rows: %w", err)
	}
	return sessions, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*models.Session, error) {
	var (
		s         models.Session
		status    string
		endTime   sql.NullTime
		duration  sql.NullInt64
		entryPage sql.NullString
		exitPage  sql.NullString
		metadata  []byte
	)
	if err := row.Scan(
		&s.SessionID,
		&s.UserID,
		&status,
		&s.StartTime,
		&endTime,
		&duration,
		&s.PageViews,
		&s.EventCount,
		&entryPage,
		&exitPage,
		&metadata,
		&s.LastActivityAt,
	); err != nil {
		return nil, err
	}

	s.Status = models.SessionStatus(status)
	if endTime.Valid {
		t := endTime.Time
		s.EndTime = &t
	}
	if duration.Valid {
		d := duration.Int64
		s.DurationMs = &d
	}
	s.EntryPage = entryPage.String
	s.ExitPage = exitPage.String
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &s.Metadata); err != nil {
			return nil, fmt.Errorf("decoding session metadata: %w", err)
		}
	}
	return &s, nil
}

func marshalMetadata(m map[string]string) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encoding metadata: %w", err)
	}
	return raw, nil
}

// nullString converts empty strings to NULL.
func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

var _ SessionStore = (*PostgresSessionStore)(nil)
