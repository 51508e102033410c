package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2"
	sq "github.com/Masterminds/squirrel"
	"go.uber.org/zap"

	"visitortrack/api/apperrors"
	"visitortrack/api/logger"
	"visitortrack/api/models"
	"visitortrack/api/utils"
)

const eventsTable = "visitor_events"

var eventColumns = []string{
	"event_id", "user_id", "session_id", "event_type", "timestamp",
	"properties", "metadata", "page_url", "referrer", "duration_ms",
}

var eventSortColumns = map[string]string{
	models.SortByTimestamp: "timestamp",
	models.SortByEventType: "event_type",
	models.SortByUserID:    "user_id",
	models.SortBySessionID: "session_id",
	models.SortByPageURL:   "page_url",
}

// ClickHouseEventStore persists events in the visitor_events MergeTree table.
// ClickHouse does not enforce unique keys, so event ids are claimed through a KeyGuard
// before the insert.
type ClickHouseEventStore struct {
	conn  clickhouse.Conn
	guard KeyGuard
	log   *logger.Logger
}

func NewClickHouseEventStore(conn clickhouse.Conn, guard KeyGuard, log *logger.Logger) *ClickHouseEventStore {
	return &ClickHouseEventStore{
		conn:  conn,
		guard: guard,
		log:   log.Component("clickhouse_event_store"),
	}
}

func (s *ClickHouseEventStore) claim(ctx context.Context, eventID string) error {
	claimed, err := s.guard.Claim(ctx, eventID)
	if err != nil {
		return apperrors.Internal(err, "failed to claim event id")
	}
	if !claimed {
		return apperrors.DuplicateKey("event '%s' already exists", eventID)
	}
	return nil
}

func (s *ClickHouseEventStore) release(ctx context.Context, eventID string) {
	if err := s.guard.Release(ctx, eventID); err != nil {
		s.log.Warn("Failed to release event id after insert failure",
			zap.String("event_id", eventID), zap.Error(err))
	}
}

func (s *ClickHouseEventStore) Insert(ctx context.Context, event models.Event) error {
	if err := s.claim(ctx, event.EventID); err != nil {
		return err
	}

	args, err := eventValues(event)
	if err != nil {
		s.release(ctx, event.EventID)
		return apperrors.Validation("invalid event properties: %v", err)
	}

	batch, err := s.conn.PrepareBatch(ctx, insertEventsSQL())
	if err != nil {
		s.release(ctx, event.EventID)
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	if err := batch.Append(args...); err != nil {
		_ = batch.Abort()
		s.release(ctx, event.EventID)
		return fmt.Errorf("failed to append event: %w", err)
	}
	if err := batch.Send(); err != nil {
		s.release(ctx, event.EventID)
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

func (s *ClickHouseEventStore) InsertBatch(ctx context.Context, events []models.Event) []error {
	errs := make([]error, len(events))
	if len(events) == 0 {
		return errs
	}

	batch, err := s.conn.PrepareBatch(ctx, insertEventsSQL())
	if err != nil {
		for i := range errs {
			errs[i] = fmt.Errorf("failed to prepare batch insert: %w", err)
		}
		return errs
	}

	appended := make([]int, 0, len(events))
	for i, event := range events {
		if err := s.claim(ctx, event.EventID); err != nil {
			errs[i] = err
			continue
		}
		args, err := eventValues(event)
		if err != nil {
			s.release(ctx, event.EventID)
			errs[i] = apperrors.Validation("invalid event properties: %v", err)
			continue
		}
		if err := batch.Append(args...); err != nil {
			s.log.Error("Error appending event to batch", zap.String("event_id", event.EventID), zap.Error(err))
			s.release(ctx, event.EventID)
			errs[i] = fmt.Errorf("failed to append event: %w", err)
			continue
		}
		appended = append(appended, i)
	}

	if len(appended) == 0 {
		_ = batch.Abort()
		return errs
	}

	if err := batch.Send(); err != nil {
		for _, i := range appended {
			s.release(ctx, events[i].EventID)
			errs[i] = fmt.Errorf("failed to send batch: %w", err)
		}
		return errs
	}

	s.log.Debug("Inserted event batch", zap.Int("count", len(appended)))
	return errs
}

func (s *ClickHouseEventStore) Query(ctx context.Context, filter models.EventFilter, page models.Pagination) (*models.EventPage, error) {
	page = normalizePage(page, DefaultEventLimit)

	countQuery, countArgs, err := buildEventCount(filter)
	if err != nil {
		return nil, fmt.Errorf("building event count query: %w", err)
	}
	var total uint64
	if err := s.conn.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}

	query, args, err := buildEventPageQuery(filter, page)
	if err != nil {
		return nil, fmt.Errorf("building event query: %w", err)
	}
	items, err := s.scanRows(ctx, query, args)
	if err != nil {
		return nil, err
	}

	return &models.EventPage{
		Items:      items,
		Total:      int64(total),
		TotalPages: utils.TotalPages(int64(total), page.Limit),
	}, nil
}

func (s *ClickHouseEventStore) Scan(ctx context.Context, filter models.EventFilter) ([]models.Event, error) {
	query, args, err := applyEventFilter(chq.Select(eventColumns...).From(eventsTable), filter).
		OrderBy("timestamp ASC", "event_id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building event scan query: %w", err)
	}
	return s.scanRows(ctx, query, args)
}

func (s *ClickHouseEventStore) scanRows(ctx context.Context, query string, args []any) ([]models.Event, error) {
	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	events := make([]models.Event, 0)
	for rows.Next() {
		var (
			e          models.Event
			eventType  string
			properties string
		)
		if err := rows.Scan(
			&e.EventID,
			&e.UserID,
			&e.SessionID,
			&eventType,
			&e.Timestamp,
			&properties,
			&e.Metadata,
			&e.PageURL,
			&e.Referrer,
			&e.DurationMs,
		); err != nil {
			return nil, fmt.Errorf("scanning event row: %w", err)
		}
		e.EventType = models.EventType(eventType)
		if properties != "" {
			if err := json.Unmarshal([]byte(properties), &e.Properties); err != nil {
				s.log.Warn("Dropping unreadable event properties", zap.String("event_id", e.EventID), zap.Error(err))
			}
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating event rows: %w", err)
	}
	return events, nil
}

func eventValues(e models.Event) ([]any, error) {
	properties := "{}"
	if len(e.Properties) > 0 {
		raw, err := json.Marshal(e.Properties)
		if err != nil {
			return nil, err
		}
		properties = string(raw)
	}
	metadata := e.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	return []any{
		e.EventID, e.UserID, e.SessionID, string(e.EventType), e.Timestamp,
		properties, metadata, e.PageURL, e.Referrer, e.DurationMs,
	}, nil
}

func applyEventFilter(qb sq.SelectBuilder, f models.EventFilter) sq.SelectBuilder {
	if f.UserID != "" {
		qb = qb.Where(sq.Eq{"user_id": f.UserID})
	}
	if f.SessionID != "" {
		qb = qb.Where(sq.Eq{"session_id": f.SessionID})
	}
	if f.EventType != "" {
		qb = qb.Where(sq.Eq{"event_type": string(f.EventType)})
	}
	if f.PageURL != "" {
		qb = qb.Where(sq.Eq{"page_url": f.PageURL})
	}
	if !f.StartDate.IsZero() {
		qb = qb.Where(sq.GtOrEq{"timestamp": f.StartDate})
	}
	if !f.EndDate.IsZero() {
		qb = qb.Where(sq.Lt{"timestamp": f.EndDate})
	}
	return qb
}

func buildEventCount(f models.EventFilter) (string, []any, error) {
	return applyEventFilter(chq.Select("count()").From(eventsTable), f).ToSql()
}

func buildEventPageQuery(f models.EventFilter, page models.Pagination) (string, []any, error) {
	column, ok := eventSortColumns[page.SortBy]
	if !ok {
		column = "timestamp"
	}
	direction := "DESC"
	if page.SortOrder == models.SortAsc {
		direction = "ASC"
	}

	return applyEventFilter(chq.Select(eventColumns...).From(eventsTable), f).
		OrderBy(column+" "+direction, "event_id ASC").
		Limit(uint64(page.Limit)).
		Offset(uint64(pageOffset(page))).
		ToSql()
}

func insertEventsSQL() string {
	return fmt.Sprintf("INSERT INTO %s (%s)", eventsTable, strings.Join(eventColumns, ", "))
}

var _ EventStore = (*ClickHouseEventStore)(nil)
