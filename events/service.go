// Package events is the ingestion and query front of the event store.
package events

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"visitortrack/api/apperrors"
	"visitortrack/api/logger"
	"visitortrack/api/metrics"
	"visitortrack/api/models"
	"visitortrack/api/store"
	"visitortrack/api/utils"
)

// DefaultUserLimit is the page size of ByUser when the caller gives none.
const DefaultUserLimit = 100

// ActivityObserver is notified of every stored event.
type ActivityObserver interface {
	Observe(ctx context.Context, event models.Event) error
}

type Service struct {
	store    store.EventStore
	observer ActivityObserver
	ledger   store.Ledger
	validate *validator.Validate
	clock    clockwork.Clock
	log      *logger.Logger
}

func NewService(s store.EventStore, observer ActivityObserver, ledger store.Ledger, clock clockwork.Clock, log *logger.Logger) *Service {
	return &Service{
		store:    s,
		observer: observer,
		ledger:   ledger,
		validate: NewValidator(),
		clock:    clock,
		log:      log.Component("event_service"),
	}
}

// build validates req and turns it into an event, filling the id and timestamp.
func (s *Service) build(req models.IngestRequest) (models.Event, error) {
	if err := s.validate.Struct(req); err != nil {
		return models.Event{}, toValidationError(err)
	}

	event := models.Event{
		EventID:    req.EventID,
		UserID:     req.UserID,
		SessionID:  req.SessionID,
		EventType:  req.EventType,
		Properties: req.Properties,
		Metadata:   req.Metadata,
		PageURL:    req.PageURL,
		Referrer:   req.Referrer,
		DurationMs: req.Duration,
	}
	if event.EventID == "" {
		event.EventID = utils.GenerateEventID()
	}
	// Stored at millisecond precision, as in the ClickHouse DateTime64(3) column.
	if req.Timestamp != nil && !req.Timestamp.IsZero() {
		event.Timestamp = req.Timestamp.UTC().Truncate(time.Millisecond)
	} else {
		event.Timestamp = s.clock.Now().UTC().Truncate(time.Millisecond)
	}
	return event, nil
}

// Ingest stores one event and then updates its session and the visitor ledger.
func (s *Service) Ingest(ctx context.Context, req models.IngestRequest) (*models.Event, error) {
	event, err := s.build(req)
	if err != nil {
		metrics.EventRejected(string(apperrors.KindValidation))
		return nil, err
	}
	if err := s.store.Insert(ctx, event); err != nil {
		metrics.EventRejected(string(apperrors.KindOf(err)))
		return nil, err
	}
	s.accepted(ctx, event)
	return &event, nil
}

// IngestBatch ingests each request independently. One rejected item never
// undoes the others.
func (s *Service) IngestBatch(ctx context.Context, reqs []models.IngestRequest) (*models.BatchResult, error) {
	if len(reqs) == 0 {
		return nil, apperrors.Validation("events must contain at least one event")
	}
	if len(reqs) > models.MaxBatchSize {
		return nil, apperrors.Validation("events must contain at most %d events", models.MaxBatchSize)
	}

	result := &models.BatchResult{Rejected: make([]models.RejectedEvent, 0)}
	reject := func(i int, eventID string, err error) {
		kind := apperrors.KindOf(err)
		metrics.EventRejected(string(kind))
		result.Rejected = append(result.Rejected, models.RejectedEvent{
			Index: i, EventID: eventID, Code: string(kind), Reason: err.Error(),
		})
	}

	built := make([]models.Event, 0, len(reqs))
	positions := make([]int, 0, len(reqs))
	for i, req := range reqs {
		event, err := s.build(req)
		if err != nil {
			reject(i, req.EventID, err)
			continue
		}
		built = append(built, event)
		positions = append(positions, i)
	}

	errs := s.store.InsertBatch(ctx, built)
	for j, event := range built {
		if errs[j] != nil {
			reject(positions[j], event.EventID, errs[j])
			continue
		}
		result.Accepted++
		s.accepted(ctx, event)
	}

	s.log.Info("Batch ingested",
		zap.Int("received", len(reqs)),
		zap.Int("accepted", result.Accepted),
		zap.Int("rejected", len(result.Rejected)),
	)
	return result, nil
}

// accepted runs the side effects of a stored event. Their failures are logged
// because the event itself is already persisted.
func (s *Service) accepted(ctx context.Context, event models.Event) {
	metrics.EventIngested(string(event.EventType))

	if s.observer != nil {
		if err := s.observer.Observe(ctx, event); err != nil {
			s.log.Warn("Failed to update session from event",
				zap.String("event_id", event.EventID),
				zap.String("session_id", event.SessionID),
				zap.Error(err))
		}
	}
	if s.ledger != nil {
		if err := s.ledger.Apply(ctx, models.DeltaFor(event)); err != nil {
			s.log.Warn("Failed to update visitor ledger",
				zap.String("event_id", event.EventID),
				zap.String("user_id", event.UserID),
				zap.Error(err))
		}
	}
}

func validatePage(page models.Pagination) error {
	if page.SortBy != "" && !models.IsValidEventSortField(page.SortBy) {
		return apperrors.Validation("invalid sortBy '%s'", page.SortBy)
	}
	if !utils.IsValidSortOrder(string(page.SortOrder)) {
		return apperrors.Validation("invalid sortOrder '%s'", page.SortOrder)
	}
	if page.Limit > store.MaxPageLimit {
		return apperrors.Validation("limit must be at most %d", store.MaxPageLimit)
	}
	return nil
}

func validateRange(filter models.EventFilter) error {
	if !filter.StartDate.IsZero() && !filter.EndDate.IsZero() && !filter.StartDate.Before(filter.EndDate) {
		return apperrors.Validation("startDate must be before endDate")
	}
	return nil
}

func (s *Service) Query(ctx context.Context, filter models.EventFilter, page models.Pagination) (*models.EventPage, error) {
	if err := validatePage(page); err != nil {
		return nil, err
	}
	if err := validateRange(filter); err != nil {
		return nil, err
	}
	if filter.EventType != "" && !filter.EventType.Valid() {
		return nil, apperrors.Validation("invalid eventType '%s'", filter.EventType)
	}
	return s.store.Query(ctx, filter, page)
}

// ByUser returns the newest events of one user inside [start, end); zero bounds are open.
func (s *Service) ByUser(ctx context.Context, userID string, start, end time.Time, limit int) (*models.EventPage, error) {
	if limit <= 0 {
		limit = DefaultUserLimit
	}
	return s.Query(ctx,
		models.EventFilter{UserID: userID, StartDate: start, EndDate: end},
		models.Pagination{Page: 1, Limit: limit, SortBy: models.SortByTimestamp, SortOrder: models.SortDesc},
	)
}

// BySession returns the full journey of a session in time order.
func (s *Service) BySession(ctx context.Context, sessionID string) ([]models.Event, error) {
	return s.store.Scan(ctx, models.EventFilter{SessionID: sessionID})
}

// Scan returns all events matching filter for aggregation.
func (s *Service) Scan(ctx context.Context, filter models.EventFilter) ([]models.Event, error) {
	return s.store.Scan(ctx, filter)
}
