package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"visitortrack/api/apperrors"
	"visitortrack/api/models"
	"visitortrack/api/utils"
)

// MemoryEventStore keeps events in process memory. It backs local development
// and tests.
type MemoryEventStore struct {
	mu     sync.RWMutex
	events []models.Event
	byID   map[string]int
}

func NewMemoryEventStore() *MemoryEventStore {
	return &MemoryEventStore{byID: make(map[string]int)}
}

func (s *MemoryEventStore) Insert(_ context.Context, event models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.insertLocked(event)
}

func (s *MemoryEventStore) insertLocked(event models.Event) error {
	if _, exists := s.byID[event.EventID]; exists {
		return apperrors.DuplicateKey("event '%s' already exists", event.EventID)
	}
	s.byID[event.EventID] = len(s.events)
	s.events = append(s.events, event)
	return nil
}

func (s *MemoryEventStore) InsertBatch(_ context.Context, events []models.Event) []error {
	s.mu.Lock()
	defer s.mu.Unlock()

	errs := make([]error, len(events))
	for i, event := range events {
		errs[i] = s.insertLocked(event)
	}
	return errs
}

func (s *MemoryEventStore) Query(_ context.Context, filter models.EventFilter, page models.Pagination) (*models.EventPage, error) {
	page = normalizePage(page, DefaultEventLimit)
	if page.SortBy == "" {
		page.SortBy = models.SortByTimestamp
	}

	matched := s.match(filter)
	sortEvents(matched, page.SortBy, page.SortOrder)

	total := int64(len(matched))
	from := pageOffset(page)
	if from > len(matched) {
		from = len(matched)
	}
	to := from + page.Limit
	if to > len(matched) {
		to = len(matched)
	}

	return &models.EventPage{
		Items:      matched[from:to],
		Total:      total,
		TotalPages: utils.TotalPages(total, page.Limit),
	}, nil
}

func (s *MemoryEventStore) Scan(_ context.Context, filter models.EventFilter) ([]models.Event, error) {
	matched := s.match(filter)
	sortEvents(matched, models.SortByTimestamp, models.SortAsc)
	return matched, nil
}

func (s *MemoryEventStore) match(filter models.EventFilter) []models.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]models.Event, 0)
	for _, e := range s.events {
		if filter.Matches(e) {
			matched = append(matched, e)
		}
	}
	return matched
}

// sortEvents orders by field and breaks ties by event id so pages are stable.
func sortEvents(events []models.Event, field string, order models.SortOrder) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		c := compareEventField(a, b, field)
		if c == 0 {
			return a.EventID < b.EventID
		}
		if order == models.SortAsc {
			return c < 0
		}
		return c > 0
	})
}

func compareEventField(a, b models.Event, field string) int {
	switch field {
	case models.SortByEventType:
		return strings.Compare(string(a.EventType), string(b.EventType))
	case models.SortByUserID:
		return strings.Compare(a.UserID, b.UserID)
	case models.SortBySessionID:
		return strings.Compare(a.SessionID, b.SessionID)
	case models.SortByPageURL:
		return strings.Compare(a.PageURL, b.PageURL)
	default:
		return a.Timestamp.Compare(b.Timestamp)
	}
}

var _ EventStore = (*MemoryEventStore)(nil)
