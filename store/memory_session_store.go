package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"visitortrack/api/apperrors"
	"visitortrack/api/models"
	"visitortrack/api/utils"
)

// sessionEntry guards one session; updates to different sessions never contend.
type sessionEntry struct {
	mu      sync.Mutex
	session *models.Session
}

// MemorySessionStore implements SessionStore with a lock per session.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*sessionEntry
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]*sessionEntry)}
}

func (s *MemorySessionStore) Create(_ context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[session.SessionID]; exists {
		return apperrors.Conflict("session '%s' already exists", session.SessionID)
	}
	s.sessions[session.SessionID] = &sessionEntry{session: session.Clone()}
	return nil
}

func (s *MemorySessionStore) entry(sessionID string) (*sessionEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.sessions[sessionID]
	if !ok {
		return nil, apperrors.NotFound("session '%s' not found", sessionID)
	}
	return e, nil
}

func (s *MemorySessionStore) Get(_ context.Context, sessionID string) (*models.Session, error) {
	e, err := s.entry(sessionID)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.Clone(), nil
}

func (s *MemorySessionStore) Update(_ context.Context, sessionID string, fn func(*models.Session) error) (*models.Session, error) {
	e, err := s.entry(sessionID)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	working := e.session.Clone()
	if err := fn(working); err != nil {
		return e.session.Clone(), err
	}
	e.session = working
	return working.Clone(), nil
}

func (s *MemorySessionStore) Query(ctx context.Context, filter models.SessionFilter, page models.Pagination) (*models.SessionPage, error) {
	page = normalizePage(page, DefaultSessionLimit)

	matched, _ := s.Scan(ctx, filter)
	if page.SortOrder == models.SortDesc {
		sort.SliceStable(matched, func(i, j int) bool {
			if matched[i].StartTime.Equal(matched[j].StartTime) {
				return matched[i].SessionID < matched[j].SessionID
			}
			return matched[i].StartTime.After(matched[j].StartTime)
		})
	}

	total := int64(len(matched))
	from := pageOffset(page)
	if from > len(matched) {
		from = len(matched)
	}
	to := from + page.Limit
	if to > len(matched) {
		to = len(matched)
	}

	return &models.SessionPage{
		Items:      matched[from:to],
		Total:      total,
		TotalPages: utils.TotalPages(total, page.Limit),
	}, nil
}

func (s *MemorySessionStore) Count(ctx context.Context, filter models.SessionFilter) (int64, error) {
	matched, err := s.Scan(ctx, filter)
	if err != nil {
		return 0, err
	}
	return int64(len(matched)), nil
}

// Scan returns matching sessions ordered by start time.
func (s *MemorySessionStore) Scan(_ context.Context, filter models.SessionFilter) ([]*models.Session, error) {
	matched := make([]*models.Session, 0)
	for _, e := range s.snapshot() {
		e.mu.Lock()
		if filter.Matches(e.session) {
			matched = append(matched, e.session.Clone())
		}
		e.mu.Unlock()
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].StartTime.Equal(matched[j].StartTime) {
			return matched[i].SessionID < matched[j].SessionID
		}
		return matched[i].StartTime.Before(matched[j].StartTime)
	})
	return matched, nil
}

func (s *MemorySessionStore) ExpireIdle(_ context.Context, cutoff time.Time) (int64, error) {
	var expired int64
	for _, e := range s.snapshot() {
		e.mu.Lock()
		if e.session.Expire(cutoff) {
			expired++
		}
		e.mu.Unlock()
	}
	return expired, nil
}

// snapshot copies the entry list so per-session locks are taken without holding the map lock.
func (s *MemorySessionStore) snapshot() []*sessionEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]*sessionEntry, 0, len(s.sessions))
	for _, e := range s.sessions {
		entries = append(entries, e)
	}
	return entries
}

var _ SessionStore = (*MemorySessionStore)(nil)
