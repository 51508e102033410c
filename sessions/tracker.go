// Package sessions owns the session lifecycle: creation, activity counters,
// explicit end and the inactivity sweep.
package sessions

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"visitortrack/api/apperrors"
	"visitortrack/api/logger"
	"visitortrack/api/metrics"
	"visitortrack/api/models"
	"visitortrack/api/store"
	"visitortrack/api/utils"
)

// errUnchanged aborts a store update that would not change the session.
var errUnchanged = errors.New("session unchanged")

type Tracker struct {
	store store.SessionStore
	clock clockwork.Clock
	log   *logger.Logger
}

func NewTracker(s store.SessionStore, clock clockwork.Clock, log *logger.Logger) *Tracker {
	return &Tracker{
		store: s,
		clock: clock,
		log:   log.Component("session_tracker"),
	}
}

func (t *Tracker) now() time.Time {
	return t.clock.Now().UTC()
}

// Create starts an ACTIVE session. A session id is generated when the request has none.
func (t *Tracker) Create(ctx context.Context, req models.CreateSessionRequest) (*models.Session, error) {
	if req.UserID == "" {
		return nil, apperrors.Validation("userId is required")
	}
	id := req.SessionID
	if id == "" {
		id = utils.GenerateSessionID()
	}

	session := models.NewSession(id, req.UserID, t.now())
	session.EntryPage = req.EntryPage
	if len(req.Metadata) > 0 {
		session.Metadata = make(map[string]string, len(req.Metadata))
		for k, v := range req.Metadata {
			session.Metadata[k] = v
		}
	}

	if err := t.store.Create(ctx, session); err != nil {
		return nil, err
	}
	metrics.SessionTransition(string(models.SessionActive), 1)
	t.log.Debug("Session started", zap.String("session_id", id), zap.String("user_id", req.UserID))
	return session, nil
}

// RecordActivity adds delta events to an ACTIVE session and refreshes its watermark.
// Activity on a terminal session is dropped and reported as models.ErrSessionTerminal.
func (t *Tracker) RecordActivity(ctx context.Context, sessionID string, isPageView bool, delta int64) (*models.Session, error) {
	now := t.now()
	return t.store.Update(ctx, sessionID, func(s *models.Session) error {
		return s.RecordActivity(isPageView, delta, now)
	})
}

// EndSession moves an ACTIVE session to ENDED. Ending a terminal session succeeds
// and leaves it as it was.
func (t *Tracker) EndSession(ctx context.Context, sessionID, exitPage string) (*models.Session, error) {
	now := t.now()
	session, err := t.store.Update(ctx, sessionID, func(s *models.Session) error {
		if !s.End(exitPage, now) {
			return errUnchanged
		}
		return nil
	})
	if errors.Is(err, errUnchanged) {
		return session, nil
	}
	if err != nil {
		return nil, err
	}
	metrics.SessionTransition(string(models.SessionEnded), 1)
	return session, nil
}

// SweepInactive expires every ACTIVE session idle for longer than threshold and
// returns how many were expired. The end time of an expired session is the cutoff.
func (t *Tracker) SweepInactive(ctx context.Context, threshold time.Duration) (int64, error) {
	if threshold <= 0 {
		return 0, apperrors.Validation("inactivity threshold must be positive")
	}

	started := t.clock.Now()
	cutoff := started.UTC().Add(-threshold)

	n, err := t.store.ExpireIdle(ctx, cutoff)
	metrics.ObserveSweep(t.clock.Since(started))
	if err != nil {
		return 0, err
	}
	metrics.SessionTransition(string(models.SessionExpired), n)

	t.log.Info("Inactive session sweep finished",
		zap.Int64("expired", n),
		zap.Duration("threshold", threshold),
		zap.Time("cutoff", cutoff),
	)
	return n, nil
}

func (t *Tracker) Get(ctx context.Context, sessionID string) (*models.Session, error) {
	return t.store.Get(ctx, sessionID)
}

func (t *Tracker) ListActive(ctx context.Context, page models.Pagination) (*models.SessionPage, error) {
	return t.store.Query(ctx, models.SessionFilter{Status: models.SessionActive}, page)
}

func (t *Tracker) Query(ctx context.Context, filter models.SessionFilter, page models.Pagination) (*models.SessionPage, error) {
	return t.store.Query(ctx, filter, page)
}

func (t *Tracker) Count(ctx context.Context, filter models.SessionFilter) (int64, error) {
	return t.store.Count(ctx, filter)
}

func (t *Tracker) Scan(ctx context.Context, filter models.SessionFilter) ([]*models.Session, error) {
	return t.store.Scan(ctx, filter)
}
