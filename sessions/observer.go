package sessions

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"visitortrack/api/apperrors"
	"visitortrack/api/models"
)

// Observe folds an accepted event into its session. SESSION_START creates the
// session when it is unknown and SESSION_END ends it. Events for unknown or
// terminal sessions are logged and dropped; only storage failures are returned.
func (t *Tracker) Observe(ctx context.Context, event models.Event) error {
	log := t.log.With(
		zap.String("session_id", event.SessionID),
		zap.String("event_id", event.EventID),
		zap.String("event_type", string(event.EventType)),
	)

	if event.EventType == models.EventSessionStart {
		_, err := t.Create(ctx, models.CreateSessionRequest{
			SessionID: event.SessionID,
			UserID:    event.UserID,
			EntryPage: event.PageURL,
			Metadata:  event.Metadata,
		})
		if err != nil && !apperrors.Is(err, apperrors.KindConflict) {
			return err
		}
	}

	_, err := t.RecordActivity(ctx, event.SessionID, event.EventType == models.EventPageView, 1)
	switch {
	case apperrors.Is(err, apperrors.KindNotFound):
		log.Info("Dropping event for unknown session")
		return nil
	case errors.Is(err, models.ErrSessionTerminal):
		log.Debug("Dropping activity on terminal session")
		return nil
	case err != nil:
		return err
	}

	if event.EventType == models.EventSessionEnd {
		if _, err := t.EndSession(ctx, event.SessionID, event.PageURL); err != nil {
			return err
		}
	}
	return nil
}
