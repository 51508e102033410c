package models

import (
	"errors"
	"time"
)

type SessionStatus string

const (
	SessionActive  SessionStatus = "ACTIVE"
	SessionEnded   SessionStatus = "ENDED"
	SessionExpired SessionStatus = "EXPIRED"
)

func (s SessionStatus) Valid() bool {
	return s == SessionActive || s == SessionEnded || s == SessionExpired
}

func (s SessionStatus) Terminal() bool {
	return s == SessionEnded || s == SessionExpired
}

// ErrSessionTerminal is returned by transitions attempted on an ENDED or EXPIRED session.
var ErrSessionTerminal = errors.New("session is no longer active")

// Session is the mutable aggregate derived from lifecycle calls and ingested events.
// LastActivityAt is advanced at write time, independent of event timestamps.
type Session struct {
	SessionID      string            `json:"sessionId"`
	UserID         string            `json:"userId"`
	Status         SessionStatus     `json:"status"`
	StartTime      time.Time         `json:"startTime"`
	EndTime        *time.Time        `json:"endTime,omitempty"`
	DurationMs     *int64            `json:"duration,omitempty"`
	PageViews      int64             `json:"pageViews"`
	EventCount     int64             `json:"eventCount"`
	EntryPage      string            `json:"entryPage,omitempty"`
	ExitPage       string            `json:"exitPage,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	LastActivityAt time.Time         `json:"lastActivityAt"`
}

// NewSession returns an ACTIVE session started at now.
func NewSession(sessionID, userID string, now time.Time) *Session {
	return &Session{
		SessionID:      sessionID,
		UserID:         userID,
		Status:         SessionActive,
		StartTime:      now,
		LastActivityAt: now,
	}
}

// RecordActivity adds delta events (and one page view when isPageView) and refreshes
// the activity watermark. Terminal sessions are left untouched.
func (s *Session) RecordActivity(isPageView bool, delta int64, now time.Time) error {
	if s.Status.Terminal() {
		return ErrSessionTerminal
	}
	if delta < 0 {
		delta = 0
	}
	s.EventCount += delta
	if isPageView {
		s.PageViews++
	}
	if now.After(s.LastActivityAt) {
		s.LastActivityAt = now
	}
	return nil
}

// End moves an ACTIVE session to ENDED at now. It reports false, leaving the
// session unchanged, when the session is already terminal.
func (s *Session) End(exitPage string, now time.Time) bool {
	if s.Status.Terminal() {
		return false
	}
	s.terminate(SessionEnded, now)
	if exitPage != "" {
		s.ExitPage = exitPage
	}
	return true
}

// IdleSince reports whether an ACTIVE session saw no activity at or after cutoff.
func (s *Session) IdleSince(cutoff time.Time) bool {
	return s.Status == SessionActive && s.LastActivityAt.Before(cutoff)
}

// Expire moves an idle ACTIVE session to EXPIRED with EndTime at cutoff, the
// last instant the session could still count as live.
func (s *Session) Expire(cutoff time.Time) bool {
	if !s.IdleSince(cutoff) {
		return false
	}
	s.terminate(SessionExpired, cutoff)
	return true
}

func (s *Session) terminate(status SessionStatus, at time.Time) {
	if at.Before(s.StartTime) {
		at = s.StartTime
	}
	end := at
	duration := SessionDuration(s.StartTime, end)
	s.Status = status
	s.EndTime = &end
	s.DurationMs = &duration
}

// SessionDuration is end-start in milliseconds.
func SessionDuration(start, end time.Time) int64 {
	return end.Sub(start).Milliseconds()
}

// Clone returns a deep copy safe to hand out of a store.
func (s *Session) Clone() *Session {
	c := *s
	if s.EndTime != nil {
		end := *s.EndTime
		c.EndTime = &end
	}
	if s.DurationMs != nil {
		d := *s.DurationMs
		c.DurationMs = &d
	}
	if s.Metadata != nil {
		c.Metadata = make(map[string]string, len(s.Metadata))
		for k, v := range s.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

// CreateSessionRequest is the body of the session-start endpoint.
type CreateSessionRequest struct {
	SessionID string            `json:"sessionId" binding:"omitempty,max=128"`
	UserID    string            `json:"userId" binding:"required,max=128"`
	EntryPage string            `json:"entryPage" binding:"omitempty,max=2048"`
	Metadata  map[string]string `json:"metadata"`
}

type EndSessionRequest struct {
	ExitPage string `json:"exitPage" binding:"omitempty,max=2048"`
}

// SessionFilter selects sessions. StartedFrom/StartedTo bound StartTime as [from, to).
type SessionFilter struct {
	UserID      string
	Status      SessionStatus
	StartedFrom time.Time
	StartedTo   time.Time
}

func (f SessionFilter) Matches(s *Session) bool {
	if f.UserID != "" && s.UserID != f.UserID {
		return false
	}
	if f.Status != "" && s.Status != f.Status {
		return false
	}
	if !f.StartedFrom.IsZero() && s.StartTime.Before(f.StartedFrom) {
		return false
	}
	if !f.StartedTo.IsZero() && !s.StartTime.Before(f.StartedTo) {
		return false
	}
	return true
}

type SessionPage struct {
	Items      []*Session `json:"items"`
	Total      int64      `json:"total"`
	TotalPages int        `json:"totalPages"`
}
