package sessions

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visitortrack/api/models"
)

func event(id, session string, typ models.EventType, page string) models.Event {
	return models.Event{
		EventID:   id,
		UserID:    "u1",
		SessionID: session,
		EventType: typ,
		Timestamp: t0,
		PageURL:   page,
		Metadata:  map[string]string{models.MetaDevice: "mobile"},
	}
}

func TestObserve_Lifecycle(t *testing.T) {
	tr, clock := newTestTracker()
	ctx := context.Background()

	require.NoError(t, tr.Observe(ctx, event("e1", "s1", models.EventSessionStart, "/landing")))
	require.NoError(t, tr.Observe(ctx, event("e2", "s1", models.EventPageView, "/landing")))
	require.NoError(t, tr.Observe(ctx, event("e3", "s1", models.EventClick, "/landing")))
	clock.Advance(3 * time.Minute)
	require.NoError(t, tr.Observe(ctx, event("e4", "s1", models.EventSessionEnd, "/thanks")))

	s, err := tr.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, models.SessionEnded, s.Status)
	assert.Equal(t, "/landing", s.EntryPage)
	assert.Equal(t, "/thanks", s.ExitPage)
	assert.Equal(t, "mobile", s.Metadata[models.MetaDevice])
	assert.Equal(t, int64(1), s.PageViews)
	assert.Equal(t, int64(4), s.EventCount)
	assert.Equal(t, (3 * time.Minute).Milliseconds(), *s.DurationMs)
}

func TestObserve_StartForExistingSessionCountsActivity(t *testing.T) {
	tr, _ := newTestTracker()
	ctx := context.Background()

	_, err := tr.Create(ctx, models.CreateSessionRequest{SessionID: "s1", UserID: "u1"})
	require.NoError(t, err)
	require.NoError(t, tr.Observe(ctx, event("e1", "s1", models.EventSessionStart, "/")))

	s, _ := tr.Get(ctx, "s1")
	assert.Equal(t, int64(1), s.EventCount)
}

func TestObserve_UnknownSessionIsDropped(t *testing.T) {
	tr, _ := newTestTracker()
	err := tr.Observe(context.Background(), event("e1", "ghost", models.EventPageView, "/"))
	assert.NoError(t, err)
}

func TestObserve_TerminalSessionIsNotReopened(t *testing.T) {
	tr, _ := newTestTracker()
	ctx := context.Background()

	_, err := tr.Create(ctx, models.CreateSessionRequest{SessionID: "s1", UserID: "u1"})
	require.NoError(t, err)
	_, err = tr.EndSession(ctx, "s1", "")
	require.NoError(t, err)

	require.NoError(t, tr.Observe(ctx, event("e1", "s1", models.EventPageView, "/")))
	require.NoError(t, tr.Observe(ctx, event("e2", "s1", models.EventSessionStart, "/")))

	s, _ := tr.Get(ctx, "s1")
	assert.Equal(t, models.SessionEnded, s.Status)
	assert.Zero(t, s.PageViews)
}
