package events

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visitortrack/api/apperrors"
	"visitortrack/api/logger"
	"visitortrack/api/models"
	"visitortrack/api/store"
)

var t0 = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

type recordingObserver struct {
	seen []string
	err  error
}

func (o *recordingObserver) Observe(_ context.Context, e models.Event) error {
	o.seen = append(o.seen, e.EventID)
	return o.err
}

type failingLedger struct{ store.Ledger }

func (failingLedger) Apply(context.Context, models.LedgerDelta) error {
	return errors.New("ledger offline")
}

type fixture struct {
	svc      *Service
	store    *store.MemoryEventStore
	ledger   *store.MemoryLedger
	observer *recordingObserver
}

func newFixture() *fixture {
	f := &fixture{
		store:    store.NewMemoryEventStore(),
		ledger:   store.NewMemoryLedger(),
		observer: &recordingObserver{},
	}
	f.svc = NewService(f.store, f.observer, f.ledger, clockwork.NewFakeClockAt(t0), logger.NewNop())
	return f
}

func pageView(id string, ts time.Time) models.IngestRequest {
	return models.IngestRequest{
		EventID:   id,
		UserID:    "u1",
		SessionID: "s1",
		EventType: models.EventPageView,
		Timestamp: &ts,
		PageURL:   "/home",
	}
}

func TestIngest_DefaultsIDAndTimestamp(t *testing.T) {
	f := newFixture()

	e, err := f.svc.Ingest(context.Background(), models.IngestRequest{
		UserID: "u1", SessionID: "s1", EventType: models.EventClick,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, e.EventID)
	assert.Equal(t, t0, e.Timestamp)
	assert.Equal(t, []string{e.EventID}, f.observer.seen)
}

func TestIngest_TruncatesTimestampToMillis(t *testing.T) {
	f := newFixture()
	f.svc = NewService(f.store, f.observer, f.ledger, clockwork.NewFakeClockAt(t0.Add(1234567*time.Nanosecond)), logger.NewNop())
	ctx := context.Background()

	defaulted, err := f.svc.Ingest(ctx, models.IngestRequest{UserID: "u1", SessionID: "s1", EventType: models.EventClick})
	require.NoError(t, err)
	assert.Equal(t, t0.Add(time.Millisecond), defaulted.Timestamp)

	sent, err := f.svc.Ingest(ctx, pageView("e1", t0.Add(999999*time.Nanosecond)))
	require.NoError(t, err)
	assert.Equal(t, t0, sent.Timestamp)

	stored, err := f.store.Scan(ctx, models.EventFilter{StartDate: t0, EndDate: t0.Add(time.Millisecond)})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "e1", stored[0].EventID)
}

func TestIngest_Validation(t *testing.T) {
	negative := int64(-5)
	tests := []struct {
		name  string
		req   models.IngestRequest
		field string
	}{
		{"missing user", models.IngestRequest{SessionID: "s1", EventType: models.EventClick}, "userId"},
		{"missing session", models.IngestRequest{UserID: "u1", EventType: models.EventClick}, "sessionId"},
		{"unknown type", models.IngestRequest{UserID: "u1", SessionID: "s1", EventType: "LOGIN"}, "eventType"},
		{"negative duration", models.IngestRequest{UserID: "u1", SessionID: "s1", EventType: models.EventScroll, Duration: &negative}, "duration"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			_, err := f.svc.Ingest(context.Background(), tt.req)
			require.Error(t, err)

			var appErr *apperrors.Error
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, apperrors.KindValidation, appErr.Kind)
			details, ok := appErr.Details.([]FieldError)
			require.True(t, ok)
			assert.Equal(t, tt.field, details[0].Field)
			assert.Empty(t, f.observer.seen)
		})
	}
}

func TestIngest_DuplicateLeavesCountersUnchanged(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.Ingest(ctx, pageView("e1", t0))
	require.NoError(t, err)

	_, err = f.svc.Ingest(ctx, pageView("e1", t0.Add(time.Minute)))
	assert.True(t, apperrors.Is(err, apperrors.KindDuplicateKey))

	assert.Len(t, f.observer.seen, 1)
	entries, err := f.ledger.Lookup(ctx, []string{"u1"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), entries["u1"].TotalEvents)

	all, _ := f.store.Scan(ctx, models.EventFilter{})
	require.Len(t, all, 1)
	assert.Equal(t, t0, all[0].Timestamp)
}

func TestIngest_SideEffectFailuresAreNotReturned(t *testing.T) {
	obs := &recordingObserver{err: errors.New("session store down")}
	svc := NewService(store.NewMemoryEventStore(), obs, failingLedger{}, clockwork.NewFakeClockAt(t0), logger.NewNop())

	_, err := svc.Ingest(context.Background(), pageView("e1", t0))
	assert.NoError(t, err)
}

func TestIngestBatch_PartialSuccess(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_, err := f.svc.Ingest(ctx, pageView("existing", t0))
	require.NoError(t, err)

	result, err := f.svc.IngestBatch(ctx, []models.IngestRequest{
		pageView("a", t0),
		{EventID: "bad", UserID: "u1", SessionID: "s1", EventType: "NOPE"},
		pageView("existing", t0),
		pageView("b", t0),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Accepted)
	require.Len(t, result.Rejected, 2)
	assert.Equal(t, 1, result.Rejected[0].Index)
	assert.Equal(t, string(apperrors.KindValidation), result.Rejected[0].Code)
	assert.Equal(t, 2, result.Rejected[1].Index)
	assert.Equal(t, "existing", result.Rejected[1].EventID)
	assert.Equal(t, string(apperrors.KindDuplicateKey), result.Rejected[1].Code)

	all, _ := f.store.Scan(ctx, models.EventFilter{})
	assert.Len(t, all, 3)
}

func TestIngestBatch_SizeLimits(t *testing.T) {
	f := newFixture()

	_, err := f.svc.IngestBatch(context.Background(), nil)
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))

	tooMany := make([]models.IngestRequest, models.MaxBatchSize+1)
	for i := range tooMany {
		tooMany[i] = pageView(fmt.Sprintf("e%d", i), t0)
	}
	_, err = f.svc.IngestBatch(context.Background(), tooMany)
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))

	all, _ := f.store.Scan(context.Background(), models.EventFilter{})
	assert.Empty(t, all)
}

func TestQuery_RejectsBadSortAndRange(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.Query(ctx, models.EventFilter{}, models.Pagination{SortBy: "properties"})
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))

	_, err = f.svc.Query(ctx, models.EventFilter{}, models.Pagination{SortOrder: "sideways"})
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))

	_, err = f.svc.Query(ctx, models.EventFilter{StartDate: t0, EndDate: t0}, models.Pagination{})
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))
}

func TestBySession_TimeAscending(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	for i, offset := range []time.Duration{3 * time.Minute, time.Minute, 2 * time.Minute} {
		_, err := f.svc.Ingest(ctx, pageView(fmt.Sprintf("e%d", i), t0.Add(offset)))
		require.NoError(t, err)
	}

	journey, err := f.svc.BySession(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, journey, 3)
	assert.Equal(t, []string{"e1", "e2", "e0"}, []string{journey[0].EventID, journey[1].EventID, journey[2].EventID})
}

func TestByUser_DefaultLimitAndOrder(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := f.svc.Ingest(ctx, pageView(fmt.Sprintf("e%d", i), t0.Add(time.Duration(i)*time.Minute)))
		require.NoError(t, err)
	}

	page, err := f.svc.ByUser(ctx, "u1", time.Time{}, time.Time{}, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	assert.Equal(t, "e2", page.Items[0].EventID)
}
