package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEventType_Valid(t *testing.T) {
	assert.True(t, EventPageView.Valid())
	assert.True(t, EventScroll.Valid())
	assert.False(t, EventType("page_view").Valid())
	assert.False(t, EventType("").Valid())
}

func TestEvent_Revenue(t *testing.T) {
	tests := []struct {
		name  string
		event Event
		want  float64
	}{
		{"json number", Event{EventType: EventPurchase, Properties: map[string]any{PropRevenue: 49.5}}, 49.5},
		{"numeric string", Event{EventType: EventPurchase, Properties: map[string]any{PropRevenue: "12.25"}}, 12.25},
		{"garbage string", Event{EventType: EventPurchase, Properties: map[string]any{PropRevenue: "n/a"}}, 0},
		{"missing", Event{EventType: EventPurchase}, 0},
		{"not a purchase", Event{EventType: EventAddToCart, Properties: map[string]any{PropRevenue: 10.0}}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.event.Revenue())
		})
	}
}

func TestEvent_Meta(t *testing.T) {
	e := Event{Metadata: map[string]string{MetaCountry: "DE", MetaDevice: "  "}}
	assert.Equal(t, "DE", e.Meta(MetaCountry))
	assert.Equal(t, Unknown, e.Meta(MetaDevice))
	assert.Equal(t, Unknown, e.Meta(MetaBrowser))
}

func TestEventFilter_HalfOpenRange(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)
	f := EventFilter{StartDate: start, EndDate: end}

	assert.True(t, f.Matches(Event{Timestamp: start}))
	assert.False(t, f.Matches(Event{Timestamp: end}))
	assert.True(t, EventFilter{StartDate: end}.Matches(Event{Timestamp: end}))
}

func TestLedgerEntry_Apply(t *testing.T) {
	var entry VisitorLedgerEntry
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	entry.Apply(DeltaFor(Event{UserID: "u1", EventType: EventSessionStart, Timestamp: at.Add(time.Hour)}))
	entry.Apply(DeltaFor(Event{UserID: "u1", EventType: EventPurchase, Timestamp: at,
		Properties: map[string]any{PropRevenue: 20.0}}))

	assert.Equal(t, int64(2), entry.TotalEvents)
	assert.Equal(t, int64(1), entry.TotalSessions)
	assert.Equal(t, int64(1), entry.TotalPurchases)
	assert.Equal(t, 20.0, entry.TotalRevenue)
	assert.Equal(t, at, entry.FirstSeen)
	assert.Equal(t, at.Add(time.Hour), entry.LastSeen)
}
