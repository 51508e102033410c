package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visitortrack/api/models"
)

func TestMemoryLedger_ApplyAndLookup(t *testing.T) {
	l := NewMemoryLedger()
	ctx := context.Background()

	require.NoError(t, l.Apply(ctx, models.LedgerDelta{UserID: "u1", Events: 1, SeenAt: storeT0.Add(time.Hour)}))
	require.NoError(t, l.Apply(ctx, models.LedgerDelta{UserID: "u1", Events: 1, Purchases: 1, Revenue: 10, SeenAt: storeT0}))

	got, err := l.Lookup(ctx, []string{"u1", "missing"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(2), got["u1"].TotalEvents)
	assert.Equal(t, 10.0, got["u1"].TotalRevenue)
	assert.Equal(t, storeT0, got["u1"].FirstSeen)
	assert.Equal(t, storeT0.Add(time.Hour), got["u1"].LastSeen)
}
