package analytics

import (
	"context"

	"visitortrack/api/models"
	"visitortrack/api/utils"
)

type EventSource interface {
	Scan(ctx context.Context, filter models.EventFilter) ([]models.Event, error)
}

// EventAggregator answers counting questions inside the event store so the
// engine never has to load raw rows. Filters carry the half-open window.
type EventAggregator interface {
	AggregateTotals(ctx context.Context, filter models.EventFilter) (models.Totals, error)

	// AggregateBy groups by dim ordered by count desc then key asc; limit <= 0 keeps all.
	AggregateBy(ctx context.Context, filter models.EventFilter, dim models.Dimension, limit int) ([]models.RankedCount, error)

	// AggregateDaily returns one row per UTC day that has events, oldest first.
	// Sessions is left zero.
	AggregateDaily(ctx context.Context, filter models.EventFilter) ([]models.DailyStat, error)
}

// scanAggregator computes aggregates in process from a full scan. It backs
// stores that cannot aggregate themselves, such as the in-memory store.
type scanAggregator struct {
	src EventSource
}

func (a scanAggregator) AggregateTotals(ctx context.Context, filter models.EventFilter) (models.Totals, error) {
	events, err := a.src.Scan(ctx, filter)
	if err != nil {
		return models.Totals{}, err
	}
	return totalsOf(events, windowOf(filter)), nil
}

func (a scanAggregator) AggregateBy(ctx context.Context, filter models.EventFilter, dim models.Dimension, limit int) ([]models.RankedCount, error) {
	events, err := a.src.Scan(ctx, filter)
	if err != nil {
		return nil, err
	}
	return topNByField(inWindow(events, windowOf(filter)), dim, limit), nil
}

func (a scanAggregator) AggregateDaily(ctx context.Context, filter models.EventFilter) ([]models.DailyStat, error) {
	events, err := a.src.Scan(ctx, filter)
	if err != nil {
		return nil, err
	}
	return dailyTotals(inWindow(events, windowOf(filter))), nil
}

func windowOf(filter models.EventFilter) utils.Window {
	return utils.Window{Start: filter.StartDate, End: filter.EndDate}
}
