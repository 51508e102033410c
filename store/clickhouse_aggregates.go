package store

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"visitortrack/api/models"
	"visitortrack/api/utils"
)

// revenueExpr reads properties.revenue as a number whether it was sent as a
// JSON number or a numeric string. Anything else counts as zero.
const revenueExpr = "if(JSONType(properties, 'revenue') = 'String', " +
	"toFloat64OrZero(JSONExtractString(properties, 'revenue')), " +
	"JSONExtractFloat(properties, 'revenue'))"

func totalsColumns(qb sq.SelectBuilder) sq.SelectBuilder {
	return qb.
		Column("count()").
		Column("uniqExact(user_id)").
		Column(sq.Expr("countIf(event_type = ?)", string(models.EventPageView))).
		Column(sq.Expr("countIf(event_type = ?)", string(models.EventPurchase))).
		Column(sq.Expr("sumIf("+revenueExpr+", event_type = ?)", string(models.EventPurchase)))
}

// dimensionKey is the grouping expression for dim, aliased as key.
func dimensionKey(dim models.Dimension) (sq.Sqlizer, error) {
	switch dim {
	case models.DimPage:
		return sq.Expr("page_url AS key"), nil
	case models.DimEventType:
		return sq.Expr("event_type AS key"), nil
	case models.DimUser:
		return sq.Expr("user_id AS key"), nil
	case models.DimCountry:
		return metadataKey(models.MetaCountry), nil
	case models.DimDevice:
		return metadataKey(models.MetaDevice), nil
	default:
		return nil, fmt.Errorf("unknown dimension %q", dim)
	}
}

func metadataKey(name string) sq.Sqlizer {
	return sq.Expr("if(trimBoth(metadata[?]) = '', ?, trimBoth(metadata[?])) AS key", name, models.Unknown, name)
}

func buildTotalsQuery(f models.EventFilter) (string, []any, error) {
	return applyEventFilter(totalsColumns(chq.Select()).From(eventsTable), f).ToSql()
}

func buildRankedQuery(f models.EventFilter, dim models.Dimension, limit int) (string, []any, error) {
	key, err := dimensionKey(dim)
	if err != nil {
		return "", nil, err
	}
	qb := applyEventFilter(
		chq.Select().Column(key).Column("count() AS events").Column("uniqExact(user_id) AS visitors").From(eventsTable),
		f,
	).
		GroupBy("key").
		Having("key != ''").
		OrderBy("events DESC", "key ASC")
	if limit > 0 {
		qb = qb.Limit(uint64(limit))
	}
	return qb.ToSql()
}

func buildDailyQuery(f models.EventFilter) (string, []any, error) {
	return applyEventFilter(totalsColumns(chq.Select("toDate(timestamp) AS day")).From(eventsTable), f).
		GroupBy("day").
		OrderBy("day ASC").
		ToSql()
}

// AggregateTotals counts the filtered events inside ClickHouse.
func (s *ClickHouseEventStore) AggregateTotals(ctx context.Context, filter models.EventFilter) (models.Totals, error) {
	query, args, err := buildTotalsQuery(filter)
	if err != nil {
		return models.Totals{}, fmt.Errorf("building totals query: %w", err)
	}
	var (
		events, users, pageViews, purchases uint64
		revenue                             float64
	)
	if err := s.conn.QueryRow(ctx, query, args...).Scan(&events, &users, &pageViews, &purchases, &revenue); err != nil {
		return models.Totals{}, fmt.Errorf("failed to aggregate events: %w", err)
	}
	return models.Totals{
		Events:    int64(events),
		Users:     int64(users),
		PageViews: int64(pageViews),
		Purchases: int64(purchases),
		Revenue:   revenue,
	}, nil
}

// AggregateBy groups the filtered events by dim ordered by count desc then key asc.
func (s *ClickHouseEventStore) AggregateBy(ctx context.Context, filter models.EventFilter, dim models.Dimension, limit int) ([]models.RankedCount, error) {
	query, args, err := buildRankedQuery(filter, dim, limit)
	if err != nil {
		return nil, fmt.Errorf("building %s breakdown query: %w", dim, err)
	}
	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate events by %s: %w", dim, err)
	}
	defer rows.Close()

	out := make([]models.RankedCount, 0)
	for rows.Next() {
		var (
			key             string
			count, visitors uint64
		)
		if err := rows.Scan(&key, &count, &visitors); err != nil {
			return nil, fmt.Errorf("scanning %s breakdown row: %w", dim, err)
		}
		out = append(out, models.RankedCount{Key: key, Count: int64(count), UniqueVisitors: int64(visitors)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s breakdown rows: %w", dim, err)
	}
	return out, nil
}

// AggregateDaily buckets the filtered events by UTC day.
func (s *ClickHouseEventStore) AggregateDaily(ctx context.Context, filter models.EventFilter) ([]models.DailyStat, error) {
	query, args, err := buildDailyQuery(filter)
	if err != nil {
		return nil, fmt.Errorf("building daily query: %w", err)
	}
	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate daily events: %w", err)
	}
	defer rows.Close()

	out := make([]models.DailyStat, 0)
	for rows.Next() {
		var (
			day                                 time.Time
			events, users, pageViews, purchases uint64
			revenue                             float64
		)
		if err := rows.Scan(&day, &events, &users, &pageViews, &purchases, &revenue); err != nil {
			return nil, fmt.Errorf("scanning daily row: %w", err)
		}
		out = append(out, models.DailyStat{
			Date:      utils.DayKey(day),
			Events:    int64(events),
			Users:     int64(users),
			PageViews: int64(pageViews),
			Purchases: int64(purchases),
			Revenue:   utils.Round2(revenue),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily rows: %w", err)
	}
	return out, nil
}
