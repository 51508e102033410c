// Package analytics computes dashboard metrics over half-open time windows from
// the event store, the session tracker and the visitor ledger. Nothing here writes.
package analytics

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"visitortrack/api/apperrors"
	"visitortrack/api/logger"
	"visitortrack/api/models"
	"visitortrack/api/utils"
)

const (
	DefaultTopN  = 10
	MaxTopN      = 100
	MaxDailyDays = 365

	// DefaultRange is used by callers that omit a window.
	DefaultRange = 30 * utils.Day

	// MaxRange bounds the width of any analytics window.
	MaxRange = 366 * utils.Day
)

// funnelStages is the purchase path reported by Funnel.
var funnelStages = []models.EventType{
	models.EventPageView,
	models.EventProductView,
	models.EventAddToCart,
	models.EventPurchase,
}

type SessionSource interface {
	Count(ctx context.Context, filter models.SessionFilter) (int64, error)
	Scan(ctx context.Context, filter models.SessionFilter) ([]*models.Session, error)
}

type LedgerSource interface {
	Lookup(ctx context.Context, userIDs []string) (map[string]models.VisitorLedgerEntry, error)
}

type Engine struct {
	events   EventAggregator
	sessions SessionSource
	ledger   LedgerSource
	clock    clockwork.Clock
	log      *logger.Logger
}

// NewEngine uses the event store's own aggregation when it offers one and
// falls back to scanning otherwise.
func NewEngine(events EventSource, sessions SessionSource, ledger LedgerSource, clock clockwork.Clock, log *logger.Logger) *Engine {
	agg, ok := events.(EventAggregator)
	if !ok {
		agg = scanAggregator{src: events}
	}
	return &Engine{
		events:   agg,
		sessions: sessions,
		ledger:   ledger,
		clock:    clock,
		log:      log.Component("analytics_engine"),
	}
}

// Now is the engine clock in UTC.
func (e *Engine) Now() time.Time {
	return e.clock.Now().UTC()
}

// ValidateWindow rejects empty windows and windows wider than MaxRange.
func ValidateWindow(w utils.Window) error {
	if !w.Start.Before(w.End) {
		return apperrors.Validation("startDate must be before endDate")
	}
	if w.End.Sub(w.Start) > MaxRange {
		return apperrors.Validation("date range must not exceed %d days", int(MaxRange/utils.Day))
	}
	return nil
}

func rangeFilter(w utils.Window) models.EventFilter {
	return models.EventFilter{StartDate: w.Start, EndDate: w.End}
}

func pageViewFilter(w utils.Window) models.EventFilter {
	f := rangeFilter(w)
	f.EventType = models.EventPageView
	return f
}

func (e *Engine) totals(ctx context.Context, w utils.Window) (models.Totals, error) {
	return e.events.AggregateTotals(ctx, rangeFilter(w))
}

// ranked returns the grouped rows ordered by count desc then key asc, cut to limit.
func (e *Engine) ranked(ctx context.Context, filter models.EventFilter, dim models.Dimension, limit int) ([]models.RankedCount, error) {
	rows, err := e.events.AggregateBy(ctx, filter, dim, limit)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []models.RankedCount{}
	}
	sortRanked(rows)
	return firstN(rows, limit), nil
}

func (e *Engine) sessionsStarted(ctx context.Context, w utils.Window) (int64, error) {
	return e.sessions.Count(ctx, models.SessionFilter{StartedFrom: w.Start, StartedTo: w.End})
}

// loadFailed keeps classified errors and wraps the rest as internal.
func loadFailed(err error, msg string) error {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	return apperrors.Internal(err, "%s", msg)
}

// DashboardMetrics computes the overview of w, its trend against the preceding
// window of equal length and the breakdowns of w.
func (e *Engine) DashboardMetrics(ctx context.Context, w utils.Window) (*models.DashboardMetrics, error) {
	if err := ValidateWindow(w); err != nil {
		return nil, err
	}
	prev := w.Previous()

	var (
		cur, before               models.Totals
		curSessions, prevSessions int64
		daily                     []models.DailyStat
		m                         = &models.DashboardMetrics{Start: w.Start, End: w.End}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		cur, err = e.totals(gctx, w)
		return err
	})
	g.Go(func() (err error) {
		before, err = e.totals(gctx, prev)
		return err
	})
	g.Go(func() (err error) {
		curSessions, err = e.sessionsStarted(gctx, w)
		return err
	})
	g.Go(func() (err error) {
		prevSessions, err = e.sessionsStarted(gctx, prev)
		return err
	})
	g.Go(func() (err error) {
		m.TopPages, err = e.ranked(gctx, pageViewFilter(w), models.DimPage, DefaultTopN)
		return err
	})
	g.Go(func() (err error) {
		m.EventBreakdown, err = e.ranked(gctx, rangeFilter(w), models.DimEventType, 0)
		return err
	})
	g.Go(func() (err error) {
		m.GeographicData, err = e.ranked(gctx, rangeFilter(w), models.DimCountry, 0)
		return err
	})
	g.Go(func() (err error) {
		m.DeviceBreakdown, err = e.ranked(gctx, rangeFilter(w), models.DimDevice, 0)
		return err
	})
	g.Go(func() (err error) {
		daily, err = e.events.AggregateDaily(gctx, rangeFilter(w))
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, loadFailed(err, "failed to load dashboard data")
	}

	m.Overview = overviewOf(cur, curSessions)
	m.Trends = trendsOf(m.Overview, overviewOf(before, prevSessions))
	m.UserActivity = dailyActivity(daily, w)
	return m, nil
}

// UserInsights reports active users over trailing 1, 7 and 30 day windows ending at
// w.End, the most active users in w and the new/returning split of w's users.
func (e *Engine) UserInsights(ctx context.Context, w utils.Window) (*models.UserInsights, error) {
	if err := ValidateWindow(w); err != nil {
		return nil, err
	}

	var (
		users                  []models.RankedCount
		daily, weekly, monthly models.Totals
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		users, err = e.ranked(gctx, rangeFilter(w), models.DimUser, 0)
		return err
	})
	g.Go(func() (err error) {
		daily, err = e.totals(gctx, utils.Trailing(w.End, utils.Day))
		return err
	})
	g.Go(func() (err error) {
		weekly, err = e.totals(gctx, utils.Trailing(w.End, 7*utils.Day))
		return err
	})
	g.Go(func() (err error) {
		monthly, err = e.totals(gctx, utils.Trailing(w.End, 30*utils.Day))
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, loadFailed(err, "failed to load user events")
	}

	split, err := e.newVsReturning(ctx, users, w)
	if err != nil {
		return nil, err
	}

	return &models.UserInsights{
		Start: w.Start,
		End:   w.End,
		ActiveUsers: models.ActiveUsers{
			Daily:   daily.Users,
			Weekly:  weekly.Users,
			Monthly: monthly.Users,
		},
		TopUsers:       firstN(users, DefaultTopN),
		NewVsReturning: split,
	}, nil
}

// newVsReturning classifies users by their ledger firstSeen. Users the ledger has
// not caught up with yet count as new.
func (e *Engine) newVsReturning(ctx context.Context, users []models.RankedCount, w utils.Window) (models.NewVsReturning, error) {
	var split models.NewVsReturning
	if len(users) == 0 {
		return split, nil
	}
	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.Key)
	}

	entries, err := e.ledger.Lookup(ctx, ids)
	if err != nil {
		return split, apperrors.Internal(err, "failed to read visitor ledger")
	}
	for _, id := range ids {
		entry, ok := entries[id]
		if ok && entry.FirstSeen.Before(w.Start) {
			split.Returning++
		} else {
			split.New++
		}
	}
	return split, nil
}

// DailyStats returns one bucket per UTC day for the trailing days ending today,
// oldest first, with empty days present as zeros.
func (e *Engine) DailyStats(ctx context.Context, days int) ([]models.DailyStat, error) {
	if days < 1 || days > MaxDailyDays {
		return nil, apperrors.Validation("days must be between 1 and %d", MaxDailyDays)
	}
	buckets := utils.TrailingDays(e.Now(), days)
	span := utils.Window{Start: buckets[0].Start, End: buckets[len(buckets)-1].End}

	var (
		rows     []models.DailyStat
		sessions []*models.Session
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		rows, err = e.events.AggregateDaily(gctx, rangeFilter(span))
		return err
	})
	g.Go(func() (err error) {
		sessions, err = e.sessions.Scan(gctx, models.SessionFilter{StartedFrom: span.Start, StartedTo: span.End})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, loadFailed(err, "failed to load daily stats")
	}

	started := make(map[string]int64)
	for _, s := range sessions {
		started[utils.DayKey(s.StartTime)]++
	}
	out := fillDays(rows, buckets)
	for i := range out {
		out[i].Sessions = started[out[i].Date]
	}
	return out, nil
}

// PageViewStats ranks pages in w by views; topN is clamped to [1, MaxTopN].
func (e *Engine) PageViewStats(ctx context.Context, w utils.Window, topN int) ([]models.RankedCount, error) {
	if err := ValidateWindow(w); err != nil {
		return nil, err
	}
	topN = utils.Clamp(topN, DefaultTopN, 1, MaxTopN)
	rows, err := e.ranked(ctx, pageViewFilter(w), models.DimPage, topN)
	if err != nil {
		return nil, loadFailed(err, "failed to load page views")
	}
	return rows, nil
}

// RealtimeSnapshot computes the trailing 15 minute and 1 hour dashboards on demand.
func (e *Engine) RealtimeSnapshot(ctx context.Context) (*models.RealtimeSnapshot, error) {
	now := e.Now()
	snap := &models.RealtimeSnapshot{GeneratedAt: now}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		snap.Last15Minutes, err = e.DashboardMetrics(gctx, utils.Trailing(now, 15*time.Minute))
		return err
	})
	g.Go(func() (err error) {
		snap.LastHour, err = e.DashboardMetrics(gctx, utils.Trailing(now, time.Hour))
		return err
	})
	g.Go(func() (err error) {
		snap.ActiveSessions, err = e.sessions.Count(gctx, models.SessionFilter{Status: models.SessionActive})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, loadFailed(err, "failed to build realtime snapshot")
	}
	return snap, nil
}

// Summary is the export bundle for w.
func (e *Engine) Summary(ctx context.Context, w utils.Window) (*models.ExportSummary, error) {
	if err := ValidateWindow(w); err != nil {
		return nil, err
	}

	var (
		totals   models.Totals
		sessions []*models.Session
		sum      = &models.ExportSummary{
			SchemaVersion: models.ExportSchemaVersion,
			Start:         w.Start,
			End:           w.End,
			GeneratedAt:   e.Now(),
		}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		totals, err = e.totals(gctx, w)
		return err
	})
	g.Go(func() (err error) {
		sessions, err = e.sessions.Scan(gctx, models.SessionFilter{StartedFrom: w.Start, StartedTo: w.End})
		return err
	})
	g.Go(func() (err error) {
		sum.EventBreakdown, err = e.ranked(gctx, rangeFilter(w), models.DimEventType, 0)
		return err
	})
	g.Go(func() (err error) {
		sum.TopPages, err = e.ranked(gctx, pageViewFilter(w), models.DimPage, DefaultTopN)
		return err
	})
	g.Go(func() (err error) {
		sum.GeographicData, err = e.ranked(gctx, rangeFilter(w), models.DimCountry, 0)
		return err
	})
	g.Go(func() (err error) {
		sum.DeviceBreakdown, err = e.ranked(gctx, rangeFilter(w), models.DimDevice, 0)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, loadFailed(err, "failed to load summary data")
	}

	sum.Overview = overviewOf(totals, int64(len(sessions)))
	sum.Sessions = sessionStatsOf(sessions)
	return sum, nil
}

// Funnel counts distinct users reaching each purchase-path stage in w.
func (e *Engine) Funnel(ctx context.Context, w utils.Window) (*models.Funnel, error) {
	if err := ValidateWindow(w); err != nil {
		return nil, err
	}
	byType, err := e.ranked(ctx, rangeFilter(w), models.DimEventType, 0)
	if err != nil {
		return nil, loadFailed(err, "failed to load funnel events")
	}
	users := make(map[string]int64, len(byType))
	for _, row := range byType {
		users[row.Key] = row.UniqueVisitors
	}

	stages := make([]models.FunnelStage, 0, len(funnelStages))
	var first, previous int64
	for i, stage := range funnelStages {
		n := users[string(stage)]
		fs := models.FunnelStage{Stage: stage, Users: n}
		if i == 0 {
			first = n
			if n > 0 {
				fs.ConversionFromPrevious = 100
				fs.ConversionFromStart = 100
			}
		} else {
			fs.ConversionFromPrevious = utils.Percent(float64(n), float64(previous))
			fs.ConversionFromStart = utils.Percent(float64(n), float64(first))
		}
		previous = n
		stages = append(stages, fs)
	}
	return &models.Funnel{Start: w.Start, End: w.End, Stages: stages}, nil
}

func (e *Engine) GeographicBreakdown(ctx context.Context, w utils.Window) ([]models.RankedCount, error) {
	return e.breakdown(ctx, w, models.DimCountry)
}

func (e *Engine) DeviceBreakdown(ctx context.Context, w utils.Window) ([]models.RankedCount, error) {
	return e.breakdown(ctx, w, models.DimDevice)
}

func (e *Engine) breakdown(ctx context.Context, w utils.Window, dim models.Dimension) ([]models.RankedCount, error) {
	if err := ValidateWindow(w); err != nil {
		return nil, err
	}
	rows, err := e.ranked(ctx, rangeFilter(w), dim, 0)
	if err != nil {
		return nil, loadFailed(err, "failed to load events")
	}
	return rows, nil
}
