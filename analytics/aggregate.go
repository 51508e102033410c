package analytics

import (
	"sort"

	"visitortrack/api/models"
	"visitortrack/api/utils"
)

func isPageView(e models.Event) bool { return e.EventType == models.EventPageView }
func isPurchase(e models.Event) bool { return e.EventType == models.EventPurchase }

// inWindow keeps the events inside w, preserving order.
func inWindow(events []models.Event, w utils.Window) []models.Event {
	out := make([]models.Event, 0, len(events))
	for _, e := range events {
		if w.Contains(e.Timestamp) {
			out = append(out, e)
		}
	}
	return out
}

// countInWindow counts events inside w matching pred; a nil pred matches all.
func countInWindow(events []models.Event, w utils.Window, pred func(models.Event) bool) int64 {
	var n int64
	for _, e := range events {
		if w.Contains(e.Timestamp) && (pred == nil || pred(e)) {
			n++
		}
	}
	return n
}

func distinctUsers(events []models.Event) int64 {
	seen := make(map[string]struct{})
	for _, e := range events {
		seen[e.UserID] = struct{}{}
	}
	return int64(len(seen))
}

func revenue(events []models.Event) float64 {
	var total float64
	for _, e := range events {
		total += e.Revenue()
	}
	return utils.Round2(total)
}

// totalsOf counts events in w.
func totalsOf(events []models.Event, w utils.Window) models.Totals {
	in := inWindow(events, w)
	return models.Totals{
		Events:    int64(len(in)),
		Users:     distinctUsers(in),
		PageViews: countInWindow(in, w, isPageView),
		Purchases: countInWindow(in, w, isPurchase),
		Revenue:   revenue(in),
	}
}

// groupByField counts events per key with distinct visitors, ordered by
// count desc then key asc.
func groupByField(events []models.Event, dim models.Dimension) []models.RankedCount {
	counts := make(map[string]int64)
	visitors := make(map[string]map[string]struct{})
	for _, e := range events {
		key := dim.Key(e)
		if key == "" {
			continue
		}
		counts[key]++
		if visitors[key] == nil {
			visitors[key] = make(map[string]struct{})
		}
		visitors[key][e.UserID] = struct{}{}
	}

	out := make([]models.RankedCount, 0, len(counts))
	for key, n := range counts {
		out = append(out, models.RankedCount{Key: key, Count: n, UniqueVisitors: int64(len(visitors[key]))})
	}
	sortRanked(out)
	return out
}

// topNByField is groupByField cut to the first n rows; n <= 0 keeps all.
func topNByField(events []models.Event, dim models.Dimension, n int) []models.RankedCount {
	return firstN(groupByField(events, dim), n)
}

func firstN(rows []models.RankedCount, n int) []models.RankedCount {
	if n > 0 && len(rows) > n {
		rows = rows[:n]
	}
	return rows
}

func sortRanked(rows []models.RankedCount) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		return rows[i].Key < rows[j].Key
	})
}

func overviewOf(t models.Totals, sessions int64) models.Overview {
	return models.Overview{
		TotalEvents:    t.Events,
		TotalSessions:  sessions,
		TotalUsers:     t.Users,
		TotalPageViews: t.PageViews,
		TotalPurchases: t.Purchases,
		TotalRevenue:   utils.Round2(t.Revenue),
		ConversionRate: utils.Percent(float64(t.Purchases), float64(t.PageViews)),
	}
}

func trend(current, previous float64) models.Trend {
	change, isNew := utils.PercentChange(current, previous)
	t := models.Trend{Current: current, Previous: previous, ChangePercent: change}
	switch {
	case isNew:
		t.Status = models.TrendNew
	case change > 0:
		t.Status = models.TrendUp
	case change < 0:
		t.Status = models.TrendDown
	default:
		t.Status = models.TrendFlat
	}
	return t
}

func trendsOf(cur, prev models.Overview) models.Trends {
	return models.Trends{
		TotalEvents:    trend(float64(cur.TotalEvents), float64(prev.TotalEvents)),
		TotalSessions:  trend(float64(cur.TotalSessions), float64(prev.TotalSessions)),
		TotalUsers:     trend(float64(cur.TotalUsers), float64(prev.TotalUsers)),
		TotalPageViews: trend(float64(cur.TotalPageViews), float64(prev.TotalPageViews)),
		TotalPurchases: trend(float64(cur.TotalPurchases), float64(prev.TotalPurchases)),
		TotalRevenue:   trend(cur.TotalRevenue, prev.TotalRevenue),
		ConversionRate: trend(cur.ConversionRate, prev.ConversionRate),
	}
}

type dayBucket struct {
	stat  models.DailyStat
	users map[string]struct{}
}

// dailyTotals buckets events by UTC day in one pass. Only days with events are
// returned, oldest first.
func dailyTotals(events []models.Event) []models.DailyStat {
	buckets := make(map[string]*dayBucket)
	for _, e := range events {
		key := utils.DayKey(e.Timestamp)
		b := buckets[key]
		if b == nil {
			b = &dayBucket{stat: models.DailyStat{Date: key}, users: make(map[string]struct{})}
			buckets[key] = b
		}
		b.stat.Events++
		b.users[e.UserID] = struct{}{}
		switch {
		case isPageView(e):
			b.stat.PageViews++
		case isPurchase(e):
			b.stat.Purchases++
			b.stat.Revenue += e.Revenue()
		}
	}

	out := make([]models.DailyStat, 0, len(buckets))
	for _, b := range buckets {
		b.stat.Users = int64(len(b.users))
		b.stat.Revenue = utils.Round2(b.stat.Revenue)
		out = append(out, b.stat)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// fillDays lays rows over days, leaving days without a row as zeros.
func fillDays(rows []models.DailyStat, days []utils.Window) []models.DailyStat {
	byDate := make(map[string]models.DailyStat, len(rows))
	for _, r := range rows {
		byDate[r.Date] = r
	}
	out := make([]models.DailyStat, 0, len(days))
	for _, day := range days {
		key := utils.DayKey(day.Start)
		stat, ok := byDate[key]
		if !ok {
			stat = models.DailyStat{Date: key}
		}
		out = append(out, stat)
	}
	return out
}

// dailyActivity reduces zero-filled day rows to the dashboard activity series.
func dailyActivity(rows []models.DailyStat, w utils.Window) []models.DailyActivity {
	filled := fillDays(rows, daysCovering(w))
	out := make([]models.DailyActivity, 0, len(filled))
	for _, d := range filled {
		out = append(out, models.DailyActivity{Date: d.Date, Events: d.Events, Users: d.Users})
	}
	return out
}

// daysCovering returns the UTC calendar days touched by w, oldest first.
func daysCovering(w utils.Window) []utils.Window {
	out := make([]utils.Window, 0)
	for start := utils.StartOfDay(w.Start); start.Before(w.End); start = start.AddDate(0, 0, 1) {
		out = append(out, utils.Window{Start: start, End: start.AddDate(0, 0, 1)})
	}
	return out
}

func sessionStatsOf(sessions []*models.Session) models.SessionStats {
	var (
		stats    models.SessionStats
		terminal int64
		bounced  int64
		duration int64
	)
	for _, s := range sessions {
		switch s.Status {
		case models.SessionActive:
			stats.Active++
			continue
		case models.SessionEnded:
			stats.Ended++
		case models.SessionExpired:
			stats.Expired++
		}
		terminal++
		if s.DurationMs != nil {
			duration += *s.DurationMs
		}
		if s.PageViews <= 1 {
			bounced++
		}
	}
	if terminal > 0 {
		stats.AvgDurationMs = utils.Round2(float64(duration) / float64(terminal))
	}
	stats.BounceRate = utils.Percent(float64(bounced), float64(terminal))
	return stats
}
