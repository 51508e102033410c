package models

import "time"

type TrendStatus string

const (
	TrendUp   TrendStatus = "up"
	TrendDown TrendStatus = "down"
	TrendFlat TrendStatus = "flat"
	// TrendNew marks a metric that rose from zero; ChangePercent is 0 in that case.
	TrendNew TrendStatus = "new"
)

type Trend struct {
	Current       float64     `json:"current"`
	Previous      float64     `json:"previous"`
	ChangePercent float64     `json:"changePercent"`
	Status        TrendStatus `json:"status"`
}

type Overview struct {
	TotalEvents    int64   `json:"totalEvents"`
	TotalSessions  int64   `json:"totalSessions"`
	TotalUsers     int64   `json:"totalUsers"`
	TotalPageViews int64   `json:"totalPageViews"`
	TotalPurchases int64   `json:"totalPurchases"`
	TotalRevenue   float64 `json:"totalRevenue"`
	ConversionRate float64 `json:"conversionRate"`
}

type Trends struct {
	TotalEvents    Trend `json:"totalEvents"`
	TotalSessions  Trend `json:"totalSessions"`
	TotalUsers     Trend `json:"totalUsers"`
	TotalPageViews Trend `json:"totalPageViews"`
	TotalPurchases Trend `json:"totalPurchases"`
	TotalRevenue   Trend `json:"totalRevenue"`
	ConversionRate Trend `json:"conversionRate"`
}

// RankedCount is one row of a breakdown or top-N ranking.
type RankedCount struct {
	Key            string `json:"key"`
	Count          int64  `json:"count"`
	UniqueVisitors int64  `json:"uniqueVisitors"`
}

type DailyActivity struct {
	Date   string `json:"date"`
	Events int64  `json:"events"`
	Users  int64  `json:"users"`
}

type DashboardMetrics struct {
	Start           time.Time       `json:"start"`
	End             time.Time       `json:"end"`
	Overview        Overview        `json:"overview"`
	Trends          Trends          `json:"trends"`
	TopPages        []RankedCount   `json:"topPages"`
	EventBreakdown  []RankedCount   `json:"eventBreakdown"`
	UserActivity    []DailyActivity `json:"userActivity"`
	GeographicData  []RankedCount   `json:"geographicData"`
	DeviceBreakdown []RankedCount   `json:"deviceBreakdown"`
}

type ActiveUsers struct {
	Daily   int64 `json:"daily"`
	Weekly  int64 `json:"weekly"`
	Monthly int64 `json:"monthly"`
}

type NewVsReturning struct {
	New       int64 `json:"new"`
	Returning int64 `json:"returning"`
}

type UserInsights struct {
	Start          time.Time      `json:"start"`
	End            time.Time      `json:"end"`
	ActiveUsers    ActiveUsers    `json:"activeUsers"`
	TopUsers       []RankedCount  `json:"topUsers"`
	NewVsReturning NewVsReturning `json:"newVsReturning"`
}

type DailyStat struct {
	Date      string  `json:"date"`
	Events    int64   `json:"events"`
	PageViews int64   `json:"pageViews"`
	Purchases int64   `json:"purchases"`
	Users     int64   `json:"users"`
	Sessions  int64   `json:"sessions"`
	Revenue   float64 `json:"revenue"`
}

type FunnelStage struct {
	Stage                  EventType `json:"stage"`
	Users                  int64     `json:"users"`
	ConversionFromPrevious float64   `json:"conversionFromPrevious"`
	ConversionFromStart    float64   `json:"conversionFromStart"`
}

type Funnel struct {
	Start  time.Time     `json:"start"`
	End    time.Time     `json:"end"`
	Stages []FunnelStage `json:"stages"`
}

type RealtimeSnapshot struct {
	GeneratedAt    time.Time         `json:"generatedAt"`
	ActiveSessions int64             `json:"activeSessions"`
	Last15Minutes  *DashboardMetrics `json:"last15Minutes"`
	LastHour       *DashboardMetrics `json:"lastHour"`
}

type SessionStats struct {
	Active        int64   `json:"active"`
	Ended         int64   `json:"ended"`
	Expired       int64   `json:"expired"`
	AvgDurationMs float64 `json:"avgDurationMs"`
	BounceRate    float64 `json:"bounceRate"`
}

// ExportSummary is the schema-stable bundle handed to exporters.
type ExportSummary struct {
	SchemaVersion   int           `json:"schemaVersion"`
	Start           time.Time     `json:"start"`
	End             time.Time     `json:"end"`
	GeneratedAt     time.Time     `json:"generatedAt"`
	Overview        Overview      `json:"overview"`
	EventBreakdown  []RankedCount `json:"eventBreakdown"`
	TopPages        []RankedCount `json:"topPages"`
	GeographicData  []RankedCount `json:"geographicData"`
	DeviceBreakdown []RankedCount `json:"deviceBreakdown"`
	Sessions        SessionStats  `json:"sessions"`
}

const ExportSchemaVersion = 1
