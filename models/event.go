package models

import (
	"strconv"
	"strings"
	"time"
)

type EventType string

const (
	EventSessionStart   EventType = "SESSION_START"
	EventSessionEnd     EventType = "SESSION_END"
	EventPageView       EventType = "PAGE_VIEW"
	EventProductView    EventType = "PRODUCT_VIEW"
	EventAddToCart      EventType = "ADD_TO_CART"
	EventRemoveFromCart EventType = "REMOVE_FROM_CART"
	EventPurchase       EventType = "PURCHASE"
	EventSearch         EventType = "SEARCH"
	EventClick          EventType = "CLICK"
	EventScroll         EventType = "SCROLL"
)

var EventTypes = []EventType{
	EventSessionStart, EventSessionEnd, EventPageView, EventProductView, EventAddToCart,
	EventRemoveFromCart, EventPurchase, EventSearch, EventClick, EventScroll,
}

func (t EventType) Valid() bool {
	for _, known := range EventTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Recognized metadata keys. Anything else is stored as-is and ignored by aggregation.
const (
	MetaDevice           = "device"
	MetaBrowser          = "browser"
	MetaOS               = "os"
	MetaCountry          = "country"
	MetaRegion           = "region"
	MetaCity             = "city"
	MetaIPAddress        = "ipAddress"
	MetaUserAgent        = "userAgent"
	MetaScreenResolution = "screenResolution"
	MetaLanguage         = "language"
)

// PropRevenue is the property carrying the order value of a PURCHASE event.
const PropRevenue = "revenue"

// Unknown is the bucket for events missing a grouping attribute.
const Unknown = "unknown"

// Event is an immutable visitor action.
type Event struct {
	EventID    string            `json:"eventId"`
	UserID     string            `json:"userId"`
	SessionID  string            `json:"sessionId"`
	EventType  EventType         `json:"eventType"`
	Timestamp  time.Time         `json:"timestamp"`
	Properties map[string]any    `json:"properties,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	PageURL    string            `json:"pageUrl,omitempty"`
	Referrer   string            `json:"referrer,omitempty"`
	DurationMs *int64            `json:"duration,omitempty"`
}

// Meta returns a recognized metadata value, or Unknown when it is absent.
func (e Event) Meta(key string) string {
	if v := strings.TrimSpace(e.Metadata[key]); v != "" {
		return v
	}
	return Unknown
}

// Revenue returns the numeric revenue property of a PURCHASE event, 0 otherwise.
func (e Event) Revenue() float64 {
	if e.EventType != EventPurchase {
		return 0
	}
	switch v := e.Properties[PropRevenue].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

// IngestRequest is the client payload for a single event.
type IngestRequest struct {
	EventID    string            `json:"eventId" validate:"omitempty,max=128"`
	UserID     string            `json:"userId" validate:"required,max=128"`
	SessionID  string            `json:"sessionId" validate:"required,max=128"`
	EventType  EventType         `json:"eventType" validate:"required,eventtype"`
	Timestamp  *time.Time        `json:"timestamp"`
	Properties map[string]any    `json:"properties"`
	Metadata   map[string]string `json:"metadata"`
	PageURL    string            `json:"pageUrl" validate:"omitempty,max=2048"`
	Referrer   string            `json:"referrer" validate:"omitempty,max=2048"`
	Duration   *int64            `json:"duration" validate:"omitempty,min=0"`
}

// MaxBatchSize caps the number of events accepted in one batch request.
const MaxBatchSize = 1000

type BatchRequest struct {
	Events []IngestRequest `json:"events" binding:"required,min=1,max=1000"`
}

// BatchResult reports per-item outcomes of a batch ingestion.
type BatchResult struct {
	Accepted int             `json:"accepted"`
	Rejected []RejectedEvent `json:"rejected"`
}

type RejectedEvent struct {
	Index   int    `json:"index"`
	EventID string `json:"eventId,omitempty"`
	Code    string `json:"code"`
	Reason  string `json:"reason"`
}

type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// Sortable event fields.
const (
	SortByTimestamp = "timestamp"
	SortByEventType = "eventType"
	SortByUserID    = "userId"
	SortBySessionID = "sessionId"
	SortByPageURL   = "pageUrl"
)

func IsValidEventSortField(field string) bool {
	switch field {
	case SortByTimestamp, SortByEventType, SortByUserID, SortBySessionID, SortByPageURL:
		return true
	default:
		return false
	}
}

// EventFilter selects events. A zero StartDate/EndDate leaves that side unbounded;
// otherwise the range is [StartDate, EndDate).
type EventFilter struct {
	UserID    string
	SessionID string
	EventType EventType
	PageURL   string
	StartDate time.Time
	EndDate   time.Time
}

func (f EventFilter) Matches(e Event) bool {
	if f.UserID != "" && e.UserID != f.UserID {
		return false
	}
	if f.SessionID != "" && e.SessionID != f.SessionID {
		return false
	}
	if f.EventType != "" && e.EventType != f.EventType {
		return false
	}
	if f.PageURL != "" && e.PageURL != f.PageURL {
		return false
	}
	if !f.StartDate.IsZero() && e.Timestamp.Before(f.StartDate) {
		return false
	}
	if !f.EndDate.IsZero() && !e.Timestamp.Before(f.EndDate) {
		return false
	}
	return true
}

type Pagination struct {
	Page      int
	Limit     int
	SortBy    string
	SortOrder SortOrder
}

type EventPage struct {
	Items      []Event `json:"items"`
	Total      int64   `json:"total"`
	TotalPages int     `json:"totalPages"`
}
