package models

// Dimension is a key events are grouped by in breakdowns and rankings.
type Dimension string

const (
	DimPage      Dimension = "page"
	DimEventType Dimension = "eventType"
	DimUser      Dimension = "user"
	DimCountry   Dimension = "country"
	DimDevice    Dimension = "device"
)

// Key returns the grouping key of e. An empty key leaves the event out of the group.
func (d Dimension) Key(e Event) string {
	switch d {
	case DimPage:
		return e.PageURL
	case DimEventType:
		return string(e.EventType)
	case DimUser:
		return e.UserID
	case DimCountry:
		return e.Meta(MetaCountry)
	case DimDevice:
		return e.Meta(MetaDevice)
	default:
		return ""
	}
}

// Totals are the counters of a set of events.
type Totals struct {
	Events    int64
	Users     int64
	PageViews int64
	Purchases int64
	Revenue   float64
}
