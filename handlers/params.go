package handlers

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"visitortrack/api/apperrors"
	"visitortrack/api/models"
	"visitortrack/api/utils"
)

// parseTime accepts RFC3339 timestamps and plain dates (UTC midnight).
func parseTime(name, v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.DateOnly, v); err == nil {
		return t, nil
	}
	return time.Time{}, apperrors.Validation("invalid '%s' format, use RFC3339 (2006-01-02T15:04:05Z) or 2006-01-02", name)
}

func optionalTime(c *gin.Context, name string) (time.Time, error) {
	v := c.Query(name)
	if v == "" {
		return time.Time{}, nil
	}
	return parseTime(name, v)
}

// parseWindow reads startDate/endDate as [start, end). A missing end is now and a
// missing start is defaultRange before the end. Windows wider than maxRange are rejected.
func parseWindow(c *gin.Context, now time.Time, defaultRange, maxRange time.Duration) (utils.Window, error) {
	start, err := optionalTime(c, "startDate")
	if err != nil {
		return utils.Window{}, err
	}
	end, err := optionalTime(c, "endDate")
	if err != nil {
		return utils.Window{}, err
	}
	if end.IsZero() {
		end = now
	}
	if start.IsZero() {
		start = end.Add(-defaultRange)
	}
	w, err := utils.NewWindow(start, end)
	if err != nil {
		return utils.Window{}, apperrors.Validation("startDate must be before endDate")
	}
	if w.End.Sub(w.Start) > maxRange {
		return utils.Window{}, apperrors.Validation("date range must not exceed %d days", int(maxRange/utils.Day))
	}
	return w, nil
}

func optionalInt(c *gin.Context, name string, def int) (int, error) {
	v := c.Query(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, apperrors.Validation("'%s' must be an integer", name)
	}
	return n, nil
}

// parsePagination reads page, limit, sortBy and sortOrder.
func parsePagination(c *gin.Context, defaultLimit int) (models.Pagination, error) {
	page, err := optionalInt(c, "page", 1)
	if err != nil {
		return models.Pagination{}, err
	}
	limit, err := optionalInt(c, "limit", defaultLimit)
	if err != nil {
		return models.Pagination{}, err
	}
	if page < 1 {
		return models.Pagination{}, apperrors.Validation("'page' must be at least 1")
	}
	if limit < 1 {
		return models.Pagination{}, apperrors.Validation("'limit' must be at least 1")
	}

	order := strings.ToLower(c.Query("sortOrder"))
	if !utils.IsValidSortOrder(order) {
		return models.Pagination{}, apperrors.Validation("sortOrder must be 'asc' or 'desc'")
	}
	return models.Pagination{
		Page:      page,
		Limit:     limit,
		SortBy:    c.Query("sortBy"),
		SortOrder: models.SortOrder(order),
	}, nil
}

// withRequestMetadata fills ipAddress and userAgent from the request when the client did not.
func withRequestMetadata(c *gin.Context, metadata map[string]string) map[string]string {
	if metadata == nil {
		metadata = make(map[string]string, 2)
	}
	if metadata[models.MetaIPAddress] == "" {
		metadata[models.MetaIPAddress] = c.ClientIP()
	}
	if ua := c.Request.UserAgent(); metadata[models.MetaUserAgent] == "" && ua != "" {
		metadata[models.MetaUserAgent] = ua
	}
	return metadata
}
