package utils

import (
	"strings"

	"github.com/google/uuid"
)

func IsValidSortOrder(order string) bool {
	switch strings.ToLower(order) {
	case "", "asc", "desc":
		return true
	default:
		return false
	}
}

// GenerateSessionID returns a new random session identifier.
func GenerateSessionID() string {
	return uuid.NewString()
}

// GenerateEventID returns a new idempotency key for events submitted without one.
func GenerateEventID() string {
	return uuid.NewString()
}

// Clamp bounds v to [lo, hi], substituting def when v is not positive.
func Clamp(v, def, lo, hi int) int {
	if v <= 0 {
		return def
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// TotalPages is ceil(total/limit).
func TotalPages(total int64, limit int) int {
	if limit <= 0 || total <= 0 {
		return 0
	}
	return int((total + int64(limit) - 1) / int64(limit))
}
