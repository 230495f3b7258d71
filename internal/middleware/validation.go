package middleware

import (
	"errors"
	"strconv"
)

// ParseID parses a positive numeric resource id from a path parameter.
func ParseID(raw, what string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid " + what + " ID format")
	}
	return id, nil
}

// ParseWidth parses the viewport width reported by the browser. Missing or
// malformed values fall back to def.
func ParseWidth(raw string, def int) int {
	if raw == "" {
		return def
	}
	w, err := strconv.Atoi(raw)
	if err != nil || w < 0 || w > 100000 {
		return def
	}
	return w
}
