// AngelaMos | 2026
// request.go

package core

import (
	"net/http"
	"strconv"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

func QueryInt(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}

	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}

	return parsed
}

// Pagination reads skip and limit, clamped to sane bounds.
func Pagination(r *http.Request) (skip, limit int) {
	skip = max(QueryInt(r, "skip", 0), 0)
	limit = QueryInt(r, "limit", DefaultLimit)
	if limit < 1 {
		limit = DefaultLimit
	}
	return skip, min(limit, MaxLimit)
}
