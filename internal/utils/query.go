package utils

import (
	"net/url"
	"strconv"
)

// QueryInt reads a non-negative integer query parameter, falling back to def
// when the value is missing, malformed or negative. Limits and offsets are the
// only callers, so negatives are never meaningful.
func QueryInt(q url.Values, key string, def int) int {
	v := q.Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
