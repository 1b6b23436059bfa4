// Package headers parses throttling information from marketplace HTTP
// response headers.
package headers

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Throttle describes the rate-limit state a response reported.
type Throttle struct {
	// Limited is true when the response itself was a throttle response
	// (429 or 503 with a Retry-After).
	Limited bool
	// RetryAfter is how long the server asked us to wait, when it said.
	RetryAfter time.Duration
	// Limit and Remaining mirror the X-RateLimit / RateLimit header pair
	// when present; -1 means the header was absent.
	Limit     int64
	Remaining int64
	// Reset is when the current window ends, when reported.
	Reset time.Time
}

// Exhausted reports whether the remaining budget is known to be zero.
func (t Throttle) Exhausted() bool {
	return t.Remaining == 0 && t.Limit > 0
}

// Parse extracts throttle state from a response. It understands the
// de-facto X-RateLimit-* trio, the IETF draft RateLimit-* names, and
// Retry-After in both delta-seconds and HTTP-date forms.
func Parse(resp *http.Response) Throttle {
	t := Throttle{Limit: -1, Remaining: -1}
	if resp == nil {
		return t
	}

	h := resp.Header
	t.Limit = firstIntHeader(h, "X-RateLimit-Limit", "RateLimit-Limit")
	t.Remaining = firstIntHeader(h, "X-RateLimit-Remaining", "RateLimit-Remaining")
	t.Reset = parseReset(h, "X-RateLimit-Reset", "RateLimit-Reset")
	t.RetryAfter = parseRetryAfter(h.Get("Retry-After"))

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		t.Limited = true
	case resp.StatusCode == http.StatusServiceUnavailable && t.RetryAfter > 0:
		t.Limited = true
	}
	return t
}

func firstIntHeader(h http.Header, keys ...string) int64 {
	for _, key := range keys {
		val := strings.TrimSpace(h.Get(key))
		if val == "" {
			continue
		}
		n, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			continue
		}
		return n
	}
	return -1
}

// parseReset handles both epoch-seconds and delta-seconds reset values. A
// value larger than a year's worth of seconds is treated as an epoch.
func parseReset(h http.Header, keys ...string) time.Time {
	n := firstIntHeader(h, keys...)
	if n < 0 {
		return time.Time{}
	}
	const yearSeconds = 365 * 24 * 3600
	if n > yearSeconds {
		return time.Unix(n, 0).UTC()
	}
	return time.Now().Add(time.Duration(n) * time.Second).UTC()
}

func parseRetryAfter(val string) time.Duration {
	val = strings.TrimSpace(val)
	if val == "" {
		return 0
	}
	if secs, err := strconv.ParseInt(val, 10, 64); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(val); err == nil {
		d := time.Until(at)
		if d < 0 {
			return 0
		}
		return d
	}
	return 0
}
