// Copyright (c) Mural Authors
// SPDX-License-Identifier: MPL-2.0

package canvas

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"oss.indeed.com/go/libtime"
)

const (
	headerRemaining = "Requests-Remaining"
	headerReset     = "Requests-Reset"
	headerPeriod    = "Requests-Period"
	headerCooldown  = "Cooldown-Reset"
)

// window tracks the server-advertised rate limit state for one endpoint, as
// read from the most recent response headers.
type window struct {
	remaining     int
	resetAt       time.Time
	cooldownUntil time.Time
	observed      bool
}

// windows is a concurrency-safe view of one window per endpoint path.
type windows struct {
	clock libtime.Clock

	mu     sync.Mutex
	byPath map[string]*window
}

func newWindows(clock libtime.Clock) *windows {
	return &windows{
		clock:  clock,
		byPath: make(map[string]*window),
	}
}

// update folds one response's headers into the endpoint's window. Responses
// that carry no rate headers leave the window untouched.
func (ws *windows) update(path string, status int, h http.Header) {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	w, ok := ws.byPath[path]
	if !ok {
		w = &window{}
		ws.byPath[path] = w
	}
	now := ws.clock.Now()

	if status == http.StatusTooManyRequests {
		if cd, err := parseSeconds(h.Get(headerCooldown)); err == nil {
			w.cooldownUntil = now.Add(cd)
			w.remaining = 0
			w.observed = true
			return
		}
	}

	rem := h.Get(headerRemaining)
	res := h.Get(headerReset)
	if rem == "" && res == "" {
		return
	}
	if n, err := strconv.Atoi(rem); err == nil {
		w.remaining = n
		w.observed = true
	}
	if d, err := parseSeconds(res); err == nil {
		w.resetAt = now.Add(d)
		w.observed = true
	}
}

// waitTime returns how long the caller must wait before hitting the endpoint
// again. Zero means immediately: either quota remains or nothing has been
// observed yet.
func (ws *windows) waitTime(path string) time.Duration {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	w, ok := ws.byPath[path]
	if !ok || !w.observed {
		return 0
	}
	now := ws.clock.Now()

	if w.cooldownUntil.After(now) {
		return w.cooldownUntil.Sub(now)
	}
	if w.remaining > 0 {
		return 0
	}
	if w.resetAt.After(now) {
		return w.resetAt.Sub(now)
	}
	return 0
}

func parseSeconds(s string) (time.Duration, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return time.Duration(f * float64(time.Second)), nil
}
