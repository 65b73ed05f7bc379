package gateway

import (
	"sync"
	"time"
)

// frameLimiter applies a per-connection sliding window to incoming
// landmark frames. Limits are generous: clients stream at 15-30 fps,
// so the cap only catches runaway senders.
type frameLimiter struct {
	mu           sync.Mutex
	windows      map[string]*rateWindow
	maxPerMinute int
}

type rateWindow struct {
	count       int
	windowStart time.Time
}

func newFrameLimiter(maxPerMinute int) *frameLimiter {
	if maxPerMinute == 0 {
		maxPerMinute = 2400 // 40 fps sustained
	}
	return &frameLimiter{
		windows:      make(map[string]*rateWindow),
		maxPerMinute: maxPerMinute,
	}
}

func (fl *frameLimiter) allow(key string) bool {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	now := time.Now()
	w, ok := fl.windows[key]
	if !ok || now.Sub(w.windowStart) > time.Minute {
		fl.windows[key] = &rateWindow{count: 1, windowStart: now}
		return true
	}
	w.count++
	return w.count <= fl.maxPerMinute
}

func (fl *frameLimiter) forget(key string) {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	delete(fl.windows, key)
}
