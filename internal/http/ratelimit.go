package http

import (
	"sync"
	"time"
)

const (
	writeWindow   = time.Minute
	idleClientTTL = 10 * time.Minute
	sweepEvery    = 5 * time.Minute
)

// rateLimiter counts ledger writes per client address in fixed one-minute
// windows that open at the client's first write.
type rateLimiter struct {
	mu      sync.Mutex
	limit   int
	now     func() time.Time
	clients map[string]*writeWindowState

	quit     chan struct{}
	quitOnce sync.Once
}

type writeWindowState struct {
	opened    time.Time
	lastWrite time.Time
	writes    int
}

func newRateLimiter(limit int) *rateLimiter {
	rl := &rateLimiter{
		limit:   limit,
		now:     time.Now,
		clients: make(map[string]*writeWindowState),
		quit:    make(chan struct{}),
	}
	go rl.sweepLoop()
	return rl
}

func (rl *rateLimiter) sweepLoop() {
	ticker := time.NewTicker(sweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.cleanupStaleEntries()
		case <-rl.quit:
			return
		}
	}
}

// cleanupStaleEntries forgets clients that have not written for
// idleClientTTL and returns how many it dropped.
func (rl *rateLimiter) cleanupStaleEntries() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-idleClientTTL)
	dropped := 0
	for addr, st := range rl.clients {
		if st.lastWrite.Before(cutoff) {
			delete(rl.clients, addr)
			dropped++
		}
	}
	return dropped
}

func (rl *rateLimiter) stop() {
	rl.quitOnce.Do(func() { close(rl.quit) })
}

// allow records a write from clientIP and reports whether it fits in the
// client's current window.
func (rl *rateLimiter) allow(clientIP string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	st, ok := rl.clients[clientIP]
	if !ok || now.Sub(st.opened) >= writeWindow {
		st = &writeWindowState{opened: now}
		rl.clients[clientIP] = st
	}
	st.lastWrite = now
	st.writes++
	return st.writes <= rl.limit
}
