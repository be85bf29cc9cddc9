package remote

import (
	"sync"
	"time"
)

// hostCircuitBreaker is a process-wide, mutex-guarded table of recent 5xx/429
// failures per host, matching the shared host-error table in the resource
// model: a host is refused new requests once its failure count within the
// window reaches maxErrors, until age has elapsed since the last failure.
type hostCircuitBreaker struct {
	mu         sync.Mutex
	maxErrors  int
	window     time.Duration
	failures   map[string][]time.Time
	lastFailed map[string]time.Time
}

func newHostCircuitBreaker(maxErrors int, window time.Duration) *hostCircuitBreaker {
	return &hostCircuitBreaker{
		maxErrors:  maxErrors,
		window:     window,
		failures:   make(map[string][]time.Time),
		lastFailed: make(map[string]time.Time),
	}
}

// defaultHostBreaker is shared by every Client instance in the process, as
// the resource model requires: the breaker state is per-host, not per-client.
var defaultHostBreaker = newHostCircuitBreaker(5, 30*time.Second)

// allow reports whether a new request to host may proceed.
func (b *hostCircuitBreaker) allow(host string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.prune(host, time.Now())
	if len(b.failures[host]) < b.maxErrors {
		return true
	}
	return time.Since(b.lastFailed[host]) >= b.window
}

// recordFailure records a 5xx/429 response timestamp for host.
func (b *hostCircuitBreaker) recordFailure(host string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	b.prune(host, now)
	b.failures[host] = append(b.failures[host], now)
	b.lastFailed[host] = now
}

// prune drops failures older than window from the host's record. Callers
// must hold b.mu.
func (b *hostCircuitBreaker) prune(host string, now time.Time) {
	entries := b.failures[host]
	if len(entries) == 0 {
		return
	}
	kept := entries[:0]
	for _, t := range entries {
		if now.Sub(t) < b.window {
			kept = append(kept, t)
		}
	}
	b.failures[host] = kept
}
