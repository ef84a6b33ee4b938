// Package ratelimit implements the shared timing gate that spaces out
// keyless requests to the listing service. The gate is one exclusively
// held timestamp: the instant of the last remote request. Every
// rate-limited Fetcher of a Session holds the gate for its whole growth
// loop, which serializes those loops and guarantees at most one keyless
// request is in flight or about to be sent per Session.
package ratelimit

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Delay is the minimum interval pubproxy tolerates between keyless
// requests from one address.
const Delay = 1100 * time.Millisecond

// Prometheus metrics for gate coordination.
var (
	gateWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pubproxy_gate_wait_seconds",
		Help:    "Time spent waiting to acquire the shared request gate",
		Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 2, 5, 10},
	})

	gatePoisonRecoveries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pubproxy_gate_poison_recoveries_total",
		Help: "Times an abandoned gate was recovered by resetting its timestamp",
	})
)

// Gate stores the instant of the last remote request, guarded by a
// mutex. It is shared by reference between a Session and every Fetcher
// derived from it; two Sessions never share a Gate.
type Gate struct {
	mu       sync.Mutex
	last     time.Time
	poisoned bool
	logger   zerolog.Logger
}

// NewGate returns a gate whose stored instant lies minInterval in the
// past, so the first acquirer proceeds without waiting.
func NewGate(minInterval time.Duration, logger zerolog.Logger) *Gate {
	return &Gate{
		last:   time.Now().Add(-minInterval),
		logger: logger,
	}
}

// Acquire blocks until the caller holds the gate exclusively and returns
// a Guard for it. If the previous holder abandoned the gate mid-update
// (marked via Guard.Poison), the stored instant is untrustworthy and is
// reset to now; the acquirer pays one full interval of delay instead of
// inheriting corrupted state. Acquire never fails.
func (g *Gate) Acquire() *Guard {
	start := time.Now()
	g.mu.Lock()
	gateWaitSeconds.Observe(time.Since(start).Seconds())

	if g.poisoned {
		g.poisoned = false
		g.last = time.Now()
		gatePoisonRecoveries.Inc()
		g.logger.Warn().Msg("Recovered abandoned gate, treating it as just used")
	}

	return &Guard{gate: g}
}

// Guard is exclusive access to the gate's stored instant. Exactly one
// Guard is live at a time; it must be finished with Release or Poison.
type Guard struct {
	gate *Gate
	done bool
}

// Last returns the stored instant of the last remote request.
func (gd *Guard) Last() time.Time {
	return gd.gate.last
}

// SetLast records a new last-request instant.
func (gd *Guard) SetLast(t time.Time) {
	gd.gate.last = t
}

// Release hands the gate back cleanly. Safe to call more than once.
func (gd *Guard) Release() {
	if gd.done {
		return
	}
	gd.done = true
	gd.gate.mu.Unlock()
}

// Poison marks the stored instant as untrustworthy and releases the
// gate. Holders call it from a recover path when their growth loop dies
// while holding the guard; the next Acquire resets the timer instead of
// deadlocking or propagating the failure.
func (gd *Guard) Poison() {
	if gd.done {
		return
	}
	gd.done = true
	gd.gate.poisoned = true
	gd.gate.mu.Unlock()
}
