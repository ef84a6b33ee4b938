// Package fetcher implements the rate-gated batch-fetch coordinator: a
// Session owns one shared timing gate, and every Fetcher derived from it
// buffers already-fetched records and decides when to contact the
// listing service, how much to request, and how to serve callers from
// the buffer without re-contacting the service.
package fetcher

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/LovecraftianHorror/lead-oxide/pkg/client"
	"github.com/LovecraftianHorror/lead-oxide/pkg/logging"
	"github.com/LovecraftianHorror/lead-oxide/pkg/options"
	"github.com/LovecraftianHorror/lead-oxide/pkg/proxy"
	"github.com/LovecraftianHorror/lead-oxide/pkg/ratelimit"
)

// Prometheus metrics for the fulfillment algorithm.
var (
	fetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pubproxy_fetches_total",
		Help: "Total remote batch fetches by tier",
	}, []string{"tier"})

	bufferServedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pubproxy_buffer_served_total",
		Help: "Records served to callers straight from fetcher buffers",
	})
)

// Tier classifies a Fetcher's relationship to the shared gate.
type Tier int

const (
	// TierRateLimited fetchers space their requests through the
	// Session's gate, at most one request per minimum interval across
	// all of them.
	TierRateLimited Tier = iota

	// TierUnlimited fetchers (keyed API access) never wait on, and
	// never advance, the gate.
	TierUnlimited
)

// String implements fmt.Stringer.
func (t Tier) String() string {
	if t == TierUnlimited {
		return "unlimited"
	}
	return "rate-limited"
}

// BatchClient is the remote fetch boundary: one blocking round trip to
// the listing service per call. *client.Client implements it.
type BatchClient interface {
	FetchBatch(ctx context.Context, opts options.Opts) ([]proxy.Proxy, error)
}

// SessionConfig configures a Session. The zero value gives the real
// pubproxy endpoint and its documented minimum interval.
type SessionConfig struct {
	// Client is the remote boundary. Defaults to a pubproxy client with
	// client.DefaultConfig.
	Client BatchClient

	// MinInterval is the minimum spacing between keyless requests.
	// Defaults to ratelimit.Delay.
	MinInterval time.Duration
}

// Session is one process-wide timing domain: it owns a single gate and
// hands out Fetchers that share it. Fetchers made from different
// Sessions are not coordinated with each other.
type Session struct {
	gate        *ratelimit.Gate
	client      BatchClient
	minInterval time.Duration
	logger      zerolog.Logger
}

// NewSession creates a Session against the real listing service.
func NewSession() *Session {
	return NewSessionWith(SessionConfig{})
}

// NewSessionWith creates a Session with explicit configuration. Missing
// fields fall back to defaults. No I/O happens until a Fetcher asks for
// records.
func NewSessionWith(cfg SessionConfig) *Session {
	if cfg.Client == nil {
		cfg.Client = client.New(client.DefaultConfig())
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = ratelimit.Delay
	}

	return &Session{
		gate:        ratelimit.NewGate(cfg.MinInterval, logging.NewLogger("gate")),
		client:      cfg.Client,
		minInterval: cfg.MinInterval,
		logger:      logging.NewLogger("fetcher"),
	}
}

// Fetcher returns a Fetcher with default options (keyless, no filters).
func (s *Session) Fetcher() *Fetcher {
	return s.FetcherWithOpts(options.Opts{})
}

// FetcherWithOpts returns a Fetcher for the given filter options. The
// tier follows the options: a configured API key makes the Fetcher
// unlimited, otherwise it is rate-limited through this Session's gate.
// Construction is pure: no I/O, no locking. Each call yields an
// independent buffer; only the gate is shared.
func (s *Session) FetcherWithOpts(opts options.Opts) *Fetcher {
	tier := TierRateLimited
	if opts.IsPremium() {
		tier = TierUnlimited
	}
	return s.FetcherWithTier(opts, tier)
}

// FetcherWithTier returns a Fetcher with an explicit tier, overriding
// the one the options imply. Useful in tests and for callers whose key
// entitles them to a different class than key presence suggests.
func (s *Session) FetcherWithTier(opts options.Opts, tier Tier) *Fetcher {
	id := uuid.NewString()[:8]
	return &Fetcher{
		session: s,
		opts:    opts,
		tier:    tier,
		logger: s.logger.With().
			Str("fetcher_id", id).
			Stringer("tier", tier).
			Logger(),
	}
}

// Fetcher owns a buffer of fetched records and a caller configuration.
// A Fetcher is single-caller: its buffer is unsynchronized and must not
// be used from multiple goroutines without external hand-off. The shared
// gate is the only cross-goroutine state it touches.
type Fetcher struct {
	session *Session
	opts    options.Opts
	tier    Tier
	buffer  []proxy.Proxy
	logger  zerolog.Logger
}

// Tier reports which coordination class this Fetcher belongs to.
func (f *Fetcher) Tier() Tier {
	return f.tier
}

// Buffered reports how many records are currently buffered.
func (f *Fetcher) Buffered() int {
	return len(f.buffer)
}

// TryGet returns exactly amount records, fetching from the listing
// service as needed. amount <= 0 is a trivial success returning an empty
// slice without touching the buffer or the gate.
//
// If the buffer already covers amount the call returns immediately with
// no coordination at all. Otherwise the buffer is grown one batch at a
// time until it suffices: unlimited fetchers call the boundary
// back-to-back; rate-limited fetchers hold the Session's gate for the
// whole growth phase, sleeping out whatever remains of the minimum
// interval before each request and advancing the gate's instant after
// it. The context is passed through to the remote boundary only; gate
// waits and interval sleeps are blocking.
//
// On a fetch failure the error is returned as-is and nothing is rolled
// back: batches merged by earlier iterations stay buffered, so a later
// TryGet benefits from the partial progress. The call never returns a
// partial batch.
func (f *Fetcher) TryGet(ctx context.Context, amount int) ([]proxy.Proxy, error) {
	if amount <= 0 {
		return []proxy.Proxy{}, nil
	}

	if len(f.buffer) >= amount {
		f.logger.Debug().
			Int("amount", amount).
			Int("buffered", len(f.buffer)).
			Msg("Serving from buffer")
		bufferServedTotal.Add(float64(amount))
		return f.take(amount), nil
	}

	if err := f.grow(ctx, amount); err != nil {
		return nil, err
	}

	return f.take(amount), nil
}

// grow runs the growth loop for the fetcher's tier until the buffer can
// satisfy amount.
func (f *Fetcher) grow(ctx context.Context, amount int) error {
	if f.tier == TierUnlimited {
		for len(f.buffer) < amount {
			if err := f.fetchOnce(ctx); err != nil {
				return err
			}
		}
		return nil
	}

	// The gate is held for the entire growth phase, delays included.
	// That serializes every rate-limited growth loop in the Session and
	// keeps consecutive keyless requests at least minInterval apart no
	// matter how goroutines interleave. Weakening the hold to per
	// iteration would break that ordering guarantee.
	guard := f.session.gate.Acquire()
	defer func() {
		if r := recover(); r != nil {
			guard.Poison()
			panic(r)
		}
		guard.Release()
	}()

	for len(f.buffer) < amount {
		if wait := f.session.minInterval - time.Since(guard.Last()); wait > 0 {
			f.logger.Debug().
				Dur("wait", wait).
				Msg("Waiting out request interval")
			time.Sleep(wait)
		}

		if err := f.fetchOnce(ctx); err != nil {
			return err
		}
		guard.SetLast(time.Now())
	}

	return nil
}

// fetchOnce performs one remote call and merges the batch into the
// buffer.
func (f *Fetcher) fetchOnce(ctx context.Context) error {
	batch, err := f.session.client.FetchBatch(ctx, f.opts)
	if err != nil {
		f.logger.Warn().
			Err(err).
			Int("buffered", len(f.buffer)).
			Msg("Batch fetch failed, keeping buffered records")
		return err
	}

	fetchesTotal.WithLabelValues(f.tier.String()).Inc()
	if len(batch) == 0 {
		// A successful response with no records is not a failure; the
		// loop keeps asking. With narrow filters this can go on a while.
		f.logger.Warn().Msg("Batch fetch yielded no records")
	}
	f.buffer = append(f.buffer, batch...)
	f.logger.Debug().
		Int("count", len(batch)).
		Int("buffered", len(f.buffer)).
		Msg("Merged batch into buffer")
	return nil
}

// take removes amount records from the tail of the buffer. Callers
// guarantee the buffer is large enough.
func (f *Fetcher) take(amount int) []proxy.Proxy {
	split := len(f.buffer) - amount
	out := make([]proxy.Proxy, amount)
	copy(out, f.buffer[split:])
	f.buffer = f.buffer[:split]
	return out
}

// Drain returns and empties the remaining buffer with no remote
// interaction. Use it before discarding a Fetcher so buffered records
// are not silently lost.
func (f *Fetcher) Drain() []proxy.Proxy {
	out := f.buffer
	f.buffer = nil
	if out == nil {
		out = []proxy.Proxy{}
	}
	return out
}
