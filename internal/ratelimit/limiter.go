// Package ratelimit enforces per-source request budgets. Each source gets
// a fixed hourly window (requests_per_hour) plus a short-burst bucket
// (burst_limit) so a batch can start fast without exceeding the hour.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/gridstats/sports-cli/internal/resilience"
)

// Mode selects what Acquire does when a source's budget is exhausted.
type Mode string

const (
	// ModeQueue blocks until the budget allows the request or the context
	// is cancelled.
	ModeQueue Mode = "queue"
	// ModeFailFast returns a RateLimitError immediately.
	ModeFailFast Mode = "failfast"
)

// SourceConfig is the per-source budget. A zero RequestsPerHour disables
// the hourly window; a zero Burst disables burst smoothing.
type SourceConfig struct {
	RequestsPerHour int
	Burst           int
	Mode            Mode
}

// Status is a point-in-time view of one source's budget, surfaced by the
// status command.
type Status struct {
	Source    string        `json:"source"`
	Mode      Mode          `json:"mode"`
	Limit     int           `json:"limit"`
	Used      int           `json:"used"`
	Remaining int           `json:"remaining"`
	ResetIn   time.Duration `json:"reset_in"`
}

type sourceWindow struct {
	cfg         SourceConfig
	bucket      *rate.Limiter // nil when Burst == 0
	windowStart time.Time
	used        int
}

// Limiter tracks budgets for every configured source. Construct one per
// process and share it; it is safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	sources map[string]*sourceWindow

	window time.Duration

	// nowFunc allows test injection of time. The returned instants carry a
	// monotonic reading, so window age is immune to wall-clock jumps.
	nowFunc func() time.Time
}

// New builds a Limiter from per-source configs. Sources not present get a
// zero config (no limits) on first use.
func New(configs map[string]SourceConfig) *Limiter {
	l := &Limiter{
		sources: make(map[string]*sourceWindow, len(configs)),
		window:  time.Hour,
		nowFunc: time.Now,
	}
	for name, cfg := range configs {
		l.Configure(name, cfg)
	}
	return l
}

// Configure installs or replaces a source's budget. The window restarts.
func (l *Limiter) Configure(source string, cfg SourceConfig) {
	if cfg.Mode == "" {
		cfg.Mode = ModeQueue
	}
	sw := &sourceWindow{cfg: cfg}
	if cfg.Burst > 0 {
		// Burst tokens refill over a minute, so a source can spend its
		// burst immediately but sustains at most Burst requests/minute.
		sw.bucket = rate.NewLimiter(rate.Limit(float64(cfg.Burst)/60.0), cfg.Burst)
	}
	l.mu.Lock()
	sw.windowStart = l.nowFunc()
	l.sources[source] = sw
	l.mu.Unlock()
}

// Acquire spends one request from the source's budget, honoring the
// source's mode. It never lets a request through that would exceed the
// hourly window.
func (l *Limiter) Acquire(ctx context.Context, source string) error {
	for {
		l.mu.Lock()
		sw := l.windowFor(source)
		now := l.nowFunc()
		l.roll(sw, now)

		cfg := sw.cfg
		if cfg.RequestsPerHour > 0 && sw.used >= cfg.RequestsPerHour {
			resetIn := l.window - now.Sub(sw.windowStart)
			l.mu.Unlock()
			if cfg.Mode == ModeFailFast {
				return &resilience.RateLimitError{Source: source, RetryAfter: resetIn}
			}
			if err := sleepCtx(ctx, resetIn); err != nil {
				return err
			}
			continue // window has rolled; re-check under lock
		}

		// Window admits the request; count it before the burst wait so a
		// concurrent caller cannot oversubscribe the hour.
		sw.used++
		bucket := sw.bucket
		l.mu.Unlock()

		if bucket == nil {
			return nil
		}
		if cfg.Mode == ModeFailFast {
			if !bucket.AllowN(now, 1) {
				l.unspend(source)
				res := bucket.ReserveN(now, 1)
				d := res.DelayFrom(now)
				res.CancelAt(now)
				return &resilience.RateLimitError{Source: source, RetryAfter: d}
			}
			return nil
		}

		res := bucket.ReserveN(now, 1)
		if d := res.DelayFrom(now); d > 0 {
			if err := sleepCtx(ctx, d); err != nil {
				res.Cancel()
				l.unspend(source)
				return err
			}
		}
		return nil
	}
}

// Status reports the current budget state for one source.
func (l *Limiter) Status(source string) Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	sw := l.windowFor(source)
	now := l.nowFunc()
	l.roll(sw, now)

	st := Status{
		Source: source,
		Mode:   sw.cfg.Mode,
		Limit:  sw.cfg.RequestsPerHour,
		Used:   sw.used,
	}
	if sw.cfg.RequestsPerHour > 0 {
		st.Remaining = sw.cfg.RequestsPerHour - sw.used
		st.ResetIn = l.window - now.Sub(sw.windowStart)
	}
	return st
}

// Sources returns every source the limiter has seen, for status listings.
func (l *Limiter) Sources() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	names := make([]string, 0, len(l.sources))
	for name := range l.sources {
		names = append(names, name)
	}
	return names
}

// windowFor returns the source's window, creating an unlimited one on
// first use. Caller holds l.mu.
func (l *Limiter) windowFor(source string) *sourceWindow {
	sw, ok := l.sources[source]
	if !ok {
		sw = &sourceWindow{cfg: SourceConfig{Mode: ModeQueue}, windowStart: l.nowFunc()}
		l.sources[source] = sw
	}
	return sw
}

// roll restarts the window once a full period has elapsed. Elapsed time is
// measured with the monotonic clock, so setting the wall clock back cannot
// re-arm an exhausted window. Caller holds l.mu.
func (l *Limiter) roll(sw *sourceWindow, now time.Time) {
	if now.Sub(sw.windowStart) >= l.window {
		sw.windowStart = now
		sw.used = 0
	}
}

// unspend returns one request to the window after a failed burst wait.
func (l *Limiter) unspend(source string) {
	l.mu.Lock()
	if sw, ok := l.sources[source]; ok && sw.used > 0 {
		sw.used--
	}
	l.mu.Unlock()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
