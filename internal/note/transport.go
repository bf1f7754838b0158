package note

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type realClock struct{}

func (realClock) Now() time.Time        { return time.Now() }
func (realClock) Sleep(d time.Duration) { time.Sleep(d) }

// SystemClock returns the wall clock.
func SystemClock() Clock { return realClock{} }

// Limit defines a simple rate limit: RPS with a burst capacity.
type Limit struct {
	RPS   float64
	Burst int
}

// Browser-impersonating headers sent with every request. note.com serves
// different payloads to clients without a plausible UA and language.
var impersonationHeaders = map[string]string{
	"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Accept":          "application/json, text/plain, */*",
	"Accept-Language": "ja,en-US;q=0.9,en;q=0.8",
}

// TransportOptions configures the retrying, rate-limited transport.
type TransportOptions struct {
	RetryMax    int
	BackoffBase time.Duration
	BackoffCap  time.Duration
	JitterFn    func(base time.Duration, attempt int) time.Duration
	Clock       Clock
	Metrics     *Metrics

	// Host-specific limits (by req.URL.Host). If missing, defaults apply.
	HostLimits map[string]Limit
}

// DefaultTransportOptionsFromEnv returns defaults suitable for note.com,
// with NOTE_* environment overrides.
func DefaultTransportOptionsFromEnv() TransportOptions {
	// The API and the asset CDN share one ceiling each; the pipeline is
	// sequential, so these mostly guard against hot resume loops.
	apiLimit := Limit{RPS: 5, Burst: 5}

	if v := strings.TrimSpace(os.Getenv("NOTE_RPS")); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			apiLimit.RPS = f
		}
	}
	if v := strings.TrimSpace(os.Getenv("NOTE_BURST")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			apiLimit.Burst = n
		}
	}

	retryMax := 2
	if v := strings.TrimSpace(os.Getenv("NOTE_RETRY_MAX")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			retryMax = n
		}
	}
	backoffBase := 250 * time.Millisecond
	if v := strings.TrimSpace(os.Getenv("NOTE_RETRY_BASE_MS")); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms >= 0 {
			backoffBase = time.Duration(ms) * time.Millisecond
		}
	}
	backoffCap := 5 * time.Second
	if v := strings.TrimSpace(os.Getenv("NOTE_RETRY_CAP_MS")); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			backoffCap = time.Duration(ms) * time.Millisecond
		}
	}

	return TransportOptions{
		RetryMax:    retryMax,
		BackoffBase: backoffBase,
		BackoffCap:  backoffCap,
		Clock:       realClock{},
		JitterFn: func(base time.Duration, attempt int) time.Duration {
			// Full jitter on top of base backoff
			r := rand.New(rand.NewSource(time.Now().UnixNano()))
			if base <= 0 {
				return 0
			}
			return time.Duration(r.Int63n(base.Nanoseconds()))
		},
		Metrics: NewMetrics(),
		HostLimits: map[string]Limit{
			"note.com": apiLimit,
		},
	}
}

// tokenBucket is a simple per-host rate limiter with fractional tokens.
type tokenBucket struct {
	mu     sync.Mutex
	rps    float64
	burst  float64
	tokens float64
	last   time.Time
	clock  Clock
}

func newTokenBucket(lim Limit, clock Clock) *tokenBucket {
	burst := lim.Burst
	if burst < 1 {
		burst = 1
	}
	return &tokenBucket{
		rps:    lim.RPS,
		burst:  float64(burst),
		tokens: float64(burst),
		last:   clock.Now(),
		clock:  clock,
	}
}

func (tb *tokenBucket) refillLocked(now time.Time) {
	delta := now.Sub(tb.last).Seconds() * tb.rps
	if delta > 0 {
		tb.tokens = math.Min(tb.burst, tb.tokens+delta)
		tb.last = now
	}
}

func (tb *tokenBucket) Wait(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		tb.mu.Lock()
		now := tb.clock.Now()
		tb.refillLocked(now)
		if tb.tokens >= 1 {
			tb.tokens -= 1
			tb.mu.Unlock()
			return nil
		}
		need := 1 - tb.tokens
		wait := time.Duration((need / tb.rps) * float64(time.Second))
		tb.mu.Unlock()
		if wait <= 0 {
			wait = 5 * time.Millisecond
		}
		// sleep in small slices so context cancellation is observed
		deadline := tb.clock.Now().Add(wait)
		for tb.clock.Now().Before(deadline) {
			if err := ctx.Err(); err != nil {
				return err
			}
			tb.clock.Sleep(5 * time.Millisecond)
		}
	}
}

// RetryingLimiterTransport wraps a base RoundTripper with host-based rate
// limiting, bounded retries and browser impersonation headers.
type RetryingLimiterTransport struct {
	Base     http.RoundTripper
	Opts     TransportOptions
	limMu    sync.Mutex
	limiters map[string]*tokenBucket
}

func NewRetryingLimiterTransport(opts TransportOptions) *RetryingLimiterTransport {
	return &RetryingLimiterTransport{Opts: opts, limiters: make(map[string]*tokenBucket)}
}

func (t *RetryingLimiterTransport) getLimiter(host string) *tokenBucket {
	if host == "" {
		host = "_default_"
	}
	t.limMu.Lock()
	defer t.limMu.Unlock()
	if tb, ok := t.limiters[host]; ok {
		return tb
	}
	lim := Limit{RPS: 10, Burst: 10}
	if t.Opts.HostLimits != nil {
		if v, ok := t.Opts.HostLimits[host]; ok {
			lim = v
		}
	}
	tb := newTokenBucket(lim, t.clock())
	t.limiters[host] = tb
	return tb
}

func (t *RetryingLimiterTransport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *RetryingLimiterTransport) clock() Clock {
	if t.Opts.Clock != nil {
		return t.Opts.Clock
	}
	return realClock{}
}

func (t *RetryingLimiterTransport) jitter(base time.Duration, attempt int) time.Duration {
	if t.Opts.JitterFn != nil {
		return t.Opts.JitterFn(base, attempt)
	}
	return 0
}

func (t *RetryingLimiterTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	for k, v := range impersonationHeaders {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}

	lim := t.getLimiter(req.URL.Host)
	if t.Opts.Metrics != nil {
		t.Opts.Metrics.IncRequest(req.URL.Host)
	}

	attempts := t.Opts.RetryMax + 1
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := lim.Wait(req.Context()); err != nil {
			return nil, err
		}

		resp, err := t.base().RoundTrip(req)
		if err != nil {
			if isTransientNetErr(err) && attempt < attempts-1 {
				lastErr = err
				t.sleepBackoff(attempt)
				continue
			}
			return nil, err
		}

		if t.Opts.Metrics != nil {
			t.Opts.Metrics.IncStatus(resp.StatusCode)
		}

		if shouldRetryStatus(resp.StatusCode) && attempt < attempts-1 {
			// Respect Retry-After when present
			if ra := parseRetryAfter(resp.Header.Get("Retry-After"), t.clock().Now()); ra > 0 {
				if t.Opts.Metrics != nil {
					t.Opts.Metrics.IncRetry()
					t.Opts.Metrics.AddBackoff(ra)
				}
				resp.Body.Close()
				t.clock().Sleep(minDur(ra, t.Opts.BackoffCap))
				continue
			}
			resp.Body.Close()
			t.sleepBackoff(attempt)
			if t.Opts.Metrics != nil {
				t.Opts.Metrics.IncRetry()
			}
			continue
		}

		return resp, nil
	}
	if lastErr == nil {
		lastErr = errors.New("max retries exceeded")
	}
	return nil, lastErr
}

func (t *RetryingLimiterTransport) sleepBackoff(attempt int) {
	base := t.Opts.BackoffBase
	if base <= 0 {
		base = 250 * time.Millisecond
	}
	cap := t.Opts.BackoffCap
	if cap <= 0 {
		cap = 5 * time.Second
	}
	// exponential backoff: base * 2^attempt
	delay := time.Duration(float64(base) * math.Pow(2, float64(attempt)))
	delay = minDur(delay, cap)
	jit := t.jitter(delay, attempt)
	t.clock().Sleep(minDur(delay+jit, cap))
	if t.Opts.Metrics != nil {
		t.Opts.Metrics.AddBackoff(minDur(delay+jit, cap))
	}
}

func isTransientNetErr(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "timeout") || strings.Contains(msg, "temporary") || strings.Contains(msg, "connection reset")
}

func shouldRetryStatus(code int) bool {
	return code == 429 || code == 502 || code == 503 || code == 504
}

func parseRetryAfter(h string, now time.Time) time.Duration {
	h = strings.TrimSpace(h)
	if h == "" {
		return 0
	}
	// Integer seconds
	if secs, err := strconv.Atoi(h); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	// HTTP-date
	if when, err := http.ParseTime(h); err == nil {
		d := when.Sub(now)
		if d < 0 {
			return 0
		}
		return d
	}
	return 0
}

func minDur(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
