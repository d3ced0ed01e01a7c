package engine

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Prober answers whether the backend is reachable right now.
type Prober interface {
	Probe(ctx context.Context) bool
}

// HTTPProber probes reachability with a HEAD request against the resolved
// base URL. Any response, even an error status, proves the network path.
type HTTPProber struct {
	BaseURL func(ctx context.Context) string
	Timeout time.Duration
}

// NewHTTPProber builds a prober over a base-URL source, typically
// Resolver.BaseURL.
func NewHTTPProber(baseURL func(ctx context.Context) string) *HTTPProber {
	return &HTTPProber{BaseURL: baseURL, Timeout: 3 * time.Second}
}

func (p *HTTPProber) Probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.BaseURL(ctx)+"/api/system/health", nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}

// Subscription delivers reconnect notifications. Close releases it; a
// closed subscription's channel is closed and receives nothing further.
type Subscription struct {
	C chan struct{}

	w    *Watcher
	once sync.Once
}

// Close detaches the subscription from its watcher. The channel is closed
// under the watcher lock so an in-flight notification can never hit a
// closed channel.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.w.mu.Lock()
		delete(s.w.subs, s)
		close(s.C)
		s.w.mu.Unlock()
	})
}

// Watcher polls connectivity and notifies subscribers on each
// offline-to-online transition. The first successful probe after startup
// also counts as a transition, so a subscriber always gets a signal once
// the backend is reachable.
type Watcher struct {
	prober   Prober
	interval time.Duration

	mu     sync.Mutex
	online bool
	seeded bool
	subs   map[*Subscription]struct{}
}

// NewWatcher builds a watcher polling at the given interval (default 15s).
func NewWatcher(prober Prober, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Watcher{
		prober:   prober,
		interval: interval,
		subs:     make(map[*Subscription]struct{}),
	}
}

// Subscribe registers for reconnect notifications. Notifications are
// non-blocking: a subscriber that has not drained its channel misses
// intermediate signals but keeps the latest one pending.
func (w *Watcher) Subscribe() *Subscription {
	sub := &Subscription{C: make(chan struct{}, 1), w: w}
	w.mu.Lock()
	w.subs[sub] = struct{}{}
	w.mu.Unlock()
	return sub
}

// Online reports the last observed state.
func (w *Watcher) Online() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.online
}

// Run polls until the context is cancelled. It probes once immediately so
// callers don't wait a full interval for the initial state.
func (w *Watcher) Run(ctx context.Context) {
	w.observe(w.prober.Probe(ctx))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.observe(w.prober.Probe(ctx))
		}
	}
}

func (w *Watcher) observe(online bool) {
	w.mu.Lock()
	wasOnline := w.online
	wasSeeded := w.seeded
	w.online = online
	w.seeded = true

	// Deliver while still holding the lock: sends are non-blocking, and a
	// concurrent Close must not be able to close a channel between the
	// subscriber snapshot and the send.
	fire := online && (!wasSeeded || !wasOnline)
	if fire {
		for sub := range w.subs {
			select {
			case sub.C <- struct{}{}:
			default:
			}
		}
	}
	w.mu.Unlock()

	if fire {
		slog.Info("connectivity restored")
	}
}
