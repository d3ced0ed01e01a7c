package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/xeipuuv/gojsonschema"
)

// Discovery responses must carry a usable apiBaseUrl; anything else is
// treated as "discovery unavailable", never as an error.
const discoverySchema = `{
	"type": "object",
	"required": ["apiBaseUrl"],
	"properties": {
		"apiBaseUrl": {"type": "string", "minLength": 1}
	}
}`

var discoverySchemaLoader = gojsonschema.NewStringLoader(discoverySchema)

// ResolverConfig configures endpoint discovery and failover.
type ResolverConfig struct {
	DiscoveryURL     string        // optional; empty disables discovery
	FallbackURL      string        // fixed base used when the primary is unreachable
	DiscoveryTimeout time.Duration // bound on a single discovery fetch (default 5s)
	RefreshInterval  time.Duration // min time between discovery attempts (default 5m)
	HTTPClient       *http.Client
}

// Resolver discovers and caches the preferred server base URL and tracks
// failover state. It is an explicit per-session object, not a process-wide
// singleton, so tests and embedded sessions do not interfere. State is
// in-memory only; discovery is cheap and idempotent after a restart.
type Resolver struct {
	cfg        ResolverConfig
	httpClient *http.Client

	mu             sync.Mutex
	primary        string
	preferFallback bool
	lastAttempt    time.Time
}

// NewResolver creates a Resolver. FallbackURL is required; DiscoveryURL may
// be empty, in which case the fallback base is used for every call.
func NewResolver(cfg ResolverConfig) *Resolver {
	if cfg.DiscoveryTimeout == 0 {
		cfg.DiscoveryTimeout = 5 * time.Second
	}
	if cfg.RefreshInterval == 0 {
		cfg.RefreshInterval = 5 * time.Minute
	}
	cfg.FallbackURL = strings.TrimRight(strings.TrimSpace(cfg.FallbackURL), "/")
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	return &Resolver{cfg: cfg, httpClient: client}
}

// BaseURL returns the base to prefix the next request path with, running a
// time-bounded discovery fetch first when one is due. Discovery failures
// never propagate; the current base is kept.
func (r *Resolver) BaseURL(ctx context.Context) string {
	r.mu.Lock()
	due := r.cfg.DiscoveryURL != "" &&
		(r.primary == "" || time.Since(r.lastAttempt) >= r.cfg.RefreshInterval)
	if due {
		r.lastAttempt = time.Now()
	}
	r.mu.Unlock()

	if due {
		r.discover(ctx)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.preferFallback || r.primary == "" {
		return r.cfg.FallbackURL
	}
	return r.primary
}

// FallbackURL returns the fixed failover base.
func (r *Resolver) FallbackURL() string {
	return r.cfg.FallbackURL
}

// PreferFallback reports whether calls currently skip straight to the
// fallback base.
func (r *Resolver) PreferFallback() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.preferFallback
}

// MarkUnavailable records that a request against base hit a network error
// or a 502/503/504. Subsequent calls go straight to the fallback until
// discovery succeeds again.
func (r *Resolver) MarkUnavailable(base string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if base == r.cfg.FallbackURL {
		return
	}
	if !r.preferFallback {
		slog.Warn("server base unavailable, failing over", "base", base, "fallback", r.cfg.FallbackURL)
	}
	r.preferFallback = true
}

// discover fetches the discovery document and adopts the advertised base.
// All failures are swallowed: discovery must never take the client down.
func (r *Resolver) discover(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.DiscoveryTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.cfg.DiscoveryURL, nil)
	if err != nil {
		slog.Debug("discovery request build failed", "err", err)
		return
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		slog.Debug("discovery fetch failed", "err", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		slog.Debug("discovery returned non-200", "status", resp.StatusCode)
		return
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		slog.Debug("discovery body read failed", "err", err)
		return
	}

	result, err := gojsonschema.Validate(discoverySchemaLoader, gojsonschema.NewBytesLoader(body))
	if err != nil || !result.Valid() {
		slog.Debug("discovery document invalid", "err", err)
		return
	}

	var doc struct {
		APIBaseURL string `json:"apiBaseUrl"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return
	}
	base := strings.TrimRight(strings.TrimSpace(doc.APIBaseURL), "/")
	if base == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.primary != base {
		slog.Info("adopted discovered api base", "base", base)
	}
	r.primary = base
	r.preferFallback = false
}
