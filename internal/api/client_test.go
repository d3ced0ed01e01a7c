package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/go-chi/chi/v5"
)

type fakeTokens struct {
	token     string
	next      string // token installed by a successful refresh
	refreshOK bool
	refreshed atomic.Int32
	cleared   atomic.Int32
}

func (f *fakeTokens) AccessToken() string { return f.token }

func (f *fakeTokens) RefreshAccessToken(ctx context.Context) bool {
	f.refreshed.Add(1)
	if f.refreshOK {
		f.token = f.next
		return true
	}
	return false
}

func (f *fakeTokens) ClearTokens() {
	f.cleared.Add(1)
	f.token = ""
}

func testClient(serverURL string) *Client {
	return New(NewResolver(ResolverConfig{FallbackURL: serverURL}))
}

func TestClientGet(t *testing.T) {
	mux := chi.NewRouter()
	mux.Get("/api/tasks", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Accept"); got != "application/json" {
			t.Errorf("Accept = %s", got)
		}
		w.Write([]byte(`{"items":[]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	data, err := testClient(srv.URL).Get(context.Background(), "/api/tasks")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(data) != `{"items":[]}` {
		t.Errorf("body = %s", data)
	}
}

func TestClientBearerAndDeviceHeaders(t *testing.T) {
	mux := chi.NewRouter()
	mux.Get("/api/system/lookups", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok123" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("X-Device-Id"); got != "dev-1" {
			t.Errorf("X-Device-Id = %q", got)
		}
		w.Write([]byte(`{}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := testClient(srv.URL)
	c.Tokens = &fakeTokens{token: "tok123"}
	c.DeviceID = "dev-1"
	if _, err := c.Get(context.Background(), "/api/system/lookups"); err != nil {
		t.Fatalf("Get: %v", err)
	}
}

func TestClientRefreshRetryOn401(t *testing.T) {
	mux := chi.NewRouter()
	mux.Post("/api/tasks/t1/start", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	tokens := &fakeTokens{token: "stale", next: "fresh", refreshOK: true}
	c := testClient(srv.URL)
	c.Tokens = tokens

	data, err := c.Post(context.Background(), "/api/tasks/t1/start", nil)
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if string(data) != `{"ok":true}` {
		t.Errorf("body = %s", data)
	}
	if n := tokens.refreshed.Load(); n != 1 {
		t.Errorf("refresh calls = %d, want 1", n)
	}
}

func TestClientRefreshFailureClearsTokens(t *testing.T) {
	mux := chi.NewRouter()
	mux.Get("/api/tasks", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	tokens := &fakeTokens{token: "stale", refreshOK: false}
	var notified atomic.Int32
	c := testClient(srv.URL)
	c.Tokens = tokens
	c.OnAuthInvalid = func() { notified.Add(1) }

	_, err := c.Get(context.Background(), "/api/tasks")
	if !IsUnauthorized(err) {
		t.Fatalf("err = %v, want unauthorized", err)
	}
	if tokens.cleared.Load() != 1 {
		t.Error("tokens not cleared after failed refresh")
	}
	if notified.Load() != 1 {
		t.Error("OnAuthInvalid not called")
	}
}

func TestClientFailoverOnServerUnavailable(t *testing.T) {
	var primaryHits, fallbackHits atomic.Int32
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		primaryHits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer primary.Close()
	fallback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fallbackHits.Add(1)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer fallback.Close()

	disco := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"apiBaseUrl":"` + primary.URL + `"}`))
	}))
	defer disco.Close()

	c := New(NewResolver(ResolverConfig{
		DiscoveryURL: disco.URL,
		FallbackURL:  fallback.URL,
	}))
	ctx := context.Background()

	// Primary serves 503; the call fails over to the fallback within the
	// same invocation and sets the fallback preference.
	for i := 0; i < 3; i++ {
		if _, err := c.Post(ctx, "/api/tasks/t1/start", nil); err != nil {
			t.Fatalf("Post #%d: %v", i, err)
		}
	}
	if !c.Resolver.PreferFallback() {
		t.Error("PreferFallback = false after 503 from primary")
	}
	if primaryHits.Load() != 1 {
		t.Errorf("primary hits = %d, want 1 (subsequent calls skip to fallback)", primaryHits.Load())
	}
	if fallbackHits.Load() != 3 {
		t.Errorf("fallback hits = %d, want 3", fallbackHits.Load())
	}
}

func TestClientNetworkErrorFailover(t *testing.T) {
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	dead.Close() // connection refused from here on

	fallback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer fallback.Close()

	disco := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"apiBaseUrl":"` + dead.URL + `"}`))
	}))
	defer disco.Close()

	c := New(NewResolver(ResolverConfig{DiscoveryURL: disco.URL, FallbackURL: fallback.URL}))
	if _, err := c.Get(context.Background(), "/api/assets"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !c.Resolver.PreferFallback() {
		t.Error("PreferFallback = false after network error on primary")
	}
}

func TestClientUploadContract(t *testing.T) {
	mux := chi.NewRouter()
	mux.Post("/api/tasks/t1/evidence/upload", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("x-filename"); got != "pump.jpg" {
			t.Errorf("x-filename = %q", got)
		}
		if got := r.Header.Get("Content-Type"); got != "image/jpeg" {
			t.Errorf("Content-Type = %q", got)
		}
		w.Write([]byte(`{"id":"e1"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	data, err := testClient(srv.URL).Upload(context.Background(), "/api/tasks/t1/evidence/upload", "pump.jpg", "image/jpeg", []byte("bytes"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if string(data) != `{"id":"e1"}` {
		t.Errorf("body = %s", data)
	}
}

func TestClientErrorParsing(t *testing.T) {
	mux := chi.NewRouter()
	mux.Post("/api/tasks/t1/complete", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"message":"task already completed","code":"TASK_STATE"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	_, err := testClient(srv.URL).Post(context.Background(), "/api/tasks/t1/complete", []byte(`{}`))
	apiErr, ok := AsError(err)
	if !ok {
		t.Fatalf("err = %v, want *Error", err)
	}
	if apiErr.Status != 409 || apiErr.Code != "TASK_STATE" || apiErr.Message != "task already completed" {
		t.Errorf("parsed = %+v", apiErr)
	}
	if !IsNonRetryable(err) {
		t.Error("409 should classify non-retryable")
	}
	if IsNetworkError(err) {
		t.Error("HTTP error misclassified as network error")
	}
}
