package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "u1",
		"exp": exp.Unix(),
	})
	s, err := tok.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func TestTokenExpired(t *testing.T) {
	if TokenExpired(signedToken(t, time.Now().Add(time.Hour)), 30*time.Second) {
		t.Error("fresh token reported expired")
	}
	if !TokenExpired(signedToken(t, time.Now().Add(-time.Minute)), 30*time.Second) {
		t.Error("expired token not reported")
	}
	// Inside the leeway window counts as expired.
	if !TokenExpired(signedToken(t, time.Now().Add(10*time.Second)), 30*time.Second) {
		t.Error("token expiring within leeway not reported")
	}
	// Unparseable tokens are left to the server to judge.
	if TokenExpired("not-a-jwt", 30*time.Second) {
		t.Error("opaque token reported expired")
	}
}

func TestFileTokenStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")

	s, err := NewFileTokenStore(path, "http://unused.local/api/auth/refresh")
	if err != nil {
		t.Fatalf("NewFileTokenStore: %v", err)
	}
	if got := s.AccessToken(); got != "" {
		t.Errorf("AccessToken before login = %q", got)
	}
	if err := s.SetTokens("acc1", "ref1"); err != nil {
		t.Fatalf("SetTokens: %v", err)
	}

	// Reload from disk, as after an app restart.
	s2, err := NewFileTokenStore(path, "http://unused.local/api/auth/refresh")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got := s2.AccessToken(); got != "acc1" {
		t.Errorf("AccessToken after reload = %q, want acc1", got)
	}

	s2.ClearTokens()
	s3, _ := NewFileTokenStore(path, "")
	if got := s3.AccessToken(); got != "" {
		t.Errorf("AccessToken after clear+reload = %q, want empty", got)
	}
}

func TestFileTokenStoreCorruptFileMeansSignedOut(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	if err := os.WriteFile(path, []byte("{{{"), 0o600); err != nil {
		t.Fatal(err)
	}
	s, err := NewFileTokenStore(path, "")
	if err != nil {
		t.Fatalf("NewFileTokenStore on corrupt file: %v", err)
	}
	if s.AccessToken() != "" {
		t.Error("corrupt file should read as signed out")
	}
}

func TestFileTokenStoreRefresh(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/auth/refresh" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"accessToken":"acc2","refreshToken":"ref2"}`))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "tokens.json")
	s, _ := NewFileTokenStore(path, srv.URL+"/api/auth/refresh")
	if err := s.SetTokens("acc1", "ref1"); err != nil {
		t.Fatal(err)
	}

	if !s.RefreshAccessToken(context.Background()) {
		t.Fatal("RefreshAccessToken = false")
	}
	if got := s.AccessToken(); got != "acc2" {
		t.Errorf("AccessToken = %q, want acc2", got)
	}
}

func TestFileTokenStoreRefreshWithoutRefreshToken(t *testing.T) {
	s, _ := NewFileTokenStore(filepath.Join(t.TempDir(), "tokens.json"), "http://unused.local")
	if s.RefreshAccessToken(context.Background()) {
		t.Error("refresh without a refresh token must fail")
	}
}
