package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenSource is the auth collaborator consumed by the client. Auth flows
// themselves (login, biometric unlock) live outside the sync core.
type TokenSource interface {
	// AccessToken returns the current bearer token, or "" when signed out.
	AccessToken() string
	// RefreshAccessToken exchanges the refresh token for a new pair. It
	// reports false when the session cannot be recovered.
	RefreshAccessToken(ctx context.Context) bool
	// ClearTokens drops both tokens after an unrecoverable auth failure.
	ClearTokens()
}

// TokenExpired reports whether a JWT access token is expired (or expires
// within leeway). Tokens that cannot be parsed report false: the server
// stays the authority on their validity.
func TokenExpired(token string, leeway time.Duration) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return time.Now().Add(leeway).After(exp.Time)
}

// Storage keys are a compatibility contract: they must stay stable across
// app versions so an upgrade does not orphan a signed-in session.
const (
	accessTokenKey  = "pm_access_token"
	refreshTokenKey = "pm_refresh_token"
)

// FileTokenStore is a TokenSource backed by a JSON file, used by the CLI.
// Refresh posts the refresh token to the backend auth endpoint directly;
// auth calls never pass through the cache or the mutation queue.
type FileTokenStore struct {
	path       string
	refreshURL string
	httpClient *http.Client

	mu      sync.Mutex
	access  string
	refresh string
}

// NewFileTokenStore loads (or lazily creates) the token file at path.
// refreshURL is the absolute URL of the token-refresh endpoint.
func NewFileTokenStore(path, refreshURL string) (*FileTokenStore, error) {
	s := &FileTokenStore{
		path:       path,
		refreshURL: refreshURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}
	var stored map[string]string
	if err := json.Unmarshal(data, &stored); err != nil {
		// A corrupt token file means signed out, not crashed.
		return s, nil
	}
	s.access = stored[accessTokenKey]
	s.refresh = stored[refreshTokenKey]
	return s, nil
}

func (s *FileTokenStore) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.access
}

// SetTokens stores a new token pair, e.g. after login.
func (s *FileTokenStore) SetTokens(access, refresh string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access = access
	s.refresh = refresh
	return s.saveLocked()
}

func (s *FileTokenStore) RefreshAccessToken(ctx context.Context) bool {
	s.mu.Lock()
	refresh := s.refresh
	s.mu.Unlock()
	if refresh == "" {
		return false
	}

	body, _ := json.Marshal(map[string]string{"refreshToken": refresh})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.refreshURL, bytes.NewReader(body))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false
	}

	var parsed struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil || parsed.AccessToken == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.access = parsed.AccessToken
	if parsed.RefreshToken != "" {
		s.refresh = parsed.RefreshToken
	}
	if err := s.saveLocked(); err != nil {
		// Tokens still usable in memory; persistence failure is non-fatal.
		return true
	}
	return true
}

func (s *FileTokenStore) ClearTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access = ""
	s.refresh = ""
	_ = s.saveLocked()
}

func (s *FileTokenStore) saveLocked() error {
	stored := map[string]string{
		accessTokenKey:  s.access,
		refreshTokenKey: s.refresh,
	}
	data, err := json.Marshal(stored)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
