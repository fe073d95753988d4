package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

const testSigningKey = "test-signing-key-with-at-least-32-bytes"

// testClock керований годинник для перевірок строку дії
type testClock struct {
	mutex sync.Mutex
	now   time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.now = c.now.Add(d)
}

func newTestTokens(now func() time.Time) TokenService {
	return NewTokenService(TokenConfig{
		Secret:     []byte(testSigningKey),
		Issuer:     "admin-auth",
		Audience:   "admin-dashboard",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 14 * 24 * time.Hour,
		Now:        now,
	})
}

// fakeProvider імітує token та userinfo ендпоінти провайдера
type fakeProvider struct {
	server        *httptest.Server
	exchangeCalls int32

	mutex        sync.Mutex
	tokenStatus  int
	userInfo     ProviderIdentity
	lastVerifier string
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()
	fp := &fakeProvider{
		tokenStatus: http.StatusOK,
		userInfo: ProviderIdentity{
			Subject:       "google-sub-1",
			Email:         "Person@Example.com",
			EmailVerified: true,
			Name:          "Person",
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&fp.exchangeCalls, 1)
		_ = r.ParseForm()

		fp.mutex.Lock()
		fp.lastVerifier = r.PostForm.Get("code_verifier")
		status := fp.tokenStatus
		fp.mutex.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "provider-access-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer provider-access-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fp.mutex.Lock()
		info := fp.userInfo
		fp.mutex.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(info)
	})

	fp.server = httptest.NewServer(mux)
	t.Cleanup(fp.server.Close)
	return fp
}

func (fp *fakeProvider) provider() IdentityProvider {
	return NewGoogleProvider(ProviderConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "http://localhost:8080/auth/google/callback",
		AuthURL:      fp.server.URL + "/authorize",
		TokenURL:     fp.server.URL + "/token",
		UserInfoURL:  fp.server.URL + "/userinfo",
		Timeout:      5 * time.Second,
	})
}

func (fp *fakeProvider) setUserInfo(info ProviderIdentity) {
	fp.mutex.Lock()
	defer fp.mutex.Unlock()
	fp.userInfo = info
}

func (fp *fakeProvider) setTokenStatus(status int) {
	fp.mutex.Lock()
	defer fp.mutex.Unlock()
	fp.tokenStatus = status
}

func (fp *fakeProvider) verifier() string {
	fp.mutex.Lock()
	defer fp.mutex.Unlock()
	return fp.lastVerifier
}
