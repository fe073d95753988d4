package config

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"admin-auth/internal/middleware"
	"admin-auth/internal/models"
	"admin-auth/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	gin.DefaultWriter = io.Discard
	logrus.SetOutput(io.Discard)
}

type stubProvider struct{}

func (stubProvider) Name() string { return services.ProviderGoogle }

func (stubProvider) AuthCodeURL(state, verifier string) string {
	return "https://provider.test/authorize?state=" + state
}

func (stubProvider) Exchange(context.Context, string, string) (*services.ProviderIdentity, error) {
	return nil, services.ErrUpstream
}

func memoryDependencies() *Dependencies {
	return &Dependencies{
		Store:     services.NewMemoryCredentialStore(),
		OnceStore: services.NewMemoryOnceStore(nil),
		CSRFStore: services.NewMemoryCSRFStore(0),
	}
}

func routerConfig() *Config {
	cfg := validConfig()
	cfg.Security.CORS = CORSConfig{
		AllowedOrigins:   []string{"http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", middleware.CSRFHeaderName},
		ExposedHeaders:   []string{middleware.CSRFHeaderName},
		AllowCredentials: true,
	}
	return cfg
}

// browser тримає cookies між запитами так, як це робить браузер
type browser struct {
	t       *testing.T
	router  *gin.Engine
	cookies map[string]string
	csrf    string
}

func newBrowser(t *testing.T, router *gin.Engine) *browser {
	return &browser{t: t, router: router, cookies: map[string]string{}}
}

func (b *browser) do(method, path, bearer string, body interface{}) *httptest.ResponseRecorder {
	b.t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(b.t, err)
		reader = strings.NewReader(string(data))
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	if b.csrf != "" && method != http.MethodGet {
		req.Header.Set(middleware.CSRFHeaderName, b.csrf)
	}
	for name, value := range b.cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}

	w := httptest.NewRecorder()
	b.router.ServeHTTP(w, req)

	for _, cookie := range w.Result().Cookies() {
		if cookie.MaxAge < 0 {
			delete(b.cookies, cookie.Name)
			continue
		}
		b.cookies[cookie.Name] = cookie.Value
	}
	if token := w.Header().Get(middleware.CSRFHeaderName); token != "" {
		b.csrf = token
	}
	return w
}

func TestRouter_SessionLifecycle(t *testing.T) {
	b := newBrowser(t, NewRouter(routerConfig(), memoryDependencies()))

	w := b.do(http.MethodPost, "/auth/register", "", models.RegisterRequest{Email: "a@x.com", Name: "Alice", Password: "secret1"})
	require.Equal(t, http.StatusForbidden, w.Code, "no CSRF token yet")

	w = b.do(http.MethodGet, "/auth/csrf", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotEmpty(t, b.csrf)

	w = b.do(http.MethodPost, "/auth/register", "", models.RegisterRequest{Email: "a@x.com", Name: "Alice", Password: "secret1"})
	require.Equal(t, http.StatusCreated, w.Code)
	var session models.SessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &session))
	require.NotEmpty(t, b.cookies["refreshToken"])

	w = b.do(http.MethodGet, "/auth/me", session.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"email":"a@x.com"`)

	w = b.do(http.MethodPost, "/auth/refresh", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var refreshed models.RefreshResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &refreshed))
	assert.NotEmpty(t, refreshed.AccessToken)

	w = b.do(http.MethodPost, "/auth/logout", refreshed.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, b.cookies["refreshToken"])
	assert.Empty(t, b.cookies[middleware.CSRFCookieName])

	b.csrf = ""
	w = b.do(http.MethodPost, "/auth/refresh", "", nil)
	assert.Equal(t, http.StatusForbidden, w.Code, "CSRF cookie is gone after logout")
}

func TestRouter_OperationalEndpoints(t *testing.T) {
	router := NewRouter(routerConfig(), memoryDependencies())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/google", nil))
	assert.Equal(t, http.StatusNotFound, w.Code, "sign-in routes need a provider")
}

func TestRouter_CORS(t *testing.T) {
	router := NewRouter(routerConfig(), memoryDependencies())

	req := httptest.NewRequest(http.MethodOptions, "/auth/login", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
	assert.Equal(t, middleware.CSRFHeaderName, w.Header().Get("Access-Control-Expose-Headers"))

	req = httptest.NewRequest(http.MethodOptions, "/auth/login", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_SignInRoutesWithProvider(t *testing.T) {
	deps := memoryDependencies()
	deps.Provider = stubProvider{}
	router := NewRouter(routerConfig(), deps)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/google", nil))
	require.Equal(t, http.StatusFound, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Location"), "https://provider.test/authorize?state="))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/google/callback?code=c&state=forged", nil))
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "http://localhost:3000/login?error=oauth_state_mismatch", w.Header().Get("Location"))
}
