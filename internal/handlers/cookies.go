package handlers

import (
	"net/http"
	"time"

	"admin-auth/internal/middleware"

	"github.com/gin-gonic/gin"
)

// Імена cookies сесії
const (
	RefreshCookieName    = "refreshToken"
	HandoffCookieName    = "oauth-session"
	OAuthStateCookieName = "oauth-state"

	legacyAccessCookieName  = "accessToken"
	legacyRefreshCookieName = "refresh-token"
)

// CookieConfig атрибути cookies сесії
type CookieConfig struct {
	Secure      bool
	SameSite    http.SameSite
	Domain      string
	RefreshPath string
	HandoffPath string
	StatePath   string
}

// CookieWriter виставляє та очищає cookies сесії з однаковими атрибутами
type CookieWriter struct {
	cfg CookieConfig
}

// NewCookieWriter створює новий CookieWriter
func NewCookieWriter(cfg CookieConfig) *CookieWriter {
	if cfg.SameSite == 0 {
		cfg.SameSite = http.SameSiteStrictMode
	}
	if cfg.RefreshPath == "" {
		cfg.RefreshPath = "/auth"
	}
	if cfg.HandoffPath == "" {
		cfg.HandoffPath = "/auth/oauth"
	}
	if cfg.StatePath == "" {
		cfg.StatePath = "/auth/google"
	}
	return &CookieWriter{cfg: cfg}
}

func (w *CookieWriter) set(c *gin.Context, name, value, path string, maxAge int) {
	c.SetSameSite(w.cfg.SameSite)
	c.SetCookie(name, value, maxAge, path, w.cfg.Domain, w.cfg.Secure, true)
}

// SetAccess виставляє cookie з access token
func (w *CookieWriter) SetAccess(c *gin.Context, token string, expiresAt time.Time) {
	w.set(c, middleware.AccessCookieName, token, "/", secondsUntil(expiresAt))
}

// SetRefresh виставляє refresh cookie, доступну лише маршрутам автентифікації
func (w *CookieWriter) SetRefresh(c *gin.Context, token string, expiresAt time.Time) {
	w.set(c, RefreshCookieName, token, w.cfg.RefreshPath, secondsUntil(expiresAt))
}

// SetCSRF виставляє cookie з CSRF токеном
func (w *CookieWriter) SetCSRF(c *gin.Context, token string, ttl time.Duration) {
	w.set(c, middleware.CSRFCookieName, token, "/", int(ttl.Seconds()))
}

// SetHandoff виставляє cookie з ідентифікатором слота передачі токена
func (w *CookieWriter) SetHandoff(c *gin.Context, slotID string, ttl time.Duration) {
	w.set(c, HandoffCookieName, slotID, w.cfg.HandoffPath, int(ttl.Seconds()))
}

// ClearHandoff видаляє cookie слота передачі
func (w *CookieWriter) ClearHandoff(c *gin.Context) {
	w.set(c, HandoffCookieName, "", w.cfg.HandoffPath, -1)
}

// SetOAuthState прив'язує state входу до браузера.
// Повернення від провайдера є міжсайтовою навігацією, тому Strict тут понижується до Lax.
func (w *CookieWriter) SetOAuthState(c *gin.Context, state string, ttl time.Duration) {
	sameSite := w.cfg.SameSite
	if sameSite == http.SameSiteStrictMode || sameSite == http.SameSiteDefaultMode {
		sameSite = http.SameSiteLaxMode
	}
	c.SetSameSite(sameSite)
	c.SetCookie(OAuthStateCookieName, state, int(ttl.Seconds()), w.cfg.StatePath, w.cfg.Domain, w.cfg.Secure, true)
}

// ClearOAuthState видаляє cookie зі state входу
func (w *CookieWriter) ClearOAuthState(c *gin.Context) {
	w.set(c, OAuthStateCookieName, "", w.cfg.StatePath, -1)
}

// ClearSession видаляє всі cookies сесії, включно зі старими іменами
func (w *CookieWriter) ClearSession(c *gin.Context) {
	w.set(c, middleware.AccessCookieName, "", "/", -1)
	w.set(c, legacyAccessCookieName, "", "/", -1)
	w.set(c, RefreshCookieName, "", w.cfg.RefreshPath, -1)
	w.set(c, legacyRefreshCookieName, "", w.cfg.RefreshPath, -1)
	w.set(c, middleware.CSRFCookieName, "", "/", -1)
}

// ReadRefresh повертає refresh token з поточної або старої cookie
func (w *CookieWriter) ReadRefresh(c *gin.Context) string {
	if value, err := c.Cookie(RefreshCookieName); err == nil && value != "" {
		return value
	}
	if value, err := c.Cookie(legacyRefreshCookieName); err == nil {
		return value
	}
	return ""
}

func secondsUntil(t time.Time) int {
	seconds := int(time.Until(t).Seconds())
	if seconds < 1 {
		return 1
	}
	return seconds
}
