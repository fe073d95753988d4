package handlers

import (
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"time"

	"admin-auth/internal/metrics"
	"admin-auth/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Способи доставки access token клієнту після OAuth входу
const (
	DeliveryFormPost    = "form_post"
	DeliverySessionSlot = "session_slot"
)

// Поля форми, яку отримує клієнтський callback
const (
	FormFieldAccessToken = "accessToken"
	FormFieldExpiresAt   = "expiresAt"
)

var formPostTemplate = template.Must(template.New("form_post").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Signing in</title></head>
<body>
<form method="post" action="{{.Action}}">
<input type="hidden" name="` + FormFieldAccessToken + `" value="{{.AccessToken}}">
<input type="hidden" name="` + FormFieldExpiresAt + `" value="{{.ExpiresAt}}">
<noscript><button type="submit">Continue</button></noscript>
</form>
<script>document.forms[0].submit();</script>
</body>
</html>
`))

type formPostData struct {
	Action      string
	AccessToken string
	ExpiresAt   string
}

// OAuthConfig налаштування OAuth handlers
type OAuthConfig struct {
	Delivery      string
	ClientBaseURL string
	CallbackPath  string
	LoginPath     string
	HandoffTTL    time.Duration
	StateTTL      time.Duration
}

// OAuthHandler містить handlers для входу через стороннього провайдера
type OAuthHandler struct {
	coordinator *services.SignInCoordinator
	provider    string
	cookies     *CookieWriter
	cfg         OAuthConfig
}

// NewOAuthHandler створює новий OAuthHandler
func NewOAuthHandler(coordinator *services.SignInCoordinator, provider string, cookies *CookieWriter, cfg OAuthConfig) *OAuthHandler {
	if cfg.Delivery == "" {
		cfg.Delivery = DeliveryFormPost
	}
	if cfg.CallbackPath == "" {
		cfg.CallbackPath = "/auth/callback"
	}
	if cfg.LoginPath == "" {
		cfg.LoginPath = "/login"
	}
	if cfg.HandoffTTL <= 0 {
		cfg.HandoffTTL = time.Minute
	}
	if cfg.StateTTL <= 0 {
		cfg.StateTTL = 10 * time.Minute
	}
	return &OAuthHandler{
		coordinator: coordinator,
		provider:    provider,
		cookies:     cookies,
		cfg:         cfg,
	}
}

// Begin перенаправляє на сторінку авторизації провайдера
// @Summary Google sign-in
// @Description Генерує state і перенаправляє на провайдера
// @Tags oauth
// @Success 302
// @Router /auth/google [get]
func (h *OAuthHandler) Begin(c *gin.Context) {
	authURL, state, err := h.coordinator.Begin(c.Request.Context())
	if err != nil {
		logrus.WithError(err).Error("Failed to initiate sign-in")
		h.redirectFailure(c, services.SignInErrorCode(err))
		return
	}

	h.cookies.SetOAuthState(c, state, h.cfg.StateTTL)
	c.Header("Cache-Control", "no-store")
	c.Redirect(http.StatusFound, authURL)
}

// Callback завершує обмін коду і доставляє токен клієнту без URL
// @Summary Google sign-in callback
// @Description Перевіряє state, обмінює code, відкриває сесію і повертає користувача в клієнтський додаток
// @Tags oauth
// @Param code query string false "Authorization Code"
// @Param state query string true "State"
// @Param error query string false "Provider error"
// @Success 200 {string} string "auto-submitting form"
// @Success 303
// @Router /auth/google/callback [get]
func (h *OAuthHandler) Callback(c *gin.Context) {
	ctx := c.Request.Context()
	bound, _ := c.Cookie(OAuthStateCookieName)
	h.cookies.ClearOAuthState(c)

	result, err := h.coordinator.Complete(ctx, services.CallbackParams{
		Code:       c.Query("code"),
		State:      c.Query("state"),
		Error:      c.Query("error"),
		BoundState: bound,
	})
	if err != nil {
		code := services.SignInErrorCode(err)
		metrics.SignIns.WithLabelValues(h.provider, code).Inc()
		h.redirectFailure(c, code)
		return
	}
	metrics.SignIns.WithLabelValues(h.provider, services.PhaseCompleted).Inc()

	h.cookies.SetRefresh(c, result.RefreshToken, result.RefreshExpiresAt)
	h.cookies.SetAccess(c, result.AccessToken, result.AccessExpiresAt)

	switch h.cfg.Delivery {
	case DeliverySessionSlot:
		slotID, err := h.coordinator.StashHandoff(ctx, result)
		if err != nil {
			logrus.WithError(err).Error("Failed to stash sign-in handoff")
			h.redirectFailure(c, services.SignInCodeServer)
			return
		}
		h.cookies.SetHandoff(c, slotID, h.cfg.HandoffTTL)
		c.Header("Cache-Control", "no-store")
		c.Header("Referrer-Policy", "no-referrer")
		c.Redirect(http.StatusSeeOther, h.clientURL(h.cfg.CallbackPath, nil))
	default:
		h.renderFormPost(c, result)
	}
}

// Verify обмінює слот передачі на access token, лише один раз
// @Summary Claim sign-in handoff
// @Description Повертає access token з серверного слота після OAuth входу
// @Tags oauth
// @Produce json
// @Param X-CSRF-Token header string true "CSRF token"
// @Success 200 {object} models.SessionResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/oauth/verify [post]
func (h *OAuthHandler) Verify(c *gin.Context) {
	slotID, _ := c.Cookie(HandoffCookieName)
	h.cookies.ClearHandoff(c)

	handoff, identity, err := h.coordinator.ClaimHandoff(c.Request.Context(), slotID)
	if err != nil {
		if errors.Is(err, services.ErrUnauthenticated) {
			respondError(c, http.StatusUnauthorized, "unauthorized", "No pending sign-in")
			return
		}
		logrus.WithError(err).Error("Failed to claim sign-in handoff")
		respondError(c, http.StatusInternalServerError, "server_error", "Failed to complete sign-in")
		return
	}

	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, sessionResponse(&services.AuthResult{
		Identity:        identity,
		AccessToken:     handoff.AccessToken,
		AccessExpiresAt: handoff.ExpiresAt,
	}))
}

func (h *OAuthHandler) renderFormPost(c *gin.Context, result *services.AuthResult) {
	action := h.clientURL(h.cfg.CallbackPath, nil)

	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	c.Header("Referrer-Policy", "no-referrer")
	c.Header("Content-Security-Policy", "default-src 'none'; script-src 'unsafe-inline'; form-action "+action)
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)

	err := formPostTemplate.Execute(c.Writer, formPostData{
		Action:      action,
		AccessToken: result.AccessToken,
		ExpiresAt:   result.AccessExpiresAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		logrus.WithError(err).Error("Failed to render sign-in form")
	}
}

func (h *OAuthHandler) redirectFailure(c *gin.Context, code string) {
	c.Header("Cache-Control", "no-store")
	c.Redirect(http.StatusSeeOther, h.clientURL(h.cfg.LoginPath, url.Values{"error": {code}}))
}

func (h *OAuthHandler) clientURL(path string, query url.Values) string {
	target := h.cfg.ClientBaseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	return target
}
