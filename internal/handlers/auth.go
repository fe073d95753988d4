package handlers

import (
	"errors"
	"net/http"

	"admin-auth/internal/metrics"
	"admin-auth/internal/middleware"
	"admin-auth/internal/models"
	"admin-auth/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// AuthHandler містить handlers для входу за паролем і керування сесією
type AuthHandler struct {
	authService services.AuthService
	csrfGuard   *services.CSRFGuard
	cookies     *CookieWriter
}

// NewAuthHandler створює новий AuthHandler
func NewAuthHandler(authService services.AuthService, csrfGuard *services.CSRFGuard, cookies *CookieWriter) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		csrfGuard:   csrfGuard,
		cookies:     cookies,
	}
}

// Register реєструє новий обліковий запис
// @Summary Register
// @Description Реєструє новий обліковий запис і відкриває сесію
// @Tags auth
// @Accept json
// @Produce json
// @Param X-CSRF-Token header string true "CSRF token"
// @Param registerRequest body models.RegisterRequest true "Registration Data"
// @Success 201 {object} models.SessionResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithError(err).Warn("Invalid registration request")
		respondError(c, http.StatusBadRequest, "invalid_request", "Missing or invalid registration data")
		return
	}

	result, err := h.authService.Register(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, services.ErrConflict) {
			respondError(c, http.StatusConflict, "conflict", "Account already exists")
			return
		}
		logrus.WithError(err).Error("Failed to register identity")
		respondError(c, http.StatusInternalServerError, "server_error", "Registration failed")
		return
	}

	h.startSession(c, result)
	c.JSON(http.StatusCreated, sessionResponse(result))
}

// Login перевіряє пароль і відкриває сесію
// @Summary Login
// @Description Вхід за email та паролем
// @Tags auth
// @Accept json
// @Produce json
// @Param X-CSRF-Token header string true "CSRF token"
// @Param loginRequest body models.LoginRequest true "Credentials"
// @Success 200 {object} models.SessionResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithError(err).Warn("Invalid login request")
		respondError(c, http.StatusBadRequest, "invalid_request", "Missing or invalid email/password")
		return
	}

	result, err := h.authService.Login(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			metrics.Logins.WithLabelValues("invalid_credentials").Inc()
			respondError(c, http.StatusUnauthorized, "invalid_grant", "Invalid email or password")
			return
		}
		metrics.Logins.WithLabelValues("error").Inc()
		logrus.WithError(err).Error("Failed to login")
		respondError(c, http.StatusInternalServerError, "server_error", "Login failed")
		return
	}

	metrics.Logins.WithLabelValues("success").Inc()
	h.startSession(c, result)
	c.JSON(http.StatusOK, sessionResponse(result))
}

// Refresh випускає новий access token за refresh cookie
// @Summary Refresh Token
// @Description Оновлює access token; refresh token передається лише через HTTP-only cookie
// @Tags auth
// @Produce json
// @Param X-CSRF-Token header string true "CSRF token"
// @Success 200 {object} models.RefreshResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	result, err := h.authService.Refresh(c.Request.Context(), h.cookies.ReadRefresh(c))
	if err != nil {
		if errors.Is(err, services.ErrUnauthenticated) {
			metrics.Refreshes.WithLabelValues("rejected").Inc()
			respondError(c, http.StatusUnauthorized, "unauthorized", "Session expired")
			return
		}
		metrics.Refreshes.WithLabelValues("error").Inc()
		logrus.WithError(err).Error("Failed to refresh session")
		respondError(c, http.StatusInternalServerError, "server_error", "Refresh failed")
		return
	}

	metrics.Refreshes.WithLabelValues("success").Inc()
	h.startSession(c, result)
	c.JSON(http.StatusOK, models.RefreshResponse{
		AccessToken: result.AccessToken,
		ExpiresAt:   result.AccessExpiresAt,
	})
}

// Logout завершує сесію і видаляє cookies
// @Summary Logout
// @Description Видаляє всі cookies сесії
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Param X-CSRF-Token header string true "CSRF token"
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	userID, _ := middleware.GetCurrentUserID(c)
	h.cookies.ClearSession(c)

	logrus.WithField("user_id", userID).Info("User logged out")
	c.JSON(http.StatusOK, gin.H{"message": "Logout successful"})
}

// Me повертає поточний обліковий запис
// @Summary Current identity
// @Description Повертає обліковий запис власника access token
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.Identity
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	identity, err := h.authService.Me(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, services.ErrUnauthenticated) {
			respondError(c, http.StatusUnauthorized, "unauthorized", "Authentication required")
			return
		}
		logrus.WithError(err).Error("Failed to load identity")
		respondError(c, http.StatusInternalServerError, "server_error", "Failed to load identity")
		return
	}

	c.JSON(http.StatusOK, identity.Public())
}

// CSRF видає CSRF токен у cookie і в заголовку відповіді
// @Summary CSRF token
// @Description Видає токен для double-submit; копію повертає в заголовку X-CSRF-Token
// @Tags auth
// @Produce json
// @Success 200 {object} models.CSRFResponse
// @Router /auth/csrf [get]
func (h *AuthHandler) CSRF(c *gin.Context) {
	token, err := h.csrfGuard.Issue(c.Request.Context(), c.ClientIP())
	if err != nil {
		logrus.WithError(err).Error("Failed to issue CSRF token")
		respondError(c, http.StatusInternalServerError, "server_error", "Failed to issue CSRF token")
		return
	}

	h.cookies.SetCSRF(c, token, h.csrfGuard.TTL())
	c.Header(middleware.CSRFHeaderName, token)
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, models.CSRFResponse{CSRFToken: token})
}

func (h *AuthHandler) startSession(c *gin.Context, result *services.AuthResult) {
	h.cookies.SetRefresh(c, result.RefreshToken, result.RefreshExpiresAt)
	h.cookies.SetAccess(c, result.AccessToken, result.AccessExpiresAt)
}

func sessionResponse(result *services.AuthResult) models.SessionResponse {
	return models.SessionResponse{
		Identity:    result.Identity.Public(),
		AccessToken: result.AccessToken,
		ExpiresAt:   result.AccessExpiresAt,
	}
}

func respondError(c *gin.Context, status int, code, description string) {
	c.JSON(status, models.ErrorResponse{
		Error:            code,
		ErrorDescription: description,
	})
}
