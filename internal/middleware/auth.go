package middleware

import (
	"net/http"
	"strings"

	"admin-auth/internal/models"
	"admin-auth/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// AccessCookieName cookie з access token для браузерних клієнтів
const AccessCookieName = "token"

const (
	claimsKey = "claims"
	userIDKey = "user_id"
)

// AuthMiddleware створює middleware для перевірки access token.
// Токен береться з заголовка Authorization, а якщо його немає, то з cookie.
// Будь-яка відмова дає однаковий 401 без причини.
func AuthMiddleware(tokens services.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, source := extractAccessToken(c)
		if token == "" {
			logrus.WithField("path", c.Request.URL.Path).Debug("Request without access token")
			abortUnauthorized(c)
			return
		}

		claims, err := tokens.Verify(token, services.TokenTypeAccess)
		if err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{
				"path":   c.Request.URL.Path,
				"source": source,
			}).Warn("Access token rejected")
			abortUnauthorized(c)
			return
		}

		c.Set(claimsKey, claims)
		c.Set(userIDKey, claims.SubjectID())

		logrus.WithFields(logrus.Fields{
			"user_id": claims.SubjectID(),
			"path":    c.Request.URL.Path,
		}).Debug("User authenticated successfully")

		c.Next()
	}
}

func extractAccessToken(c *gin.Context) (string, string) {
	if header := c.GetHeader("Authorization"); header != "" {
		if !strings.HasPrefix(header, "Bearer ") {
			return "", "header"
		}
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer ")), "header"
	}
	if cookie, err := c.Cookie(AccessCookieName); err == nil {
		return cookie, "cookie"
	}
	return "", ""
}

func abortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
		Error:            "unauthorized",
		ErrorDescription: "Authentication required",
	})
}

// GetCurrentClaims витягує claims поточного токена з контексту
func GetCurrentClaims(c *gin.Context) (*services.Claims, bool) {
	value, exists := c.Get(claimsKey)
	if !exists {
		return nil, false
	}
	claims, ok := value.(*services.Claims)
	return claims, ok
}

// GetCurrentUserID витягує ID поточного користувача з контексту
func GetCurrentUserID(c *gin.Context) (string, bool) {
	userID, exists := c.Get(userIDKey)
	if !exists {
		return "", false
	}

	userIDStr, ok := userID.(string)
	return userIDStr, ok
}
