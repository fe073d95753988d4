package middleware

import (
	"net/http"

	"admin-auth/internal/metrics"
	"admin-auth/internal/models"
	"admin-auth/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Імена, під якими клієнт повертає CSRF токен
const (
	CSRFCookieName = "csrf-token"
	CSRFHeaderName = "X-CSRF-Token"
	CSRFFormField  = "_csrf"
)

// CSRFMiddleware перевіряє double-submit для запитів, що змінюють стан.
// Токен із заголовка має пріоритет над полем форми.
func CSRFMiddleware(guard *services.CSRFGuard) gin.HandlerFunc {
	return func(c *gin.Context) {
		if services.IsSafeMethod(c.Request.Method) {
			c.Next()
			return
		}

		cookieToken, _ := c.Cookie(CSRFCookieName)
		submitted := c.GetHeader(CSRFHeaderName)
		if submitted == "" {
			submitted = c.PostForm(CSRFFormField)
		}

		err := guard.Validate(c.Request.Context(), services.CSRFRequest{
			Method:           c.Request.Method,
			CookieToken:      cookieToken,
			SubmittedToken:   submitted,
			RequesterAddress: c.ClientIP(),
		})
		if err != nil {
			metrics.CSRFRejections.Inc()
			logrus.WithError(err).WithFields(logrus.Fields{
				"path":   c.Request.URL.Path,
				"method": c.Request.Method,
			}).Warn("CSRF validation failed")
			c.AbortWithStatusJSON(http.StatusForbidden, models.ErrorResponse{
				Error:            "forbidden",
				ErrorDescription: "CSRF validation failed",
			})
			return
		}

		c.Next()
	}
}
