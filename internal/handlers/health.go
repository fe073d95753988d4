package handlers

import (
	"context"
	"net/http"
	"time"

	"admin-auth/internal/build"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// HealthHandler містить handlers для health check
type HealthHandler struct {
	db    *gorm.DB
	redis redis.Cmdable
}

// NewHealthHandler створює новий HealthHandler. db і redis можуть бути nil.
func NewHealthHandler(db *gorm.DB, redisClient redis.Cmdable) *HealthHandler {
	return &HealthHandler{db: db, redis: redisClient}
}

// Health повертає статус здоров'я сервісу
// @Summary Health Check
// @Description Повертає статус сервісу, залежностей і версію білда
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	body := gin.H{
		"status":  "healthy",
		"service": "admin-auth",
		"build":   build.Info(),
	}

	if h.db != nil {
		body["database"] = "healthy"
		sqlDB, err := h.db.DB()
		if err == nil {
			err = sqlDB.PingContext(ctx)
		}
		if err != nil {
			logrus.WithError(err).Warn("Database health check failed")
			body["database"] = "unhealthy"
			status = http.StatusServiceUnavailable
		}
	}

	if h.redis != nil {
		body["redis"] = "healthy"
		if err := h.redis.Ping(ctx).Err(); err != nil {
			logrus.WithError(err).Warn("Redis health check failed")
			body["redis"] = "unhealthy"
			status = http.StatusServiceUnavailable
		}
	}

	if status != http.StatusOK {
		body["status"] = "unhealthy"
	}
	c.JSON(status, body)
}
