// Сервер для Kubernetes - читає конфігурацію зі змінних середовища
package main

import (
	"log"
	"os"
	"strconv"
	"strings"

	"admin-auth/internal/config"
)

func main() {
	cfg := loadConfigFromEnv()

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if err := config.StartServer(cfg); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func loadConfigFromEnv() *config.Config {
	clientBaseURL := getEnv("CLIENT_BASE_URL", "http://localhost:3000")

	return &config.Config{
		Server: config.ServerConfig{
			Host:         getEnv("HOST", "0.0.0.0"),
			Port:         getEnvInt("PORT", 8080),
			Environment:  getEnv("MODE", "production"),
			LogLevel:     getEnv("LOG_LEVEL", "info"),
			LogFormat:    getEnv("LOG_FORMAT", "json"),
			ReadTimeout:  getEnv("READ_TIMEOUT", "30s"),
			WriteTimeout: getEnv("WRITE_TIMEOUT", "30s"),
			IdleTimeout:  getEnv("IDLE_TIMEOUT", "120s"),
		},

		Database: config.DatabaseConfig{
			Driver:                getEnv("DB_DRIVER", "postgres"),
			Host:                  getEnv("DB_HOST", "postgres-service"),
			Port:                  getEnvInt("DB_PORT", 5432),
			Name:                  getEnv("DB_NAME", "admin_auth"),
			User:                  getEnv("DB_USER", "admin_auth"),
			Password:              getEnv("DB_PASSWORD", ""),
			SSLMode:               getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConnections:    getEnvInt("DB_MAX_OPEN", 10),
			MaxIdleConnections:    getEnvInt("DB_MAX_IDLE", 5),
			ConnectionMaxLifetime: getEnv("DB_CONN_MAX_LIFETIME", "5m"),
			AutoMigrate:           getEnvBool("DB_AUTO_MIGRATE", true),
		},

		Tokens: config.TokensConfig{
			SigningKey:           getEnv("JWT_SIGNING_KEY", ""),
			Issuer:               getEnv("JWT_ISSUER", "admin-auth"),
			Audience:             getEnv("JWT_AUDIENCE", "admin-dashboard"),
			AccessTokenDuration:  getEnv("JWT_ACCESS_DURATION", "15m"),
			RefreshTokenDuration: getEnv("JWT_REFRESH_DURATION", "336h"),
		},

		Cookies: config.CookiesConfig{
			Secure:      getEnvBool("COOKIE_SECURE", true),
			SameSite:    getEnv("COOKIE_SAME_SITE", "strict"),
			Domain:      getEnv("COOKIE_DOMAIN", ""),
			RefreshPath: getEnv("COOKIE_REFRESH_PATH", "/auth"),
		},

		CSRF: config.CSRFConfig{
			TTL:                  getEnv("CSRF_TTL", "1h"),
			MaxEntries:           getEnvInt("CSRF_MAX_ENTRIES", 10000),
			StrictAddressBinding: getEnvBool("CSRF_STRICT_ADDRESS", false),
		},

		OAuth: config.OAuthConfig{
			Provider: config.OAuthProviderConfig{
				ClientID:        getEnv("GOOGLE_CLIENT_ID", ""),
				ClientSecret:    getEnv("GOOGLE_CLIENT_SECRET", ""),
				RedirectURL:     getEnv("GOOGLE_REDIRECT_URL", ""),
				AuthURL:         getEnv("GOOGLE_AUTH_URL", ""),
				TokenURL:        getEnv("GOOGLE_TOKEN_URL", ""),
				UserInfoURL:     getEnv("GOOGLE_USERINFO_URL", ""),
				ExchangeTimeout: getEnv("OAUTH_EXCHANGE_TIMEOUT", "15s"),
			},
			Scopes:          []string{"openid", "email", "profile"},
			StateTTL:        getEnv("OAUTH_STATE_TTL", "10m"),
			HandoffTTL:      getEnv("OAUTH_HANDOFF_TTL", "1m"),
			Delivery:        getEnv("OAUTH_DELIVERY", "form_post"),
			JanitorInterval: getEnv("OAUTH_JANITOR_INTERVAL", "1m"),
		},

		Client: config.ClientConfig{
			BaseURL:      clientBaseURL,
			CallbackPath: getEnv("CLIENT_CALLBACK_PATH", "/auth/callback"),
			LoginPath:    getEnv("CLIENT_LOGIN_PATH", "/login"),
		},

		Security: config.SecurityConfig{
			DefaultRole: getEnv("DEFAULT_ROLE", "staff"),
			CORS: config.CORSConfig{
				AllowedOrigins: strings.Split(getEnv("CORS_ALLOWED_ORIGINS", clientBaseURL), ","),
				AllowedMethods: []string{"GET", "POST", "OPTIONS"},
				AllowedHeaders: []string{
					"Content-Type",
					"Authorization",
					"X-CSRF-Token",
					"X-Requested-With",
					"Accept",
					"Origin",
				},
				ExposedHeaders:   []string{"X-CSRF-Token"},
				AllowCredentials: true,
				MaxAge:           3600,
			},
			RateLimit: config.RateLimitConfig{
				Enabled:           getEnvBool("RATE_LIMIT_ENABLED", true),
				RequestsPerMinute: getEnvInt("RATE_LIMIT_RPM", 30),
				Burst:             getEnvInt("RATE_LIMIT_BURST", 10),
			},
		},

		Redis: config.RedisConfig{
			Enabled:    getEnvBool("REDIS_ENABLED", false),
			Host:       getEnv("REDIS_HOST", "redis-service"),
			Port:       getEnvInt("REDIS_PORT", 6379),
			Password:   getEnv("REDIS_PASSWORD", ""),
			Database:   getEnvInt("REDIS_DB", 0),
			MaxRetries: 3,
			PoolSize:   getEnvInt("REDIS_POOL_SIZE", 10),
			KeyPrefix:  getEnv("REDIS_KEY_PREFIX", "admin-auth:"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}
