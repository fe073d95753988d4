package config

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"admin-auth/internal/handlers"
	"admin-auth/internal/middleware"
	"admin-auth/internal/services"

	_ "admin-auth/docs"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"
)

// Dependencies сховища та зовнішні клієнти, з яких збирається роутер
type Dependencies struct {
	Store     services.CredentialStore
	OnceStore services.OnceStore
	CSRFStore services.CSRFStore
	Provider  services.IdentityProvider
	DB        *gorm.DB
	Redis     *redis.Client
}

// StartServer запускає HTTP сервер з конфігурацією
func StartServer(cfg *Config) error {
	setupLogging(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deps, err := buildDependencies(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.close()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	srv := &http.Server{
		Addr:         cfg.GetAddress(),
		Handler:      NewRouter(cfg, deps),
		ReadTimeout:  durationOr(cfg.Server.ReadTimeout, 30*time.Second),
		WriteTimeout: durationOr(cfg.Server.WriteTimeout, 30*time.Second),
		IdleTimeout:  durationOr(cfg.Server.IdleTimeout, 120*time.Second),
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logrus.WithFields(logrus.Fields{
			"address":     cfg.GetAddress(),
			"environment": cfg.Server.Environment,
			"store":       cfg.Database.Driver,
			"redis":       cfg.Redis.Enabled,
			"oauth":       cfg.OAuthEnabled(),
		}).Info("Starting auth server")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-quit
	logrus.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
		return err
	}

	logrus.Info("Server exited gracefully")
	return nil
}

// buildDependencies створює сховища за конфігурацією і запускає фонове очищення
func buildDependencies(ctx context.Context, cfg *Config) (*Dependencies, error) {
	deps := &Dependencies{}

	switch cfg.Database.Driver {
	case "memory":
		logrus.Warn("Using in-memory credential store; identities are lost on restart")
		deps.Store = services.NewMemoryCredentialStore()
	default:
		db, err := connectToDatabase(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		deps.DB = db
		if cfg.Database.AutoMigrate {
			if err := migrate(db); err != nil {
				deps.close()
				return nil, err
			}
		}
		deps.Store = services.NewGormCredentialStore(db)
	}

	csrfTTL := durationOr(cfg.CSRF.TTL, time.Hour)
	if cfg.Redis.Enabled {
		client, err := connectToRedis(ctx, cfg)
		if err != nil {
			deps.close()
			return nil, err
		}
		prefix := cfg.Redis.KeyPrefix
		if prefix == "" {
			prefix = "admin-auth:"
		}
		deps.Redis = client
		deps.OnceStore = services.NewRedisOnceStore(client, prefix)
		deps.CSRFStore = services.NewRedisCSRFStore(client, prefix+"csrf:", csrfTTL)
	} else {
		once := services.NewMemoryOnceStore(time.Now)
		once.Start(ctx, durationOr(cfg.OAuth.JanitorInterval, time.Minute))
		deps.OnceStore = once
		deps.CSRFStore = services.NewMemoryCSRFStore(cfg.CSRF.MaxEntries)
	}

	if cfg.OAuthEnabled() {
		deps.Provider = services.NewGoogleProvider(services.ProviderConfig{
			ClientID:     cfg.OAuth.Provider.ClientID,
			ClientSecret: cfg.OAuth.Provider.ClientSecret,
			RedirectURL:  cfg.OAuth.Provider.RedirectURL,
			AuthURL:      cfg.OAuth.Provider.AuthURL,
			TokenURL:     cfg.OAuth.Provider.TokenURL,
			UserInfoURL:  cfg.OAuth.Provider.UserInfoURL,
			Scopes:       cfg.OAuth.Scopes,
			Timeout:      durationOr(cfg.OAuth.Provider.ExchangeTimeout, 10*time.Second),
		})
	}

	return deps, nil
}

func (d *Dependencies) close() {
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close redis client")
		}
	}
	if d.DB != nil {
		if sqlDB, err := d.DB.DB(); err == nil {
			sqlDB.Close()
		}
	}
}

func connectToRedis(ctx context.Context, cfg *Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:       cfg.GetRedisAddress(),
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.Database,
		MaxRetries: cfg.Redis.MaxRetries,
		PoolSize:   cfg.Redis.PoolSize,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logrus.WithField("address", cfg.GetRedisAddress()).Info("Redis connection established")
	return client, nil
}

// NewRouter збирає gin роутер з усіма маршрутами
func NewRouter(cfg *Config, deps *Dependencies) *gin.Engine {
	r := gin.New()

	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(middleware.MetricsMiddleware())
	r.Use(corsMiddleware(cfg))

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	setupRoutes(r, cfg, deps)
	return r
}

// setupRoutes налаштовує маршрути
func setupRoutes(r *gin.Engine, cfg *Config, deps *Dependencies) {
	sameSite, _ := cfg.SameSite()

	tokens := services.NewTokenService(services.TokenConfig{
		Secret:     []byte(cfg.Tokens.SigningKey),
		Issuer:     cfg.Tokens.Issuer,
		Audience:   cfg.Tokens.Audience,
		AccessTTL:  cfg.AccessTokenTTL(),
		RefreshTTL: cfg.RefreshTokenTTL(),
	})
	csrfGuard := services.NewCSRFGuard(deps.CSRFStore, services.CSRFConfig{
		TTL:                  durationOr(cfg.CSRF.TTL, time.Hour),
		StrictAddressBinding: cfg.CSRF.StrictAddressBinding,
	})
	authService := services.NewAuthService(deps.Store, tokens, cfg.Security.DefaultRole)

	cookies := handlers.NewCookieWriter(handlers.CookieConfig{
		Secure:      cfg.Cookies.Secure,
		SameSite:    sameSite,
		Domain:      cfg.Cookies.Domain,
		RefreshPath: cfg.Cookies.RefreshPath,
	})

	var redisClient redis.Cmdable
	if deps.Redis != nil {
		redisClient = deps.Redis
	}
	healthHandler := handlers.NewHealthHandler(deps.DB, redisClient)
	authHandler := handlers.NewAuthHandler(authService, csrfGuard, cookies)

	r.GET("/health", healthHandler.Health)

	var limit gin.HandlerFunc = func(c *gin.Context) { c.Next() }
	if cfg.Security.RateLimit.Enabled {
		limit = middleware.NewRateLimiter(middleware.RateLimitConfig{
			RequestsPerMinute: cfg.Security.RateLimit.RequestsPerMinute,
			Burst:             cfg.Security.RateLimit.Burst,
		}).Middleware()
	}
	csrf := middleware.CSRFMiddleware(csrfGuard)
	authenticated := middleware.AuthMiddleware(tokens)

	auth := r.Group("/auth")
	{
		auth.GET("/csrf", authHandler.CSRF)
		auth.POST("/register", limit, csrf, authHandler.Register)
		auth.POST("/login", limit, csrf, authHandler.Login)
		auth.POST("/refresh", limit, csrf, authHandler.Refresh)
		auth.POST("/logout", csrf, authenticated, authHandler.Logout)
		auth.GET("/me", authenticated, authHandler.Me)
	}

	if deps.Provider == nil {
		logrus.Info("OAuth provider not configured, third-party sign-in routes disabled")
		return
	}

	coordinator := services.NewSignInCoordinator(
		deps.Provider,
		services.NewStateService(deps.OnceStore, durationOr(cfg.OAuth.StateTTL, 10*time.Minute)),
		services.NewHandoffService(deps.OnceStore, durationOr(cfg.OAuth.HandoffTTL, time.Minute)),
		deps.Store,
		tokens,
		services.SignInConfig{
			DefaultRole:     cfg.Security.DefaultRole,
			ExchangeTimeout: durationOr(cfg.OAuth.Provider.ExchangeTimeout, 15*time.Second),
		},
	)
	oauthHandler := handlers.NewOAuthHandler(coordinator, deps.Provider.Name(), cookies, handlers.OAuthConfig{
		Delivery:      cfg.OAuth.Delivery,
		ClientBaseURL: strings.TrimRight(cfg.Client.BaseURL, "/"),
		CallbackPath:  cfg.Client.CallbackPath,
		LoginPath:     cfg.Client.LoginPath,
		HandoffTTL:    durationOr(cfg.OAuth.HandoffTTL, time.Minute),
		StateTTL:      durationOr(cfg.OAuth.StateTTL, 10*time.Minute),
	})

	auth.GET("/google", limit, oauthHandler.Begin)
	auth.GET("/google/callback", oauthHandler.Callback)
	auth.POST("/oauth/verify", csrf, oauthHandler.Verify)
}

// setupLogging налаштовує логування
func setupLogging(cfg *Config) {
	level, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logrus.Warnf("Invalid log level '%s', using info", cfg.Server.LogLevel)
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if cfg.Server.LogFormat == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}
}

// corsMiddleware налаштовує CORS middleware
func corsMiddleware(cfg *Config) gin.HandlerFunc {
	cors := cfg.Security.CORS
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if isAllowedOrigin(origin, cors.AllowedOrigins) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		}

		c.Header("Access-Control-Allow-Methods", strings.Join(cors.AllowedMethods, ", "))
		c.Header("Access-Control-Allow-Headers", strings.Join(cors.AllowedHeaders, ", "))
		if len(cors.ExposedHeaders) > 0 {
			c.Header("Access-Control-Expose-Headers", strings.Join(cors.ExposedHeaders, ", "))
		}

		if cors.AllowCredentials {
			c.Header("Access-Control-Allow-Credentials", "true")
		}
		if cors.MaxAge > 0 {
			c.Header("Access-Control-Max-Age", fmt.Sprintf("%d", cors.MaxAge))
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// isAllowedOrigin перевіряє origin запиту; у відповідь завжди повертається конкретний origin
func isAllowedOrigin(origin string, allowedOrigins []string) bool {
	if origin == "" {
		return false
	}
	for _, allowed := range allowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}
