package config

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"admin-auth/internal/handlers"

	"github.com/hashicorp/hcl/v2/hclsimple"
)

const minSigningKeyLength = 32

// Config представляє повну конфігурацію додатку
type Config struct {
	Server   ServerConfig   `hcl:"server,block"`
	Database DatabaseConfig `hcl:"database,block"`
	Tokens   TokensConfig   `hcl:"tokens,block"`
	Cookies  CookiesConfig  `hcl:"cookies,block"`
	CSRF     CSRFConfig     `hcl:"csrf,block"`
	OAuth    OAuthConfig    `hcl:"oauth,block"`
	Client   ClientConfig   `hcl:"client,block"`
	Security SecurityConfig `hcl:"security,block"`
	Redis    RedisConfig    `hcl:"redis,block"`
}

// ServerConfig містить налаштування HTTP сервера
type ServerConfig struct {
	Host         string `hcl:"host"`
	Port         int    `hcl:"port"`
	Environment  string `hcl:"environment"`
	LogLevel     string `hcl:"log_level,optional"`
	LogFormat    string `hcl:"log_format,optional"`
	ReadTimeout  string `hcl:"read_timeout,optional"`
	WriteTimeout string `hcl:"write_timeout,optional"`
	IdleTimeout  string `hcl:"idle_timeout,optional"`
}

// DatabaseConfig містить налаштування сховища облікових записів.
// Driver "memory" тримає облікові записи в пам'яті процесу.
type DatabaseConfig struct {
	Driver                string `hcl:"driver"`
	Host                  string `hcl:"host,optional"`
	Port                  int    `hcl:"port,optional"`
	Name                  string `hcl:"name,optional"`
	User                  string `hcl:"user,optional"`
	Password              string `hcl:"password,optional"`
	SSLMode               string `hcl:"ssl_mode,optional"`
	MaxOpenConnections    int    `hcl:"max_open_connections,optional"`
	MaxIdleConnections    int    `hcl:"max_idle_connections,optional"`
	ConnectionMaxLifetime string `hcl:"connection_max_lifetime,optional"`
	AutoMigrate           bool   `hcl:"auto_migrate,optional"`
}

// TokensConfig містить налаштування підпису токенів
type TokensConfig struct {
	SigningKey           string `hcl:"signing_key"`
	Issuer               string `hcl:"issuer,optional"`
	Audience             string `hcl:"audience,optional"`
	AccessTokenDuration  string `hcl:"access_token_duration,optional"`
	RefreshTokenDuration string `hcl:"refresh_token_duration,optional"`
}

// CookiesConfig містить атрибути cookies сесії
type CookiesConfig struct {
	Secure      bool   `hcl:"secure,optional"`
	SameSite    string `hcl:"same_site,optional"`
	Domain      string `hcl:"domain,optional"`
	RefreshPath string `hcl:"refresh_path,optional"`
}

// CSRFConfig містить налаштування CSRF захисту
type CSRFConfig struct {
	TTL                  string `hcl:"ttl,optional"`
	MaxEntries           int    `hcl:"max_entries,optional"`
	StrictAddressBinding bool   `hcl:"strict_address_binding,optional"`
}

// OAuthConfig містить налаштування входу через стороннього провайдера
type OAuthConfig struct {
	Provider        OAuthProviderConfig `hcl:"provider,block"`
	Scopes          []string            `hcl:"scopes,optional"`
	StateTTL        string              `hcl:"state_ttl,optional"`
	HandoffTTL      string              `hcl:"handoff_ttl,optional"`
	Delivery        string              `hcl:"delivery,optional"`
	JanitorInterval string              `hcl:"janitor_interval,optional"`
}

// OAuthProviderConfig містить налаштування провайдера
type OAuthProviderConfig struct {
	ClientID        string `hcl:"client_id,optional"`
	ClientSecret    string `hcl:"client_secret,optional"`
	RedirectURL     string `hcl:"redirect_url,optional"`
	AuthURL         string `hcl:"auth_url,optional"`
	TokenURL        string `hcl:"token_url,optional"`
	UserInfoURL     string `hcl:"userinfo_url,optional"`
	ExchangeTimeout string `hcl:"exchange_timeout,optional"`
}

// ClientConfig описує клієнтський додаток, куди повертається користувач
type ClientConfig struct {
	BaseURL      string `hcl:"base_url"`
	CallbackPath string `hcl:"callback_path,optional"`
	LoginPath    string `hcl:"login_path,optional"`
}

// SecurityConfig містить налаштування безпеки
type SecurityConfig struct {
	CORS        CORSConfig      `hcl:"cors,block"`
	RateLimit   RateLimitConfig `hcl:"rate_limit,block"`
	DefaultRole string          `hcl:"default_role,optional"`
}

// CORSConfig містить налаштування CORS
type CORSConfig struct {
	AllowedOrigins   []string `hcl:"allowed_origins"`
	AllowedMethods   []string `hcl:"allowed_methods"`
	AllowedHeaders   []string `hcl:"allowed_headers"`
	ExposedHeaders   []string `hcl:"exposed_headers,optional"`
	AllowCredentials bool     `hcl:"allow_credentials,optional"`
	MaxAge           int      `hcl:"max_age,optional"`
}

// RateLimitConfig містить налаштування rate limiting
type RateLimitConfig struct {
	Enabled           bool `hcl:"enabled"`
	RequestsPerMinute int  `hcl:"requests_per_minute,optional"`
	Burst             int  `hcl:"burst,optional"`
}

// RedisConfig містить налаштування Redis
type RedisConfig struct {
	Enabled    bool   `hcl:"enabled"`
	Host       string `hcl:"host,optional"`
	Port       int    `hcl:"port,optional"`
	Password   string `hcl:"password,optional"`
	Database   int    `hcl:"database,optional"`
	MaxRetries int    `hcl:"max_retries,optional"`
	PoolSize   int    `hcl:"pool_size,optional"`
	KeyPrefix  string `hcl:"key_prefix,optional"`
}

// LoadConfig завантажує конфігурацію з HCL файлу
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}

	var config Config
	if err := hclsimple.DecodeFile(configPath, evalContext(), &config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Validate перевіряє валідність конфігурації
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	switch c.Database.Driver {
	case "memory":
	case "postgres":
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Database.Name == "" {
			return fmt.Errorf("database name is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
	default:
		return fmt.Errorf("unknown database driver: %q", c.Database.Driver)
	}

	if c.Tokens.SigningKey == "" {
		return fmt.Errorf("token signing key is required")
	}
	if len(c.Tokens.SigningKey) < minSigningKeyLength {
		return fmt.Errorf("token signing key must be at least %d bytes", minSigningKeyLength)
	}

	durations := map[string]string{
		"tokens.access_token_duration":    c.Tokens.AccessTokenDuration,
		"tokens.refresh_token_duration":   c.Tokens.RefreshTokenDuration,
		"csrf.ttl":                        c.CSRF.TTL,
		"oauth.state_ttl":                 c.OAuth.StateTTL,
		"oauth.handoff_ttl":               c.OAuth.HandoffTTL,
		"oauth.janitor_interval":          c.OAuth.JanitorInterval,
		"oauth.provider.exchange_timeout": c.OAuth.Provider.ExchangeTimeout,
	}
	for field, value := range durations {
		if err := checkDuration(field, value); err != nil {
			return err
		}
	}

	if _, err := c.SameSite(); err != nil {
		return err
	}

	if c.OAuth.Provider.ClientID != "" && c.OAuth.Provider.ClientSecret == "" {
		return fmt.Errorf("oauth client secret is required when client id is set")
	}
	switch c.OAuth.Delivery {
	case "", handlers.DeliveryFormPost, handlers.DeliverySessionSlot:
	default:
		return fmt.Errorf("unknown oauth delivery mode: %q", c.OAuth.Delivery)
	}

	if c.Client.BaseURL == "" {
		return fmt.Errorf("client base url is required")
	}

	if c.Redis.Enabled && c.Redis.Host == "" {
		return fmt.Errorf("redis host is required when redis is enabled")
	}

	return nil
}

// GetAddress повертає адресу для прослуховування сервера
func (c *Config) GetAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// GetDatabaseDSN повертає DSN для підключення до бази даних
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// GetRedisAddress повертає адресу Redis
func (c *Config) GetRedisAddress() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// IsDevelopment перевіряє чи додаток працює в режимі розробки
func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == "development"
}

// IsProduction перевіряє чи додаток працює в продакшн режимі
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// OAuthEnabled повідомляє, чи налаштований сторонній провайдер
func (c *Config) OAuthEnabled() bool {
	return c.OAuth.Provider.ClientID != ""
}

// SameSite повертає значення атрибута SameSite для cookies
func (c *Config) SameSite() (http.SameSite, error) {
	switch strings.ToLower(c.Cookies.SameSite) {
	case "", "strict":
		return http.SameSiteStrictMode, nil
	case "lax":
		return http.SameSiteLaxMode, nil
	case "none":
		return http.SameSiteNoneMode, nil
	default:
		return 0, fmt.Errorf("unknown cookies.same_site value: %q", c.Cookies.SameSite)
	}
}

// AccessTokenTTL повертає час життя access token
func (c *Config) AccessTokenTTL() time.Duration {
	return durationOr(c.Tokens.AccessTokenDuration, 15*time.Minute)
}

// RefreshTokenTTL повертає час життя refresh token
func (c *Config) RefreshTokenTTL() time.Duration {
	return durationOr(c.Tokens.RefreshTokenDuration, 14*24*time.Hour)
}
