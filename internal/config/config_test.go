package config

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSigningKey = "config-test-signing-key-0123456789abcdef"

func validConfig() *Config {
	return &Config{
		Server:   ServerConfig{Host: "localhost", Port: 8080, Environment: "test"},
		Database: DatabaseConfig{Driver: "memory"},
		Tokens:   TokensConfig{SigningKey: testSigningKey},
		Client:   ClientConfig{BaseURL: "http://localhost:3000"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }, "invalid server port"},
		{"unknown driver", func(c *Config) { c.Database.Driver = "sqlite" }, "unknown database driver"},
		{"postgres without host", func(c *Config) { c.Database.Driver = "postgres" }, "database host is required"},
		{
			"postgres complete",
			func(c *Config) {
				c.Database = DatabaseConfig{Driver: "postgres", Host: "db", Name: "auth", User: "auth"}
			},
			"",
		},
		{"missing signing key", func(c *Config) { c.Tokens.SigningKey = "" }, "signing key is required"},
		{"short signing key", func(c *Config) { c.Tokens.SigningKey = "short" }, "at least 32 bytes"},
		{"bad duration", func(c *Config) { c.Tokens.AccessTokenDuration = "soon" }, "tokens.access_token_duration"},
		{"negative duration", func(c *Config) { c.CSRF.TTL = "-1m" }, "must be positive"},
		{"bad same_site", func(c *Config) { c.Cookies.SameSite = "sometimes" }, "same_site"},
		{"client id without secret", func(c *Config) { c.OAuth.Provider.ClientID = "id" }, "client secret is required"},
		{"unknown delivery", func(c *Config) { c.OAuth.Delivery = "query" }, "unknown oauth delivery mode"},
		{"session slot delivery", func(c *Config) { c.OAuth.Delivery = "session_slot" }, ""},
		{"missing client base url", func(c *Config) { c.Client.BaseURL = "" }, "client base url is required"},
		{"redis without host", func(c *Config) { c.Redis.Enabled = true }, "redis host is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSameSite(t *testing.T) {
	tests := map[string]http.SameSite{
		"":       http.SameSiteStrictMode,
		"Strict": http.SameSiteStrictMode,
		"lax":    http.SameSiteLaxMode,
		"none":   http.SameSiteNoneMode,
	}
	for value, want := range tests {
		cfg := validConfig()
		cfg.Cookies.SameSite = value
		got, err := cfg.SameSite()
		require.NoError(t, err, value)
		assert.Equal(t, want, got, value)
	}
}

func TestTokenTTLDefaults(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, 15*time.Minute, cfg.AccessTokenTTL())
	assert.Equal(t, 14*24*time.Hour, cfg.RefreshTokenTTL())

	cfg.Tokens.AccessTokenDuration = "5m"
	cfg.Tokens.RefreshTokenDuration = "garbage"
	assert.Equal(t, 5*time.Minute, cfg.AccessTokenTTL())
	assert.Equal(t, 14*24*time.Hour, cfg.RefreshTokenTTL())
}

func TestRenderTemplate(t *testing.T) {
	content := `host = {{var "host" "localhost" true}}
port = {{var "port" 8080 true}}
secure = {{var "secure" false false}}
origins = {{var "origins" "" false}}
key = {{var "key" "" true}}
`

	_, err := RenderTemplate(content, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "key")

	rendered, err := RenderTemplate(content, map[string]interface{}{
		"key":     "value",
		"port":    9090,
		"origins": []string{"http://a", "http://b"},
	})
	require.NoError(t, err)
	assert.Contains(t, rendered, `host = "localhost"`)
	assert.Contains(t, rendered, `port = 9090`)
	assert.Contains(t, rendered, `secure = false`)
	assert.Contains(t, rendered, `origins = ["http://a", "http://b"]`)
	assert.Contains(t, rendered, `key = "value"`)
}

func TestGeneratedConfigLoads(t *testing.T) {
	t.Setenv("JWT_SIGNING_KEY", "")
	t.Setenv("GOOGLE_CLIENT_SECRET", "")

	output := filepath.Join(t.TempDir(), "nested", "admin-auth.hcl")
	err := GenerateConfigFromTemplate(filepath.Join("..", "..", "configs", "admin-auth.hcl.tmpl"), output, map[string]interface{}{
		"db_driver":      "memory",
		"oauth_delivery": "session_slot",
	})
	require.NoError(t, err)

	info, err := os.Stat(output)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	cfg, err := LoadConfig(output)
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "session_slot", cfg.OAuth.Delivery)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Security.CORS.AllowedOrigins)
	assert.False(t, cfg.OAuthEnabled())
	assert.Equal(t, 14*24*time.Hour, cfg.RefreshTokenTTL())
}

func TestLoadConfig_EnvAndDurationFunctions(t *testing.T) {
	t.Setenv("ADMIN_AUTH_TEST_KEY", testSigningKey)

	path := filepath.Join(t.TempDir(), "config.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`
server {
  host        = "0.0.0.0"
  port        = 9000
  environment = "test"
}
database {
  driver = "memory"
}
tokens {
  signing_key           = env("ADMIN_AUTH_TEST_KEY", "")
  access_token_duration = duration("90s")
}
cookies {}
csrf {}
oauth {
  provider {}
}
client {
  base_url = "https://admin.example.com"
}
security {
  cors {
    allowed_origins = ["https://admin.example.com"]
    allowed_methods = ["GET", "POST"]
    allowed_headers = ["Content-Type"]
  }
  rate_limit {
    enabled = false
  }
}
redis {
  enabled = false
}
`), 0600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, testSigningKey, cfg.Tokens.SigningKey)
	assert.Equal(t, "1m30s", cfg.Tokens.AccessTokenDuration)
	assert.Equal(t, 90*time.Second, cfg.AccessTokenTTL())
	assert.Equal(t, "0.0.0.0:9000", cfg.GetAddress())
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.hcl"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")

	path := filepath.Join(t.TempDir(), "bad.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`tokens { access_token_duration = duration("forever") }`), 0600))
	_, err = LoadConfig(path)
	assert.Error(t, err)
}
