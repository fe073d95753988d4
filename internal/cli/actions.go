package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"admin-auth/internal/build"
	"admin-auth/internal/config"
)

// configureAction генерує конфігурацію з шаблону
func configureAction(c *cli.Context) error {
	mode := c.String("mode")

	templatePath, err := absPath(c.String("template"))
	if err != nil {
		return err
	}
	outputPath, err := absPath(c.String("output"))
	if err != nil {
		return err
	}

	fmt.Printf("Configuring admin auth server\n")
	fmt.Printf("Template: %s\n", templatePath)
	fmt.Printf("Output: %s\n", outputPath)
	fmt.Printf("Mode: %s\n", mode)

	if _, err := os.Stat(templatePath); os.IsNotExist(err) {
		return fmt.Errorf("template file does not exist: %s", templatePath)
	}

	if err := config.GenerateConfigFromTemplate(templatePath, outputPath, getConfigVars(mode)); err != nil {
		return fmt.Errorf("failed to generate config: %w", err)
	}

	fmt.Printf("Configuration generated successfully: %s\n", outputPath)
	return nil
}

// serverAction запускає сервер
func serverAction(c *cli.Context) error {
	cfg, err := loadConfig(c.String("config"))
	if err != nil {
		return err
	}

	fmt.Printf("Starting admin auth server, version %s\n", build.Version)
	return config.StartServer(cfg)
}

// migrateAction застосовує міграції бази даних
func migrateAction(c *cli.Context) error {
	cfg, err := loadConfig(c.String("config"))
	if err != nil {
		return err
	}
	return config.RunMigrations(cfg)
}

// versionAction показує інформацію про версію
func versionAction(c *cli.Context) error {
	info := build.Info()

	fmt.Printf("Admin Auth Server\n")
	fmt.Printf("Version: %s\n", info["version"])
	fmt.Printf("Build Number: %s\n", info["number"])
	fmt.Printf("Git Commit: %s\n", info["git_commit"])
	fmt.Printf("Build Time: %s\n", info["build_time"])

	return nil
}

func loadConfig(configPath string) (*config.Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s. Run 'configure' command first", configPath)
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func absPath(path string) (string, error) {
	if filepath.IsAbs(path) {
		return path, nil
	}
	workDir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}
	return filepath.Join(workDir, path), nil
}

// getConfigVars повертає мапу змінних для шаблону конфігурації
func getConfigVars(mode string) map[string]interface{} {
	vars := map[string]interface{}{
		"build_version":  build.Version,
		"environment":    mode,
		"cookies_secure": mode == "production",
	}

	setVarFromEnv(vars, "api_server_host", "API_SERVER_HOST", "localhost")
	setVarFromEnv(vars, "api_server_port", "API_SERVER_PORT", 8080)
	setVarFromEnv(vars, "log_level", "LOG_LEVEL", getLogLevelForMode(mode))

	setVarFromEnv(vars, "db_driver", "DB_DRIVER", "postgres")
	setVarFromEnv(vars, "db_host", "DB_HOST", "localhost")
	setVarFromEnv(vars, "db_port", "DB_PORT", 5432)
	setVarFromEnv(vars, "db_name", "DB_NAME", "admin_auth")
	setVarFromEnv(vars, "db_user", "DB_USER", "admin_auth")

	setVarFromEnv(vars, "client_base_url", "CLIENT_BASE_URL", "http://localhost:3000")
	setVarFromEnv(vars, "oauth_client_id", "GOOGLE_CLIENT_ID", "")
	setVarFromEnv(vars, "oauth_redirect_url", "GOOGLE_REDIRECT_URL", "http://localhost:8080/auth/google/callback")
	setVarFromEnv(vars, "oauth_delivery", "OAUTH_DELIVERY", "form_post")

	// секрети не потрапляють у файл: шаблон читає їх через env() під час запуску
	return vars
}

// setVarFromEnv встановлює змінну з оточення або дефолтне значення
func setVarFromEnv(vars map[string]interface{}, key, envKey string, defaultValue interface{}) {
	if envValue := os.Getenv(envKey); envValue != "" {
		vars[key] = envValue
	} else {
		vars[key] = defaultValue
	}
}

// getLogLevelForMode повертає рівень логування для режиму
func getLogLevelForMode(mode string) string {
	switch mode {
	case "production":
		return "warn"
	case "staging":
		return "info"
	default:
		return "debug"
	}
}
