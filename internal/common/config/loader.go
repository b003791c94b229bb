// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	loadEnvFile()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../../configs")
	viper.AddConfigPath(".")

	// Enable ENV override like DISPATCH_RATE_LIMIT_CEILING
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	// Booleans that default to on; zero values are indistinguishable from
	// "unset" after unmarshal, so they are defaulted here.
	viper.SetDefault("dispatch.suppression_enabled", true)

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	// Environment-specific overlay, ignored if absent
	envConfigFile := fmt.Sprintf("config.%s", env)
	viper.SetConfigName(envConfigFile)
	_ = viper.MergeInConfig()

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// expandEnvVars resolves ${VAR} placeholders in string config values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		val := v.Get(key)

		if strVal, ok := val.(string); ok {
			if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
				expanded := os.ExpandEnv(strVal)
				if expanded != strVal && expanded != "" {
					v.Set(key, expanded)
				}
			}
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "notify-dispatch"
	}
	if cfg.App.Environment == "" {
		cfg.App.Environment = "development"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 10000
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10000
	}
	if cfg.Dispatch.RateLimit.Ceiling == 0 {
		cfg.Dispatch.RateLimit.Ceiling = 20
	}
	if cfg.Dispatch.RateLimit.Window == 0 {
		cfg.Dispatch.RateLimit.Window = 60 * time.Second
	}
	if cfg.Dispatch.RateLimit.Backend == "" {
		cfg.Dispatch.RateLimit.Backend = "memory"
	}
	if cfg.Dispatch.DefaultFrom == "" {
		cfg.Dispatch.DefaultFrom = "notifications@example.com"
	}
	if cfg.Delivery.Provider == "" {
		cfg.Delivery.Provider = "smtp"
	}
	if cfg.Delivery.SMTP.Port == 0 {
		cfg.Delivery.SMTP.Port = 587
	}
	if cfg.Delivery.AWS.Region == "" {
		cfg.Delivery.AWS.Region = "us-east-1"
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 10
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Elasticsearch.AuditIndex == "" {
		cfg.Database.Elasticsearch.AuditIndex = "dispatch-audit"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if cfg.Dispatch.RateLimit.Ceiling <= 0 {
		return fmt.Errorf("dispatch.rate_limit.ceiling must be positive")
	}
	if cfg.Dispatch.RateLimit.Window <= 0 {
		return fmt.Errorf("dispatch.rate_limit.window must be positive")
	}
	switch cfg.Dispatch.RateLimit.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("dispatch.rate_limit.backend must be memory or redis")
	}
	switch cfg.Delivery.Provider {
	case "smtp", "ses", "sns":
	default:
		return fmt.Errorf("delivery.provider must be smtp, ses or sns")
	}
	if cfg.Delivery.Provider == "smtp" && cfg.Delivery.SMTP.Host == "" {
		return fmt.Errorf("delivery.smtp.host is required for the smtp provider")
	}
	if cfg.Delivery.Provider == "sns" && cfg.Delivery.AWS.TopicARN == "" {
		return fmt.Errorf("delivery.aws.topic_arn is required for the sns provider")
	}
	if cfg.Dispatch.RateLimit.Backend == "redis" && cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required for the redis rate limiter")
	}
	return nil
}
