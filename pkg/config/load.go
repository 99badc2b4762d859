package config

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var (
	ErrInvalidBatchSize = errors.New("batch size must be positive")
	ErrMissingRole      = errors.New("role identity must not be empty")
	ErrUnknownBusDriver = errors.New("unknown event bus driver")
)

// Load reads the optional env files and then the process environment.
func Load(envFilePath ...string) (*App, error) {
	logger := slog.Default()

	if len(envFilePath) == 0 {
		if err := godotenv.Load(); err != nil {
			logger.Debug("No .env file found in current directory")
		}
		return loadFromEnv()
	}

	for _, path := range envFilePath {
		foundPath, err := FindEnvFile(path)
		if err != nil {
			logger.Debug("Environment file not found", "path", path, "error", err)
			continue
		}
		logger.Info("Loading environment from file", "path", foundPath)
		if err := godotenv.Load(foundPath); err != nil {
			logger.Error("Failed to load environment file", "path", foundPath, "error", err)
			continue
		}
		return loadFromEnv()
	}

	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file found in current directory")
	}
	return loadFromEnv()
}

func loadFromEnv() (*App, error) {
	var cfg App
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	slog.Default().Info("App config loaded",
		"env", cfg.Env,
		"db_driver", cfg.DB.Driver,
		"db", maskValue(cfg.DB.Url),
		"event_bus", cfg.EventBus.Driver,
		"oracle_url", cfg.Oracle.URL,
		"oracle_api_key", maskValue(cfg.Oracle.ApiKey),
		"batch_namespace", cfg.Batch.Namespace,
		"batch_size", cfg.Batch.Size,
		"keeper_enabled", cfg.Keeper.Enabled,
		"keeper_schedule", cfg.Keeper.Schedule,
	)
	return &cfg, nil
}

// Validate checks values envconfig cannot express as tags.
func (a *App) Validate() error {
	if a.Batch == nil || a.Batch.Size == 0 {
		return ErrInvalidBatchSize
	}
	if a.Roles != nil {
		for name, v := range map[string]string{
			"administrator":       a.Roles.Administrator,
			"automation agent":    a.Roles.AutomationAgent,
			"funding relay":       a.Roles.FundingRelay,
			"external authorizer": a.Roles.ExternalAuthorizer,
		} {
			if v == "" {
				return fmt.Errorf("%w: %s", ErrMissingRole, name)
			}
		}
	}
	if a.EventBus != nil {
		switch a.EventBus.Driver {
		case "memory", "redis", "kafka":
		default:
			return fmt.Errorf("%w: %q", ErrUnknownBusDriver, a.EventBus.Driver)
		}
	}
	return nil
}

func maskValue(key string) string {
	if len(key) <= 6 {
		return "****"
	}
	return key[:2] + "****" + key[len(key)-4:]
}
