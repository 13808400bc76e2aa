package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cda/internal/common"
	"cda/pkg/errors"
	"cda/pkg/models"
	"gopkg.in/yaml.v3"
)

// EnvConfigFile overrides the config file location
const EnvConfigFile = "CDA_CONFIG"

func GetConfigPath() string {
	if configFile := os.Getenv(EnvConfigFile); configFile != "" {
		return filepath.Dir(configFile)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".cda")
}

func GetConfigFile() string {
	if configFile := os.Getenv(EnvConfigFile); configFile != "" {
		cleaned, err := common.CleanPath(configFile)
		if err != nil {
			return filepath.Join(GetConfigPath(), "config.yaml")
		}
		return cleaned
	}
	return filepath.Join(GetConfigPath(), "config.yaml")
}

// Load reads the config file on top of the defaults. A missing file yields the defaults.
func Load() (*models.Config, error) {
	return LoadFile(GetConfigFile())
}

// LoadFile reads a specific config file on top of the defaults
func LoadFile(path string) (*models.Config, error) {
	cfg := models.DefaultConfig()

	cleanedPath, err := common.CleanPath(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "Invalid config file path")
	}

	if _, err := os.Stat(cleanedPath); os.IsNotExist(err) {
		return &cfg, nil
	}

	data, err := os.ReadFile(cleanedPath) // #nosec G304 - path is validated
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeFilePermission, "Failed to read config file").
			WithContext("path", cleanedPath)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "Failed to parse config file").
			WithContext("path", cleanedPath)
	}
	return &cfg, nil
}

// Save writes cfg to the default config file
func Save(cfg *models.Config) error {
	return SaveFile(cfg, GetConfigFile())
}

// SaveFile writes cfg with owner-only permissions
func SaveFile(cfg *models.Config, path string) error {
	cleaned, err := common.CleanPath(path)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigInvalid, "Invalid config file path")
	}
	if err := os.MkdirAll(filepath.Dir(cleaned), common.DirPermissionSecure); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(cleaned, data, common.FilePermissionSecure); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func Exists() bool {
	_, err := os.Stat(GetConfigFile())
	return err == nil
}

// Validate checks the settings a run depends on
func Validate(cfg *models.Config) error {
	if strings.TrimSpace(cfg.ClientName) == "" {
		return errors.ConfigError("client_name is required", "client_name")
	}

	switch cfg.Source.Type {
	case "local":
		if cfg.Source.Path == "" {
			return errors.ConfigError("source.path is required for a local source", "source.path")
		}
	case "s3":
		if cfg.Source.Bucket == "" {
			return errors.ConfigError("source.bucket is required for an s3 source", "source.bucket")
		}
	case "snowflake":
		if err := validateSnowflake(cfg.Snowflake); err != nil {
			return err
		}
	default:
		return errors.ConfigError(fmt.Sprintf("unknown source type %q", cfg.Source.Type), "source.type")
	}

	switch cfg.Output.Type {
	case "local":
		if cfg.Output.Path == "" {
			return errors.ConfigError("output.path is required for local output", "output.path")
		}
	case "snowflake":
		if err := validateSnowflake(cfg.Snowflake); err != nil {
			return err
		}
	default:
		return errors.ConfigError(fmt.Sprintf("unknown output type %q", cfg.Output.Type), "output.type")
	}

	if cfg.Seed.Path == "" && cfg.Source.Type != "snowflake" {
		return errors.ConfigError("seed.path is required unless the seed is read from Snowflake", "seed.path")
	}

	if _, _, err := cfg.Parameters.AsOf(); err != nil {
		return errors.ConfigError(err.Error(), "parameters.as_of_date")
	}

	p := cfg.Parameters
	for field, v := range map[string]float64{
		"parameters.support_cost_rate_tier_1_gbp_per_hour":  p.SupportRateTier1,
		"parameters.support_cost_rate_tier_2_gbp_per_hour":  p.SupportRateTier2,
		"parameters.support_cost_rate_tier_3_gbp_per_hour":  p.SupportRateTier3,
		"parameters.support_cost_rate_default_gbp_per_hour": p.SupportRateDefault,
		"parameters.engineering_cost_rate_gbp_per_hour":     p.EngineeringRate,
	} {
		if v < 0 {
			return errors.ConfigError(fmt.Sprintf("%s must not be negative", field), field)
		}
	}

	return nil
}

func validateSnowflake(sf models.Snowflake) error {
	required := []struct {
		field string
		value string
	}{
		{"snowflake.account", sf.Account},
		{"snowflake.username", sf.Username},
		{"snowflake.password", sf.Password},
		{"snowflake.warehouse", sf.Warehouse},
		{"snowflake.database", sf.Database},
	}
	for _, r := range required {
		if r.value == "" {
			return errors.ConfigError(fmt.Sprintf("%s is required", r.field), r.field)
		}
	}
	return nil
}

// Timeout parses snowflake.timeout, falling back to five minutes
func Timeout(sf models.Snowflake) time.Duration {
	if d, err := time.ParseDuration(sf.Timeout); err == nil && d > 0 {
		return d
	}
	return 5 * time.Minute
}
