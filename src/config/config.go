package config

import (
	"fmt"
	"os"

	"level-observer/src/models"
	"level-observer/src/utils"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// Supported source types.
const (
	SourceYahoo   = "yahoo"
	SourceBinance = "binance"
	SourcePolygon = "polygon"
)

// -----------------------------------------------------------------------------

// NewConfig creates a new Config from a YAML file, overlays secrets from the
// environment (and envFile when it exists) and validates the result.
func NewConfig(configPath string, envFile string) (*Config, error) {
	// 1. Read the YAML file content
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", configPath, err)
	}

	// 2. Unmarshal data into the models struct
	var modelConfig models.MConfig
	if err := yaml.Unmarshal(data, &modelConfig); err != nil {
		return nil, fmt.Errorf("failed to parse config from YAML: %w", err)
	}

	config := &Config{MConfig: &modelConfig}

	// 3. Secrets come from the environment, never from the YAML in production
	if err := LoadEnv(envFile); err != nil {
		return nil, err
	}
	config.ApplyEnv()

	// 4. Validate the loaded configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

// LoadEnv loads envFile into the process environment. A missing file is not
// an error; variables already set win over the file.
func LoadEnv(envFile string) error {
	if envFile == "" {
		return nil
	}
	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(envFile); err != nil {
		return fmt.Errorf("failed to load %s: %w", envFile, err)
	}
	return nil
}

// -----------------------------------------------------------------------------

// ApplyEnv overlays credentials and overrides from environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("DB_CONNECTION_STRING"); v != "" {
		c.Storage.DBConnectionString = v
	}

	for i := range c.DataSource.Sources {
		src := &c.DataSource.Sources[i]
		switch src.Type {
		case SourceBinance:
			if src.APIKey == "" {
				src.APIKey = os.Getenv("BINANCE_API_KEY")
			}
			if src.SecretKey == "" {
				src.SecretKey = os.Getenv("BINANCE_SECRET_KEY")
			}
		case SourcePolygon:
			if src.APIKey == "" {
				src.APIKey = os.Getenv("POLYGON_API_KEY")
			}
		}
	}
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("application name cannot be empty")
	}

	if c.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Port <= 1024 || c.Port > 65535 {
		return fmt.Errorf("invalid server port number: %d (must be between 1025 and 65535)", c.Port)
	}
	if c.GrpcPort != 0 && (c.GrpcPort <= 1024 || c.GrpcPort > 65535) {
		return fmt.Errorf("invalid grpc port number: %d (must be between 1025 and 65535)", c.GrpcPort)
	}

	// Validate Storage configuration
	switch c.Storage.DBType {
	case "":
		return fmt.Errorf("database type cannot be empty")
	case "sqlite":
		if c.Storage.DBPath == "" {
			return fmt.Errorf("database path cannot be empty for sqlite")
		}
	case "postgres":
		if c.Storage.DBConnectionString == "" {
			return fmt.Errorf("database connection string cannot be empty for postgres")
		}
	default:
		return fmt.Errorf("unsupported database type: %s", c.Storage.DBType)
	}

	// Validate Network configuration
	if c.Network.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be greater than 0")
	}
	if c.Network.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.Network.ConcurrentRequests <= 0 {
		return fmt.Errorf("concurrent requests must be greater than 0")
	}

	// Validate DataSource configuration
	if c.DataSource.UpdateIntervalSeconds <= 0 {
		return fmt.Errorf("update interval must be greater than 0")
	}
	if c.DataSource.DataRetentionDays <= 0 {
		return fmt.Errorf("data retention days must be greater than 0")
	}
	if len(c.DataSource.Sources) == 0 {
		return fmt.Errorf("at least one data source must be configured")
	}
	seen := make(map[string]bool)
	for i, src := range c.DataSource.Sources {
		if src.Name == "" {
			return fmt.Errorf("source %d must have a name", i)
		}
		if seen[src.Name] {
			return fmt.Errorf("duplicate source name '%s'", src.Name)
		}
		seen[src.Name] = true
		switch src.Type {
		case SourceYahoo, SourceBinance, SourcePolygon:
		default:
			return fmt.Errorf("source '%s' has unsupported type '%s'", src.Name, src.Type)
		}
		if src.Quote == "" {
			return fmt.Errorf("source '%s' must have a quote currency", src.Name)
		}
		if len(src.Symbols) == 0 {
			return fmt.Errorf("source '%s' must have at least one symbol", src.Name)
		}
		if src.Type == SourcePolygon && src.APIKey == "" {
			return fmt.Errorf("source '%s' requires an api key (POLYGON_API_KEY)", src.Name)
		}
	}

	// Validate resolutions
	if len(c.Resolutions) == 0 {
		return fmt.Errorf("at least one resolution must be configured")
	}
	for _, r := range c.Resolutions {
		if _, err := utils.LookupResolution(r); err != nil {
			return err
		}
	}

	return nil
}

// -----------------------------------------------------------------------------

// SourceConfig returns the configuration of the named source.
func (c *Config) SourceConfig(name string) (*models.MSourceConfig, error) {
	for i := range c.DataSource.Sources {
		if c.DataSource.Sources[i].Name == name {
			return &c.DataSource.Sources[i], nil
		}
	}
	return nil, fmt.Errorf("source '%s' not configured", name)
}

// -----------------------------------------------------------------------------

// Save persists the current configuration to the specified YAML file path.
// Credentials are stripped so secrets loaded from the environment never land
// on disk.
func (c *Config) Save(configPath string) error {
	clean := *c.MConfig
	clean.DataSource.Sources = make([]models.MSourceConfig, len(c.DataSource.Sources))
	for i, src := range c.DataSource.Sources {
		src.APIKey = ""
		src.SecretKey = ""
		clean.DataSource.Sources[i] = src
	}

	// 1. Marshal the struct to YAML
	data, err := yaml.Marshal(&clean)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	// 2. Write to file (0644 permissions)
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config to file '%s': %w", configPath, err)
	}

	return nil
}
