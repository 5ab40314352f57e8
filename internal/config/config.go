// Package config loads and validates the application configuration from
// environment variables with an optional YAML file overlay.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"ledgerage/pkg/contracts/domain"
)

// envPrefix namespaces every environment variable, e.g. LEDGERAGE_SERVER_PORT.
const envPrefix = "LEDGERAGE"

// Config is the complete application configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server" envconfig:"SERVER"`
	Logging LoggingConfig `yaml:"logging" envconfig:"LOGGING"`
	Paths   PathsConfig   `yaml:"paths" envconfig:"PATHS"`
	Upload  UploadConfig  `yaml:"upload" envconfig:"UPLOAD"`

	// RequiredColumns is the ordered column set an export must carry.
	// Defaults to the standard ledger export headers.
	RequiredColumns []string `yaml:"required_columns" envconfig:"REQUIRED_COLUMNS"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"8080" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"30s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"60s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
}

// LoggingConfig contains structured logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" envconfig:"LEVEL" default:"info" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" envconfig:"FORMAT" default:"json" validate:"oneof=json text"`
	Output string `yaml:"output" envconfig:"OUTPUT" default:"stdout" validate:"oneof=stdout stderr"`
}

// PathsConfig contains file system locations. All directories are created on
// startup if absent.
type PathsConfig struct {
	UploadsDir   string `yaml:"uploads_dir" envconfig:"UPLOADS_DIR" default:"uploads" validate:"required"`
	OutputsDir   string `yaml:"outputs_dir" envconfig:"OUTPUTS_DIR" default:"outputs" validate:"required"`
	DatabasePath string `yaml:"database_path" envconfig:"DATABASE_PATH" default:"data/ledgerage.db" validate:"required"`
}

// UploadConfig bounds what the upload endpoint accepts.
type UploadConfig struct {
	MaxBytes int64 `yaml:"max_bytes" envconfig:"MAX_BYTES" default:"16777216" validate:"min=1"`
}

// Load builds the configuration from the environment, overlaying values from
// the YAML file at LEDGERAGE_CONFIG_FILE (or ./config.yaml when present),
// then validates the result.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("load config from env: %w", err)
	}

	if path := configFilePath(); path != "" {
		if err := overlayFile(&cfg, path); err != nil {
			return nil, err
		}
	}

	if len(cfg.RequiredColumns) == 0 {
		cfg.RequiredColumns = domain.RequiredColumns()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration against its struct tags.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// OutputPath returns the workbook destination for one job. Deriving the path
// from the job id keeps concurrent invocations from colliding.
func (c *Config) OutputPath(jobID string) string {
	return filepath.Join(c.Paths.OutputsDir, fmt.Sprintf("%s_Final_Report.xlsx", jobID))
}

// UploadPath returns where an uploaded source file is stored for one job.
func (c *Config) UploadPath(jobID, filename string) string {
	return filepath.Join(c.Paths.UploadsDir, fmt.Sprintf("%s_%s", jobID, filename))
}

// EnsureDirectories creates the configured directories if missing.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Paths.UploadsDir,
		c.Paths.OutputsDir,
		filepath.Dir(c.Paths.DatabasePath),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

func configFilePath() string {
	if path := os.Getenv(envPrefix + "_CONFIG_FILE"); path != "" {
		return path
	}
	if _, err := os.Stat("config.yaml"); err == nil {
		return "config.yaml"
	}
	return ""
}

func overlayFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}
