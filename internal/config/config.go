package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const configFileName = "node_starter.yml"

type MainConfig struct {
	Host           string        `yaml:"host" validate:"required,hostname|ip"`
	BasePort       int           `yaml:"base_port" validate:"min=1,max=65534"`
	StartPath      string        `yaml:"start_path" validate:"required,startswith=/"`
	StartDelay     time.Duration `yaml:"start_delay" validate:"min=0"`
	RequestTimeout time.Duration `yaml:"request_timeout" validate:"gt=0"`
	LogPath        string        `yaml:"log_path"`
	Debug          bool          `yaml:"debug"`
}

// fileConfig mirrors MainConfig with durations kept as strings ("5s", "10s").
type fileConfig struct {
	Host           *string `yaml:"host"`
	BasePort       *int    `yaml:"base_port"`
	StartPath      *string `yaml:"start_path"`
	StartDelay     *string `yaml:"start_delay"`
	RequestTimeout *string `yaml:"request_timeout"`
	LogPath        *string `yaml:"log_path"`
	Debug          *bool   `yaml:"debug"`
}

// DefaultConfig returns the fixed localhost scheme: node i listens on 8080+i+1.
func DefaultConfig() *MainConfig {
	return &MainConfig{
		Host:           "localhost",
		BasePort:       8080,
		StartPath:      "/start",
		StartDelay:     5 * time.Second,
		RequestTimeout: 10 * time.Second,
	}
}

// LoadMainConfig Read the configuration file under basePath/config and merge it over the defaults.
// A missing file is not an error.
func LoadMainConfig(basePath string) (*MainConfig, error) {
	if basePath == "" {
		exePath, err := os.Executable()
		if err != nil {
			return nil, err
		}
		basePath = filepath.Dir(exePath)
	}
	configPath := filepath.Join(basePath, "config", configFileName)

	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("[ERROR] failed to read config file %s: %w", configPath, err)
	}

	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("[ERROR] config file %s: %w", configPath, err)
	}
	return cfg, nil
}

// ParseConfig decodes YAML over the defaults and validates the result.
func ParseConfig(data []byte) (*MainConfig, error) {
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse: %w", err)
	}

	cfg := DefaultConfig()
	if fc.Host != nil {
		cfg.Host = *fc.Host
	}
	if fc.BasePort != nil {
		cfg.BasePort = *fc.BasePort
	}
	if fc.StartPath != nil {
		cfg.StartPath = *fc.StartPath
	}
	if fc.StartDelay != nil {
		d, err := time.ParseDuration(*fc.StartDelay)
		if err != nil {
			return nil, fmt.Errorf("invalid start_delay %q: %w", *fc.StartDelay, err)
		}
		cfg.StartDelay = d
	}
	if fc.RequestTimeout != nil {
		d, err := time.ParseDuration(*fc.RequestTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid request_timeout %q: %w", *fc.RequestTimeout, err)
		}
		cfg.RequestTimeout = d
	}
	if fc.LogPath != nil {
		cfg.LogPath = *fc.LogPath
	}
	if fc.Debug != nil {
		cfg.Debug = *fc.Debug
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (c *MainConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid %s: failed %q check (value %v)", fe.Field(), fe.Tag(), fe.Value())
		}
		return err
	}
	return nil
}
