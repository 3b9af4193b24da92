// Package config loads the sweep configuration from a YAML or JSON file
// with environment overrides.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"

	"github.com/kilianp07/gridsweep/core/metrics"
	"github.com/kilianp07/gridsweep/infra/mqtt"
)

// EnvPrefix starts every environment override. Nested keys are separated
// by a double underscore, e.g. GRIDSWEEP_IO__OUTPUT__KIND.
const EnvPrefix = "GRIDSWEEP_"

type Config struct {
	Model    ModelConfig    `json:"model"`
	IO       IOConfig       `json:"io"`
	Sweep    SweepConfig    `json:"sweep"`
	Metrics  metrics.Config `json:"metrics"`
	MQTT     mqtt.Config    `json:"mqtt"`
	LogLevel string         `json:"log_level"`
}

// Load reads path, applies environment overrides, fills defaults and
// validates every section.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, EnvPrefix)
		return strings.ReplaceAll(strings.ToLower(s), "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	if err := cfg.resolvePaths(filepath.Dir(path)); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults fills unset fields of every section.
func (c *Config) SetDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	c.Model.SetDefaults()
	c.IO.SetDefaults()
	c.Metrics.SetDefaults()
	if c.MQTT.Enabled() {
		c.MQTT.SetDefaults()
	}
}

// Validate checks every section.
func (c Config) Validate() error {
	if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	if err := c.Model.Validate(); err != nil {
		return fmt.Errorf("model: %w", err)
	}
	if err := c.IO.Validate(); err != nil {
		return fmt.Errorf("io: %w", err)
	}
	if err := c.Sweep.Validate(); err != nil {
		return fmt.Errorf("sweep: %w", err)
	}
	if err := c.MQTT.Validate(); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}
	return nil
}

// resolvePaths makes relative input and output paths relative to the
// directory of the configuration file.
func (c *Config) resolvePaths(dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	if c.Model.Input != "" && !filepath.IsAbs(c.Model.Input) {
		c.Model.Input = filepath.Join(abs, c.Model.Input)
	}
	if c.IO.Output.Path != "" && !filepath.IsAbs(c.IO.Output.Path) {
		c.IO.Output.Path = filepath.Join(abs, c.IO.Output.Path)
	}
	return nil
}
