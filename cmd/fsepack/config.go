package main

import (
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Config represents the fsepack configuration file
// (~/.config/fsepack/config.yaml). Numeric fields are pointers so "not set"
// is distinguishable from zero.
type Config struct {
	MinTensorBytes *int64   `yaml:"min_tensor_bytes"`
	Skip           []string `yaml:"skip"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	ServerAddress string `yaml:"server_address"`
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "fsepack", "config.yaml")
}

// LoadConfig reads the config file. Returns a zero Config if the file does
// not exist or cannot be parsed.
func LoadConfig() Config {
	path := configPath()
	if path == "" {
		return Config{}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}
	}
	return cfg
}

// applyLoggingConfig applies config file defaults when the corresponding
// CLI flag was not explicitly set.
func applyLoggingConfig(c *cli.Command, cfg Config) {
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		logFormat = cfg.LogFormat
	}
}

func applyCompressConfig(c *cli.Command, cfg Config, minTensorBytes *int64, skip *[]string) {
	applyLoggingConfig(c, cfg)
	if cfg.MinTensorBytes != nil && !c.IsSet("min-tensor-bytes") {
		*minTensorBytes = *cfg.MinTensorBytes
	}
	if len(cfg.Skip) > 0 && !c.IsSet("skip") {
		*skip = append(*skip, cfg.Skip...)
	}
}

func applyServeConfig(c *cli.Command, cfg Config, addr *string) {
	applyLoggingConfig(c, cfg)
	if cfg.ServerAddress != "" && !c.IsSet("addr") {
		*addr = cfg.ServerAddress
	}
}
