// Package config loads service configuration from a YAML or JSON file with
// BUSCLUSTER_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/banshee-data/buscluster/internal/monitoring"
)

// DefaultConfigPath is the path to the checked-in defaults file.
const DefaultConfigPath = "config/buscluster.defaults.yaml"

const envPrefix = "BUSCLUSTER"

// Config is the root configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server" json:"server"`
	Log     LogConfig     `mapstructure:"log" json:"log"`
	Tuning  TuningConfig  `mapstructure:"tuning" json:"tuning"`
	Archive ArchiveConfig `mapstructure:"archive" json:"archive"`
}

// ServerConfig configures the HTTP and gRPC listeners.
type ServerConfig struct {
	Listen      string   `mapstructure:"listen" json:"listen"`
	GRPCListen  string   `mapstructure:"grpc_listen" json:"grpc_listen"` // empty disables gRPC
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"`
}

// LogConfig selects the zap logger.
type LogConfig struct {
	Level  string `mapstructure:"level" json:"level"`
	Format string `mapstructure:"format" json:"format"`
}

// ArchiveConfig configures the optional run archive.
type ArchiveConfig struct {
	Enabled bool   `mapstructure:"enabled" json:"enabled"`
	Path    string `mapstructure:"path" json:"path"`
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.listen", ":8000")
	v.SetDefault("server.grpc_listen", "")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.path", "buscluster.db")

	// Tuning keys have no viper default (nil means "use the built-in
	// value"), so AutomaticEnv cannot see them until they are bound.
	for _, k := range tuningKeys {
		_ = v.BindEnv("tuning." + k)
	}
	return v
}

// Load reads path (YAML or JSON by extension) if non-empty, merges
// BUSCLUSTER_* environment overrides such as BUSCLUSTER_TUNING_DBSCAN_EPS,
// and validates the result.
func Load(path string) (*Config, error) {
	v := newViper()
	if path != "" {
		clean := filepath.Clean(path)
		switch ext := strings.ToLower(filepath.Ext(clean)); ext {
		case ".yaml", ".yml", ".json":
		default:
			return nil, fmt.Errorf("config file must be .yaml, .yml or .json, got %q", ext)
		}
		v.SetConfigFile(clean)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		monitoring.Logf("loaded config from %s", clean)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Default returns the configuration built from defaults and environment only.
func Default() (*Config, error) {
	return Load("")
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching parent directories
// so it works from package tests. Panics if the file cannot be loaded.
func MustLoadDefaultConfig() *Config {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/<pkg>/
		"../../../" + DefaultConfigPath,
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		cfg, err := Load(p)
		if err != nil {
			panic(err)
		}
		return cfg
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks every section.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Listen == "" {
		errs = append(errs, errors.New("server.listen must not be empty"))
	}
	if _, err := monitoring.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format must be json or console, got %q", c.Log.Format))
	}
	if c.Archive.Enabled && c.Archive.Path == "" {
		errs = append(errs, errors.New("archive.path is required when the archive is enabled"))
	}
	if err := c.Tuning.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
