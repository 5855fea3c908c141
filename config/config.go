// Package config loads the settings shared by provctl and provd.
//
// Values come from an optional YAML file, then PROVCHAIN_* environment
// variables, then defaults for anything still unset.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"xdao.co/provchain/storage/casconfig"
)

const envPrefix = "PROVCHAIN_"

type Config struct {
	// Generator labels claims signed by the binaries.
	Generator string `yaml:"generator,omitempty"`

	Ledger    LedgerConfig     `yaml:"ledger"`
	Storage   casconfig.Config `yaml:"storage"`
	Keys      KeysConfig       `yaml:"keys"`
	Server    ServerConfig     `yaml:"server"`
	Log       LogConfig        `yaml:"log"`
	Telemetry TelemetryConfig  `yaml:"telemetry"`
}

type LedgerConfig struct {
	Path string `yaml:"path,omitempty"`
}

type KeysConfig struct {
	Dir  string `yaml:"dir,omitempty"`
	Name string `yaml:"name,omitempty"`
	Role string `yaml:"role,omitempty"`
}

type ServerConfig struct {
	Listen string `yaml:"listen,omitempty"`
}

type LogConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

type TelemetryConfig struct {
	// OTLPEndpoint enables trace and metric export when set (host:port, gRPC).
	OTLPEndpoint string  `yaml:"otlp_endpoint,omitempty"`
	Insecure     bool    `yaml:"insecure,omitempty"`
	SampleRate   float64 `yaml:"sample_rate,omitempty"`
	ServiceName  string  `yaml:"service_name,omitempty"`
}

// HasStorage reports whether payload bytes go to a CAS rather than inline
// into the ledger.
func (c Config) HasStorage() bool { return len(c.Storage.Backends) > 0 }

// Load reads path (if non-empty), applies environment overrides and fills
// defaults.
func Load(path string) (Config, error) {
	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("config: %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	cfg.applyDefaults()
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(envPrefix + key); ok && v != "" {
			*dst = v
		}
	}
	str("GENERATOR", &c.Generator)
	str("LEDGER_PATH", &c.Ledger.Path)
	str("KEYS_DIR", &c.Keys.Dir)
	str("KEY_NAME", &c.Keys.Name)
	str("KEY_ROLE", &c.Keys.Role)
	str("LISTEN", &c.Server.Listen)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("OTLP_ENDPOINT", &c.Telemetry.OTLPEndpoint)
	str("SERVICE_NAME", &c.Telemetry.ServiceName)

	if v, ok := lookup(envPrefix + "OTLP_INSECURE"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: %sOTLP_INSECURE: %w", envPrefix, err)
		}
		c.Telemetry.Insecure = b
	}
	if v, ok := lookup(envPrefix + "SAMPLE_RATE"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("config: %sSAMPLE_RATE: %w", envPrefix, err)
		}
		c.Telemetry.SampleRate = f
	}
	// A directory here adds a local CAS backend in front of any configured ones.
	if v, ok := lookup(envPrefix + "CAS_DIR"); ok && v != "" {
		c.Storage.Backends = append([]casconfig.BackendConfig{{Kind: "localfs", ID: "env", Dir: v}}, c.Storage.Backends...)
	}
	return nil
}

func (c *Config) applyDefaults() {
	home := DefaultHome()
	if c.Generator == "" {
		c.Generator = "provctl"
	}
	if c.Ledger.Path == "" {
		c.Ledger.Path = filepath.Join(home, "ledger.db")
	}
	if c.Keys.Dir == "" {
		c.Keys.Dir = filepath.Join(home, "keys")
	}
	if c.Server.Listen == "" {
		c.Server.Listen = "127.0.0.1:7788"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Telemetry.SampleRate == 0 {
		c.Telemetry.SampleRate = 1
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "provchain"
	}
}

func (c Config) Validate() error {
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("config: log.format must be text or json, got %q", c.Log.Format)
	}
	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		return fmt.Errorf("config: telemetry.sample_rate %v out of range [0,1]", c.Telemetry.SampleRate)
	}
	if c.Ledger.Path == "" {
		return errors.New("config: ledger.path is required")
	}
	if c.HasStorage() {
		if err := c.Storage.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// DefaultHome is $HOME/.provchain, or .provchain when the home directory is
// unknown.
func DefaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".provchain"
	}
	return filepath.Join(home, ".provchain")
}
