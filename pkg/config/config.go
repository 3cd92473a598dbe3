package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Defaults applied after merging.
const (
	DefaultTransport = "local"
	DefaultHost      = "127.0.0.1"
	DefaultPort      = 8888
	DefaultAgents    = 1
)

// Config drives the converge CLI. Values come from CONVERGE_<KEY>
// environment variables overlaid by an optional YAML file; the file wins.
type Config struct {
	// Transport selects the carrier: "local" or "tcp".
	Transport string `yaml:"transport"`

	// Host and Port bind the TCP transport. With several agents each
	// runtime gets Port+i.
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// Agents is how many runtimes to run in this process.
	Agents int `yaml:"agents"`

	// PoolID, when set, creates the pool and joins every agent to it.
	PoolID string `yaml:"pool_id"`

	// DiscoveryStore enables the discovery service: "memory" for an
	// in-memory store, any other value is a bbolt database path.
	DiscoveryStore string `yaml:"discovery_store"`

	// MetricsAddr, when set, serves prometheus metrics and health
	// endpoints on this address.
	MetricsAddr string `yaml:"metrics_addr"`

	// LogFormat is "json" or "console".
	LogFormat string `yaml:"log_format"`
}

// fileValues decodes the YAML file leniently: numbers may arrive as
// strings and unset keys must not clobber environment values.
type fileValues struct {
	Transport      *string `yaml:"transport"`
	Host           *string `yaml:"host"`
	Port           any     `yaml:"port"`
	Agents         any     `yaml:"agents"`
	PoolID         *string `yaml:"pool_id"`
	DiscoveryStore *string `yaml:"discovery_store"`
	MetricsAddr    *string `yaml:"metrics_addr"`
	LogFormat      *string `yaml:"log_format"`
}

// Load builds a Config from the environment and an optional YAML file.
// An empty or non-existent path means environment and defaults only.
func Load(path string) (*Config, error) {
	cfg, err := fromEnv()
	if err != nil {
		return nil, err
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Missing files are ignored, matching the env-only mode.
		case err != nil:
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		default:
			var fv fileValues
			if err := yaml.Unmarshal(data, &fv); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
			if err := applyFile(&cfg, fv); err != nil {
				return nil, err
			}
		}
	}

	normalize(&cfg)
	return &cfg, nil
}

// fromEnv reads CONVERGE_<KEY> variables. Non-integer values for integer
// keys are an error, not a silent fallback.
func fromEnv() (Config, error) {
	cfg := Config{
		Transport:      os.Getenv("CONVERGE_TRANSPORT"),
		Host:           os.Getenv("CONVERGE_HOST"),
		PoolID:         os.Getenv("CONVERGE_POOL_ID"),
		DiscoveryStore: os.Getenv("CONVERGE_DISCOVERY_STORE"),
		MetricsAddr:    os.Getenv("CONVERGE_METRICS_ADDR"),
		LogFormat:      os.Getenv("CONVERGE_LOG_FORMAT"),
	}
	if v := os.Getenv("CONVERGE_PORT"); v != "" {
		port, err := coerceInt("CONVERGE_PORT", v)
		if err != nil {
			return Config{}, err
		}
		cfg.Port = port
	}
	if v := os.Getenv("CONVERGE_AGENTS"); v != "" {
		agents, err := coerceInt("CONVERGE_AGENTS", v)
		if err != nil {
			return Config{}, err
		}
		cfg.Agents = agents
	}
	return cfg, nil
}

func applyFile(cfg *Config, fv fileValues) error {
	if fv.Transport != nil {
		cfg.Transport = *fv.Transport
	}
	if fv.Host != nil {
		cfg.Host = *fv.Host
	}
	if fv.Port != nil {
		port, err := coerceInt("port", fv.Port)
		if err != nil {
			return err
		}
		cfg.Port = port
	}
	if fv.Agents != nil {
		agents, err := coerceInt("agents", fv.Agents)
		if err != nil {
			return err
		}
		cfg.Agents = agents
	}
	if fv.PoolID != nil {
		cfg.PoolID = *fv.PoolID
	}
	if fv.DiscoveryStore != nil {
		cfg.DiscoveryStore = *fv.DiscoveryStore
	}
	if fv.MetricsAddr != nil {
		cfg.MetricsAddr = *fv.MetricsAddr
	}
	if fv.LogFormat != nil {
		cfg.LogFormat = *fv.LogFormat
	}
	return nil
}

// normalize fills defaults and clamps nonsense values.
func normalize(cfg *Config) {
	cfg.Transport = strings.ToLower(strings.TrimSpace(cfg.Transport))
	if cfg.Transport == "" {
		cfg.Transport = DefaultTransport
	}
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Port <= 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Agents < 1 {
		cfg.Agents = DefaultAgents
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "console"
	}
}

// coerceInt converts YAML scalars and env strings to int. Anything that is
// not a whole number is rejected with the offending key in the error.
func coerceInt(key string, v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case uint64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("invalid integer for %s: %v", key, n)
		}
		return int(n), nil
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, fmt.Errorf("invalid integer for %s: %q", key, n)
		}
		return parsed, nil
	default:
		return 0, fmt.Errorf("invalid integer for %s: %v", key, v)
	}
}
