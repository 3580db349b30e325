// Package config loads obsfinder settings from built-in defaults, an
// optional YAML file and OBSFINDER_* environment variables.
package config

import (
	"fmt"
	"log/slog"
	"maps"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/obsfinder/obsfinder/internal/catalog"
	"github.com/obsfinder/obsfinder/internal/zeropoint"
)

const (
	configPathEnv   = "OBSFINDER_CONFIG"
	proxyEnv        = "OBSFINDER_PROXY"
	pollIntervalEnv = "OBSFINDER_POLL_INTERVAL"
	queryTimeoutEnv = "OBSFINDER_QUERY_TIMEOUT"
	outputDirEnv    = "OBSFINDER_OUTPUT_DIR"

	defaultHTTPTimeout = 60 * time.Second
)

// Config holds every tunable of a run.
type Config struct {
	Services  map[string]catalog.Service `yaml:"services"`
	Query     QueryConfig                `yaml:"query"`
	HTTP      HTTPConfig                 `yaml:"http"`
	Output    OutputConfig               `yaml:"output"`
	ZeroPoint ZeroPointConfig            `yaml:"zero_point"`
}

// QueryConfig controls the async job polling loop.
type QueryConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	Timeout      time.Duration `yaml:"timeout"`
}

// HTTPConfig describes the connection to the archives.
type HTTPConfig struct {
	// Proxy is a forward proxy as host:port.
	Proxy string `yaml:"proxy"`
	// Timeout bounds the wait for response headers of each HTTP request. Zero disables it.
	Timeout time.Duration `yaml:"timeout"`
}

type OutputConfig struct {
	Dir string `yaml:"dir"`
}

// ZeroPointConfig selects the parallax zero-point correction. Enabled is
// the default of the --pi flag.
type ZeroPointConfig struct {
	Enabled bool    `yaml:"enabled"`
	Offset  float64 `yaml:"offset"`
}

// Model returns the correction model built from the configured offset.
func (z ZeroPointConfig) Model() zeropoint.Model {
	return zeropoint.Global{Value: z.Offset}
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Services: map[string]catalog.Service{
			"gaia": {
				Name:    "gaia",
				BaseURL: "https://gea.esac.esa.int/tap-server/tap",
				Params: map[string]string{
					"REQUEST": "doQuery",
					"LANG":    "ADQL",
				},
				JobInfo:  true,
				Encoding: catalog.DefaultEncoding,
			},
			"irsa": {
				Name:     "irsa",
				BaseURL:  "https://irsa.ipac.caltech.edu/TAP",
				Encoding: catalog.DefaultEncoding,
			},
		},
		Query: QueryConfig{
			PollInterval: catalog.DefaultPollInterval,
			Timeout:      catalog.DefaultTimeout,
		},
		HTTP: HTTPConfig{
			Timeout: defaultHTTPTimeout,
		},
		ZeroPoint: ZeroPointConfig{
			Enabled: true,
			Offset:  zeropoint.DefaultOffset,
		},
	}
}

// Load builds the configuration. path falls back to $OBSFINDER_CONFIG; with
// neither set only defaults and environment overrides apply.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := cfg.merge(raw); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
		slog.Debug("Loaded configuration file", "path", path)
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// merge overlays a YAML document. Service entries are merged field by field
// so a file can change one URL without restating the submit parameters.
func (c *Config) merge(raw []byte) error {
	defaults := maps.Clone(c.Services)
	if err := yaml.Unmarshal(raw, c); err != nil {
		return err
	}
	c.Services = defaults

	var doc struct {
		Services map[string]yaml.Node `yaml:"services"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return err
	}
	for name, node := range doc.Services {
		svc := c.Services[name]
		svc.Params = maps.Clone(svc.Params)
		if err := node.Decode(&svc); err != nil {
			return fmt.Errorf("service %s: %w", name, err)
		}
		if svc.Name == "" {
			svc.Name = name
		}
		c.Services[name] = svc
	}
	return nil
}

func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv(proxyEnv); v != "" {
		c.HTTP.Proxy = v
	}

	if v := os.Getenv(outputDirEnv); v != "" {
		c.Output.Dir = v
	}

	if v := os.Getenv(pollIntervalEnv); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", pollIntervalEnv, err)
		}
		c.Query.PollInterval = d
	}

	if v := os.Getenv(queryTimeoutEnv); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", queryTimeoutEnv, err)
		}
		c.Query.Timeout = d
	}

	// OBSFINDER_<SERVICE>_URL repoints a service, e.g. at a mirror.
	for name, svc := range c.Services {
		if v := os.Getenv("OBSFINDER_" + strings.ToUpper(name) + "_URL"); v != "" {
			svc.BaseURL = v
			c.Services[name] = svc
		}
	}

	return nil
}

// Validate checks values that would otherwise fail deep inside a query.
func (c Config) Validate() error {
	if c.Query.PollInterval <= 0 {
		return fmt.Errorf("query.poll_interval must be positive, got %s", c.Query.PollInterval)
	}
	if c.Query.Timeout <= 0 {
		return fmt.Errorf("query.timeout must be positive, got %s", c.Query.Timeout)
	}
	if c.HTTP.Timeout < 0 {
		return fmt.Errorf("http.timeout must not be negative, got %s", c.HTTP.Timeout)
	}
	for name, svc := range c.Services {
		u, err := url.Parse(svc.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("service %s: invalid url %q", name, svc.BaseURL)
		}
		if _, err := catalog.LookupEncoding(svc.Encoding); err != nil {
			return fmt.Errorf("service %s: %w", name, err)
		}
	}
	return nil
}

// Service returns the named service.
func (c Config) Service(name string) (catalog.Service, error) {
	svc, ok := c.Services[name]
	if !ok {
		return catalog.Service{}, fmt.Errorf("no service %q configured", name)
	}
	return svc, nil
}

// QueryOptions returns the polling options for catalog clients.
func (c Config) QueryOptions() catalog.Options {
	return catalog.Options{PollInterval: c.Query.PollInterval, Timeout: c.Query.Timeout}
}
