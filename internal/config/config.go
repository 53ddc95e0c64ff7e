package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ExtractorConfig tunes flow reconstruction. Durations are strings like "2m" or "1us".
type ExtractorConfig struct {
	IdleTimeout   string `yaml:"idle_timeout"`
	ActiveTimeout string `yaml:"active_timeout"`
	SweepInterval string `yaml:"sweep_interval"`
	Epsilon       string `yaml:"epsilon"`
	ReaderBackend string `yaml:"reader_backend"`
}

// ManagerConfig holds the configuration for the batch manager.
type ManagerConfig struct {
	NumWorkers int  `yaml:"num_workers"`
	Classify   bool `yaml:"classify"`
}

// ClassifierConfig points at the remote classifier service.
type ClassifierConfig struct {
	Addr    string `yaml:"addr"`
	Timeout string `yaml:"timeout"`
}

// JSONLConfig holds the configuration for the JSON lines sink.
type JSONLConfig struct {
	Path string `yaml:"path"`
}

// NATSConfig holds the configuration for the NATS sink.
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// ClickHouseConfig holds the configuration for the ClickHouse sink.
type ClickHouseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Table    string `yaml:"table"`
}

// SinkConfig defines one record sink.
type SinkConfig struct {
	Type       string           `yaml:"type"`
	Enabled    bool             `yaml:"enabled"`
	JSONL      JSONLConfig      `yaml:"jsonl"`
	NATS       NATSConfig       `yaml:"nats"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
}

// APIConfig holds the configuration for the HTTP API.
type APIConfig struct {
	Listen      string `yaml:"listen"`
	CaptureRoot string `yaml:"capture_root"`
}

// LoggingConfig selects the log level and format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the top-level configuration struct for the entire application.
type Config struct {
	Extractor  ExtractorConfig  `yaml:"extractor"`
	Manager    ManagerConfig    `yaml:"manager"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Sinks      []SinkConfig     `yaml:"sinks"`
	API        APIConfig        `yaml:"api"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// LoadConfig reads the configuration from a YAML file and returns a Config struct.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", filePath, err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Extractor.IdleTimeout == "" {
		c.Extractor.IdleTimeout = "2m"
	}
	if c.Extractor.ActiveTimeout == "" {
		c.Extractor.ActiveTimeout = "1h"
	}
	if c.Extractor.Epsilon == "" {
		c.Extractor.Epsilon = "1us"
	}
	if c.Extractor.ReaderBackend == "" {
		c.Extractor.ReaderBackend = "pcapgo"
	}
	if c.Manager.NumWorkers <= 0 {
		c.Manager.NumWorkers = 4
	}
	if c.Classifier.Timeout == "" {
		c.Classifier.Timeout = "5s"
	}
	if c.API.Listen == "" {
		c.API.Listen = ":8080"
	}
	if c.API.CaptureRoot == "" {
		c.API.CaptureRoot = "."
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	for i := range c.Sinks {
		s := &c.Sinks[i]
		switch s.Type {
		case "nats":
			if s.NATS.Subject == "" {
				s.NATS.Subject = "netsentry.flows"
			}
		case "clickhouse":
			if s.ClickHouse.Port == 0 {
				s.ClickHouse.Port = 9000
			}
			if s.ClickHouse.Database == "" {
				s.ClickHouse.Database = "default"
			}
			if s.ClickHouse.Table == "" {
				s.ClickHouse.Table = "flow_features"
			}
		}
	}
}

// Validate checks that every duration parses and every enabled sink is usable.
func (c *Config) Validate() error {
	var errs []error
	for name, v := range map[string]string{
		"extractor.idle_timeout":   c.Extractor.IdleTimeout,
		"extractor.active_timeout": c.Extractor.ActiveTimeout,
		"extractor.epsilon":        c.Extractor.Epsilon,
		"classifier.timeout":       c.Classifier.Timeout,
	} {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		} else if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, v))
		}
	}
	if c.Extractor.SweepInterval != "" {
		if d, err := time.ParseDuration(c.Extractor.SweepInterval); err != nil || d < 0 {
			errs = append(errs, fmt.Errorf("extractor.sweep_interval: invalid duration %q", c.Extractor.SweepInterval))
		}
	}
	if c.Manager.Classify && c.Classifier.Addr == "" {
		errs = append(errs, errors.New("manager.classify requires classifier.addr"))
	}
	for i, s := range c.Sinks {
		if !s.Enabled {
			continue
		}
		switch s.Type {
		case "jsonl":
			if s.JSONL.Path == "" {
				errs = append(errs, fmt.Errorf("sinks[%d]: jsonl.path is required", i))
			}
		case "nats":
			if s.NATS.URL == "" {
				errs = append(errs, fmt.Errorf("sinks[%d]: nats.url is required", i))
			}
		case "clickhouse":
			if s.ClickHouse.Host == "" {
				errs = append(errs, fmt.Errorf("sinks[%d]: clickhouse.host is required", i))
			}
		case "":
			errs = append(errs, fmt.Errorf("sinks[%d]: type is required", i))
		}
	}
	return errors.Join(errs...)
}

// Durations is the parsed form of ExtractorConfig.
type Durations struct {
	IdleTimeout   time.Duration
	ActiveTimeout time.Duration
	SweepInterval time.Duration
	Epsilon       time.Duration
}

// ExtractorDurations parses the extractor durations. Call it on a validated config.
func (c *Config) ExtractorDurations() (Durations, error) {
	var d Durations
	var err error
	if d.IdleTimeout, err = time.ParseDuration(c.Extractor.IdleTimeout); err != nil {
		return d, fmt.Errorf("extractor.idle_timeout: %w", err)
	}
	if d.ActiveTimeout, err = time.ParseDuration(c.Extractor.ActiveTimeout); err != nil {
		return d, fmt.Errorf("extractor.active_timeout: %w", err)
	}
	if d.Epsilon, err = time.ParseDuration(c.Extractor.Epsilon); err != nil {
		return d, fmt.Errorf("extractor.epsilon: %w", err)
	}
	if c.Extractor.SweepInterval != "" {
		if d.SweepInterval, err = time.ParseDuration(c.Extractor.SweepInterval); err != nil {
			return d, fmt.Errorf("extractor.sweep_interval: %w", err)
		}
	}
	return d, nil
}

// ClassifierTimeout returns the per-call classifier deadline.
func (c *Config) ClassifierTimeout() time.Duration {
	d, err := time.ParseDuration(c.Classifier.Timeout)
	if err != nil || d <= 0 {
		return 5 * time.Second
	}
	return d
}
