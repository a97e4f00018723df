// Package config handles glamwatch configuration from YAML files.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/glamwatch/watcher/internal/glamorgan"
)

// Config is the top-level glamwatch configuration.
type Config struct {
	Database   string           `yaml:"database"`
	Browser    BrowserConfig    `yaml:"browser"`
	GLAMTools  GLAMToolsConfig  `yaml:"glamtools"`
	Categories []CategoryConfig `yaml:"categories"`
	Output     OutputConfig     `yaml:"output"`
	Sinks      []SinkConfig     `yaml:"sinks"`
	Server     ServerConfig     `yaml:"server"`
	Schedule   ScheduleConfig   `yaml:"schedule"`
}

// BrowserConfig controls the Chrome lifecycle.
type BrowserConfig struct {
	Remote           string        `yaml:"remote"`
	MemoryLimit      int64         `yaml:"memory_limit"`
	RecycleInterval  time.Duration `yaml:"recycle_interval"`
	ResourceBlocking []string      `yaml:"resource_blocking"`
	Headful          bool          `yaml:"headful"`
	XvfbDisplay      string        `yaml:"xvfb_display"`
}

// GLAMToolsConfig tunes the result page interaction.
type GLAMToolsConfig struct {
	URL          string        `yaml:"url"`
	Timeout      time.Duration `yaml:"timeout"`
	PollInterval time.Duration `yaml:"poll_interval"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	StableChecks int           `yaml:"stable_checks"`
	SettleDelay  time.Duration `yaml:"settle_delay"`
}

// CategoryConfig is one Commons category tree to watch.
type CategoryConfig struct {
	Name  string `yaml:"name"`
	Depth int    `yaml:"depth"`
}

// OutputConfig controls report artifacts on disk.
type OutputConfig struct {
	Dir string `yaml:"dir"`
}

// SinkConfig defines an output backend.
type SinkConfig struct {
	Type string `yaml:"type"` // stdout | webhook | reportdir
	URL  string `yaml:"url"`  // for webhook
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Listen string `yaml:"listen"`
}

// ScheduleConfig controls repeated runs. Zero interval = one shot.
type ScheduleConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Database == "" {
		c.Database = "glamwatch.db"
	}
	if c.Browser.MemoryLimit <= 0 {
		c.Browser.MemoryLimit = 1 << 30
	}
	if c.Browser.RecycleInterval <= 0 {
		c.Browser.RecycleInterval = 4 * time.Hour
	}
	if c.Browser.XvfbDisplay == "" {
		c.Browser.XvfbDisplay = ":99"
	}
	if c.GLAMTools.URL == "" {
		c.GLAMTools.URL = glamorgan.DefaultURL
	}
	if c.GLAMTools.Timeout <= 0 {
		c.GLAMTools.Timeout = 120 * time.Second
	}
	if c.Output.Dir == "" {
		c.Output.Dir = "reports"
	}
	if c.Server.Listen == "" {
		c.Server.Listen = ":8080"
	}
	for i := range c.Categories {
		if c.Categories[i].Depth <= 0 {
			c.Categories[i].Depth = 12
		}
	}
	if len(c.Sinks) == 0 {
		c.Sinks = []SinkConfig{{Type: "reportdir"}}
	}
}

// validate checks field consistency. An empty category list is legal
// here: serve-only deployments read stored snapshots and never crawl.
// The watcher refuses to run without categories.
func (c *Config) validate() error {
	for _, cat := range c.Categories {
		if cat.Name == "" {
			return fmt.Errorf("config: category with empty name")
		}
	}
	for _, s := range c.Sinks {
		switch s.Type {
		case "stdout", "reportdir":
		case "webhook":
			if s.URL == "" {
				return fmt.Errorf("config: webhook sink requires url")
			}
		default:
			return fmt.Errorf("config: unknown sink type %q", s.Type)
		}
	}
	return nil
}
