package watcher

import (
	"github.com/hazyhaar/glamwatch/watcher/internal/config"
)

// Config is the top-level glamwatch configuration. Re-exported from internal.
type Config = config.Config

// BrowserConfig controls the Chrome lifecycle.
type BrowserConfig = config.BrowserConfig

// GLAMToolsConfig tunes the result page interaction.
type GLAMToolsConfig = config.GLAMToolsConfig

// CategoryConfig is one Commons category tree to watch.
type CategoryConfig = config.CategoryConfig

// OutputConfig controls report artifacts on disk.
type OutputConfig = config.OutputConfig

// SinkConfig defines an output backend.
type SinkConfig = config.SinkConfig

// ServerConfig controls the HTTP API.
type ServerConfig = config.ServerConfig

// ScheduleConfig controls repeated runs.
type ScheduleConfig = config.ScheduleConfig

// LoadConfigFile reads a YAML configuration file.
func LoadConfigFile(path string) (*Config, error) {
	return config.LoadFile(path)
}
