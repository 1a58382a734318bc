// Package config loads host-supplied Hub tuning parameters from YAML or
// TOML, following the teacher framework's Feeder convention
// (feeders/yaml.go, feeders/toml.go): a narrow Feeder interface with one
// implementation per file format, each backed directly by its format's
// canonical third-party decoder.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Feeder populates structure from some external source.
type Feeder interface {
	Feed(structure interface{}) error
}

// HubConfig holds the host-tunable knobs the core doesn't hardcode: how
// large the optional history sink is, the default response-listener
// timeout, and the logger's minimum level.
type HubConfig struct {
	HistoryCapacity  int    `yaml:"historyCapacity" toml:"history_capacity"`
	DefaultTimeoutMs int64  `yaml:"defaultTimeoutMs" toml:"default_timeout_ms"`
	LogLevel         string `yaml:"logLevel" toml:"log_level"`
}

// DefaultHubConfig returns the configuration used when no config file is
// supplied: no history sink, a 10-second default response timeout, and
// warn-level logging.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		HistoryCapacity: 0,
		DefaultTimeoutMs: 10_000,
		LogLevel:         "warn",
	}
}

// Load populates cfg (typically starting from DefaultHubConfig) using
// feeder, returning cfg unchanged if feeder is nil.
func Load(feeder Feeder, cfg *HubConfig) error {
	if feeder == nil {
		return nil
	}
	if err := feeder.Feed(cfg); err != nil {
		return fmt.Errorf("load hub config: %w", err)
	}
	return nil
}

// YAMLFeeder reads a HubConfig from a YAML file.
type YAMLFeeder struct {
	Path string
}

func NewYAMLFeeder(path string) YAMLFeeder { return YAMLFeeder{Path: path} }

func (f YAMLFeeder) Feed(structure interface{}) error {
	raw, err := os.ReadFile(f.Path)
	if err != nil {
		return fmt.Errorf("read yaml config %s: %w", f.Path, err)
	}
	if err := yaml.Unmarshal(raw, structure); err != nil {
		return fmt.Errorf("parse yaml config %s: %w", f.Path, err)
	}
	return nil
}

// TOMLFeeder reads a HubConfig from a TOML file.
type TOMLFeeder struct {
	Path string
}

func NewTOMLFeeder(path string) TOMLFeeder { return TOMLFeeder{Path: path} }

func (f TOMLFeeder) Feed(structure interface{}) error {
	if _, err := toml.DecodeFile(f.Path, structure); err != nil {
		return fmt.Errorf("parse toml config %s: %w", f.Path, err)
	}
	return nil
}
