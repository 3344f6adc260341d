// Package config defines the configuration schema for driftcove.
//
// JSON keys use camelCase; the file lives at ~/.driftcove/config.json.
package config

import (
	"os"
	"path/filepath"
	"strings"
)

// RegistryConfig tunes the capability registry.
type RegistryConfig struct {
	CallTimeoutSeconds int `json:"callTimeoutSeconds"`
}

func defaultRegistryConfig() RegistryConfig {
	return RegistryConfig{CallTimeoutSeconds: 60}
}

// PluginConfig is the operator-side view of one plugin: whether it should be
// enabled at startup, and config overrides merged over the plugin's defaults.
type PluginConfig struct {
	Enabled bool           `json:"enabled"`
	Config  map[string]any `json:"config,omitempty"`
}

// PluginsConfig configures the plugin host.
type PluginsConfig struct {
	Dir               string                  `json:"dir"`
	CancelWaitSeconds int                     `json:"cancelWaitSeconds"`
	Plugins           map[string]PluginConfig `json:"plugins,omitempty"`
}

func defaultPluginsConfig() PluginsConfig {
	return PluginsConfig{
		Dir:               "~/.driftcove/plugins",
		CancelWaitSeconds: 5,
		Plugins:           map[string]PluginConfig{},
	}
}

// ServerConfig declares one external tool server for the broker.
type ServerConfig struct {
	Command   string            `json:"command,omitempty"`
	Args      []string          `json:"args,omitempty"`
	Env       map[string]string `json:"env,omitempty"`
	Endpoint  string            `json:"endpoint,omitempty"`
	AutoStart bool              `json:"autoStart"`
}

// BrokerConfig tunes the external capability broker.
type BrokerConfig struct {
	Servers            map[string]ServerConfig `json:"servers,omitempty"`
	SyncSchedule       string                  `json:"syncSchedule"`
	SettleMillis       int                     `json:"settleMillis"`
	StopWaitSeconds    int                     `json:"stopWaitSeconds"`
	SyncTimeoutSeconds int                     `json:"syncTimeoutSeconds"`
	CallTimeoutSeconds int                     `json:"callTimeoutSeconds"`
}

func defaultBrokerConfig() BrokerConfig {
	return BrokerConfig{
		Servers:            map[string]ServerConfig{},
		SyncSchedule:       "@every 5m",
		SettleMillis:       1000,
		StopWaitSeconds:    5,
		SyncTimeoutSeconds: 10,
		CallTimeoutSeconds: 30,
	}
}

// LLMConfig holds credentials for the OpenAI-compatible chat accessor.
type LLMConfig struct {
	APIKey  string `json:"apiKey"`
	APIBase string `json:"apiBase,omitempty"`
	Model   string `json:"model"`
}

func defaultLLMConfig() LLMConfig {
	return LLMConfig{Model: "gpt-4o-mini"}
}

// GatewayConfig tunes the broadcast gateway.
type GatewayConfig struct {
	Port int `json:"port"`
}

// HeartbeatConfig tunes the periodic health-check event.
type HeartbeatConfig struct {
	IntervalMinutes int `json:"intervalMinutes"`
}

// Config is the root configuration document.
type Config struct {
	Workspace string          `json:"workspace"`
	Registry  RegistryConfig  `json:"registry"`
	Plugins   PluginsConfig   `json:"plugins"`
	Broker    BrokerConfig    `json:"broker"`
	LLM       LLMConfig       `json:"llm"`
	Gateway   GatewayConfig   `json:"gateway"`
	Heartbeat HeartbeatConfig `json:"heartbeat"`
}

// DefaultConfig returns the configuration used when no file exists yet.
func DefaultConfig() Config {
	return Config{
		Workspace: "~/.driftcove/workspace",
		Registry:  defaultRegistryConfig(),
		Plugins:   defaultPluginsConfig(),
		Broker:    defaultBrokerConfig(),
		LLM:       defaultLLMConfig(),
		Gateway:   GatewayConfig{Port: 18890},
		Heartbeat: HeartbeatConfig{IntervalMinutes: 30},
	}
}

// WorkspacePath returns the workspace directory with ~ expanded.
func (c *Config) WorkspacePath() string {
	return expandHome(c.Workspace)
}

// PluginsDir returns the plugin manifest directory with ~ expanded.
func (c *Config) PluginsDir() string {
	return expandHome(c.Plugins.Dir)
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
