package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config is loaded from a JSON file with env overrides applied on top.
type Config struct {
	LogLevel string         `json:"log_level"`
	Source   SourceConfig   `json:"source"`
	Buffer   BufferConfig   `json:"buffer"`
	Relay    RelayConfig    `json:"relay"`
	Receiver ReceiverConfig `json:"receiver"`
}

type SourceConfig struct {
	BaseURL string `json:"base_url"`
}

type BufferConfig struct {
	Listen         string `json:"listen"`
	PollIntervalMS int    `json:"poll_interval_ms"`
	WindowMS       int    `json:"window_ms"`
}

type RelayConfig struct {
	TargetURL string `json:"target_url"`
	Secret    string `json:"secret"`
	AgentID   string `json:"agent_id"`
}

type ReceiverConfig struct {
	Listen   string `json:"listen"`
	Secret   string `json:"secret"`
	AgentURL string `json:"agent_url"`
	APIKey   string `json:"api_key"`
	Model    string `json:"model"`
	DataDir  string `json:"data_dir"`
}

func (b BufferConfig) PollInterval() time.Duration {
	return time.Duration(b.PollIntervalMS) * time.Millisecond
}

func (b BufferConfig) WindowInterval() time.Duration {
	return time.Duration(b.WindowMS) * time.Millisecond
}

func Default() *Config {
	var c Config
	c.LogLevel = "info"
	c.Source.BaseURL = "http://localhost:5600/api"
	c.Buffer.Listen = ":3000"
	c.Buffer.PollIntervalMS = 2000
	c.Buffer.WindowMS = 10000
	c.Relay.TargetURL = "http://localhost:4000"
	c.Receiver.Listen = ":4000"
	c.Receiver.Model = "gpt-4o-mini"
	return &c
}

// Load reads the config file at path, creating it with defaults if it
// does not exist, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if err := Save(path, cfg); err != nil {
			return nil, fmt.Errorf("writing default config: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	} else if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("ACTIVITYWATCH_API_URL"); v != "" {
		cfg.Source.BaseURL = v
	}
	if v := os.Getenv("BUFFER_PORT"); v != "" {
		cfg.Buffer.Listen = ":" + v
	}
	if v := os.Getenv("WEBHOOK_TARGET_URL"); v != "" {
		cfg.Relay.TargetURL = v
	}
	if v := os.Getenv("WEBHOOK_SECRET"); v != "" {
		cfg.Relay.Secret = v
		cfg.Receiver.Secret = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		cfg.Receiver.Listen = ":" + v
	} else if v := os.Getenv("PORT"); v != "" {
		cfg.Receiver.Listen = ":" + v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Receiver.APIKey = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}

// Save writes cfg to path, creating parent directories as needed.
func Save(path string, cfg *Config) error {
	return writeAtomic(path, cfg)
}

func writeAtomic(path string, v any) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating config dir: %w", err)
		}
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func readRaw(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return m, nil
}

// ToMap converts cfg to a generic map via its JSON representation.
func ToMap(cfg *Config) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// ListValues returns all config keys in dotted form, masking secrets
// when mask is true.
func ListValues(cfg *Config, mask bool) (map[string]any, error) {
	m, err := ToMap(cfg)
	if err != nil {
		return nil, err
	}
	flat := Flatten(m)
	if mask {
		flat = MaskSecrets(flat)
	}
	return flat, nil
}

// GetValue reads a single dotted key from the config file at path,
// creating the file with defaults first if it does not exist.
func GetValue(path, key string) (any, error) {
	if _, err := Load(path); err != nil {
		return nil, err
	}
	m, err := readRaw(path)
	if err != nil {
		return nil, err
	}
	flat := Flatten(m)
	v, ok := flat[key]
	if !ok {
		return nil, fmt.Errorf("unknown config key: %s", key)
	}
	return v, nil
}

// SetValue sets a single dotted key in the config file at path and
// writes the file back. Values are parsed as bool, number, or string.
func SetValue(path, key, value string) error {
	m, err := readRaw(path)
	if err != nil {
		return err
	}
	flat := Flatten(m)
	flat[key] = parseValue(value)
	return writeAtomic(path, Unflatten(flat))
}

func parseValue(s string) any {
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return n
	}
	return s
}
