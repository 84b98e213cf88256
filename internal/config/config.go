// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/chatdeck/internal/api"
	"github.com/jeranaias/chatdeck/internal/model"
	"github.com/jeranaias/chatdeck/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete chatdeck configuration.
type Config struct {
	// Version of the config schema
	Version string `toml:"version"`

	// DefaultModel is the ID of the model used for new chats
	DefaultModel string `toml:"default_model"`

	// SystemInstruction is sent as the first message of every request
	SystemInstruction string `toml:"system_instruction"`

	// StreamResponses is the global streaming default; models opt out or
	// override it per configuration
	StreamResponses bool `toml:"stream_responses"`

	// Models are the configured model endpoints
	Models []model.Model `toml:"models"`

	// Storage configuration
	Storage StorageConfig `toml:"storage"`

	// Log configuration
	Log LogConfig `toml:"log"`
}

// StorageConfig locates the chat database.
type StorageConfig struct {
	// Path to the SQLite database file (empty = default ~/.chatdeck/chats.db)
	Path string `toml:"path"`
}

// LogConfig controls logging output.
type LogConfig struct {
	// Level is the minimum level: trace, debug, info, warn, error
	Level string `toml:"level"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// DefaultSystemInstruction is applied when no instruction is configured.
const DefaultSystemInstruction = "You are a helpful AI assistant."

// Default returns the built-in default configuration.
func Default() *Config {
	return &Config{
		Version:           "1.0",
		SystemInstruction: DefaultSystemInstruction,
		StreamResponses:   true,
		Models:            []model.Model{},
		Log:               LogConfig{Level: "info"},
	}
}

// ConfigDir returns the chatdeck configuration directory (~/.chatdeck).
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".chatdeck"), nil
}

// ConfigPath returns the default config file path.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// StoragePath resolves the database path, falling back to the default
// location inside the config directory.
func (c *Config) StoragePath() (string, error) {
	if c.Storage.Path != "" {
		return c.Storage.Path, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "chats.db"), nil
}

// =============================================================================
// LOADING
// =============================================================================

// Load reads the configuration from the default path, applies environment
// overrides, fills defaults, and validates. A missing file yields the
// defaults, not an error.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath reads the configuration from an explicit path.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// No file yet; defaults apply.
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.ApplyEnvOverrides()
	cfg.fillDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides applies environment variable overrides:
//   - CHATDECK_MODEL: overrides default_model
//   - CHATDECK_API_KEY: overrides the API key of the default model
//   - CHATDECK_SYSTEM_INSTRUCTION: overrides system_instruction
//   - CHATDECK_STREAM: "1"/"true" or "0"/"false" overrides stream_responses
//   - CHATDECK_STORAGE_PATH: overrides storage.path
//   - CHATDECK_LOG_LEVEL: overrides log.level
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("CHATDECK_MODEL"); v != "" {
		c.DefaultModel = v
	}
	if v := os.Getenv("CHATDECK_API_KEY"); v != "" {
		if m := c.findModel(c.DefaultModel); m != nil {
			m.API.APIKey = v
		}
	}
	if v := os.Getenv("CHATDECK_SYSTEM_INSTRUCTION"); v != "" {
		c.SystemInstruction = v
	}
	if v := os.Getenv("CHATDECK_STREAM"); v != "" {
		c.StreamResponses = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("CHATDECK_STORAGE_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("CHATDECK_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// fillDefaults completes any zero values left after loading.
func (c *Config) fillDefaults() {
	if c.Version == "" {
		c.Version = "1.0"
	}
	if c.SystemInstruction == "" {
		c.SystemInstruction = DefaultSystemInstruction
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	for i := range c.Models {
		m := &c.Models[i]
		if m.ID == "" {
			m.ID = m.ModelID
		}
		if m.Endpoint == "" {
			m.Endpoint = model.EndpointChatCompletions
		}

		// Zero-valued sampling fields are treated as unset, whether the
		// whole parameters section is missing or only part of it. An
		// explicit zero for these values is not representable in the
		// file; body_params can force one if a provider needs it.
		p, def := &m.Parameters, model.DefaultParameters()
		if p.ContextLimit == "" {
			p.ContextLimit = def.ContextLimit
		}
		if p.Temperature == 0 {
			p.Temperature = def.Temperature
		}
		if p.TopP == 0 {
			p.TopP = def.TopP
		}
		if p.MaxTokens == 0 {
			p.MaxTokens = def.MaxTokens
		}
	}
	if c.DefaultModel == "" && len(c.Models) > 0 {
		c.DefaultModel = c.Models[0].ID
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "error": true,
}

// Validate checks the configuration, clamping what can be clamped and
// rejecting what cannot.
func (c *Config) Validate() error {
	if !validLogLevels[c.Log.Level] {
		c.Log.Level = "info"
	}

	seen := make(map[string]bool, len(c.Models))
	for i := range c.Models {
		m := &c.Models[i]
		if seen[m.ID] {
			return fmt.Errorf("duplicate model id %q", m.ID)
		}
		seen[m.ID] = true
		// Model.Validate already identifies the offending model.
		if err := m.Validate(); err != nil {
			return err
		}
	}

	if c.DefaultModel != "" && c.findModel(c.DefaultModel) == nil {
		return fmt.Errorf("default_model %q does not match any configured model", c.DefaultModel)
	}
	return nil
}

// =============================================================================
// SAVING
// =============================================================================

// Save writes the configuration to the default path atomically.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveToPath(cfg, path)
}

// SaveToPath writes the configuration to an explicit path atomically.
// Config files hold API keys, so permissions are owner-only.
func SaveToPath(cfg *Config, path string) error {
	var buf strings.Builder
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, []byte(buf.String()), 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// =============================================================================
// ACCESSORS
// =============================================================================

// Model returns the configured model with the given ID, or nil.
func (c *Config) Model(id string) *model.Model {
	return c.findModel(id)
}

// Default model resolution: explicit DefaultModel, else the first model.
func (c *Config) ResolveDefaultModel() *model.Model {
	if m := c.findModel(c.DefaultModel); m != nil {
		return m
	}
	if len(c.Models) > 0 {
		return &c.Models[0]
	}
	return nil
}

// Globals returns the request globals derived from this configuration.
func (c *Config) Globals() api.Globals {
	return api.Globals{
		SystemInstruction: c.SystemInstruction,
		StreamDefault:     c.StreamResponses,
	}
}

func (c *Config) findModel(id string) *model.Model {
	for i := range c.Models {
		if c.Models[i].ID == id {
			return &c.Models[i]
		}
	}
	return nil
}
