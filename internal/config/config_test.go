// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jeranaias/chatdeck/internal/model"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

const sampleConfig = `
version = "1.0"
default_model = "gpt"
system_instruction = "Answer briefly."
stream_responses = false

[storage]
path = "/tmp/test-chats.db"

[log]
level = "debug"

[[models]]
id = "gpt"
model_id = "gpt-4o"
streaming_supported = true

[models.api]
base_url = "https://api.openai.com"
api_key = "sk-test"
`

func TestLoadFromPath(t *testing.T) {
	path := writeConfig(t, sampleConfig)

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.DefaultModel != "gpt" {
		t.Errorf("DefaultModel = %q, want gpt", cfg.DefaultModel)
	}
	if cfg.SystemInstruction != "Answer briefly." {
		t.Errorf("SystemInstruction = %q", cfg.SystemInstruction)
	}
	if cfg.StreamResponses {
		t.Error("StreamResponses should be false")
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
	if len(cfg.Models) != 1 || cfg.Models[0].ModelID != "gpt-4o" {
		t.Errorf("Models = %+v", cfg.Models)
	}
}

func TestLoadFromPath_Missing(t *testing.T) {
	cfg, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("missing file should load defaults, got: %v", err)
	}
	if cfg.SystemInstruction != DefaultSystemInstruction {
		t.Errorf("SystemInstruction = %q, want default", cfg.SystemInstruction)
	}
	if !cfg.StreamResponses {
		t.Error("StreamResponses should default to true")
	}
}

func TestLoadFromPath_Invalid(t *testing.T) {
	path := writeConfig(t, "not [ valid toml")
	if _, err := LoadFromPath(path); err == nil {
		t.Error("invalid TOML should fail to load")
	}
}

func TestEnvOverrides(t *testing.T) {
	path := writeConfig(t, sampleConfig)

	t.Setenv("CHATDECK_SYSTEM_INSTRUCTION", "Be verbose.")
	t.Setenv("CHATDECK_STREAM", "true")
	t.Setenv("CHATDECK_LOG_LEVEL", "warn")
	t.Setenv("CHATDECK_API_KEY", "sk-env")

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.SystemInstruction != "Be verbose." {
		t.Errorf("SystemInstruction = %q, env should win", cfg.SystemInstruction)
	}
	if !cfg.StreamResponses {
		t.Error("CHATDECK_STREAM=true should enable streaming")
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want warn", cfg.Log.Level)
	}
	if got := cfg.Models[0].API.APIKey; got != "sk-env" {
		t.Errorf("APIKey = %q, env should override the default model's key", got)
	}
}

func TestFillDefaults_PartialParameters(t *testing.T) {
	path := writeConfig(t, sampleConfig+`
[models.parameters]
max_tokens = 4096
`)

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	p := cfg.Models[0].Parameters
	if p.MaxTokens != 4096 {
		t.Errorf("MaxTokens = %d, want 4096 from file", p.MaxTokens)
	}
	if p.Temperature != 0.7 {
		t.Errorf("Temperature = %v, want default 0.7 backfilled", p.Temperature)
	}
	if p.TopP != 1 {
		t.Errorf("TopP = %v, want default 1 backfilled", p.TopP)
	}
	if p.ContextLimit != "All" {
		t.Errorf("ContextLimit = %q, want default All backfilled", p.ContextLimit)
	}
}

func TestFillDefaults_MissingParametersSection(t *testing.T) {
	path := writeConfig(t, sampleConfig)

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if got, want := cfg.Models[0].Parameters, model.DefaultParameters(); got.Temperature != want.Temperature ||
		got.TopP != want.TopP || got.MaxTokens != want.MaxTokens || got.ContextLimit != want.ContextLimit {
		t.Errorf("Parameters = %+v, want defaults", got)
	}
}

func TestValidate(t *testing.T) {
	t.Run("bad log level clamped", func(t *testing.T) {
		cfg := Default()
		cfg.Log.Level = "shouting"
		if err := cfg.Validate(); err != nil {
			t.Fatalf("Validate failed: %v", err)
		}
		if cfg.Log.Level != "info" {
			t.Errorf("Log.Level = %q, want clamped to info", cfg.Log.Level)
		}
	})

	t.Run("duplicate model ids rejected", func(t *testing.T) {
		cfg := Default()
		m := model.Model{ID: "a", ModelID: "x", API: model.APIConfig{BaseURL: "https://x", APIKey: "k"}}
		cfg.Models = []model.Model{m, m}
		if err := cfg.Validate(); err == nil {
			t.Error("duplicate IDs should fail validation")
		}
	})

	t.Run("model error named once", func(t *testing.T) {
		cfg := Default()
		cfg.Models = []model.Model{{
			ID: "gpt", ModelID: "gpt-4o",
			Endpoint:   "not-an-endpoint",
			API:        model.APIConfig{BaseURL: "https://x", APIKey: "k"},
			Parameters: model.DefaultParameters(),
		}}
		cfg.DefaultModel = "gpt"
		err := cfg.Validate()
		if err == nil {
			t.Fatal("invalid endpoint should fail validation")
		}
		if got := strings.Count(err.Error(), `model "gpt"`); got != 1 {
			t.Errorf("error names the model %d times, want once: %v", got, err)
		}
	})

	t.Run("dangling default model rejected", func(t *testing.T) {
		cfg := Default()
		cfg.DefaultModel = "ghost"
		if err := cfg.Validate(); err == nil {
			t.Error("default_model without a matching model should fail")
		}
	})
}

func TestSaveRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := Default()
	cfg.DefaultModel = "local"
	cfg.Models = []model.Model{{
		ID:      "local",
		ModelID: "llama3",
		API:     model.APIConfig{BaseURL: "http://localhost:8080", APIKey: "none"},
	}}

	if err := SaveToPath(cfg, path); err != nil {
		t.Fatalf("SaveToPath failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("permissions = %o, want 0600 (file holds API keys)", perm)
	}

	got, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if got.DefaultModel != "local" || len(got.Models) != 1 {
		t.Errorf("roundtrip config = %+v", got)
	}
	if got.Models[0].API.BaseURL != "http://localhost:8080" {
		t.Errorf("BaseURL = %q", got.Models[0].API.BaseURL)
	}
}

func TestResolveDefaultModel(t *testing.T) {
	cfg := Default()
	if cfg.ResolveDefaultModel() != nil {
		t.Error("no models should resolve to nil")
	}

	cfg.Models = []model.Model{
		{ID: "a", ModelID: "x", API: model.APIConfig{BaseURL: "https://x", APIKey: "k"}},
		{ID: "b", ModelID: "y", API: model.APIConfig{BaseURL: "https://y", APIKey: "k"}},
	}
	if got := cfg.ResolveDefaultModel(); got == nil || got.ID != "a" {
		t.Errorf("unset default should resolve to first model, got %+v", got)
	}

	cfg.DefaultModel = "b"
	if got := cfg.ResolveDefaultModel(); got == nil || got.ID != "b" {
		t.Errorf("ResolveDefaultModel = %+v, want model b", got)
	}
}

func TestGlobals(t *testing.T) {
	cfg := Default()
	cfg.SystemInstruction = "Be kind."
	cfg.StreamResponses = false

	g := cfg.Globals()
	if g.SystemInstruction != "Be kind." || g.StreamDefault {
		t.Errorf("Globals = %+v", g)
	}
}
