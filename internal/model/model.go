// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// =============================================================================
// ENDPOINT KIND
// =============================================================================

// EndpointKind is the logical endpoint name appended to a base URL.
type EndpointKind string

const (
	EndpointChatCompletions EndpointKind = "chat/completions"
	EndpointCompletions     EndpointKind = "completions"
	EndpointEmbeddings      EndpointKind = "embeddings"
)

// String returns the string representation of the endpoint kind.
func (e EndpointKind) String() string {
	return string(e)
}

// Valid reports whether the endpoint kind is one of the known values.
func (e EndpointKind) Valid() bool {
	switch e {
	case EndpointChatCompletions, EndpointCompletions, EndpointEmbeddings:
		return true
	}
	return false
}

// =============================================================================
// MODEL CONFIGURATION
// =============================================================================

// APIConfig identifies the endpoint and credentials for a provider.
type APIConfig struct {
	// BaseURL is the provider base URL, e.g. "https://api.openai.com".
	// A trailing "#" suppresses path resolution (exact-URL override).
	BaseURL string `toml:"base_url" json:"base_url" validate:"required"`

	// APIKey is the bearer token sent in the Authorization header.
	APIKey string `toml:"api_key" json:"api_key" validate:"required"`

	// OrganizationID is sent as OpenAI-Organization when set.
	OrganizationID string `toml:"organization_id,omitempty" json:"organization_id,omitempty"`

	// ProjectID is sent as OpenAI-Project when set.
	ProjectID string `toml:"project_id,omitempty" json:"project_id,omitempty"`
}

// Parameters are the request-shaping parameters for a model.
type Parameters struct {
	// ContextLimit is "All" or an integer-as-string message window.
	ContextLimit string `toml:"context_limit" json:"context_limit"`

	Temperature      float64 `toml:"temperature" json:"temperature" validate:"gte=0,lte=2"`
	PresencePenalty  float64 `toml:"presence_penalty" json:"presence_penalty" validate:"gte=-2,lte=2"`
	FrequencyPenalty float64 `toml:"frequency_penalty" json:"frequency_penalty" validate:"gte=-2,lte=2"`
	TopP             float64 `toml:"top_p" json:"top_p" validate:"gte=0,lte=1"`
	MaxTokens        int     `toml:"max_tokens" json:"max_tokens" validate:"gt=0"`

	// OverrideGlobal makes StreamingEnabled authoritative; when false the
	// global default decides whether to stream.
	OverrideGlobal   bool `toml:"override_global" json:"override_global"`
	StreamingEnabled bool `toml:"streaming_enabled" json:"streaming_enabled"`

	// Headers are overlaid onto generated request headers; caller wins.
	Headers map[string]string `toml:"headers,omitempty" json:"headers,omitempty"`

	// BodyParams are spread into the request body last; caller wins.
	BodyParams map[string]any `toml:"body_params,omitempty" json:"body_params,omitempty"`
}

// Model is one named endpoint configuration.
type Model struct {
	ID      string `toml:"id" json:"id" validate:"required"`
	Name    string `toml:"name" json:"name"`
	ModelID string `toml:"model_id" json:"model_id" validate:"required"`

	Endpoint EndpointKind `toml:"endpoint" json:"endpoint"`
	API      APIConfig    `toml:"api" json:"api"`

	// StreamingSupported is a provider capability; effective streaming is
	// always gated by it regardless of per-model or global flags.
	StreamingSupported bool `toml:"streaming_supported" json:"streaming_supported"`

	Parameters Parameters `toml:"parameters" json:"parameters"`
}

// DefaultParameters returns the default request-shaping parameters.
func DefaultParameters() Parameters {
	return Parameters{
		ContextLimit:     "All",
		Temperature:      0.7,
		PresencePenalty:  0,
		FrequencyPenalty: 0,
		TopP:             1,
		MaxTokens:        2048,
		OverrideGlobal:   false,
		StreamingEnabled: true,
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

// validate is shared; validator.Validate is safe for concurrent use.
var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the model configuration at the boundary. It returns an
// error describing the first invalid field group found.
func (m *Model) Validate() error {
	if !m.Endpoint.Valid() {
		return fmt.Errorf("model %q: unknown endpoint kind %q", m.ID, m.Endpoint)
	}
	if err := validate.Struct(m); err != nil {
		return fmt.Errorf("model %q: %w", m.ID, err)
	}
	if m.Parameters.ContextLimit != "" && m.Parameters.ContextLimit != "All" {
		if _, err := strconv.Atoi(m.Parameters.ContextLimit); err != nil {
			return fmt.Errorf("model %q: context_limit must be \"All\" or an integer, got %q",
				m.ID, m.Parameters.ContextLimit)
		}
	}
	return nil
}

// =============================================================================
// STREAMING RESOLUTION
// =============================================================================

// EffectiveStreaming resolves the streaming flag for a request.
// The provider capability always gates; below it the per-model flag applies
// only when OverrideGlobal is set, otherwise the global default decides.
func (m *Model) EffectiveStreaming(globalDefault bool) bool {
	if !m.StreamingSupported {
		return false
	}
	if m.Parameters.OverrideGlobal {
		return m.Parameters.StreamingEnabled
	}
	return globalDefault
}

// =============================================================================
// CONTEXT WINDOW
// =============================================================================

// ContextWindow parses ContextLimit. The second return is false when the
// whole history should be sent ("All", empty, or unparsable).
func (p Parameters) ContextWindow() (int, bool) {
	if p.ContextLimit == "" || p.ContextLimit == "All" {
		return 0, false
	}
	n, err := strconv.Atoi(p.ContextLimit)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// =============================================================================
// KEY FINGERPRINT
// =============================================================================

// KeyFingerprint returns a short SHA-256 fingerprint of the API key for
// display and logging. The key itself is never exposed.
func (m *Model) KeyFingerprint() string {
	key := strings.TrimSpace(m.API.APIKey)
	if key == "" {
		return "none"
	}
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:4])
}
