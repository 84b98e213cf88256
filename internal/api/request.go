// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/jeranaias/chatdeck/internal/model"
)

// =============================================================================
// GLOBALS
// =============================================================================

// Globals are the app-level defaults consumed by the request builder.
// They are passed explicitly rather than read from ambient state so the
// client stays pure and testable.
type Globals struct {
	// SystemInstruction is prepended as the first message when non-empty.
	SystemInstruction string

	// StreamDefault decides streaming for models that don't override it.
	StreamDefault bool
}

// =============================================================================
// REQUEST TYPES
// =============================================================================

// wireMessage is one entry of the request's messages array.
type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a fully assembled chat-completion request, ready to send.
type Request struct {
	URL     string
	Headers http.Header
	Body    []byte

	// Stream is the resolved effective-streaming flag, echoed here so the
	// client doesn't re-derive it.
	Stream bool
}

// =============================================================================
// REQUEST BUILDER
// =============================================================================

// BuildRequest assembles the URL, headers, and JSON body for a chat
// request. It is a pure function of its arguments and mutates none of them.
//
// Header precedence: generated headers first, then the model's custom
// headers overlaid (custom wins on identical keys). Body precedence:
// generated fields first, then the model's custom body params spread last
// (custom wins on key collisions).
func BuildRequest(m *model.Model, history []*model.Message, g Globals) (Request, error) {
	stream := m.EffectiveStreaming(g.StreamDefault)

	headers := http.Header{}
	headers.Set("Content-Type", "application/json")
	headers.Set("Authorization", "Bearer "+m.API.APIKey)
	if m.API.OrganizationID != "" {
		headers.Set("OpenAI-Organization", m.API.OrganizationID)
	}
	if m.API.ProjectID != "" {
		headers.Set("OpenAI-Project", m.API.ProjectID)
	}
	for key, value := range m.Parameters.Headers {
		headers.Set(key, value)
	}

	// A numeric context limit caps how many trailing messages are sent;
	// the system instruction is not counted against it.
	if n, ok := m.Parameters.ContextWindow(); ok && len(history) > n {
		history = history[len(history)-n:]
	}

	messages := make([]wireMessage, 0, len(history)+1)
	if g.SystemInstruction != "" {
		messages = append(messages, wireMessage{Role: "system", Content: g.SystemInstruction})
	}
	for _, msg := range history {
		messages = append(messages, wireMessage{
			Role:    msg.Sender.Role(),
			Content: msg.Content,
		})
	}

	body := map[string]any{
		"model":             m.ModelID,
		"messages":          messages,
		"stream":            stream,
		"temperature":       m.Parameters.Temperature,
		"presence_penalty":  m.Parameters.PresencePenalty,
		"frequency_penalty": m.Parameters.FrequencyPenalty,
		"top_p":             m.Parameters.TopP,
		"max_tokens":        m.Parameters.MaxTokens,
	}
	for key, value := range m.Parameters.BodyParams {
		body[key] = value
	}

	encoded, err := json.Marshal(body)
	if err != nil {
		return Request{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	return Request{
		URL:     ResolveEndpoint(m.API.BaseURL, m.Endpoint),
		Headers: headers,
		Body:    encoded,
		Stream:  stream,
	}, nil
}
