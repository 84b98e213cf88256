// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/jeranaias/chatdeck/internal/model"
)

// =============================================================================
// CLIENT CONSTANTS
// =============================================================================

const (
	// DefaultTimeout bounds non-streaming requests. Streaming requests have
	// no client timeout and are controlled via context.
	DefaultTimeout = 60 * time.Second

	// MaxResponseSize caps a non-streaming response body.
	MaxResponseSize = 10 * 1024 * 1024 // 10MB
)

var (
	// Shared HTTP clients with connection pooling. The streaming client has
	// no timeout; cancellation comes from the request context.
	sharedHTTPClient = &http.Client{
		Transport: newPooledTransport(),
		Timeout:   DefaultTimeout,
	}

	sharedStreamingClient = &http.Client{
		Transport: newPooledTransport(),
	}
)

func newPooledTransport() *http.Transport {
	return &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	}
}

// =============================================================================
// PROGRESS CALLBACK
// =============================================================================

// ProgressFunc receives the full accumulated content after each delta.
// For a non-streaming request it is invoked exactly once, with the final
// content, so consumers render identically on both paths.
type ProgressFunc func(fullContent string)

// =============================================================================
// CHAT COMPLETION CLIENT
// =============================================================================

// Client issues chat-completion requests against arbitrary
// OpenAI-compatible endpoints described by model configurations.
type Client struct {
	httpClient      *http.Client
	streamingClient *http.Client
	log             zerolog.Logger
}

// NewClient creates a client using the shared pooled transports.
func NewClient(log zerolog.Logger) *Client {
	return &Client{
		httpClient:      sharedHTTPClient,
		streamingClient: sharedStreamingClient,
		log:             log,
	}
}

// WithHTTPClients overrides both transports. Used by tests.
func (c *Client) WithHTTPClients(plain, streaming *http.Client) *Client {
	c.httpClient = plain
	c.streamingClient = streaming
	return c
}

// nonStreamingResponse is the expected shape of a non-streaming reply.
type nonStreamingResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// SendChatRequest issues one chat-completion request and returns the final
// assistant content.
//
// When effective streaming is off, the full JSON body is awaited, the
// content extracted, and onProgress (if non-nil) invoked once with it.
// When streaming is on, the response body is fed through the SSE decoder
// and every growing accumulated string is forwarded to onProgress.
//
// Failures: a non-2xx status or network failure yields *TransportError; a
// non-streaming body missing choices[0].message.content yields
// *ResponseShapeError; a read failure mid-stream yields *StreamError with
// the partial content. Errors are never swallowed at this layer — the
// caller owns turning them into message state.
func (c *Client) SendChatRequest(ctx context.Context, m *model.Model, history []*model.Message, g Globals, onProgress ProgressFunc) (string, error) {
	if m.API.APIKey == "" {
		return "", ErrNotConfigured
	}

	req, err := BuildRequest(m, history, g)
	if err != nil {
		return "", err
	}

	if req.Stream {
		return c.sendStreaming(ctx, req, onProgress)
	}
	return c.sendBlocking(ctx, req, onProgress)
}

// sendBlocking performs the non-streaming path.
func (c *Client) sendBlocking(ctx context.Context, req Request, onProgress ProgressFunc) (string, error) {
	resp, err := c.do(ctx, c.httpClient, req, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := readLimited(resp.Body)
	if err != nil {
		return "", &TransportError{Err: err}
	}

	if !successStatus(resp.StatusCode) {
		return "", &TransportError{Status: resp.StatusCode, Body: string(body)}
	}

	var parsed nonStreamingResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", &ResponseShapeError{Detail: err.Error()}
	}
	if len(parsed.Choices) == 0 {
		return "", &ResponseShapeError{Detail: "no choices in response"}
	}

	content := parsed.Choices[0].Message.Content
	if onProgress != nil {
		onProgress(content)
	}
	return content, nil
}

// sendStreaming performs the streaming path. The response body is closed
// on every exit path, including decode failures.
func (c *Client) sendStreaming(ctx context.Context, req Request, onProgress ProgressFunc) (string, error) {
	resp, err := c.do(ctx, c.streamingClient, req, true)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if !successStatus(resp.StatusCode) {
		body, _ := readLimited(resp.Body)
		return "", &TransportError{Status: resp.StatusCode, Body: string(body)}
	}

	decoder := NewDecoder()
	content, err := decoder.Decode(ctx, resp.Body, onProgress)
	if err != nil {
		return content, &StreamError{Partial: content, Err: err}
	}
	return content, nil
}

// do sends the assembled request. Headers and bodies are never logged;
// only the method, path, status, and duration are.
func (c *Client) do(ctx context.Context, client *http.Client, req Request, streaming bool) (*http.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header = req.Headers.Clone()
	if streaming {
		httpReq.Header.Set("Accept", "text/event-stream")
		httpReq.Header.Set("Cache-Control", "no-cache")
	}

	c.log.Debug().Str("method", httpReq.Method).Str("path", httpReq.URL.Path).Msg("api request")

	start := time.Now()
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	c.log.Debug().Int("status", resp.StatusCode).Dur("duration", time.Since(start)).Msg("api response")
	return resp, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// successStatus reports whether the HTTP status is a success.
func successStatus(code int) bool {
	return code >= 200 && code < 300
}

// readLimited reads a response body with a size cap.
func readLimited(r io.Reader) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, MaxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) == MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}
