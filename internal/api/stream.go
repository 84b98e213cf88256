// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"encoding/json"
	"io"
	"strings"
)

// =============================================================================
// STREAMING CONSTANTS
// =============================================================================

// readBufferSize is the chunk size for a single read from the response body.
const readBufferSize = 4 * 1024

// dataPrefix is the SSE field prefix carrying a payload line.
const dataPrefix = "data: "

// doneSentinel marks the end-of-stream payload. It carries no content and
// is not itself a terminal signal; the read loop ends when the transport
// reports completion.
const doneSentinel = "[DONE]"

// =============================================================================
// STREAM CHUNK
// =============================================================================

// StreamChunk is the parsed JSON payload of one SSE data line.
type StreamChunk struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
			Role    string `json:"role,omitempty"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// GetContent returns the content delta from the first choice.
func (c *StreamChunk) GetContent() string {
	if len(c.Choices) > 0 {
		return c.Choices[0].Delta.Content
	}
	return ""
}

// =============================================================================
// SSE DECODER
// =============================================================================

// Decoder incrementally parses an SSE chat-completion stream.
//
// Bytes are appended to a carry-over buffer before line splitting, so lines
// (and multi-byte runes) split across chunk boundaries are reassembled
// before decoding. A line is only processed once its terminating newline
// has arrived; whatever trails the last newline is held back for the next
// read and flushed after the stream ends.
type Decoder struct {
	pending     strings.Builder // carry-over fragment across reads
	accumulated strings.Builder
}

// NewDecoder creates a decoder with empty buffers. A Decoder is single-use;
// create a new one per request.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode consumes the reader until EOF or context cancellation, invoking
// onProgress with the full accumulated content after every content delta.
// It returns the final accumulated content.
//
// Malformed or partial JSON on an individual line is swallowed: one bad
// line must not lose the rest of the response. Only a failed read aborts,
// and the accumulated content so far remains available via Accumulated.
func (d *Decoder) Decode(ctx context.Context, r io.Reader, onProgress ProgressFunc) (string, error) {
	buf := make([]byte, readBufferSize)

	for {
		select {
		case <-ctx.Done():
			return d.Accumulated(), ctx.Err()
		default:
		}

		n, err := r.Read(buf)
		if n > 0 {
			d.feed(string(buf[:n]), onProgress)
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			return d.Accumulated(), err
		}
	}

	// A trailing line with no terminating newline is still a line.
	d.flush(onProgress)

	return d.Accumulated(), nil
}

// Accumulated returns the content accumulated so far.
func (d *Decoder) Accumulated() string {
	return d.accumulated.String()
}

// feed appends a chunk to the carry-over buffer, then processes every
// complete line, holding back the trailing fragment.
func (d *Decoder) feed(chunk string, onProgress ProgressFunc) {
	d.pending.WriteString(chunk)

	text := d.pending.String()
	lines := strings.Split(text, "\n")

	d.pending.Reset()
	d.pending.WriteString(lines[len(lines)-1])

	for _, line := range lines[:len(lines)-1] {
		d.processLine(line, onProgress)
	}
}

// flush runs the remaining buffered fragment through the line logic.
func (d *Decoder) flush(onProgress ProgressFunc) {
	rest := d.pending.String()
	d.pending.Reset()
	if rest == "" {
		return
	}
	for _, line := range strings.Split(rest, "\n") {
		d.processLine(line, onProgress)
	}
}

// processLine extracts and applies the content delta of one SSE line.
func (d *Decoder) processLine(line string, onProgress ProgressFunc) {
	line = strings.TrimSuffix(line, "\r")
	if !strings.HasPrefix(line, dataPrefix) {
		return
	}

	payload := line[len(dataPrefix):]
	if payload == doneSentinel {
		return
	}

	var chunk StreamChunk
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		// Incomplete or garbled fragment; skip it, keep the stream.
		return
	}

	content := chunk.GetContent()
	if content == "" {
		return
	}

	d.accumulated.WriteString(content)
	if onProgress != nil {
		onProgress(d.accumulated.String())
	}
}
