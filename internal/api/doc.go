// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api implements the chat-completion client for OpenAI-compatible
// endpoints.
//
// The package is built from four pieces:
//
//   - ResolveEndpoint derives the request URL from a base URL and a
//     logical endpoint name.
//   - BuildRequest assembles headers and the JSON body from a model
//     configuration, a message history, and global defaults.
//   - Decoder parses Server-Sent-Events incrementally, reassembling lines
//     across chunk boundaries and swallowing malformed fragments.
//   - Client orchestrates the above over HTTP, producing either a single
//     final string (non-streaming) or a sequence of growing partial
//     strings surfaced through a progress callback.
//
// The progress callback always receives the full accumulated content so
// far, not the delta. Consumers overwrite state wholesale on each tick,
// which keeps a dropped callback harmless.
//
// The client performs no automatic retries; a failed request surfaces to
// the caller, which owns the message error state and any user-triggered
// retry.
package api
