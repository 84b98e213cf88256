// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store owns the conversation state: the chat list, the active
// chat, and the message lifecycle driven by completion requests.
//
// All mutation goes through a single Store guarded by a mutex, including
// the progress callbacks that arrive from a request goroutine mid-stream.
// Every structural mutation is persisted through a pluggable Persister;
// streaming progress ticks mutate in memory only and the final state is
// persisted when the request settles.
package store
