// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chats, messages, and
// model endpoint configurations.
//
// A Model describes how to call one OpenAI-compatible endpoint: base URL,
// credentials, request-shaping parameters, and capability flags. Chats and
// Messages are the persisted conversation state owned by the store package.
//
// Model configurations are validated once at the boundary (config load or
// save) rather than at point of use; see Model.Validate.
package model
