// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for
// chatdeck.
//
// Configuration is TOML with sensible defaults, environment variable
// overrides, and validation. The file lives at ~/.chatdeck/config.toml
// unless a path is given explicitly; writes are atomic so a crash never
// leaves a half-written file behind.
package config
