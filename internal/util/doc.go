// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides utility functions for chatdeck: UTF-8 safe string
// truncation and crash-safe atomic file writes.
package util
