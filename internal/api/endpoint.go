// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"strings"

	"github.com/jeranaias/chatdeck/internal/model"
)

// =============================================================================
// ENDPOINT RESOLUTION
// =============================================================================

// ResolveEndpoint derives the full request URL from a base URL and a
// logical endpoint name.
//
// Rules, in order:
//   - trailing slashes on the base URL are stripped;
//   - a trailing "#" is an exact-URL override: it is removed and the
//     endpoint name is ignored;
//   - a base URL already containing a "/v1" path segment gets "/" +
//     endpoint appended;
//   - otherwise "/v1/" + endpoint is appended.
//
// The URL is not validated; a malformed base URL fails at transport time.
func ResolveEndpoint(baseURL string, endpoint model.EndpointKind) string {
	clean := strings.TrimRight(baseURL, "/")

	if strings.HasSuffix(clean, "#") {
		return strings.TrimSuffix(clean, "#")
	}

	// The suffix check catches "/v1" left bare after trailing slashes
	// were trimmed away.
	if strings.Contains(clean, "/v1/") || strings.HasSuffix(clean, "/v1") {
		return clean + "/" + endpoint.String()
	}

	return clean + "/v1/" + endpoint.String()
}
