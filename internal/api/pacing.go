// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"

	"golang.org/x/time/rate"
)

// =============================================================================
// TYPEWRITER PACING
// =============================================================================

// Typewriter wraps a progress callback so content appears to be typed out
// character by character at roughly cps characters per second.
//
// This is a presentation-layer decorator over the progress stream, not a
// change to decoder semantics: the wrapped callback still receives full
// accumulated strings, each one rune longer than the last, in strictly
// increasing order. Consumers that don't want pacing simply don't wrap.
//
// The returned callback blocks on the rate limiter, so apply it only where
// the progress path may block (it always may; the client invokes callbacks
// from its own request goroutine). Cancel ctx to release a blocked call.
func Typewriter(ctx context.Context, next ProgressFunc, cps float64) ProgressFunc {
	if next == nil {
		return nil
	}
	if cps <= 0 {
		return next
	}

	limiter := rate.NewLimiter(rate.Limit(cps), 1)
	emitted := 0 // runes already forwarded

	return func(fullContent string) {
		runes := []rune(fullContent)
		if len(runes) <= emitted {
			// Not growth; forward as-is (e.g. the non-streaming single tick
			// after a reset, or identical content).
			next(fullContent)
			return
		}

		for i := emitted + 1; i <= len(runes); i++ {
			if err := limiter.Wait(ctx); err != nil {
				// Cancelled mid-emission: flush the rest immediately so the
				// consumer still ends on the latest content.
				next(fullContent)
				emitted = len(runes)
				return
			}
			next(string(runes[:i]))
		}
		emitted = len(runes)
	}
}
