// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"testing"
)

func TestTypewriter_EmitsRuneByRune(t *testing.T) {
	var ticks []string
	// High cps so the limiter never actually delays the test.
	paced := Typewriter(context.Background(), func(full string) {
		ticks = append(ticks, full)
	}, 100000)

	paced("He")
	paced("Hello")

	want := []string{"H", "He", "Hel", "Hell", "Hello"}
	if len(ticks) != len(want) {
		t.Fatalf("ticks = %v, want %v", ticks, want)
	}
	for i := range want {
		if ticks[i] != want[i] {
			t.Errorf("tick %d = %q, want %q", i, ticks[i], want[i])
		}
	}
}

func TestTypewriter_MultiByteRunes(t *testing.T) {
	var ticks []string
	paced := Typewriter(context.Background(), func(full string) {
		ticks = append(ticks, full)
	}, 100000)

	paced("世界")

	want := []string{"世", "世界"}
	if len(ticks) != 2 || ticks[0] != want[0] || ticks[1] != want[1] {
		t.Errorf("ticks = %v, want %v", ticks, want)
	}
}

func TestTypewriter_NonGrowthForwardedAsIs(t *testing.T) {
	var ticks []string
	paced := Typewriter(context.Background(), func(full string) {
		ticks = append(ticks, full)
	}, 100000)

	paced("abc")
	paced("abc") // same length, not growth

	if got := len(ticks); got != 4 {
		t.Fatalf("tick count = %d, want 4 (3 emission + 1 forward): %v", got, ticks)
	}
	if ticks[3] != "abc" {
		t.Errorf("forwarded tick = %q, want %q", ticks[3], "abc")
	}
}

func TestTypewriter_CancelFlushesRemainder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var ticks []string
	// 1 cps: every Wait after the initial token would block, so the
	// cancelled context forces the flush path.
	paced := Typewriter(ctx, func(full string) {
		ticks = append(ticks, full)
	}, 1)

	paced("Hello")

	if len(ticks) == 0 {
		t.Fatal("no ticks after cancel")
	}
	if last := ticks[len(ticks)-1]; last != "Hello" {
		t.Errorf("last tick = %q, want full content %q", last, "Hello")
	}
}

func TestTypewriter_Passthrough(t *testing.T) {
	if got := Typewriter(context.Background(), nil, 30); got != nil {
		t.Error("nil callback should stay nil")
	}

	called := false
	next := func(string) { called = true }
	paced := Typewriter(context.Background(), next, 0)
	paced("x")
	if !called {
		t.Error("cps <= 0 should return the callback unchanged")
	}
}
