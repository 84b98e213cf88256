// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
	"testing"
	"time"
)

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestNewUserMessage(t *testing.T) {
	msg := NewUserMessage("hello")

	if msg.ID == "" {
		t.Error("expected non-empty ID")
	}
	if msg.Sender != SenderUser {
		t.Errorf("Sender = %q, want %q", msg.Sender, SenderUser)
	}
	if msg.Status != StatusSent {
		t.Errorf("Status = %q, want %q (user input is assumed delivered)", msg.Status, StatusSent)
	}
	if msg.Content != "hello" {
		t.Errorf("Content = %q, want %q", msg.Content, "hello")
	}
}

func TestNewAssistantPlaceholder(t *testing.T) {
	msg := NewAssistantPlaceholder()

	if msg.Sender != SenderAI {
		t.Errorf("Sender = %q, want %q", msg.Sender, SenderAI)
	}
	if msg.Status != StatusSending {
		t.Errorf("Status = %q, want %q", msg.Status, StatusSending)
	}
	if msg.Content != "" {
		t.Errorf("placeholder content = %q, want empty", msg.Content)
	}
}

func TestMessage_Touch_Monotone(t *testing.T) {
	msg := NewUserMessage("hi")
	orig := msg.Timestamp

	// Touching with an earlier time must not move the timestamp back.
	msg.Touch(orig.Add(-time.Hour))
	if !msg.Timestamp.Equal(orig) {
		t.Errorf("Touch with earlier time moved timestamp from %v to %v", orig, msg.Timestamp)
	}

	later := orig.Add(time.Second)
	msg.Touch(later)
	if !msg.Timestamp.Equal(later) {
		t.Errorf("Touch with later time: timestamp = %v, want %v", msg.Timestamp, later)
	}
}

func TestSender_Role(t *testing.T) {
	if got := SenderUser.Role(); got != "user" {
		t.Errorf("SenderUser.Role() = %q, want %q", got, "user")
	}
	if got := SenderAI.Role(); got != "assistant" {
		t.Errorf("SenderAI.Role() = %q, want %q", got, "assistant")
	}
}

func TestStatus_Terminal(t *testing.T) {
	if StatusSending.Terminal() {
		t.Error("sending should not be terminal")
	}
	if !StatusSent.Terminal() || !StatusError.Terminal() {
		t.Error("sent and error should be terminal")
	}
}

// =============================================================================
// CHAT TESTS
// =============================================================================

func TestNewChat(t *testing.T) {
	chat := NewChat("gpt4")

	if chat.ID == "" {
		t.Error("expected non-empty ID")
	}
	if chat.Title != "New Chat" {
		t.Errorf("Title = %q, want %q", chat.Title, "New Chat")
	}
	if chat.ModelID != "gpt4" {
		t.Errorf("ModelID = %q, want %q", chat.ModelID, "gpt4")
	}
	if chat.MessageCount() != 0 {
		t.Errorf("MessageCount = %d, want 0", chat.MessageCount())
	}
}

func TestChat_AddMessage_AutoTitle(t *testing.T) {
	chat := NewChat("gpt4")
	chat.AddMessage(NewUserMessage("What is the capital\nof France?"))

	if chat.Title != "What is the capital of France?" {
		t.Errorf("Title = %q, want newline-collapsed first user message", chat.Title)
	}

	// Title stays once set.
	chat.AddMessage(NewUserMessage("Another question entirely"))
	if chat.Title != "What is the capital of France?" {
		t.Errorf("Title changed after second message: %q", chat.Title)
	}
}

func TestChat_AddMessage_AutoTitleTruncates(t *testing.T) {
	chat := NewChat("gpt4")
	chat.AddMessage(NewUserMessage(strings.Repeat("x", 80)))

	runes := []rune(chat.Title)
	if len(runes) != 50 {
		t.Errorf("title length = %d runes, want 50", len(runes))
	}
	if !strings.HasSuffix(chat.Title, "...") {
		t.Errorf("truncated title should end with ellipsis: %q", chat.Title)
	}
}

func TestChat_AddMessage_BumpsUpdatedAt(t *testing.T) {
	chat := NewChat("gpt4")
	before := chat.UpdatedAt

	time.Sleep(time.Millisecond)
	chat.AddMessage(NewUserMessage("hello"))

	if !chat.UpdatedAt.After(before) {
		t.Error("AddMessage should bump UpdatedAt")
	}
}

func TestChat_RemoveMessage(t *testing.T) {
	chat := NewChat("gpt4")
	m1 := NewUserMessage("one")
	m2 := NewUserMessage("two")
	chat.AddMessage(m1)
	chat.AddMessage(m2)

	if !chat.RemoveMessage(m1.ID) {
		t.Fatal("RemoveMessage returned false for existing message")
	}
	if chat.MessageCount() != 1 {
		t.Errorf("MessageCount = %d, want 1", chat.MessageCount())
	}
	if chat.Messages[0].ID != m2.ID {
		t.Error("wrong message removed")
	}
	if chat.RemoveMessage("missing") {
		t.Error("RemoveMessage returned true for missing ID")
	}
}

func TestChat_MessageIndex(t *testing.T) {
	chat := NewChat("gpt4")
	m1 := NewUserMessage("one")
	m2 := NewUserMessage("two")
	chat.AddMessage(m1)
	chat.AddMessage(m2)

	if got := chat.MessageIndex(m2.ID); got != 1 {
		t.Errorf("MessageIndex = %d, want 1", got)
	}
	if got := chat.MessageIndex("missing"); got != -1 {
		t.Errorf("MessageIndex for missing = %d, want -1", got)
	}
}

func TestChat_Clone_Deep(t *testing.T) {
	chat := NewChat("gpt4")
	msg := NewUserMessage("original")
	chat.AddMessage(msg)

	clone := chat.Clone()
	clone.Messages[0].Content = "mutated"

	if chat.Messages[0].Content != "original" {
		t.Error("Clone is not deep: mutating clone changed original")
	}
}
