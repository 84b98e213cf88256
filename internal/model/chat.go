// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/chatdeck/internal/util"
)

// =============================================================================
// SENDER AND STATUS
// =============================================================================

// Sender identifies who produced a message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderAI   Sender = "ai"
)

// Role returns the wire role for the sender ("user" or "assistant").
func (s Sender) Role() string {
	if s == SenderAI {
		return "assistant"
	}
	return "user"
}

// Status is the delivery state of a message.
//
// Lifecycle: a message is created in StatusSending, reaches StatusSent on
// success or StatusError on failure, and re-enters StatusSending only via
// an explicit retry or edit.
type Status string

const (
	StatusSending Status = "sending"
	StatusSent    Status = "sent"
	StatusError   Status = "error"
)

// Terminal reports whether the status is a terminal state.
func (s Status) Terminal() bool {
	return s == StatusSent || s == StatusError
}

// =============================================================================
// ATTACHMENT
// =============================================================================

// Attachment is a file attached to a message. Content is carried verbatim;
// upload and validation happen elsewhere.
type Attachment struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	Content string `json:"content"`
}

// =============================================================================
// MESSAGE
// =============================================================================

// Message is a single message in a chat. Content grows during streaming;
// Timestamp records the last mutation and never decreases.
type Message struct {
	ID          string       `json:"id"`
	Content     string       `json:"content"`
	Timestamp   time.Time    `json:"timestamp"`
	Sender      Sender       `json:"sender"`
	Status      Status       `json:"status"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// NewUserMessage creates a delivered user message. User input is assumed
// delivered, so the status is sent from the start.
func NewUserMessage(content string) *Message {
	return &Message{
		ID:        generateID(),
		Content:   content,
		Timestamp: time.Now(),
		Sender:    SenderUser,
		Status:    StatusSent,
	}
}

// NewAssistantPlaceholder creates the empty assistant message appended on
// send, later filled in by progress callbacks.
func NewAssistantPlaceholder() *Message {
	return &Message{
		ID:        generateID(),
		Timestamp: time.Now(),
		Sender:    SenderAI,
		Status:    StatusSending,
	}
}

// Touch advances the timestamp, keeping it monotone non-decreasing.
func (m *Message) Touch(now time.Time) {
	if now.After(m.Timestamp) {
		m.Timestamp = now
	}
}

// Preview returns a truncated single-line preview of the content.
// Uses rune-based truncation to handle Unicode correctly.
func (m *Message) Preview(maxLen int) string {
	return util.TruncateRunes(m.Content, maxLen)
}

// =============================================================================
// CHAT
// =============================================================================

// Chat holds an ordered message sequence with metadata. Message order is
// append order and is never changed except by deletion.
type Chat struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Messages  []*Message `json:"messages"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	ModelID   string     `json:"model_id"`
	IsStarred bool       `json:"is_starred"`
}

// NewChat creates an empty chat bound to a model configuration.
func NewChat(modelID string) *Chat {
	now := time.Now()
	return &Chat{
		ID:        generateID(),
		Title:     "New Chat",
		Messages:  make([]*Message, 0),
		CreatedAt: now,
		UpdatedAt: now,
		ModelID:   modelID,
	}
}

// AddMessage appends a message, bumps UpdatedAt, and auto-titles the chat
// from the first user message if no title has been set.
func (c *Chat) AddMessage(msg *Message) {
	c.Messages = append(c.Messages, msg)
	c.UpdatedAt = time.Now()
	c.updateTitle()
}

// RemoveMessage removes a message by ID. Returns false if not found.
func (c *Chat) RemoveMessage(id string) bool {
	for i, msg := range c.Messages {
		if msg.ID == id {
			c.Messages = append(c.Messages[:i], c.Messages[i+1:]...)
			c.UpdatedAt = time.Now()
			return true
		}
	}
	return false
}

// MessageByID returns the message with the given ID, or nil.
func (c *Chat) MessageByID(id string) *Message {
	for _, msg := range c.Messages {
		if msg.ID == id {
			return msg
		}
	}
	return nil
}

// MessageIndex returns the position of a message by ID, or -1.
// Position, not timestamp, is authoritative for ordering.
func (c *Chat) MessageIndex(id string) int {
	for i, msg := range c.Messages {
		if msg.ID == id {
			return i
		}
	}
	return -1
}

// MessageCount returns the number of messages.
func (c *Chat) MessageCount() int {
	return len(c.Messages)
}

// Preview returns a short preview from the first user message.
func (c *Chat) Preview() string {
	for _, msg := range c.Messages {
		if msg.Sender == SenderUser && msg.Content != "" {
			return msg.Preview(80)
		}
	}
	return ""
}

// Clone creates a deep copy of the chat.
func (c *Chat) Clone() *Chat {
	clone := *c
	clone.Messages = make([]*Message, len(c.Messages))
	for i, msg := range c.Messages {
		msgCopy := *msg
		clone.Messages[i] = &msgCopy
	}
	return &clone
}

// updateTitle auto-generates a title from the first user message if unset
// or still the default.
func (c *Chat) updateTitle() {
	if c.Title != "" && c.Title != "New Chat" {
		return
	}
	for _, msg := range c.Messages {
		if msg.Sender == SenderUser && msg.Content != "" {
			c.Title = util.TruncateRunes(singleLine(msg.Content), 50)
			return
		}
	}
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// generateID creates a unique, creation-ordered-enough ID for messages
// and chats.
func generateID() string {
	return uuid.NewString()
}

// singleLine collapses newlines so titles stay one line.
func singleLine(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch r {
		case '\n':
			out = append(out, ' ')
		case '\r':
		default:
			out = append(out, r)
		}
	}
	return string(out)
}
