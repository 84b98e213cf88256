// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jeranaias/chatdeck/internal/api"
	"github.com/jeranaias/chatdeck/internal/model"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrChatNotFound indicates the chat ID does not exist.
	ErrChatNotFound = errors.New("chat not found")

	// ErrMessageNotFound indicates the message ID does not exist in the chat.
	ErrMessageNotFound = errors.New("message not found")

	// ErrRequestInFlight indicates the chat already has a pending completion
	// request. One request per chat at a time; callers retry after it
	// settles.
	ErrRequestInFlight = errors.New("a request is already in flight for this chat")

	// ErrNotRetryable indicates a retry was requested on a non-assistant
	// message.
	ErrNotRetryable = errors.New("only assistant messages can be retried")
)

// =============================================================================
// DEPENDENCIES
// =============================================================================

// Persister stores and retrieves opaque blobs by key.
type Persister interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Completer issues a chat-completion request. Satisfied by *api.Client.
type Completer interface {
	SendChatRequest(ctx context.Context, m *model.Model, history []*model.Message, g api.Globals, onProgress api.ProgressFunc) (string, error)
}

// chatsKey is the persistence key for the full chat state blob.
const chatsKey = "chats"

// persistedState is the JSON shape written under chatsKey.
type persistedState struct {
	Chats        []*model.Chat `json:"chats"`
	ActiveChatID string        `json:"active_chat_id"`
}

// =============================================================================
// STORE
// =============================================================================

// Store holds every chat and coordinates message sends against the
// completion client. Chats are kept sorted: starred first, then most
// recently updated.
type Store struct {
	mu       sync.Mutex
	chats    []*model.Chat
	activeID string
	inflight map[string]bool

	persister Persister
	completer Completer
	globals   api.Globals
	observer  ProgressObserver
	log       zerolog.Logger
}

// ProgressObserver is notified of every progress tick applied to a
// message. It runs under the store lock and must not call back into the
// store.
type ProgressObserver func(chatID, messageID, fullContent string)

// New creates an empty store. Call Load to restore persisted chats.
func New(p Persister, c Completer, log zerolog.Logger) *Store {
	return &Store{
		chats:     make([]*model.Chat, 0),
		inflight:  make(map[string]bool),
		persister: p,
		completer: c,
		log:       log,
	}
}

// SetGlobals replaces the request globals applied to subsequent sends.
func (s *Store) SetGlobals(g api.Globals) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.globals = g
}

// OnProgress registers an observer for streamed message updates.
func (s *Store) OnProgress(fn ProgressObserver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observer = fn
}

// Load restores chats and the active chat from the persister. A missing
// blob leaves the store empty.
func (s *Store) Load(ctx context.Context) error {
	blob, err := s.persister.Get(ctx, chatsKey)
	if err != nil {
		return fmt.Errorf("failed to load chats: %w", err)
	}
	if len(blob) == 0 {
		return nil
	}

	var state persistedState
	if err := json.Unmarshal(blob, &state); err != nil {
		return fmt.Errorf("failed to decode chats: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.chats = state.Chats
	if s.chats == nil {
		s.chats = make([]*model.Chat, 0)
	}
	s.activeID = state.ActiveChatID
	s.sortLocked()
	return nil
}

// saveLocked persists the current state. Caller holds the lock.
// Persistence failures are logged, not propagated: the in-memory state is
// authoritative and a failed write must not undo a completed mutation.
func (s *Store) saveLocked(ctx context.Context) {
	blob, err := json.Marshal(persistedState{Chats: s.chats, ActiveChatID: s.activeID})
	if err != nil {
		s.log.Error().Err(err).Msg("failed to encode chats")
		return
	}
	if err := s.persister.Set(ctx, chatsKey, blob); err != nil {
		s.log.Error().Err(err).Msg("failed to persist chats")
	}
}

// =============================================================================
// CHAT OPERATIONS
// =============================================================================

// CreateChat creates a new chat bound to a model configuration and makes
// it active.
func (s *Store) CreateChat(ctx context.Context, modelID string) *model.Chat {
	chat := model.NewChat(modelID)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.chats = append(s.chats, chat)
	s.activeID = chat.ID
	s.sortLocked()
	s.saveLocked(ctx)
	return chat.Clone()
}

// DeleteChat removes a chat. If it was active, the most recent remaining
// chat becomes active.
func (s *Store) DeleteChat(ctx context.Context, chatID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, c := range s.chats {
		if c.ID == chatID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return ErrChatNotFound
	}

	s.chats = append(s.chats[:idx], s.chats[idx+1:]...)
	delete(s.inflight, chatID)
	if s.activeID == chatID {
		s.activeID = ""
		if len(s.chats) > 0 {
			s.activeID = s.chats[0].ID
		}
	}
	s.saveLocked(ctx)
	return nil
}

// SetActiveChat changes which chat is active.
func (s *Store) SetActiveChat(ctx context.Context, chatID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findLocked(chatID) == nil {
		return ErrChatNotFound
	}
	s.activeID = chatID
	s.saveLocked(ctx)
	return nil
}

// ActiveChat returns a copy of the active chat, or nil if none.
func (s *Store) ActiveChat() *model.Chat {
	s.mu.Lock()
	defer s.mu.Unlock()

	if chat := s.findLocked(s.activeID); chat != nil {
		return chat.Clone()
	}
	return nil
}

// UpdateChatTitle renames a chat. An explicit title sticks: auto-titling
// only ever fills empty or default titles.
func (s *Store) UpdateChatTitle(ctx context.Context, chatID, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	chat := s.findLocked(chatID)
	if chat == nil {
		return ErrChatNotFound
	}
	chat.Title = title
	chat.UpdatedAt = time.Now()
	s.sortLocked()
	s.saveLocked(ctx)
	return nil
}

// StarChat toggles a chat's starred flag and re-sorts the list.
func (s *Store) StarChat(ctx context.Context, chatID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	chat := s.findLocked(chatID)
	if chat == nil {
		return ErrChatNotFound
	}
	chat.IsStarred = !chat.IsStarred
	s.sortLocked()
	s.saveLocked(ctx)
	return nil
}

// Chats returns copies of all chats, starred first, then most recently
// updated.
func (s *Store) Chats() []*model.Chat {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*model.Chat, len(s.chats))
	for i, c := range s.chats {
		out[i] = c.Clone()
	}
	return out
}

// =============================================================================
// MESSAGE OPERATIONS
// =============================================================================

// SendMessage appends the user's message and an assistant placeholder,
// then runs the completion request, streaming progress into the
// placeholder. Blocks until the request settles; the returned error is
// the request's outcome (the message state already reflects it).
//
// A second send on a chat with a pending request fails with
// ErrRequestInFlight.
func (s *Store) SendMessage(ctx context.Context, chatID, text string, m *model.Model) error {
	s.mu.Lock()
	chat := s.findLocked(chatID)
	if chat == nil {
		s.mu.Unlock()
		return ErrChatNotFound
	}
	if s.inflight[chatID] {
		s.mu.Unlock()
		return ErrRequestInFlight
	}

	userMsg := model.NewUserMessage(text)
	placeholder := model.NewAssistantPlaceholder()
	chat.AddMessage(userMsg)
	chat.AddMessage(placeholder)

	// Request context excludes the placeholder being filled.
	history := historyBefore(chat, placeholder.ID)
	s.inflight[chatID] = true
	s.sortLocked()
	s.saveLocked(ctx)
	g := s.globals
	s.mu.Unlock()

	return s.runRequest(ctx, chatID, placeholder.ID, m, history, g)
}

// RetryMessage regenerates an assistant message in place. The request
// context is every message strictly before the target's position; the
// target keeps its ID and position, re-enters sending, and is overwritten
// with the new outcome. Chat length never changes.
func (s *Store) RetryMessage(ctx context.Context, chatID, messageID string, m *model.Model) error {
	s.mu.Lock()
	chat := s.findLocked(chatID)
	if chat == nil {
		s.mu.Unlock()
		return ErrChatNotFound
	}
	if s.inflight[chatID] {
		s.mu.Unlock()
		return ErrRequestInFlight
	}

	target := chat.MessageByID(messageID)
	if target == nil {
		s.mu.Unlock()
		return ErrMessageNotFound
	}
	if target.Sender != model.SenderAI {
		s.mu.Unlock()
		return ErrNotRetryable
	}

	target.Status = model.StatusSending
	target.Content = ""
	target.Touch(time.Now())
	chat.UpdatedAt = time.Now()

	history := historyBefore(chat, messageID)
	s.inflight[chatID] = true
	s.sortLocked()
	s.saveLocked(ctx)
	g := s.globals
	s.mu.Unlock()

	return s.runRequest(ctx, chatID, messageID, m, history, g)
}

// DeleteMessage removes a message from a chat.
func (s *Store) DeleteMessage(ctx context.Context, chatID, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	chat := s.findLocked(chatID)
	if chat == nil {
		return ErrChatNotFound
	}
	if !chat.RemoveMessage(messageID) {
		return ErrMessageNotFound
	}
	s.sortLocked()
	s.saveLocked(ctx)
	return nil
}

// UpdateMessage replaces a message's content, bumping its timestamp.
func (s *Store) UpdateMessage(ctx context.Context, chatID, messageID, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	chat := s.findLocked(chatID)
	if chat == nil {
		return ErrChatNotFound
	}
	msg := chat.MessageByID(messageID)
	if msg == nil {
		return ErrMessageNotFound
	}
	msg.Content = content
	msg.Touch(time.Now())
	chat.UpdatedAt = time.Now()
	s.sortLocked()
	s.saveLocked(ctx)
	return nil
}

// =============================================================================
// REQUEST EXECUTION
// =============================================================================

// runRequest drives one completion request against a target message.
// Called without the lock held; progress callbacks and the final
// transition re-acquire it.
func (s *Store) runRequest(ctx context.Context, chatID, messageID string, m *model.Model, history []*model.Message, g api.Globals) error {
	onProgress := func(full string) {
		s.mu.Lock()
		defer s.mu.Unlock()
		chat := s.findLocked(chatID)
		if chat == nil {
			return
		}
		msg := chat.MessageByID(messageID)
		if msg == nil || msg.Status.Terminal() {
			// The message already settled; a late tick from the request
			// goroutine must not resurrect it.
			return
		}
		msg.Content = full
		msg.Touch(time.Now())
		if s.observer != nil {
			s.observer(chatID, messageID, full)
		}
	}

	content, err := s.completer.SendChatRequest(ctx, m, history, g, onProgress)

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, chatID)

	chat := s.findLocked(chatID)
	if chat == nil {
		// Chat deleted mid-request; nothing to settle.
		return err
	}
	msg := chat.MessageByID(messageID)
	if msg == nil {
		return err
	}

	if err != nil {
		msg.Status = model.StatusError
		// Keep whatever partial content streamed in before the failure.
		if content != "" {
			msg.Content = content
		}
		s.log.Warn().Err(err).Str("chat", chatID).Msg("completion request failed")
	} else {
		msg.Status = model.StatusSent
		msg.Content = content
	}
	msg.Touch(time.Now())
	chat.UpdatedAt = time.Now()
	s.sortLocked()
	s.saveLocked(ctx)
	return err
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// findLocked returns the chat with the given ID. Caller holds the lock.
func (s *Store) findLocked(chatID string) *model.Chat {
	for _, c := range s.chats {
		if c.ID == chatID {
			return c
		}
	}
	return nil
}

// sortLocked orders chats starred-first, then by UpdatedAt descending.
// Caller holds the lock.
func (s *Store) sortLocked() {
	sort.SliceStable(s.chats, func(i, j int) bool {
		a, b := s.chats[i], s.chats[j]
		if a.IsStarred != b.IsStarred {
			return a.IsStarred
		}
		return a.UpdatedAt.After(b.UpdatedAt)
	})
}

// historyBefore returns copies of the messages strictly before the given
// message's position. Copies keep the request goroutine off live state.
func historyBefore(chat *model.Chat, messageID string) []*model.Message {
	idx := chat.MessageIndex(messageID)
	if idx < 0 {
		return nil
	}
	history := make([]*model.Message, 0, idx)
	for _, msg := range chat.Messages[:idx] {
		msgCopy := *msg
		history = append(history, &msgCopy)
	}
	return history
}
