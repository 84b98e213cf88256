// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chatdeck is a terminal chat client for OpenAI-compatible endpoints.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jeranaias/chatdeck/internal/api"
	"github.com/jeranaias/chatdeck/internal/config"
	"github.com/jeranaias/chatdeck/internal/export"
	"github.com/jeranaias/chatdeck/internal/model"
	"github.com/jeranaias/chatdeck/internal/storage"
	"github.com/jeranaias/chatdeck/internal/store"
	"github.com/jeranaias/chatdeck/internal/util"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "chatdeck: %v\n", err)
		os.Exit(1)
	}

	setupLogger(cfg.Log.Level)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	dbPath, err := cfg.StoragePath()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to resolve storage path")
	}
	kv, err := storage.Open(dbPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open storage")
	}
	defer kv.Close()

	client := api.NewClient(log.Logger)
	chats := store.New(kv, client, log.Logger)
	chats.SetGlobals(cfg.Globals())
	if err := chats.Load(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to load chats")
	}

	// Edits to the system instruction or streaming default take effect on
	// the next send.
	if path, err := config.ConfigPath(); err == nil {
		if err := config.Watch(ctx, path, log.Logger, func(next *config.Config) {
			chats.SetGlobals(next.Globals())
		}); err != nil {
			log.Warn().Err(err).Msg("config watch unavailable")
		}
	}

	app := &app{cfg: cfg, chats: chats}
	chats.OnProgress(app.render(ctx))
	if err := app.run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("session failed")
	}
	log.Info().Msg("stopped")
}

// =============================================================================
// INTERACTIVE SESSION
// =============================================================================

type app struct {
	cfg   *config.Config
	chats *store.Store
}

// typewriterCPS paces streamed output so replies read as they arrive.
const typewriterCPS = 120

// render returns the progress observer that prints streamed replies.
// A new target message resets the pacing state, so retries and fresh
// sends each start from a blank line.
func (a *app) render(ctx context.Context) store.ProgressObserver {
	var (
		currentID string
		printed   int
		paced     api.ProgressFunc
	)
	return func(_, messageID, full string) {
		if messageID != currentID {
			currentID = messageID
			printed = 0
			paced = api.Typewriter(ctx, func(content string) {
				if len(content) > printed {
					fmt.Print(content[printed:])
					printed = len(content)
				}
			}, typewriterCPS)
		}
		paced(full)
	}
}

func (a *app) run(ctx context.Context) error {
	m := a.cfg.ResolveDefaultModel()
	if m == nil {
		return errors.New("no models configured; add one to ~/.chatdeck/config.toml")
	}
	log.Info().Str("model", m.ModelID).Str("key", m.KeyFingerprint()).Msg("session ready")

	if a.chats.ActiveChat() == nil {
		a.chats.CreateChat(ctx, m.ID)
	}

	fmt.Println("chatdeck — type a message, /help for commands")
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if quit := a.command(ctx, line); quit {
				return nil
			}
			continue
		}
		a.send(ctx, line)
	}
	return scanner.Err()
}

// send runs one message through the active chat, rendering streamed
// progress in place.
func (a *app) send(ctx context.Context, text string) {
	active := a.chats.ActiveChat()
	if active == nil {
		fmt.Println("no active chat; /new to create one")
		return
	}
	m := a.cfg.Model(active.ModelID)
	if m == nil {
		m = a.cfg.ResolveDefaultModel()
	}
	if m == nil {
		fmt.Println("no model configured for this chat")
		return
	}

	err := a.chats.SendMessage(ctx, active.ID, text, m)
	fmt.Println()
	if err != nil {
		fmt.Printf("error: %v\n", err)
	}
}

// command dispatches a slash command; returns true on /quit.
func (a *app) command(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "/quit", "/exit":
		return true

	case "/help":
		fmt.Println(`/new            start a new chat
/chats          list chats
/switch <n>     switch to chat n
/title <text>   rename the active chat
/star           toggle star on the active chat
/retry          regenerate the last reply
/export [json]  export the active chat to a file
/quit           exit`)

	case "/new":
		m := a.cfg.ResolveDefaultModel()
		if m == nil {
			fmt.Println("no models configured")
			break
		}
		a.chats.CreateChat(ctx, m.ID)
		fmt.Println("new chat started")

	case "/chats":
		for i, chat := range a.chats.Chats() {
			star := " "
			if chat.IsStarred {
				star = "*"
			}
			fmt.Printf("%2d %s %s (%d messages, %s)\n", i+1, star,
				util.TruncateRunes(chat.Title, 40), len(chat.Messages),
				chat.UpdatedAt.Format(time.DateTime))
		}

	case "/switch":
		if len(args) != 1 {
			fmt.Println("usage: /switch <n>")
			break
		}
		n, err := strconv.Atoi(args[0])
		chats := a.chats.Chats()
		if err != nil || n < 1 || n > len(chats) {
			fmt.Println("no such chat")
			break
		}
		if err := a.chats.SetActiveChat(ctx, chats[n-1].ID); err != nil {
			fmt.Printf("error: %v\n", err)
		}

	case "/title":
		active := a.chats.ActiveChat()
		if active == nil || len(args) == 0 {
			fmt.Println("usage: /title <text>")
			break
		}
		if err := a.chats.UpdateChatTitle(ctx, active.ID, strings.Join(args, " ")); err != nil {
			fmt.Printf("error: %v\n", err)
		}

	case "/star":
		active := a.chats.ActiveChat()
		if active == nil {
			fmt.Println("no active chat")
			break
		}
		if err := a.chats.StarChat(ctx, active.ID); err != nil {
			fmt.Printf("error: %v\n", err)
		}

	case "/retry":
		a.retry(ctx)

	case "/export":
		active := a.chats.ActiveChat()
		if active == nil {
			fmt.Println("no active chat")
			break
		}
		opts := export.DefaultOptions()
		var exp export.Exporter = export.NewMarkdownExporter(opts)
		if len(args) > 0 && args[0] == "json" {
			exp = export.NewJSONExporter()
		}
		path, err := export.ToFile(active, exp, opts)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			break
		}
		fmt.Printf("exported to %s\n", path)

	default:
		fmt.Printf("unknown command %s (/help)\n", cmd)
	}
	return false
}

// retry regenerates the most recent assistant message in the active chat.
func (a *app) retry(ctx context.Context) {
	active := a.chats.ActiveChat()
	if active == nil {
		fmt.Println("no active chat")
		return
	}
	m := a.cfg.Model(active.ModelID)
	if m == nil {
		m = a.cfg.ResolveDefaultModel()
	}

	for i := len(active.Messages) - 1; i >= 0; i-- {
		msg := active.Messages[i]
		if msg.Sender != model.SenderAI {
			continue
		}
		err := a.chats.RetryMessage(ctx, active.ID, msg.ID, m)
		fmt.Println()
		if err != nil {
			fmt.Printf("error: %v\n", err)
		}
		return
	}
	fmt.Println("nothing to retry")
}

// =============================================================================
// LOGGING
// =============================================================================

func setupLogger(level string) {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(parseLogLevel(level))
	// Chat output owns stdout; logs go to stderr.
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger()
}

func parseLogLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
