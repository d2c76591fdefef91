// Package telegram adapts the Telegram Bot API to the messenger and
// command-stream ports.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/skillcoder/trafficwarden/internal/logic/fleet"
)

const (
	// updateTimeout is the long-poll timeout in seconds for GetUpdates.
	updateTimeout = 60

	commandBufferSize = 16
)

// Bot sends operator notifications to a fixed chat and turns inbound bot
// commands into a fleet.Command stream.
type Bot struct {
	logger     *slog.Logger
	api        *tgbotapi.BotAPI
	chatID     int64
	commands   chan fleet.Command
	ready      chan struct{}
	doneCh     chan struct{}
	inShutdown atomic.Bool
}

// New creates a Telegram bot adapter. chatID is the operator chat that
// receives unsolicited notifications.
func New(logger *slog.Logger, token string, chatID int64) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("new telegram bot api: %w", err)
	}

	logger.Info("telegram bot authorized", "account", api.Self.UserName)

	return &Bot{
		logger:   logger,
		api:      api,
		chatID:   chatID,
		commands: make(chan fleet.Command, commandBufferSize),
		ready:    make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Name returns the name of the bot component.
func (b *Bot) Name() string {
	return "telegram-bot"
}

// Start begins long-polling for updates in a goroutine.
func (b *Bot) Start(ctx context.Context) error {
	if b.inShutdown.Load() {
		b.logger.InfoContext(ctx, "telegram bot is shutting down, skipping start")

		return nil
	}

	go b.run(ctx)

	return nil
}

// Ready returns a channel that is closed once the update loop is running.
func (b *Bot) Ready() <-chan struct{} {
	return b.ready
}

// Ping reports readiness of the update loop.
func (b *Bot) Ping(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-b.ready:
		return nil
	default:
		return fmt.Errorf("telegram bot is not ready")
	}
}

// Shutdown stops the update long-poll and waits for the loop to exit. The
// command channel is closed afterwards so the dispatcher drains cleanly.
func (b *Bot) Shutdown(ctx context.Context) error {
	if !b.inShutdown.CompareAndSwap(false, true) {
		b.logger.ErrorContext(ctx, "telegram bot is already shutting down, skipping shutdown")

		return nil
	}

	defer func() {
		b.logger.InfoContext(ctx, "telegram bot shut downed")
	}()

	b.logger.InfoContext(ctx, "shutting down telegram bot")

	b.api.StopReceivingUpdates()

	select {
	case <-ctx.Done():
		return fmt.Errorf("shutdown context done before telegram loop exited: %w", ctx.Err())
	case <-b.doneCh:
		b.logger.InfoContext(ctx, "telegram update loop exited")
	}

	return nil
}

// Commands returns the inbound command stream.
func (b *Bot) Commands() <-chan fleet.Command {
	return b.commands
}

// Send delivers a markdown notification to the operator chat.
func (b *Bot) Send(_ context.Context, text string) error {
	msg := tgbotapi.NewMessage(b.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown

	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}

	return nil
}

// Reply answers a command in the chat it came from, falling back to the
// operator chat.
func (b *Bot) Reply(_ context.Context, cmd fleet.Command, text string) error {
	chatID := cmd.Chat
	if chatID == 0 {
		chatID = b.chatID
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown

	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("send telegram reply: %w", err)
	}

	return nil
}

func (b *Bot) run(ctx context.Context) {
	defer close(b.doneCh)
	defer close(b.commands)

	updateCfg := tgbotapi.NewUpdate(0)
	updateCfg.Timeout = updateTimeout

	updates := b.api.GetUpdatesChan(updateCfg)

	close(b.ready)

	for {
		select {
		case <-ctx.Done():
			b.logger.InfoContext(ctx, "terminating telegram update loop")

			return
		case update, ok := <-updates:
			if !ok {
				b.logger.InfoContext(ctx, "telegram updates channel closed")

				return
			}

			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}

			cmd := fleet.Command{
				Name: update.Message.Command(),
				Args: update.Message.CommandArguments(),
				Chat: update.Message.Chat.ID,
			}

			select {
			case b.commands <- cmd:
			case <-ctx.Done():
				b.logger.InfoContext(ctx, "terminating telegram update loop")

				return
			}
		}
	}
}
