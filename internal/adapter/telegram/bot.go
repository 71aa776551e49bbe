package telegram

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"neotask/internal/shared"
)

// Bot long-polls Telegram and feeds updates through a Dispatcher.
type Bot struct {
	api      *bot.Bot
	disp     *Dispatcher
	commands []models.BotCommand
	log      *slog.Logger
}

// NewBot connects to the Bot API with token. h handles every update; commands
// is published as the bot menu when Run starts.
func NewBot(token string, h HandlerFunc, commands []models.BotCommand, log *slog.Logger) (*Bot, error) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "telegram")
	b := &Bot{commands: commands, log: log}
	api, err := bot.New(token,
		bot.WithDefaultHandler(func(ctx context.Context, _ *bot.Bot, upd *models.Update) {
			if !b.disp.Dispatch(ctx, upd) {
				log.Debug("update dropped", slog.Int64("update_id", upd.ID))
			}
		}),
		bot.WithAllowedUpdates([]string{"message"}),
		bot.WithErrorsHandler(func(err error) {
			log.Warn("telegram polling error", slog.Any("error", err))
		}),
	)
	if err != nil {
		return nil, shared.MarkKind(fmt.Errorf("telegram: %w", err), shared.KindDependencyFailure)
	}
	b.api = api
	b.disp = NewDispatcher(api, 4, h)
	return b, nil
}

// Run polls until ctx is done, then waits for in-flight updates.
func (b *Bot) Run(ctx context.Context) {
	defer b.disp.Close()
	if len(b.commands) > 0 {
		if _, err := b.api.SetMyCommands(ctx, &bot.SetMyCommandsParams{Commands: b.commands}); err != nil {
			b.log.Warn("failed to publish bot commands", slog.Any("error", err))
		}
	}
	b.log.Info("telegram bot started")
	b.api.Start(ctx)
	b.log.Info("telegram bot stopped")
}
