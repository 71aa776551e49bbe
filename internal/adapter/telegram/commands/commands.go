package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-telegram/bot/models"

	"neotask/internal/adapter/telegram"
	"neotask/internal/control"
	"neotask/internal/journal"
	"neotask/internal/shared"
	"neotask/internal/taskmanager"
)

// Controller is what the bot commands need from control.Controller.
type Controller interface {
	Snapshot(ctx context.Context) (taskmanager.Snapshot, error)
	Abort(ctx context.Context) error
	AbortCurrent(ctx context.Context) (taskmanager.TaskInfo, error)
	Step(ctx context.Context) (taskmanager.Snapshot, error)
	SetStepMode(ctx context.Context, on bool) error
	EnqueueDelay(ctx context.Context, d time.Duration) (taskmanager.TaskInfo, error)
	EnqueueProbe(ctx context.Context, req control.ProbeRequest) (taskmanager.TaskInfo, error)
	Runs(ctx context.Context, f journal.Filter) ([]journal.Run, error)
}

// ErrUnknownCommand is returned for text that is not a known command.
var ErrUnknownCommand = fmt.Errorf("unknown command: %w", shared.ErrValidation)

// Commands handles control commands sent to the bot.
type Commands struct {
	ctl Controller
	log *slog.Logger
}

// New creates Commands.
func New(ctl Controller, log *slog.Logger) *Commands {
	if log == nil {
		log = slog.Default()
	}
	return &Commands{ctl: ctl, log: log.With("component", "telegram")}
}

// Help lists the commands for the bot menu.
var Help = []models.BotCommand{
	{Command: "status", Description: "Show the task manager state"},
	{Command: "abort", Description: "Clear the current task and the queue"},
	{Command: "skip", Description: "Drop the current task"},
	{Command: "step", Description: "Advance one tick in step mode"},
	{Command: "stepmode", Description: "Switch step mode: /stepmode on|off"},
	{Command: "delay", Description: "Queue a delay: /delay 5s"},
	{Command: "probe", Description: "Queue an HTTP probe: /probe https://..."},
	{Command: "runs", Description: "Show recent runs"},
}

// Handle is the telegram.HandlerFunc answering command messages. Other messages are ignored.
func (c *Commands) Handle(ctx context.Context, s telegram.Sender, upd *models.Update) {
	msg := upd.Message
	if msg == nil || !strings.HasPrefix(msg.Text, "/") {
		return
	}
	reply, err := c.Execute(ctx, msg.Text)
	if err != nil {
		reply = c.describe(err)
	}
	if err := telegram.Reply(ctx, s, upd, reply); err != nil {
		c.log.Error("failed to send reply", slog.Int64("chat_id", msg.Chat.ID), slog.Any("error", err))
	}
}

// Execute runs a command line such as "/stepmode on" and returns the reply text.
func (c *Commands) Execute(ctx context.Context, text string) (string, error) {
	cmd, arg := parse(text)
	switch cmd {
	case "start", "help":
		return helpText(), nil
	case "status":
		s, err := c.ctl.Snapshot(ctx)
		if err != nil {
			return "", err
		}
		return RenderStatus(s), nil
	case "abort":
		if err := c.ctl.Abort(ctx); err != nil {
			return "", err
		}
		c.log.Info("manager aborted from telegram")
		return "Aborted. The queue is empty.", nil
	case "skip":
		info, err := c.ctl.AbortCurrent(ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Skipped %s.", info.Name), nil
	case "step":
		s, err := c.ctl.Step(ctx)
		if err != nil {
			return "", err
		}
		return RenderStatus(s), nil
	case "stepmode":
		on, err := parseSwitch(arg)
		if err != nil {
			return "", err
		}
		if err := c.ctl.SetStepMode(ctx, on); err != nil {
			return "", err
		}
		if on {
			return "Step mode on. Use /step to advance.", nil
		}
		return "Step mode off.", nil
	case "delay":
		d, err := time.ParseDuration(arg)
		if err != nil {
			return "", fmt.Errorf("usage: /delay 5s: %w", shared.ErrValidation)
		}
		info, err := c.ctl.EnqueueDelay(ctx, d)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Queued %s.", info.Name), nil
	case "probe":
		if arg == "" {
			return "", fmt.Errorf("usage: /probe https://example.com: %w", shared.ErrValidation)
		}
		info, err := c.ctl.EnqueueProbe(ctx, control.ProbeRequest{URL: arg})
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Queued %s.", info.Name), nil
	case "runs":
		runs, err := c.ctl.Runs(ctx, journal.Filter{Limit: 5})
		if err != nil {
			return "", err
		}
		return RenderRuns(runs), nil
	}
	return "", ErrUnknownCommand
}

func (c *Commands) describe(err error) string {
	switch shared.KindOf(err) {
	case shared.KindValidation:
		if errors.Is(err, ErrUnknownCommand) {
			return "Unknown command. Send /help."
		}
		return "Invalid input: " + err.Error()
	case shared.KindConflict:
		switch {
		case errors.Is(err, control.ErrIdle):
			return "Nothing is running."
		case errors.Is(err, taskmanager.ErrNotInStepMode):
			return "Not in step mode. Send /stepmode on first."
		}
		return "Not possible right now: " + err.Error()
	case shared.KindNotFound:
		return "Not available: " + err.Error()
	}
	c.log.Error("telegram command failed", slog.Any("error", err))
	return "Internal error, see the logs."
}

// parse splits "/cmd@bot arg" into "cmd" and "arg".
func parse(text string) (cmd, arg string) {
	text = strings.TrimSpace(text)
	head, rest, _ := strings.Cut(text, " ")
	head = strings.TrimPrefix(head, "/")
	if i := strings.IndexByte(head, '@'); i >= 0 {
		head = head[:i]
	}
	return strings.ToLower(head), strings.TrimSpace(rest)
}

func parseSwitch(arg string) (bool, error) {
	switch strings.ToLower(arg) {
	case "on", "1", "true", "yes":
		return true, nil
	case "off", "0", "false", "no":
		return false, nil
	}
	return false, fmt.Errorf("usage: /stepmode on|off: %w", shared.ErrValidation)
}

func helpText() string {
	var b strings.Builder
	b.WriteString("Commands:\n")
	for _, c := range Help {
		fmt.Fprintf(&b, "/%s - %s\n", c.Command, c.Description)
	}
	return strings.TrimRight(b.String(), "\n")
}
