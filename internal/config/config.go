package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"neotask/internal/host"
)

// Config holds application configuration values.
type Config struct {
	Env string `validate:"required,oneof=dev prod"`
	Log struct {
		ConsoleLevel string `validate:"required,oneof=debug info warn error"`
		FileLevel    string `validate:"required,oneof=debug info warn error"`
		File         string
	}
	Tick struct {
		Interval time.Duration `validate:"gt=0"`
	}
	// Task holds the manager defaults; TASK_* variables map onto it one to one.
	Task struct {
		TimeLimit       time.Duration `validate:"gt=0"`
		AbortOnTimeout  bool
		AbortOnError    bool
		TimeoutSilently bool
		ShowDebug       bool
		ShowError       bool
	}
	Journal struct {
		Path      string        `validate:"required"`
		// Retention is how long runs are kept; zero keeps them forever.
		Retention time.Duration `validate:"gte=0"`
	}
	HTTP struct {
		Addr string // empty disables the admin API
	}
	Probe struct {
		URLs     []string `validate:"dive,url"`
		Schedule string   `validate:"omitempty,schedule"`
	}
	Telegram struct {
		Token      string
		AllowedIDs []int64
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("schedule", func(fl validator.FieldLevel) bool {
		_, err := host.ParseSchedule(fl.Field().String())
		return err == nil
	})
	return v
}

// Load reads configuration from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds the configuration from a lookup function.
func FromEnv(getenv func(string) string) (Config, error) {
	p := parser{getenv: getenv}

	var c Config
	c.Env = p.str("ENV", "prod")
	c.Log.ConsoleLevel = strings.ToLower(p.str("LOG_CONSOLE_LEVEL", "info"))
	c.Log.FileLevel = strings.ToLower(p.str("LOG_FILE_LEVEL", "debug"))
	c.Log.File = p.str("LOG_FILE", "data/logs/neotask.log")
	c.Tick.Interval = p.duration("TICK_INTERVAL", 50*time.Millisecond)
	c.Task.TimeLimit = p.duration("TASK_TIME_LIMIT", 30*time.Second)
	c.Task.AbortOnTimeout = p.bool("TASK_ABORT_ON_TIMEOUT", true)
	c.Task.AbortOnError = p.bool("TASK_ABORT_ON_ERROR", true)
	c.Task.TimeoutSilently = p.bool("TASK_TIMEOUT_SILENTLY", false)
	c.Task.ShowDebug = p.bool("TASK_SHOW_DEBUG", false)
	c.Task.ShowError = p.bool("TASK_SHOW_ERROR", true)
	c.Journal.Path = p.str("JOURNAL_PATH", "data/neotask.db")
	c.Journal.Retention = p.duration("JOURNAL_RETENTION", 30*24*time.Hour)
	c.HTTP.Addr = p.str("HTTP_ADDR", ":8080")
	c.Probe.URLs = p.list("PROBE_URLS")
	c.Probe.Schedule = p.str("PROBE_SCHEDULE", "")
	c.Telegram.Token = p.str("TELEGRAM_BOT_TOKEN", "")
	c.Telegram.AllowedIDs = p.ids("TELEGRAM_ALLOWED_IDS")

	if err := errors.Join(p.errs...); err != nil {
		return Config{}, err
	}
	if err := validate.Struct(c); err != nil {
		return Config{}, err
	}
	if len(c.Probe.URLs) > 0 && c.Probe.Schedule == "" {
		return Config{}, errors.New("PROBE_SCHEDULE required when PROBE_URLS is set")
	}
	if c.Telegram.Token != "" && len(c.Telegram.AllowedIDs) == 0 {
		return Config{}, errors.New("TELEGRAM_ALLOWED_IDS required when TELEGRAM_BOT_TOKEN is set")
	}
	return c, nil
}

type parser struct {
	getenv func(string) string
	errs   []error
}

func (p *parser) str(k, def string) string {
	if v := strings.TrimSpace(p.getenv(k)); v != "" {
		return v
	}
	return def
}

func (p *parser) duration(k string, def time.Duration) time.Duration {
	v := p.str(k, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", k, err))
		return def
	}
	return d
}

func (p *parser) bool(k string, def bool) bool {
	v := p.str(k, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", k, err))
		return def
	}
	return b
}

// list splits on commas and newlines, dropping empty items.
func (p *parser) list(k string) []string {
	fields := strings.FieldsFunc(p.getenv(k), func(r rune) bool { return r == ',' || r == '\n' })
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func (p *parser) ids(k string) []int64 {
	items := p.list(k)
	out := make([]int64, 0, len(items))
	for _, s := range items {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			p.errs = append(p.errs, fmt.Errorf("%s: %q is not a user id", k, s))
			continue
		}
		out = append(out, id)
	}
	return out
}
