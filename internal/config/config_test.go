package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnv_Defaults(t *testing.T) {
	c, err := FromEnv(env(nil))
	require.NoError(t, err)

	assert.Equal(t, "prod", c.Env)
	assert.Equal(t, "info", c.Log.ConsoleLevel)
	assert.Equal(t, 50*time.Millisecond, c.Tick.Interval)
	assert.Equal(t, 30*time.Second, c.Task.TimeLimit)
	assert.True(t, c.Task.AbortOnTimeout)
	assert.True(t, c.Task.AbortOnError)
	assert.True(t, c.Task.ShowError)
	assert.False(t, c.Task.ShowDebug)
	assert.Equal(t, "data/neotask.db", c.Journal.Path)
	assert.Equal(t, 720*time.Hour, c.Journal.Retention)
	assert.Empty(t, c.Probe.URLs)
	assert.Empty(t, c.Telegram.AllowedIDs)
}

func TestFromEnv_Overrides(t *testing.T) {
	c, err := FromEnv(env(map[string]string{
		"ENV":                  "dev",
		"LOG_CONSOLE_LEVEL":    "DEBUG",
		"TICK_INTERVAL":        "16ms",
		"TASK_TIME_LIMIT":      "2m",
		"TASK_ABORT_ON_ERROR":  "false",
		"TASK_SHOW_DEBUG":      "1",
		"PROBE_URLS":           "http://a.example/health, https://b.example",
		"PROBE_SCHEDULE":       "@every 1m",
		"TELEGRAM_BOT_TOKEN":   "123:abc",
		"TELEGRAM_ALLOWED_IDS": "10, 20\n30",
	}))
	require.NoError(t, err)

	assert.Equal(t, "debug", c.Log.ConsoleLevel)
	assert.Equal(t, 16*time.Millisecond, c.Tick.Interval)
	assert.Equal(t, 2*time.Minute, c.Task.TimeLimit)
	assert.False(t, c.Task.AbortOnError)
	assert.True(t, c.Task.ShowDebug)
	assert.Equal(t, []string{"http://a.example/health", "https://b.example"}, c.Probe.URLs)
	assert.Equal(t, []int64{10, 20, 30}, c.Telegram.AllowedIDs)
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := map[string]map[string]string{
		"bad env":            {"ENV": "staging"},
		"bad level":          {"LOG_FILE_LEVEL": "trace"},
		"zero time limit":    {"TASK_TIME_LIMIT": "0s"},
		"negative retention": {"JOURNAL_RETENTION": "-1h"},
		"unparsable tick":    {"TICK_INTERVAL": "fast"},
		"unparsable bool":    {"TASK_SHOW_ERROR": "maybe"},
		"bad probe url":      {"PROBE_URLS": "not a url", "PROBE_SCHEDULE": "@hourly"},
		"bad schedule":       {"PROBE_SCHEDULE": "every day"},
		"probe no schedule":  {"PROBE_URLS": "http://a.example"},
		"bad user id":        {"TELEGRAM_BOT_TOKEN": "x", "TELEGRAM_ALLOWED_IDS": "12,abc"},
		"token without acl":  {"TELEGRAM_BOT_TOKEN": "x"},
	}

	for name, vars := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := FromEnv(env(vars))
			assert.Error(t, err)
		})
	}
}
