package middleware

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neotask/internal/adapter/telegram"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeSender) SendMessage(_ context.Context, p *bot.SendMessageParams) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, p.Text)
	return &models.Message{}, nil
}

func message(uid, chat int64, text string) *models.Update {
	return &models.Update{Message: &models.Message{
		Text: text,
		Chat: models.Chat{ID: chat},
		From: &models.User{ID: uid},
	}}
}

func counting(n *int) telegram.HandlerFunc {
	return func(context.Context, telegram.Sender, *models.Update) { *n++ }
}

func TestACL(t *testing.T) {
	acl := NewACL([]int64{10, 20}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.True(t, acl.IsAllowed(10))
	assert.False(t, acl.IsAllowed(11))

	var calls int
	s := &fakeSender{}
	h := acl.Middleware(counting(&calls))

	h(context.Background(), s, message(10, 100, "/status"))
	assert.Equal(t, 1, calls)
	assert.Empty(t, s.sent)

	h(context.Background(), s, message(11, 100, "/status"))
	assert.Equal(t, 1, calls)
	assert.Equal(t, []string{"Access denied."}, s.sent)

	// no author: dropped silently
	h(context.Background(), s, &models.Update{Message: &models.Message{Chat: models.Chat{ID: 5}}})
	assert.Equal(t, 1, calls)
	assert.Len(t, s.sent, 1)
}

func TestACL_EmptyDeniesEveryone(t *testing.T) {
	var calls int
	h := NewACL(nil, nil).Middleware(counting(&calls))
	h(context.Background(), &fakeSender{}, message(1, 1, "/abort"))
	assert.Zero(t, calls)
}

func TestRateLimiter(t *testing.T) {
	now := time.Unix(1000, 0)
	r := NewRateLimiter(time.Second)
	r.now = func() time.Time { return now }

	assert.True(t, r.Allow(1))
	assert.False(t, r.Allow(1))
	assert.True(t, r.Allow(2), "limits are per user")

	now = now.Add(time.Second)
	assert.True(t, r.Allow(1))
}

func TestRateLimiter_Middleware(t *testing.T) {
	r := NewRateLimiter(time.Hour)
	var calls int
	s := &fakeSender{}
	h := r.Middleware(counting(&calls))

	h(context.Background(), s, message(7, 70, "/status"))
	h(context.Background(), s, message(7, 70, "/status"))
	assert.Equal(t, 1, calls)
	require.Len(t, s.sent, 1)
	assert.Contains(t, s.sent[0], "Too many requests")
}

func TestChain_Order(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(next telegram.HandlerFunc) telegram.HandlerFunc {
			return func(ctx context.Context, s telegram.Sender, u *models.Update) {
				order = append(order, name)
				next(ctx, s, u)
			}
		}
	}
	h := Chain(func(context.Context, telegram.Sender, *models.Update) { order = append(order, "handler") }, mw("rate"), mw("acl"))
	h(context.Background(), nil, message(1, 1, ""))
	assert.Equal(t, []string{"rate", "acl", "handler"}, order)
}
