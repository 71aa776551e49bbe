package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/go-telegram/bot/models"
	"golang.org/x/time/rate"

	"neotask/internal/adapter/telegram"
)

type userLimit struct {
	lim  *rate.Limiter
	seen time.Time
}

// RateLimiter restricts request frequency per user: one request per interval.
type RateLimiter struct {
	mu       sync.Mutex
	users    map[int64]*userLimit
	interval time.Duration
	now      func() time.Time
}

// NewRateLimiter creates limiter with given interval.
func NewRateLimiter(interval time.Duration) *RateLimiter {
	return &RateLimiter{users: make(map[int64]*userLimit), interval: interval, now: time.Now}
}

// Allow returns false if user hits the limit.
func (r *RateLimiter) Allow(userID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	u, ok := r.users[userID]
	if !ok {
		u = &userLimit{lim: rate.NewLimiter(rate.Every(r.interval), 1)}
		r.users[userID] = u
	}
	u.seen = now
	allowed := u.lim.AllowN(now, 1)
	// лимитеры давно молчащих пользователей уже полные, их можно выбросить
	if len(r.users) > 1024 {
		for id, cur := range r.users {
			if now.Sub(cur.seen) >= r.interval {
				delete(r.users, id)
			}
		}
	}
	return allowed
}

// Middleware checks rate limit before calling next handler.
func (r *RateLimiter) Middleware(next telegram.HandlerFunc) telegram.HandlerFunc {
	return func(ctx context.Context, s telegram.Sender, upd *models.Update) {
		if uid := telegram.UserID(upd); uid != 0 && !r.Allow(uid) {
			_ = telegram.Reply(ctx, s, upd, "Too many requests, slow down.")
			return
		}
		next(ctx, s, upd)
	}
}
