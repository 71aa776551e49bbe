// Package middleware содержит телеграм‑middleware: ACL по списку разрешённых
// пользователей и ограничение частоты запросов.
package middleware

import (
	"context"
	"log/slog"

	"github.com/go-telegram/bot/models"

	"neotask/internal/adapter/telegram"
)

// ACL проверяет доступ по списку разрешённых Telegram user IDs
type ACL struct {
	allowed map[int64]struct{}
	log     *slog.Logger
}

// NewACL создаёт ACL по списку ID. Пустой список запрещает всех.
func NewACL(ids []int64, log *slog.Logger) *ACL {
	m := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &ACL{allowed: m, log: log}
}

// IsAllowed сообщает, имеет ли пользователь доступ
func (a *ACL) IsAllowed(id int64) bool { _, ok := a.allowed[id]; return ok }

// Middleware блокирует выполнение хендлера для неразрешённых пользователей.
// Апдейты без автора (например, посты каналов) отбрасываются.
func (a *ACL) Middleware(next telegram.HandlerFunc) telegram.HandlerFunc {
	return func(ctx context.Context, s telegram.Sender, upd *models.Update) {
		uid := telegram.UserID(upd)
		if uid != 0 && a.IsAllowed(uid) {
			next(ctx, s, upd)
			return
		}
		a.log.Warn("telegram access denied", slog.Int64("user_id", uid), slog.Int64("chat_id", telegram.ChatID(upd)))
		if uid != 0 {
			_ = telegram.Reply(ctx, s, upd, "Access denied.")
		}
	}
}
