package app

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

type journalPruner interface {
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

// pruner удаляет старые записи журнала в фоне, не блокируя цикл тиков.
// Wait дожидается запущенной очистки перед закрытием базы.
type pruner struct {
	store     journalPruner
	retention time.Duration
	log       *slog.Logger
	now       func() time.Time

	wg      sync.WaitGroup
	running atomic.Bool
}

func newPruner(store journalPruner, retention time.Duration, log *slog.Logger) *pruner {
	return &pruner{store: store, retention: retention, log: log, now: time.Now}
}

// Trigger запускает очистку, если контекст жив и предыдущая ещё не закончилась.
func (p *pruner) Trigger(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if !p.running.CompareAndSwap(false, true) {
		p.log.Debug("journal prune already running")
		return
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.running.Store(false)
		p.run(ctx)
	}()
}

// Wait вызывается после остановки цикла, когда новых Trigger уже не будет.
func (p *pruner) Wait() { p.wg.Wait() }

func (p *pruner) run(ctx context.Context) {
	cutoff := p.now().Add(-p.retention)
	n, err := p.store.Prune(ctx, cutoff)
	if err != nil {
		p.log.Error("journal prune failed", slog.Any("error", err))
		return
	}
	p.log.Info("journal pruned", slog.Int64("removed", n), slog.Time("cutoff", cutoff))
}
