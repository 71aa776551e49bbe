package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrStopped возвращается, когда цикл уже остановлен и не принимает работу.
var ErrStopped = errors.New("host: loop stopped")

// FeedID идентифицирует cron-фид.
type FeedID = cron.EntryID

// Parser разбирает расписания фидов: стандартные 5 полей, необязательные секунды
// и дескрипторы вида "@every 5m".
var Parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseSchedule проверяет расписание тем же парсером, что использует цикл.
func ParseSchedule(spec string) (cron.Schedule, error) {
	return Parser.Parse(spec)
}

// Config содержит конфигурацию цикла.
type Config struct {
	// Interval - период тика. По умолчанию 50ms.
	Interval time.Duration
	Logger   *slog.Logger
	// InboxSize - ёмкость очереди Post. По умолчанию 256.
	InboxSize int
}

type subscriber struct {
	id     int
	fn     func()
	active atomic.Bool
}

// Loop владеет единственной горутиной, на которой выполняются тики и вся
// работа, переданная через Post и Call. Подписчики вызываются в порядке подписки.
type Loop struct {
	interval time.Duration
	logger   *slog.Logger
	cron     *cron.Cron

	mu     sync.Mutex
	subs   []*subscriber
	nextID int
	feeds  map[FeedID]string

	inbox  chan func()
	ticks  atomic.Uint64
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	started   atomic.Bool
	startOnce sync.Once
	stopOnce  sync.Once
}

// New создает цикл. Он не тикает до вызова Start.
func New(cfg Config) *Loop {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "host")
	if cfg.Interval <= 0 {
		cfg.Interval = 50 * time.Millisecond
	}
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = 256
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Loop{
		interval: cfg.Interval,
		logger:   logger,
		cron: cron.New(
			cron.WithParser(Parser),
			cron.WithLogger(cronLogger{logger: logger.With("component", "cron")}),
		),
		feeds:  make(map[FeedID]string),
		inbox:  make(chan func(), cfg.InboxSize),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Subscribe регистрирует fn на каждый тик. Возвращаемая функция отписывает fn;
// отписка внутри тика действует сразу, включая текущий проход.
func (l *Loop) Subscribe(fn func()) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := &subscriber{id: l.nextID, fn: fn}
	s.active.Store(true)
	l.nextID++
	l.subs = append(l.subs, s)
	return func() { l.unsubscribe(s) }
}

func (l *Loop) unsubscribe(s *subscriber) {
	if !s.active.Swap(false) {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, cur := range l.subs {
		if cur == s {
			l.subs = append(l.subs[:i:i], l.subs[i+1:]...)
			return
		}
	}
}

// Subscribers возвращает число активных подписчиков.
func (l *Loop) Subscribers() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.subs)
}

// Ticks возвращает число выполненных тиков.
func (l *Loop) Ticks() uint64 { return l.ticks.Load() }

// Post ставит fn в очередь на горутину цикла. Возвращает false, если цикл остановлен.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.ctx.Done():
		return false
	default:
	}
	select {
	case l.inbox <- fn:
		return true
	case <-l.ctx.Done():
		return false
	}
}

// Call выполняет fn на горутине цикла и ждет результата.
func (l *Loop) Call(ctx context.Context, fn func() error) error {
	res := make(chan error, 1)
	ok := l.Post(func() {
		defer func() {
			if r := recover(); r != nil {
				res <- fmt.Errorf("host: call panicked: %v", r)
			}
		}()
		res <- fn()
	})
	if !ok {
		return ErrStopped
	}
	select {
	case err := <-res:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		// работа могла выполниться во время остановки
		select {
		case err := <-res:
			return err
		default:
			return ErrStopped
		}
	}
}

// AddCronFeed регистрирует fn по расписанию. fn выполняется на горутине цикла.
func (l *Loop) AddCronFeed(name, spec string, fn func()) (FeedID, error) {
	id, err := l.cron.AddFunc(spec, func() {
		if !l.Post(func() { l.safe("feed "+name, fn) }) {
			l.logger.Debug("feed fired after stop", "name", name)
		}
	})
	if err != nil {
		l.logger.Error("failed to add cron feed", "schedule", spec, "name", name, "error", err)
		return 0, err
	}
	l.mu.Lock()
	l.feeds[id] = name
	l.mu.Unlock()
	l.logger.Info("cron feed added", "schedule", spec, "name", name, "id", id)
	return id, nil
}

// RemoveCronFeed удаляет фид. Возвращает false для неизвестного ID.
func (l *Loop) RemoveCronFeed(id FeedID) bool {
	l.mu.Lock()
	name, ok := l.feeds[id]
	delete(l.feeds, id)
	l.mu.Unlock()
	if !ok {
		return false
	}
	l.cron.Remove(id)
	l.logger.Info("cron feed removed", "id", id, "name", name)
	return true
}

// NextFeedRun возвращает время следующего срабатывания фида.
func (l *Loop) NextFeedRun(id FeedID) (time.Time, bool) {
	e := l.cron.Entry(id)
	if !e.Valid() {
		return time.Time{}, false
	}
	return e.Next, true
}

// Start запускает тики и cron. Повторный вызов ничего не делает.
func (l *Loop) Start() {
	l.startOnce.Do(func() {
		if l.ctx.Err() != nil {
			return
		}
		l.logger.Info("starting host loop", "interval", l.interval)
		l.started.Store(true)
		l.cron.Start()
		go l.run()
	})
}

// IsRunning возвращает true, если цикл запущен и не остановлен.
func (l *Loop) IsRunning() bool {
	return l.started.Load() && l.ctx.Err() == nil
}

// Stop останавливает цикл и ждет завершения горутины.
func (l *Loop) Stop() {
	_ = l.StopContext(context.Background())
}

// StopContext останавливает цикл с учетом дедлайна. Остановка завершается в
// любом случае; при истечении ctx возвращается его ошибка.
func (l *Loop) StopContext(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		l.stopOnce.Do(l.stop)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		l.logger.Warn("host loop stop deadline exceeded, but shutdown will complete")
		<-done
		return ctx.Err()
	}
}

func (l *Loop) stop() {
	l.logger.Info("stopping host loop")
	cronCtx := l.cron.Stop()
	<-cronCtx.Done()
	l.cancel()
	if l.started.Load() {
		<-l.done
	} else {
		close(l.done)
	}
	l.logger.Info("host loop stopped", "ticks", l.Ticks())
}

func (l *Loop) run() {
	defer close(l.done)
	t := time.NewTicker(l.interval)
	defer t.Stop()
	for {
		select {
		case <-l.ctx.Done():
			l.drain()
			return
		case fn := <-l.inbox:
			l.safe("post", fn)
		case <-t.C:
			l.tick()
		}
	}
}

// drain выполняет работу, принятую до остановки, чтобы Call не зависал.
func (l *Loop) drain() {
	for {
		select {
		case fn := <-l.inbox:
			l.safe("post", fn)
		default:
			return
		}
	}
}

func (l *Loop) tick() {
	l.ticks.Add(1)
	l.mu.Lock()
	subs := make([]*subscriber, len(l.subs))
	copy(subs, l.subs)
	l.mu.Unlock()
	for _, s := range subs {
		if s.active.Load() {
			l.safe("tick", s.fn)
		}
	}
}

func (l *Loop) safe(source string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("host callback panicked", "source", source, "panic", r)
		}
	}()
	fn()
}

// cronLogger адаптер для интеграции cron logger с slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append([]any{"error", err}, keysAndValues...)...)
}
