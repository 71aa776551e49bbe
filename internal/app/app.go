package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"neotask/internal/adapter/httpapi"
	"neotask/internal/adapter/telegram"
	"neotask/internal/adapter/telegram/commands"
	"neotask/internal/adapter/telegram/middleware"
	"neotask/internal/config"
	"neotask/internal/control"
	"neotask/internal/host"
	"neotask/internal/journal"
	"neotask/internal/platform/httpclient"
	"neotask/internal/platform/logger"
	"neotask/internal/platform/sqlite"
	"neotask/internal/taskmanager"
)

const (
	managerLabel    = "main"
	shutdownTimeout = 10 * time.Second
)

// App wires application components.
type App struct {
	cfg config.Config
	log *slog.Logger
}

// New creates a new App instance and loads configuration.
func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	log := logger.New(logger.Options{
		Env:          cfg.Env,
		ConsoleLevel: cfg.Log.ConsoleLevel,
		FileLevel:    cfg.Log.FileLevel,
		File:         cfg.Log.File,
		App:          "neotask",
	})
	return &App{cfg: cfg, log: log}, nil
}

// Run starts the application and blocks until SIGINT or SIGTERM.
func (a *App) Run() error {
	defer logger.Close(a.log)
	a.log.Info("starting", slog.String("env", a.cfg.Env), slog.Duration("tick", a.cfg.Tick.Interval))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := sqlite.Open(ctx, a.cfg.Journal.Path, sqlite.DefaultOptions())
	if err != nil {
		return err
	}
	defer db.Close()
	store, err := journal.Open(db)
	if err != nil {
		return err
	}
	rec := journal.NewRecorder(store,
		journal.WithManagerLabel(managerLabel),
		journal.WithRecorderLogger(a.log),
	)

	loop := host.New(host.Config{Interval: a.cfg.Tick.Interval, Logger: a.log})
	registry := taskmanager.NewRegistry()
	mgr, err := taskmanager.New(loop,
		taskmanager.WithLabel(managerLabel),
		taskmanager.WithLogger(a.log),
		taskmanager.WithRegistry(registry),
		taskmanager.WithDefaults(a.defaults()),
		taskmanager.WithListener(rec),
	)
	if err != nil {
		return err
	}

	client := httpclient.New(
		httpclient.WithLogger(a.log),
		httpclient.WithTimeout(10*time.Second),
		httpclient.WithRetries(2, 200*time.Millisecond),
	)
	ctl := control.New(loop, mgr,
		control.WithRuns(store),
		control.WithProber(client),
		control.WithBaseContext(ctx),
		control.WithLogger(a.log),
	)

	if len(a.cfg.Probe.URLs) > 0 {
		if _, err := ctl.ScheduleProbes(a.cfg.Probe.Schedule, a.cfg.Probe.URLs); err != nil {
			return err
		}
	}
	prune := newPruner(store, a.cfg.Journal.Retention, a.log)
	if a.cfg.Journal.Retention > 0 {
		if _, err := loop.AddCronFeed("journal-prune", "@daily", func() {
			prune.Trigger(ctx)
		}); err != nil {
			return err
		}
	}

	loop.Start()

	var wg sync.WaitGroup
	var srv *http.Server
	if a.cfg.HTTP.Addr != "" {
		if a.cfg.Env == "prod" {
			gin.SetMode(gin.ReleaseMode)
		}
		srv = httpapi.NewServer(a.cfg.HTTP.Addr, httpapi.NewRouter(ctl, a.log))
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.log.Info("admin api listening", slog.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.log.Error("admin api stopped", slog.Any("error", err))
				stop()
			}
		}()
	}

	if a.cfg.Telegram.Token != "" {
		cmds := commands.New(ctl, a.log)
		handler := middleware.Chain(cmds.Handle,
			middleware.NewRateLimiter(time.Second).Middleware,
			middleware.NewACL(a.cfg.Telegram.AllowedIDs, a.log).Middleware,
		)
		b, err := telegram.NewBot(a.cfg.Telegram.Token, handler, commands.Help, a.log)
		if err != nil {
			a.log.Error("telegram disabled", slog.Any("error", err))
		} else {
			wg.Add(1)
			go func() {
				defer wg.Done()
				b.Run(ctx)
			}()
		}
	}

	<-ctx.Done()
	a.log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if srv != nil {
		errs = append(errs, srv.Shutdown(shutdownCtx))
	}
	wg.Wait()

	// менеджер принадлежит горутине цикла, поэтому освобождаем его там же
	_ = loop.Call(shutdownCtx, func() error {
		registry.DisposeAll()
		return nil
	})
	errs = append(errs, loop.StopContext(shutdownCtx))
	// после остановки цикла новых очисток нет, ждём текущую до db.Close
	prune.Wait()
	errs = append(errs, rec.Close(shutdownCtx))

	a.log.Info("stopped", slog.Int64("runs_written", rec.Written()), slog.Int64("runs_dropped", rec.Dropped()))
	return errors.Join(errs...)
}

func (a *App) defaults() taskmanager.Overrides {
	t := a.cfg.Task
	return taskmanager.Overrides{
		TimeLimit:       &t.TimeLimit,
		AbortOnTimeout:  &t.AbortOnTimeout,
		AbortOnError:    &t.AbortOnError,
		TimeoutSilently: &t.TimeoutSilently,
		ShowDebug:       &t.ShowDebug,
		ShowError:       &t.ShowError,
	}
}
