package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"neotask/internal/control"
	"neotask/internal/journal"
	"neotask/internal/taskmanager"
)

// Controller is what the admin API needs from control.Controller.
type Controller interface {
	Snapshot(ctx context.Context) (taskmanager.Snapshot, error)
	Abort(ctx context.Context) error
	AbortCurrent(ctx context.Context) (taskmanager.TaskInfo, error)
	Step(ctx context.Context) (taskmanager.Snapshot, error)
	SetStepMode(ctx context.Context, on bool) error
	UpdateDefaults(ctx context.Context, o taskmanager.Overrides) (taskmanager.Settings, error)
	EnqueueDelay(ctx context.Context, d time.Duration) (taskmanager.TaskInfo, error)
	EnqueueProbe(ctx context.Context, req control.ProbeRequest) (taskmanager.TaskInfo, error)
	Runs(ctx context.Context, f journal.Filter) ([]journal.Run, error)
	Run(ctx context.Context, id string) (journal.Run, error)
	RunCounts(ctx context.Context) (map[string]int, error)
}

// NewRouter builds the admin API.
func NewRouter(ctl Controller, log *slog.Logger) *gin.Engine {
	if log == nil {
		log = slog.Default()
	}
	h := &handler{ctl: ctl, log: log.With("component", "httpapi")}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(h.log))

	r.GET("/healthz", h.health)
	r.GET("/status", h.status)
	r.GET("/tasks", h.tasks)
	r.POST("/abort", h.abort)
	r.POST("/abort-current", h.abortCurrent)
	r.POST("/step", h.step)
	r.PUT("/step-mode", h.setStepMode)
	r.PATCH("/defaults", h.updateDefaults)
	r.POST("/tasks/delay", h.enqueueDelay)
	r.POST("/tasks/probe", h.enqueueProbe)
	r.GET("/runs", h.runs)
	r.GET("/runs/:id", h.run)
	r.GET("/stats/runs", h.runCounts)
	return r
}

// NewServer wraps handler in an http.Server with the timeouts the admin API needs.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := c.Writer.Status()
		level := slog.LevelDebug
		if status >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		log.LogAttrs(c.Request.Context(), level, "http request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", status),
			slog.Duration("dur", time.Since(start)),
		)
	}
}
