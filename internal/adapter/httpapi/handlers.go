package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"neotask/internal/control"
	"neotask/internal/journal"
	"neotask/internal/shared"
	"neotask/internal/taskmanager"
)

type handler struct {
	ctl Controller
	log *slog.Logger
}

func (h *handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handler) status(c *gin.Context) {
	s, err := h.ctl.Snapshot(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newStatus(s))
}

func (h *handler) tasks(c *gin.Context) {
	s, err := h.ctl.Snapshot(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"current": s.Current, "pending": s.Pending})
}

func (h *handler) abort(c *gin.Context) {
	if err := h.ctl.Abort(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	h.log.Info("manager aborted via api")
	c.Status(http.StatusNoContent)
}

func (h *handler) abortCurrent(c *gin.Context) {
	info, err := h.ctl.AbortCurrent(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	h.log.Info("current task aborted via api", slog.String("task", info.Name))
	c.JSON(http.StatusOK, gin.H{"task": info})
}

func (h *handler) step(c *gin.Context) {
	s, err := h.ctl.Step(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newStatus(s))
}

type stepModeRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

func (h *handler) setStepMode(c *gin.Context) {
	var req stepModeRequest
	if !h.bind(c, &req) {
		return
	}
	if err := h.ctl.SetStepMode(c.Request.Context(), *req.Enabled); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"step_mode": *req.Enabled})
}

type defaultsRequest struct {
	TimeLimitMS         *int64 `json:"time_limit_ms" binding:"omitempty,gt=0"`
	AbortOnTimeout      *bool  `json:"abort_on_timeout"`
	AbortOnError        *bool  `json:"abort_on_error"`
	TimeoutSilently     *bool  `json:"timeout_silently"`
	ShowDebug           *bool  `json:"show_debug"`
	ShowError           *bool  `json:"show_error"`
	ExecuteDefaultHooks *bool  `json:"execute_default_hooks"`
}

func (r defaultsRequest) overrides() taskmanager.Overrides {
	o := taskmanager.Overrides{
		AbortOnTimeout:      r.AbortOnTimeout,
		AbortOnError:        r.AbortOnError,
		TimeoutSilently:     r.TimeoutSilently,
		ShowDebug:           r.ShowDebug,
		ShowError:           r.ShowError,
		ExecuteDefaultHooks: r.ExecuteDefaultHooks,
	}
	if r.TimeLimitMS != nil {
		o.TimeLimit = taskmanager.Ptr(time.Duration(*r.TimeLimitMS) * time.Millisecond)
	}
	return o
}

func (h *handler) updateDefaults(c *gin.Context) {
	var req defaultsRequest
	if !h.bind(c, &req) {
		return
	}
	s, err := h.ctl.UpdateDefaults(c.Request.Context(), req.overrides())
	if err != nil {
		h.fail(c, err)
		return
	}
	h.log.Info("defaults updated via api", slog.Duration("time_limit", s.TimeLimit))
	c.JSON(http.StatusOK, newSettings(s))
}

type delayRequest struct {
	DurationMS int64 `json:"duration_ms" binding:"required,gt=0"`
}

func (h *handler) enqueueDelay(c *gin.Context) {
	var req delayRequest
	if !h.bind(c, &req) {
		return
	}
	info, err := h.ctl.EnqueueDelay(c.Request.Context(), time.Duration(req.DurationMS)*time.Millisecond)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"task": info})
}

type probeRequest struct {
	URL         string `json:"url" binding:"required,http_url"`
	TimeLimitMS int64  `json:"time_limit_ms" binding:"gte=0"`
	Insert      bool   `json:"insert"`
}

func (h *handler) enqueueProbe(c *gin.Context) {
	var req probeRequest
	if !h.bind(c, &req) {
		return
	}
	info, err := h.ctl.EnqueueProbe(c.Request.Context(), control.ProbeRequest{
		URL:       req.URL,
		TimeLimit: time.Duration(req.TimeLimitMS) * time.Millisecond,
		Insert:    req.Insert,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"task": info})
}

type runsQuery struct {
	Manager string `form:"manager"`
	Outcome string `form:"outcome" binding:"omitempty,oneof=succeeded aborted timed_out failed detached discarded"`
	Limit   int    `form:"limit" binding:"omitempty,gte=1,lte=500"`
}

func (h *handler) runs(c *gin.Context) {
	var q runsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.fail(c, shared.MarkKind(err, shared.KindValidation))
		return
	}
	runs, err := h.ctl.Runs(c.Request.Context(), journal.Filter{Manager: q.Manager, Outcome: q.Outcome, Limit: q.Limit})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (h *handler) run(c *gin.Context) {
	r, err := h.ctl.Run(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *handler) runCounts(c *gin.Context) {
	counts, err := h.ctl.RunCounts(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"outcomes": counts})
}

func (h *handler) bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.fail(c, shared.MarkKind(err, shared.KindValidation))
		return false
	}
	return true
}

func (h *handler) fail(c *gin.Context, err error) {
	kind := shared.KindOf(err)
	code := statusFor(kind)
	if code >= http.StatusInternalServerError {
		h.log.Error("request failed", slog.String("path", c.FullPath()), slog.Any("error", err))
	}
	c.AbortWithStatusJSON(code, gin.H{"error": err.Error(), "kind": kind.String()})
}

func statusFor(kind shared.Kind) int {
	switch kind {
	case shared.KindValidation:
		return http.StatusBadRequest
	case shared.KindForbidden:
		return http.StatusForbidden
	case shared.KindNotFound:
		return http.StatusNotFound
	case shared.KindConflict:
		return http.StatusConflict
	case shared.KindTimeout:
		return http.StatusGatewayTimeout
	case shared.KindDependencyFailure:
		return http.StatusBadGateway
	case shared.KindCanceled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
