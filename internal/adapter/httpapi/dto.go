package httpapi

import "neotask/internal/taskmanager"

// settingsResponse renders durations as milliseconds, like the request side.
type settingsResponse struct {
	TimeLimitMS         int64 `json:"time_limit_ms"`
	AbortOnTimeout      bool  `json:"abort_on_timeout"`
	AbortOnError        bool  `json:"abort_on_error"`
	TimeoutSilently     bool  `json:"timeout_silently"`
	ShowDebug           bool  `json:"show_debug"`
	ShowError           bool  `json:"show_error"`
	ExecuteDefaultHooks bool  `json:"execute_default_hooks"`
}

func newSettings(s taskmanager.Settings) settingsResponse {
	return settingsResponse{
		TimeLimitMS:         s.TimeLimit.Milliseconds(),
		AbortOnTimeout:      s.AbortOnTimeout,
		AbortOnError:        s.AbortOnError,
		TimeoutSilently:     s.TimeoutSilently,
		ShowDebug:           s.ShowDebug,
		ShowError:           s.ShowError,
		ExecuteDefaultHooks: s.ExecuteDefaultHooks,
	}
}

type statusResponse struct {
	Label           string                 `json:"label"`
	Busy            bool                   `json:"busy"`
	Queued          int                    `json:"queued"`
	MaxTasks        int                    `json:"max_tasks"`
	Progress        float64                `json:"progress"`
	StepMode        bool                   `json:"step_mode"`
	StackActive     bool                   `json:"stack_active"`
	RemainingTimeMS int64                  `json:"remaining_time_ms"`
	Current         *taskmanager.TaskInfo  `json:"current,omitempty"`
	Pending         []taskmanager.TaskInfo `json:"pending"`
	Defaults        settingsResponse       `json:"defaults"`
}

func newStatus(s taskmanager.Snapshot) statusResponse {
	pending := s.Pending
	if pending == nil {
		pending = []taskmanager.TaskInfo{}
	}
	return statusResponse{
		Label:           s.Label,
		Busy:            s.Busy,
		Queued:          s.Queued,
		MaxTasks:        s.MaxTasks,
		Progress:        s.Progress,
		StepMode:        s.StepMode,
		StackActive:     s.StackActive,
		RemainingTimeMS: s.RemainingTime.Milliseconds(),
		Current:         s.Current,
		Pending:         pending,
		Defaults:        newSettings(s.Defaults),
	}
}
