package taskmanager

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"neotask/internal/shared"
)

// Settings is a fully resolved configuration. Every field always holds a value;
// the manager's defaults are a Settings and per-task Overrides are layered on top.
type Settings struct {
	// TimeLimit is how long a task may stay current before it times out.
	TimeLimit time.Duration `json:"time_limit" validate:"gt=0"`
	// AbortOnTimeout clears the whole queue on timeout instead of dropping only the current task.
	AbortOnTimeout bool `json:"abort_on_timeout"`
	// AbortOnError clears the whole queue when a task fails instead of dropping only the current task.
	AbortOnError bool `json:"abort_on_error"`
	// TimeoutSilently suppresses the timeout warning.
	TimeoutSilently bool `json:"timeout_silently"`
	// ShowDebug raises lifecycle messages from debug to info level.
	ShowDebug bool `json:"show_debug"`
	// ShowError logs task errors at error level.
	ShowError bool `json:"show_error"`
	// ExecuteDefaultHooks runs the manager's default hooks for tasks that carry their own config.
	ExecuteDefaultHooks bool `json:"execute_default_hooks"`
}

// DefaultSettings returns the built-in defaults.
func DefaultSettings() Settings {
	return Settings{
		TimeLimit:           30 * time.Second,
		AbortOnTimeout:      true,
		AbortOnError:        true,
		TimeoutSilently:     false,
		ShowDebug:           false,
		ShowError:           true,
		ExecuteDefaultHooks: true,
	}
}

// Overrides shadows Settings field by field. A nil field inherits.
type Overrides struct {
	TimeLimit           *time.Duration `json:"time_limit,omitempty"`
	AbortOnTimeout      *bool          `json:"abort_on_timeout,omitempty"`
	AbortOnError        *bool          `json:"abort_on_error,omitempty"`
	TimeoutSilently     *bool          `json:"timeout_silently,omitempty"`
	ShowDebug           *bool          `json:"show_debug,omitempty"`
	ShowError           *bool          `json:"show_error,omitempty"`
	ExecuteDefaultHooks *bool          `json:"execute_default_hooks,omitempty"`
}

// With returns s with every non-nil field of o applied. Neither input is modified.
func (s Settings) With(o *Overrides) Settings {
	if o == nil {
		return s
	}
	if o.TimeLimit != nil {
		s.TimeLimit = *o.TimeLimit
	}
	if o.AbortOnTimeout != nil {
		s.AbortOnTimeout = *o.AbortOnTimeout
	}
	if o.AbortOnError != nil {
		s.AbortOnError = *o.AbortOnError
	}
	if o.TimeoutSilently != nil {
		s.TimeoutSilently = *o.TimeoutSilently
	}
	if o.ShowDebug != nil {
		s.ShowDebug = *o.ShowDebug
	}
	if o.ShowError != nil {
		s.ShowError = *o.ShowError
	}
	if o.ExecuteDefaultHooks != nil {
		s.ExecuteDefaultHooks = *o.ExecuteDefaultHooks
	}
	return s
}

var validate = validator.New()

// Validate reports an invariant violation when s cannot serve as manager defaults.
func (s Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("%w: default settings: %w", shared.ErrInvariantViolated, err)
	}
	return nil
}

// Ptr returns a pointer to v. Handy for building Overrides literals.
func Ptr[T any](v T) *T { return &v }
