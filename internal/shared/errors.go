package shared

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Sentinel errors shared by the task manager and its adapters.
var (
	// ErrNotFound indicates that a requested record does not exist
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates that caller input was rejected
	ErrValidation = errors.New("validation failed")

	// ErrForbidden indicates that the caller is not on the allow list
	ErrForbidden = errors.New("forbidden")

	// ErrConflict indicates that the request conflicts with the manager state
	ErrConflict = errors.New("conflict")

	// ErrInternal indicates a programming error such as a recovered panic
	ErrInternal = errors.New("internal error")

	// ErrTimeout indicates that an operation or a task ran out of time
	ErrTimeout = errors.New("operation timed out")

	// ErrInvariantViolated indicates broken configuration the manager cannot run with
	ErrInvariantViolated = errors.New("invariant violated")

	// ErrDependencyFailure indicates that a probed endpoint or the journal store failed
	ErrDependencyFailure = errors.New("dependency failure")
)

// Kind is a coarse error category used by adapters to pick a response.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindValidation
	KindForbidden
	KindConflict
	KindInternal
	KindTimeout
	KindInvariantViolated
	KindDependencyFailure
	KindCanceled
)

var kindNames = map[Kind]string{
	KindNotFound:          "NotFound",
	KindValidation:        "Validation",
	KindForbidden:         "Forbidden",
	KindConflict:          "Conflict",
	KindInternal:          "Internal",
	KindTimeout:           "Timeout",
	KindInvariantViolated: "InvariantViolated",
	KindDependencyFailure: "DependencyFailure",
	KindCanceled:          "Canceled",
}

// String returns the string representation of the Kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "Unknown"
}

// classification order: the first match wins for joined errors
var kindOrder = []struct {
	kind Kind
	err  error
}{
	{KindNotFound, ErrNotFound},
	{KindValidation, ErrValidation},
	{KindForbidden, ErrForbidden},
	{KindConflict, ErrConflict},
	{KindDependencyFailure, ErrDependencyFailure},
	{KindInternal, ErrInternal},
	{KindInvariantViolated, ErrInvariantViolated},
}

// KindOf classifies err. Cancellation wins over timeouts, timeouts win over the
// remaining sentinels. Unrecognised errors are KindUnknown.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case IsCanceled(err):
		return KindCanceled
	case IsTimeout(err):
		return KindTimeout
	}
	for _, k := range kindOrder {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindUnknown
}

// SentinelOf returns the sentinel for kind, or nil for KindUnknown and KindCanceled.
func SentinelOf(kind Kind) error {
	if kind == KindTimeout {
		return ErrTimeout
	}
	for _, k := range kindOrder {
		if k.kind == kind {
			return k.err
		}
	}
	return nil
}

// MarkKind wraps err with the sentinel of kind so that KindOf reports kind while
// errors.Is still finds err. Marking an error that already has the kind is a no-op.
func MarkKind(err error, kind Kind) error {
	sentinel := SentinelOf(kind)
	if err == nil {
		return sentinel
	}
	if sentinel == nil || KindOf(err) == kind {
		return err
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}

// Wrap prefixes err with context. A nil err stays nil.
func Wrap(err error, context string) error {
	if err == nil {
		return nil
	}
	if context == "" {
		return err
	}
	return fmt.Errorf("%s: %w", context, err)
}

// Invariant returns an ErrInvariantViolated error when condition is false.
func Invariant(condition bool, format string, args ...any) error {
	if condition {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvariantViolated, fmt.Sprintf(format, args...))
}

// IsCanceled reports whether err comes from a canceled context.
func IsCanceled(err error) bool {
	return err != nil && errors.Is(err, context.Canceled)
}

// IsTimeout reports context deadlines, net timeouts and ErrTimeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrTimeout) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

func IsForbidden(err error) bool { return errors.Is(err, ErrForbidden) }

func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

func IsInternal(err error) bool { return errors.Is(err, ErrInternal) }

func IsInvariantViolated(err error) bool { return errors.Is(err, ErrInvariantViolated) }

func IsDependencyFailure(err error) bool { return errors.Is(err, ErrDependencyFailure) }
