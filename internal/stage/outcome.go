package stage

import (
	"context"
	"errors"
	"time"
)

// FailReason classifies adapter failures at the adapter boundary so the
// orchestrator never inspects backend-specific errors.
type FailReason string

const (
	ReasonModelUnavailable FailReason = "model_unavailable"
	ReasonInvalidInput     FailReason = "invalid_input"
	ReasonInternalError    FailReason = "internal_error"
)

// Status is the outcome variant of a stage invocation.
type Status int

const (
	StatusOK Status = iota
	StatusFail
	StatusTimeout
)

// Error carries a FailReason alongside the underlying cause. Adapters wrap
// backend errors in it; anything else maps to ReasonInternalError.
type Error struct {
	Reason FailReason
	Err    error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Reason)
	}
	return string(e.Reason) + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Unavailable wraps err as a ModelUnavailable stage error.
func Unavailable(err error) error {
	return &Error{Reason: ReasonModelUnavailable, Err: err}
}

// InvalidInput wraps err as an InvalidInput stage error.
func InvalidInput(err error) error {
	return &Error{Reason: ReasonInvalidInput, Err: err}
}

// Internal wraps err as an InternalError stage error.
func Internal(err error) error {
	return &Error{Reason: ReasonInternalError, Err: err}
}

// Outcome is the typed result of one stage invocation.
type Outcome[T any] struct {
	Status  Status
	Value   T
	Reason  FailReason
	Err     error
	Elapsed time.Duration
}

func (o Outcome[T]) OK() bool       { return o.Status == StatusOK }
func (o Outcome[T]) TimedOut() bool { return o.Status == StatusTimeout }

// Invoke runs fn under a deadline derived from budget and maps context
// expiry to a Timeout outcome. Adapters never retry; a non-OK outcome is
// final for this request.
func Invoke[T any](ctx context.Context, budget time.Duration, fn func(context.Context) (T, error)) Outcome[T] {
	start := time.Now()

	callCtx := ctx
	var cancel context.CancelFunc
	if budget > 0 {
		callCtx, cancel = context.WithTimeout(ctx, budget)
		defer cancel()
	}

	value, err := fn(callCtx)
	elapsed := time.Since(start)

	if err == nil {
		return Outcome[T]{Status: StatusOK, Value: value, Elapsed: elapsed}
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || callCtx.Err() != nil {
		return Outcome[T]{Status: StatusTimeout, Err: err, Elapsed: elapsed}
	}

	var stageErr *Error
	if errors.As(err, &stageErr) {
		return Outcome[T]{Status: StatusFail, Reason: stageErr.Reason, Err: err, Elapsed: elapsed}
	}
	return Outcome[T]{Status: StatusFail, Reason: ReasonInternalError, Err: err, Elapsed: elapsed}
}
