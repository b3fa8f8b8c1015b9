// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package retrier supervises a single fallible action, re-invoking it
// with exponentially growing delays until it succeeds or a bounded
// number of attempts is exhausted.
//
// Actions handed to a Retrier must be safe to invoke more than once;
// the supervisor retries on any error without inspecting its cause.
package retrier

import (
	"context"
	"fmt"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
)

// Policy describes how a Retrier schedules attempts. It is immutable
// once handed to New.
type Policy struct {
	// MaxAttempts bounds the number of invocations, including the
	// first. It must be at least 1; 1 means no retrying at all.
	MaxAttempts int

	// InitialDelay is the pause before the second attempt. A zero
	// delay retries immediately without touching the clock.
	InitialDelay time.Duration

	// Multiplier scales the delay after every failed attempt. It must
	// be at least 1.
	Multiplier float64

	// Clock supplies the delay timer. Tests inject a fake clock here;
	// New defaults it to clock.WallClock.
	Clock clock.Clock

	// IsFatal, when set, classifies an error as not worth retrying.
	// The default of nil retries on every error.
	IsFatal func(error) bool

	// Notify, when set, is called after each failed attempt that will
	// be retried, with the error and the 1-based attempt number.
	Notify func(err error, attempt int)
}

// Validate returns an error if the policy cannot be used.
func (p Policy) Validate() error {
	if p.MaxAttempts < 1 {
		return errors.NotValidf("max attempts %d", p.MaxAttempts)
	}
	if p.InitialDelay < 0 {
		return errors.NotValidf("negative initial delay")
	}
	if p.Multiplier < 1 {
		return errors.NotValidf("multiplier %v", p.Multiplier)
	}
	return nil
}

// Retrier runs actions under a fixed Policy. A single Retrier may be
// shared by concurrent callers; it holds no per-call state.
type Retrier struct {
	policy Policy
}

// New returns a Retrier for the supplied policy. The policy's clock
// defaults to the wall clock if unset.
func New(policy Policy) (*Retrier, error) {
	if err := policy.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	if policy.Clock == nil {
		policy.Clock = clock.WallClock
	}
	return &Retrier{policy: policy}, nil
}

// Call invokes f until it succeeds or the attempt bound is reached.
// Success returns nil immediately, with no further delay or
// invocation. Exhausting the bound returns an *ExhaustedError
// wrapping the last error from f.
func (r *Retrier) Call(f func() error) error {
	return r.call(nil, f)
}

// CallContext is Call with cancellation: the wait between attempts is
// abandoned when ctx is cancelled, returning a *StoppedError carrying
// the most recent attempt's error. A cancelled context never
// interrupts an attempt already in flight.
func (r *Retrier) CallContext(ctx context.Context, f func() error) error {
	return r.call(ctx.Done(), f)
}

// Action adapts f so that each invocation runs under this retrier,
// for handing to a batch job or similar.
func (r *Retrier) Action(f func(context.Context) error) func(context.Context) error {
	return func(ctx context.Context) error {
		return r.CallContext(ctx, func() error {
			return f(ctx)
		})
	}
}

func (r *Retrier) call(stop <-chan struct{}, f func() error) error {
	delay := r.policy.InitialDelay
	for attempt := 1; ; attempt++ {
		err := f()
		if err == nil {
			return nil
		}
		if r.policy.IsFatal != nil && r.policy.IsFatal(err) {
			return errors.Trace(err)
		}
		if attempt >= r.policy.MaxAttempts {
			return &ExhaustedError{Attempts: attempt, LastErr: err}
		}
		if r.policy.Notify != nil {
			r.policy.Notify(err, attempt)
		}
		if delay > 0 {
			select {
			case <-r.policy.Clock.After(delay):
			case <-stop:
				return &StoppedError{LastErr: err}
			}
		} else if stopped(stop) {
			return &StoppedError{LastErr: err}
		}
		delay = time.Duration(float64(delay) * r.policy.Multiplier)
	}
}

func stopped(stop <-chan struct{}) bool {
	select {
	case <-stop:
		return true
	default:
		return false
	}
}

// ExhaustedError reports that every permitted attempt failed. It
// always carries the error from the final attempt.
type ExhaustedError struct {
	Attempts int
	LastErr  error
}

// Error is part of the error interface.
func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("attempt count exceeded after %d attempts: %v", e.Attempts, e.LastErr)
}

// Unwrap makes the final attempt's error reachable via errors.Is/As.
func (e *ExhaustedError) Unwrap() error {
	return e.LastErr
}

// StoppedError reports that retrying was abandoned between attempts
// because the caller's context was cancelled.
type StoppedError struct {
	LastErr error
}

// Error is part of the error interface.
func (e *StoppedError) Error() string {
	return fmt.Sprintf("retry stopped, last error: %v", e.LastErr)
}

// Unwrap makes the last attempt's error reachable via errors.Is/As.
func (e *StoppedError) Unwrap() error {
	return e.LastErr
}

// IsExhausted reports whether err is, or wraps, an ExhaustedError.
func IsExhausted(err error) bool {
	var e *ExhaustedError
	return errors.As(err, &e)
}

// IsStopped reports whether err is, or wraps, a StoppedError.
func IsStopped(err error) bool {
	var e *StoppedError
	return errors.As(err, &e)
}

// LastError extracts the final attempt's error from an exhausted or
// stopped retry; any other error is returned unchanged.
func LastError(err error) error {
	var exhausted *ExhaustedError
	if errors.As(err, &exhausted) {
		return exhausted.LastErr
	}
	var aborted *StoppedError
	if errors.As(err, &aborted) {
		return aborted.LastErr
	}
	return err
}
