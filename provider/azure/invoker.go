// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package azure

import (
	"time"

	"github.com/juju/clock"
	"github.com/juju/retry"
)

const (
	retryDelay       = 5 * time.Second
	maxRetryDelay    = 1 * time.Minute
	maxRetryDuration = 5 * time.Minute
)

// invoker wraps ARM calls with exponential backoff for as long as the
// control plane keeps answering http.StatusTooManyRequests. Any other
// error is fatal to the call and handed back for the caller's own
// retry policy to deal with.
type invoker struct {
	clock clock.Clock
}

func (c invoker) call(f func() error) error {
	return retry.Call(retry.CallArgs{
		Func: f,
		IsFatalError: func(err error) bool {
			return !isTooManyRequests(err)
		},
		NotifyFunc: func(err error, attempt int) {
			logger.Debugf("throttled by control plane, attempt %d: %v", attempt, err)
		},
		Attempts:    retry.UnlimitedAttempts,
		Delay:       retryDelay,
		MaxDelay:    maxRetryDelay,
		MaxDuration: maxRetryDuration,
		BackoffFunc: retry.DoubleDelay,
		Clock:       c.clock,
	})
}
