// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package batch runs a fixed set of named jobs concurrently and
// reports every job's terminal outcome. One job failing never cancels
// its siblings; the batch completes only when every job has.
package batch

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/juju/collections/transform"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
)

var logger = loggo.GetLogger("provrun.batch")

// Action is a unit of fallible work. Actions sharing state must
// supply their own synchronisation; the batch imposes none.
type Action func(ctx context.Context) error

// Job names an action for reporting.
type Job struct {
	Name string
	Run  Action
}

// JobResult is one job's terminal outcome.
type JobResult struct {
	Name     string
	Err      error
	Started  time.Time
	Finished time.Time
}

// Result reports a finished batch. Jobs appear in submission order,
// exactly once each, whatever order they completed in.
type Result struct {
	Jobs     []JobResult
	Failures int
}

// OK reports whether every job in the batch succeeded. An empty
// batch is vacuously successful.
func (r Result) OK() bool {
	return r.Failures == 0
}

// Failed returns the results of the jobs that failed, in submission
// order.
func (r Result) Failed() []JobResult {
	var failed []JobResult
	for _, j := range r.Jobs {
		if j.Err != nil {
			failed = append(failed, j)
		}
	}
	return failed
}

// Err returns nil for a fully successful batch, otherwise a
// *PartialFailureError carrying this result.
func (r Result) Err() error {
	if r.OK() {
		return nil
	}
	return &PartialFailureError{Result: r}
}

// PartialFailureError reports that at least one job in a batch
// failed. The full result remains available so the caller can decide
// what to do about the jobs that did succeed.
type PartialFailureError struct {
	Result Result
}

// Error is part of the error interface.
func (e *PartialFailureError) Error() string {
	names := transform.Slice(e.Result.Failed(), func(j JobResult) string {
		return j.Name
	})
	return fmt.Sprintf(
		"%d of %d jobs failed: %s",
		e.Result.Failures, len(e.Result.Jobs), strings.Join(names, ", "),
	)
}

// Run launches every job in its own goroutine before awaiting any of
// them, then blocks until all have reached a terminal state. The
// context is passed through to each action; Run itself never cancels
// a job, not even when a sibling fails.
func Run(ctx context.Context, jobs []Job) Result {
	results := make([]JobResult, len(jobs))
	var wg sync.WaitGroup
	for i, job := range jobs {
		wg.Add(1)
		go func(i int, job Job) {
			defer wg.Done()
			results[i] = runOne(ctx, job)
		}(i, job)
	}
	wg.Wait()

	var failures int
	for _, r := range results {
		if r.Err != nil {
			failures++
		}
	}
	return Result{Jobs: results, Failures: failures}
}

func runOne(ctx context.Context, job Job) (result JobResult) {
	result.Name = job.Name
	result.Started = time.Now()
	defer func() {
		if p := recover(); p != nil {
			result.Err = errors.Errorf("job %q panicked: %v", job.Name, p)
		}
		result.Finished = time.Now()
		if result.Err != nil {
			logger.Warningf("job %q failed after %v: %v",
				job.Name, result.Finished.Sub(result.Started), result.Err)
		} else {
			logger.Debugf("job %q finished in %v",
				job.Name, result.Finished.Sub(result.Started))
		}
	}()
	if job.Run == nil {
		result.Err = errors.NotValidf("job %q with nil action", job.Name)
		return result
	}
	result.Err = job.Run(ctx)
	return result
}
