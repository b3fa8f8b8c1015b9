// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package plan sequences batches of provisioning jobs into phases: a
// phase's jobs all run concurrently, and a phase starts only once the
// previous one fully succeeded. Foundation resources are provisioned
// before the machines that depend on them this way.
package plan

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/juju/collections/transform"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"

	"github.com/canonical/provrun/batch"
)

var logger = loggo.GetLogger("provrun.plan")

// Phase is one named stage of a plan.
type Phase struct {
	Name string
	Jobs []batch.Job
}

// Plan is an ordered sequence of phases. The run ID correlates log
// lines from one execution.
type Plan struct {
	ID     string
	Phases []Phase
}

// New returns a plan over the supplied phases with a fresh run ID.
func New(phases ...Phase) *Plan {
	return &Plan{
		ID:     uuid.NewString(),
		Phases: phases,
	}
}

// Execute runs each phase's jobs as one batch, stopping at the first
// phase that does not fully succeed and returning its failure. Later
// phases are not started; the failed phase's completed jobs are not
// rolled back.
func (p *Plan) Execute(ctx context.Context) error {
	for i, phase := range p.Phases {
		names := transform.Slice(phase.Jobs, func(j batch.Job) string {
			return j.Name
		})
		logger.Infof("run %s: phase %d/%d %q: %s",
			p.ID, i+1, len(p.Phases), phase.Name, strings.Join(names, ", "))

		result := batch.Run(ctx, phase.Jobs)
		for _, failed := range result.Failed() {
			logger.Errorf("run %s: phase %q: job %q: %v",
				p.ID, phase.Name, failed.Name, failed.Err)
		}
		if err := result.Err(); err != nil {
			return errors.Annotatef(err, "phase %q", phase.Name)
		}
	}
	return nil
}
