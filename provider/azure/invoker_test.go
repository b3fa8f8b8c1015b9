// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package azure

import (
	"net/http"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/juju/errors"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"
)

const longWait = 10 * time.Second

type invokerSuite struct {
	testing.IsolationSuite
}

var _ = gc.Suite(&invokerSuite{})

func (s *invokerSuite) TestBacksOffWhileThrottled(c *gc.C) {
	clk := testclock.NewClock(time.Time{})
	stub := &testing.Stub{}
	throttled := respError("TooManyRequests", http.StatusTooManyRequests)
	stub.SetErrors(throttled, throttled, nil)

	done := make(chan error, 1)
	go func() {
		done <- invoker{clock: clk}.call(func() error {
			stub.AddCall("api")
			return stub.NextErr()
		})
	}()

	// The delay doubles from the initial 5s.
	c.Assert(clk.WaitAdvance(5*time.Second, longWait, 1), jc.ErrorIsNil)
	c.Assert(clk.WaitAdvance(10*time.Second, longWait, 1), jc.ErrorIsNil)

	select {
	case err := <-done:
		c.Assert(err, jc.ErrorIsNil)
	case <-time.After(longWait):
		c.Fatalf("timed out waiting for call to complete")
	}
	stub.CheckCallNames(c, "api", "api", "api")
}

func (s *invokerSuite) TestOtherErrorsAreFatal(c *gc.C) {
	clk := testclock.NewClock(time.Time{})
	stub := &testing.Stub{}
	stub.SetErrors(errors.New("boom"))

	err := invoker{clock: clk}.call(func() error {
		stub.AddCall("api")
		return stub.NextErr()
	})
	c.Assert(err, gc.ErrorMatches, "boom")
	stub.CheckCallNames(c, "api")
}

func (s *invokerSuite) TestSuccessFirstTime(c *gc.C) {
	clk := testclock.NewClock(time.Time{})
	stub := &testing.Stub{}

	err := invoker{clock: clk}.call(func() error {
		stub.AddCall("api")
		return stub.NextErr()
	})
	c.Assert(err, jc.ErrorIsNil)
	stub.CheckCallNames(c, "api")
}
