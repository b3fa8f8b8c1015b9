// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package azure

import (
	"strings"

	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"
)

type passwordSuite struct {
	testing.IsolationSuite
}

var _ = gc.Suite(&passwordSuite{})

func (s *passwordSuite) TestRandomAdminPassword(c *gc.C) {
	password := RandomAdminPassword()
	c.Assert(password, gc.HasLen, 64)
	c.Assert(strings.ContainsAny(password, "abcdefghijklmnopqrstuvwxyz"), jc.IsTrue)
	c.Assert(strings.ContainsAny(password, "ABCDEFGHIJKLMNOPQRSTUVWXYZ"), jc.IsTrue)
	c.Assert(strings.ContainsAny(password, "0123456789"), jc.IsTrue)
}

func (s *passwordSuite) TestRandomAdminPasswordsDiffer(c *gc.C) {
	c.Assert(RandomAdminPassword(), gc.Not(gc.Equals), RandomAdminPassword())
}
