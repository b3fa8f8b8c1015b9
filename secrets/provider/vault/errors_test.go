// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package vault

import (
	"net/http"

	"github.com/hashicorp/vault/api"
	"github.com/juju/errors"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/canonical/provrun/secrets"
)

type errorsSuite struct {
	testing.IsolationSuite
}

var _ = gc.Suite(&errorsSuite{})

func (s *errorsSuite) TestIsNotFound(c *gc.C) {
	c.Assert(isNotFound(nil), jc.IsFalse)
	c.Assert(isNotFound(errors.New("boom")), jc.IsFalse)
	c.Assert(isNotFound(&api.ResponseError{StatusCode: http.StatusNotFound}), jc.IsTrue)
	c.Assert(isNotFound(&api.ResponseError{StatusCode: http.StatusBadRequest}), jc.IsFalse)
	c.Assert(isNotFound(errors.New("no secret found at path")), jc.IsTrue)
}

func (s *errorsSuite) TestMaybePermissionDenied(c *gc.C) {
	forbidden := &api.ResponseError{
		StatusCode: http.StatusForbidden,
		Errors:     []string{"permission denied"},
	}
	err := maybePermissionDenied(forbidden)
	c.Assert(err, jc.ErrorIs, secrets.PermissionDenied)

	plain := errors.New("boom")
	err = maybePermissionDenied(plain)
	c.Assert(errors.Is(err, secrets.PermissionDenied), jc.IsFalse)
	c.Assert(errors.Cause(err), gc.Equals, plain)
}

func (s *errorsSuite) TestConfigValidate(c *gc.C) {
	tests := []struct {
		cfg      StoreConfig
		expected string
	}{{
		cfg:      StoreConfig{Token: "t", MountPath: "m"},
		expected: "missing address not valid",
	}, {
		cfg:      StoreConfig{Address: "http://vault:8200", MountPath: "m"},
		expected: "missing token not valid",
	}, {
		cfg:      StoreConfig{Address: "http://vault:8200", Token: "t"},
		expected: "missing mount path not valid",
	}}
	for i, test := range tests {
		c.Logf("test %d", i)
		c.Check(test.cfg.Validate(), gc.ErrorMatches, test.expected)
	}
	c.Assert(StoreConfig{
		Address: "http://vault:8200", Token: "t", MountPath: "m",
	}.Validate(), jc.ErrorIsNil)
}
