// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package azurekeyvault

import (
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
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
	c.Assert(isNotFound(&azcore.ResponseError{
		ErrorCode:  "SecretNotFound",
		StatusCode: http.StatusNotFound,
	}), jc.IsTrue)
	c.Assert(isNotFound(&azcore.ResponseError{
		StatusCode: http.StatusConflict,
	}), jc.IsFalse)
}

func (s *errorsSuite) TestMaybePermissionDenied(c *gc.C) {
	err := maybePermissionDenied(&azcore.ResponseError{
		ErrorCode:  "Forbidden",
		StatusCode: http.StatusForbidden,
	})
	c.Assert(err, jc.ErrorIs, secrets.PermissionDenied)

	plain := errors.New("boom")
	err = maybePermissionDenied(plain)
	c.Assert(errors.Is(err, secrets.PermissionDenied), jc.IsFalse)
	c.Assert(errors.Cause(err), gc.Equals, plain)
}

func (s *errorsSuite) TestConfigValidate(c *gc.C) {
	err := StoreConfig{}.Validate()
	c.Assert(err, gc.ErrorMatches, "missing vault URL not valid")
	err = StoreConfig{VaultURL: "https://v.vault.azure.net"}.Validate()
	c.Assert(err, gc.ErrorMatches, "missing credential not valid")
}
