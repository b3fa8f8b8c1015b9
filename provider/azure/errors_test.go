// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package azure

import (
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/juju/errors"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"
)

type errorsSuite struct {
	testing.IsolationSuite
}

var _ = gc.Suite(&errorsSuite{})

func respError(code string, status int) error {
	return &azcore.ResponseError{ErrorCode: code, StatusCode: status}
}

func (s *errorsSuite) TestStatusClassifiers(c *gc.C) {
	c.Assert(IsNotFoundError(respError("NotFound", http.StatusNotFound)), jc.IsTrue)
	c.Assert(IsNotFoundError(respError("Conflict", http.StatusConflict)), jc.IsFalse)
	c.Assert(IsNotFoundError(errors.New("boom")), jc.IsFalse)
	c.Assert(IsNotFoundError(nil), jc.IsFalse)

	c.Assert(IsConflictError(respError("Conflict", http.StatusConflict)), jc.IsTrue)
	c.Assert(IsForbiddenError(respError("Forbidden", http.StatusForbidden)), jc.IsTrue)
	c.Assert(isTooManyRequests(respError("TooManyRequests", http.StatusTooManyRequests)), jc.IsTrue)
	c.Assert(isTooManyRequests(respError("Throttled", http.StatusServiceUnavailable)), jc.IsFalse)
}

func (s *errorsSuite) TestClassifiersSeeWrappedErrors(c *gc.C) {
	err := errors.Annotate(respError("NotFound", http.StatusNotFound), "fetching NIC")
	c.Assert(IsNotFoundError(err), jc.IsTrue)
}

func (s *errorsSuite) TestMaybeQuotaExceeded(c *gc.C) {
	quota := respError("QuotaExceeded", http.StatusConflict)
	err := MaybeQuotaExceeded(quota)
	c.Assert(err, gc.ErrorMatches, "(?s)subscription quota exceeded: .*")

	other := respError("Conflict", http.StatusConflict)
	c.Assert(MaybeQuotaExceeded(other), gc.Equals, other)
}
