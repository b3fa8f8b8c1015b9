// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package azure

import (
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/juju/errors"
)

func asResponseError(err error) (*azcore.ResponseError, bool) {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		return respErr, true
	}
	return nil, false
}

// IsNotFoundError reports whether err is an ARM 404.
func IsNotFoundError(err error) bool {
	respErr, ok := asResponseError(err)
	return ok && respErr.StatusCode == http.StatusNotFound
}

// IsConflictError reports whether err is an ARM 409.
func IsConflictError(err error) bool {
	respErr, ok := asResponseError(err)
	return ok && respErr.StatusCode == http.StatusConflict
}

// IsForbiddenError reports whether err is an ARM 403.
func IsForbiddenError(err error) bool {
	respErr, ok := asResponseError(err)
	return ok && respErr.StatusCode == http.StatusForbidden
}

func isTooManyRequests(err error) bool {
	respErr, ok := asResponseError(err)
	return ok && respErr.StatusCode == http.StatusTooManyRequests
}

// MaybeQuotaExceeded annotates quota errors so callers can recognise
// a failure that no amount of retrying will fix.
func MaybeQuotaExceeded(err error) error {
	respErr, ok := asResponseError(err)
	if ok && respErr.ErrorCode == "QuotaExceeded" {
		return errors.Annotate(err, "subscription quota exceeded")
	}
	return err
}
