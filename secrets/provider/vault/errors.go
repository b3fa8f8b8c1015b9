// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package vault

import (
	"net/http"
	"strings"

	"github.com/hashicorp/vault/api"
	"github.com/juju/errors"

	"github.com/canonical/provrun/secrets"
)

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *api.ResponseError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusNotFound
	}
	// Sadly we can just get a string from the api.
	return strings.Contains(err.Error(), "no secret found") ||
		strings.Contains(err.Error(), "secret not found")
}

func maybePermissionDenied(err error) error {
	var apiErr *api.ResponseError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusForbidden {
		return errors.WithType(err, secrets.PermissionDenied)
	}
	return errors.Trace(err)
}
