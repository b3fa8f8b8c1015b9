// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package secrets defines the contract provrun needs from an external
// secret store: a live key/value round-trip with no caching and no
// local persistence. Store implementations live under
// secrets/provider.
package secrets

import (
	"context"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"

	"github.com/canonical/provrun/retrier"
)

var logger = loggo.GetLogger("provrun.secrets")

const (
	// SecretNotFound describes a secret that does not exist in the
	// backing store.
	SecretNotFound = errors.ConstError("secret not found")

	// PermissionDenied describes a store rejecting the configured
	// credential.
	PermissionDenied = errors.ConstError("permission denied")
)

// Store is a remote secret store. Every operation is a network call
// that can transiently fail, so callers are expected to wrap them in
// a retrier.
type Store interface {
	// StoreSecret writes value under name, overwriting any previous
	// value.
	StoreSecret(ctx context.Context, name, value string) error

	// RetrieveSecret reads the current value of name, or an error
	// satisfying SecretNotFound.
	RetrieveSecret(ctx context.Context, name string) (string, error)

	// DeleteSecret removes name. Deleting an absent secret is not an
	// error.
	DeleteSecret(ctx context.Context, name string) error
}

// RoundTrip parks value in the store under name and reads it straight
// back, with both legs retried under the supplied retrier. It returns
// the value as read from the store, so a sensitive value need never
// be handed around outside it again. A mismatch between what was
// written and what came back is an error.
func RoundTrip(ctx context.Context, store Store, r *retrier.Retrier, name, value string) (string, error) {
	err := r.CallContext(ctx, func() error {
		return store.StoreSecret(ctx, name, value)
	})
	if err != nil {
		return "", errors.Annotatef(err, "storing secret %q", name)
	}
	logger.Debugf("stored secret %q", name)

	var got string
	err = r.CallContext(ctx, func() error {
		var err error
		got, err = store.RetrieveSecret(ctx, name)
		return err
	})
	if err != nil {
		return "", errors.Annotatef(err, "reading back secret %q", name)
	}
	if got != value {
		return "", errors.Errorf("secret %q round-trip mismatch", name)
	}
	return got, nil
}
