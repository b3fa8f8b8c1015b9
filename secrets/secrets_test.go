// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package secrets_test

import (
	"context"
	"sync"

	"github.com/juju/errors"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/canonical/provrun/retrier"
	"github.com/canonical/provrun/secrets"
)

type secretsSuite struct {
	testing.IsolationSuite
}

var _ = gc.Suite(&secretsSuite{})

// memStore is an in-memory secrets.Store with injectable failures.
type memStore struct {
	mu     sync.Mutex
	stub   *testing.Stub
	values map[string]string
}

func newMemStore(stub *testing.Stub) *memStore {
	return &memStore{stub: stub, values: make(map[string]string)}
}

func (s *memStore) StoreSecret(ctx context.Context, name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stub.AddCall("StoreSecret", name)
	if err := s.stub.NextErr(); err != nil {
		return err
	}
	s.values[name] = value
	return nil
}

func (s *memStore) RetrieveSecret(ctx context.Context, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stub.AddCall("RetrieveSecret", name)
	if err := s.stub.NextErr(); err != nil {
		return "", err
	}
	value, ok := s.values[name]
	if !ok {
		return "", errors.Annotatef(secrets.SecretNotFound, "%q", name)
	}
	return value, nil
}

func (s *memStore) DeleteSecret(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stub.AddCall("DeleteSecret", name)
	if err := s.stub.NextErr(); err != nil {
		return err
	}
	delete(s.values, name)
	return nil
}

func (s *secretsSuite) retrier(c *gc.C, attempts int) *retrier.Retrier {
	r, err := retrier.New(retrier.Policy{MaxAttempts: attempts, Multiplier: 2})
	c.Assert(err, jc.ErrorIsNil)
	return r
}

func (s *secretsSuite) TestRoundTrip(c *gc.C) {
	stub := &testing.Stub{}
	store := newMemStore(stub)
	got, err := secrets.RoundTrip(context.Background(), store, s.retrier(c, 3), "vm-admin-password", "sekrit")
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(got, gc.Equals, "sekrit")
	stub.CheckCallNames(c, "StoreSecret", "RetrieveSecret")
}

func (s *secretsSuite) TestRoundTripRetriesTransientStoreFailure(c *gc.C) {
	boom := errors.New("503 backend sealed")
	stub := &testing.Stub{}
	stub.SetErrors(boom, nil, nil)
	store := newMemStore(stub)
	got, err := secrets.RoundTrip(context.Background(), store, s.retrier(c, 2), "vm-admin-password", "sekrit")
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(got, gc.Equals, "sekrit")
	stub.CheckCallNames(c, "StoreSecret", "StoreSecret", "RetrieveSecret")
}

func (s *secretsSuite) TestRoundTripSurfacesExhaustion(c *gc.C) {
	boom := errors.New("503 backend sealed")
	stub := &testing.Stub{}
	stub.SetErrors(boom, boom)
	store := newMemStore(stub)
	_, err := secrets.RoundTrip(context.Background(), store, s.retrier(c, 2), "vm-admin-password", "sekrit")
	c.Assert(err, gc.ErrorMatches, `storing secret "vm-admin-password": .*503 backend sealed`)
	c.Assert(retrier.IsExhausted(err), jc.IsTrue)
	c.Assert(retrier.LastError(errors.Cause(err)), gc.Equals, boom)
}

func (s *secretsSuite) TestRoundTripMismatch(c *gc.C) {
	// A store that reads back a different value is reported, not
	// papered over.
	store := &tamperingStore{newMemStore(&testing.Stub{})}
	_, err := secrets.RoundTrip(context.Background(), store, s.retrier(c, 1), "vm-admin-password", "sekrit")
	c.Assert(err, gc.ErrorMatches, `secret "vm-admin-password" round-trip mismatch`)
}

// tamperingStore accepts writes but always returns a fixed value.
type tamperingStore struct {
	*memStore
}

func (s *tamperingStore) RetrieveSecret(ctx context.Context, name string) (string, error) {
	return "tampered", nil
}

func (s *secretsSuite) TestNotFoundSurfaced(c *gc.C) {
	stub := &testing.Stub{}
	store := newMemStore(stub)
	_, err := store.RetrieveSecret(context.Background(), "missing")
	c.Assert(err, jc.ErrorIs, secrets.SecretNotFound)
}
