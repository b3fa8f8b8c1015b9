// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package vault implements secrets.Store on a HashiCorp Vault KV v2
// mount.
package vault

import (
	"context"

	"github.com/hashicorp/vault/api"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"

	"github.com/canonical/provrun/secrets"
)

var logger = loggo.GetLogger("provrun.secrets.vault")

// valueKey is the single field each secret's value is stored under.
const valueKey = "value"

// StoreConfig holds the connection details for a Vault KV v2 mount.
type StoreConfig struct {
	// Address is the Vault server URL.
	Address string

	// Token authenticates the client.
	Token string

	// MountPath is the KV v2 mount the secrets live under.
	MountPath string
}

// Validate returns an error if the config cannot be used.
func (c StoreConfig) Validate() error {
	if c.Address == "" {
		return errors.NotValidf("missing address")
	}
	if c.Token == "" {
		return errors.NotValidf("missing token")
	}
	if c.MountPath == "" {
		return errors.NotValidf("missing mount path")
	}
	return nil
}

// SecretStore is a secrets.Store backed by Vault.
type SecretStore struct {
	kv *api.KVv2
}

// NewStore returns a SecretStore for the supplied config.
func NewStore(cfg StoreConfig) (*SecretStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	apiCfg := api.DefaultConfig()
	apiCfg.Address = cfg.Address
	client, err := api.NewClient(apiCfg)
	if err != nil {
		return nil, errors.Annotate(err, "creating vault client")
	}
	client.SetToken(cfg.Token)
	return &SecretStore{kv: client.KVv2(cfg.MountPath)}, nil
}

// StoreSecret is part of the secrets.Store interface.
func (s *SecretStore) StoreSecret(ctx context.Context, name, value string) error {
	_, err := s.kv.Put(ctx, name, map[string]interface{}{
		valueKey: value,
	})
	if err != nil {
		return maybePermissionDenied(err)
	}
	logger.Tracef("wrote secret %q", name)
	return nil
}

// RetrieveSecret is part of the secrets.Store interface.
func (s *SecretStore) RetrieveSecret(ctx context.Context, name string) (string, error) {
	secret, err := s.kv.Get(ctx, name)
	if isNotFound(err) {
		return "", errors.Annotatef(secrets.SecretNotFound, "%q", name)
	} else if err != nil {
		return "", maybePermissionDenied(err)
	}
	value, ok := secret.Data[valueKey].(string)
	if !ok {
		return "", errors.Errorf("secret %q has no %q field", name, valueKey)
	}
	return value, nil
}

// DeleteSecret is part of the secrets.Store interface.
func (s *SecretStore) DeleteSecret(ctx context.Context, name string) error {
	err := s.kv.Delete(ctx, name)
	if err == nil || isNotFound(err) {
		return nil
	}
	return maybePermissionDenied(err)
}
