// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package azurekeyvault implements secrets.Store on an Azure Key
// Vault.
package azurekeyvault

import (
	"context"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"

	"github.com/canonical/provrun/secrets"
)

var logger = loggo.GetLogger("provrun.secrets.azurekeyvault")

// StoreConfig holds the connection details for a Key Vault.
type StoreConfig struct {
	// VaultURL is the vault's base URI,
	// e.g. https://myvault.vault.azure.net.
	VaultURL string

	// Credential authenticates against the vault.
	Credential azcore.TokenCredential

	// ClientOptions carries transport/cloud options through to the
	// SDK client.
	ClientOptions azcore.ClientOptions
}

// Validate returns an error if the config cannot be used.
func (c StoreConfig) Validate() error {
	if c.VaultURL == "" {
		return errors.NotValidf("missing vault URL")
	}
	if c.Credential == nil {
		return errors.NotValidf("missing credential")
	}
	return nil
}

// SecretStore is a secrets.Store backed by Azure Key Vault.
type SecretStore struct {
	client *azsecrets.Client
}

// NewStore returns a SecretStore for the supplied config.
func NewStore(cfg StoreConfig) (*SecretStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	client, err := azsecrets.NewClient(cfg.VaultURL, cfg.Credential, &azsecrets.ClientOptions{
		ClientOptions: cfg.ClientOptions,
	})
	if err != nil {
		return nil, errors.Annotate(err, "creating key vault secrets client")
	}
	return &SecretStore{client: client}, nil
}

// StoreSecret is part of the secrets.Store interface.
func (s *SecretStore) StoreSecret(ctx context.Context, name, value string) error {
	_, err := s.client.SetSecret(ctx, name, azsecrets.SetSecretParameters{
		Value: to.Ptr(value),
	}, nil)
	if err != nil {
		return maybePermissionDenied(err)
	}
	logger.Tracef("wrote secret %q", name)
	return nil
}

// RetrieveSecret is part of the secrets.Store interface.
func (s *SecretStore) RetrieveSecret(ctx context.Context, name string) (string, error) {
	// An empty version selects the latest.
	resp, err := s.client.GetSecret(ctx, name, "", nil)
	if isNotFound(err) {
		return "", errors.Annotatef(secrets.SecretNotFound, "%q", name)
	} else if err != nil {
		return "", maybePermissionDenied(err)
	}
	if resp.Value == nil {
		return "", errors.Errorf("secret %q has no value", name)
	}
	return *resp.Value, nil
}

// DeleteSecret is part of the secrets.Store interface.
func (s *SecretStore) DeleteSecret(ctx context.Context, name string) error {
	_, err := s.client.DeleteSecret(ctx, name, nil)
	if err == nil || isNotFound(err) {
		return nil
	}
	return maybePermissionDenied(err)
}
