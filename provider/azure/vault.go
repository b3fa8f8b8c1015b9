// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package azure

import (
	"context"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/keyvault/armkeyvault"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azkeys"
	"github.com/google/uuid"
	"github.com/juju/errors"
)

// EnsureVault creates a key vault granting the supplied principal
// full secret and key access, recovering a soft-deleted vault of the
// same name if one exists. It returns the vault's base URI.
func (p *Provisioner) EnsureVault(ctx context.Context, vaultName, objectID string) (string, error) {
	vaults, err := armkeyvault.NewVaultsClient(
		p.cfg.SubscriptionID, p.cfg.Credential, &p.cfg.ClientOptions)
	if err != nil {
		return "", errors.Trace(err)
	}

	tenantID := fromStringOrNil(p.cfg.TenantID)
	vaultParams := armkeyvault.VaultCreateOrUpdateParameters{
		Location: to.Ptr(p.cfg.Location),
		Properties: &armkeyvault.VaultProperties{
			TenantID:              to.Ptr(tenantID.String()),
			EnableSoftDelete:      to.Ptr(true),
			EnablePurgeProtection: to.Ptr(true),
			CreateMode:            to.Ptr(armkeyvault.CreateModeDefault),
			NetworkACLs: &armkeyvault.NetworkRuleSet{
				Bypass:        to.Ptr(armkeyvault.NetworkRuleBypassOptionsAzureServices),
				DefaultAction: to.Ptr(armkeyvault.NetworkRuleActionAllow),
			},
			SKU: &armkeyvault.SKU{
				Family: to.Ptr(armkeyvault.SKUFamilyA),
				Name:   to.Ptr(armkeyvault.SKUNameStandard),
			},
			AccessPolicies: []*armkeyvault.AccessPolicyEntry{{
				TenantID: to.Ptr(tenantID.String()),
				ObjectID: to.Ptr(objectID),
				Permissions: &armkeyvault.Permissions{
					Keys:    to.SliceOfPtrs(armkeyvault.PossibleKeyPermissionsValues()...),
					Secrets: to.SliceOfPtrs(armkeyvault.PossibleSecretPermissionsValues()...),
				},
			}},
		},
	}

	// Before creating check to see if the key vault has been soft deleted.
	_, err = vaults.GetDeleted(ctx, vaultName, p.cfg.Location, nil)
	if err != nil && !IsNotFoundError(err) && !IsForbiddenError(err) {
		return "", errors.Annotatef(err, "checking for an existing soft deleted vault %q", vaultName)
	}
	if err == nil {
		logger.Debugf("key vault %q has been soft deleted, recovering", vaultName)
		vaultParams.Properties.CreateMode = to.Ptr(armkeyvault.CreateModeRecover)
	}

	logger.Debugf("ensure vault %q", vaultName)
	var vaultURI string
	err = p.invoker.call(func() error {
		poller, err := vaults.BeginCreateOrUpdate(ctx, p.cfg.ResourceGroup, vaultName, vaultParams, nil)
		if err != nil {
			return err
		}
		resp, err := poller.PollUntilDone(ctx, nil)
		if err != nil {
			return err
		}
		if resp.Properties != nil {
			vaultURI = toValue(resp.Properties.VaultURI)
		}
		return nil
	})
	if err != nil {
		return "", errors.Annotatef(err, "creating vault %q", vaultName)
	}
	if vaultURI == "" {
		return "", errors.Errorf("vault %q has no URI", vaultName)
	}
	return vaultURI, nil
}

// CreateVaultKey creates an RSA key in the vault, or recovers a soft
// deleted key of the same name, returning the key identifier.
func (p *Provisioner) CreateVaultKey(ctx context.Context, vaultBaseURI, keyName string) (string, error) {
	logger.Debugf("create vault key %q in %q", keyName, vaultBaseURI)
	keyClient, err := azkeys.NewClient(vaultBaseURI, p.cfg.Credential, &azkeys.ClientOptions{
		ClientOptions: p.cfg.ClientOptions.ClientOptions,
	})
	if err != nil {
		return "", errors.Annotatef(err, "creating vault key client for %q", vaultBaseURI)
	}

	resp, err := keyClient.CreateKey(
		ctx,
		keyName,
		azkeys.CreateKeyParameters{
			Kty:     to.Ptr(azkeys.KeyTypeRSA),
			KeySize: to.Ptr(int32(4096)),
			KeyOps: []*azkeys.KeyOperation{
				to.Ptr(azkeys.KeyOperationWrapKey),
				to.Ptr(azkeys.KeyOperationUnwrapKey),
			},
			KeyAttributes: &azkeys.KeyAttributes{
				Enabled: to.Ptr(true),
			},
		},
		nil)
	if err == nil {
		return string(toValue(resp.Key.KID)), nil
	}
	if !IsConflictError(err) {
		return "", errors.Trace(err)
	}

	// If the key was previously soft deleted, recover it.
	result, err := keyClient.RecoverDeletedKey(ctx, keyName, nil)
	if err != nil {
		return "", errors.Annotatef(err, "restoring soft deleted vault key %q", keyName)
	}
	return string(toValue(result.Key.KID)), nil
}

// fromStringOrNil returns a UUID parsed from the input string.
// Same behavior as Parse(), but returns uuid.Nil instead of an error.
func fromStringOrNil(input string) uuid.UUID {
	result, err := uuid.Parse(input)
	if err != nil {
		return uuid.Nil
	}
	return result
}
