// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// provrun provisions a small fixed fleet on Azure: a resource group,
// a virtual network with a guarded subnet, a key vault, and a set of
// virtual machines created in parallel. Admin passwords are generated
// locally, parked in the secret store, and read back from it; they
// never appear on a command line or in a log.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/gnuflag"
	"github.com/juju/loggo/v2"

	"github.com/canonical/provrun/batch"
	"github.com/canonical/provrun/plan"
	"github.com/canonical/provrun/provider/azure"
	"github.com/canonical/provrun/retrier"
	"github.com/canonical/provrun/secrets"
	"github.com/canonical/provrun/secrets/provider/azurekeyvault"
	"github.com/canonical/provrun/secrets/provider/vault"
)

var logger = loggo.GetLogger("provrun.cmd")

type options struct {
	resourceGroup string
	location      string
	namePrefix    string
	machines      int
	machineSize   string
	adminUser     string
	sshPublicKey  string

	vnetName      string
	addressPrefix string
	subnetPrefix  string

	vaultName     string
	secretBackend string
	vaultMount    string

	retryAttempts int
	retryDelay    time.Duration

	loggingConfig string
}

func parseArgs(args []string) (options, error) {
	var opts options
	f := gnuflag.NewFlagSet("provrun", gnuflag.ContinueOnError)
	f.StringVar(&opts.resourceGroup, "resource-group", "provrun", "resource group to provision into")
	f.StringVar(&opts.location, "location", "westeurope", "Azure location")
	f.StringVar(&opts.namePrefix, "name-prefix", "provrun", "prefix for machine and network resource names")
	f.IntVar(&opts.machines, "machines", 4, "number of virtual machines to create")
	f.StringVar(&opts.machineSize, "machine-size", "Standard_B2s", "virtual machine size")
	f.StringVar(&opts.adminUser, "admin-user", "provadmin", "admin user name on each machine")
	f.StringVar(&opts.sshPublicKey, "ssh-public-key", "", "SSH public key; when set, password auth is disabled")
	f.StringVar(&opts.vnetName, "vnet", "", "virtual network name (default <name-prefix>-vnet)")
	f.StringVar(&opts.addressPrefix, "address-prefix", "10.20.0.0/16", "virtual network address space")
	f.StringVar(&opts.subnetPrefix, "subnet-prefix", "10.20.1.0/24", "subnet address prefix")
	f.StringVar(&opts.vaultName, "vault", "", "key vault name (default <name-prefix>-kv)")
	f.StringVar(&opts.secretBackend, "secret-backend", "keyvault", "secret store backend: keyvault or vault")
	f.StringVar(&opts.vaultMount, "vault-mount", "secret", "KV v2 mount path for the vault backend")
	f.IntVar(&opts.retryAttempts, "retry-attempts", 5, "attempts per provisioning step")
	f.DurationVar(&opts.retryDelay, "retry-delay", 2*time.Second, "initial delay between attempts")
	f.StringVar(&opts.loggingConfig, "logging-config", "<root>=INFO", "loggo configuration string")
	if err := f.Parse(true, args); err != nil {
		return options{}, errors.Trace(err)
	}
	if opts.machines < 1 {
		return options{}, errors.NotValidf("machine count %d", opts.machines)
	}
	if opts.vnetName == "" {
		opts.vnetName = opts.namePrefix + "-vnet"
	}
	if opts.vaultName == "" {
		opts.vaultName = opts.namePrefix + "-kv"
	}
	return opts, nil
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "provrun: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	opts, err := parseArgs(args)
	if err != nil {
		return errors.Trace(err)
	}
	if err := loggo.ConfigureLoggers(opts.loggingConfig); err != nil {
		return errors.Trace(err)
	}

	// The environment is read here, once; the libraries below never
	// touch it.
	subscriptionID := os.Getenv("AZURE_SUBSCRIPTION_ID")
	tenantID := os.Getenv("AZURE_TENANT_ID")
	objectID := os.Getenv("AZURE_OBJECT_ID")
	if subscriptionID == "" || tenantID == "" {
		return errors.New("AZURE_SUBSCRIPTION_ID and AZURE_TENANT_ID must be set")
	}

	credential, err := buildCredential(tenantID)
	if err != nil {
		return errors.Annotate(err, "building credential")
	}

	prov, err := azure.NewProvisioner(azure.Config{
		SubscriptionID: subscriptionID,
		TenantID:       tenantID,
		ResourceGroup:  opts.resourceGroup,
		Location:       opts.location,
		Credential:     credential,
		Clock:          clock.WallClock,
	})
	if err != nil {
		return errors.Trace(err)
	}

	retry, err := retrier.New(retrier.Policy{
		MaxAttempts:  opts.retryAttempts,
		InitialDelay: opts.retryDelay,
		Multiplier:   2,
		Clock:        clock.WallClock,
		Notify: func(err error, attempt int) {
			logger.Warningf("provisioning step failed, attempt %d: %v", attempt, err)
		},
	})
	if err != nil {
		return errors.Trace(err)
	}

	ctx := context.Background()

	// Results flow between phases through these; a phase only starts
	// once the previous one has fully completed.
	var (
		nsgID    string
		subnetID string
		vaultURI string
		store    secrets.Store
	)

	fleet := plan.New(
		plan.Phase{Name: "resource-group", Jobs: []batch.Job{{
			Name: "resource-group",
			Run: retry.Action(func(ctx context.Context) error {
				return prov.EnsureResourceGroup(ctx)
			}),
		}}},
		plan.Phase{Name: "foundation", Jobs: []batch.Job{{
			Name: "security-group",
			Run: retry.Action(func(ctx context.Context) error {
				var err error
				nsgID, err = prov.EnsureSecurityGroup(ctx, opts.namePrefix+"-nsg", []azure.SecurityRule{
					{Name: "allow-ssh", Priority: 100, Port: "22", Protocol: "Tcp"},
					{Name: "allow-https", Priority: 110, Port: "443", Protocol: "Tcp"},
				})
				return err
			}),
		}, {
			Name: "vault",
			Run: retry.Action(func(ctx context.Context) error {
				var err error
				vaultURI, err = prov.EnsureVault(ctx, opts.vaultName, objectID)
				if err != nil {
					return err
				}
				_, err = prov.CreateVaultKey(ctx, vaultURI, opts.namePrefix+"-disk-key")
				return err
			}),
		}}},
		plan.Phase{Name: "network", Jobs: []batch.Job{{
			Name: "virtual-network",
			Run: retry.Action(func(ctx context.Context) error {
				var err error
				subnetID, err = prov.EnsureVirtualNetwork(ctx,
					opts.vnetName, opts.addressPrefix, "internal", opts.subnetPrefix, nsgID)
				return err
			}),
		}}},
		plan.Phase{Name: "secret-store", Jobs: []batch.Job{{
			Name: "secret-store",
			Run: func(ctx context.Context) error {
				var err error
				store, err = buildSecretStore(opts, credential, vaultURI)
				return err
			},
		}}},
		plan.Phase{Name: "machines", Jobs: machineJobs(opts, prov, retry, &subnetID, &store)},
	)

	if err := fleet.Execute(ctx); err != nil {
		return errors.Trace(err)
	}
	logger.Infof("fleet of %d machines provisioned in %q", opts.machines, opts.resourceGroup)
	return nil
}

func machineJobs(
	opts options,
	prov *azure.Provisioner,
	retry *retrier.Retrier,
	subnetID *string,
	store *secrets.Store,
) []batch.Job {
	jobs := make([]batch.Job, opts.machines)
	for i := range jobs {
		name := fmt.Sprintf("%s-%d", opts.namePrefix, i)
		jobs[i] = batch.Job{
			Name: name,
			Run: func(ctx context.Context) error {
				return provisionMachine(ctx, opts, prov, retry, name, *subnetID, *store)
			},
		}
	}
	return jobs
}

// provisionMachine brings up one machine end to end: public address,
// NIC, credential round-trip through the secret store, then the
// machine itself. Each step is individually retried, so a transient
// control-plane failure never restarts the whole sequence.
func provisionMachine(
	ctx context.Context,
	opts options,
	prov *azure.Provisioner,
	retry *retrier.Retrier,
	name, subnetID string,
	store secrets.Store,
) error {
	var publicIPID string
	err := retry.CallContext(ctx, func() error {
		var err error
		publicIPID, err = prov.EnsurePublicIP(ctx, name+"-ip")
		return err
	})
	if err != nil {
		return errors.Trace(err)
	}

	var nicID string
	err = retry.CallContext(ctx, func() error {
		var err error
		nicID, err = prov.EnsureNIC(ctx, name+"-nic", subnetID, publicIPID)
		return err
	})
	if err != nil {
		return errors.Trace(err)
	}

	var password string
	if opts.sshPublicKey == "" {
		// Park the generated password in the secret store and use the
		// copy read back from it.
		password, err = secrets.RoundTrip(ctx, store, retry,
			name+"-admin-password", azure.RandomAdminPassword())
		if err != nil {
			return errors.Trace(err)
		}
	}

	return errors.Trace(retry.CallContext(ctx, func() error {
		return prov.CreateVirtualMachine(ctx, azure.MachineParams{
			Name:          name,
			Size:          opts.machineSize,
			AdminUsername: opts.adminUser,
			AdminPassword: password,
			SSHPublicKey:  opts.sshPublicKey,
			NICID:         nicID,
		})
	}))
}

func buildCredential(tenantID string) (azcore.TokenCredential, error) {
	clientID := os.Getenv("AZURE_CLIENT_ID")
	clientSecret := os.Getenv("AZURE_CLIENT_SECRET")
	if clientID != "" && clientSecret != "" {
		return azidentity.NewClientSecretCredential(tenantID, clientID, clientSecret, nil)
	}
	return azidentity.NewDefaultAzureCredential(nil)
}

func buildSecretStore(opts options, credential azcore.TokenCredential, vaultURI string) (secrets.Store, error) {
	switch opts.secretBackend {
	case "keyvault":
		return azurekeyvault.NewStore(azurekeyvault.StoreConfig{
			VaultURL:   vaultURI,
			Credential: credential,
		})
	case "vault":
		return vault.NewStore(vault.StoreConfig{
			Address:   os.Getenv("VAULT_ADDR"),
			Token:     os.Getenv("VAULT_TOKEN"),
			MountPath: opts.vaultMount,
		})
	}
	return nil, errors.NotValidf("secret backend %q", opts.secretBackend)
}
