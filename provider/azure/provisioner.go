// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package azure provisions the fixed fleet topology on Azure: a
// resource group, a virtual network with a guarded subnet, public
// addressing and NICs, virtual machines, and a key vault for parking
// machine credentials. Every operation is a single idempotent
// control-plane call suitable for wrapping in a retrier and running
// inside a batch.
package azure

import (
	"context"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/arm"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/compute/armcompute/v2"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/network/armnetwork"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armresources"
	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
)

var logger = loggo.GetLogger("provrun.provider.azure")

// Config holds everything a Provisioner needs to talk to one
// subscription. It is read once at construction; the provisioner
// never consults the process environment.
type Config struct {
	SubscriptionID string
	TenantID       string
	ResourceGroup  string
	Location       string
	Credential     azcore.TokenCredential
	ClientOptions  arm.ClientOptions
	Clock          clock.Clock
}

// Validate ensures that the config values are valid.
func (c Config) Validate() error {
	if c.SubscriptionID == "" {
		return errors.NotValidf("missing subscription ID")
	}
	if c.TenantID == "" {
		return errors.NotValidf("missing tenant ID")
	}
	if c.ResourceGroup == "" {
		return errors.NotValidf("missing resource group")
	}
	if c.Location == "" {
		return errors.NotValidf("missing location")
	}
	if c.Credential == nil {
		return errors.NotValidf("missing credential")
	}
	if c.Clock == nil {
		return errors.NotValidf("missing clock")
	}
	return nil
}

// Provisioner issues control-plane operations against one resource
// group. It is safe for use by concurrent batch jobs; the underlying
// SDK clients are goroutine safe.
type Provisioner struct {
	cfg     Config
	invoker invoker
}

// NewProvisioner returns a Provisioner for the supplied config.
func NewProvisioner(cfg Config) (*Provisioner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &Provisioner{
		cfg:     cfg,
		invoker: invoker{clock: cfg.Clock},
	}, nil
}

// EnsureResourceGroup creates the configured resource group, or
// updates it in place if it already exists.
func (p *Provisioner) EnsureResourceGroup(ctx context.Context) error {
	groups, err := armresources.NewResourceGroupsClient(
		p.cfg.SubscriptionID, p.cfg.Credential, &p.cfg.ClientOptions)
	if err != nil {
		return errors.Trace(err)
	}
	logger.Debugf("ensure resource group %q in %q", p.cfg.ResourceGroup, p.cfg.Location)
	err = p.invoker.call(func() error {
		_, err := groups.CreateOrUpdate(ctx, p.cfg.ResourceGroup, armresources.ResourceGroup{
			Location: to.Ptr(p.cfg.Location),
		}, nil)
		return err
	})
	if err != nil {
		return errors.Annotatef(err, "creating resource group %q", p.cfg.ResourceGroup)
	}
	return nil
}

// SecurityRule describes one inbound allow rule on a security group.
type SecurityRule struct {
	Name     string
	Priority int32
	// Port is the destination port range, e.g. "22" or "3389".
	Port string
	// Protocol is "Tcp", "Udp" or "*".
	Protocol string
	// Source is the source address prefix; empty means any.
	Source string
}

// EnsureSecurityGroup creates or updates a network security group
// carrying the supplied inbound rules, returning its resource ID.
func (p *Provisioner) EnsureSecurityGroup(ctx context.Context, name string, rules []SecurityRule) (string, error) {
	nsgs, err := armnetwork.NewSecurityGroupsClient(
		p.cfg.SubscriptionID, p.cfg.Credential, &p.cfg.ClientOptions)
	if err != nil {
		return "", errors.Trace(err)
	}

	securityRules := make([]*armnetwork.SecurityRule, len(rules))
	for i, rule := range rules {
		source := rule.Source
		if source == "" {
			source = "*"
		}
		securityRules[i] = &armnetwork.SecurityRule{
			Name: to.Ptr(rule.Name),
			Properties: &armnetwork.SecurityRulePropertiesFormat{
				Priority:                 to.Ptr(rule.Priority),
				Protocol:                 to.Ptr(armnetwork.SecurityRuleProtocol(rule.Protocol)),
				Access:                   to.Ptr(armnetwork.SecurityRuleAccessAllow),
				Direction:                to.Ptr(armnetwork.SecurityRuleDirectionInbound),
				SourceAddressPrefix:      to.Ptr(source),
				SourcePortRange:          to.Ptr("*"),
				DestinationAddressPrefix: to.Ptr("*"),
				DestinationPortRange:     to.Ptr(rule.Port),
			},
		}
	}

	logger.Debugf("ensure security group %q with %d rules", name, len(rules))
	var nsgID string
	err = p.invoker.call(func() error {
		poller, err := nsgs.BeginCreateOrUpdate(ctx, p.cfg.ResourceGroup, name, armnetwork.SecurityGroup{
			Location: to.Ptr(p.cfg.Location),
			Properties: &armnetwork.SecurityGroupPropertiesFormat{
				SecurityRules: securityRules,
			},
		}, nil)
		if err != nil {
			return err
		}
		resp, err := poller.PollUntilDone(ctx, nil)
		if err != nil {
			return err
		}
		nsgID = toValue(resp.ID)
		return nil
	})
	if err != nil {
		return "", errors.Annotatef(err, "creating security group %q", name)
	}
	return nsgID, nil
}

// EnsureVirtualNetwork creates or updates a virtual network holding a
// single subnet guarded by the supplied security group, returning the
// subnet's resource ID.
func (p *Provisioner) EnsureVirtualNetwork(
	ctx context.Context,
	name, addressPrefix, subnetName, subnetPrefix, nsgID string,
) (string, error) {
	vnets, err := armnetwork.NewVirtualNetworksClient(
		p.cfg.SubscriptionID, p.cfg.Credential, &p.cfg.ClientOptions)
	if err != nil {
		return "", errors.Trace(err)
	}

	subnet := &armnetwork.Subnet{
		Name: to.Ptr(subnetName),
		Properties: &armnetwork.SubnetPropertiesFormat{
			AddressPrefix: to.Ptr(subnetPrefix),
		},
	}
	if nsgID != "" {
		subnet.Properties.NetworkSecurityGroup = &armnetwork.SecurityGroup{
			ID: to.Ptr(nsgID),
		}
	}

	logger.Debugf("ensure virtual network %q (%s)", name, addressPrefix)
	var subnetID string
	err = p.invoker.call(func() error {
		poller, err := vnets.BeginCreateOrUpdate(ctx, p.cfg.ResourceGroup, name, armnetwork.VirtualNetwork{
			Location: to.Ptr(p.cfg.Location),
			Properties: &armnetwork.VirtualNetworkPropertiesFormat{
				AddressSpace: &armnetwork.AddressSpace{
					AddressPrefixes: []*string{to.Ptr(addressPrefix)},
				},
				Subnets: []*armnetwork.Subnet{subnet},
			},
		}, nil)
		if err != nil {
			return err
		}
		resp, err := poller.PollUntilDone(ctx, nil)
		if err != nil {
			return err
		}
		for _, sub := range resp.Properties.Subnets {
			if toValue(sub.Name) == subnetName {
				subnetID = toValue(sub.ID)
			}
		}
		return nil
	})
	if err != nil {
		return "", errors.Annotatef(err, "creating virtual network %q", name)
	}
	if subnetID == "" {
		return "", errors.Errorf("virtual network %q has no subnet %q", name, subnetName)
	}
	return subnetID, nil
}

// EnsurePublicIP creates or updates a static public IP address,
// returning its resource ID.
func (p *Provisioner) EnsurePublicIP(ctx context.Context, name string) (string, error) {
	addresses, err := armnetwork.NewPublicIPAddressesClient(
		p.cfg.SubscriptionID, p.cfg.Credential, &p.cfg.ClientOptions)
	if err != nil {
		return "", errors.Trace(err)
	}

	logger.Debugf("ensure public IP %q", name)
	var ipID string
	err = p.invoker.call(func() error {
		poller, err := addresses.BeginCreateOrUpdate(ctx, p.cfg.ResourceGroup, name, armnetwork.PublicIPAddress{
			Location: to.Ptr(p.cfg.Location),
			SKU: &armnetwork.PublicIPAddressSKU{
				Name: to.Ptr(armnetwork.PublicIPAddressSKUNameStandard),
			},
			Properties: &armnetwork.PublicIPAddressPropertiesFormat{
				PublicIPAllocationMethod: to.Ptr(armnetwork.IPAllocationMethodStatic),
			},
		}, nil)
		if err != nil {
			return err
		}
		resp, err := poller.PollUntilDone(ctx, nil)
		if err != nil {
			return err
		}
		ipID = toValue(resp.ID)
		return nil
	})
	if err != nil {
		return "", errors.Annotatef(err, "creating public IP %q", name)
	}
	return ipID, nil
}

// EnsureNIC creates or updates a network interface on the supplied
// subnet, optionally bound to a public IP, returning its resource ID.
func (p *Provisioner) EnsureNIC(ctx context.Context, name, subnetID, publicIPID string) (string, error) {
	nics, err := armnetwork.NewInterfacesClient(
		p.cfg.SubscriptionID, p.cfg.Credential, &p.cfg.ClientOptions)
	if err != nil {
		return "", errors.Trace(err)
	}

	ipConfig := &armnetwork.InterfaceIPConfiguration{
		Name: to.Ptr("primary"),
		Properties: &armnetwork.InterfaceIPConfigurationPropertiesFormat{
			Subnet:                    &armnetwork.Subnet{ID: to.Ptr(subnetID)},
			PrivateIPAllocationMethod: to.Ptr(armnetwork.IPAllocationMethodDynamic),
		},
	}
	if publicIPID != "" {
		ipConfig.Properties.PublicIPAddress = &armnetwork.PublicIPAddress{
			ID: to.Ptr(publicIPID),
		}
	}

	logger.Debugf("ensure NIC %q", name)
	var nicID string
	err = p.invoker.call(func() error {
		poller, err := nics.BeginCreateOrUpdate(ctx, p.cfg.ResourceGroup, name, armnetwork.Interface{
			Location: to.Ptr(p.cfg.Location),
			Properties: &armnetwork.InterfacePropertiesFormat{
				IPConfigurations: []*armnetwork.InterfaceIPConfiguration{ipConfig},
			},
		}, nil)
		if err != nil {
			return err
		}
		resp, err := poller.PollUntilDone(ctx, nil)
		if err != nil {
			return err
		}
		nicID = toValue(resp.ID)
		return nil
	})
	if err != nil {
		return "", errors.Annotatef(err, "creating NIC %q", name)
	}
	return nicID, nil
}

// ImageReference selects the OS image for a machine.
type ImageReference struct {
	Publisher string
	Offer     string
	SKU       string
	Version   string
}

var defaultImage = ImageReference{
	Publisher: "Canonical",
	Offer:     "0001-com-ubuntu-server-jammy",
	SKU:       "22_04-lts",
	Version:   "latest",
}

// MachineParams describes one virtual machine to create.
type MachineParams struct {
	Name          string
	Size          string
	AdminUsername string
	// AdminPassword is the machine's admin credential. Callers are
	// expected to have parked it in the secret store already.
	AdminPassword string
	// SSHPublicKey, when set, disables password authentication.
	SSHPublicKey string
	NICID        string
	Image        ImageReference
	OSDiskSizeGB int32
}

// Validate ensures that the machine params are valid.
func (m MachineParams) Validate() error {
	if m.Name == "" {
		return errors.NotValidf("missing machine name")
	}
	if m.Size == "" {
		return errors.NotValidf("missing machine size")
	}
	if m.AdminUsername == "" {
		return errors.NotValidf("missing admin username")
	}
	if m.AdminPassword == "" && m.SSHPublicKey == "" {
		return errors.NotValidf("machine with neither password nor SSH key")
	}
	if m.NICID == "" {
		return errors.NotValidf("missing NIC")
	}
	return nil
}

// CreateVirtualMachine creates the described machine and waits for
// the control plane to report it provisioned.
func (p *Provisioner) CreateVirtualMachine(ctx context.Context, params MachineParams) error {
	if err := params.Validate(); err != nil {
		return errors.Trace(err)
	}
	machines, err := armcompute.NewVirtualMachinesClient(
		p.cfg.SubscriptionID, p.cfg.Credential, &p.cfg.ClientOptions)
	if err != nil {
		return errors.Trace(err)
	}

	image := params.Image
	if image == (ImageReference{}) {
		image = defaultImage
	}
	osProfile := &armcompute.OSProfile{
		ComputerName:  to.Ptr(params.Name),
		AdminUsername: to.Ptr(params.AdminUsername),
	}
	if params.SSHPublicKey != "" {
		osProfile.LinuxConfiguration = &armcompute.LinuxConfiguration{
			DisablePasswordAuthentication: to.Ptr(true),
			SSH: &armcompute.SSHConfiguration{
				PublicKeys: []*armcompute.SSHPublicKey{{
					Path:    to.Ptr("/home/" + params.AdminUsername + "/.ssh/authorized_keys"),
					KeyData: to.Ptr(params.SSHPublicKey),
				}},
			},
		}
	} else {
		osProfile.AdminPassword = to.Ptr(params.AdminPassword)
	}

	osDisk := &armcompute.OSDisk{
		CreateOption: to.Ptr(armcompute.DiskCreateOptionTypesFromImage),
		ManagedDisk: &armcompute.ManagedDiskParameters{
			StorageAccountType: to.Ptr(armcompute.StorageAccountTypesStandardLRS),
		},
	}
	if params.OSDiskSizeGB > 0 {
		osDisk.DiskSizeGB = to.Ptr(params.OSDiskSizeGB)
	}

	logger.Infof("creating virtual machine %q (%s)", params.Name, params.Size)
	err = p.invoker.call(func() error {
		poller, err := machines.BeginCreateOrUpdate(ctx, p.cfg.ResourceGroup, params.Name, armcompute.VirtualMachine{
			Location: to.Ptr(p.cfg.Location),
			Properties: &armcompute.VirtualMachineProperties{
				HardwareProfile: &armcompute.HardwareProfile{
					VMSize: to.Ptr(armcompute.VirtualMachineSizeTypes(params.Size)),
				},
				StorageProfile: &armcompute.StorageProfile{
					ImageReference: &armcompute.ImageReference{
						Publisher: to.Ptr(image.Publisher),
						Offer:     to.Ptr(image.Offer),
						SKU:       to.Ptr(image.SKU),
						Version:   to.Ptr(image.Version),
					},
					OSDisk: osDisk,
				},
				OSProfile: osProfile,
				NetworkProfile: &armcompute.NetworkProfile{
					NetworkInterfaces: []*armcompute.NetworkInterfaceReference{{
						ID: to.Ptr(params.NICID),
					}},
				},
			},
		}, nil)
		if err != nil {
			return err
		}
		_, err = poller.PollUntilDone(ctx, nil)
		return err
	})
	if err != nil {
		return errors.Annotatef(MaybeQuotaExceeded(err), "creating virtual machine %q", params.Name)
	}
	return nil
}

func toValue[T any](v *T) T {
	if v == nil {
		var result T
		return result
	}
	return *v
}
