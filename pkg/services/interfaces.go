package services

import (
	"github.com/deploymenttheory/go-avb/internal/device"
	"github.com/deploymenttheory/go-avb/internal/interfaces"
	core "github.com/deploymenttheory/go-avb/internal/services"
	"github.com/deploymenttheory/go-avb/internal/types"
)

// Ops is the set of platform operations slot verification depends on.
// Implement it to verify partitions that are not plain image files.
type Ops = interfaces.Ops

// DeviceConfig describes a device whose partitions are stored as image files
type DeviceConfig = device.Config

// SlotVerifyData holds the verified images and assembled command line
type SlotVerifyData = types.SlotVerifyData

// SlotVerifyResult is the outcome category of a slot verification
type SlotVerifyResult = types.SlotVerifyResult

// SlotVerifyError reports which partition failed and why
type SlotVerifyError = types.SlotVerifyError

// VerifierService verifies the partitions of an A/B slot
type VerifierService = core.SlotVerifierService

// CmdlineService completes the command line of verified slot data
type CmdlineService = core.CmdlineAssemblerService

// Option configures a verifier
type Option = core.SlotVerifierOption

var (
	// WithMaxImageSize bounds the image a hash descriptor may load
	WithMaxImageSize = core.WithMaxImageSize

	// WithRejectUnknownDescriptors fails on descriptors with unknown tags
	WithRejectUnknownDescriptors = core.WithRejectUnknownDescriptors
)

// ResultOf maps a verification error to its result. A nil error is OK.
func ResultOf(err error) SlotVerifyResult {
	return types.ResultOf(err)
}

// LoadDeviceConfig reads a device configuration file. An empty path searches
// the default locations.
func LoadDeviceConfig(path string) (*DeviceConfig, error) {
	return device.LoadConfig(path)
}

// NewVerifierService builds a verifier over caller supplied operations
func NewVerifierService(ops Ops, opts ...Option) VerifierService {
	return core.NewSlotVerifier(ops, opts...)
}

// NewCmdlineService builds a command line assembler over caller supplied operations
func NewCmdlineService(ops Ops) CmdlineService {
	return core.NewCmdlineAssembler(ops)
}
