package services

import (
	"context"

	"github.com/deploymenttheory/go-avb/internal/types"
)

// SlotVerifierService verifies the partitions of an A/B slot
type SlotVerifierService interface {
	// Verify checks the slot and assembles the final kernel command line
	Verify(ctx context.Context, abSuffix string) (*types.SlotVerifyData, error)

	// LoadAndVerify checks the slot without adding the androidboot.* options
	LoadAndVerify(ctx context.Context, abSuffix string) (*types.SlotVerifyData, error)
}

// CmdlineAssemblerService completes the command line of verified slot data
type CmdlineAssemblerService interface {
	Assemble(ctx context.Context, data *types.SlotVerifyData) error
}

var (
	_ SlotVerifierService     = (*SlotVerifier)(nil)
	_ CmdlineAssemblerService = (*CmdlineAssembler)(nil)
)
