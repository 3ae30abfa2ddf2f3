package verify

import (
	"time"

	"github.com/deploymenttheory/go-avb/internal/device"
	"github.com/deploymenttheory/go-avb/pkg/app"
)

// Request represents a slot verification request
type Request struct {
	Device *device.Config
	Slot   app.SlotTarget

	// Skip appending the androidboot.* options to the command line
	SkipCmdlineOptions bool
}

// Response represents the outcome of a slot verification
type Response struct {
	Slot            string          `json:"slot" yaml:"slot"`
	Result          string          `json:"result" yaml:"result"`
	Verified        bool            `json:"verified" yaml:"verified"`
	Error           string          `json:"error,omitempty" yaml:"error,omitempty"`
	FailedPartition string          `json:"failed_partition,omitempty" yaml:"failed_partition,omitempty"`
	VBMetaSize      uint64          `json:"vbmeta_size" yaml:"vbmeta_size"`
	VBMetaDigest    string          `json:"vbmeta_digest,omitempty" yaml:"vbmeta_digest,omitempty"`
	BootSize        uint64          `json:"boot_size" yaml:"boot_size"`
	Cmdline         string          `json:"cmdline" yaml:"cmdline"`
	RollbackIndexes []RollbackIndex `json:"rollback_indexes" yaml:"rollback_indexes"`
	VerifyTime      time.Duration   `json:"verify_time" yaml:"verify_time"`
}

// RollbackIndex is a rollback counter established by a verified image
type RollbackIndex struct {
	Slot  uint32 `json:"slot" yaml:"slot"`
	Value uint64 `json:"value" yaml:"value"`
}
