package services

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/deploymenttheory/go-avb/internal/helpers"
	"github.com/deploymenttheory/go-avb/internal/interfaces"
	"github.com/deploymenttheory/go-avb/internal/types"
)

// Kernel command-line keys appended after a successful verification.
const (
	CmdlineKeySlotSuffix    = "androidboot.slot_suffix"
	CmdlineKeyDeviceState   = "androidboot.vbmeta.device_state"
	CmdlineKeyVBMetaHashAlg = "androidboot.vbmeta.hash_alg"
	CmdlineKeyVBMetaSize    = "androidboot.vbmeta.size"
	CmdlineKeyVBMetaDigest  = "androidboot.vbmeta.digest"
)

// partitionUUIDPlaceholders maps command-line tokens to the partition whose
// unique GUID replaces them.
var partitionUUIDPlaceholders = []struct {
	token     string
	partition string
}{
	{"$(ANDROID_SYSTEM_PARTUUID)", "system"},
	{"$(ANDROID_BOOT_PARTUUID)", "boot"},
}

// CmdlineAssembler turns the command line gathered during verification into
// the one handed to the kernel.
type CmdlineAssembler struct {
	ops interfaces.Ops
}

// NewCmdlineAssembler creates a CmdlineAssembler.
func NewCmdlineAssembler(ops interfaces.Ops) *CmdlineAssembler {
	return &CmdlineAssembler{ops: ops}
}

// Assemble substitutes partition GUID placeholders in data.Cmdline and
// appends the slot suffix, device state and vbmeta digest options. data is
// only updated if every step succeeds.
func (a *CmdlineAssembler) Assemble(ctx context.Context, data *types.SlotVerifyData) error {
	if a == nil || a.ops == nil || data == nil {
		return &types.SlotVerifyError{Result: types.SlotVerifyErrorInvalidArgument, Err: errors.New("missing operations or slot data")}
	}
	if len(data.VBMetaData) == 0 {
		return &types.SlotVerifyError{Result: types.SlotVerifyErrorInvalidArgument, Err: errors.New("slot data holds no vbmeta image")}
	}

	cmdline, err := a.substitutePartitionUUIDs(ctx, data.Cmdline, data.ABSuffix)
	if err != nil {
		return err
	}

	if data.ABSuffix != "" {
		cmdline = appendOption(cmdline, CmdlineKeySlotSuffix, data.ABSuffix)
	}

	unlocked, err := a.ops.ReadIsDeviceUnlocked(ctx)
	if err != nil {
		return a.fail(types.SlotVerifyErrorIO, "", fmt.Errorf("error getting device state: %w", err))
	}
	state := "locked"
	if unlocked {
		state = "unlocked"
	}
	cmdline = appendOption(cmdline, CmdlineKeyDeviceState, state)

	digest := sha256.Sum256(data.VBMetaData)
	cmdline = appendOption(cmdline, CmdlineKeyVBMetaHashAlg, types.HashAlgorithmSHA256)
	cmdline = appendOption(cmdline, CmdlineKeyVBMetaSize, helpers.FormatUint64(uint64(len(data.VBMetaData))))
	cmdline = appendOption(cmdline, CmdlineKeyVBMetaDigest, helpers.HexDigest(digest[:]))

	data.Cmdline = cmdline
	return nil
}

// substitutePartitionUUIDs replaces each placeholder that occurs in cmdline.
// GUIDs are only requested for placeholders that are present.
func (a *CmdlineAssembler) substitutePartitionUUIDs(ctx context.Context, cmdline, abSuffix string) (string, error) {
	for _, p := range partitionUUIDPlaceholders {
		if !strings.Contains(cmdline, p.token) {
			continue
		}

		partName, err := helpers.StrConcat(types.PartNameMaxSize, p.partition, abSuffix)
		if err != nil {
			return "", a.fail(types.SlotVerifyErrorInvalidArgument, p.partition, fmt.Errorf("partition name with suffix %q: %w", abSuffix, err))
		}

		guid, err := a.ops.GetUniqueGUIDForPartition(ctx, partName)
		if err != nil {
			return "", a.fail(types.SlotVerifyErrorIO, partName, fmt.Errorf("error getting unique GUID: %w", err))
		}

		cmdline = helpers.Replace(cmdline, p.token, guid)
	}
	return cmdline, nil
}

func (a *CmdlineAssembler) fail(result types.SlotVerifyResult, partition string, err error) error {
	logrus.WithFields(logrus.Fields{
		"partition": partition,
		"result":    result.String(),
	}).Warn(err)
	return &types.SlotVerifyError{Result: result, Partition: partition, Err: err}
}

func appendOption(cmdline, key, value string) string {
	return helpers.AppendCmdline(cmdline, key+"="+value)
}
