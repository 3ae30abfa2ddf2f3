package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/deploymenttheory/go-avb/internal/helpers"
	"github.com/deploymenttheory/go-avb/internal/interfaces"
	"github.com/deploymenttheory/go-avb/internal/parsers/descriptors"
	"github.com/deploymenttheory/go-avb/internal/parsers/vbmeta"
	"github.com/deploymenttheory/go-avb/internal/types"
)

// DefaultMaxImageSize bounds the content read for a single hash descriptor.
const DefaultMaxImageSize uint64 = 256 << 20

// SlotVerifier walks the main vbmeta image of a slot and every partition it
// chains to, enforcing signatures, digests and rollback indexes.
type SlotVerifier struct {
	ops           interfaces.Ops
	assembler     *CmdlineAssembler
	rejectUnknown bool
	maxImageSize  uint64
}

// SlotVerifierOption configures a SlotVerifier.
type SlotVerifierOption func(*SlotVerifier)

// WithRejectUnknownDescriptors makes descriptors with unrecognized tags fail
// verification instead of being skipped.
func WithRejectUnknownDescriptors(reject bool) SlotVerifierOption {
	return func(v *SlotVerifier) {
		v.rejectUnknown = reject
	}
}

// WithMaxImageSize sets the largest partition image a hash descriptor may
// ask to load. Larger requests fail with SlotVerifyErrorOOM.
func WithMaxImageSize(n uint64) SlotVerifierOption {
	return func(v *SlotVerifier) {
		v.maxImageSize = n
	}
}

// NewSlotVerifier creates a SlotVerifier using ops for all platform access.
func NewSlotVerifier(ops interfaces.Ops, opts ...SlotVerifierOption) *SlotVerifier {
	v := &SlotVerifier{
		ops:          ops,
		assembler:    NewCmdlineAssembler(ops),
		maxImageSize: DefaultMaxImageSize,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// verifyState accumulates what one verification pass has established.
type verifyState struct {
	abSuffix         string
	data             *types.SlotVerifyData
	unsigned         bool
	hashtreeDisabled bool
}

// Verify verifies the slot identified by abSuffix and assembles the final
// kernel command line. On failure the returned error is a
// *types.SlotVerifyError and no data is returned.
func (v *SlotVerifier) Verify(ctx context.Context, abSuffix string) (*types.SlotVerifyData, error) {
	data, err := v.LoadAndVerify(ctx, abSuffix)
	if err != nil {
		return nil, err
	}
	if err := v.assembler.Assemble(ctx, data); err != nil {
		return nil, err
	}
	return data, nil
}

// LoadAndVerify runs the chain of trust for abSuffix without post-processing
// the kernel command line.
func (v *SlotVerifier) LoadAndVerify(ctx context.Context, abSuffix string) (*types.SlotVerifyData, error) {
	if v == nil || v.ops == nil {
		return nil, &types.SlotVerifyError{Result: types.SlotVerifyErrorInvalidArgument, Err: errors.New("no platform operations")}
	}
	if !helpers.ValidateUTF8([]byte(abSuffix)) || strings.ContainsRune(abSuffix, 0) {
		return nil, &types.SlotVerifyError{Result: types.SlotVerifyErrorInvalidArgument, Err: fmt.Errorf("invalid slot suffix %q", abSuffix)}
	}

	state := &verifyState{
		abSuffix: abSuffix,
		data:     &types.SlotVerifyData{ABSuffix: abSuffix},
	}

	if err := v.loadAndVerifyVBMeta(ctx, state, types.MainRollbackIndexSlot, types.MainVBMetaPartition, nil, true); err != nil {
		return nil, err
	}

	state.data.Result = types.SlotVerifyOK
	if state.unsigned {
		state.data.Result = types.SlotVerifyOKNotSigned
	}
	return state.data, nil
}

func (v *SlotVerifier) fail(result types.SlotVerifyResult, partition string, err error) error {
	logrus.WithFields(logrus.Fields{
		"partition": partition,
		"result":    result.String(),
	}).Warn(err)
	return &types.SlotVerifyError{Result: result, Partition: partition, Err: err}
}

// loadAndVerifyVBMeta loads, verifies and applies one vbmeta image. The main
// image is read from the start of its partition; chained images are located
// through the partition footer and may not chain further.
func (v *SlotVerifier) loadAndVerifyVBMeta(ctx context.Context, state *verifyState, rollbackSlot uint32, partition string, expectedKey []byte, isMain bool) error {
	if !helpers.ValidateUTF8([]byte(partition)) {
		return v.fail(types.SlotVerifyErrorInvalidMetadata, partition, errors.New("partition name is not valid UTF-8"))
	}
	fullName, err := helpers.StrConcat(types.VBMetaPartNameMaxSize, partition, state.abSuffix)
	if err != nil {
		return v.fail(types.SlotVerifyErrorInvalidMetadata, partition, fmt.Errorf("partition name with suffix %q: %w", state.abSuffix, err))
	}
	if rollbackSlot >= types.MaxNumberOfRollbackIndexSlots {
		return v.fail(types.SlotVerifyErrorInvalidMetadata, fullName, fmt.Errorf("invalid rollback index slot %d", rollbackSlot))
	}

	var offset int64
	size := uint64(types.VBMetaMaxSize)
	if !isMain {
		offset, size, err = v.locateVBMeta(ctx, fullName)
		if err != nil {
			return err
		}
	}

	logrus.WithField("partition", fullName).Debugf("loading %d bytes of vbmeta from offset %d", size, offset)
	buf, err := v.ops.ReadFromPartition(ctx, fullName, offset, size)
	if err != nil {
		return v.fail(types.SlotVerifyErrorIO, fullName, fmt.Errorf("error loading vbmeta: %w", err))
	}
	if uint64(len(buf)) > size {
		return v.fail(types.SlotVerifyErrorIO, fullName, fmt.Errorf("read returned %d bytes, asked for %d", len(buf), size))
	}

	result, publicKey, err := vbmeta.VerifyImage(buf)
	switch result {
	case types.VBMetaVerifyOK, types.VBMetaVerifyOKNotSigned:
	case types.VBMetaVerifyInvalidVBMetaHeader, types.VBMetaVerifyUnsupportedVersion:
		return v.fail(types.SlotVerifyErrorInvalidMetadata, fullName, fmt.Errorf("error verifying vbmeta image: %w", err))
	default:
		return v.fail(types.SlotVerifyErrorVerification, fullName, fmt.Errorf("error verifying vbmeta image: %w", err))
	}

	header, err := vbmeta.ParseHeader(buf)
	if err != nil {
		return v.fail(types.SlotVerifyErrorInvalidMetadata, fullName, err)
	}
	image := buf[:header.ImageSize()]

	if err := v.checkPublicKey(ctx, state, fullName, result, publicKey, expectedKey, publicKeyMetadata(image, header)); err != nil {
		return err
	}

	stored, err := v.ops.ReadRollbackIndex(ctx, rollbackSlot)
	if err != nil {
		return v.fail(types.SlotVerifyErrorIO, fullName, fmt.Errorf("error getting rollback index for slot %d: %w", rollbackSlot, err))
	}
	if header.RollbackIndex < stored {
		return v.fail(types.SlotVerifyErrorRollbackIndex, fullName,
			fmt.Errorf("image rollback index %d is less than the stored rollback index %d", header.RollbackIndex, stored))
	}

	if isMain {
		state.hashtreeDisabled = header.HashtreeDisabled()
	}

	if err := v.applyDescriptors(ctx, state, fullName, image, isMain); err != nil {
		return err
	}

	if isMain {
		state.data.VBMetaData = append([]byte(nil), image...)
	}

	if rollbackSlot >= types.MaxNumberOfRollbackIndexSlots {
		return v.fail(types.SlotVerifyErrorInvalidMetadata, fullName, fmt.Errorf("invalid rollback index slot %d", rollbackSlot))
	}
	state.data.RollbackIndexes[rollbackSlot] = header.RollbackIndex
	return nil
}

// locateVBMeta reads the footer of a chained partition.
func (v *SlotVerifier) locateVBMeta(ctx context.Context, fullName string) (int64, uint64, error) {
	raw, err := v.ops.ReadFromPartition(ctx, fullName, -types.FooterSize, types.FooterSize)
	if err != nil {
		return 0, 0, v.fail(types.SlotVerifyErrorIO, fullName, fmt.Errorf("error loading footer: %w", err))
	}
	if len(raw) != types.FooterSize {
		return 0, 0, v.fail(types.SlotVerifyErrorIO, fullName, fmt.Errorf("short footer read of %d bytes", len(raw)))
	}

	footer, err := vbmeta.ParseFooter(raw)
	if err != nil {
		return 0, 0, v.fail(types.SlotVerifyErrorInvalidMetadata, fullName, fmt.Errorf("error validating footer: %w", err))
	}
	if footer.VBMetaSize > types.VBMetaMaxSize {
		return 0, 0, v.fail(types.SlotVerifyErrorInvalidMetadata, fullName, fmt.Errorf("footer vbmeta size %d is invalid", footer.VBMetaSize))
	}
	if footer.VBMetaOffset > math.MaxInt64 {
		return 0, 0, v.fail(types.SlotVerifyErrorInvalidMetadata, fullName, fmt.Errorf("footer vbmeta offset %d is invalid", footer.VBMetaOffset))
	}
	return int64(footer.VBMetaOffset), footer.VBMetaSize, nil
}

// checkPublicKey decides whether the key that signed an image is trusted.
// Chained images must be signed by the key named in the chain descriptor;
// the main image's key is judged by the platform.
func (v *SlotVerifier) checkPublicKey(ctx context.Context, state *verifyState, fullName string, result types.VBMetaVerifyResult, publicKey, expectedKey, metadata []byte) error {
	if result == types.VBMetaVerifyOKNotSigned {
		if len(expectedKey) > 0 {
			return v.fail(types.SlotVerifyErrorPublicKeyRejected, fullName, errors.New("image is not signed but chain partition descriptor names a key"))
		}
		ok, err := v.ops.ValidateVBMetaPublicKey(ctx, nil, nil)
		if err != nil {
			return v.fail(types.SlotVerifyErrorIO, fullName, fmt.Errorf("error validating unsigned image: %w", err))
		}
		if !ok {
			return v.fail(types.SlotVerifyErrorPublicKeyRejected, fullName, errors.New("unsigned image rejected"))
		}
		state.unsigned = true
		return nil
	}

	if expectedKey != nil {
		if len(expectedKey) != len(publicKey) || subtle.ConstantTimeCompare(expectedKey, publicKey) != 1 {
			return v.fail(types.SlotVerifyErrorPublicKeyRejected, fullName, errors.New("public key used to sign data does not match key in chain partition descriptor"))
		}
		return nil
	}

	ok, err := v.ops.ValidateVBMetaPublicKey(ctx, publicKey, metadata)
	if err != nil {
		return v.fail(types.SlotVerifyErrorIO, fullName, fmt.Errorf("error validating public key: %w", err))
	}
	if !ok {
		return v.fail(types.SlotVerifyErrorPublicKeyRejected, fullName, errors.New("public key used to sign data rejected"))
	}
	return nil
}

// applyDescriptors dispatches every descriptor of a verified image.
func (v *SlotVerifier) applyDescriptors(ctx context.Context, state *verifyState, fullName string, image []byte, isMain bool) error {
	records, err := descriptors.GetAll(image)
	if err != nil {
		return v.fail(types.SlotVerifyErrorInvalidMetadata, fullName, fmt.Errorf("invalid descriptor region: %w", err))
	}

	for n, record := range records {
		hdr, err := descriptors.ParseDescriptorHeader(record)
		if err != nil {
			return v.fail(types.SlotVerifyErrorInvalidMetadata, fullName, fmt.Errorf("descriptor %d is invalid: %w", n, err))
		}

		switch hdr.Tag {
		case types.DescriptorTagHash:
			if err := v.verifyHashPartition(ctx, state, record); err != nil {
				return err
			}

		case types.DescriptorTagChainPartition:
			if !isMain {
				return v.fail(types.SlotVerifyErrorInvalidMetadata, fullName,
					fmt.Errorf("descriptor %d is a chain partition descriptor and only allowed in the main image", n))
			}
			chain, err := descriptors.ParseChainPartitionDescriptor(record)
			if err != nil {
				return v.fail(types.SlotVerifyErrorInvalidMetadata, fullName, fmt.Errorf("chain partition descriptor %d: %w", n, err))
			}
			expected := chain.PublicKey
			if expected == nil {
				expected = []byte{}
			}
			if err := v.loadAndVerifyVBMeta(ctx, state, chain.RollbackIndexLocation, chain.PartitionName, expected, false); err != nil {
				return err
			}

		case types.DescriptorTagKernelCmdline:
			cmdline, err := descriptors.ParseKernelCmdlineDescriptor(record)
			if err != nil {
				return v.fail(types.SlotVerifyErrorInvalidMetadata, fullName, fmt.Errorf("kernel cmdline descriptor %d: %w", n, err))
			}
			if !helpers.ValidateUTF8([]byte(cmdline.KernelCmdline)) {
				return v.fail(types.SlotVerifyErrorInvalidMetadata, fullName, fmt.Errorf("kernel cmdline descriptor %d is not valid UTF-8", n))
			}
			if !cmdlineSelected(cmdline.Flags, state.hashtreeDisabled) {
				logrus.WithField("partition", fullName).Debugf("skipping kernel cmdline descriptor %d with flags %#x", n, cmdline.Flags)
				continue
			}
			state.data.Cmdline = helpers.AppendCmdline(state.data.Cmdline, cmdline.KernelCmdline)

		case types.DescriptorTagHashtree:
			if _, err := descriptors.ParseHashtreeDescriptor(record); err != nil {
				return v.fail(types.SlotVerifyErrorInvalidMetadata, fullName, fmt.Errorf("hashtree descriptor %d: %w", n, err))
			}

		case types.DescriptorTagProperty:
			if _, err := descriptors.ParsePropertyDescriptor(record); err != nil {
				return v.fail(types.SlotVerifyErrorInvalidMetadata, fullName, fmt.Errorf("property descriptor %d: %w", n, err))
			}

		default:
			if v.rejectUnknown {
				return v.fail(types.SlotVerifyErrorInvalidMetadata, fullName, fmt.Errorf("descriptor %d has unknown tag %d", n, uint64(hdr.Tag)))
			}
			logrus.WithField("partition", fullName).Debugf("ignoring descriptor %d with unknown tag %d", n, uint64(hdr.Tag))
		}
	}
	return nil
}

// verifyHashPartition loads the partition named by a hash descriptor and
// compares its salted digest.
func (v *SlotVerifier) verifyHashPartition(ctx context.Context, state *verifyState, record []byte) error {
	desc, err := descriptors.ParseHashDescriptor(record)
	if err != nil {
		return v.fail(types.SlotVerifyErrorInvalidMetadata, "", fmt.Errorf("hash descriptor: %w", err))
	}
	if !helpers.ValidateUTF8([]byte(desc.PartitionName)) {
		return v.fail(types.SlotVerifyErrorInvalidMetadata, "", errors.New("hash descriptor partition name is not valid UTF-8"))
	}

	suffix := state.abSuffix
	if desc.Flags&types.HashDescriptorFlagDoNotUseAB != 0 {
		suffix = ""
	}
	partName, err := helpers.StrConcat(types.PartNameMaxSize, desc.PartitionName, suffix)
	if err != nil {
		return v.fail(types.SlotVerifyErrorInvalidMetadata, desc.PartitionName, fmt.Errorf("partition name with suffix %q: %w", suffix, err))
	}

	if desc.ImageSize > v.maxImageSize {
		return v.fail(types.SlotVerifyErrorOOM, partName, fmt.Errorf("image size %d exceeds limit of %d bytes", desc.ImageSize, v.maxImageSize))
	}

	content, err := v.ops.ReadFromPartition(ctx, partName, 0, desc.ImageSize)
	if err != nil {
		return v.fail(types.SlotVerifyErrorIO, partName, fmt.Errorf("error loading data: %w", err))
	}
	if uint64(len(content)) != desc.ImageSize {
		return v.fail(types.SlotVerifyErrorIO, partName, fmt.Errorf("requested %d bytes but only read %d bytes", desc.ImageSize, len(content)))
	}
	logrus.WithField("partition", partName).Debugf("read %d bytes", len(content))

	digest, ok := helpers.Digest(desc.HashAlgorithmName(), desc.Salt, content)
	if !ok {
		return v.fail(types.SlotVerifyErrorInvalidMetadata, partName, fmt.Errorf("unsupported hash algorithm %q", desc.HashAlgorithmName()))
	}
	if uint64(len(digest)) != uint64(desc.DigestLen) {
		return v.fail(types.SlotVerifyErrorInvalidMetadata, partName, fmt.Errorf("digest in descriptor is %d bytes but expected %d bytes", desc.DigestLen, len(digest)))
	}
	if subtle.ConstantTimeCompare(digest, desc.Digest) != 1 {
		return v.fail(types.SlotVerifyErrorVerification, partName, errors.New("hash of data does not match digest in descriptor"))
	}

	if desc.PartitionName == types.BootPartition {
		state.data.BootData = content
	}
	return nil
}

// cmdlineSelected applies the kernel cmdline descriptor flags.
func cmdlineSelected(flags uint32, hashtreeDisabled bool) bool {
	if flags&types.KernelCmdlineFlagUseOnlyIfHashtreeNotDisabled != 0 && hashtreeDisabled {
		return false
	}
	if flags&types.KernelCmdlineFlagUseOnlyIfHashtreeDisabled != 0 && !hashtreeDisabled {
		return false
	}
	return true
}

func publicKeyMetadata(image []byte, h *types.VBMetaImageHeader) []byte {
	if h.PublicKeyMetadataSize == 0 {
		return nil
	}
	start := types.VBMetaHeaderSize + h.AuthenticationDataBlockSize + h.PublicKeyMetadataOffset
	return image[start : start+h.PublicKeyMetadataSize]
}
