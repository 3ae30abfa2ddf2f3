package types

import (
	"errors"
	"fmt"
)

// VBMetaVerifyResult is the outcome of verifying a single vbmeta image.
type VBMetaVerifyResult int

const (
	// VBMetaVerifyOK means the image is signed and the signature checks out.
	VBMetaVerifyOK VBMetaVerifyResult = iota

	// VBMetaVerifyOKNotSigned means the image is well-formed and uses AlgorithmNone.
	VBMetaVerifyOKNotSigned

	// VBMetaVerifyInvalidVBMetaHeader means the header or its layout is malformed.
	VBMetaVerifyInvalidVBMetaHeader

	// VBMetaVerifyUnsupportedVersion means the required major version is not supported.
	VBMetaVerifyUnsupportedVersion

	// VBMetaVerifyHashMismatch means the stored hash does not match the computed one.
	VBMetaVerifyHashMismatch

	// VBMetaVerifySignatureMismatch means the RSA signature does not verify.
	VBMetaVerifySignatureMismatch
)

func (r VBMetaVerifyResult) String() string {
	switch r {
	case VBMetaVerifyOK:
		return "OK"
	case VBMetaVerifyOKNotSigned:
		return "OK_NOT_SIGNED"
	case VBMetaVerifyInvalidVBMetaHeader:
		return "INVALID_VBMETA_HEADER"
	case VBMetaVerifyUnsupportedVersion:
		return "UNSUPPORTED_VERSION"
	case VBMetaVerifyHashMismatch:
		return "HASH_MISMATCH"
	case VBMetaVerifySignatureMismatch:
		return "SIGNATURE_MISMATCH"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(r))
	}
}

// Succeeded reports whether r is OK or OK_NOT_SIGNED.
func (r VBMetaVerifyResult) Succeeded() bool {
	return r == VBMetaVerifyOK || r == VBMetaVerifyOKNotSigned
}

// SlotVerifyResult is the outcome of verifying a whole slot.
type SlotVerifyResult int

const (
	SlotVerifyOK SlotVerifyResult = iota
	SlotVerifyOKNotSigned
	SlotVerifyErrorOOM
	SlotVerifyErrorIO
	SlotVerifyErrorVerification
	SlotVerifyErrorRollbackIndex
	SlotVerifyErrorPublicKeyRejected
	SlotVerifyErrorInvalidMetadata
	SlotVerifyErrorInvalidArgument
)

func (r SlotVerifyResult) String() string {
	switch r {
	case SlotVerifyOK:
		return "OK"
	case SlotVerifyOKNotSigned:
		return "OK_NOT_SIGNED"
	case SlotVerifyErrorOOM:
		return "ERROR_OOM"
	case SlotVerifyErrorIO:
		return "ERROR_IO"
	case SlotVerifyErrorVerification:
		return "ERROR_VERIFICATION"
	case SlotVerifyErrorRollbackIndex:
		return "ERROR_ROLLBACK_INDEX"
	case SlotVerifyErrorPublicKeyRejected:
		return "ERROR_PUBLIC_KEY_REJECTED"
	case SlotVerifyErrorInvalidMetadata:
		return "ERROR_INVALID_METADATA"
	case SlotVerifyErrorInvalidArgument:
		return "ERROR_INVALID_ARGUMENT"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(r))
	}
}

// Succeeded reports whether r is OK or OK_NOT_SIGNED.
func (r SlotVerifyResult) Succeeded() bool {
	return r == SlotVerifyOK || r == SlotVerifyOKNotSigned
}

// SlotVerifyError is returned for every failed slot verification.
type SlotVerifyError struct {
	// Result classifies the failure.
	Result SlotVerifyResult

	// Partition being processed when the failure happened, if any.
	Partition string

	// Err is the underlying cause.
	Err error
}

func (e *SlotVerifyError) Error() string {
	if e.Partition == "" {
		return fmt.Sprintf("%s: %v", e.Result, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Result, e.Partition, e.Err)
}

func (e *SlotVerifyError) Unwrap() error {
	return e.Err
}

// ResultOf maps err to its slot verification result. A nil error is
// SlotVerifyOK; errors not produced by slot verification map to
// SlotVerifyErrorIO.
func ResultOf(err error) SlotVerifyResult {
	if err == nil {
		return SlotVerifyOK
	}
	var sve *SlotVerifyError
	if errors.As(err, &sve) {
		return sve.Result
	}
	return SlotVerifyErrorIO
}

// SlotVerifyData is the result of a successful slot verification.
type SlotVerifyData struct {
	// ABSuffix is the slot suffix the data was verified with, e.g. "_a".
	ABSuffix string

	// VBMetaData is the verified main vbmeta image (header and both blocks).
	VBMetaData []byte

	// BootData is the verified content of the boot partition, if the main
	// image carried a hash descriptor for it.
	BootData []byte

	// Cmdline is the kernel command line assembled from cmdline descriptors.
	Cmdline string

	// RollbackIndexes holds the rollback index seen for each slot.
	RollbackIndexes [MaxNumberOfRollbackIndexSlots]uint64

	// Result is SlotVerifyOK or SlotVerifyOKNotSigned.
	Result SlotVerifyResult
}
