// File: internal/interfaces/ops.go
package interfaces

import "context"

// PartitionReader reads raw partition content
type PartitionReader interface {
	// ReadFromPartition reads up to numBytes from the named partition starting at offset.
	// A negative offset is relative to the end of the partition. A short read is
	// not an error; the returned slice holds the bytes actually read.
	ReadFromPartition(ctx context.Context, partition string, offset int64, numBytes uint64) ([]byte, error)

	// GetUniqueGUIDForPartition returns the unique partition GUID as a string
	GetUniqueGUIDForPartition(ctx context.Context, partition string) (string, error)
}

// KeyValidator decides which vbmeta signing keys are trusted
type KeyValidator interface {
	// ValidateVBMetaPublicKey reports whether the serialized public key may sign the
	// main vbmeta image. An empty key asks whether unsigned images are acceptable.
	ValidateVBMetaPublicKey(ctx context.Context, publicKey []byte, publicKeyMetadata []byte) (bool, error)
}

// RollbackStore exposes the persisted rollback counters
type RollbackStore interface {
	// ReadRollbackIndex returns the stored rollback counter for the given slot
	ReadRollbackIndex(ctx context.Context, location uint32) (uint64, error)
}

// DeviceState reports the lock state of the device
type DeviceState interface {
	// ReadIsDeviceUnlocked reports whether the device is unlocked
	ReadIsDeviceUnlocked(ctx context.Context) (bool, error)
}

// Ops is the complete set of platform operations the slot verifier depends on
type Ops interface {
	PartitionReader
	KeyValidator
	RollbackStore
	DeviceState
}
