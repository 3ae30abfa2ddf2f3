package testonly

import (
	"bytes"
	"context"
	"errors"
	"fmt"
)

// ErrNoSuchPartition is returned by MemOps for unknown partitions.
var ErrNoSuchPartition = errors.New("no such partition")

// MemOps is an in-memory implementation of the slot verifier operations.
type MemOps struct {
	// Partitions maps full partition names (with suffix) to their content.
	Partitions map[string][]byte

	// TrustedKeys lists public key blocks accepted for the main vbmeta image.
	TrustedKeys [][]byte

	// AllowUnsigned makes ValidateVBMetaPublicKey accept an empty key.
	AllowUnsigned bool

	// RollbackIndexes holds the stored rollback counters by slot.
	RollbackIndexes map[uint32]uint64

	// Unlocked is the reported device lock state.
	Unlocked bool

	// GUIDs maps full partition names to their unique GUID.
	GUIDs map[string]string

	// Errors makes the named operation fail. Keys are the method names,
	// optionally followed by ":" and a partition name.
	Errors map[string]error

	// Reads records every ReadFromPartition call as "name@offset+n".
	Reads []string
}

// NewMemOps returns an empty MemOps.
func NewMemOps() *MemOps {
	return &MemOps{
		Partitions:      map[string][]byte{},
		RollbackIndexes: map[uint32]uint64{},
		GUIDs:           map[string]string{},
		Errors:          map[string]error{},
	}
}

func (m *MemOps) injected(op, partition string) error {
	if err, ok := m.Errors[op+":"+partition]; ok {
		return err
	}
	return m.Errors[op]
}

// ReadFromPartition implements interfaces.PartitionReader.
func (m *MemOps) ReadFromPartition(ctx context.Context, partition string, offset int64, numBytes uint64) ([]byte, error) {
	m.Reads = append(m.Reads, fmt.Sprintf("%s@%d+%d", partition, offset, numBytes))
	if err := m.injected("ReadFromPartition", partition); err != nil {
		return nil, err
	}

	data, ok := m.Partitions[partition]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchPartition, partition)
	}

	start := offset
	if offset < 0 {
		start = int64(len(data)) + offset
	}
	if start < 0 || start > int64(len(data)) {
		return nil, fmt.Errorf("offset %d outside partition %s of %d bytes", offset, partition, len(data))
	}

	end := uint64(start) + numBytes
	if end < uint64(start) || end > uint64(len(data)) {
		end = uint64(len(data))
	}
	return append([]byte(nil), data[start:end]...), nil
}

// GetUniqueGUIDForPartition implements interfaces.PartitionReader.
func (m *MemOps) GetUniqueGUIDForPartition(ctx context.Context, partition string) (string, error) {
	if err := m.injected("GetUniqueGUIDForPartition", partition); err != nil {
		return "", err
	}
	guid, ok := m.GUIDs[partition]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNoSuchPartition, partition)
	}
	return guid, nil
}

// ValidateVBMetaPublicKey implements interfaces.KeyValidator.
func (m *MemOps) ValidateVBMetaPublicKey(ctx context.Context, publicKey, publicKeyMetadata []byte) (bool, error) {
	if err := m.injected("ValidateVBMetaPublicKey", ""); err != nil {
		return false, err
	}
	if len(publicKey) == 0 {
		return m.AllowUnsigned, nil
	}
	for _, k := range m.TrustedKeys {
		if bytes.Equal(k, publicKey) {
			return true, nil
		}
	}
	return false, nil
}

// ReadRollbackIndex implements interfaces.RollbackStore.
func (m *MemOps) ReadRollbackIndex(ctx context.Context, location uint32) (uint64, error) {
	if err := m.injected("ReadRollbackIndex", ""); err != nil {
		return 0, err
	}
	return m.RollbackIndexes[location], nil
}

// ReadIsDeviceUnlocked implements interfaces.DeviceState.
func (m *MemOps) ReadIsDeviceUnlocked(ctx context.Context) (bool, error) {
	if err := m.injected("ReadIsDeviceUnlocked", ""); err != nil {
		return false, err
	}
	return m.Unlocked, nil
}
