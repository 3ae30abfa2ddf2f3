package device

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/edsrzf/mmap-go"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/deploymenttheory/go-avb/internal/types"
)

// ErrInvalidPartitionName is returned for names that cannot map to an image file.
var ErrInvalidPartitionName = errors.New("invalid partition name")

// partitionNamespace seeds GUIDs derived for partitions without a configured one.
var partitionNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("android-verified-boot:partition"))

// PartitionDevice serves partitions from <dir>/<name>.img files. Images are
// memory mapped read-only on first use and stay mapped until Close.
type PartitionDevice struct {
	config      *Config
	trustedKeys [][]byte
	rollback    map[uint32]uint64
	guids       map[string]uuid.UUID

	mu       sync.Mutex
	mappings map[string]*mappedImage
}

type mappedImage struct {
	file *os.File
	data mmap.MMap
}

// NewPartitionDevice validates config and loads its trusted keys.
func NewPartitionDevice(config *Config) (*PartitionDevice, error) {
	if config == nil {
		return nil, errors.New("nil device config")
	}

	d := &PartitionDevice{
		config:   config,
		guids:    make(map[string]uuid.UUID, len(config.PartitionGUIDs)),
		mappings: make(map[string]*mappedImage),
	}

	rollback, err := config.rollbackIndexes()
	if err != nil {
		return nil, err
	}
	d.rollback = rollback

	for name, value := range config.PartitionGUIDs {
		guid, err := uuid.Parse(value)
		if err != nil {
			return nil, fmt.Errorf("invalid GUID for partition %s: %w", name, err)
		}
		d.guids[name] = guid
	}

	for _, path := range config.TrustedKeys {
		key, err := LoadPublicKey(path)
		if err != nil {
			return nil, fmt.Errorf("trusted key %s: %w", path, err)
		}
		d.trustedKeys = append(d.trustedKeys, key)
	}

	return d, nil
}

// ImagePath returns the file backing partition.
func (d *PartitionDevice) ImagePath(partition string) (string, error) {
	if partition == "" || partition == "." || partition == ".." ||
		strings.ContainsAny(partition, `/\`) || strings.ContainsRune(partition, 0) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPartitionName, partition)
	}
	return filepath.Join(d.config.PartitionsDir, partition+".img"), nil
}

func (d *PartitionDevice) open(partition string) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if m, ok := d.mappings[partition]; ok {
		return m.data, nil
	}

	path, err := d.ImagePath(partition)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open partition image: %w", err)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat partition image: %w", err)
	}

	m := &mappedImage{file: file}
	if stat.Size() > 0 {
		m.data, err = mmap.Map(file, mmap.RDONLY, 0)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to map partition image: %w", err)
		}
	}

	logrus.WithField("partition", partition).Debugf("mapped %s (%d bytes)", path, stat.Size())
	d.mappings[partition] = m
	return m.data, nil
}

// ReadFromPartition implements interfaces.PartitionReader. A negative
// offset counts from the end of the partition. Reads past the end are
// truncated.
func (d *PartitionDevice) ReadFromPartition(ctx context.Context, partition string, offset int64, numBytes uint64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := d.open(partition)
	if err != nil {
		return nil, err
	}

	size := int64(len(data))
	start := offset
	if offset < 0 {
		start = size + offset
	}
	if start < 0 || start > size {
		return nil, fmt.Errorf("offset %d outside partition %s of %d bytes", offset, partition, size)
	}

	end := uint64(start) + numBytes
	if end < uint64(start) || end > uint64(size) {
		end = uint64(size)
	}

	out := make([]byte, end-uint64(start))
	copy(out, data[start:end])
	return out, nil
}

// GetUniqueGUIDForPartition implements interfaces.PartitionReader.
func (d *PartitionDevice) GetUniqueGUIDForPartition(ctx context.Context, partition string) (string, error) {
	if guid, ok := d.guids[partition]; ok {
		return guid.String(), nil
	}

	path, err := d.ImagePath(partition)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("no such partition %s: %w", partition, err)
	}
	return uuid.NewSHA1(partitionNamespace, []byte(partition)).String(), nil
}

// ValidateVBMetaPublicKey implements interfaces.KeyValidator. Unsigned
// images are accepted only if the configuration allows them.
func (d *PartitionDevice) ValidateVBMetaPublicKey(ctx context.Context, publicKey, publicKeyMetadata []byte) (bool, error) {
	if len(publicKey) == 0 {
		return d.config.AllowUnsigned, nil
	}
	for _, key := range d.trustedKeys {
		if bytes.Equal(key, publicKey) {
			return true, nil
		}
	}
	return false, nil
}

// ReadRollbackIndex implements interfaces.RollbackStore. Slots without a
// configured value read as zero.
func (d *PartitionDevice) ReadRollbackIndex(ctx context.Context, location uint32) (uint64, error) {
	if location >= types.MaxNumberOfRollbackIndexSlots {
		return 0, fmt.Errorf("rollback index slot %d out of range", location)
	}
	return d.rollback[location], nil
}

// ReadIsDeviceUnlocked implements interfaces.DeviceState.
func (d *PartitionDevice) ReadIsDeviceUnlocked(ctx context.Context) (bool, error) {
	return d.config.Unlocked, nil
}

// Close unmaps every partition image.
func (d *PartitionDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var errs []error
	for name, m := range d.mappings {
		if m.data != nil {
			if err := m.data.Unmap(); err != nil {
				errs = append(errs, fmt.Errorf("unmap %s: %w", name, err))
			}
		}
		if err := m.file.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
		delete(d.mappings, name)
	}
	return errors.Join(errs...)
}
