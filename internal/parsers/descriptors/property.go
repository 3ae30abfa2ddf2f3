package descriptors

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/deploymenttheory/go-avb/internal/helpers"
	"github.com/deploymenttheory/go-avb/internal/types"
)

// ErrPropertyNotFound is returned when no property descriptor has the key.
var ErrPropertyNotFound = errors.New("property not found")

// ParsePropertyDescriptor validates a property descriptor. Key and value are
// each followed by a NUL byte that is not part of the returned slices.
func ParsePropertyDescriptor(data []byte) (*types.PropertyDescriptor, error) {
	hdr, record, err := validateRecord(data, types.DescriptorTagProperty, types.PropertyDescriptorSize)
	if err != nil {
		return nil, err
	}

	d := &types.PropertyDescriptor{DescriptorHeader: hdr}
	d.KeyNumBytes = helpers.BE64(record[16:24])
	d.ValueNumBytes = helpers.BE64(record[24:32])

	if err := checkTrailingSize(hdr, types.PropertyDescriptorSize,
		d.KeyNumBytes, d.ValueNumBytes, types.PropertyDescriptorTerminatorCount); err != nil {
		return nil, fmt.Errorf("invalid property descriptor: %w", err)
	}

	p := uint64(types.PropertyDescriptorSize)
	d.Key = cloneBytes(record[p : p+d.KeyNumBytes])
	p += d.KeyNumBytes + 1
	d.Value = cloneBytes(record[p : p+d.ValueNumBytes])

	return d, nil
}

// EncodePropertyDescriptor serializes a key/value pair.
func EncodePropertyDescriptor(key string, value []byte) []byte {
	trailing := len(key) + len(value) + types.PropertyDescriptorTerminatorCount
	buf := encodeHeader(types.DescriptorTagProperty, uint64(types.PropertyDescriptorSize-types.DescriptorHeaderSize+trailing))

	helpers.PutBE64(buf[16:24], uint64(len(key)))
	helpers.PutBE64(buf[24:32], uint64(len(value)))

	p := types.PropertyDescriptorSize
	p += copy(buf[p:], key) + 1
	copy(buf[p:], value)
	return buf
}

// LookupProperty returns the value of the first property descriptor in image
// whose key equals key. Malformed property descriptors are skipped.
func LookupProperty(image []byte, key string) ([]byte, error) {
	var value []byte
	found := false

	_, err := ForEach(image, func(record []byte, hdr types.DescriptorHeader) bool {
		if hdr.Tag != types.DescriptorTagProperty {
			return true
		}
		prop, err := ParsePropertyDescriptor(record)
		if err != nil {
			return true
		}
		if !bytes.Equal(prop.Key, []byte(key)) {
			return true
		}
		value, found = prop.Value, true
		return false
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %q", ErrPropertyNotFound, key)
	}
	return value, nil
}

// LookupPropertyUint64 looks up key and parses its value as a decimal or
// 0x-prefixed hexadecimal unsigned integer.
func LookupPropertyUint64(image []byte, key string) (uint64, error) {
	value, err := LookupProperty(image, key)
	if err != nil {
		return 0, err
	}
	v, err := helpers.ParseUint64(string(value))
	if err != nil {
		return 0, fmt.Errorf("property %q: %w", key, err)
	}
	return v, nil
}
