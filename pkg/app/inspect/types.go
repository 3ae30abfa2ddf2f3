package inspect

// Request represents an image inspection request
type Request struct {
	// Path to a vbmeta image or to a partition image with a vbmeta footer
	ImagePath string
}

// Response describes a vbmeta image and its descriptors
type Response struct {
	Path         string           `json:"path" yaml:"path"`
	Footer       *FooterInfo      `json:"footer,omitempty" yaml:"footer,omitempty"`
	Header       HeaderInfo       `json:"header" yaml:"header"`
	Verification string           `json:"verification" yaml:"verification"`
	Descriptors  []DescriptorInfo `json:"descriptors" yaml:"descriptors"`
}

// FooterInfo describes the footer of a partition image
type FooterInfo struct {
	Version           string `json:"version" yaml:"version"`
	OriginalImageSize uint64 `json:"original_image_size" yaml:"original_image_size"`
	VBMetaOffset      uint64 `json:"vbmeta_offset" yaml:"vbmeta_offset"`
	VBMetaSize        uint64 `json:"vbmeta_size" yaml:"vbmeta_size"`
}

// HeaderInfo summarizes the vbmeta header
type HeaderInfo struct {
	RequiredVersion       string `json:"required_version" yaml:"required_version"`
	ImageSize             uint64 `json:"image_size" yaml:"image_size"`
	AuthenticationSize    uint64 `json:"authentication_block_size" yaml:"authentication_block_size"`
	AuxiliarySize         uint64 `json:"auxiliary_block_size" yaml:"auxiliary_block_size"`
	Algorithm             string `json:"algorithm" yaml:"algorithm"`
	RollbackIndex         uint64 `json:"rollback_index" yaml:"rollback_index"`
	RollbackIndexLocation uint32 `json:"rollback_index_location" yaml:"rollback_index_location"`
	Flags                 uint32 `json:"flags" yaml:"flags"`
	ReleaseString         string `json:"release_string" yaml:"release_string"`
	PublicKeySHA256       string `json:"public_key_sha256,omitempty" yaml:"public_key_sha256,omitempty"`
	PublicKeyBits         int    `json:"public_key_bits,omitempty" yaml:"public_key_bits,omitempty"`
}

// DescriptorInfo describes one descriptor. Fields that do not apply to the
// descriptor type are left empty.
type DescriptorInfo struct {
	Type                  string `json:"type" yaml:"type"`
	Partition             string `json:"partition,omitempty" yaml:"partition,omitempty"`
	ImageSize             uint64 `json:"image_size,omitempty" yaml:"image_size,omitempty"`
	HashAlgorithm         string `json:"hash_algorithm,omitempty" yaml:"hash_algorithm,omitempty"`
	Salt                  string `json:"salt,omitempty" yaml:"salt,omitempty"`
	Digest                string `json:"digest,omitempty" yaml:"digest,omitempty"`
	TreeOffset            uint64 `json:"tree_offset,omitempty" yaml:"tree_offset,omitempty"`
	TreeSize              uint64 `json:"tree_size,omitempty" yaml:"tree_size,omitempty"`
	DataBlockSize         uint32 `json:"data_block_size,omitempty" yaml:"data_block_size,omitempty"`
	RollbackIndexLocation uint32 `json:"rollback_index_location,omitempty" yaml:"rollback_index_location,omitempty"`
	PublicKeySHA256       string `json:"public_key_sha256,omitempty" yaml:"public_key_sha256,omitempty"`
	Cmdline               string `json:"cmdline,omitempty" yaml:"cmdline,omitempty"`
	Key                   string `json:"key,omitempty" yaml:"key,omitempty"`
	Value                 string `json:"value,omitempty" yaml:"value,omitempty"`
	Flags                 uint32 `json:"flags,omitempty" yaml:"flags,omitempty"`
	Size                  uint64 `json:"size" yaml:"size"`
}

// PropertyRequest asks for a single property of an image
type PropertyRequest struct {
	ImagePath string
	Key       string

	// Parse the value as a decimal or 0x-prefixed unsigned integer
	AsUint64 bool
}

// PropertyResponse holds a property value
type PropertyResponse struct {
	Key    string  `json:"key" yaml:"key"`
	Value  string  `json:"value" yaml:"value"`
	Uint64 *uint64 `json:"uint64,omitempty" yaml:"uint64,omitempty"`
}
