package inspect

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"strconv"

	"github.com/deploymenttheory/go-avb/internal/helpers"
	"github.com/deploymenttheory/go-avb/internal/parsers/descriptors"
	"github.com/deploymenttheory/go-avb/internal/parsers/vbmeta"
	"github.com/deploymenttheory/go-avb/internal/types"
	"github.com/deploymenttheory/go-avb/pkg/app"
)

// Handle decodes the vbmeta image named by the request. The signature is
// checked with the key embedded in the image, so a successful verification
// says nothing about whether that key is trusted.
func Handle(ctx *app.Context, req *Request) (*Response, error) {
	if req.ImagePath == "" {
		return nil, app.NewError(app.ErrCodeInvalidInput, "image path is required", nil)
	}

	data, footer, err := LoadImage(req.ImagePath)
	if err != nil {
		return nil, app.NewError(app.ErrCodeImageAccess, "failed to load vbmeta image", err)
	}

	reader, err := vbmeta.NewVBMetaImageReader(data)
	if err != nil {
		return nil, app.NewError(app.ErrCodeImageAccess, "invalid vbmeta image", err)
	}
	ctx.Log(fmt.Sprintf("Loaded %d byte vbmeta image from %s", reader.ImageSize(), req.ImagePath))

	result, _, _ := vbmeta.VerifyImage(data)

	response := &Response{
		Path:         req.ImagePath,
		Header:       headerInfo(reader.Header()),
		Verification: result.String(),
	}
	if footer != nil {
		response.Footer = &FooterInfo{
			Version:           fmt.Sprintf("%d.%d", footer.VersionMajor, footer.VersionMinor),
			OriginalImageSize: footer.OriginalImageSize,
			VBMetaOffset:      footer.VBMetaOffset,
			VBMetaSize:        footer.VBMetaSize,
		}
	}

	if key := reader.PublicKey(); len(key) > 0 {
		response.Header.PublicKeySHA256 = sha256Hex(key)
		if pub, err := reader.RSAPublicKey(); err == nil {
			response.Header.PublicKeyBits = pub.N.BitLen()
		}
	}

	descs, err := reader.Descriptors()
	if err != nil {
		return nil, app.NewError(app.ErrCodeImageAccess, "invalid descriptors", err)
	}
	for _, d := range descs {
		response.Descriptors = append(response.Descriptors, describe(d))
	}

	return response, nil
}

// HandleProperty looks up a single property descriptor.
func HandleProperty(ctx *app.Context, req *PropertyRequest) (*PropertyResponse, error) {
	if req.ImagePath == "" || req.Key == "" {
		return nil, app.NewError(app.ErrCodeInvalidInput, "image path and key are required", nil)
	}

	data, _, err := LoadImage(req.ImagePath)
	if err != nil {
		return nil, app.NewError(app.ErrCodeImageAccess, "failed to load vbmeta image", err)
	}

	value, err := descriptors.LookupProperty(data, req.Key)
	if errors.Is(err, descriptors.ErrPropertyNotFound) {
		return nil, app.NewError(app.ErrCodeNotFound, "property not found", err)
	}
	if err != nil {
		return nil, app.NewError(app.ErrCodeImageAccess, "invalid vbmeta image", err)
	}

	response := &PropertyResponse{Key: req.Key, Value: string(value)}
	if req.AsUint64 {
		n, err := descriptors.LookupPropertyUint64(data, req.Key)
		if err != nil {
			return nil, app.NewError(app.ErrCodeInvalidInput, "property is not an unsigned integer", err)
		}
		response.Uint64 = &n
	}
	return response, nil
}

func headerInfo(h *types.VBMetaImageHeader) HeaderInfo {
	return HeaderInfo{
		RequiredVersion:       fmt.Sprintf("%d.%d", h.RequiredLibavbVersionMajor, h.RequiredLibavbVersionMinor),
		ImageSize:             h.ImageSize(),
		AuthenticationSize:    h.AuthenticationDataBlockSize,
		AuxiliarySize:         h.AuxiliaryDataBlockSize,
		Algorithm:             types.AlgorithmType(h.AlgorithmType).String(),
		RollbackIndex:         h.RollbackIndex,
		RollbackIndexLocation: h.RollbackIndexLocation,
		Flags:                 h.Flags,
		ReleaseString:         h.ReleaseStringValue(),
	}
}

func describe(d types.Descriptor) DescriptorInfo {
	hdr := d.Header()
	info := DescriptorInfo{Type: hdr.Tag.String(), Size: hdr.TotalSize()}

	switch v := d.(type) {
	case *types.HashDescriptor:
		info.Partition = v.PartitionName
		info.ImageSize = v.ImageSize
		info.HashAlgorithm = v.HashAlgorithmName()
		info.Salt = helpers.HexDigest(v.Salt)
		info.Digest = helpers.HexDigest(v.Digest)
		info.Flags = v.Flags
	case *types.HashtreeDescriptor:
		info.Partition = v.PartitionName
		info.ImageSize = v.ImageSize
		info.HashAlgorithm = v.HashAlgorithmName()
		info.Salt = helpers.HexDigest(v.Salt)
		info.Digest = helpers.HexDigest(v.RootDigest)
		info.TreeOffset = v.TreeOffset
		info.TreeSize = v.TreeSize
		info.DataBlockSize = v.DataBlockSize
		info.Flags = v.Flags
	case *types.KernelCmdlineDescriptor:
		info.Cmdline = v.KernelCmdline
		info.Flags = v.Flags
	case *types.ChainPartitionDescriptor:
		info.Partition = v.PartitionName
		info.RollbackIndexLocation = v.RollbackIndexLocation
		info.PublicKeySHA256 = sha256Hex(v.PublicKey)
		info.Flags = v.Flags
	case *types.PropertyDescriptor:
		info.Key = string(v.Key)
		info.Value = strconv.Quote(string(v.Value))
	}
	return info
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return helpers.HexDigest(sum[:])
}
