package verify

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	"github.com/deploymenttheory/go-avb/internal/helpers"
	"github.com/deploymenttheory/go-avb/internal/types"
	"github.com/deploymenttheory/go-avb/pkg/app"
	"github.com/deploymenttheory/go-avb/pkg/services"
)

// Handle verifies the requested slot. A slot that fails verification is not
// a handler error: the failure is described in the response.
func Handle(ctx *app.Context, req *Request) (*Response, error) {
	startTime := time.Now()

	if err := req.Validate(); err != nil {
		return nil, err
	}

	ctx.Log(fmt.Sprintf("Verifying %s in: %s", req.Slot.String(), req.Device.PartitionsDir))

	factory := services.NewServiceFactory(req.Device)
	defer factory.Shutdown()

	verifier, err := factory.VerifierService()
	if err != nil {
		return nil, app.NewError(app.ErrCodeDeviceAccess, "failed to open device", err)
	}

	var data *types.SlotVerifyData
	if req.SkipCmdlineOptions {
		data, err = verifier.LoadAndVerify(ctx, req.Slot.Suffix)
	} else {
		data, err = verifier.Verify(ctx, req.Slot.Suffix)
	}

	response := &Response{Slot: req.Slot.Suffix}
	if err != nil {
		response.Result = types.ResultOf(err).String()
		response.Error = err.Error()
		var sve *types.SlotVerifyError
		if errors.As(err, &sve) {
			response.FailedPartition = sve.Partition
		}
	} else {
		fillResponse(response, data)
	}
	response.VerifyTime = time.Since(startTime)

	ctx.Log(fmt.Sprintf("Verification finished with %s in %v", response.Result, response.VerifyTime))
	return response, nil
}

func fillResponse(response *Response, data *types.SlotVerifyData) {
	digest := sha256.Sum256(data.VBMetaData)

	response.Result = data.Result.String()
	response.Verified = data.Result.Succeeded()
	response.VBMetaSize = uint64(len(data.VBMetaData))
	response.VBMetaDigest = helpers.HexDigest(digest[:])
	response.BootSize = uint64(len(data.BootData))
	response.Cmdline = data.Cmdline

	for slot, value := range data.RollbackIndexes {
		if value != 0 {
			response.RollbackIndexes = append(response.RollbackIndexes, RollbackIndex{Slot: uint32(slot), Value: value})
		}
	}
}
