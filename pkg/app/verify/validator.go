package verify

import (
	"github.com/deploymenttheory/go-avb/pkg/app"
)

// Validate validates a verification request
func (r *Request) Validate() error {
	if r.Device == nil {
		return app.NewError(app.ErrCodeInvalidInput, "device configuration is required", nil)
	}
	if r.Device.PartitionsDir == "" {
		return app.NewError(app.ErrCodeInvalidInput, "partitions directory is required", nil)
	}
	if err := r.Slot.Validate(); err != nil {
		return app.NewError(app.ErrCodeInvalidInput, "invalid slot", err)
	}
	return nil
}
