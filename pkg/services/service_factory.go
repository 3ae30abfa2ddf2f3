package services

import (
	"errors"
	"sync"

	"github.com/deploymenttheory/go-avb/internal/device"
	core "github.com/deploymenttheory/go-avb/internal/services"
)

// ErrNoDeviceConfig is returned when a factory has no device configuration
var ErrNoDeviceConfig = errors.New("device configuration is required")

// ServiceFactory opens a configured device once and hands out the services
// bound to it
type ServiceFactory struct {
	config      *DeviceConfig
	device      *device.PartitionDevice
	verifier    *core.SlotVerifier
	assembler   *core.CmdlineAssembler
	mu          sync.RWMutex
	initialized bool
}

// NewServiceFactory creates a factory for the given device
func NewServiceFactory(config *DeviceConfig) *ServiceFactory {
	return &ServiceFactory{config: config}
}

// Initialize opens the device and builds the services
func (sf *ServiceFactory) Initialize() error {
	sf.mu.Lock()
	defer sf.mu.Unlock()

	if sf.initialized {
		return nil
	}
	if sf.config == nil {
		return ErrNoDeviceConfig
	}

	dev, err := device.NewPartitionDevice(sf.config)
	if err != nil {
		return err
	}

	sf.device = dev
	sf.verifier = core.NewSlotVerifier(dev, sf.config.SlotVerifierOptions()...)
	sf.assembler = core.NewCmdlineAssembler(dev)
	sf.initialized = true
	return nil
}

// VerifierService returns the slot verifier for the device
func (sf *ServiceFactory) VerifierService() (VerifierService, error) {
	if err := sf.Initialize(); err != nil {
		return nil, err
	}
	sf.mu.RLock()
	defer sf.mu.RUnlock()
	return sf.verifier, nil
}

// CmdlineService returns the command line assembler for the device
func (sf *ServiceFactory) CmdlineService() (CmdlineService, error) {
	if err := sf.Initialize(); err != nil {
		return nil, err
	}
	sf.mu.RLock()
	defer sf.mu.RUnlock()
	return sf.assembler, nil
}

// Ops returns the platform operations backing the services
func (sf *ServiceFactory) Ops() (Ops, error) {
	if err := sf.Initialize(); err != nil {
		return nil, err
	}
	sf.mu.RLock()
	defer sf.mu.RUnlock()
	return sf.device, nil
}

// Shutdown releases the device. The factory can be initialized again.
func (sf *ServiceFactory) Shutdown() error {
	sf.mu.Lock()
	defer sf.mu.Unlock()

	if !sf.initialized {
		return nil
	}

	err := sf.device.Close()
	sf.device = nil
	sf.verifier = nil
	sf.assembler = nil
	sf.initialized = false
	return err
}

// IsInitialized returns whether the factory has opened its device
func (sf *ServiceFactory) IsInitialized() bool {
	sf.mu.RLock()
	defer sf.mu.RUnlock()
	return sf.initialized
}
