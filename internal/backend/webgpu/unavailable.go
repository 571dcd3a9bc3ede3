//go:build !windows

// Package webgpu implements the device driver on WebGPU.
//
// The WebGPU bindings are only wired up on Windows; elsewhere the driver
// reports that no device is available.
package webgpu

import (
	"errors"
	"runtime"

	"github.com/born-ml/gpgpu/internal/device"
)

// ErrUnsupportedPlatform is returned by RequestDevice off Windows.
var ErrUnsupportedPlatform = errors.New("webgpu: not supported on " + runtime.GOOS)

// Verify that Driver implements device.Driver.
var _ device.Driver = (*Driver)(nil)

// Driver opens WebGPU devices.
type Driver struct{}

// NewDriver returns the WebGPU driver.
func NewDriver() *Driver {
	return &Driver{}
}

// RequestDevice always fails on this platform.
func (d *Driver) RequestDevice() (device.Device, error) {
	return nil, ErrUnsupportedPlatform
}

// IsAvailable reports false on this platform.
func IsAvailable() bool {
	return false
}

// ListAdapters fails on this platform.
func ListAdapters() ([]Adapter, error) {
	return nil, ErrUnsupportedPlatform
}
