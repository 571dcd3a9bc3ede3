// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package webgpu provides the WebGPU driver kernels are dispatched through.
//
// The driver is backed by go-webgpu on Windows. On other platforms it
// exists but every device request fails, so a Runtime built on it reports
// ErrDeviceAcquisitionFailed.
//
// Example:
//
//	if !webgpu.IsAvailable() {
//	    log.Fatal("no WebGPU adapter")
//	}
//	rt := gpgpu.NewRuntime(gpgpu.WithDriver(webgpu.New()))
//	defer rt.MustInit().Release()
package webgpu

import (
	internalwebgpu "github.com/born-ml/gpgpu/internal/backend/webgpu"
	"github.com/born-ml/gpgpu/internal/device"
)

// Driver opens WebGPU devices.
type Driver = internalwebgpu.Driver

// Compile-time check that Driver implements the device driver contract.
var _ device.Driver = (*Driver)(nil)

// New creates the WebGPU driver. No GPU resource is touched until a
// runtime acquires its device.
func New() *Driver {
	return internalwebgpu.NewDriver()
}

// Adapter describes a GPU adapter.
type Adapter = internalwebgpu.Adapter

// ListAdapters returns the adapters WebGPU can open a device on. Off Windows
// it always fails.
func ListAdapters() ([]Adapter, error) {
	return internalwebgpu.ListAdapters()
}

// IsAvailable checks if WebGPU is available on the current system.
//
// This function attempts to initialize a WebGPU adapter to verify
// that a compatible GPU and drivers are present.
func IsAvailable() bool {
	return internalwebgpu.IsAvailable()
}
