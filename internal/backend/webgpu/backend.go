//go:build windows

// Package webgpu implements the device driver on WebGPU.
// Uses go-webgpu (github.com/go-webgpu/webgpu) for zero-CGO WebGPU bindings.
package webgpu

import (
	"fmt"

	"github.com/go-webgpu/webgpu/wgpu"

	"github.com/born-ml/gpgpu/internal/device"
)

// Verify that Driver implements device.Driver.
var _ device.Driver = (*Driver)(nil)

// Driver opens WebGPU devices.
type Driver struct {
	PowerPreference wgpu.PowerPreference
}

// NewDriver returns a driver preferring a high-performance adapter.
func NewDriver() *Driver {
	return &Driver{PowerPreference: wgpu.PowerPreferenceHighPerformance}
}

// Device is an opened WebGPU adapter, device and queue.
type Device struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue

	adapterInfo *wgpu.AdapterInfo
}

// RequestDevice acquires the adapter, the device and its queue.
// Returns an error if WebGPU is not available or initialization fails.
func (d *Driver) RequestDevice() (dev device.Device, err error) {
	// Recover from panic if wgpu_native library is not found.
	defer func() {
		if r := recover(); r != nil {
			dev = nil
			err = fmt.Errorf("webgpu: native library not available: %v", r)
		}
	}()

	instance := wgpu.CreateInstance(nil)
	adapter, adapterErr := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: d.PowerPreference,
	})
	if adapterErr != nil {
		instance.Release()
		return nil, fmt.Errorf("webgpu: failed to request adapter: %w", adapterErr)
	}

	adapterInfo := adapter.GetInfo()

	wdev, deviceErr := adapter.RequestDevice(nil)
	if deviceErr != nil {
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("webgpu: failed to request device: %w", deviceErr)
	}

	queue := wdev.GetQueue()
	if queue == nil {
		wdev.Release()
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("webgpu: failed to get queue")
	}

	return &Device{
		instance:    instance,
		adapter:     adapter,
		device:      wdev,
		queue:       queue,
		adapterInfo: &adapterInfo,
	}, nil
}

// Release releases all WebGPU resources.
func (d *Device) Release() {
	if d.queue != nil {
		d.queue.Release()
		d.queue = nil
	}
	if d.device != nil {
		d.device.Release()
		d.device = nil
	}
	if d.adapter != nil {
		d.adapter.Release()
		d.adapter = nil
	}
	if d.instance != nil {
		d.instance.Release()
		d.instance = nil
	}
}

// Name describes the adapter.
func (d *Device) Name() string {
	if d.adapterInfo != nil {
		a := d.Adapter()
		return fmt.Sprintf("WebGPU (%s %s)", a.Device, a.Vendor)
	}
	return "WebGPU"
}

// Adapter describes the GPU adapter the device was opened on.
func (d *Device) Adapter() Adapter {
	if d.adapterInfo == nil {
		return Adapter{}
	}
	return adapterOf(d.adapterInfo)
}

func adapterOf(info *wgpu.AdapterInfo) Adapter {
	return Adapter{
		Vendor:       info.Vendor,
		Device:       info.Device,
		Description:  info.Description,
		Architecture: info.Architecture,
		Backend:      fmt.Sprint(info.BackendType),
		Type:         fmt.Sprint(info.AdapterType),
		VendorID:     uint32(info.VendorID),
		DeviceID:     uint32(info.DeviceID),
	}
}

// IsAvailable checks if WebGPU is available on this system.
func IsAvailable() (available bool) {
	// Recover from panic if wgpu_native library is not found.
	defer func() {
		if r := recover(); r != nil {
			available = false
		}
	}()

	instance := wgpu.CreateInstance(nil)
	defer instance.Release()

	adapter, err := instance.RequestAdapter(nil)
	if err != nil {
		return false
	}
	adapter.Release()

	return true
}

// ListAdapters returns information about all available GPU adapters.
func ListAdapters() (adapters []Adapter, err error) {
	// Recover from panic if wgpu_native library is not found.
	defer func() {
		if r := recover(); r != nil {
			adapters = nil
			err = fmt.Errorf("webgpu: native library not available: %v", r)
		}
	}()

	instance := wgpu.CreateInstance(nil)
	defer instance.Release()

	// WebGPU has no adapter enumeration; report the default one.
	adapter, adapterErr := instance.RequestAdapter(nil)
	if adapterErr != nil {
		return nil, fmt.Errorf("webgpu: no adapters available: %w", adapterErr)
	}
	defer adapter.Release()

	info := adapter.GetInfo()

	return []Adapter{adapterOf(&info)}, nil
}
