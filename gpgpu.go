// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package gpgpu

import (
	"go.uber.org/zap"

	"github.com/born-ml/gpgpu/internal/backend/webgpu"
	"github.com/born-ml/gpgpu/internal/codegen"
	"github.com/born-ml/gpgpu/internal/device"
	"github.com/born-ml/gpgpu/internal/kernel"
	"github.com/born-ml/gpgpu/internal/marker"
)

// Input is a read-only kernel binding holding a T. In Go it is a T.
type Input[T any] = T

// Output is a kernel binding the kernel writes its result through. In Go it
// is a *T.
type Output[T any] = *T

// Binding is one storage slot of a launch.
type Binding = device.Binding

// In binds v as a kernel input.
func In[T any](v T) *Binding {
	return device.In(v)
}

// Out binds p as a kernel output; *p receives the result.
func Out[T any](p *T) *Binding {
	return device.Out(p)
}

// DataType is the element type of a binding.
type DataType = device.DataType

// Data type constants.
const (
	Float32 DataType = device.Float32
	Float16 DataType = device.Float16
	Int32   DataType = device.Int32
	Uint32  DataType = device.Uint32
	Opaque  DataType = device.Opaque
)

// Runtime owns the compute device of a process and launches kernels on it.
//
// Generated host builds declare one per package:
//
//	var gpgpuRuntime = gpgpu.NewRuntime()
//
// and initialize it in the entry function:
//
//	defer gpgpuRuntime.MustInit().Release()
type Runtime = device.Context

// Config controls where a Runtime finds its kernel module.
type Config = device.Config

// Dispatch records one completed launch.
type Dispatch = device.Dispatch

// Option configures a Runtime.
type Option = device.Option

// Driver opens compute devices.
type Driver = device.Driver

// MockDriver is an in-memory driver for tests and machines without a GPU.
type MockDriver = device.MockDriver

// NewMockDriver creates a new MockDriver.
func NewMockDriver() *MockDriver {
	return device.NewMockDriver()
}

// WithDriver replaces the WebGPU driver.
func WithDriver(d Driver) Option {
	return device.WithDriver(d)
}

// WithConfig sets the module lookup and dispatch configuration.
func WithConfig(cfg Config) Option {
	return device.WithConfig(cfg)
}

// WithLogger sets the logger of the runtime.
func WithLogger(l *zap.Logger) Option {
	return device.WithLogger(l)
}

// NewRuntime creates a runtime on the WebGPU driver unless WithDriver says
// otherwise. The device is acquired on first use.
func NewRuntime(opts ...Option) *Runtime {
	opts = append([]Option{device.WithDriver(webgpu.NewDriver())}, opts...)
	return device.NewContext(opts...)
}

// Invoke runs a kernel both ways: it dispatches the device entry name with
// bindings, then runs local (usually the kernel's host mirror) and returns its
// result. The device dispatch completes before local starts.
//
//	y, err := gpgpu.Invoke(rt, "calculate", func() float32 { return calculate__cpu(x) },
//	    gpgpu.In(x), gpgpu.Out(new(float32)))
func Invoke[T any](rt *Runtime, name string, local func() T, bindings ...*Binding) (T, error) {
	if _, err := rt.Launch(name, bindings...); err != nil {
		var zero T
		return zero, err
	}
	return local(), nil
}

// SetLogger sets the logger of code generation and of runtimes created
// without WithLogger.
func SetLogger(l *zap.Logger) {
	device.SetLogger(l)
	codegen.SetLogger(l)
}

// Target selects which build Generate produces.
type Target = marker.Target

// Build targets.
const (
	HostBuild   Target = marker.HostBuild
	DeviceBuild Target = marker.DeviceBuild
)

// GenerateOptions configures Generate and GeneratePackage.
type GenerateOptions = codegen.Options

// GenerateResult is one generated file.
type GenerateResult = codegen.Result

// SourceFile is one authored file passed to GeneratePackage.
type SourceFile = codegen.File

// Generate rewrites one authored file for opts.Target.
func Generate(filename string, src []byte, opts GenerateOptions) (*GenerateResult, error) {
	return codegen.Generate(filename, src, opts)
}

// GeneratePackage rewrites all authored files of one package, declaring the
// runtime once.
func GeneratePackage(files []SourceFile, opts GenerateOptions) ([]*GenerateResult, error) {
	return codegen.GeneratePackage(files, opts)
}

// Errors returned by generation and by launches. Match them with errors.Is.
var (
	ErrMalformedSignature     = kernel.ErrMalformedSignature
	ErrMissingReturnStatement = kernel.ErrMissingReturnStatement
	ErrBindingNameCollision   = kernel.ErrBindingNameCollision
	ErrAlreadyRebound         = kernel.ErrAlreadyRebound
	ErrUnsupportedReturn      = kernel.ErrUnsupportedReturn
	ErrConflictingMarkers     = marker.ErrConflictingMarkers
	ErrMisplacedMarker        = marker.ErrMisplacedMarker

	ErrDeviceAcquisitionFailed = device.ErrDeviceAcquisitionFailed
	ErrShaderResourceNotFound  = device.ErrShaderResourceNotFound
	ErrInvalidBinding          = device.ErrInvalidBinding
	ErrReleased                = device.ErrReleased
)
