// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package gpgpu lets one Go function run both on the host CPU and as a
// compute kernel on a GPU.
//
// # Overview
//
// Functions are written once, as ordinary Go, and marked with directive
// comments:
//   - //gpgpu:kernel marks a function that runs on the device. Adding
//     "async" (//gpgpu:kernel async) is accepted; the call still blocks.
//   - //gpgpu:host marks declarations that only exist in the host build.
//   - //gpgpu:entry marks the program's startup function.
//
// The gpgpu command (cmd/gpgpu) turns such a file into one of two builds:
//   - the host build, where every kernel becomes a stub that dispatches the
//     device entry of the same name and a mirror, name__cpu, that runs the
//     original body on the CPU;
//   - the device build, where every kernel becomes a compute entry whose
//     parameters are Input bindings and whose result is written through an
//     extra Output binding named output.
//
// The device build is compiled to a WGSL module by a separate compiler. At
// run time the host build reads that module from the file named by the
// GPGPU_KERNEL_MODULE environment variable.
//
// # Basic Usage
//
//	//gpgpu:kernel
//	func calculate(value float32) float32 {
//	    return value * 2
//	}
//
//	//gpgpu:entry
//	func main() {
//	    fmt.Println(calculate(21))
//	}
//
// Generate both builds:
//
//	gpgpu -target host -o build/host calculate.go
//	gpgpu -target device -o build/device calculate.go
//
// In the host build, calculate becomes:
//
//	func calculate(value float32) float32 {
//	    var output float32
//	    gpgpuRuntime.MustLaunch("calculate", gpgpu.In(value), gpgpu.Out(&output))
//	    return output
//	}
//
// and in the device build:
//
//	//gpgpu:compute
//	func calculate(value gpgpu.Input[float32], output gpgpu.Output[float32]) {
//	    *output = value * 2
//	}
//
// # Bindings
//
// Binding i of a kernel is @group(0) @binding(i) of its module, in parameter
// order, with the output last. Values are encoded little-endian; float32,
// float16 (github.com/x448/float16), int32, uint32, fixed-size structs and
// slices of them are supported.
//
// # Thread Safety
//
// A Runtime owns at most one device. Launches from any number of goroutines
// are serialized; each blocks until its dispatch has completed.
package gpgpu
