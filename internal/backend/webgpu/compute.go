//go:build windows

package webgpu

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/go-webgpu/webgpu/wgpu"

	"github.com/born-ml/gpgpu/internal/device"
)

// fenceSize is the size of the buffer mapped to await a dispatch without
// outputs.
const fenceSize = 4

type shaderModule struct {
	module *wgpu.ShaderModule
}

func (m *shaderModule) Release() {
	if m.module != nil {
		m.module.Release()
		m.module = nil
	}
}

type computePipeline struct {
	pipeline *wgpu.ComputePipeline
	layout   device.BindingLayout
}

func (p *computePipeline) Release() {
	if p.pipeline != nil {
		p.pipeline.Release()
		p.pipeline = nil
	}
}

// submission keeps the buffers of an enqueued dispatch alive until Wait.
type submission struct {
	bindings  []*device.Binding
	buffers   []*wgpu.Buffer
	staging   []*wgpu.Buffer // by binding index, nil for inputs
	fence     *wgpu.Buffer
	bindGroup *wgpu.BindGroup
}

func (s *submission) Release() {
	for _, buf := range s.buffers {
		buf.Release()
	}
	for _, buf := range s.staging {
		if buf != nil {
			buf.Release()
		}
	}
	if s.fence != nil {
		s.fence.Release()
	}
	if s.bindGroup != nil {
		s.bindGroup.Release()
	}
	*s = submission{}
}

// alignedSize rounds n up to the 4-byte granularity of buffer copies.
func alignedSize(n int) uint64 {
	//nolint:gosec // G115: sizes are non-negative
	return (uint64(n) + 3) &^ 3
}

// CompileModule compiles WGSL source into a shader module.
func (d *Device) CompileModule(code []byte) (m device.Module, err error) {
	defer guard("compiling shader module", &err)
	module := d.device.CreateShaderModuleWGSL(string(code))
	if module == nil {
		return nil, errors.New("webgpu: shader module compilation failed")
	}
	return &shaderModule{module: module}, nil
}

// CreatePipeline creates a compute pipeline with auto layout. Its group 0 is
// derived from the module and must declare one storage buffer per slot of
// layout.
func (d *Device) CreatePipeline(m device.Module, entryPoint string, layout device.BindingLayout) (p device.Pipeline, err error) {
	defer guard("creating pipeline", &err)
	sm, ok := m.(*shaderModule)
	if !ok || sm.module == nil {
		return nil, errors.New("webgpu: module was not compiled by this device")
	}
	pipeline := d.device.CreateComputePipelineSimple(nil, sm.module, entryPoint)
	if pipeline == nil {
		return nil, fmt.Errorf("webgpu: no compute entry point %q", entryPoint)
	}
	return &computePipeline{pipeline: pipeline, layout: layout}, nil
}

// Submit uploads the bindings, encodes one compute pass followed by the
// copies of the outputs into staging buffers, and submits it.
func (d *Device) Submit(p device.Pipeline, bindings []*device.Binding, extent device.Extent) (s device.Submission, err error) {
	sub := &submission{bindings: bindings, staging: make([]*wgpu.Buffer, len(bindings))}
	defer releaseOnError(sub, &err)
	defer guard("submitting dispatch", &err)

	cp, ok := p.(*computePipeline)
	if !ok || cp.pipeline == nil {
		return nil, errors.New("webgpu: pipeline was not created by this device")
	}
	if len(bindings) != len(cp.layout) {
		return nil, fmt.Errorf("webgpu: %d bindings for a layout of %d slots", len(bindings), len(cp.layout))
	}

	entries := make([]wgpu.BindGroupEntry, 0, len(bindings))
	for i, b := range bindings {
		size := alignedSize(b.Size())
		var buffer *wgpu.Buffer
		if b.Direction == device.Input {
			buffer = d.createBuffer(b.Data, size, wgpu.BufferUsageStorage|wgpu.BufferUsageCopySrc)
			sub.buffers = append(sub.buffers, buffer)
		} else {
			buffer = d.device.CreateBuffer(&wgpu.BufferDescriptor{
				Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst,
				Size:  size,
			})
			sub.buffers = append(sub.buffers, buffer)
			sub.staging[i] = d.device.CreateBuffer(&wgpu.BufferDescriptor{
				Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
				Size:  size,
			})
		}
		//nolint:gosec // G115: binding index is small
		entries = append(entries, wgpu.BufferBindingEntry(uint32(i), buffer, 0, size))
	}
	if len(entries) > 0 {
		sub.bindGroup = d.device.CreateBindGroupSimple(cp.pipeline.GetBindGroupLayout(0), entries)
	}

	encoder := d.device.CreateCommandEncoder(nil)
	computePass := encoder.BeginComputePass(nil)
	computePass.SetPipeline(cp.pipeline)
	if sub.bindGroup != nil {
		computePass.SetBindGroup(0, sub.bindGroup, nil)
	}
	computePass.DispatchWorkgroups(extent.X, extent.Y, extent.Z)
	computePass.End()

	for i, staging := range sub.staging {
		if staging != nil {
			encoder.CopyBufferToBuffer(sub.buffers[i], 0, staging, 0, alignedSize(bindings[i].Size()))
		}
	}
	if cp.layout.Outputs() == 0 {
		// Nothing to read back: map a fence copied after the pass instead.
		src := d.createBuffer(make([]byte, fenceSize), fenceSize, wgpu.BufferUsageCopySrc)
		sub.buffers = append(sub.buffers, src)
		sub.fence = d.device.CreateBuffer(&wgpu.BufferDescriptor{
			Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
			Size:  fenceSize,
		})
		encoder.CopyBufferToBuffer(src, 0, sub.fence, 0, fenceSize)
	}

	cmdBuffer := encoder.Finish(nil)
	d.queue.Submit(cmdBuffer)
	return sub, nil
}

// Wait maps the staging buffers, which blocks until the dispatch has
// completed, and copies the outputs into their bindings.
func (d *Device) Wait(s device.Submission) (err error) {
	defer guard("waiting for dispatch", &err)
	sub, ok := s.(*submission)
	if !ok {
		return errors.New("webgpu: submission was not made by this device")
	}
	if sub.fence != nil {
		if _, err := d.readBuffer(sub.fence, fenceSize); err != nil {
			return err
		}
	}
	for i, staging := range sub.staging {
		if staging == nil {
			continue
		}
		b := sub.bindings[i]
		data, err := d.readBuffer(staging, alignedSize(b.Size()))
		if err != nil {
			return fmt.Errorf("webgpu: reading binding %d: %w", i, err)
		}
		copy(b.Data, data)
	}
	return nil
}

// createBuffer creates a GPU buffer of size bytes holding data.
func (d *Device) createBuffer(data []byte, size uint64, usage wgpu.BufferUsage) *wgpu.Buffer {
	buffer := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            usage,
		Size:             size,
		MappedAtCreation: wgpu.True,
	})

	mappedPtr := buffer.GetMappedRange(0, size)
	//nolint:gosec // unsafe.Slice for zero-copy conversion from unsafe.Pointer
	mappedSlice := unsafe.Slice((*byte)(mappedPtr), size)
	copy(mappedSlice, data)
	buffer.Unmap()

	return buffer
}

// readBuffer maps a staging buffer and copies its contents out.
func (d *Device) readBuffer(staging *wgpu.Buffer, size uint64) ([]byte, error) {
	if err := staging.MapAsync(d.device, wgpu.MapModeRead, 0, size); err != nil {
		return nil, fmt.Errorf("failed to map staging buffer: %w", err)
	}

	mappedPtr := staging.GetMappedRange(0, size)
	//nolint:gosec // unsafe.Slice for zero-copy conversion from unsafe.Pointer
	mappedSlice := unsafe.Slice((*byte)(mappedPtr), size)
	result := make([]byte, size)
	copy(result, mappedSlice)

	staging.Unmap()
	return result, nil
}
