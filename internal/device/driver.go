// Package device runs compiled kernels on a compute device.
//
// A Context owns at most one device per process. It acquires the device
// lazily through a Driver, and every launch holds the context lock from
// acquisition through module compilation, submission and completion, so
// dispatches never interleave.
package device

// Driver opens compute devices. Implementations wrap a graphics API such as
// WebGPU; MockDriver runs without one.
type Driver interface {
	RequestDevice() (Device, error)
}

// Device is an opened adapter with its queue.
type Device interface {
	// Name describes the adapter.
	Name() string

	// CompileModule turns a module binary into a shader module.
	CompileModule(code []byte) (Module, error)

	// CreatePipeline builds a compute pipeline for entryPoint of m whose
	// group 0 matches layout.
	CreatePipeline(m Module, entryPoint string, layout BindingLayout) (Pipeline, error)

	// Submit uploads the input bindings and enqueues one dispatch.
	Submit(p Pipeline, bindings []*Binding, extent Extent) (Submission, error)

	// Wait blocks until s completes and fills the Data of its output
	// bindings.
	Wait(s Submission) error

	Release()
}

// Module is a compiled shader module.
type Module interface {
	Release()
}

// Pipeline is a compute pipeline bound to one entry point.
type Pipeline interface {
	Release()
}

// Submission is an enqueued dispatch and the buffers it uses.
type Submission interface {
	Release()
}

// CompiledKernel is the module and pipeline built for one launch.
type CompiledKernel struct {
	EntryPoint string
	Module     Module
	Layout     BindingLayout
	Pipeline   Pipeline
}

// Release frees the pipeline and the module.
func (k *CompiledKernel) Release() {
	if k.Pipeline != nil {
		k.Pipeline.Release()
		k.Pipeline = nil
	}
	if k.Module != nil {
		k.Module.Release()
		k.Module = nil
	}
}
