package device

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// State is the lifecycle stage of a Context.
type State int32

// Context states.
const (
	Uninitialized State = iota
	Ready
	Dispatching
	Released
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Ready:
		return "ready"
	case Dispatching:
		return "dispatching"
	case Released:
		return "released"
	default:
		return "unknown"
	}
}

// Dispatch records one completed launch.
type Dispatch struct {
	ID          uuid.UUID
	EntryPoint  string
	Device      string
	Bindings    int
	ModuleBytes int
	Duration    time.Duration
}

// Context owns the compute device of a process. Create one with NewContext,
// initialize it once at startup and release it at exit. All methods are safe
// for concurrent use; launches are serialized.
type Context struct {
	mu     sync.Mutex
	state  atomic.Int32
	driver Driver
	config Config
	logger *zap.Logger
	device Device

	dispatches atomic.Uint64
}

// Option configures a Context.
type Option func(*Context)

// WithDriver sets the driver used to acquire the device.
func WithDriver(d Driver) Option {
	return func(c *Context) {
		c.driver = d
	}
}

// WithConfig sets the module lookup and dispatch configuration.
func WithConfig(cfg Config) Option {
	return func(c *Context) {
		c.config = cfg
	}
}

// WithLogger sets the logger; the package logger is used otherwise.
func WithLogger(l *zap.Logger) Option {
	return func(c *Context) {
		c.logger = l
	}
}

// NewContext returns an uninitialized context. No device is touched until the
// first Acquire.
func NewContext(opts ...Option) *Context {
	c := &Context{}
	for _, opt := range opts {
		opt(c)
	}
	c.config = c.config.withDefaults()
	if c.logger == nil {
		c.logger = Logger()
	}
	return c
}

// State reports the lifecycle stage without waiting for a running launch.
func (c *Context) State() State {
	return State(c.state.Load())
}

// Dispatches counts completed launches.
func (c *Context) Dispatches() uint64 {
	return c.dispatches.Load()
}

// Acquire locks the context and returns exclusive access to the device,
// acquiring it first if needed. The caller must Release the handle. On error
// the context is left unlocked.
func (c *Context) Acquire() (*Handle, error) {
	c.mu.Lock()
	if err := c.ensureDevice(); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	return &Handle{ctx: c}, nil
}

// ensureDevice must be called with mu held.
func (c *Context) ensureDevice() error {
	switch c.State() {
	case Released:
		return ErrReleased
	case Ready:
		return nil
	}
	if c.driver == nil {
		return fmt.Errorf("%w: no driver configured", ErrDeviceAcquisitionFailed)
	}
	dev, err := c.driver.RequestDevice()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDeviceAcquisitionFailed, err)
	}
	c.device = dev
	c.state.Store(int32(Ready))
	c.logger.Info("device acquired", zap.String("device", dev.Name()))
	return nil
}

// Launch dispatches entryPoint of the configured module with bindings and
// blocks until it completes. Outputs are copied back before it returns.
func (c *Context) Launch(entryPoint string, bindings ...*Binding) (*Dispatch, error) {
	h, err := c.Acquire()
	if err != nil {
		return nil, err
	}
	defer h.Release()
	return h.Launch(entryPoint, bindings...)
}

// MustLaunch is Launch for generated code: any failure panics.
func (c *Context) MustLaunch(entryPoint string, bindings ...*Binding) {
	if _, err := c.Launch(entryPoint, bindings...); err != nil {
		panic(errors.WithStack(err))
	}
}

// MustInit acquires the device now and returns c. It panics when the device
// cannot be acquired.
func (c *Context) MustInit() *Context {
	h, err := c.Acquire()
	if err != nil {
		panic(errors.WithStack(err))
	}
	h.Release()
	return c
}

// Release frees the device. It waits for a running launch; afterwards every
// launch fails with ErrReleased. Calling it again does nothing.
func (c *Context) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.State() == Released {
		return
	}
	if c.device != nil {
		c.device.Release()
		c.device = nil
	}
	c.state.Store(int32(Released))
	c.logger.Info("device released", zap.Uint64("dispatches", c.Dispatches()))
}

// Handle is exclusive access to an acquired device.
type Handle struct {
	ctx      *Context
	released bool
}

// Device returns the acquired device.
func (h *Handle) Device() Device {
	return h.ctx.device
}

// Release unlocks the context. Calling it again does nothing.
func (h *Handle) Release() {
	if h.released {
		return
	}
	h.released = true
	h.ctx.mu.Unlock()
}

// Launch dispatches while the handle is held.
func (h *Handle) Launch(entryPoint string, bindings ...*Binding) (*Dispatch, error) {
	if h.released {
		return nil, errors.New("device: launch on a released handle")
	}
	c := h.ctx
	if err := validate(bindings); err != nil {
		return nil, errors.Wrapf(err, "launching %s", entryPoint)
	}
	code, path, err := c.config.loadModule()
	if err != nil {
		return nil, errors.Wrapf(err, "launching %s", entryPoint)
	}

	c.state.Store(int32(Dispatching))
	defer c.state.Store(int32(Ready))

	start := time.Now()
	kernel, err := h.compile(code, path, entryPoint, LayoutOf(bindings))
	if err != nil {
		return nil, err
	}
	defer kernel.Release()

	dev := c.device
	sub, err := dev.Submit(kernel.Pipeline, bindings, c.config.Extent)
	if err != nil {
		return nil, errors.Wrapf(err, "submitting %s", entryPoint)
	}
	defer sub.Release()
	if err := dev.Wait(sub); err != nil {
		return nil, errors.Wrapf(err, "waiting for %s", entryPoint)
	}
	for i, b := range bindings {
		if err := b.readBack(); err != nil {
			return nil, errors.Wrapf(err, "%s binding %d", entryPoint, i)
		}
	}

	d := &Dispatch{
		ID:          uuid.New(),
		EntryPoint:  entryPoint,
		Device:      dev.Name(),
		Bindings:    len(bindings),
		ModuleBytes: len(code),
		Duration:    time.Since(start),
	}
	c.dispatches.Add(1)
	c.logger.Debug("kernel dispatched",
		zap.Stringer("id", d.ID),
		zap.String("entry_point", entryPoint),
		zap.Int("bindings", d.Bindings),
		zap.String("module", humanize.Bytes(uint64(d.ModuleBytes))), //nolint:gosec // G115: length is non-negative
		zap.Duration("duration", d.Duration))
	return d, nil
}

// compile builds a fresh module and pipeline for one launch.
func (h *Handle) compile(code []byte, path, entryPoint string, layout BindingLayout) (*CompiledKernel, error) {
	dev := h.ctx.device
	mod, err := dev.CompileModule(code)
	if err != nil {
		return nil, errors.Wrapf(err, "compiling module %s", path)
	}
	k := &CompiledKernel{EntryPoint: entryPoint, Module: mod, Layout: layout}
	k.Pipeline, err = dev.CreatePipeline(mod, entryPoint, layout)
	if err != nil {
		k.Release()
		return nil, errors.Wrapf(err, "creating pipeline for %s", entryPoint)
	}
	return k, nil
}
