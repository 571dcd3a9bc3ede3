package device

import (
	"errors"
	"sync"
	"time"
)

// Verify that MockDriver implements Driver.
var _ Driver = (*MockDriver)(nil)

// EventKind is a driver call recorded by MockDriver.
type EventKind int

// Recorded driver calls.
const (
	EventSubmit EventKind = iota
	EventWait
)

// String returns "submit" or "wait".
func (k EventKind) String() string {
	if k == EventWait {
		return "wait"
	}
	return "submit"
}

// Event is one recorded Submit or Wait with its entry and exit times.
type Event struct {
	Kind       EventKind
	EntryPoint string
	Enter      time.Time
	Exit       time.Time
}

// MockDriver is an instrumented in-memory driver for tests and for running
// without a GPU. It records every Submit and Wait and runs OnDispatch in
// place of the kernel.
type MockDriver struct {
	// Delay is slept inside every Submit and Wait.
	Delay time.Duration

	// FailAcquire makes RequestDevice fail with it.
	FailAcquire error

	// OnDispatch runs during Wait. It plays the kernel: it reads input Data
	// and fills output Data.
	OnDispatch func(entryPoint string, bindings []*Binding) error

	mu           sync.Mutex
	events       []Event
	modules      [][]byte
	acquisitions int
	live         int
}

// NewMockDriver creates a new MockDriver.
func NewMockDriver() *MockDriver {
	return &MockDriver{}
}

// RequestDevice returns a mock device.
func (d *MockDriver) RequestDevice() (Device, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FailAcquire != nil {
		return nil, d.FailAcquire
	}
	d.acquisitions++
	d.live++
	return &mockDevice{driver: d}, nil
}

// Events returns a copy of the recorded calls in call order.
func (d *MockDriver) Events() []Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Event(nil), d.events...)
}

// Modules returns every module binary compiled so far.
func (d *MockDriver) Modules() [][]byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([][]byte(nil), d.modules...)
}

// Acquisitions counts successful RequestDevice calls.
func (d *MockDriver) Acquisitions() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.acquisitions
}

// Live counts devices, modules, pipelines and submissions not yet released.
func (d *MockDriver) Live() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.live
}

func (d *MockDriver) record(kind EventKind, entryPoint string, enter time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, Event{Kind: kind, EntryPoint: entryPoint, Enter: enter, Exit: time.Now()})
}

func (d *MockDriver) alloc() {
	d.mu.Lock()
	d.live++
	d.mu.Unlock()
}

func (d *MockDriver) free() {
	d.mu.Lock()
	d.live--
	d.mu.Unlock()
}

type mockDevice struct {
	driver   *MockDriver
	released bool
}

type mockObject struct {
	driver   *MockDriver
	released bool
}

func (o *mockObject) Release() {
	if o.released {
		return
	}
	o.released = true
	o.driver.free()
}

type mockPipeline struct {
	mockObject
	entryPoint string
	layout     BindingLayout
}

type mockSubmission struct {
	mockObject
	pipeline *mockPipeline
	bindings []*Binding
}

func (m *mockDevice) Name() string {
	return "mock"
}

func (m *mockDevice) CompileModule(code []byte) (Module, error) {
	if len(code) == 0 {
		return nil, errors.New("mock: empty module")
	}
	m.driver.mu.Lock()
	m.driver.modules = append(m.driver.modules, append([]byte(nil), code...))
	m.driver.mu.Unlock()
	m.driver.alloc()
	return &mockObject{driver: m.driver}, nil
}

func (m *mockDevice) CreatePipeline(_ Module, entryPoint string, layout BindingLayout) (Pipeline, error) {
	m.driver.alloc()
	return &mockPipeline{mockObject: mockObject{driver: m.driver}, entryPoint: entryPoint, layout: layout}, nil
}

func (m *mockDevice) Submit(p Pipeline, bindings []*Binding, _ Extent) (Submission, error) {
	enter := time.Now()
	pipeline, ok := p.(*mockPipeline)
	if !ok {
		return nil, errors.New("mock: foreign pipeline")
	}
	if len(bindings) != len(pipeline.layout) {
		return nil, errors.New("mock: bindings do not match the pipeline layout")
	}
	time.Sleep(m.driver.Delay)
	m.driver.alloc()
	m.driver.record(EventSubmit, pipeline.entryPoint, enter)
	return &mockSubmission{mockObject: mockObject{driver: m.driver}, pipeline: pipeline, bindings: bindings}, nil
}

func (m *mockDevice) Wait(s Submission) error {
	enter := time.Now()
	sub, ok := s.(*mockSubmission)
	if !ok {
		return errors.New("mock: foreign submission")
	}
	time.Sleep(m.driver.Delay)
	var err error
	if m.driver.OnDispatch != nil {
		err = m.driver.OnDispatch(sub.pipeline.entryPoint, sub.bindings)
	}
	m.driver.record(EventWait, sub.pipeline.entryPoint, enter)
	return err
}

func (m *mockDevice) Release() {
	if m.released {
		return
	}
	m.released = true
	m.driver.free()
}
