package device

import (
	"encoding/binary"
	"fmt"
	"reflect"

	"github.com/pkg/errors"
)

// Direction tells whether a binding is uploaded or read back.
type Direction int

// Binding directions.
const (
	Input Direction = iota
	Output
)

// String returns "in" or "out".
func (d Direction) String() string {
	if d == Output {
		return "out"
	}
	return "in"
}

// Binding is one storage slot of a dispatch. Slot i of a launch is
// @group(0) @binding(i) of the kernel. Values are encoded little-endian with
// the layout of encoding/binary, so only fixed-size values and slices of
// them can be bound.
type Binding struct {
	Direction Direction
	Type      DataType

	// Data holds the encoded input, or the read-back buffer of an output.
	// Drivers fill output Data before Wait returns.
	Data []byte

	target any
	err    error
}

// In binds v as a kernel input.
func In[T any](v T) *Binding {
	b := &Binding{Direction: Input, Type: dataTypeOf(v)}
	if binary.Size(v) <= 0 {
		b.err = errors.Wrapf(ErrInvalidBinding, "input of type %T has no fixed size", v)
		return b
	}
	data, err := binary.Append(nil, binary.LittleEndian, v)
	if err != nil {
		b.err = errors.Wrapf(ErrInvalidBinding, "encoding input of type %T: %v", v, err)
		return b
	}
	b.Data = data
	return b
}

// Out binds p as a kernel output. After a successful launch *p holds the
// value the kernel wrote. Slice outputs must be sized by the caller; their
// length fixes the size of the device buffer.
func Out[T any](p *T) *Binding {
	b := &Binding{Direction: Output, Type: dataTypeOf(p)}
	if p == nil {
		b.err = errors.Wrap(ErrInvalidBinding, "nil output")
		return b
	}
	target := any(p)
	if v := reflect.ValueOf(p).Elem(); v.Kind() == reflect.Slice {
		target = v.Interface()
	}
	size := binary.Size(target)
	if size <= 0 {
		b.err = errors.Wrapf(ErrInvalidBinding, "output of type %T has no fixed size", p)
		return b
	}
	b.Data = make([]byte, size)
	b.target = target
	return b
}

// Err reports a binding that could not be built.
func (b *Binding) Err() error {
	return b.err
}

// Size is the encoded size in bytes.
func (b *Binding) Size() int {
	return len(b.Data)
}

// readBack decodes Data into the output target.
func (b *Binding) readBack() error {
	if b.Direction != Output || b.target == nil {
		return nil
	}
	if _, err := binary.Decode(b.Data, binary.LittleEndian, b.target); err != nil {
		return errors.Wrapf(err, "decoding %s output", b.Type)
	}
	return nil
}

func validate(bindings []*Binding) error {
	for i, b := range bindings {
		if b == nil {
			return fmt.Errorf("%w: binding %d is nil", ErrInvalidBinding, i)
		}
		if b.err != nil {
			return errors.Wrapf(b.err, "binding %d", i)
		}
	}
	return nil
}

// Slot describes one storage slot of a pipeline.
type Slot struct {
	Binding   uint32
	Direction Direction
	Type      DataType
	Size      int
}

// BindingLayout lists the slots of a pipeline in binding order. A kernel
// without bindings has an empty layout.
type BindingLayout []Slot

// LayoutOf derives the layout of a launch from its bindings.
func LayoutOf(bindings []*Binding) BindingLayout {
	layout := make(BindingLayout, len(bindings))
	for i, b := range bindings {
		layout[i] = Slot{
			Binding:   uint32(i), //nolint:gosec // G115: binding count is small
			Direction: b.Direction,
			Type:      b.Type,
			Size:      b.Size(),
		}
	}
	return layout
}

// Outputs counts the output slots.
func (l BindingLayout) Outputs() int {
	n := 0
	for _, s := range l {
		if s.Direction == Output {
			n++
		}
	}
	return n
}
