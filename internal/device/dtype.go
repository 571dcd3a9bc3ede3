package device

import (
	"reflect"

	"github.com/x448/float16"
)

// DataType is the element type of a binding as the device sees it.
type DataType int

// Supported element types. Opaque covers fixed-size structs and other
// encodable values passed through byte for byte.
const (
	Float32 DataType = iota
	Float16
	Int32
	Uint32
	Opaque
)

// Size returns the byte size of one element, or 0 for Opaque.
func (dt DataType) Size() int {
	switch dt {
	case Float32, Int32, Uint32:
		return 4
	case Float16:
		return 2
	default:
		return 0
	}
}

// String returns the WGSL scalar name of the data type.
func (dt DataType) String() string {
	switch dt {
	case Float32:
		return "f32"
	case Float16:
		return "f16"
	case Int32:
		return "i32"
	case Uint32:
		return "u32"
	default:
		return "opaque"
	}
}

var (
	float32Type = reflect.TypeFor[float32]()
	float16Type = reflect.TypeFor[float16.Float16]()
	int32Type   = reflect.TypeFor[int32]()
	uint32Type  = reflect.TypeFor[uint32]()
)

// dataTypeOf infers the element type of v, looking through pointers, slices
// and arrays.
func dataTypeOf(v any) DataType {
	t := reflect.TypeOf(v)
	if t == nil {
		return Opaque
	}
	for t.Kind() == reflect.Pointer || t.Kind() == reflect.Slice || t.Kind() == reflect.Array {
		t = t.Elem()
	}
	switch t {
	case float32Type:
		return Float32
	case float16Type:
		return Float16
	case int32Type:
		return Int32
	case uint32Type:
		return Uint32
	default:
		return Opaque
	}
}
