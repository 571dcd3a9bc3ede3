package device

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
)

func TestIn(t *testing.T) {
	b := In(float32(1.5))
	require.NoError(t, b.Err())
	assert.Equal(t, Input, b.Direction)
	assert.Equal(t, Float32, b.Type)
	assert.Equal(t, math.Float32bits(1.5), binary.LittleEndian.Uint32(b.Data))

	b = In([]int32{1, -1})
	require.NoError(t, b.Err())
	assert.Equal(t, Int32, b.Type)
	assert.Equal(t, 8, b.Size())
	assert.Equal(t, uint32(0xFFFFFFFF), binary.LittleEndian.Uint32(b.Data[4:]))

	b = In([4]uint32{})
	assert.Equal(t, Uint32, b.Type)
	assert.Equal(t, 16, b.Size())
}

func TestIn_Opaque(t *testing.T) {
	type params struct {
		Scale float32
		Count uint32
	}
	b := In(params{Scale: 2, Count: 7})
	require.NoError(t, b.Err())
	assert.Equal(t, Opaque, b.Type)
	assert.Equal(t, 8, b.Size())
	assert.Equal(t, uint32(7), binary.LittleEndian.Uint32(b.Data[4:]))
}

func TestIn_Invalid(t *testing.T) {
	assert.ErrorIs(t, In(42).Err(), ErrInvalidBinding)
	assert.ErrorIs(t, In("text").Err(), ErrInvalidBinding)
	assert.ErrorIs(t, In([]float32{}).Err(), ErrInvalidBinding)
}

func TestOut(t *testing.T) {
	var x float32
	b := Out(&x)
	require.NoError(t, b.Err())
	assert.Equal(t, Output, b.Direction)
	assert.Equal(t, Float32, b.Type)
	require.Equal(t, 4, b.Size())

	binary.LittleEndian.PutUint32(b.Data, math.Float32bits(3.25))
	require.NoError(t, b.readBack())
	assert.Equal(t, float32(3.25), x)
}

func TestOut_Slice(t *testing.T) {
	values := make([]int32, 3)
	b := Out(&values)
	require.NoError(t, b.Err())
	assert.Equal(t, Int32, b.Type)
	require.Equal(t, 12, b.Size())

	for i := range 3 {
		binary.LittleEndian.PutUint32(b.Data[4*i:], uint32(10*(i+1))) //nolint:gosec // small test values
	}
	require.NoError(t, b.readBack())
	assert.Equal(t, []int32{10, 20, 30}, values)
}

func TestOut_Invalid(t *testing.T) {
	assert.ErrorIs(t, Out[float32](nil).Err(), ErrInvalidBinding)

	var empty []float32
	assert.ErrorIs(t, Out(&empty).Err(), ErrInvalidBinding)

	var n int
	assert.ErrorIs(t, Out(&n).Err(), ErrInvalidBinding)
}

func TestFloat16RoundTrip(t *testing.T) {
	in := In(float16.Fromfloat32(1.5))
	require.NoError(t, in.Err())
	assert.Equal(t, Float16, in.Type)
	require.Equal(t, 2, in.Size())

	var h float16.Float16
	out := Out(&h)
	require.NoError(t, out.Err())
	assert.Equal(t, Float16, out.Type)

	copy(out.Data, in.Data)
	require.NoError(t, out.readBack())
	assert.Equal(t, float32(1.5), h.Float32())

	halves := []float16.Float16{float16.Fromfloat32(-2), float16.Fromfloat32(0.25)}
	in = In(halves)
	assert.Equal(t, 4, in.Size())
	back := make([]float16.Float16, 2)
	out = Out(&back)
	copy(out.Data, in.Data)
	require.NoError(t, out.readBack())
	assert.Equal(t, halves, back)
}

func TestLayoutOf(t *testing.T) {
	var out float32
	layout := LayoutOf([]*Binding{In(float32(1)), In([]uint32{1, 2}), Out(&out)})
	assert.Equal(t, BindingLayout{
		{Binding: 0, Direction: Input, Type: Float32, Size: 4},
		{Binding: 1, Direction: Input, Type: Uint32, Size: 8},
		{Binding: 2, Direction: Output, Type: Float32, Size: 4},
	}, layout)
	assert.Equal(t, 1, layout.Outputs())

	assert.Empty(t, LayoutOf(nil))
	assert.Equal(t, 0, LayoutOf(nil).Outputs())
}

func TestDataType(t *testing.T) {
	tests := []struct {
		dt   DataType
		name string
		size int
	}{
		{Float32, "f32", 4},
		{Float16, "f16", 2},
		{Int32, "i32", 4},
		{Uint32, "u32", 4},
		{Opaque, "opaque", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.dt.String())
			assert.Equal(t, tt.size, tt.dt.Size())
		})
	}
	assert.Equal(t, "in", Input.String())
	assert.Equal(t, "out", Output.String())
}
