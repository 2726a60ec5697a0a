package tensor

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubBackend satisfies Backend for creation tests that never dispatch ops.
type stubBackend struct{ Backend }

func (stubBackend) Device() Device { return CPU }
func (stubBackend) Name() string   { return "stub" }

func TestShape_NumElementsAndStrides(t *testing.T) {
	s := Shape{2, 3, 4}
	assert.Equal(t, 24, s.NumElements())
	assert.Equal(t, []int{12, 4, 1}, s.ComputeStrides())
	assert.Equal(t, "(2,3,4)", s.String())
	assert.Equal(t, 1, Shape{}.NumElements())
}

func TestShape_Validate(t *testing.T) {
	require.NoError(t, Shape{1, 64, 64}.Validate())
	assert.Error(t, Shape{1, 0, 64}.Validate())
	assert.Error(t, Shape{-1}.Validate())
}

func TestBroadcastShapes(t *testing.T) {
	tests := []struct {
		name      string
		a, b      Shape
		want      Shape
		broadcast bool
		wantErr   bool
	}{
		{"same", Shape{3, 5}, Shape{3, 5}, Shape{3, 5}, false, false},
		{"column", Shape{3, 1}, Shape{3, 5}, Shape{3, 5}, true, false},
		{"bias4d", Shape{2, 16, 8, 8}, Shape{1, 16, 1, 1}, Shape{2, 16, 8, 8}, true, false},
		{"rank", Shape{5}, Shape{3, 5}, Shape{3, 5}, true, false},
		{"incompatible", Shape{3, 4}, Shape{3, 5}, nil, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, broadcast, err := BroadcastShapes(tt.a, tt.b)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Equal(tt.want), "got %v want %v", got, tt.want)
			assert.Equal(t, tt.broadcast, broadcast)
		})
	}
}

func TestFromSlice(t *testing.T) {
	b := stubBackend{}
	x, err := FromSlice([]float32{1, 2, 3, 4, 5, 6}, Shape{2, 3}, b)
	require.NoError(t, err)
	assert.Equal(t, float32(6), x.At(1, 2))
	assert.Equal(t, float32(2), x.At(0, 1))

	_, err = FromSlice([]float32{1, 2}, Shape{3}, b)
	assert.Error(t, err)

	labels, err := FromSlice([]int32{0, 2}, Shape{2}, b)
	require.NoError(t, err)
	assert.Equal(t, Int32, labels.DType())
	assert.Equal(t, []int32{0, 2}, labels.Data())
}

func TestRawTensor_WithShapeSharesData(t *testing.T) {
	raw := MustNewRaw(Shape{2, 3}, Float32, CPU)
	view, err := raw.WithShape(Shape{6})
	require.NoError(t, err)
	view.AsFloat32()[4] = 7
	assert.Equal(t, float32(7), raw.AsFloat32()[4])

	_, err = raw.WithShape(Shape{4})
	assert.Error(t, err)
}

func TestRawTensor_CloneIsDeep(t *testing.T) {
	raw := MustNewRaw(Shape{3}, Float32, CPU)
	c := raw.Clone()
	c.AsFloat32()[0] = 1
	assert.Equal(t, float32(0), raw.AsFloat32()[0])
}

func TestRandomCreationIsSeeded(t *testing.T) {
	b := stubBackend{}
	a := Randn(Shape{5, 5}, rand.New(rand.NewSource(7)), b)
	c := Randn(Shape{5, 5}, rand.New(rand.NewSource(7)), b)
	assert.Equal(t, a.Data(), c.Data())

	u := Uniform(Shape{100}, -0.5, 0.5, rand.New(rand.NewSource(1)), b)
	for _, v := range u.Data() {
		assert.GreaterOrEqual(t, v, float32(-0.5))
		assert.Less(t, v, float32(0.5))
	}
}

func TestParseDevice(t *testing.T) {
	d, err := ParseDevice("CPU")
	require.NoError(t, err)
	assert.Equal(t, CPU, d)

	_, err = ParseDevice("cuda")
	assert.Error(t, err)
}
