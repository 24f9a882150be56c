package tensor_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convkg-ml/convkg/internal/tensor"
)

func TestShape_NumElements(t *testing.T) {
	assert.Equal(t, 24, tensor.Shape{2, 3, 4}.NumElements())
	assert.Equal(t, 1, tensor.Shape{}.NumElements(), "scalar shape has one element")
}

func TestShape_Equal(t *testing.T) {
	assert.True(t, tensor.Shape{2, 3}.Equal(tensor.Shape{2, 3}))
	assert.False(t, tensor.Shape{2, 3}.Equal(tensor.Shape{3, 2}))
	assert.False(t, tensor.Shape{2, 3}.Equal(tensor.Shape{2, 3, 1}))
}

func TestFromSlice_CountMismatch(t *testing.T) {
	_, err := tensor.FromSlice([]float32{1, 2, 3}, tensor.Shape{2, 2})
	assert.Error(t, err)
}

func TestFromSlice_CopiesData(t *testing.T) {
	src := []float32{1, 2, 3, 4}
	tt, err := tensor.FromSlice(src, tensor.Shape{2, 2})
	require.NoError(t, err)

	src[0] = 99
	assert.Equal(t, float32(1), tt.At(0, 0), "tensor must not alias the source slice")
}

func TestTensor_AtSet(t *testing.T) {
	tt := tensor.New(tensor.Shape{2, 3})
	tt.Set(7, 1, 2)
	assert.Equal(t, float32(7), tt.At(1, 2))
	assert.Panics(t, func() { tt.At(2, 0) }, "row out of range")
	assert.Panics(t, func() { tt.At(0) }, "wrong index count")
}

func TestTensor_Item(t *testing.T) {
	tt := tensor.Full(tensor.Shape{1}, 3.5)
	assert.Equal(t, float32(3.5), tt.Item())
	assert.Panics(t, func() { tensor.New(tensor.Shape{2}).Item() })
}

func TestTensor_ReshapeSharesData(t *testing.T) {
	tt, err := tensor.FromSlice([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	require.NoError(t, err)

	r := tt.Reshape(3, 2)
	r.Set(42, 0, 1)
	assert.Equal(t, float32(42), tt.At(0, 1), "reshape must share the backing data")

	assert.Panics(t, func() { tt.Reshape(4, 2) }, "element count mismatch")
}

func TestTensor_Clone(t *testing.T) {
	tt := tensor.Full(tensor.Shape{2, 2}, 1)
	c := tt.Clone()
	c.Set(5, 0, 0)
	assert.Equal(t, float32(1), tt.At(0, 0))
}

func TestAdd(t *testing.T) {
	a, _ := tensor.FromSlice([]float32{1, 2}, tensor.Shape{2})
	b, _ := tensor.FromSlice([]float32{3, 4}, tensor.Shape{2})
	sum := tensor.Add(a, b)
	assert.Equal(t, []float32{4, 6}, sum.Data())

	assert.Panics(t, func() { tensor.Add(a, tensor.New(tensor.Shape{3})) })
}

func TestAddInPlace(t *testing.T) {
	a, _ := tensor.FromSlice([]float32{1, 2}, tensor.Shape{2})
	b, _ := tensor.FromSlice([]float32{3, 4}, tensor.Shape{2})
	tensor.AddInPlace(a, b)
	assert.Equal(t, []float32{4, 6}, a.Data())
}

func TestMatMul(t *testing.T) {
	a, _ := tensor.FromSlice([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	b, _ := tensor.FromSlice([]float32{7, 8, 9, 10, 11, 12}, tensor.Shape{3, 2})

	out := tensor.MatMul(a, b)
	assert.Equal(t, tensor.Shape{2, 2}, out.Shape())
	assert.Equal(t, []float32{58, 64, 139, 154}, out.Data())

	assert.Panics(t, func() { tensor.MatMul(a, a) }, "inner dimension mismatch")
}

func TestMatMulT(t *testing.T) {
	a, _ := tensor.FromSlice([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	b, _ := tensor.FromSlice([]float32{1, 0, 1, 0, 1, 0}, tensor.Shape{2, 3})

	// a @ bᵀ without materializing the transpose.
	out := tensor.MatMulT(a, b)
	assert.Equal(t, tensor.Shape{2, 2}, out.Shape())
	assert.Equal(t, []float32{4, 2, 10, 5}, out.Data())
}

func TestTMatMul(t *testing.T) {
	a, _ := tensor.FromSlice([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	eye, _ := tensor.FromSlice([]float32{1, 0, 0, 1}, tensor.Shape{2, 2})

	// aᵀ @ I = aᵀ.
	out := tensor.TMatMul(a, eye)
	assert.Equal(t, tensor.Shape{3, 2}, out.Shape())
	assert.Equal(t, []float32{1, 4, 2, 5, 3, 6}, out.Data())
}

func TestMatMul_AgreesWithMatMulT(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	a := tensor.Randn(tensor.Shape{5, 4}, rng)
	b := tensor.Randn(tensor.Shape{4, 6}, rng)

	bt := tensor.New(tensor.Shape{6, 4})
	for i := 0; i < 4; i++ {
		for j := 0; j < 6; j++ {
			bt.Set(b.At(i, j), j, i)
		}
	}

	want := tensor.MatMul(a, b)
	got := tensor.MatMulT(a, bt)
	for i, v := range want.Data() {
		assert.InDelta(t, v, got.Data()[i], 1e-5)
	}
}

func TestSigmoid(t *testing.T) {
	x, _ := tensor.FromSlice([]float32{0, 100, -100}, tensor.Shape{3})
	out := tensor.Sigmoid(x)
	assert.InDelta(t, 0.5, out.Data()[0], 1e-6)
	assert.InDelta(t, 1.0, out.Data()[1], 1e-6)
	assert.InDelta(t, 0.0, out.Data()[2], 1e-6)
}

func TestNew_InvalidShape(t *testing.T) {
	assert.Panics(t, func() { tensor.New(tensor.Shape{2, 0}) })
	assert.Panics(t, func() { tensor.New(tensor.Shape{-1}) })
}
