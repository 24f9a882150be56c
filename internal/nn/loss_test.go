package nn_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convkg-ml/convkg/internal/nn"
	"github.com/convkg-ml/convkg/internal/tensor"
)

func TestSmoothedTargets_Values(t *testing.T) {
	targets := nn.SmoothedTargets([][]int32{{0, 2}, {1}}, 4, 0.1)
	require.Equal(t, tensor.Shape{2, 4}, targets.Shape())

	base := float32(0.1) / 4
	hot := float32(1-0.1) + base
	assert.InDelta(t, hot, targets.At(0, 0), 1e-6)
	assert.InDelta(t, base, targets.At(0, 1), 1e-6)
	assert.InDelta(t, hot, targets.At(0, 2), 1e-6)
	assert.InDelta(t, base, targets.At(0, 3), 1e-6)
	assert.InDelta(t, hot, targets.At(1, 1), 1e-6)
}

func TestSmoothedTargets_RowMass(t *testing.T) {
	// A row with k true objects carries mass k*(1-s) + s.
	targets := nn.SmoothedTargets([][]int32{{0, 2, 5}}, 10, 0.1)
	var sum float64
	for _, v := range targets.Data() {
		sum += float64(v)
	}
	assert.InDelta(t, 3*0.9+0.1, sum, 1e-5)
}

func TestSmoothedTargets_ZeroSmoothing(t *testing.T) {
	targets := nn.SmoothedTargets([][]int32{{1}}, 3, 0)
	assert.Equal(t, []float32{0, 1, 0}, targets.Data())
}

func TestSmoothedTargets_FreshBufferPerBatch(t *testing.T) {
	full := nn.SmoothedTargets([][]int32{{0}, {1}, {2}}, 3, 0)
	short := nn.SmoothedTargets([][]int32{{0}}, 3, 0)

	require.Equal(t, tensor.Shape{1, 3}, short.Shape(), "sized to the actual batch")
	assert.NotSame(t, full, short)
	assert.Equal(t, []float32{1, 0, 0}, short.Data())
}

func TestSmoothedTargets_Panics(t *testing.T) {
	assert.Panics(t, func() { nn.SmoothedTargets([][]int32{{3}}, 3, 0.1) }, "object out of range")
	assert.Panics(t, func() { nn.SmoothedTargets([][]int32{{0}}, 3, 1.5) }, "smoothing above 1")
	assert.Panics(t, func() { nn.SmoothedTargets([][]int32{{0}}, 0, 0.1) }, "no entities")
}

func TestStableBCELoss_Forward(t *testing.T) {
	loss := nn.NewStableBCELoss()
	logits, _ := tensor.FromSlice([]float32{0, 0}, tensor.Shape{1, 2})
	targets, _ := tensor.FromSlice([]float32{0.5, 0.5}, tensor.Shape{1, 2})

	// At logits 0 every element costs log(2) regardless of target.
	out := loss.Forward(nil, logits, targets)
	assert.InDelta(t, 0.6931, out.Item(), 1e-4)
}
