package autodiff_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convkg-ml/convkg/internal/autodiff"
	"github.com/convkg-ml/convkg/internal/autodiff/ops"
	"github.com/convkg-ml/convkg/internal/tensor"
)

func TestTape_Recording(t *testing.T) {
	tape := autodiff.NewGradientTape()
	assert.False(t, tape.IsRecording(), "new tape must not record")

	tape.StartRecording()
	assert.True(t, tape.IsRecording())

	tape.StopRecording()
	assert.False(t, tape.IsRecording())
}

func TestTape_RecordsOnlyWhileRecording(t *testing.T) {
	tape := autodiff.NewGradientTape()
	x, _ := tensor.FromSlice([]float32{1, -1}, tensor.Shape{1, 2})

	ops.ReLU(tape, x)
	assert.Equal(t, 0, tape.NumOps(), "stopped tape must ignore ops")

	tape.StartRecording()
	ops.ReLU(tape, x)
	assert.Equal(t, 1, tape.NumOps())
}

func TestTape_ClearKeepsRecordingState(t *testing.T) {
	tape := autodiff.NewGradientTape()
	tape.StartRecording()
	x, _ := tensor.FromSlice([]float32{1, 2}, tensor.Shape{1, 2})
	ops.ReLU(tape, x)
	require.Equal(t, 1, tape.NumOps())

	tape.Clear()
	assert.Equal(t, 0, tape.NumOps())
	assert.True(t, tape.IsRecording(), "Clear keeps the recording state")
}

func TestBackward_EmptyTape(t *testing.T) {
	tape := autodiff.NewGradientTape()
	loss := tensor.Full(tensor.Shape{1}, 1)
	grads := tape.Backward(loss)
	assert.Empty(t, grads)
}

func TestBackward_ChainsThroughOps(t *testing.T) {
	tape := autodiff.NewGradientTape()
	tape.StartRecording()

	x, _ := tensor.FromSlice([]float32{2, -3}, tensor.Shape{1, 2})
	y := ops.ReLU(tape, x)

	grads := tape.Backward(y)
	require.Contains(t, grads, x)
	assert.Equal(t, []float32{1, 0}, grads[x].Data(), "gradient masked where input was negative")
}

// A tensor consumed by two operations must receive the sum of both
// gradients. The entity embedding matrix is the case that matters: it feeds
// the lookup and the scoring product of the same forward pass.
func TestBackward_AccumulatesSharedTensor(t *testing.T) {
	tape := autodiff.NewGradientTape()
	tape.StartRecording()

	weight, _ := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{2, 2})
	looked := ops.Embedding(tape, weight, []int32{0}) // [1, 2] = [1 2]
	out := ops.Dense(tape, looked, weight, nil)       // [1 2] @ weightᵀ

	grads := tape.Backward(out)
	require.Contains(t, grads, weight)

	// Dense contributes gradW = [[1 2] [1 2]]; the lookup scatters
	// gradX = [1 1] @ weight = [4 6] onto row 0.
	assert.Equal(t, []float32{5, 8, 1, 2}, grads[weight].Data())
}

func TestBackward_DoesNotRecordItself(t *testing.T) {
	tape := autodiff.NewGradientTape()
	tape.StartRecording()

	x, _ := tensor.FromSlice([]float32{1, 2}, tensor.Shape{1, 2})
	y := ops.ReLU(tape, x)
	before := tape.NumOps()

	tape.Backward(y)
	assert.Equal(t, before, tape.NumOps(), "backward must not append operations")
	assert.True(t, tape.IsRecording(), "recording state restored after backward")
}
