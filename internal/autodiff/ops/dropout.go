package ops

import (
	"fmt"
	"math/rand"

	"github.com/convkg-ml/convkg/internal/tensor"
)

// Dropout zeroes elements of x with probability p and scales survivors by
// 1/(1-p), so activations keep their expected magnitude ("inverted"
// dropout). In evaluation mode the input is returned untouched and nothing
// is recorded.
func Dropout(r Recorder, x *tensor.Tensor, p float32, rng *rand.Rand, train bool) *tensor.Tensor {
	checkDropoutRate(p)
	if !train || p == 0 {
		return x
	}
	mask := make([]float32, x.NumElements())
	scale := 1 / (1 - p)
	for i := range mask {
		if rng.Float32() >= p {
			mask[i] = scale
		}
	}
	return applyMask(r, x, mask)
}

// Dropout2D zeroes entire feature-map channels of x [batch, channels, h, w]
// with probability p, scaling surviving channels by 1/(1-p). Dropping whole
// channels regularizes the conv block better than per-pixel dropout because
// neighbouring activations within a map are strongly correlated.
func Dropout2D(r Recorder, x *tensor.Tensor, p float32, rng *rand.Rand, train bool) *tensor.Tensor {
	checkDropoutRate(p)
	if !train || p == 0 {
		return x
	}
	shape := x.Shape()
	if len(shape) != 4 {
		panic(fmt.Sprintf("ops: Dropout2D wants 4D input, got %v", shape))
	}
	batch, channels, spatial := shape[0], shape[1], shape[2]*shape[3]
	mask := make([]float32, x.NumElements())
	scale := 1 / (1 - p)
	for b := 0; b < batch; b++ {
		for c := 0; c < channels; c++ {
			if rng.Float32() < p {
				continue
			}
			block := mask[(b*channels+c)*spatial : (b*channels+c+1)*spatial]
			for i := range block {
				block[i] = scale
			}
		}
	}
	return applyMask(r, x, mask)
}

func checkDropoutRate(p float32) {
	if p < 0 || p >= 1 {
		panic(fmt.Sprintf("ops: dropout probability %v outside [0, 1)", p))
	}
}

func applyMask(r Recorder, x *tensor.Tensor, mask []float32) *tensor.Tensor {
	out := tensor.New(x.Shape())
	xd, od := x.Data(), out.Data()
	for i := range od {
		od[i] = xd[i] * mask[i]
	}
	record(r, &dropoutOp{input: x, output: out, mask: mask})
	return out
}

// dropoutOp multiplies the gradient by the same scaled mask.
type dropoutOp struct {
	input  *tensor.Tensor
	output *tensor.Tensor
	mask   []float32
}

func (op *dropoutOp) Inputs() []*tensor.Tensor { return []*tensor.Tensor{op.input} }
func (op *dropoutOp) Output() *tensor.Tensor   { return op.output }

func (op *dropoutOp) Backward(outputGrad *tensor.Tensor) []*tensor.Tensor {
	grad := tensor.New(op.input.Shape())
	gd, god := grad.Data(), outputGrad.Data()
	for i := range gd {
		gd[i] = god[i] * op.mask[i]
	}
	return []*tensor.Tensor{grad}
}
