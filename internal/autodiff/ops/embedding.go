package ops

import (
	"fmt"

	"github.com/convkg-ml/convkg/internal/tensor"
)

// Embedding gathers rows of weight [num, dim] for the given indices,
// producing [len(indices), dim]. An out-of-range index panics immediately
// rather than wrapping or reading garbage.
func Embedding(r Recorder, weight *tensor.Tensor, indices []int32) *tensor.Tensor {
	shape := weight.Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("ops: embedding weight must be 2D, got %v", shape))
	}
	num, dim := shape[0], shape[1]

	out := tensor.New(tensor.Shape{len(indices), dim})
	wd, od := weight.Data(), out.Data()
	for i, idx := range indices {
		if idx < 0 || int(idx) >= num {
			panic(fmt.Sprintf("ops: embedding index %d out of range [0, %d)", idx, num))
		}
		copy(od[i*dim:(i+1)*dim], wd[int(idx)*dim:(int(idx)+1)*dim])
	}

	record(r, &embeddingOp{weight: weight, indices: indices, output: out})
	return out
}

// embeddingOp scatter-adds output gradients back onto the looked-up rows.
// Repeated indices within a batch accumulate.
type embeddingOp struct {
	weight  *tensor.Tensor
	indices []int32
	output  *tensor.Tensor
}

func (op *embeddingOp) Inputs() []*tensor.Tensor { return []*tensor.Tensor{op.weight} }
func (op *embeddingOp) Output() *tensor.Tensor   { return op.output }

func (op *embeddingOp) Backward(outputGrad *tensor.Tensor) []*tensor.Tensor {
	dim := op.weight.Shape()[1]
	grad := tensor.New(op.weight.Shape())
	gd, gout := grad.Data(), outputGrad.Data()
	for i, idx := range op.indices {
		row := gd[int(idx)*dim : (int(idx)+1)*dim]
		src := gout[i*dim : (i+1)*dim]
		for j := range row {
			row[j] += src[j]
		}
	}
	return []*tensor.Tensor{grad}
}
