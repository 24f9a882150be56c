package ops

import "github.com/convkg-ml/convkg/internal/tensor"

// Flatten collapses every axis after the first, turning [batch, ...] into
// [batch, rest]. Used between the conv block and the projection head.
func Flatten(r Recorder, x *tensor.Tensor) *tensor.Tensor {
	shape := x.Shape()
	batch := shape[0]
	out := x.Reshape(batch, x.NumElements()/batch)
	record(r, &reshapeOp{input: x, output: out})
	return out
}

// reshapeOp reshapes the gradient back to the input shape; no arithmetic.
type reshapeOp struct {
	input  *tensor.Tensor
	output *tensor.Tensor
}

func (op *reshapeOp) Inputs() []*tensor.Tensor { return []*tensor.Tensor{op.input} }
func (op *reshapeOp) Output() *tensor.Tensor   { return op.output }

func (op *reshapeOp) Backward(outputGrad *tensor.Tensor) []*tensor.Tensor {
	return []*tensor.Tensor{outputGrad.Reshape(op.input.Shape()...)}
}
