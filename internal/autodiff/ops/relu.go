package ops

import "github.com/convkg-ml/convkg/internal/tensor"

// ReLU returns max(x, 0) element-wise.
func ReLU(r Recorder, x *tensor.Tensor) *tensor.Tensor {
	out := tensor.New(x.Shape())
	xd, od := x.Data(), out.Data()
	for i, v := range xd {
		if v > 0 {
			od[i] = v
		}
	}
	record(r, &reluOp{input: x, output: out})
	return out
}

// reluOp passes gradient only where the input was positive.
type reluOp struct {
	input  *tensor.Tensor
	output *tensor.Tensor
}

func (op *reluOp) Inputs() []*tensor.Tensor { return []*tensor.Tensor{op.input} }
func (op *reluOp) Output() *tensor.Tensor   { return op.output }

func (op *reluOp) Backward(outputGrad *tensor.Tensor) []*tensor.Tensor {
	grad := tensor.New(op.input.Shape())
	xd, gd, god := op.input.Data(), grad.Data(), outputGrad.Data()
	for i, v := range xd {
		if v > 0 {
			gd[i] = god[i]
		}
	}
	return []*tensor.Tensor{grad}
}
