package ops

import (
	"fmt"
	"math"

	"github.com/convkg-ml/convkg/internal/tensor"
)

// StableBCE computes the numerically stable binary cross-entropy between
// raw logits x and targets t in [0, 1], averaged over every element:
//
//	loss = mean( max(x, 0) - x*t + log(1 + exp(-|x|)) )
//
// This is algebraically identical to -t*log(sigmoid(x)) -
// (1-t)*log(1-sigmoid(x)) but never evaluates exp of a large positive
// value, so confident wrong predictions (|x| in the hundreds) stay finite
// instead of overflowing to Inf/NaN. Do not replace it with the naive form.
//
// Targets are treated as constants: no gradient flows to them.
func StableBCE(r Recorder, logits, targets *tensor.Tensor) *tensor.Tensor {
	if !logits.Shape().Equal(targets.Shape()) {
		panic(fmt.Sprintf("ops: StableBCE shape mismatch: logits %v, targets %v", logits.Shape(), targets.Shape()))
	}

	xd, td := logits.Data(), targets.Data()
	var sum float64
	for i, x := range xd {
		pos := x
		if pos < 0 {
			pos = 0
		}
		abs := x
		if abs < 0 {
			abs = -abs
		}
		sum += float64(pos) - float64(x)*float64(td[i]) + math.Log1p(math.Exp(-float64(abs)))
	}

	out := tensor.New(tensor.Shape{1})
	out.Data()[0] = float32(sum / float64(len(xd)))

	record(r, &stableBCEOp{logits: logits, targets: targets, output: out})
	return out
}

// stableBCEOp: d loss / d x = (sigmoid(x) - t) / numElements.
type stableBCEOp struct {
	logits  *tensor.Tensor
	targets *tensor.Tensor
	output  *tensor.Tensor
}

func (op *stableBCEOp) Inputs() []*tensor.Tensor { return []*tensor.Tensor{op.logits} }
func (op *stableBCEOp) Output() *tensor.Tensor   { return op.output }

func (op *stableBCEOp) Backward(outputGrad *tensor.Tensor) []*tensor.Tensor {
	grad := tensor.New(op.logits.Shape())
	xd, td, gd := op.logits.Data(), op.targets.Data(), grad.Data()
	seed := outputGrad.Data()[0]
	n := float32(len(xd))
	for i, x := range xd {
		sig := float32(1.0 / (1.0 + math.Exp(-float64(x))))
		gd[i] = seed * (sig - td[i]) / n
	}
	return []*tensor.Tensor{grad}
}
