package ops

import (
	"fmt"

	"github.com/convkg-ml/convkg/internal/tensor"
)

// Dense computes x @ weightᵀ (+ bias), for x [batch, in] and weight
// [out, in], producing [batch, out]. bias may be nil.
//
// It serves two roles in the model: the projection layer of the head, and,
// with the entity embedding matrix as weight and no bias, the scoring
// product against every candidate object.
func Dense(r Recorder, x, weight, bias *tensor.Tensor) *tensor.Tensor {
	xs, ws := x.Shape(), weight.Shape()
	if len(xs) != 2 || len(ws) != 2 || xs[1] != ws[1] {
		panic(fmt.Sprintf("ops: Dense shape mismatch: input %v, weight %v", xs, ws))
	}
	out := tensor.MatMulT(x, weight)
	if bias != nil {
		bs := bias.Shape()
		if len(bs) != 1 || bs[0] != ws[0] {
			panic(fmt.Sprintf("ops: Dense bias %v does not match weight %v", bs, ws))
		}
		od, bd := out.Data(), bias.Data()
		m := bs[0]
		for i := 0; i < xs[0]; i++ {
			row := od[i*m : (i+1)*m]
			for j := range row {
				row[j] += bd[j]
			}
		}
	}
	record(r, &denseOp{x: x, weight: weight, bias: bias, output: out})
	return out
}

// denseOp: dx = g @ W, dW = gᵀ @ x, db = column sums of g.
type denseOp struct {
	x      *tensor.Tensor
	weight *tensor.Tensor
	bias   *tensor.Tensor
	output *tensor.Tensor
}

func (op *denseOp) Inputs() []*tensor.Tensor {
	if op.bias != nil {
		return []*tensor.Tensor{op.x, op.weight, op.bias}
	}
	return []*tensor.Tensor{op.x, op.weight}
}
func (op *denseOp) Output() *tensor.Tensor { return op.output }

func (op *denseOp) Backward(outputGrad *tensor.Tensor) []*tensor.Tensor {
	gradX := tensor.MatMul(outputGrad, op.weight)
	gradW := tensor.TMatMul(outputGrad, op.x)
	if op.bias == nil {
		return []*tensor.Tensor{gradX, gradW}
	}
	gradB := tensor.New(op.bias.Shape())
	gd, gbd := outputGrad.Data(), gradB.Data()
	batch, m := outputGrad.Shape()[0], op.bias.Shape()[0]
	for i := 0; i < batch; i++ {
		row := gd[i*m : (i+1)*m]
		for j := range row {
			gbd[j] += row[j]
		}
	}
	return []*tensor.Tensor{gradX, gradW, gradB}
}
