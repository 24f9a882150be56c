package ops

import (
	"fmt"

	"github.com/convkg-ml/convkg/internal/tensor"
)

// StackImage turns a subject-embedding batch and a relation-embedding batch,
// each [batch, w*h], into a single-channel image batch [batch, 1, 2w, h].
//
// Each embedding vector is read as a row-major (w, h) grid; the subject grid
// sits above the relation grid along the w axis. Because the grids are
// row-major, the stacked image for one batch element is simply the subject
// vector followed by the relation vector.
func StackImage(r Recorder, subject, relation *tensor.Tensor, w, h int) *tensor.Tensor {
	sShape, rShape := subject.Shape(), relation.Shape()
	if len(sShape) != 2 || len(rShape) != 2 || !sShape.Equal(rShape) {
		panic(fmt.Sprintf("ops: StackImage wants matching 2D inputs, got %v and %v", sShape, rShape))
	}
	batch, dim := sShape[0], sShape[1]
	if dim != w*h {
		panic(fmt.Sprintf("ops: StackImage embedding size %d does not match %dx%d grid", dim, w, h))
	}

	out := tensor.New(tensor.Shape{batch, 1, 2 * w, h})
	sd, rd, od := subject.Data(), relation.Data(), out.Data()
	for b := 0; b < batch; b++ {
		dst := od[b*2*dim : (b+1)*2*dim]
		copy(dst[:dim], sd[b*dim:(b+1)*dim])
		copy(dst[dim:], rd[b*dim:(b+1)*dim])
	}

	record(r, &stackImageOp{subject: subject, relation: relation, output: out, dim: dim})
	return out
}

// stackImageOp splits the image gradient back into the two embedding bands.
type stackImageOp struct {
	subject  *tensor.Tensor
	relation *tensor.Tensor
	output   *tensor.Tensor
	dim      int
}

func (op *stackImageOp) Inputs() []*tensor.Tensor {
	return []*tensor.Tensor{op.subject, op.relation}
}
func (op *stackImageOp) Output() *tensor.Tensor { return op.output }

func (op *stackImageOp) Backward(outputGrad *tensor.Tensor) []*tensor.Tensor {
	batch := op.subject.Shape()[0]
	gradS := tensor.New(op.subject.Shape())
	gradR := tensor.New(op.relation.Shape())
	gs, gr, god := gradS.Data(), gradR.Data(), outputGrad.Data()
	dim := op.dim
	for b := 0; b < batch; b++ {
		src := god[b*2*dim : (b+1)*2*dim]
		copy(gs[b*dim:(b+1)*dim], src[:dim])
		copy(gr[b*dim:(b+1)*dim], src[dim:])
	}
	return []*tensor.Tensor{gradS, gradR}
}
