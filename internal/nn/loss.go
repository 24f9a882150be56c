package nn

import (
	"fmt"

	"github.com/convkg-ml/convkg/internal/autodiff/ops"
	"github.com/convkg-ml/convkg/internal/tensor"
)

// StableBCELoss is the numerically stable binary cross-entropy over raw
// logits. See ops.StableBCE for the formulation and why the naive
// sigmoid-then-log form must not be used here.
type StableBCELoss struct{}

// NewStableBCELoss creates the loss.
func NewStableBCELoss() *StableBCELoss { return &StableBCELoss{} }

// Forward returns the scalar mean loss for logits and targets of identical
// shape [batch, numEntities].
func (*StableBCELoss) Forward(r ops.Recorder, logits, targets *tensor.Tensor) *tensor.Tensor {
	return ops.StableBCE(r, logits, targets)
}

// SmoothedTargets builds the label-smoothed multi-hot target matrix
// [len(objects), numEntities] for a batch: entries at true-object indices
// become (1-smooth) + smooth/numEntities, all others smooth/numEntities.
//
// A fresh tensor is allocated per call and sized to the actual batch, so a
// short final batch never sees stale rows from a previous larger one.
func SmoothedTargets(objects [][]int32, numEntities int, smooth float32) *tensor.Tensor {
	if numEntities <= 0 {
		panic(fmt.Sprintf("nn: SmoothedTargets needs positive entity count, got %d", numEntities))
	}
	if smooth < 0 || smooth > 1 {
		panic(fmt.Sprintf("nn: smoothing factor %v outside [0, 1]", smooth))
	}

	base := smooth / float32(numEntities)
	targets := tensor.Full(tensor.Shape{len(objects), numEntities}, base)
	td := targets.Data()
	for i, objs := range objects {
		row := td[i*numEntities : (i+1)*numEntities]
		for _, o := range objs {
			if o < 0 || int(o) >= numEntities {
				panic(fmt.Sprintf("nn: object index %d out of range [0, %d)", o, numEntities))
			}
			row[o] = (1 - smooth) + base
		}
	}
	return targets
}
