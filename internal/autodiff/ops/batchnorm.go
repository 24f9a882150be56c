package ops

import (
	"fmt"
	"math"

	"github.com/convkg-ml/convkg/internal/tensor"
)

// BatchNorm normalizes x per feature channel.
//
// x is either [batch, features] (1D case, after the projection) or
// [batch, channels, h, w] (2D case, after the conv block); axis 1 is the
// channel axis in both, with statistics taken over every other axis.
//
// train selects the execution configuration explicitly: in training mode
// the batch statistics normalize the activations and the running buffers
// are updated in place (running variance uses the unbiased estimate); in
// evaluation mode the accumulated running statistics are used and nothing
// is recorded on the tape.
func BatchNorm(r Recorder, x, gamma, beta, runningMean, runningVar *tensor.Tensor, momentum, eps float32, train bool) *tensor.Tensor {
	channels, spatial := bnDims(x)
	batch := x.Shape()[0]
	if gamma.NumElements() != channels || beta.NumElements() != channels {
		panic(fmt.Sprintf("ops: BatchNorm gamma/beta size %d/%d, want %d", gamma.NumElements(), beta.NumElements(), channels))
	}

	out := tensor.New(x.Shape())
	xd, od := x.Data(), out.Data()
	gd, bd := gamma.Data(), beta.Data()

	if !train {
		rm, rv := runningMean.Data(), runningVar.Data()
		forEachChannel(batch, channels, spatial, func(c, off int) {
			invStd := float32(1.0 / math.Sqrt(float64(rv[c]+eps)))
			for s := 0; s < spatial; s++ {
				od[off+s] = gd[c]*(xd[off+s]-rm[c])*invStd + bd[c]
			}
		})
		return out
	}

	m := float32(batch * spatial)
	mean := make([]float32, channels)
	variance := make([]float32, channels)
	forEachChannel(batch, channels, spatial, func(c, off int) {
		for s := 0; s < spatial; s++ {
			mean[c] += xd[off+s]
		}
	})
	for c := range mean {
		mean[c] /= m
	}
	forEachChannel(batch, channels, spatial, func(c, off int) {
		for s := 0; s < spatial; s++ {
			d := xd[off+s] - mean[c]
			variance[c] += d * d
		}
	})
	for c := range variance {
		variance[c] /= m
	}

	invStd := make([]float32, channels)
	for c := range invStd {
		invStd[c] = float32(1.0 / math.Sqrt(float64(variance[c]+eps)))
	}

	xhat := tensor.New(x.Shape())
	xh := xhat.Data()
	forEachChannel(batch, channels, spatial, func(c, off int) {
		for s := 0; s < spatial; s++ {
			v := (xd[off+s] - mean[c]) * invStd[c]
			xh[off+s] = v
			od[off+s] = gd[c]*v + bd[c]
		}
	})

	// Update running statistics in place; the unbiased variance feeds the
	// running buffer so evaluation matches what the batches actually saw.
	rm, rv := runningMean.Data(), runningVar.Data()
	unbiased := float32(1)
	if m > 1 {
		unbiased = m / (m - 1)
	}
	for c := 0; c < channels; c++ {
		rm[c] = (1-momentum)*rm[c] + momentum*mean[c]
		rv[c] = (1-momentum)*rv[c] + momentum*variance[c]*unbiased
	}

	record(r, &batchNormOp{
		x: x, gamma: gamma, beta: beta, output: out,
		xhat: xhat, invStd: invStd,
		batch: batch, channels: channels, spatial: spatial,
	})
	return out
}

// batchNormOp keeps the normalized activations and inverse standard
// deviations from the forward pass; the gradient couples every element of a
// channel through the shared mean and variance.
type batchNormOp struct {
	x      *tensor.Tensor
	gamma  *tensor.Tensor
	beta   *tensor.Tensor
	output *tensor.Tensor

	xhat   *tensor.Tensor
	invStd []float32

	batch, channels, spatial int
}

func (op *batchNormOp) Inputs() []*tensor.Tensor {
	return []*tensor.Tensor{op.x, op.gamma, op.beta}
}
func (op *batchNormOp) Output() *tensor.Tensor { return op.output }

func (op *batchNormOp) Backward(outputGrad *tensor.Tensor) []*tensor.Tensor {
	gradX := tensor.New(op.x.Shape())
	gradGamma := tensor.New(op.gamma.Shape())
	gradBeta := tensor.New(op.beta.Shape())

	god, xh := outputGrad.Data(), op.xhat.Data()
	gx, gg, gb := gradX.Data(), gradGamma.Data(), gradBeta.Data()
	gammaD := op.gamma.Data()

	sumG := make([]float32, op.channels)
	sumGX := make([]float32, op.channels)
	forEachChannel(op.batch, op.channels, op.spatial, func(c, off int) {
		for s := 0; s < op.spatial; s++ {
			sumG[c] += god[off+s]
			sumGX[c] += god[off+s] * xh[off+s]
		}
	})
	copy(gb, sumG)
	copy(gg, sumGX)

	m := float32(op.batch * op.spatial)
	forEachChannel(op.batch, op.channels, op.spatial, func(c, off int) {
		scale := gammaD[c] * op.invStd[c] / m
		for s := 0; s < op.spatial; s++ {
			gx[off+s] = scale * (m*god[off+s] - sumG[c] - xh[off+s]*sumGX[c])
		}
	})

	return []*tensor.Tensor{gradX, gradGamma, gradBeta}
}

// bnDims returns the channel count and per-channel spatial size of x.
func bnDims(x *tensor.Tensor) (channels, spatial int) {
	shape := x.Shape()
	switch len(shape) {
	case 2:
		return shape[1], 1
	case 4:
		return shape[1], shape[2] * shape[3]
	default:
		panic(fmt.Sprintf("ops: BatchNorm wants 2D or 4D input, got %v", shape))
	}
}

// forEachChannel invokes f for every (batch, channel) block, passing the
// channel index and the flat offset of the block's first element.
func forEachChannel(batch, channels, spatial int, f func(c, off int)) {
	for b := 0; b < batch; b++ {
		for c := 0; c < channels; c++ {
			f(c, (b*channels+c)*spatial)
		}
	}
}
