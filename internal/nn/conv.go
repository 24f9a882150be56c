package nn

import (
	"fmt"
	"math/rand"

	"github.com/convkg-ml/convkg/internal/autodiff/ops"
	"github.com/convkg-ml/convkg/internal/tensor"
)

// SeparableConv2D factors a dense k×k×C convolution into a depthwise stage
// (one independent k×k kernel per input channel) and a pointwise 1×1 stage
// that mixes channels up to OutChannels. Neither stage uses bias or
// padding. The factorization keeps the receptive field of the dense
// convolution with far fewer parameters:
//
//	dense:     OutChannels * InChannels * k * k
//	separable: InChannels * k * k  +  OutChannels * InChannels
type SeparableConv2D struct {
	InChannels  int
	OutChannels int
	KernelSize  int
	Depthwise   *Parameter // [InChannels, 1, k, k]
	Pointwise   *Parameter // [OutChannels, InChannels, 1, 1]
}

// NewSeparableConv2D creates the two convolution stages, Xavier-initialized.
func NewSeparableConv2D(name string, inChannels, outChannels, kernelSize int, rng *rand.Rand) (*SeparableConv2D, error) {
	if inChannels <= 0 || outChannels <= 0 || kernelSize <= 0 {
		return nil, fmt.Errorf("nn: separable conv %q needs positive sizes, got %d -> %d, k=%d",
			name, inChannels, outChannels, kernelSize)
	}
	k := kernelSize
	return &SeparableConv2D{
		InChannels:  inChannels,
		OutChannels: outChannels,
		KernelSize:  k,
		Depthwise: NewParameter(name+".depthwise.weight",
			Xavier(k*k, k*k, tensor.Shape{inChannels, 1, k, k}, rng)),
		Pointwise: NewParameter(name+".pointwise.weight",
			Xavier(inChannels, outChannels, tensor.Shape{outChannels, inChannels, 1, 1}, rng)),
	}, nil
}

// Forward applies the depthwise then pointwise stage to input
// [batch, InChannels, h, w], producing [batch, OutChannels, h-k+1, w-k+1].
func (c *SeparableConv2D) Forward(r ops.Recorder, input *tensor.Tensor) *tensor.Tensor {
	out := ops.Conv2D(r, input, c.Depthwise.Tensor(), c.InChannels)
	return ops.Conv2D(r, out, c.Pointwise.Tensor(), 1)
}

// Parameters returns the depthwise and pointwise kernels.
func (c *SeparableConv2D) Parameters() []*Parameter {
	return []*Parameter{c.Depthwise, c.Pointwise}
}

// StateDict returns both kernels keyed by their dotted names.
func (c *SeparableConv2D) StateDict() map[string]*tensor.Tensor {
	return map[string]*tensor.Tensor{
		c.Depthwise.Name(): c.Depthwise.Tensor(),
		c.Pointwise.Name(): c.Pointwise.Tensor(),
	}
}

// LoadStateDict restores both kernels.
func (c *SeparableConv2D) LoadStateDict(state map[string]*tensor.Tensor) error {
	if err := loadTensor(c.Depthwise.Name(), c.Depthwise.Tensor(), state); err != nil {
		return err
	}
	return loadTensor(c.Pointwise.Name(), c.Pointwise.Tensor(), state)
}
