package nn

import (
	"fmt"

	"github.com/convkg-ml/convkg/internal/autodiff/ops"
	"github.com/convkg-ml/convkg/internal/tensor"
)

// Default batch-norm hyperparameters.
const (
	bnMomentum float32 = 0.1
	bnEps      float32 = 1e-5
)

// BatchNorm normalizes activations per feature channel. It covers both the
// 2D case (after the conv block, input [batch, channels, h, w]) and the 1D
// case (after the projection, input [batch, features]).
//
// Gamma and beta are trainable; the running mean and variance are buffers
// updated during training-mode forward passes and used verbatim in
// evaluation mode. The buffers are part of the state dict so a reloaded
// checkpoint scores identically.
type BatchNorm struct {
	NumFeatures int
	Gamma       *Parameter
	Beta        *Parameter
	RunningMean *tensor.Tensor
	RunningVar  *tensor.Tensor

	name     string
	momentum float32
	eps      float32
}

// NewBatchNorm creates a batch-norm layer with gamma=1, beta=0, running
// mean 0 and running variance 1.
func NewBatchNorm(name string, numFeatures int) (*BatchNorm, error) {
	if numFeatures <= 0 {
		return nil, fmt.Errorf("nn: batch norm %q needs positive feature count, got %d", name, numFeatures)
	}
	shape := tensor.Shape{numFeatures}
	return &BatchNorm{
		NumFeatures: numFeatures,
		Gamma:       NewParameter(name+".gamma", tensor.Full(shape, 1)),
		Beta:        NewParameter(name+".beta", tensor.Zeros(shape)),
		RunningMean: tensor.Zeros(shape),
		RunningVar:  tensor.Full(shape, 1),
		name:        name,
		momentum:    bnMomentum,
		eps:         bnEps,
	}, nil
}

// Forward normalizes input with batch statistics (train=true, updating the
// running buffers) or with the running statistics (train=false).
func (b *BatchNorm) Forward(r ops.Recorder, input *tensor.Tensor, train bool) *tensor.Tensor {
	return ops.BatchNorm(r, input, b.Gamma.Tensor(), b.Beta.Tensor(),
		b.RunningMean, b.RunningVar, b.momentum, b.eps, train)
}

// Parameters returns gamma and beta. The running buffers are not trainable.
func (b *BatchNorm) Parameters() []*Parameter {
	return []*Parameter{b.Gamma, b.Beta}
}

// StateDict returns gamma, beta and the running buffers.
func (b *BatchNorm) StateDict() map[string]*tensor.Tensor {
	return map[string]*tensor.Tensor{
		b.Gamma.Name():           b.Gamma.Tensor(),
		b.Beta.Name():            b.Beta.Tensor(),
		b.name + ".running_mean": b.RunningMean,
		b.name + ".running_var":  b.RunningVar,
	}
}

// LoadStateDict restores gamma, beta and the running buffers.
func (b *BatchNorm) LoadStateDict(state map[string]*tensor.Tensor) error {
	for name, dst := range b.StateDict() {
		if err := loadTensor(name, dst, state); err != nil {
			return err
		}
	}
	return nil
}
