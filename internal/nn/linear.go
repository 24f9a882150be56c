package nn

import (
	"fmt"
	"math/rand"

	"github.com/convkg-ml/convkg/internal/autodiff/ops"
	"github.com/convkg-ml/convkg/internal/tensor"
)

// Linear is a fully connected layer computing y = x @ Wᵀ + b.
// Weight is Xavier-initialized, bias starts at zero.
type Linear struct {
	InFeatures  int
	OutFeatures int
	Weight      *Parameter // [OutFeatures, InFeatures]
	Bias        *Parameter // [OutFeatures]
}

// NewLinear creates a Linear layer named name (keys become "<name>.weight"
// and "<name>.bias").
func NewLinear(name string, inFeatures, outFeatures int, rng *rand.Rand) (*Linear, error) {
	if inFeatures <= 0 || outFeatures <= 0 {
		return nil, fmt.Errorf("nn: linear %q needs positive sizes, got %d -> %d", name, inFeatures, outFeatures)
	}
	return &Linear{
		InFeatures:  inFeatures,
		OutFeatures: outFeatures,
		Weight:      NewParameter(name+".weight", Xavier(inFeatures, outFeatures, tensor.Shape{outFeatures, inFeatures}, rng)),
		Bias:        NewParameter(name+".bias", tensor.Zeros(tensor.Shape{outFeatures})),
	}, nil
}

// Forward computes the affine transform for input [batch, InFeatures].
func (l *Linear) Forward(r ops.Recorder, input *tensor.Tensor) *tensor.Tensor {
	return ops.Dense(r, input, l.Weight.Tensor(), l.Bias.Tensor())
}

// Parameters returns weight and bias.
func (l *Linear) Parameters() []*Parameter {
	return []*Parameter{l.Weight, l.Bias}
}

// StateDict returns weight and bias keyed by their dotted names.
func (l *Linear) StateDict() map[string]*tensor.Tensor {
	return map[string]*tensor.Tensor{
		l.Weight.Name(): l.Weight.Tensor(),
		l.Bias.Name():   l.Bias.Tensor(),
	}
}

// LoadStateDict restores weight and bias.
func (l *Linear) LoadStateDict(state map[string]*tensor.Tensor) error {
	if err := loadTensor(l.Weight.Name(), l.Weight.Tensor(), state); err != nil {
		return err
	}
	return loadTensor(l.Bias.Name(), l.Bias.Tensor(), state)
}
