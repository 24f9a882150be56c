package nn

import (
	"math/rand"

	"github.com/convkg-ml/convkg/internal/autodiff/ops"
	"github.com/convkg-ml/convkg/internal/tensor"
)

// Dropout randomly zeroes individual activations during training and is the
// identity during evaluation. It has no persistent state.
type Dropout struct {
	P   float32
	rng *rand.Rand
}

// NewDropout creates a dropout layer with drop probability p.
func NewDropout(p float32, rng *rand.Rand) *Dropout {
	return &Dropout{P: p, rng: rng}
}

// Forward applies dropout in training mode, identity otherwise.
func (d *Dropout) Forward(r ops.Recorder, input *tensor.Tensor, train bool) *tensor.Tensor {
	return ops.Dropout(r, input, d.P, d.rng, train)
}

// Dropout2D randomly zeroes whole feature-map channels during training.
type Dropout2D struct {
	P   float32
	rng *rand.Rand
}

// NewDropout2D creates a channel dropout layer with drop probability p.
func NewDropout2D(p float32, rng *rand.Rand) *Dropout2D {
	return &Dropout2D{P: p, rng: rng}
}

// Forward applies channel dropout in training mode, identity otherwise.
func (d *Dropout2D) Forward(r ops.Recorder, input *tensor.Tensor, train bool) *tensor.Tensor {
	return ops.Dropout2D(r, input, d.P, d.rng, train)
}
