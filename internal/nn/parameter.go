package nn

import (
	"fmt"

	"github.com/convkg-ml/convkg/internal/tensor"
)

// Parameter is a named trainable tensor. The optimizer mutates the tensor's
// data in place; gradients are looked up from the tape's gradient map by
// tensor identity rather than stored on the parameter.
type Parameter struct {
	name   string
	tensor *tensor.Tensor
}

// NewParameter wraps an initialized tensor as a trainable parameter.
func NewParameter(name string, t *tensor.Tensor) *Parameter {
	return &Parameter{name: name, tensor: t}
}

// Name returns the parameter's dotted name, e.g. "proj.weight".
func (p *Parameter) Name() string { return p.name }

// Tensor returns the live parameter tensor.
func (p *Parameter) Tensor() *tensor.Tensor { return p.tensor }

// loadTensor copies src into dst after checking shapes, used by the
// LoadStateDict implementations.
func loadTensor(name string, dst *tensor.Tensor, state map[string]*tensor.Tensor) error {
	src, ok := state[name]
	if !ok {
		return fmt.Errorf("nn: state dict missing %q", name)
	}
	if !src.Shape().Equal(dst.Shape()) {
		return fmt.Errorf("nn: %q shape mismatch: have %v, want %v", name, src.Shape(), dst.Shape())
	}
	copy(dst.Data(), src.Data())
	return nil
}
