// Package optim implements the gradient-based parameter updates. Only Adam
// is provided; the trainer applies one Step per batch with the gradients
// returned by the tape.
package optim

import (
	"github.com/convkg-ml/convkg/internal/tensor"
)

// Optimizer updates parameters in place from a gradient map keyed by
// parameter tensor identity (the map produced by GradientTape.Backward).
type Optimizer interface {
	// Step applies one update. Parameters without a gradient in the map are
	// left untouched.
	Step(grads map[*tensor.Tensor]*tensor.Tensor)

	// LR returns the current learning rate.
	LR() float32

	// StateDict returns the optimizer's persistent state (moment buffers,
	// step counter) for checkpointing.
	StateDict() map[string]*tensor.Tensor

	// LoadStateDict restores state saved by StateDict.
	LoadStateDict(state map[string]*tensor.Tensor) error
}
