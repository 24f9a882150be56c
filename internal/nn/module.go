// Package nn implements the neural-network building blocks of the link
// predictor: trainable parameters, embedding tables, the depthwise-separable
// convolution, batch normalization, dropout, the projection layer and the
// stable binary cross-entropy loss.
//
// Layers expose Forward methods taking an ops.Recorder (the gradient tape)
// and, where training and evaluation behavior differ, an explicit train
// flag. There is no hidden mode state on the modules themselves.
package nn

import "github.com/convkg-ml/convkg/internal/tensor"

// Module is implemented by every stateful network component.
type Module interface {
	// Parameters returns the trainable parameters, in a stable order.
	Parameters() []*Parameter

	// StateDict returns every persistent tensor keyed by dotted name:
	// trainable parameters plus buffers such as batch-norm running
	// statistics. The returned tensors are the live ones, not copies.
	StateDict() map[string]*tensor.Tensor

	// LoadStateDict copies values from a state dict produced by StateDict.
	// Missing keys or shape mismatches are errors.
	LoadStateDict(state map[string]*tensor.Tensor) error
}
