// Package ops defines the differentiable operations recorded on the
// gradient tape. Each file pairs a forward helper with the Operation that
// computes input gradients during the backward pass.
//
// Forward helpers take a Recorder (the tape). When the recorder is nil or
// not recording they perform plain forward arithmetic, which is the
// evaluation path.
package ops

import "github.com/convkg-ml/convkg/internal/tensor"

// Operation is one recorded step of the forward pass.
type Operation interface {
	// Backward computes gradients for this operation's inputs given the
	// gradient of the loss with respect to its output. The returned slice
	// parallels Inputs(); a nil entry means no gradient flows to that input.
	Backward(outputGrad *tensor.Tensor) []*tensor.Tensor

	// Inputs returns the tensors consumed by the operation.
	Inputs() []*tensor.Tensor

	// Output returns the tensor produced by the operation.
	Output() *tensor.Tensor
}

// Recorder receives operations during the forward pass.
// *autodiff.GradientTape implements it.
type Recorder interface {
	Record(op Operation)
	IsRecording() bool
}

func record(r Recorder, op Operation) {
	if r != nil {
		r.Record(op)
	}
}

func recording(r Recorder) bool {
	return r != nil && r.IsRecording()
}
