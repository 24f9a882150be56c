// Package autodiff implements reverse-mode automatic differentiation on a
// gradient tape. Forward helpers in the ops subpackage record operations
// while the tape is recording; Backward walks the tape in reverse and
// accumulates gradients per tensor.
package autodiff

import (
	"github.com/convkg-ml/convkg/internal/autodiff/ops"
	"github.com/convkg-ml/convkg/internal/tensor"
)

// GradientTape records operations during the forward pass and computes
// gradients during the backward pass.
//
// Recording is explicit: training turns it on, evaluation leaves it off.
// This is what selects between the two execution configurations: an
// evaluation forward pass records nothing and allocates no gradients.
//
//	tape := autodiff.NewGradientTape()
//	tape.StartRecording()
//	loss := ...forward...
//	grads := tape.Backward(loss)
//	tape.Clear()
type GradientTape struct {
	operations []ops.Operation
	recording  bool
}

// NewGradientTape creates an empty, non-recording tape.
func NewGradientTape() *GradientTape {
	return &GradientTape{operations: make([]ops.Operation, 0, 64)}
}

// StartRecording enables operation recording.
func (t *GradientTape) StartRecording() { t.recording = true }

// StopRecording disables operation recording.
func (t *GradientTape) StopRecording() { t.recording = false }

// IsRecording reports whether operations are currently recorded.
func (t *GradientTape) IsRecording() bool { return t.recording }

// Record appends an operation. No-op unless the tape is recording.
func (t *GradientTape) Record(op ops.Operation) {
	if t.recording {
		t.operations = append(t.operations, op)
	}
}

// NumOps returns the number of recorded operations.
func (t *GradientTape) NumOps() int { return len(t.operations) }

// Clear drops all recorded operations, keeping the recording state.
// Call once per batch after the optimizer step.
func (t *GradientTape) Clear() { t.operations = t.operations[:0] }

// Backward computes gradients for every tensor that influenced loss.
//
// The walk starts from a gradient of ones for the loss tensor, visits
// operations newest-first, and sums gradients for tensors consumed by more
// than one operation (the entity embedding matrix is the important case:
// it receives gradient from both the lookup and the scoring product).
func (t *GradientTape) Backward(loss *tensor.Tensor) map[*tensor.Tensor]*tensor.Tensor {
	grads := make(map[*tensor.Tensor]*tensor.Tensor, len(t.operations))
	if len(t.operations) == 0 {
		return grads
	}

	// Gradients must not themselves be recorded.
	wasRecording := t.recording
	t.recording = false
	defer func() { t.recording = wasRecording }()

	grads[loss] = tensor.Full(loss.Shape(), 1)

	for i := len(t.operations) - 1; i >= 0; i-- {
		op := t.operations[i]
		outGrad, ok := grads[op.Output()]
		if !ok {
			continue
		}
		inputGrads := op.Backward(outGrad)
		inputs := op.Inputs()
		for j, input := range inputs {
			if j >= len(inputGrads) || inputGrads[j] == nil {
				continue
			}
			if existing, ok := grads[input]; ok {
				tensor.AddInPlace(existing, inputGrads[j])
			} else {
				grads[input] = inputGrads[j]
			}
		}
	}
	return grads
}
