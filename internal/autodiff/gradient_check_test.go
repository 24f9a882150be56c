package autodiff_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convkg-ml/convkg/internal/autodiff"
	"github.com/convkg-ml/convkg/internal/autodiff/ops"
	"github.com/convkg-ml/convkg/internal/tensor"
)

// numericalGradient perturbs data[i] by ±eps, re-runs the forward closure
// and returns the central difference. The closure must read data through the
// live tensor so the perturbation is visible.
func numericalGradient(f func() float64, data []float32, i int, eps float32) float64 {
	orig := data[i]
	data[i] = orig + eps
	plus := f()
	data[i] = orig - eps
	minus := f()
	data[i] = orig
	return (plus - minus) / (2 * float64(eps))
}

func sumAll(t *tensor.Tensor) float64 {
	var s float64
	for _, v := range t.Data() {
		s += float64(v)
	}
	return s
}

func checkGradient(t *testing.T, name string, f func() float64, param, analytic *tensor.Tensor, eps float32, delta float64) {
	t.Helper()
	require.NotNil(t, analytic, "%s: no gradient computed", name)
	require.True(t, analytic.Shape().Equal(param.Shape()), "%s: gradient shape", name)
	ad := analytic.Data()
	for i := range param.Data() {
		numerical := numericalGradient(f, param.Data(), i, eps)
		assert.InDelta(t, numerical, float64(ad[i]), delta, "%s element %d", name, i)
	}
}

func TestGradient_DenseWithStableBCE(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	x := tensor.Randn(tensor.Shape{2, 3}, rng)
	w := tensor.Randn(tensor.Shape{4, 3}, rng)
	b := tensor.Randn(tensor.Shape{4}, rng)
	targets := tensor.Uniform(tensor.Shape{2, 4}, 0, 1, rng)

	forward := func() float64 {
		return float64(ops.StableBCE(nil, ops.Dense(nil, x, w, b), targets).Item())
	}

	tape := autodiff.NewGradientTape()
	tape.StartRecording()
	loss := ops.StableBCE(tape, ops.Dense(tape, x, w, b), targets)
	grads := tape.Backward(loss)

	checkGradient(t, "x", forward, x, grads[x], 1e-2, 5e-3)
	checkGradient(t, "weight", forward, w, grads[w], 1e-2, 5e-3)
	checkGradient(t, "bias", forward, b, grads[b], 1e-2, 5e-3)
}

func TestGradient_DepthwiseConv2D(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	input := tensor.Randn(tensor.Shape{1, 2, 4, 4}, rng)
	kernel := tensor.Randn(tensor.Shape{2, 1, 3, 3}, rng)

	forward := func() float64 {
		return sumAll(ops.Conv2D(nil, input, kernel, 2))
	}

	tape := autodiff.NewGradientTape()
	tape.StartRecording()
	out := ops.Conv2D(tape, input, kernel, 2)
	// Seeding backward from the raw output differentiates the sum of its
	// elements, matching the forward closure.
	grads := tape.Backward(out)

	checkGradient(t, "input", forward, input, grads[input], 1e-2, 1e-2)
	checkGradient(t, "kernel", forward, kernel, grads[kernel], 1e-2, 1e-2)
}

func TestGradient_PointwiseConv2D(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	input := tensor.Randn(tensor.Shape{2, 2, 3, 3}, rng)
	kernel := tensor.Randn(tensor.Shape{3, 2, 1, 1}, rng)

	forward := func() float64 {
		return sumAll(ops.Conv2D(nil, input, kernel, 1))
	}

	tape := autodiff.NewGradientTape()
	tape.StartRecording()
	out := ops.Conv2D(tape, input, kernel, 1)
	grads := tape.Backward(out)

	checkGradient(t, "input", forward, input, grads[input], 1e-2, 1e-2)
	checkGradient(t, "kernel", forward, kernel, grads[kernel], 1e-2, 1e-2)
}

func TestGradient_BatchNorm(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	x := tensor.Randn(tensor.Shape{3, 4}, rng)
	gamma := tensor.Uniform(tensor.Shape{4}, 0.5, 1.5, rng)
	beta := tensor.Randn(tensor.Shape{4}, rng)
	// Fixed mixing head: the gradient of a plain sum through batch norm is
	// identically zero per channel, so the check needs uneven weights.
	wfix := tensor.Randn(tensor.Shape{2, 4}, rng)

	bn := func(r ops.Recorder) *tensor.Tensor {
		rm := tensor.Zeros(tensor.Shape{4})
		rv := tensor.Full(tensor.Shape{4}, 1)
		return ops.BatchNorm(r, x, gamma, beta, rm, rv, 0.1, 1e-5, true)
	}
	forward := func() float64 {
		return sumAll(ops.Dense(nil, bn(nil), wfix, nil))
	}

	tape := autodiff.NewGradientTape()
	tape.StartRecording()
	out := ops.Dense(tape, bn(tape), wfix, nil)
	grads := tape.Backward(out)

	checkGradient(t, "x", forward, x, grads[x], 1e-2, 2e-2)
	checkGradient(t, "gamma", forward, gamma, grads[gamma], 1e-2, 2e-2)
	checkGradient(t, "beta", forward, beta, grads[beta], 1e-2, 2e-2)
}

func TestGradient_StackImageAndFlatten(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	subject := tensor.Randn(tensor.Shape{2, 6}, rng)
	relation := tensor.Randn(tensor.Shape{2, 6}, rng)
	wfix := tensor.Randn(tensor.Shape{3, 12}, rng)

	forward := func() float64 {
		img := ops.StackImage(nil, subject, relation, 2, 3)
		return sumAll(ops.Dense(nil, ops.Flatten(nil, img), wfix, nil))
	}

	tape := autodiff.NewGradientTape()
	tape.StartRecording()
	img := ops.StackImage(tape, subject, relation, 2, 3)
	out := ops.Dense(tape, ops.Flatten(tape, img), wfix, nil)
	grads := tape.Backward(out)

	checkGradient(t, "subject", forward, subject, grads[subject], 1e-2, 5e-3)
	checkGradient(t, "relation", forward, relation, grads[relation], 1e-2, 5e-3)
}
