package model_test

import (
	"math"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convkg-ml/convkg/internal/autodiff"
	"github.com/convkg-ml/convkg/internal/autodiff/ops"
	"github.com/convkg-ml/convkg/internal/model"
	"github.com/convkg-ml/convkg/internal/nn"
	"github.com/convkg-ml/convkg/internal/optim"
	"github.com/convkg-ml/convkg/internal/serialization"
	"github.com/convkg-ml/convkg/internal/tensor"
)

// tinyConfig is small enough for fast tests: 4x3 embedding grids, 4 conv
// channels, 2x2 kernel, no dropout so forward passes are deterministic.
func tinyConfig(numEntities, numRelations int) model.Config {
	return model.Config{
		NumEntities:     numEntities,
		NumRelations:    numRelations,
		EmbeddingHeight: 4,
		EmbeddingWidth:  3,
		ConvChannels:    4,
		KernelSize:      2,
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := model.DefaultConfig(100, 10)
	assert.Equal(t, 200, cfg.EmbeddingSize())
	assert.Equal(t, 32, cfg.ConvChannels)
	assert.Equal(t, 3, cfg.KernelSize)
	assert.Equal(t, float32(0.2), cfg.EmbedDropout)
	assert.Equal(t, float32(0.2), cfg.FeatureMapDropout)
	assert.Equal(t, float32(0.3), cfg.ProjDropout)
}

func TestNew_RejectsBadConfigs(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	cfg := tinyConfig(0, 2)
	_, err := model.New(cfg, rng)
	assert.Error(t, err, "no entities")

	cfg = tinyConfig(5, 2)
	cfg.KernelSize = 5
	_, err = model.New(cfg, rng)
	assert.Error(t, err, "kernel does not fit the stacked image")

	cfg = tinyConfig(5, 2)
	cfg.ConvChannels = 0
	_, err = model.New(cfg, rng)
	assert.Error(t, err, "no conv channels")
}

func TestForward_ScoresEveryEntity(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	m, err := model.New(tinyConfig(7, 3), rng)
	require.NoError(t, err)

	logits := m.Forward(nil, []int32{0, 5, 2}, []int32{1, 0, 2}, false)
	assert.Equal(t, tensor.Shape{3, 7}, logits.Shape())
}

func TestForward_PanicsOnMismatchedBatch(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	m, err := model.New(tinyConfig(5, 2), rng)
	require.NoError(t, err)

	assert.Panics(t, func() { m.Forward(nil, []int32{0, 1}, []int32{0}, false) })
	assert.Panics(t, func() { m.Forward(nil, nil, nil, false) })
}

func TestPredict_ProbabilitiesInUnitInterval(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	m, err := model.New(tinyConfig(6, 2), rng)
	require.NoError(t, err)

	scores := m.Predict(nil, []int32{0, 1}, []int32{0, 1})
	for _, v := range scores.Data() {
		assert.GreaterOrEqual(t, v, float32(0))
		assert.LessOrEqual(t, v, float32(1))
	}
}

func TestPredict_DeterministicInEvalMode(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	m, err := model.New(tinyConfig(6, 2), rng)
	require.NoError(t, err)

	a := m.Predict(nil, []int32{3}, []int32{1})
	b := m.Predict(nil, []int32{3}, []int32{1})
	assert.Equal(t, a.Data(), b.Data())
}

// One optimizer step on a tiny graph must reduce the training loss for the
// same batch under identical conditions.
func TestTrainingStep_ReducesLoss(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	m, err := model.New(tinyConfig(5, 2), rng)
	require.NoError(t, err)

	subjects := []int32{0, 1}
	relations := []int32{0, 1}
	objects := [][]int32{{2, 3}, {4}}
	targets := nn.SmoothedTargets(objects, 5, 0.1)

	opt := optim.NewAdam(m.Parameters(), optim.AdamConfig{LR: 0.01})
	tape := autodiff.NewGradientTape()
	tape.StartRecording()

	logits := m.Forward(tape, subjects, relations, true)
	loss := ops.StableBCE(tape, logits, targets)
	before := float64(loss.Item())

	grads := tape.Backward(loss)
	opt.Step(grads)
	tape.Clear()

	logits = m.Forward(tape, subjects, relations, true)
	after := float64(ops.StableBCE(nil, logits, targets).Item())

	require.False(t, math.IsNaN(before) || math.IsNaN(after))
	assert.Less(t, after, before)
}

func TestStateDict_RoundTripThroughCheckpoint(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	cfg := tinyConfig(6, 2)
	src, err := model.New(cfg, rng)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "checkpoint_01.model")
	require.NoError(t, serialization.Write(path, src.StateDict(), map[string]string{"epoch": "1"}))

	state, meta, err := serialization.Read(path)
	require.NoError(t, err)
	assert.Equal(t, "1", meta["epoch"])

	dst, err := model.New(cfg, rand.New(rand.NewSource(99)))
	require.NoError(t, err)
	require.NoError(t, dst.LoadStateDict(state))

	want := src.Predict(nil, []int32{0, 3}, []int32{1, 0})
	got := dst.Predict(nil, []int32{0, 3}, []int32{1, 0})
	assert.Equal(t, want.Data(), got.Data(), "reloaded model must score identically")
}

func TestLoadStateDict_RejectsIncompleteState(t *testing.T) {
	rng := rand.New(rand.NewSource(8))
	m, err := model.New(tinyConfig(5, 2), rng)
	require.NoError(t, err)

	state := m.StateDict()
	delete(state, "proj.weight")
	assert.Error(t, m.LoadStateDict(state))
}
