package train

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMovingAverage_SeedsWithFirstValue(t *testing.T) {
	var m movingAverage
	assert.Equal(t, 5.0, m.update(5.0), "first value seeds the average exactly")
}

func TestMovingAverage_ExponentialUpdate(t *testing.T) {
	var m movingAverage
	m.update(10.0)
	assert.InDelta(t, 10.0*0.9+2.0*0.1, m.update(2.0), 1e-12)
	assert.InDelta(t, 9.2*0.9+2.0*0.1, m.update(2.0), 1e-12)
}

func TestMovingAverage_SeedZeroLoss(t *testing.T) {
	// A first loss of exactly zero still counts as the seed.
	var m movingAverage
	assert.Equal(t, 0.0, m.update(0))
	assert.InDelta(t, 0.3, m.update(3.0), 1e-12)
}

func TestConfig_Defaults(t *testing.T) {
	cfg := Config{RunName: "abc"}.Defaults()
	assert.Equal(t, 90, cfg.Epochs)
	assert.Equal(t, 256, cfg.BatchSize)
	assert.Equal(t, float32(0.1), cfg.LabelSmooth)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, "checkpoint-abc", cfg.CheckpointDir)
}

func TestConfig_DefaultsKeepExplicitValues(t *testing.T) {
	cfg := Config{RunName: "abc", Epochs: 3, BatchSize: 16, CheckpointDir: "out"}.Defaults()
	assert.Equal(t, 3, cfg.Epochs)
	assert.Equal(t, 16, cfg.BatchSize)
	assert.Equal(t, "out", cfg.CheckpointDir)
}
