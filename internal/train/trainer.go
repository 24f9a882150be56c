// Package train drives the epoch/batch loop and the ranking evaluation.
//
// One controlling goroutine owns the model: it consumes prefetched batches,
// runs forward/backward on the tape, applies the optimizer and writes a
// checkpoint after every epoch. The collation workers in internal/data are
// the only other concurrency; parameters have exactly one mutator.
package train

import (
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/convkg-ml/convkg/internal/autodiff"
	"github.com/convkg-ml/convkg/internal/data"
	"github.com/convkg-ml/convkg/internal/model"
	"github.com/convkg-ml/convkg/internal/nn"
	"github.com/convkg-ml/convkg/internal/optim"
	"github.com/convkg-ml/convkg/internal/serialization"
	"github.com/convkg-ml/convkg/internal/telemetry"
)

// Config holds the run parameters.
type Config struct {
	RunName       string
	Epochs        int     // default 90
	BatchSize     int     // default 256
	LabelSmooth   float32 // default 0.1
	Workers       int     // collation workers, default 4
	CheckpointDir string  // default "checkpoint-<run>"
}

// Defaults fills unset fields with the published training setup.
func (c Config) Defaults() Config {
	if c.Epochs == 0 {
		c.Epochs = 90
	}
	if c.BatchSize == 0 {
		c.BatchSize = 256
	}
	if c.LabelSmooth == 0 {
		c.LabelSmooth = 0.1
	}
	if c.Workers == 0 {
		c.Workers = 4
	}
	if c.CheckpointDir == "" {
		c.CheckpointDir = "checkpoint-" + c.RunName
	}
	return c
}

// Trainer owns one training run.
type Trainer struct {
	cfg       Config
	model     *model.DSConvE
	optimizer optim.Optimizer
	loss      *nn.StableBCELoss
	tape      *autodiff.GradientTape
	collector telemetry.Collector
	logger    *slog.Logger
	rng       *rand.Rand
}

// New assembles a trainer. The collector and logger are injected; pass
// telemetry.Nop{} and slog.Default() when they are not wanted.
func New(cfg Config, m *model.DSConvE, opt optim.Optimizer, collector telemetry.Collector, logger *slog.Logger, rng *rand.Rand) *Trainer {
	return &Trainer{
		cfg:       cfg.Defaults(),
		model:     m,
		optimizer: opt,
		loss:      nn.NewStableBCELoss(),
		tape:      autodiff.NewGradientTape(),
		collector: collector,
		logger:    logger,
		rng:       rng,
	}
}

// Run executes the configured number of epochs. After each epoch it
// evaluates the ranking metrics on the training split and the held-out
// split (both indexed with the training vocabulary) and writes a
// checkpoint. There is no early stopping; the loop runs to completion
// unless a checkpoint write fails.
func (t *Trainer) Run(trainData, validData *data.Dataset) error {
	if err := os.MkdirAll(t.cfg.CheckpointDir, 0o755); err != nil {
		return fmt.Errorf("train: create checkpoint dir: %w", err)
	}
	validData.UseVocabularyFrom(trainData)

	for epoch := 1; epoch <= t.cfg.Epochs; epoch++ {
		loss, avg := t.TrainEpoch(epoch, trainData)

		t.logger.Info("epoch complete",
			slog.Int("epoch", epoch),
			slog.Float64("loss", loss),
			slog.Float64("avg_loss", avg),
			slog.Uint64("rss_bytes", processRSS()))
		t.collector.Emit("loss", loss, epoch)
		t.collector.Emit("avg loss", avg, epoch)

		t.Evaluate(epoch, trainData, "train")
		t.Evaluate(epoch, validData, "valid")

		if err := t.checkpoint(epoch, loss); err != nil {
			return err
		}
	}
	return nil
}

// TrainEpoch runs one full pass over the shuffled training set and returns
// the last batch's loss and the epoch's moving-average loss.
func (t *Trainer) TrainEpoch(epoch int, ds *data.Dataset) (loss, avg float64) {
	batches := data.Batches(ds, data.LoaderConfig{
		BatchSize: t.cfg.BatchSize,
		Workers:   t.cfg.Workers,
		Shuffle:   true,
	}, t.rng)

	t.tape.StartRecording()
	defer t.tape.StopRecording()

	var moving movingAverage
	for batch := range batches {
		// Fresh target buffer per batch, sized to the actual batch length:
		// the epoch's final batch is usually short.
		targets := nn.SmoothedTargets(batch.Objects, ds.NumEntities(), t.cfg.LabelSmooth)

		logits := t.model.Forward(t.tape, batch.S, batch.R, true)
		batchLoss := t.loss.Forward(t.tape, logits, targets)

		grads := t.tape.Backward(batchLoss)
		t.optimizer.Step(grads)
		t.tape.Clear()

		loss = float64(batchLoss.Item())
		avg = moving.update(loss)
	}
	return loss, avg
}

// checkpoint writes the full model and optimizer state for the epoch.
// Every epoch is checkpointed and older checkpoints are kept.
func (t *Trainer) checkpoint(epoch int, loss float64) error {
	state := t.model.StateDict()
	for name, tens := range t.optimizer.StateDict() {
		state["optimizer."+name] = tens
	}
	path := filepath.Join(t.cfg.CheckpointDir, fmt.Sprintf("checkpoint_%02d.model", epoch))
	err := serialization.Write(path, state, map[string]string{
		"run":   t.cfg.RunName,
		"epoch": fmt.Sprintf("%d", epoch),
		"loss":  fmt.Sprintf("%g", loss),
	})
	if err != nil {
		return fmt.Errorf("train: checkpoint epoch %d: %w", epoch, err)
	}
	t.logger.Info("checkpoint written", slog.Int("epoch", epoch), slog.String("path", path))
	return nil
}

// movingAverage tracks the exponentially weighted loss. The first observed
// value seeds the average directly; starting from zero would bias the
// first epoch's reported average low.
type movingAverage struct {
	value  float64
	seeded bool
}

func (m *movingAverage) update(loss float64) float64 {
	if !m.seeded {
		m.value = loss
		m.seeded = true
	} else {
		m.value = m.value*0.9 + loss*0.1
	}
	return m.value
}

func processRSS() uint64 {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return 0
	}
	info, err := proc.MemoryInfo()
	if err != nil || info == nil {
		return 0
	}
	return info.RSS
}
