package main

import (
	"fmt"
	"log/slog"
	"math/rand"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/convkg-ml/convkg/internal/data"
	"github.com/convkg-ml/convkg/internal/model"
	"github.com/convkg-ml/convkg/internal/optim"
	"github.com/convkg-ml/convkg/internal/telemetry"
	"github.com/convkg-ml/convkg/internal/train"
)

func trainCmd() *cobra.Command {
	cfg := defaultRunConfig()
	var configPath string

	cmd := &cobra.Command{
		Use:   "train <train.json> <valid.json>",
		Short: "Train DSConvE on a preprocessed knowledge graph",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath != "" {
				// Config file applies over defaults; explicit flags win.
				fileCfg := cfg
				if err := loadConfigFile(configPath, &fileCfg); err != nil {
					return err
				}
				applyFlagOverrides(cmd, &fileCfg, cfg)
				cfg = fileCfg
			}
			return runTraining(args[0], args[1], cfg)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "YAML config file")
	cmd.Flags().StringVar(&cfg.Name, "name", "", "run name (default: random)")
	cmd.Flags().IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "mini-batch size")
	cmd.Flags().IntVar(&cfg.Epochs, "epochs", cfg.Epochs, "number of training epochs")
	cmd.Flags().Float32Var(&cfg.LabelSmooth, "label-smooth", cfg.LabelSmooth, "label smoothing factor")
	cmd.Flags().Float32Var(&cfg.LearningRate, "lr", cfg.LearningRate, "Adam learning rate")
	cmd.Flags().IntVar(&cfg.Workers, "workers", cfg.Workers, "batch collation workers")
	cmd.Flags().Int64Var(&cfg.Seed, "seed", cfg.Seed, "random seed")
	cmd.Flags().StringVar(&cfg.LogFile, "log-file", "", "log file path (default: <name>.log)")
	cmd.Flags().StringVar(&cfg.MetricsAddr, "metrics-addr", "", "prometheus listen address, e.g. :9108")
	cmd.Flags().StringVar(&cfg.TelemetryFile, "telemetry-file", "", "TSV scalar output path")
	return cmd
}

// applyFlagOverrides re-applies any flag the user set explicitly on top of
// the file-loaded config.
func applyFlagOverrides(cmd *cobra.Command, dst *RunConfig, flagValues RunConfig) {
	if cmd.Flags().Changed("name") {
		dst.Name = flagValues.Name
	}
	if cmd.Flags().Changed("batch-size") {
		dst.BatchSize = flagValues.BatchSize
	}
	if cmd.Flags().Changed("epochs") {
		dst.Epochs = flagValues.Epochs
	}
	if cmd.Flags().Changed("label-smooth") {
		dst.LabelSmooth = flagValues.LabelSmooth
	}
	if cmd.Flags().Changed("lr") {
		dst.LearningRate = flagValues.LearningRate
	}
	if cmd.Flags().Changed("workers") {
		dst.Workers = flagValues.Workers
	}
	if cmd.Flags().Changed("seed") {
		dst.Seed = flagValues.Seed
	}
	if cmd.Flags().Changed("log-file") {
		dst.LogFile = flagValues.LogFile
	}
	if cmd.Flags().Changed("metrics-addr") {
		dst.MetricsAddr = flagValues.MetricsAddr
	}
	if cmd.Flags().Changed("telemetry-file") {
		dst.TelemetryFile = flagValues.TelemetryFile
	}
}

func runTraining(trainPath, validPath string, cfg RunConfig) error {
	if cfg.Name == "" {
		cfg.Name = uuid.NewString()[:8]
	}
	logFile := cfg.LogFile
	if logFile == "" {
		logFile = cfg.Name + ".log"
	}

	out, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer out.Close()
	logger := slog.New(slog.NewJSONHandler(out, nil))
	fmt.Printf("Logging to %s\n", logFile)

	trainData, err := data.Load(trainPath)
	if err != nil {
		return err
	}
	validData, err := data.Load(validPath)
	if err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	modelCfg := buildModelConfig(cfg, trainData)
	m, err := model.New(modelCfg, rng)
	if err != nil {
		return err
	}
	opt := optim.NewAdam(m.Parameters(), optim.AdamConfig{LR: cfg.LearningRate})

	collector := buildCollector(cfg)
	if err := collector.Open(cfg.Name); err != nil {
		return fmt.Errorf("open telemetry: %w", err)
	}
	defer func() {
		if err := collector.Close(); err != nil {
			logger.Error("closing telemetry", slog.String("error", err.Error()))
		}
	}()

	logger.Info("run starting",
		slog.String("run", cfg.Name),
		slog.Int("entities", trainData.NumEntities()),
		slog.Int("relations", trainData.NumRelations()),
		slog.Int("queries", trainData.NumQueries()),
		slog.Int("epochs", cfg.Epochs),
		slog.Int("batch_size", cfg.BatchSize))

	trainer := train.New(train.Config{
		RunName:     cfg.Name,
		Epochs:      cfg.Epochs,
		BatchSize:   cfg.BatchSize,
		LabelSmooth: cfg.LabelSmooth,
		Workers:     cfg.Workers,
	}, m, opt, collector, logger, rng)

	if err := trainer.Run(trainData, validData); err != nil {
		logger.Error("run failed", slog.String("error", err.Error()))
		return err
	}
	logger.Info("run complete", slog.String("run", cfg.Name))
	return nil
}

func buildModelConfig(cfg RunConfig, ds *data.Dataset) model.Config {
	mc := model.DefaultConfig(ds.NumEntities(), ds.NumRelations())
	if cfg.Model.EmbeddingHeight > 0 {
		mc.EmbeddingHeight = cfg.Model.EmbeddingHeight
	}
	if cfg.Model.EmbeddingWidth > 0 {
		mc.EmbeddingWidth = cfg.Model.EmbeddingWidth
	}
	if cfg.Model.ConvChannels > 0 {
		mc.ConvChannels = cfg.Model.ConvChannels
	}
	if cfg.Model.KernelSize > 0 {
		mc.KernelSize = cfg.Model.KernelSize
	}
	if cfg.Model.EmbedDropout > 0 {
		mc.EmbedDropout = cfg.Model.EmbedDropout
	}
	if cfg.Model.FeatureMapDropout > 0 {
		mc.FeatureMapDropout = cfg.Model.FeatureMapDropout
	}
	if cfg.Model.ProjDropout > 0 {
		mc.ProjDropout = cfg.Model.ProjDropout
	}
	return mc
}

func buildCollector(cfg RunConfig) telemetry.Collector {
	var sinks telemetry.Multi
	if cfg.MetricsAddr != "" {
		sinks = append(sinks, telemetry.NewPromCollector(cfg.MetricsAddr))
	}
	if cfg.TelemetryFile != "" {
		sinks = append(sinks, telemetry.NewTSVCollector(cfg.TelemetryFile))
	}
	if len(sinks) == 0 {
		return telemetry.Nop{}
	}
	return sinks
}
