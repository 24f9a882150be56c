package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RunConfig is the full training configuration. Values come from defaults,
// then an optional YAML config file, then command-line flags (highest
// precedence).
type RunConfig struct {
	Name          string  `yaml:"name"`
	BatchSize     int     `yaml:"batch_size"`
	Epochs        int     `yaml:"epochs"`
	LabelSmooth   float32 `yaml:"label_smooth"`
	LearningRate  float32 `yaml:"learning_rate"`
	Workers       int     `yaml:"workers"`
	Seed          int64   `yaml:"seed"`
	LogFile       string  `yaml:"log_file"`
	MetricsAddr   string  `yaml:"metrics_addr"`   // empty disables the prometheus sink
	TelemetryFile string  `yaml:"telemetry_file"` // empty disables the TSV sink

	Model ModelConfig `yaml:"model"`
}

// ModelConfig overrides architecture hyperparameters. Zero values keep the
// published defaults.
type ModelConfig struct {
	EmbeddingHeight   int     `yaml:"embedding_height"`
	EmbeddingWidth    int     `yaml:"embedding_width"`
	ConvChannels      int     `yaml:"conv_channels"`
	KernelSize        int     `yaml:"kernel_size"`
	EmbedDropout      float32 `yaml:"embed_dropout"`
	FeatureMapDropout float32 `yaml:"feature_map_dropout"`
	ProjDropout       float32 `yaml:"proj_dropout"`
}

func defaultRunConfig() RunConfig {
	return RunConfig{
		BatchSize:    256,
		Epochs:       90,
		LabelSmooth:  0.1,
		LearningRate: 0.003,
		Workers:      4,
		Seed:         1,
	}
}

// loadConfigFile unmarshals path over cfg in place.
func loadConfigFile(path string, cfg *RunConfig) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}
