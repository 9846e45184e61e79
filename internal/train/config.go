// Package train drives model training: configuration, the epoch loop,
// evaluation, and learning-curve history.
package train

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Supported model architectures.
const (
	ArchMLP = "mlp"
	ArchCNN = "cnn"
)

// Supported data formats.
const (
	FormatCSVPair = "csv-pair"
	FormatKaggle  = "kaggle"
	FormatIDX     = "idx"
)

// DataConfig selects the dataset files and their format.
//
// For csv-pair and idx, ImagesPath and LabelsPath name the two training
// files; for kaggle, Path names the single CSV. The Test* fields name
// the held-out test set in the same format; it is standardized with the
// training split's statistics and never trained on.
type DataConfig struct {
	Format     string `yaml:"format"`
	Path       string `yaml:"path"`
	ImagesPath string `yaml:"images_path"`
	LabelsPath string `yaml:"labels_path"`

	TestPath       string `yaml:"test_path"`
	TestImagesPath string `yaml:"test_images_path"`
	TestLabelsPath string `yaml:"test_labels_path"`
}

// HasTest reports whether a test set is configured.
func (d DataConfig) HasTest() bool {
	if d.Format == FormatKaggle {
		return d.TestPath != ""
	}
	return d.TestImagesPath != "" && d.TestLabelsPath != ""
}

// Config holds all training hyperparameters.
//
// The zero-value-free defaults reproduce the classic two-layer run:
// 300 hidden sigmoid units, 30 epochs of minibatch gradient descent with
// batch size 1000 and learning rate 5.0, a fixed shuffle seed, and the
// first 10000 examples held out as the development set.
type Config struct {
	Arch        string  `yaml:"arch"`
	HiddenSize  int     `yaml:"hidden_size"`
	Epochs      int     `yaml:"epochs"`
	BatchSize   int     `yaml:"batch_size"`
	LR          float64 `yaml:"learning_rate"`
	Momentum    float64 `yaml:"momentum"`
	WeightDecay float64 `yaml:"weight_decay"`
	Seed        int64   `yaml:"seed"`
	DevSize     int     `yaml:"dev_size"`

	Data DataConfig `yaml:"data"`

	// CheckpointPath, when set, receives a training checkpoint every
	// CheckpointEvery epochs (every epoch if CheckpointEvery is 0).
	CheckpointPath  string `yaml:"checkpoint_path"`
	CheckpointEvery int    `yaml:"checkpoint_every"`

	// CurvesPath, when set, receives per-epoch learning curves as CSV.
	CurvesPath string `yaml:"curves_path"`
}

// DefaultConfig returns the classic two-layer configuration.
func DefaultConfig() Config {
	return Config{
		Arch:       ArchMLP,
		HiddenSize: 300,
		Epochs:     30,
		BatchSize:  1000,
		LR:         5.0,
		Seed:       100,
		DevSize:    10000,
		Data:       DataConfig{Format: FormatCSVPair},
	}
}

// LoadConfig reads a YAML configuration file over the defaults, so a
// file only has to name the fields it changes.
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()

	raw, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, &config); err != nil {
		return config, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return config, err
	}
	return config, nil
}

// Validate checks the configuration for nonsensical values.
func (c *Config) Validate() error {
	if c.Arch != ArchMLP && c.Arch != ArchCNN {
		return fmt.Errorf("unknown architecture %q (want %s or %s)", c.Arch, ArchMLP, ArchCNN)
	}
	if c.HiddenSize <= 0 {
		return fmt.Errorf("hidden_size must be positive, got %d", c.HiddenSize)
	}
	if c.Epochs <= 0 {
		return fmt.Errorf("epochs must be positive, got %d", c.Epochs)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive, got %d", c.BatchSize)
	}
	if c.LR <= 0 {
		return fmt.Errorf("learning_rate must be positive, got %f", c.LR)
	}
	if c.Momentum < 0 || c.Momentum >= 1 {
		return fmt.Errorf("momentum must be in [0, 1), got %f", c.Momentum)
	}
	if c.WeightDecay < 0 {
		return fmt.Errorf("weight_decay must be non-negative, got %f", c.WeightDecay)
	}
	if c.DevSize < 0 {
		return fmt.Errorf("dev_size must be non-negative, got %d", c.DevSize)
	}
	switch c.Data.Format {
	case FormatCSVPair, FormatIDX, FormatKaggle:
	default:
		return fmt.Errorf("unknown data format %q", c.Data.Format)
	}
	return nil
}
