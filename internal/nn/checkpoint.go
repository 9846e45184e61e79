package nn

import (
	"fmt"
	"strings"
	"time"

	"github.com/ffarishta/digits/internal/serialization"
	"github.com/ffarishta/digits/internal/tensor"
)

// OptimizerState is the slice of the optimizer surface a checkpoint needs.
// Declared here rather than importing the optim package to avoid an
// import cycle; optimizers implement it.
type OptimizerState interface {
	StateDict() map[string]*tensor.Tensor
	LoadStateDict(stateDict map[string]*tensor.Tensor) error
	LR() float64
}

// Checkpoint is a complete training state snapshot: model parameters,
// optimizer state, and training metadata. Saving one lets an interrupted
// training run resume where it stopped.
type Checkpoint struct {
	Model     Module
	Optimizer OptimizerState
	Epoch     int
	Loss      float64
	RunID     string             // UUID of the training run; assigned on first save if empty
	Metadata  map[string]float64 // numeric training metadata (e.g. normalization stats)
	CreatedAt time.Time
}

const optimizerPrefix = "optimizer."

// Save writes the checkpoint to a .dgts file.
func (c *Checkpoint) Save(path string) error {
	combined := make(map[string]*tensor.Tensor)
	for name, t := range c.Model.StateDict() {
		combined[name] = t
	}
	for name, t := range c.Optimizer.StateDict() {
		combined[optimizerPrefix+name] = t
	}

	header := serialization.Header{
		RunID:     c.RunID,
		ModelType: "Checkpoint",
		CheckpointMeta: &serialization.CheckpointMeta{
			IsCheckpoint:  true,
			Epoch:         c.Epoch,
			Loss:          c.Loss,
			OptimizerType: fmt.Sprintf("%T", c.Optimizer),
			TrainingMeta:  c.Metadata,
		},
	}

	if err := serialization.WriteStateDict(path, combined, header); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	return nil
}

// LoadCheckpoint restores a checkpoint from path into a pre-constructed
// model and optimizer. Both must have the same architecture and
// configuration as when the checkpoint was saved.
func LoadCheckpoint(path string, model Module, optimizer OptimizerState) (*Checkpoint, error) {
	stateDict, header, err := serialization.ReadStateDict(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	if header.CheckpointMeta == nil || !header.CheckpointMeta.IsCheckpoint {
		return nil, fmt.Errorf("file %s is not a checkpoint", path)
	}

	modelState := make(map[string]*tensor.Tensor)
	optimizerState := make(map[string]*tensor.Tensor)
	for name, t := range stateDict {
		if strings.HasPrefix(name, optimizerPrefix) {
			optimizerState[name[len(optimizerPrefix):]] = t
		} else {
			modelState[name] = t
		}
	}

	if err := model.LoadStateDict(modelState); err != nil {
		return nil, fmt.Errorf("failed to load model state: %w", err)
	}
	if err := optimizer.LoadStateDict(optimizerState); err != nil {
		return nil, fmt.Errorf("failed to load optimizer state: %w", err)
	}

	return &Checkpoint{
		Model:     model,
		Optimizer: optimizer,
		Epoch:     header.CheckpointMeta.Epoch,
		Loss:      header.CheckpointMeta.Loss,
		RunID:     header.RunID,
		Metadata:  header.CheckpointMeta.TrainingMeta,
		CreatedAt: header.CreatedAt,
	}, nil
}

// SaveModel writes just the model parameters (no optimizer state) to a
// .dgts file. Used for final trained models where resuming is not needed.
func SaveModel(path string, model Module, metadata map[string]string) error {
	header := serialization.Header{
		ModelType: fmt.Sprintf("%T", model),
		Metadata:  metadata,
	}
	if err := serialization.WriteStateDict(path, model.StateDict(), header); err != nil {
		return fmt.Errorf("failed to write model: %w", err)
	}
	return nil
}

// LoadModel restores model parameters saved with SaveModel.
func LoadModel(path string, model Module) error {
	stateDict, _, err := serialization.ReadStateDict(path)
	if err != nil {
		return fmt.Errorf("failed to read model: %w", err)
	}
	if err := model.LoadStateDict(stateDict); err != nil {
		return fmt.Errorf("failed to load model state: %w", err)
	}
	return nil
}
