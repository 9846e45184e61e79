package train

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/ffarishta/digits/internal/mnist"
	"github.com/ffarishta/digits/internal/nn"
	"github.com/ffarishta/digits/internal/optim"
	"github.com/ffarishta/digits/internal/tensor"
)

// evalBatchSize bounds memory during full-pass metric computation.
const evalBatchSize = 1000

// Trainer runs the minibatch training loop for a model and optimizer.
//
// After each epoch's parameter updates it makes a full pass over the
// training and development splits and records loss and accuracy for
// both, building the learning-curve History.
type Trainer struct {
	Model     nn.Module
	Optimizer optim.Optimizer
	Config    Config

	// StartEpoch is the last completed epoch; Fit continues from
	// StartEpoch+1. Set by Resume.
	StartEpoch int

	// RunID ties checkpoints of one run together. Assigned on the first
	// checkpoint save if empty.
	RunID string

	// Metadata is carried into checkpoints, e.g. normalization
	// statistics the model was trained under.
	Metadata map[string]float64

	// Logf, when non-nil, receives per-epoch progress lines.
	Logf func(format string, args ...any)

	loss *nn.CrossEntropyLoss
}

// NewTrainer creates a trainer for the given model and optimizer.
func NewTrainer(model nn.Module, optimizer optim.Optimizer, config Config) *Trainer {
	return &Trainer{
		Model:     model,
		Optimizer: optimizer,
		Config:    config,
		loss:      nn.NewCrossEntropyLoss(),
	}
}

// features packs a dataset into the input tensor shape the configured
// architecture expects.
func (t *Trainer) features(d *mnist.Dataset) *tensor.Tensor {
	if t.Config.Arch == ArchCNN {
		return d.FeaturesNCHW()
	}
	return d.Features()
}

// Fit trains the model and returns the per-epoch history.
//
// Each epoch makes one pass over trainSet in consecutive minibatches
// (the final short batch included), then evaluates both splits.
// devSet may be nil, in which case dev metrics stay zero.
func (t *Trainer) Fit(trainSet, devSet *mnist.Dataset) (History, error) {
	if trainSet.NumSamples() == 0 {
		return nil, fmt.Errorf("train: empty training set")
	}

	var history History
	for epoch := t.StartEpoch + 1; epoch <= t.Config.Epochs; epoch++ {
		for _, batch := range trainSet.Batches(t.Config.BatchSize) {
			logits := t.Model.Forward(t.features(batch))
			t.loss.Forward(logits, batch.Labels)

			t.Optimizer.ZeroGrad()
			t.Model.Backward(t.loss.Backward())
			t.Optimizer.Step()
		}

		stats := EpochStats{Epoch: epoch}
		stats.TrainLoss, stats.TrainAccuracy = t.Evaluate(trainSet)
		if devSet != nil && devSet.NumSamples() > 0 {
			stats.DevLoss, stats.DevAccuracy = t.Evaluate(devSet)
		}
		history = append(history, stats)

		if t.Logf != nil {
			t.Logf("epoch %d/%d: train loss %.4f acc %.2f%% | dev loss %.4f acc %.2f%%",
				epoch, t.Config.Epochs,
				stats.TrainLoss, stats.TrainAccuracy*100,
				stats.DevLoss, stats.DevAccuracy*100)
		}

		if err := t.maybeCheckpoint(epoch, stats.TrainLoss); err != nil {
			return history, err
		}
	}
	return history, nil
}

func (t *Trainer) maybeCheckpoint(epoch int, loss float64) error {
	if t.Config.CheckpointPath == "" {
		return nil
	}
	every := t.Config.CheckpointEvery
	if every <= 0 {
		every = 1
	}
	if epoch%every != 0 && epoch != t.Config.Epochs {
		return nil
	}

	// Mint the run ID here, not in the writer, so every checkpoint of
	// this run carries the same one.
	if t.RunID == "" {
		t.RunID = uuid.NewString()
	}

	checkpoint := &nn.Checkpoint{
		Model:     t.Model,
		Optimizer: t.Optimizer,
		Epoch:     epoch,
		Loss:      loss,
		RunID:     t.RunID,
		Metadata:  t.Metadata,
	}
	if err := checkpoint.Save(t.Config.CheckpointPath); err != nil {
		return fmt.Errorf("epoch %d: %w", epoch, err)
	}
	return nil
}

// Resume restores model and optimizer state from a checkpoint so Fit
// continues after the checkpointed epoch.
func (t *Trainer) Resume(path string) error {
	checkpoint, err := nn.LoadCheckpoint(path, t.Model, t.Optimizer)
	if err != nil {
		return err
	}
	t.StartEpoch = checkpoint.Epoch
	t.RunID = checkpoint.RunID
	t.Metadata = checkpoint.Metadata
	return nil
}

// Evaluate computes mean loss and accuracy over a dataset without
// updating parameters. The pass runs in fixed-size batches; a short
// final batch contributes in proportion to its size.
func (t *Trainer) Evaluate(dataset *mnist.Dataset) (loss, accuracy float64) {
	n := dataset.NumSamples()
	if n == 0 {
		return 0, 0
	}

	evalLoss := nn.NewCrossEntropyLoss()
	for _, batch := range dataset.Batches(evalBatchSize) {
		logits := t.Model.Forward(t.features(batch))
		weight := float64(batch.NumSamples())
		loss += evalLoss.Forward(logits, batch.Labels) * weight
		accuracy += nn.Accuracy(logits, batch.Labels) * weight
	}
	return loss / float64(n), accuracy / float64(n)
}
