package train_test

import (
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ffarishta/digits/internal/mnist"
	"github.com/ffarishta/digits/internal/nn"
	"github.com/ffarishta/digits/internal/optim"
	"github.com/ffarishta/digits/internal/serialization"
	"github.com/ffarishta/digits/internal/train"
)

// separableDataset builds n examples of an easy two-class problem: class
// c lights up pixel block c with a bit of noise, so a small network can
// learn it in a few epochs.
func separableDataset(t *testing.T, n int, rng *rand.Rand) *mnist.Dataset {
	t.Helper()
	images := make([][]float64, n)
	labels := make([]int, n)
	for i := range images {
		class := i % 2
		img := make([]float64, mnist.ImageSize)
		for j := range img {
			img[j] = rng.Float64() * 0.1
		}
		for j := class * 10; j < class*10+10; j++ {
			img[j] = 1.0
		}
		images[i] = img
		labels[i] = class
	}
	dataset, err := mnist.NewDataset(images, labels)
	require.NoError(t, err)
	return dataset
}

func smallConfig() train.Config {
	config := train.DefaultConfig()
	config.HiddenSize = 16
	config.Epochs = 8
	config.BatchSize = 16
	config.LR = 1.0
	return config
}

func smallMLP(hidden int, rng *rand.Rand) *nn.Sequential {
	return nn.NewSequential(
		nn.NewLinear(mnist.ImageSize, hidden, rng),
		nn.NewSigmoid(),
		nn.NewLinear(hidden, mnist.NumClasses, rng),
	)
}

func TestTrainer_LearnsSeparableProblem(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	trainSet := separableDataset(t, 64, rng)
	devSet := separableDataset(t, 32, rng)

	config := smallConfig()
	config.Epochs = 30
	model := smallMLP(config.HiddenSize, rng)
	optimizer := optim.NewSGD(model.Parameters(), optim.SGDConfig{LR: config.LR})

	trainer := train.NewTrainer(model, optimizer, config)
	history, err := trainer.Fit(trainSet, devSet)
	require.NoError(t, err)
	require.Len(t, history, config.Epochs)

	first, last := history[0], history.Last()
	assert.Less(t, last.TrainLoss, first.TrainLoss, "training loss should decrease")
	assert.GreaterOrEqual(t, last.DevAccuracy, 0.9, "an easy problem should be learned")

	for i, stats := range history {
		assert.Equal(t, i+1, stats.Epoch)
	}
}

func TestTrainer_EmptyTrainSet(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	config := smallConfig()
	model := smallMLP(config.HiddenSize, rng)
	optimizer := optim.NewSGD(model.Parameters(), optim.SGDConfig{LR: config.LR})

	_, err := train.NewTrainer(model, optimizer, config).Fit(&mnist.Dataset{}, nil)
	assert.Error(t, err)
}

func TestTrainer_Evaluate_WeightsShortBatch(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	// 1003 examples: the evaluation pass has a 3-example final batch.
	dataset := separableDataset(t, 1003, rng)

	config := smallConfig()
	model := smallMLP(config.HiddenSize, rng)
	optimizer := optim.NewSGD(model.Parameters(), optim.SGDConfig{LR: config.LR})
	trainer := train.NewTrainer(model, optimizer, config)

	loss, accuracy := trainer.Evaluate(dataset)
	assert.Greater(t, loss, 0.0)
	assert.GreaterOrEqual(t, accuracy, 0.0)
	assert.LessOrEqual(t, accuracy, 1.0)

	// An untrained 10-way model on a 2-class problem scores near chance;
	// mean loss stays near ln(10) rather than being skewed by the tiny
	// final batch.
	assert.InDelta(t, 2.30, loss, 0.5)
}

func TestTrainer_CheckpointAndResume(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	trainSet := separableDataset(t, 64, rng)

	config := smallConfig()
	config.Epochs = 4
	config.CheckpointPath = filepath.Join(t.TempDir(), "checkpoint.dgts")
	config.CheckpointEvery = 2

	model := smallMLP(config.HiddenSize, rng)
	optimizer := optim.NewSGD(model.Parameters(), optim.SGDConfig{LR: config.LR, Momentum: 0.9})
	trainer := train.NewTrainer(model, optimizer, config)
	trainer.Metadata = map[string]float64{"norm_mean": 0.15}

	_, err := trainer.Fit(trainSet, nil)
	require.NoError(t, err)

	// Resume into a fresh model: training picks up after the final epoch,
	// so a full Fit call has nothing left to do.
	rng2 := rand.New(rand.NewSource(99))
	resumedModel := smallMLP(config.HiddenSize, rng2)
	resumedOpt := optim.NewSGD(resumedModel.Parameters(), optim.SGDConfig{LR: config.LR, Momentum: 0.9})
	resumed := train.NewTrainer(resumedModel, resumedOpt, config)

	require.NoError(t, resumed.Resume(config.CheckpointPath))
	assert.Equal(t, 4, resumed.StartEpoch)
	assert.Equal(t, 0.15, resumed.Metadata["norm_mean"])
	assert.NotEmpty(t, resumed.RunID)

	history, err := resumed.Fit(trainSet, nil)
	require.NoError(t, err)
	assert.Empty(t, history, "all epochs already completed")

	// The restored model scores the same as the one that trained.
	wantLoss, wantAcc := trainer.Evaluate(trainSet)
	gotLoss, gotAcc := resumed.Evaluate(trainSet)
	assert.InDelta(t, wantLoss, gotLoss, 1e-12)
	assert.Equal(t, wantAcc, gotAcc)
}

func TestTrainer_CheckpointsShareOneRunID(t *testing.T) {
	rng := rand.New(rand.NewSource(8))
	trainSet := separableDataset(t, 32, rng)

	config := smallConfig()
	config.Epochs = 2
	config.CheckpointPath = filepath.Join(t.TempDir(), "checkpoint.dgts")
	config.CheckpointEvery = 1

	model := smallMLP(config.HiddenSize, rng)
	optimizer := optim.NewSGD(model.Parameters(), optim.SGDConfig{LR: config.LR})
	trainer := train.NewTrainer(model, optimizer, config)

	_, err := trainer.Fit(trainSet, nil)
	require.NoError(t, err)
	require.NotEmpty(t, trainer.RunID, "saving a checkpoint assigns the trainer's run ID")

	_, header, err := serialization.ReadStateDict(config.CheckpointPath)
	require.NoError(t, err)
	assert.Equal(t, trainer.RunID, header.RunID, "the saved checkpoint carries the trainer's ID")

	// Extending the run keeps the same ID on later checkpoints.
	trainer.Config.Epochs = 3
	_, err = trainer.Fit(trainSet, nil)
	require.NoError(t, err)

	_, header, err = serialization.ReadStateDict(config.CheckpointPath)
	require.NoError(t, err)
	assert.Equal(t, trainer.RunID, header.RunID)
}

func TestTrainer_ResumeContinuesEpochs(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	trainSet := separableDataset(t, 32, rng)

	dir := t.TempDir()
	config := smallConfig()
	config.Epochs = 2
	config.CheckpointPath = filepath.Join(dir, "checkpoint.dgts")

	model := smallMLP(config.HiddenSize, rng)
	optimizer := optim.NewSGD(model.Parameters(), optim.SGDConfig{LR: config.LR})
	trainer := train.NewTrainer(model, optimizer, config)
	_, err := trainer.Fit(trainSet, nil)
	require.NoError(t, err)

	// Extend the run to 5 epochs and resume: exactly 3 more run.
	config.Epochs = 5
	resumedModel := smallMLP(config.HiddenSize, rand.New(rand.NewSource(5)))
	resumedOpt := optim.NewSGD(resumedModel.Parameters(), optim.SGDConfig{LR: config.LR})
	resumed := train.NewTrainer(resumedModel, resumedOpt, config)
	require.NoError(t, resumed.Resume(config.CheckpointPath))

	history, err := resumed.Fit(trainSet, nil)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, 3, history[0].Epoch)
	assert.Equal(t, 5, history.Last().Epoch)
}

func TestTrainer_CNNForwardBackwardPath(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	trainSet := separableDataset(t, 8, rng)

	config := smallConfig()
	config.Arch = train.ArchCNN
	config.Epochs = 1
	config.BatchSize = 4

	// A tiny conv stack; enough to exercise the NCHW input path.
	model := nn.NewSequential(
		nn.NewConv2D(1, 2, 3, 3, 1, 1, rng),
		nn.NewReLU(),
		nn.NewMaxPool2D(2, 2),
		nn.NewFlatten(),
		nn.NewLinear(2*14*14, mnist.NumClasses, rng),
	)
	optimizer := optim.NewAdam(model.Parameters(), optim.AdamConfig{})

	history, err := train.NewTrainer(model, optimizer, config).Fit(trainSet, nil)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Greater(t, history[0].TrainLoss, 0.0)
}
