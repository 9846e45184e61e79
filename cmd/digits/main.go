// Command digits trains and evaluates handwritten digit classifiers on
// MNIST-style data.
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"

	"github.com/ffarishta/digits/internal/mnist"
	"github.com/ffarishta/digits/internal/nn"
	"github.com/ffarishta/digits/internal/optim"
	"github.com/ffarishta/digits/internal/train"
)

func main() {
	configPath := flag.String("config", "", "YAML configuration file (flags override it)")
	arch := flag.String("arch", "", "Model architecture: mlp or cnn")
	epochs := flag.Int("epochs", 0, "Number of training epochs")
	batchSize := flag.Int("batch", 0, "Minibatch size")
	lr := flag.Float64("lr", 0, "Learning rate")
	momentum := flag.Float64("momentum", -1, "SGD momentum")
	weightDecay := flag.Float64("weight-decay", -1, "L2 weight decay (2x the regularization strength)")
	hidden := flag.Int("hidden", 0, "Hidden layer size (mlp only)")
	seed := flag.Int64("seed", -1, "Shuffle and initialization seed")

	format := flag.String("format", "", "Data format: csv-pair, kaggle, or idx")
	imagesPath := flag.String("images", "", "Training images file (csv-pair and idx formats)")
	labelsPath := flag.String("labels", "", "Training labels file (csv-pair and idx formats)")
	kagglePath := flag.String("csv", "", "Single training CSV file (kaggle format)")
	testImages := flag.String("test-images", "", "Test images file (csv-pair and idx formats)")
	testLabels := flag.String("test-labels", "", "Test labels file (csv-pair and idx formats)")
	testCSV := flag.String("test-csv", "", "Test CSV file (kaggle format)")

	compare := flag.Bool("compare", false, "Train baseline and weight-decayed models and compare")
	curvesPath := flag.String("curves", "", "Write per-epoch learning curves to this CSV file")
	checkpointPath := flag.String("checkpoint", "", "Write training checkpoints to this file")
	resumePath := flag.String("resume", "", "Resume training from a checkpoint file")
	savePath := flag.String("save", "", "Write the trained model to this file")
	evalPath := flag.String("eval", "", "Skip training; evaluate a saved model")
	flag.Parse()

	config := train.DefaultConfig()
	if *configPath != "" {
		loaded, err := train.LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		config = loaded
	}

	// Explicit flags win over the config file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "arch":
			config.Arch = *arch
		case "epochs":
			config.Epochs = *epochs
		case "batch":
			config.BatchSize = *batchSize
		case "lr":
			config.LR = *lr
		case "momentum":
			config.Momentum = *momentum
		case "weight-decay":
			config.WeightDecay = *weightDecay
		case "hidden":
			config.HiddenSize = *hidden
		case "seed":
			config.Seed = *seed
		case "format":
			config.Data.Format = *format
		case "images":
			config.Data.ImagesPath = *imagesPath
		case "labels":
			config.Data.LabelsPath = *labelsPath
		case "csv":
			config.Data.Path = *kagglePath
			config.Data.Format = train.FormatKaggle
		case "test-images":
			config.Data.TestImagesPath = *testImages
		case "test-labels":
			config.Data.TestLabelsPath = *testLabels
		case "test-csv":
			config.Data.TestPath = *testCSV
		case "curves":
			config.CurvesPath = *curvesPath
		case "checkpoint":
			config.CheckpointPath = *checkpointPath
		}
	})
	if err := config.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	fmt.Printf("Loading %s data...\n", config.Data.Format)
	splits, err := loadSplits(config)
	if err != nil {
		log.Fatalf("Failed to load data: %v", err)
	}
	fmt.Printf("  Train: %d samples, Dev: %d samples", splits.Train.NumSamples(), splits.Dev.NumSamples())
	if splits.Test != nil {
		fmt.Printf(", Test: %d samples", splits.Test.NumSamples())
	}
	fmt.Printf("\n  Normalization: mean=%.3f std=%.3f (train split)\n", splits.Norm.Mean, splits.Norm.Std)

	if *evalPath != "" {
		evaluateSaved(*evalPath, config, splits)
		return
	}

	if *compare {
		compareRuns(config, splits)
		return
	}

	trainer := buildTrainer(config, splits.Norm)
	if *resumePath != "" {
		if err := trainer.Resume(*resumePath); err != nil {
			log.Fatalf("Failed to resume: %v", err)
		}
		fmt.Printf("Resumed run %s after epoch %d\n", trainer.RunID, trainer.StartEpoch)
	}

	fmt.Printf("\nTraining %s (%d parameters) for %d epochs, batch %d, lr %g\n",
		config.Arch, countParameters(trainer.Model), config.Epochs, config.BatchSize, config.LR)

	history, err := trainer.Fit(splits.Train, splits.Dev)
	if err != nil {
		log.Fatalf("Training failed: %v", err)
	}
	if len(history) > 0 {
		last := history.Last()
		fmt.Printf("\nFinal: train acc %.2f%%, dev acc %.2f%%\n",
			last.TrainAccuracy*100, last.DevAccuracy*100)
	}
	if splits.Test != nil {
		testLoss, testAcc := trainer.Evaluate(splits.Test)
		fmt.Printf("Test:  loss %.4f acc %.2f%%\n", testLoss, testAcc*100)
	}

	if config.CurvesPath != "" {
		if err := history.WriteCSV(config.CurvesPath); err != nil {
			log.Fatalf("Failed to write learning curves: %v", err)
		}
		fmt.Printf("Learning curves written to %s\n", config.CurvesPath)
	}
	if *savePath != "" {
		meta := map[string]string{"arch": config.Arch}
		if err := nn.SaveModel(*savePath, trainer.Model, meta); err != nil {
			log.Fatalf("Failed to save model: %v", err)
		}
		fmt.Printf("Model written to %s\n", *savePath)
	}
}

// Splits holds the prepared data: train and dev carved from the main
// dataset, the optional held-out test set, and the normalizer fitted on
// the training split.
type Splits struct {
	Train *mnist.Dataset
	Dev   *mnist.Dataset
	Test  *mnist.Dataset // nil when no test files are configured
	Norm  *mnist.Normalizer
}

// loadDataset loads one dataset in the configured format.
func loadDataset(format, imagesPath, labelsPath, path string) (*mnist.Dataset, error) {
	switch format {
	case train.FormatCSVPair:
		return mnist.LoadCSVPair(imagesPath, labelsPath)
	case train.FormatIDX:
		return mnist.LoadIDX(imagesPath, labelsPath)
	case train.FormatKaggle:
		return mnist.LoadKaggleCSV(path)
	default:
		return nil, fmt.Errorf("unknown data format %q", format)
	}
}

// loadSplits loads the configured dataset, shuffles it with the
// configured seed, and carves off the dev split. All splits — including
// the test set, when one is configured — are standardized with
// statistics computed on the training split only.
func loadSplits(config train.Config) (*Splits, error) {
	dataset, err := loadDataset(config.Data.Format,
		config.Data.ImagesPath, config.Data.LabelsPath, config.Data.Path)
	if err != nil {
		return nil, err
	}

	dataset.Shuffle(config.Seed)

	devSize := config.DevSize
	if devSize > dataset.NumSamples() {
		return nil, fmt.Errorf("dev split of %d exceeds dataset size %d", devSize, dataset.NumSamples())
	}
	devSet, trainSet, err := dataset.SplitHead(devSize)
	if err != nil {
		return nil, err
	}

	norm := &mnist.Normalizer{}
	if err := norm.Fit(trainSet); err != nil {
		return nil, err
	}
	norm.Transform(trainSet)
	norm.Transform(devSet)

	splits := &Splits{Train: trainSet, Dev: devSet, Norm: norm}
	if config.Data.HasTest() {
		testSet, err := loadDataset(config.Data.Format,
			config.Data.TestImagesPath, config.Data.TestLabelsPath, config.Data.TestPath)
		if err != nil {
			return nil, fmt.Errorf("test set: %w", err)
		}
		norm.Transform(testSet)
		splits.Test = testSet
	}
	return splits, nil
}

// buildTrainer constructs the model and optimizer for the configured
// architecture. The MLP trains with plain SGD, decaying weight matrices
// but not biases; the CNN trains with Adam.
func buildTrainer(config train.Config, norm *mnist.Normalizer) *train.Trainer {
	rng := rand.New(rand.NewSource(config.Seed))

	var model *nn.Sequential
	var optimizer optim.Optimizer
	switch config.Arch {
	case train.ArchCNN:
		model = NewCNN(rng)
		optimizer = optim.NewAdam(model.Parameters(), optim.AdamConfig{LR: config.LR})
	default:
		model = NewMLP(config.HiddenSize, rng)
		optimizer = optim.NewSGD(model.Parameters(), optim.SGDConfig{
			LR:          config.LR,
			Momentum:    config.Momentum,
			WeightDecay: config.WeightDecay,
		}).WithDecayFilter(func(p *nn.Parameter) bool {
			return p.Name() == "weight"
		})
	}

	trainer := train.NewTrainer(model, optimizer, config)
	trainer.Metadata = map[string]float64{"norm_mean": norm.Mean, "norm_std": norm.Std}
	trainer.Logf = func(format string, args ...any) {
		fmt.Printf(format+"\n", args...)
	}
	return trainer
}

// compareRuns trains a baseline model and a weight-decayed model from
// the same initialization and reports both accuracies on the test set
// (on the dev split when no test set is configured).
func compareRuns(config train.Config, splits *Splits) {
	decay := config.WeightDecay
	if decay <= 0 {
		decay = 2e-4 // 2x the classic regularization strength of 1e-4
	}

	fmt.Printf("\n=== Baseline (no weight decay) ===\n")
	baseline := config
	baseline.WeightDecay = 0
	baseline.CheckpointPath = ""
	baselineTrainer := buildTrainer(baseline, splits.Norm)
	baselineHistory, err := baselineTrainer.Fit(splits.Train, splits.Dev)
	if err != nil {
		log.Fatalf("Baseline training failed: %v", err)
	}

	fmt.Printf("\n=== Regularized (weight decay %g) ===\n", decay)
	regularized := config
	regularized.WeightDecay = decay
	regularized.CheckpointPath = ""
	regularizedTrainer := buildTrainer(regularized, splits.Norm)
	regularizedHistory, err := regularizedTrainer.Fit(splits.Train, splits.Dev)
	if err != nil {
		log.Fatalf("Regularized training failed: %v", err)
	}

	fmt.Printf("\n=== Comparison ===\n")
	if splits.Test != nil {
		_, baselineAcc := baselineTrainer.Evaluate(splits.Test)
		_, regularizedAcc := regularizedTrainer.Evaluate(splits.Test)
		fmt.Printf("  Baseline:    test acc %.2f%%\n", baselineAcc*100)
		fmt.Printf("  Regularized: test acc %.2f%%\n", regularizedAcc*100)
	} else {
		fmt.Printf("  Baseline:    dev acc %.2f%%\n", baselineHistory.Last().DevAccuracy*100)
		fmt.Printf("  Regularized: dev acc %.2f%%\n", regularizedHistory.Last().DevAccuracy*100)
	}

	if config.CurvesPath != "" {
		if err := regularizedHistory.WriteCSV(config.CurvesPath); err != nil {
			log.Fatalf("Failed to write learning curves: %v", err)
		}
		fmt.Printf("Regularized learning curves written to %s\n", config.CurvesPath)
	}
}

// evaluateSaved loads a model file and reports test accuracy, falling
// back to the train/dev splits when no test set is configured.
func evaluateSaved(path string, config train.Config, splits *Splits) {
	rng := rand.New(rand.NewSource(config.Seed))

	var model *nn.Sequential
	if config.Arch == train.ArchCNN {
		model = NewCNN(rng)
	} else {
		model = NewMLP(config.HiddenSize, rng)
	}
	if err := nn.LoadModel(path, model); err != nil {
		log.Fatalf("Failed to load model: %v", err)
	}

	trainer := train.NewTrainer(model, nil, config)
	if splits.Test != nil {
		testLoss, testAcc := trainer.Evaluate(splits.Test)
		fmt.Printf("Test: loss %.4f acc %.2f%%\n", testLoss, testAcc*100)
		return
	}
	trainLoss, trainAcc := trainer.Evaluate(splits.Train)
	devLoss, devAcc := trainer.Evaluate(splits.Dev)
	fmt.Printf("Train: loss %.4f acc %.2f%%\n", trainLoss, trainAcc*100)
	fmt.Printf("Dev:   loss %.4f acc %.2f%%\n", devLoss, devAcc*100)
}
