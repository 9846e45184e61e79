package train

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
)

// EpochStats records the metrics of one training epoch, measured by a
// full pass over each split after the epoch's updates.
type EpochStats struct {
	Epoch         int
	TrainLoss     float64
	TrainAccuracy float64
	DevLoss       float64
	DevAccuracy   float64
}

// History is the per-epoch learning curve of a training run.
type History []EpochStats

// Last returns the stats of the final epoch.
func (h History) Last() EpochStats {
	if len(h) == 0 {
		return EpochStats{}
	}
	return h[len(h)-1]
}

// WriteCSV writes the learning curves as a CSV file with one row per
// epoch, suitable for plotting with any external tool.
func (h History) WriteCSV(path string) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create curves file: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"epoch", "train_loss", "train_accuracy", "dev_loss", "dev_accuracy"}); err != nil {
		return err
	}
	for _, stats := range h {
		row := []string{
			strconv.Itoa(stats.Epoch),
			formatMetric(stats.TrainLoss),
			formatMetric(stats.TrainAccuracy),
			formatMetric(stats.DevLoss),
			formatMetric(stats.DevAccuracy),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func formatMetric(v float64) string {
	return strconv.FormatFloat(v, 'g', 10, 64)
}
