package mnist

import (
	"fmt"
	"math"
)

// Normalizer standardizes pixel values to zero mean and unit variance
// using a single global mean and standard deviation over all pixels.
//
// Fit on the training split only; the same statistics then transform the
// development and test splits so held-out data never leaks into them.
type Normalizer struct {
	Mean float64
	Std  float64
}

// Fit computes the global pixel mean and standard deviation of a dataset.
func (n *Normalizer) Fit(dataset *Dataset) error {
	if dataset.NumSamples() == 0 {
		return fmt.Errorf("mnist: cannot fit normalizer on an empty dataset")
	}

	count := 0
	sum := 0.0
	for _, img := range dataset.Images {
		for _, v := range img {
			sum += v
			count++
		}
	}
	mean := sum / float64(count)

	sumSq := 0.0
	for _, img := range dataset.Images {
		for _, v := range img {
			diff := v - mean
			sumSq += diff * diff
		}
	}
	std := math.Sqrt(sumSq / float64(count))
	if std == 0 {
		return fmt.Errorf("mnist: zero pixel variance, cannot standardize")
	}

	n.Mean = mean
	n.Std = std
	return nil
}

// Transform standardizes a dataset in place: pixel = (pixel - mean) / std.
func (n *Normalizer) Transform(dataset *Dataset) {
	for _, img := range dataset.Images {
		for i := range img {
			img[i] = (img[i] - n.Mean) / n.Std
		}
	}
}

// FitTransform fits on the dataset and standardizes it in one call.
func (n *Normalizer) FitTransform(dataset *Dataset) error {
	if err := n.Fit(dataset); err != nil {
		return err
	}
	n.Transform(dataset)
	return nil
}
