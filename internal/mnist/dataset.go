// Package mnist loads and prepares MNIST-style handwritten digit data.
//
// Three on-disk formats are supported: paired CSV files (one file of
// pixel rows, one file of labels), single-file Kaggle CSV (label followed
// by 784 pixel columns), and the original IDX binary format, optionally
// gzip-compressed.
package mnist

import (
	"fmt"
	"math/rand"

	"github.com/ffarishta/digits/internal/tensor"
)

// ImageSize is the flattened length of one MNIST image (28x28 pixels).
const ImageSize = 28 * 28

// NumClasses is the number of digit classes.
const NumClasses = 10

// Dataset holds a set of images and their labels.
//
// Each image is a flat slice of ImageSize pixel values; Labels[i] is the
// digit drawn in Images[i].
type Dataset struct {
	Images [][]float64
	Labels []int
}

// NewDataset creates a dataset, validating that images and labels line up.
func NewDataset(images [][]float64, labels []int) (*Dataset, error) {
	if len(images) != len(labels) {
		return nil, fmt.Errorf("mnist: %d images but %d labels", len(images), len(labels))
	}
	for i, img := range images {
		if len(img) != ImageSize {
			return nil, fmt.Errorf("mnist: image %d has %d pixels, expected %d", i, len(img), ImageSize)
		}
	}
	for i, label := range labels {
		if label < 0 || label >= NumClasses {
			return nil, fmt.Errorf("mnist: label %d out of range at index %d", label, i)
		}
	}
	return &Dataset{Images: images, Labels: labels}, nil
}

// NumSamples returns the number of examples in the dataset.
func (d *Dataset) NumSamples() int {
	return len(d.Images)
}

// Shuffle permutes the dataset in place using the given seed. The same
// seed always produces the same permutation, so a train/dev split taken
// after shuffling is reproducible.
func (d *Dataset) Shuffle(seed int64) {
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(d.Images), func(i, j int) {
		d.Images[i], d.Images[j] = d.Images[j], d.Images[i]
		d.Labels[i], d.Labels[j] = d.Labels[j], d.Labels[i]
	})
}

// SplitHead splits off the first n examples as one dataset and the rest
// as another. Typically called after Shuffle to carve out a held-out
// development set.
func (d *Dataset) SplitHead(n int) (head, tail *Dataset, err error) {
	if n < 0 || n > len(d.Images) {
		return nil, nil, fmt.Errorf("mnist: cannot split %d examples off a dataset of %d", n, len(d.Images))
	}
	head = &Dataset{Images: d.Images[:n], Labels: d.Labels[:n]}
	tail = &Dataset{Images: d.Images[n:], Labels: d.Labels[n:]}
	return head, tail, nil
}

// Split divides the dataset into two parts, holding out the given
// fraction as the second return value. Split(0.2) returns 80% train and
// 20% held out.
func (d *Dataset) Split(holdout float64) (train, held *Dataset, err error) {
	if holdout < 0 || holdout > 1 {
		return nil, nil, fmt.Errorf("mnist: holdout fraction %f outside [0, 1]", holdout)
	}
	n := int(float64(len(d.Images)) * holdout)
	held, train, err = d.SplitHead(n)
	return train, held, err
}

// Subset returns a view of examples [start, end).
func (d *Dataset) Subset(start, end int) *Dataset {
	if start < 0 || end > len(d.Images) || start > end {
		panic(fmt.Sprintf("mnist: invalid subset [%d, %d) of %d examples", start, end, len(d.Images)))
	}
	return &Dataset{Images: d.Images[start:end], Labels: d.Labels[start:end]}
}

// Batches splits the dataset into consecutive minibatches of the given
// size. The final batch is short when the dataset size is not a multiple
// of batchSize; it is kept, not dropped.
func (d *Dataset) Batches(batchSize int) []*Dataset {
	if batchSize <= 0 {
		panic(fmt.Sprintf("mnist: invalid batch size %d", batchSize))
	}
	n := len(d.Images)
	batches := make([]*Dataset, 0, (n+batchSize-1)/batchSize)
	for start := 0; start < n; start += batchSize {
		end := start + batchSize
		if end > n {
			end = n
		}
		batches = append(batches, d.Subset(start, end))
	}
	return batches
}

// Features packs the images into a [num_samples, ImageSize] tensor for a
// fully connected network. Use FeaturesNCHW for convolutional input.
func (d *Dataset) Features() *tensor.Tensor {
	n := len(d.Images)
	out := tensor.New(tensor.Shape{n, ImageSize})
	data := out.Data()
	for i, img := range d.Images {
		copy(data[i*ImageSize:], img)
	}
	return out
}

// FeaturesNCHW packs the images into a [num_samples, 1, 28, 28] tensor
// for a convolutional network.
func (d *Dataset) FeaturesNCHW() *tensor.Tensor {
	return d.Features().Reshape(len(d.Images), 1, 28, 28)
}
