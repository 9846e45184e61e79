package mnist_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ffarishta/digits/internal/mnist"
)

// syntheticDataset builds n valid examples with distinguishable pixel
// values (image i is filled with the value i).
func syntheticDataset(t *testing.T, n int) *mnist.Dataset {
	t.Helper()
	images := make([][]float64, n)
	labels := make([]int, n)
	for i := range images {
		img := make([]float64, mnist.ImageSize)
		for j := range img {
			img[j] = float64(i)
		}
		images[i] = img
		labels[i] = i % mnist.NumClasses
	}
	dataset, err := mnist.NewDataset(images, labels)
	require.NoError(t, err)
	return dataset
}

func TestNewDataset_Validation(t *testing.T) {
	good := make([][]float64, 2)
	for i := range good {
		good[i] = make([]float64, mnist.ImageSize)
	}

	_, err := mnist.NewDataset(good, []int{1})
	assert.Error(t, err, "mismatched image/label counts")

	_, err = mnist.NewDataset([][]float64{make([]float64, 10)}, []int{1})
	assert.Error(t, err, "wrong pixel count")

	_, err = mnist.NewDataset(good, []int{3, 10})
	assert.Error(t, err, "label out of range")

	_, err = mnist.NewDataset(good, []int{3, 9})
	assert.NoError(t, err)
}

func TestShuffle_Deterministic(t *testing.T) {
	a := syntheticDataset(t, 50)
	b := syntheticDataset(t, 50)

	a.Shuffle(100)
	b.Shuffle(100)

	assert.Equal(t, a.Labels, b.Labels, "same seed must give the same permutation")
	for i := range a.Images {
		assert.Equal(t, a.Images[i][0], b.Images[i][0])
	}

	c := syntheticDataset(t, 50)
	c.Shuffle(101)
	assert.NotEqual(t, a.Labels, c.Labels, "different seeds should differ")
}

func TestShuffle_KeepsPairsAligned(t *testing.T) {
	dataset := syntheticDataset(t, 30)
	dataset.Shuffle(7)

	// Image i was filled with value i and labeled i%10; that relationship
	// must survive shuffling.
	for i := range dataset.Images {
		original := int(dataset.Images[i][0])
		assert.Equal(t, original%mnist.NumClasses, dataset.Labels[i])
	}
}

func TestSplitHead(t *testing.T) {
	dataset := syntheticDataset(t, 20)

	dev, train, err := dataset.SplitHead(5)
	require.NoError(t, err)
	assert.Equal(t, 5, dev.NumSamples())
	assert.Equal(t, 15, train.NumSamples())

	_, _, err = dataset.SplitHead(21)
	assert.Error(t, err)
}

func TestSplit_Fraction(t *testing.T) {
	dataset := syntheticDataset(t, 20)

	trainSet, held, err := dataset.Split(0.2)
	require.NoError(t, err)
	assert.Equal(t, 16, trainSet.NumSamples())
	assert.Equal(t, 4, held.NumSamples())

	_, _, err = dataset.Split(1.5)
	assert.Error(t, err)
}

func TestBatches_KeepsShortLastBatch(t *testing.T) {
	dataset := syntheticDataset(t, 25)
	batches := dataset.Batches(10)

	require.Len(t, batches, 3)
	assert.Equal(t, 10, batches[0].NumSamples())
	assert.Equal(t, 10, batches[1].NumSamples())
	assert.Equal(t, 5, batches[2].NumSamples(), "short last batch is kept")

	total := 0
	for _, b := range batches {
		total += b.NumSamples()
	}
	assert.Equal(t, 25, total)
}

func TestFeatures_Shapes(t *testing.T) {
	dataset := syntheticDataset(t, 3)

	flat := dataset.Features()
	require.True(t, flat.Shape().Equal([]int{3, mnist.ImageSize}))
	assert.Equal(t, 1.0, flat.At(1, 0), "row 1 holds image 1")

	nchw := dataset.FeaturesNCHW()
	require.True(t, nchw.Shape().Equal([]int{3, 1, 28, 28}))
	assert.Equal(t, 2.0, nchw.At(2, 0, 14, 14))
}

func TestNormalizer_FitTransform(t *testing.T) {
	dataset := syntheticDataset(t, 10)

	var norm mnist.Normalizer
	require.NoError(t, norm.FitTransform(dataset))

	// After standardizing, the global mean is ~0 and std ~1.
	sum, sumSq, count := 0.0, 0.0, 0
	for _, img := range dataset.Images {
		for _, v := range img {
			sum += v
			count++
		}
	}
	mean := sum / float64(count)
	for _, img := range dataset.Images {
		for _, v := range img {
			sumSq += (v - mean) * (v - mean)
		}
	}
	std := math.Sqrt(sumSq / float64(count))

	assert.InDelta(t, 0.0, mean, 1e-9)
	assert.InDelta(t, 1.0, std, 1e-9)
}

func TestNormalizer_TrainStatsApplyToDev(t *testing.T) {
	train := syntheticDataset(t, 10)
	dev := syntheticDataset(t, 4)

	var norm mnist.Normalizer
	require.NoError(t, norm.Fit(train))
	trainMean := norm.Mean
	norm.Transform(dev)

	// Dev pixels are shifted by the training statistics, not their own.
	assert.InDelta(t, (0.0-trainMean)/norm.Std, dev.Images[0][0], 1e-12)
}

func TestNormalizer_Errors(t *testing.T) {
	var norm mnist.Normalizer
	empty := &mnist.Dataset{}
	assert.Error(t, norm.Fit(empty))

	constant := syntheticDataset(t, 1) // image 0 is all zeros
	assert.Error(t, norm.Fit(constant), "zero variance")
}
