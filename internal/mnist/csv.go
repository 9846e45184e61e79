package mnist

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
)

// LoadCSVPair loads a dataset from two parallel CSV files: imagesPath
// holds one comma-separated row of 784 pixel values per example, and
// labelsPath holds the matching digit, one per line. Neither file has a
// header. Pixel values are kept as-is; standardize with a Normalizer.
func LoadCSVPair(imagesPath, labelsPath string) (*Dataset, error) {
	images, err := readPixelRows(imagesPath)
	if err != nil {
		return nil, err
	}

	labels, err := readLabelRows(labelsPath)
	if err != nil {
		return nil, err
	}

	return NewDataset(images, labels)
}

func readPixelRows(path string) ([][]float64, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open images file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = ImageSize

	var images [][]float64
	for line := 1; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read images file %s: %w", path, err)
		}

		pixels := make([]float64, ImageSize)
		for i, field := range record {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("%s line %d: bad pixel value %q: %w", path, line, field, err)
			}
			pixels[i] = v
		}
		images = append(images, pixels)
	}

	if len(images) == 0 {
		return nil, fmt.Errorf("images file %s is empty", path)
	}
	return images, nil
}

func readLabelRows(path string) ([]int, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open labels file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = 1

	var labels []int
	for line := 1; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read labels file %s: %w", path, err)
		}

		label, err := strconv.Atoi(record[0])
		if err != nil {
			return nil, fmt.Errorf("%s line %d: bad label %q: %w", path, line, record[0], err)
		}
		labels = append(labels, label)
	}

	return labels, nil
}

// LoadKaggleCSV loads a dataset from a Kaggle-style single CSV: a header
// row, then one example per row as label,pixel0,...,pixel783. Pixel
// values are scaled from [0, 255] to [0, 1].
func LoadKaggleCSV(path string) (*Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = ImageSize + 1

	// Header row: label,pixel0,...,pixel783.
	if _, err := reader.Read(); err != nil {
		return nil, fmt.Errorf("failed to read CSV header from %s: %w", path, err)
	}

	var images [][]float64
	var labels []int
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV file %s: %w", path, err)
		}

		label, err := strconv.Atoi(record[0])
		if err != nil {
			return nil, fmt.Errorf("%s line %d: bad label %q: %w", path, line, record[0], err)
		}

		pixels := make([]float64, ImageSize)
		for i, field := range record[1:] {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("%s line %d: bad pixel value %q: %w", path, line, field, err)
			}
			pixels[i] = v / 255.0
		}

		images = append(images, pixels)
		labels = append(labels, label)
	}

	if len(images) == 0 {
		return nil, fmt.Errorf("CSV file %s has no data rows", path)
	}
	return NewDataset(images, labels)
}
