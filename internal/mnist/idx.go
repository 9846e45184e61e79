package mnist

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"
)

// IDX magic numbers from the original MNIST distribution.
const (
	idxImagesMagic = 2051
	idxLabelsMagic = 2049
)

// LoadIDX loads a dataset from the original MNIST IDX binary files
// (e.g. train-images-idx3-ubyte and train-labels-idx1-ubyte). Files
// ending in .gz are decompressed transparently. Pixel values are scaled
// from [0, 255] to [0, 1].
func LoadIDX(imagesPath, labelsPath string) (*Dataset, error) {
	images, err := readIDXImages(imagesPath)
	if err != nil {
		return nil, err
	}

	labels, err := readIDXLabels(labelsPath)
	if err != nil {
		return nil, err
	}

	return NewDataset(images, labels)
}

// openIDX opens an IDX file, unwrapping gzip compression when the path
// ends in .gz.
func openIDX(path string) (io.Reader, func() error, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open IDX file: %w", err)
	}

	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(file)
		if err != nil {
			file.Close()
			return nil, nil, fmt.Errorf("failed to open gzip stream in %s: %w", path, err)
		}
		closer := func() error {
			gz.Close()
			return file.Close()
		}
		return bufio.NewReader(gz), closer, nil
	}

	return bufio.NewReader(file), file.Close, nil
}

func readIDXImages(path string) ([][]float64, error) {
	reader, closeFile, err := openIDX(path)
	if err != nil {
		return nil, err
	}
	defer closeFile()

	var header struct {
		Magic, Count, Rows, Cols uint32
	}
	if err := binary.Read(reader, binary.BigEndian, &header); err != nil {
		return nil, fmt.Errorf("failed to read IDX header from %s: %w", path, err)
	}
	if header.Magic != idxImagesMagic {
		return nil, fmt.Errorf("%s: magic %d is not an IDX images file (expected %d)",
			path, header.Magic, idxImagesMagic)
	}
	if header.Rows*header.Cols != ImageSize {
		return nil, fmt.Errorf("%s: images are %dx%d, expected 28x28", path, header.Rows, header.Cols)
	}

	images := make([][]float64, header.Count)
	buf := make([]byte, ImageSize)
	for i := range images {
		if _, err := io.ReadFull(reader, buf); err != nil {
			return nil, fmt.Errorf("%s: truncated at image %d: %w", path, i, err)
		}
		pixels := make([]float64, ImageSize)
		for j, b := range buf {
			pixels[j] = float64(b) / 255.0
		}
		images[i] = pixels
	}
	return images, nil
}

func readIDXLabels(path string) ([]int, error) {
	reader, closeFile, err := openIDX(path)
	if err != nil {
		return nil, err
	}
	defer closeFile()

	var header struct {
		Magic, Count uint32
	}
	if err := binary.Read(reader, binary.BigEndian, &header); err != nil {
		return nil, fmt.Errorf("failed to read IDX header from %s: %w", path, err)
	}
	if header.Magic != idxLabelsMagic {
		return nil, fmt.Errorf("%s: magic %d is not an IDX labels file (expected %d)",
			path, header.Magic, idxLabelsMagic)
	}

	buf := make([]byte, header.Count)
	if _, err := io.ReadFull(reader, buf); err != nil {
		return nil, fmt.Errorf("%s: truncated labels: %w", path, err)
	}

	labels := make([]int, header.Count)
	for i, b := range buf {
		labels[i] = int(b)
	}
	return labels, nil
}
