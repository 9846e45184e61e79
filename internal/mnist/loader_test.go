package mnist_test

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ffarishta/digits/internal/mnist"
)

// pixelRow renders a CSV row of 784 pixels all set to value.
func pixelRow(value int) string {
	fields := make([]string, mnist.ImageSize)
	for i := range fields {
		fields[i] = fmt.Sprint(value)
	}
	return strings.Join(fields, ",")
}

func TestLoadCSVPair(t *testing.T) {
	dir := t.TempDir()
	imagesPath := filepath.Join(dir, "images.csv")
	labelsPath := filepath.Join(dir, "labels.csv")

	images := pixelRow(0) + "\n" + pixelRow(128) + "\n" + pixelRow(255) + "\n"
	require.NoError(t, os.WriteFile(imagesPath, []byte(images), 0o644))
	require.NoError(t, os.WriteFile(labelsPath, []byte("7\n0\n9\n"), 0o644))

	dataset, err := mnist.LoadCSVPair(imagesPath, labelsPath)
	require.NoError(t, err)

	assert.Equal(t, 3, dataset.NumSamples())
	assert.Equal(t, []int{7, 0, 9}, dataset.Labels)
	assert.Equal(t, 128.0, dataset.Images[1][0], "pair CSV keeps raw pixel values")
}

func TestLoadCSVPair_MismatchedLengths(t *testing.T) {
	dir := t.TempDir()
	imagesPath := filepath.Join(dir, "images.csv")
	labelsPath := filepath.Join(dir, "labels.csv")

	require.NoError(t, os.WriteFile(imagesPath, []byte(pixelRow(1)+"\n"+pixelRow(2)+"\n"), 0o644))
	require.NoError(t, os.WriteFile(labelsPath, []byte("1\n"), 0o644))

	_, err := mnist.LoadCSVPair(imagesPath, labelsPath)
	assert.Error(t, err)
}

func TestLoadCSVPair_BadPixel(t *testing.T) {
	dir := t.TempDir()
	imagesPath := filepath.Join(dir, "images.csv")
	labelsPath := filepath.Join(dir, "labels.csv")

	row := strings.Replace(pixelRow(1), "1", "oops", 1)
	require.NoError(t, os.WriteFile(imagesPath, []byte(row+"\n"), 0o644))
	require.NoError(t, os.WriteFile(labelsPath, []byte("1\n"), 0o644))

	_, err := mnist.LoadCSVPair(imagesPath, labelsPath)
	assert.ErrorContains(t, err, "bad pixel value")
}

func TestLoadCSVPair_MissingFile(t *testing.T) {
	_, err := mnist.LoadCSVPair("/nonexistent/images.csv", "/nonexistent/labels.csv")
	assert.Error(t, err)
}

func TestLoadKaggleCSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "train.csv")

	header := make([]string, mnist.ImageSize+1)
	header[0] = "label"
	for i := 1; i < len(header); i++ {
		header[i] = fmt.Sprintf("pixel%d", i-1)
	}

	content := strings.Join(header, ",") + "\n" +
		"3," + pixelRow(255) + "\n" +
		"8," + pixelRow(0) + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	dataset, err := mnist.LoadKaggleCSV(path)
	require.NoError(t, err)

	assert.Equal(t, 2, dataset.NumSamples())
	assert.Equal(t, []int{3, 8}, dataset.Labels)
	assert.Equal(t, 1.0, dataset.Images[0][0], "Kaggle pixels are scaled to [0, 1]")
	assert.Equal(t, 0.0, dataset.Images[1][0])
}

func TestLoadKaggleCSV_EmptyBody(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.csv")
	require.NoError(t, os.WriteFile(path, []byte("label,"+pixelRow(0)+"\n"), 0o644))

	_, err := mnist.LoadKaggleCSV(path)
	assert.ErrorContains(t, err, "no data rows")
}

// writeIDXImages encodes count all-value images in IDX format.
func writeIDXImages(t *testing.T, path string, values []byte, compress bool) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.BigEndian, [4]uint32{2051, uint32(len(values)), 28, 28}))
	for _, v := range values {
		img := bytes.Repeat([]byte{v}, mnist.ImageSize)
		buf.Write(img)
	}
	writeMaybeGzip(t, path, buf.Bytes(), compress)
}

func writeIDXLabels(t *testing.T, path string, labels []byte, compress bool) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.BigEndian, [2]uint32{2049, uint32(len(labels))}))
	buf.Write(labels)
	writeMaybeGzip(t, path, buf.Bytes(), compress)
}

func writeMaybeGzip(t *testing.T, path string, raw []byte, compress bool) {
	t.Helper()
	if compress {
		var gzBuf bytes.Buffer
		gz := gzip.NewWriter(&gzBuf)
		_, err := gz.Write(raw)
		require.NoError(t, err)
		require.NoError(t, gz.Close())
		raw = gzBuf.Bytes()
	}
	require.NoError(t, os.WriteFile(path, raw, 0o644))
}

func TestLoadIDX(t *testing.T) {
	dir := t.TempDir()
	imagesPath := filepath.Join(dir, "train-images-idx3-ubyte")
	labelsPath := filepath.Join(dir, "train-labels-idx1-ubyte")

	writeIDXImages(t, imagesPath, []byte{0, 128, 255}, false)
	writeIDXLabels(t, labelsPath, []byte{5, 0, 4}, false)

	dataset, err := mnist.LoadIDX(imagesPath, labelsPath)
	require.NoError(t, err)

	assert.Equal(t, 3, dataset.NumSamples())
	assert.Equal(t, []int{5, 0, 4}, dataset.Labels)
	assert.InDelta(t, 128.0/255.0, dataset.Images[1][0], 1e-12)
	assert.Equal(t, 1.0, dataset.Images[2][0])
}

func TestLoadIDX_Gzip(t *testing.T) {
	dir := t.TempDir()
	imagesPath := filepath.Join(dir, "train-images-idx3-ubyte.gz")
	labelsPath := filepath.Join(dir, "train-labels-idx1-ubyte.gz")

	writeIDXImages(t, imagesPath, []byte{7}, true)
	writeIDXLabels(t, labelsPath, []byte{7}, true)

	dataset, err := mnist.LoadIDX(imagesPath, labelsPath)
	require.NoError(t, err)
	assert.Equal(t, []int{7}, dataset.Labels)
}

func TestLoadIDX_WrongMagic(t *testing.T) {
	dir := t.TempDir()
	imagesPath := filepath.Join(dir, "images")
	labelsPath := filepath.Join(dir, "labels")

	// Full images header carrying the labels magic.
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.BigEndian, [4]uint32{2049, 1, 28, 28}))
	buf.Write(bytes.Repeat([]byte{1}, mnist.ImageSize))
	require.NoError(t, os.WriteFile(imagesPath, buf.Bytes(), 0o644))
	writeIDXLabels(t, labelsPath, []byte{1}, false)

	_, err := mnist.LoadIDX(imagesPath, labelsPath)
	assert.ErrorContains(t, err, "not an IDX images file")
}

func TestLoadIDX_WrongLabelsMagic(t *testing.T) {
	dir := t.TempDir()
	imagesPath := filepath.Join(dir, "images")
	labelsPath := filepath.Join(dir, "labels")

	writeIDXImages(t, imagesPath, []byte{1}, false)
	// Labels header carrying the images magic.
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.BigEndian, [2]uint32{2051, 1}))
	buf.WriteByte(1)
	require.NoError(t, os.WriteFile(labelsPath, buf.Bytes(), 0o644))

	_, err := mnist.LoadIDX(imagesPath, labelsPath)
	assert.ErrorContains(t, err, "not an IDX labels file")
}

func TestLoadIDX_Truncated(t *testing.T) {
	dir := t.TempDir()
	imagesPath := filepath.Join(dir, "images")
	labelsPath := filepath.Join(dir, "labels")

	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.BigEndian, [4]uint32{2051, 2, 28, 28}))
	buf.Write(bytes.Repeat([]byte{1}, mnist.ImageSize)) // only 1 of 2 images
	require.NoError(t, os.WriteFile(imagesPath, buf.Bytes(), 0o644))
	writeIDXLabels(t, labelsPath, []byte{1, 2}, false)

	_, err := mnist.LoadIDX(imagesPath, labelsPath)
	assert.ErrorContains(t, err, "truncated")
}
