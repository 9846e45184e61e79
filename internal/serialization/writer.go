package serialization

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/ffarishta/digits/internal/tensor"
)

// WriteStateDict writes a state dictionary to path in the .dgts format.
//
// The header's FormatVersion, CreatedAt, Tensors, and (if unset) RunID
// fields are filled in; other fields pass through as given. Tensors are
// written in sorted name order so the output is deterministic for a
// given state dict.
func WriteStateDict(path string, stateDict map[string]*tensor.Tensor, header Header) (err error) {
	names := make([]string, 0, len(stateDict))
	for name := range stateDict {
		names = append(names, name)
	}
	sort.Strings(names)

	// Build payload and tensor index.
	var payload []byte
	header.Tensors = make([]TensorMeta, 0, len(names))
	for _, name := range names {
		t := stateDict[name]
		data := t.Data()
		size := int64(len(data) * 8)

		header.Tensors = append(header.Tensors, TensorMeta{
			Name:   name,
			Shape:  t.Shape().Clone(),
			Offset: int64(len(payload)),
			Size:   size,
		})

		buf := make([]byte, size)
		for i, v := range data {
			binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
		}
		payload = append(payload, buf...)
	}

	header.FormatVersion = FormatVersion
	header.CreatedAt = time.Now().UTC()
	if header.RunID == "" {
		header.RunID = uuid.NewString()
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to encode header: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	// Fixed prefix: magic, version, header length.
	if _, err := file.WriteString(MagicBytes); err != nil {
		return err
	}
	var fixed [8]byte
	binary.LittleEndian.PutUint32(fixed[0:4], FormatVersion)
	binary.LittleEndian.PutUint32(fixed[4:8], uint32(len(headerJSON)))
	if _, err := file.Write(fixed[:]); err != nil {
		return err
	}
	if _, err := file.Write(headerJSON); err != nil {
		return err
	}

	// Pad so the payload starts on a 64-byte boundary.
	written := int64(len(MagicBytes)) + 8 + int64(len(headerJSON))
	if pad := (PayloadAlignment - written%PayloadAlignment) % PayloadAlignment; pad > 0 {
		if _, err := file.Write(make([]byte, pad)); err != nil {
			return err
		}
	}

	if _, err := file.Write(payload); err != nil {
		return err
	}

	checksum := ComputeChecksum(payload)
	if _, err := file.Write(checksum[:]); err != nil {
		return err
	}

	return nil
}
