package serialization

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/ffarishta/digits/internal/tensor"
)

// ReadStateDict reads a .dgts file, verifies the payload checksum, and
// returns the state dictionary and header.
func ReadStateDict(path string) (map[string]*tensor.Tensor, *Header, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read file: %w", err)
	}

	prefixLen := len(MagicBytes) + 8
	if len(raw) < prefixLen {
		return nil, nil, ErrTruncated
	}
	if string(raw[:len(MagicBytes)]) != MagicBytes {
		return nil, nil, ErrInvalidMagic
	}

	version := binary.LittleEndian.Uint32(raw[len(MagicBytes):])
	if version != FormatVersion {
		return nil, nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}

	headerLen := int(binary.LittleEndian.Uint32(raw[len(MagicBytes)+4:]))
	if len(raw) < prefixLen+headerLen {
		return nil, nil, ErrTruncated
	}

	var header Header
	if err := json.Unmarshal(raw[prefixLen:prefixLen+headerLen], &header); err != nil {
		return nil, nil, fmt.Errorf("failed to decode header: %w", err)
	}

	payloadStart := int64(prefixLen + headerLen)
	if pad := (PayloadAlignment - payloadStart%PayloadAlignment) % PayloadAlignment; pad > 0 {
		payloadStart += pad
	}

	if int64(len(raw)) < payloadStart+ChecksumSize {
		return nil, nil, ErrTruncated
	}
	payload := raw[payloadStart : len(raw)-ChecksumSize]

	var stored [32]byte
	copy(stored[:], raw[len(raw)-ChecksumSize:])
	if err := ValidateChecksum(ComputeChecksum(payload), stored); err != nil {
		return nil, nil, err
	}

	stateDict := make(map[string]*tensor.Tensor, len(header.Tensors))
	for _, meta := range header.Tensors {
		if meta.Offset < 0 || meta.Offset+meta.Size > int64(len(payload)) {
			return nil, nil, fmt.Errorf("tensor %q extends past payload end", meta.Name)
		}
		shape := tensor.Shape(meta.Shape)
		if err := shape.Validate(); err != nil {
			return nil, nil, fmt.Errorf("tensor %q: %w", meta.Name, err)
		}
		if int64(shape.NumElements()*8) != meta.Size {
			return nil, nil, fmt.Errorf("tensor %q: shape %v does not match size %d bytes",
				meta.Name, shape, meta.Size)
		}

		t := tensor.New(shape)
		data := t.Data()
		buf := payload[meta.Offset : meta.Offset+meta.Size]
		for i := range data {
			data[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
		}
		stateDict[meta.Name] = t
	}

	return stateDict, &header, nil
}
