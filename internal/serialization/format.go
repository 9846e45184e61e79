// Package serialization implements the .dgts model/checkpoint file format.
//
// Layout:
//
//	[magic "DGTS"] [format version u32] [header length u32]
//	[JSON header] [zero padding to 64-byte alignment]
//	[tensor payload (float64, little-endian)]
//	[SHA-256 checksum of the payload]
//
// The JSON header carries tensor metadata (name, shape, offset, size),
// a UUID identifying the training run, and optional checkpoint metadata
// (epoch, loss, optimizer type, numeric training metadata such as the
// input normalization statistics). The checksum is verified on load.
package serialization

import "time"

// Format constants.
const (
	MagicBytes       = "DGTS"
	FormatVersion    = 1
	PayloadAlignment = 64 // Align tensor data to 64 bytes.
	ChecksumSize     = 32 // SHA-256.
)

// Header is the JSON header of a .dgts file.
type Header struct {
	FormatVersion  int               `json:"format_version"`
	RunID          string            `json:"run_id"` // UUID of the training run
	ModelType      string            `json:"model_type"`
	CreatedAt      time.Time         `json:"created_at"`
	Tensors        []TensorMeta      `json:"tensors"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	CheckpointMeta *CheckpointMeta   `json:"checkpoint,omitempty"`
}

// CheckpointMeta contains training state information for checkpoints.
type CheckpointMeta struct {
	IsCheckpoint  bool               `json:"is_checkpoint"`
	Epoch         int                `json:"epoch"`
	Loss          float64            `json:"loss"`
	OptimizerType string             `json:"optimizer_type"`
	TrainingMeta  map[string]float64 `json:"training_meta,omitempty"`
}

// TensorMeta describes one tensor in the payload.
type TensorMeta struct {
	Name   string `json:"name"`
	Shape  []int  `json:"shape"`
	Offset int64  `json:"offset"` // Bytes from the start of the payload.
	Size   int64  `json:"size"`   // Bytes.
}
