package serialization

import "errors"

// Errors returned while reading .dgts files.
var (
	ErrInvalidMagic       = errors.New("serialization: invalid magic bytes (not a .dgts file)")
	ErrUnsupportedVersion = errors.New("serialization: unsupported format version")
	ErrChecksumMismatch   = errors.New("serialization: payload checksum mismatch (file corrupted)")
	ErrTruncated          = errors.New("serialization: file truncated")
)
