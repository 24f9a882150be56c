// Package serialization implements the checkpoint file format.
//
// Layout:
//
//	magic "KGCM" | version uint32 | header length uint64 | header JSON |
//	tensor payload (little-endian float32, header order) | sha256(payload)
//
// The header lists every tensor's name, shape and byte offset plus
// free-form string metadata (epoch, loss, run name). The trailing checksum
// is verified on read so a truncated or corrupted checkpoint fails loudly
// instead of resuming training from garbage.
package serialization

import "time"

const (
	// Magic identifies a checkpoint file.
	Magic = "KGCM"
	// FormatVersion is bumped on any incompatible layout change.
	FormatVersion uint32 = 1
	// checksumSize is the length of the sha256 trailer.
	checksumSize = 32
)

// Header is the JSON header of a checkpoint file.
type Header struct {
	FormatVersion uint32            `json:"format_version"`
	CreatedAt     time.Time         `json:"created_at"`
	Tensors       []TensorMeta      `json:"tensors"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// TensorMeta describes one tensor in the payload.
type TensorMeta struct {
	Name   string `json:"name"`
	Shape  []int  `json:"shape"`
	Offset int64  `json:"offset"` // bytes from the start of the payload
	Size   int64  `json:"size"`   // bytes
}
