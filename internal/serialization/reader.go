package serialization

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"

	"github.com/convkg-ml/convkg/internal/tensor"
)

// Read loads a checkpoint written by Write, verifying the magic, format
// version and payload checksum. Returns the state dict and the metadata.
func Read(path string) (map[string]*tensor.Tensor, map[string]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("serialization: read %s: %w", path, err)
	}

	fixed := len(Magic) + 4 + 8
	if len(raw) < fixed {
		return nil, nil, fmt.Errorf("serialization: %s: file too short (%d bytes)", path, len(raw))
	}
	if string(raw[:len(Magic)]) != Magic {
		return nil, nil, fmt.Errorf("serialization: %s: bad magic %q", path, raw[:len(Magic)])
	}
	version := binary.LittleEndian.Uint32(raw[len(Magic):])
	if version != FormatVersion {
		return nil, nil, fmt.Errorf("serialization: %s: unsupported format version %d", path, version)
	}
	headerLen := binary.LittleEndian.Uint64(raw[len(Magic)+4:])
	if uint64(len(raw)) < uint64(fixed)+headerLen+checksumSize {
		return nil, nil, fmt.Errorf("serialization: %s: truncated header", path)
	}

	var header Header
	if err := json.Unmarshal(raw[fixed:uint64(fixed)+headerLen], &header); err != nil {
		return nil, nil, fmt.Errorf("serialization: %s: decode header: %w", path, err)
	}

	payload := raw[uint64(fixed)+headerLen : len(raw)-checksumSize]
	sum := sha256.Sum256(payload)
	if !bytes.Equal(sum[:], raw[len(raw)-checksumSize:]) {
		return nil, nil, fmt.Errorf("serialization: %s: checksum mismatch", path)
	}

	state := make(map[string]*tensor.Tensor, len(header.Tensors))
	for _, meta := range header.Tensors {
		if meta.Offset < 0 || meta.Offset+meta.Size > int64(len(payload)) {
			return nil, nil, fmt.Errorf("serialization: %s: tensor %s outside payload", path, meta.Name)
		}
		shape := tensor.Shape(meta.Shape)
		if int64(shape.NumElements()*4) != meta.Size {
			return nil, nil, fmt.Errorf("serialization: %s: tensor %s shape %v does not match %d bytes",
				path, meta.Name, shape, meta.Size)
		}
		data := make([]float32, shape.NumElements())
		if err := binary.Read(bytes.NewReader(payload[meta.Offset:meta.Offset+meta.Size]), binary.LittleEndian, data); err != nil {
			return nil, nil, fmt.Errorf("serialization: %s: decode tensor %s: %w", path, meta.Name, err)
		}
		t, err := tensor.FromSlice(data, shape)
		if err != nil {
			return nil, nil, fmt.Errorf("serialization: %s: tensor %s: %w", path, meta.Name, err)
		}
		state[meta.Name] = t
	}
	return state, header.Metadata, nil
}
