package serialization

import (
	"bufio"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/convkg-ml/convkg/internal/tensor"
)

// Write saves a state dict plus metadata to path. Tensors are written in
// sorted name order so identical state always produces identical files.
func Write(path string, state map[string]*tensor.Tensor, metadata map[string]string) (err error) {
	names := make([]string, 0, len(state))
	for name := range state {
		names = append(names, name)
	}
	sort.Strings(names)

	header := Header{
		FormatVersion: FormatVersion,
		CreatedAt:     time.Now().UTC(),
		Tensors:       make([]TensorMeta, 0, len(names)),
		Metadata:      metadata,
	}
	var offset int64
	for _, name := range names {
		t := state[name]
		size := int64(t.NumElements() * 4)
		header.Tensors = append(header.Tensors, TensorMeta{
			Name:   name,
			Shape:  append([]int(nil), t.Shape()...),
			Offset: offset,
			Size:   size,
		})
		offset += size
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("serialization: marshal header: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("serialization: create %s: %w", path, err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	w := bufio.NewWriter(file)
	if _, err := w.WriteString(Magic); err != nil {
		return fmt.Errorf("serialization: write magic: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, FormatVersion); err != nil {
		return fmt.Errorf("serialization: write version: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint64(len(headerJSON))); err != nil {
		return fmt.Errorf("serialization: write header length: %w", err)
	}
	if _, err := w.Write(headerJSON); err != nil {
		return fmt.Errorf("serialization: write header: %w", err)
	}

	digest := sha256.New()
	payload := io.MultiWriter(w, digest)
	for _, name := range names {
		if err := binary.Write(payload, binary.LittleEndian, state[name].Data()); err != nil {
			return fmt.Errorf("serialization: write tensor %s: %w", name, err)
		}
	}
	if _, err := w.Write(digest.Sum(nil)); err != nil {
		return fmt.Errorf("serialization: write checksum: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("serialization: flush %s: %w", path, err)
	}
	return nil
}
