package telemetry

import (
	"bufio"
	"fmt"
	"os"
)

// TSVCollector appends one "step<TAB>key<TAB>value" line per emitted scalar
// to a file, a format trivially consumed by plotting scripts.
type TSVCollector struct {
	path string
	file *os.File
	w    *bufio.Writer
}

// NewTSVCollector creates a collector writing to path.
func NewTSVCollector(path string) *TSVCollector {
	return &TSVCollector{path: path}
}

// Open creates or truncates the output file.
func (t *TSVCollector) Open(string) error {
	file, err := os.Create(t.path)
	if err != nil {
		return fmt.Errorf("telemetry: create %s: %w", t.path, err)
	}
	t.file = file
	t.w = bufio.NewWriter(file)
	return nil
}

// Emit appends one line. Emit after a failed or missing Open is a no-op.
func (t *TSVCollector) Emit(key string, value float64, step int) {
	if t.w == nil {
		return
	}
	fmt.Fprintf(t.w, "%d\t%s\t%g\n", step, key, value)
}

// Close flushes and closes the file.
func (t *TSVCollector) Close() error {
	if t.file == nil {
		return nil
	}
	if err := t.w.Flush(); err != nil {
		t.file.Close()
		return fmt.Errorf("telemetry: flush %s: %w", t.path, err)
	}
	if err := t.file.Close(); err != nil {
		return fmt.Errorf("telemetry: close %s: %w", t.path, err)
	}
	return nil
}
