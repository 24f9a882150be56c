// Package telemetry defines the scalar-metrics sink the trainer and
// evaluator emit to. A Collector is injected explicitly (there is no
// process-wide singleton) and follows an open/emit/close lifecycle.
package telemetry

import "errors"

// Collector receives named scalar values keyed by epoch.
type Collector interface {
	// Open prepares the sink for a run. Called once before any Emit.
	Open(run string) error

	// Emit records one scalar for the given key at the given step
	// (1-based epoch index).
	Emit(key string, value float64, step int)

	// Close flushes and releases the sink.
	Close() error
}

// Nop is a Collector that discards everything.
type Nop struct{}

// Open implements Collector.
func (Nop) Open(string) error { return nil }

// Emit implements Collector.
func (Nop) Emit(string, float64, int) {}

// Close implements Collector.
func (Nop) Close() error { return nil }

// Multi fans every call out to each wrapped collector.
type Multi []Collector

// Open opens every collector, stopping at the first error.
func (m Multi) Open(run string) error {
	for _, c := range m {
		if err := c.Open(run); err != nil {
			return err
		}
	}
	return nil
}

// Emit forwards to every collector.
func (m Multi) Emit(key string, value float64, step int) {
	for _, c := range m {
		c.Emit(key, value, step)
	}
}

// Close closes every collector, returning the combined errors.
func (m Multi) Close() error {
	var errs []error
	for _, c := range m {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
