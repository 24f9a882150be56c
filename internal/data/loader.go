package data

import (
	"fmt"
	"math/rand"
	"sync"
)

// Batch is one collated mini-batch: parallel subject and relation index
// slices plus the ragged true-object sets.
type Batch struct {
	S       []int32
	R       []int32
	Objects [][]int32
}

// Size returns the number of queries in the batch.
func (b Batch) Size() int { return len(b.S) }

// LoaderConfig controls batching for one epoch.
type LoaderConfig struct {
	BatchSize int
	Workers   int  // collation goroutines; minimum 1
	Shuffle   bool // permute query order before batching
}

// Batches produces the epoch's batches on the returned channel. A pool of
// collation workers prefetches batches ahead of the consumer; batches are
// consumed once, the final batch may be short and no batch straddles the
// epoch. Delivery order across workers is unspecified.
//
// The rng is only used synchronously, before this function returns, to
// build the epoch's permutation, so the caller may keep using it while
// consuming batches.
func Batches(ds *Dataset, cfg LoaderConfig, rng *rand.Rand) <-chan Batch {
	if cfg.BatchSize <= 0 {
		panic(fmt.Sprintf("data: batch size must be positive, got %d", cfg.BatchSize))
	}
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}

	n := ds.NumQueries()
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	if cfg.Shuffle {
		rng.Shuffle(n, func(i, j int) { order[i], order[j] = order[j], order[i] })
	}

	numBatches := (n + cfg.BatchSize - 1) / cfg.BatchSize
	jobs := make(chan []int, numBatches)
	for start := 0; start < n; start += cfg.BatchSize {
		end := start + cfg.BatchSize
		if end > n {
			end = n
		}
		jobs <- order[start:end]
	}
	close(jobs)

	out := make(chan Batch, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for indices := range jobs {
				out <- collate(ds, indices)
			}
		}()
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

func collate(ds *Dataset, indices []int) Batch {
	batch := Batch{
		S:       make([]int32, len(indices)),
		R:       make([]int32, len(indices)),
		Objects: make([][]int32, len(indices)),
	}
	for i, q := range indices {
		batch.S[i] = ds.X[q][0]
		batch.R[i] = ds.X[q][1]
		batch.Objects[i] = ds.Y[q]
	}
	return batch
}
