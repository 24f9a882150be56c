// Package data loads preprocessed knowledge-graph splits and feeds them to
// the trainer as batches of integer index tensors.
//
// A split file is JSON produced by the external preprocessor: the (subject,
// relation) query pairs, the set of true objects per query, and the
// name<->index vocabularies. The trainer treats it purely as a source of
// integer-indexed batches.
package data

import (
	"encoding/json"
	"fmt"
	"os"
)

// Dataset is one preprocessed split.
type Dataset struct {
	// X holds (subject index, relation index) per query.
	X [][2]int32 `json:"x"`
	// Y holds the true object indices per query, parallel to X. Multiple
	// true objects per query are the norm, not the exception.
	Y [][]int32 `json:"y"`

	EToIndex map[string]int32 `json:"e_to_index"`
	RToIndex map[string]int32 `json:"r_to_index"`
	IndexToE []string         `json:"index_to_e"`
	IndexToR []string         `json:"index_to_r"`
}

// Load reads and validates a split file.
func Load(path string) (*Dataset, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("data: read %s: %w", path, err)
	}
	var ds Dataset
	if err := json.Unmarshal(raw, &ds); err != nil {
		return nil, fmt.Errorf("data: decode %s: %w", path, err)
	}
	if err := ds.validate(); err != nil {
		return nil, fmt.Errorf("data: %s: %w", path, err)
	}
	return &ds, nil
}

// NumQueries returns the number of (subject, relation) queries.
func (d *Dataset) NumQueries() int { return len(d.X) }

// NumEntities returns the entity vocabulary size.
func (d *Dataset) NumEntities() int { return len(d.IndexToE) }

// NumRelations returns the relation vocabulary size.
func (d *Dataset) NumRelations() int { return len(d.IndexToR) }

// UseVocabularyFrom replaces this split's vocabularies with another's.
// Evaluation splits are always indexed against the training vocabulary.
func (d *Dataset) UseVocabularyFrom(other *Dataset) {
	d.EToIndex = other.EToIndex
	d.RToIndex = other.RToIndex
	d.IndexToE = other.IndexToE
	d.IndexToR = other.IndexToR
}

func (d *Dataset) validate() error {
	if len(d.X) != len(d.Y) {
		return fmt.Errorf("x has %d queries but y has %d object sets", len(d.X), len(d.Y))
	}
	if len(d.IndexToE) == 0 || len(d.IndexToR) == 0 {
		return fmt.Errorf("empty vocabulary (%d entities, %d relations)", len(d.IndexToE), len(d.IndexToR))
	}
	numE, numR := int32(len(d.IndexToE)), int32(len(d.IndexToR))
	for i, pair := range d.X {
		if pair[0] < 0 || pair[0] >= numE {
			return fmt.Errorf("query %d: subject index %d out of range [0, %d)", i, pair[0], numE)
		}
		if pair[1] < 0 || pair[1] >= numR {
			return fmt.Errorf("query %d: relation index %d out of range [0, %d)", i, pair[1], numR)
		}
		if len(d.Y[i]) == 0 {
			return fmt.Errorf("query %d: no true objects", i)
		}
		for _, o := range d.Y[i] {
			if o < 0 || o >= numE {
				return fmt.Errorf("query %d: object index %d out of range [0, %d)", i, o, numE)
			}
		}
	}
	return nil
}
