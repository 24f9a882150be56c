package nn

import (
	"fmt"
	"math/rand"

	"github.com/convkg-ml/convkg/internal/autodiff/ops"
	"github.com/convkg-ml/convkg/internal/tensor"
)

// Embedding maps integer indices to trainable dense vectors. One table
// holds the entity embeddings and one the relation embeddings; the entity
// table doubles as the candidate matrix for the scoring product.
type Embedding struct {
	Weight   *Parameter // [NumEmbed, EmbedDim]
	NumEmbed int
	EmbedDim int
}

// NewEmbedding creates an embedding table with weights drawn from N(0, 1).
func NewEmbedding(name string, numEmbed, embedDim int, rng *rand.Rand) (*Embedding, error) {
	if numEmbed <= 0 || embedDim <= 0 {
		return nil, fmt.Errorf("nn: embedding %q needs positive sizes, got %d x %d", name, numEmbed, embedDim)
	}
	weight := tensor.Randn(tensor.Shape{numEmbed, embedDim}, rng)
	return &Embedding{
		Weight:   NewParameter(name+".weight", weight),
		NumEmbed: numEmbed,
		EmbedDim: embedDim,
	}, nil
}

// Forward looks up the embedding vector for each index, producing
// [len(indices), EmbedDim]. An index outside [0, NumEmbed) panics.
func (e *Embedding) Forward(r ops.Recorder, indices []int32) *tensor.Tensor {
	return ops.Embedding(r, e.Weight.Tensor(), indices)
}

// Parameters returns the weight table.
func (e *Embedding) Parameters() []*Parameter {
	return []*Parameter{e.Weight}
}

// StateDict returns the weight keyed by the parameter name.
func (e *Embedding) StateDict() map[string]*tensor.Tensor {
	return map[string]*tensor.Tensor{e.Weight.Name(): e.Weight.Tensor()}
}

// LoadStateDict restores the weight table.
func (e *Embedding) LoadStateDict(state map[string]*tensor.Tensor) error {
	return loadTensor(e.Weight.Name(), e.Weight.Tensor(), state)
}
