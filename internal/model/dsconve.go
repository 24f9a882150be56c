// Package model implements DSConvE, a convolutional knowledge-graph link
// predictor. Given a subject entity and a relation it scores every
// candidate object entity.
//
// The forward pass reshapes the subject and relation embeddings into 2D
// grids, stacks them into a two-band image, extracts features with a
// depthwise-separable convolution, projects back to embedding space and dot-
// products the result against the full entity embedding matrix. Placing
// subject and relation as adjacent image bands lets the local convolution
// learn joint subject-relation interaction features, following the 2D
// convolutional scoring idea of ConvE.
package model

import (
	"fmt"
	"math/rand"

	"github.com/convkg-ml/convkg/internal/autodiff/ops"
	"github.com/convkg-ml/convkg/internal/nn"
	"github.com/convkg-ml/convkg/internal/tensor"
)

// Config holds the architecture hyperparameters.
type Config struct {
	NumEntities  int
	NumRelations int

	EmbeddingHeight   int     // H: grid height, embedding size = H*W
	EmbeddingWidth    int     // W: grid width and the stacking axis
	ConvChannels      int     // C: pointwise output channels
	KernelSize        int     // k: depthwise kernel size
	EmbedDropout      float32 // on the stacked input image
	FeatureMapDropout float32 // per-channel, after the conv block
	ProjDropout       float32 // after the projection head
}

// DefaultConfig returns the published DSConvE hyperparameters for the given
// vocabulary sizes: 20x10 embeddings, 32 channels, 3x3 kernel, dropouts
// 0.2/0.2/0.3.
func DefaultConfig(numEntities, numRelations int) Config {
	return Config{
		NumEntities:       numEntities,
		NumRelations:      numRelations,
		EmbeddingHeight:   20,
		EmbeddingWidth:    10,
		ConvChannels:      32,
		KernelSize:        3,
		EmbedDropout:      0.2,
		FeatureMapDropout: 0.2,
		ProjDropout:       0.3,
	}
}

// EmbeddingSize returns H*W.
func (c Config) EmbeddingSize() int {
	return c.EmbeddingHeight * c.EmbeddingWidth
}

// flattenedSize is the length of the conv block's output per batch element.
func (c Config) flattenedSize() int {
	return c.ConvChannels * (2*c.EmbeddingWidth - c.KernelSize + 1) * (c.EmbeddingHeight - c.KernelSize + 1)
}

func (c Config) validate() error {
	if c.NumEntities <= 0 || c.NumRelations <= 0 {
		return fmt.Errorf("model: vocabulary sizes must be positive, got %d entities, %d relations",
			c.NumEntities, c.NumRelations)
	}
	if c.EmbeddingHeight <= 0 || c.EmbeddingWidth <= 0 {
		return fmt.Errorf("model: embedding grid must be positive, got %dx%d",
			c.EmbeddingHeight, c.EmbeddingWidth)
	}
	if c.ConvChannels <= 0 {
		return fmt.Errorf("model: conv channels must be positive, got %d", c.ConvChannels)
	}
	if c.KernelSize <= 0 || c.KernelSize > c.EmbeddingHeight || c.KernelSize > 2*c.EmbeddingWidth {
		return fmt.Errorf("model: kernel size %d does not fit the %dx%d stacked image",
			c.KernelSize, 2*c.EmbeddingWidth, c.EmbeddingHeight)
	}
	return nil
}

// DSConvE is the link-prediction model.
type DSConvE struct {
	cfg Config

	embedE *nn.Embedding
	embedR *nn.Embedding

	inputDrop *nn.Dropout
	conv      *nn.SeparableConv2D
	convNorm  *nn.BatchNorm
	featDrop  *nn.Dropout2D

	proj     *nn.Linear
	projNorm *nn.BatchNorm
	projDrop *nn.Dropout
}

// New builds a DSConvE model. All shape constraints are checked here so a
// bad configuration fails at construction, not mid-epoch.
func New(cfg Config, rng *rand.Rand) (*DSConvE, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	embedE, err := nn.NewEmbedding("embed_e", cfg.NumEntities, cfg.EmbeddingSize(), rng)
	if err != nil {
		return nil, err
	}
	embedR, err := nn.NewEmbedding("embed_r", cfg.NumRelations, cfg.EmbeddingSize(), rng)
	if err != nil {
		return nil, err
	}
	conv, err := nn.NewSeparableConv2D("conv", 1, cfg.ConvChannels, cfg.KernelSize, rng)
	if err != nil {
		return nil, err
	}
	convNorm, err := nn.NewBatchNorm("conv_bn", cfg.ConvChannels)
	if err != nil {
		return nil, err
	}
	proj, err := nn.NewLinear("proj", cfg.flattenedSize(), cfg.EmbeddingSize(), rng)
	if err != nil {
		return nil, err
	}
	projNorm, err := nn.NewBatchNorm("proj_bn", cfg.EmbeddingSize())
	if err != nil {
		return nil, err
	}

	return &DSConvE{
		cfg:       cfg,
		embedE:    embedE,
		embedR:    embedR,
		inputDrop: nn.NewDropout(cfg.EmbedDropout, rng),
		conv:      conv,
		convNorm:  convNorm,
		featDrop:  nn.NewDropout2D(cfg.FeatureMapDropout, rng),
		proj:      proj,
		projNorm:  projNorm,
		projDrop:  nn.NewDropout(cfg.ProjDropout, rng),
	}, nil
}

// Config returns the model's configuration.
func (m *DSConvE) Config() Config { return m.cfg }

// Forward scores every candidate object for each (subject, relation) query,
// returning raw logits [len(subjects), NumEntities]. Higher means the model
// believes that entity is more likely the true object.
//
// train selects training behavior (dropout active, batch statistics) versus
// evaluation behavior (no dropout, running statistics).
func (m *DSConvE) Forward(r ops.Recorder, subjects, relations []int32, train bool) *tensor.Tensor {
	if len(subjects) != len(relations) {
		panic(fmt.Sprintf("model: %d subjects but %d relations", len(subjects), len(relations)))
	}
	if len(subjects) == 0 {
		panic("model: empty batch")
	}

	es := m.embedE.Forward(r, subjects)  // [batch, H*W]
	er := m.embedR.Forward(r, relations) // [batch, H*W]

	x := ops.StackImage(r, es, er, m.cfg.EmbeddingWidth, m.cfg.EmbeddingHeight) // [batch, 1, 2W, H]
	x = m.inputDrop.Forward(r, x, train)

	x = m.conv.Forward(r, x) // [batch, C, 2W-k+1, H-k+1]
	x = ops.ReLU(r, x)
	x = m.convNorm.Forward(r, x, train)
	x = m.featDrop.Forward(r, x, train)

	x = ops.Flatten(r, x)    // [batch, C*(2W-k+1)*(H-k+1)]
	x = m.proj.Forward(r, x) // [batch, H*W]
	x = ops.ReLU(r, x)
	x = m.projNorm.Forward(r, x, train)
	x = m.projDrop.Forward(r, x, train)

	// Score against every entity: [batch, H*W] @ embedEᵀ -> [batch, NumEntities].
	return ops.Dense(r, x, m.embedE.Weight.Tensor(), nil)
}

// Predict runs the inference scoring path: evaluation mode plus a sigmoid
// mapping the logits to [0, 1]. Training never goes through here; the loss
// wants raw logits.
func (m *DSConvE) Predict(r ops.Recorder, subjects, relations []int32) *tensor.Tensor {
	return tensor.Sigmoid(m.Forward(r, subjects, relations, false))
}

// Parameters returns every trainable parameter in a stable order.
func (m *DSConvE) Parameters() []*nn.Parameter {
	params := make([]*nn.Parameter, 0, 10)
	params = append(params, m.embedE.Parameters()...)
	params = append(params, m.embedR.Parameters()...)
	params = append(params, m.conv.Parameters()...)
	params = append(params, m.convNorm.Parameters()...)
	params = append(params, m.proj.Parameters()...)
	params = append(params, m.projNorm.Parameters()...)
	return params
}

// StateDict merges the state of every stateful submodule.
func (m *DSConvE) StateDict() map[string]*tensor.Tensor {
	state := make(map[string]*tensor.Tensor)
	for _, mod := range m.statefulModules() {
		for name, t := range mod.StateDict() {
			state[name] = t
		}
	}
	return state
}

// LoadStateDict restores every stateful submodule.
func (m *DSConvE) LoadStateDict(state map[string]*tensor.Tensor) error {
	for _, mod := range m.statefulModules() {
		if err := mod.LoadStateDict(state); err != nil {
			return err
		}
	}
	return nil
}

func (m *DSConvE) statefulModules() []nn.Module {
	return []nn.Module{m.embedE, m.embedR, m.conv, m.convNorm, m.proj, m.projNorm}
}
