package nn

import (
	"math"
	"math/rand"

	"github.com/convkg-ml/convkg/internal/tensor"
)

// Xavier returns a tensor initialized from the Glorot uniform distribution
// U(-b, b) with b = sqrt(6 / (fanIn + fanOut)), which keeps activation
// variance roughly constant across layers.
func Xavier(fanIn, fanOut int, shape tensor.Shape, rng *rand.Rand) *tensor.Tensor {
	bound := float32(math.Sqrt(6.0 / float64(fanIn+fanOut)))
	return tensor.Uniform(shape, -bound, bound, rng)
}
