package tensor

import (
	"fmt"
	"math"

	"github.com/convkg-ml/convkg/internal/parallel"
)

// Kernel-level operations shared by the autodiff ops. These do plain
// forward arithmetic; gradient bookkeeping lives in internal/autodiff.

// Add returns a + b element-wise. Shapes must match exactly; the tape uses
// this to accumulate gradients for tensors consumed more than once.
func Add(a, b *Tensor) *Tensor {
	if !a.shape.Equal(b.shape) {
		panic(fmt.Sprintf("tensor: Add shape mismatch %v vs %v", a.shape, b.shape))
	}
	out := New(a.shape)
	for i := range out.data {
		out.data[i] = a.data[i] + b.data[i]
	}
	return out
}

// AddInPlace accumulates b into a element-wise.
func AddInPlace(a, b *Tensor) {
	if !a.shape.Equal(b.shape) {
		panic(fmt.Sprintf("tensor: AddInPlace shape mismatch %v vs %v", a.shape, b.shape))
	}
	for i := range a.data {
		a.data[i] += b.data[i]
	}
}

// MatMul computes a @ b for a [n,k] and b [k,m], producing [n,m].
// Rows are computed in parallel.
func MatMul(a, b *Tensor) *Tensor {
	n, k, m := matmulDims(a, b, false)
	out := New(Shape{n, m})
	ad, bd, od := a.data, b.data, out.data
	parallel.For(n, parallel.DefaultConfig(), func(i int) {
		row := od[i*m : (i+1)*m]
		for p := 0; p < k; p++ {
			av := ad[i*k+p]
			if av == 0 {
				continue
			}
			bRow := bd[p*m : (p+1)*m]
			for j := range row {
				row[j] += av * bRow[j]
			}
		}
	})
	return out
}

// MatMulT computes a @ bᵀ for a [n,k] and b [m,k], producing [n,m].
// This is the scoring kernel: projected vectors against the embedding
// matrix without materializing the transpose.
func MatMulT(a, b *Tensor) *Tensor {
	n, k, m := matmulDims(a, b, true)
	out := New(Shape{n, m})
	ad, bd, od := a.data, b.data, out.data
	parallel.For(n, parallel.DefaultConfig(), func(i int) {
		aRow := ad[i*k : (i+1)*k]
		for j := 0; j < m; j++ {
			bRow := bd[j*k : (j+1)*k]
			var sum float32
			for p := range aRow {
				sum += aRow[p] * bRow[p]
			}
			od[i*m+j] = sum
		}
	})
	return out
}

// TMatMul computes aᵀ @ b for a [n,k] and b [n,m], producing [k,m].
// Used for weight gradients of dense layers.
func TMatMul(a, b *Tensor) *Tensor {
	if len(a.shape) != 2 || len(b.shape) != 2 || a.shape[0] != b.shape[0] {
		panic(fmt.Sprintf("tensor: TMatMul shape mismatch %v vs %v", a.shape, b.shape))
	}
	n, k, m := a.shape[0], a.shape[1], b.shape[1]
	out := New(Shape{k, m})
	ad, bd, od := a.data, b.data, out.data
	parallel.For(k, parallel.DefaultConfig(), func(p int) {
		row := od[p*m : (p+1)*m]
		for i := 0; i < n; i++ {
			av := ad[i*k+p]
			if av == 0 {
				continue
			}
			bRow := bd[i*m : (i+1)*m]
			for j := range row {
				row[j] += av * bRow[j]
			}
		}
	})
	return out
}

// Sigmoid returns 1/(1+exp(-x)) element-wise. Inference-path only: training
// works on raw logits through the numerically stable loss.
func Sigmoid(x *Tensor) *Tensor {
	out := New(x.shape)
	for i, v := range x.data {
		out.data[i] = float32(1.0 / (1.0 + math.Exp(-float64(v))))
	}
	return out
}

func matmulDims(a, b *Tensor, transposed bool) (n, k, m int) {
	if len(a.shape) != 2 || len(b.shape) != 2 {
		panic(fmt.Sprintf("tensor: matmul requires 2D operands, got %v and %v", a.shape, b.shape))
	}
	n, k = a.shape[0], a.shape[1]
	if transposed {
		if b.shape[1] != k {
			panic(fmt.Sprintf("tensor: MatMulT inner dimension mismatch %v vs %v", a.shape, b.shape))
		}
		return n, k, b.shape[0]
	}
	if b.shape[0] != k {
		panic(fmt.Sprintf("tensor: MatMul inner dimension mismatch %v vs %v", a.shape, b.shape))
	}
	return n, k, b.shape[1]
}
