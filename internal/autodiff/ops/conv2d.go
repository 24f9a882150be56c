package ops

import (
	"fmt"

	"github.com/convkg-ml/convkg/internal/parallel"
	"github.com/convkg-ml/convkg/internal/tensor"
)

// Conv2D computes a grouped 2D cross-correlation with stride 1 and no
// padding or bias.
//
// input  [batch, inChannels, h, w]
// kernel [outChannels, inChannels/groups, k, k]
// output [batch, outChannels, h-k+1, w-k+1]
//
// groups = inChannels gives the depthwise stage (one independent kernel per
// input channel); groups = 1 with k = 1 gives the pointwise channel-mixing
// stage. The two together form the depthwise-separable convolution.
func Conv2D(r Recorder, input, kernel *tensor.Tensor, groups int) *tensor.Tensor {
	in, ker := input.Shape(), kernel.Shape()
	if len(in) != 4 || len(ker) != 4 {
		panic(fmt.Sprintf("ops: Conv2D wants 4D input and kernel, got %v and %v", in, ker))
	}
	batch, inC, h, w := in[0], in[1], in[2], in[3]
	outC, kerC, kh, kw := ker[0], ker[1], ker[2], ker[3]
	if kh != kw {
		panic(fmt.Sprintf("ops: Conv2D kernel must be square, got %dx%d", kh, kw))
	}
	k := kh
	if groups <= 0 || inC%groups != 0 || outC%groups != 0 {
		panic(fmt.Sprintf("ops: Conv2D groups %d does not divide channels %d/%d", groups, inC, outC))
	}
	if kerC != inC/groups {
		panic(fmt.Sprintf("ops: Conv2D kernel channels %d, want %d for %d groups over %d inputs", kerC, inC/groups, groups, inC))
	}
	outH, outW := h-k+1, w-k+1
	if outH <= 0 || outW <= 0 {
		panic(fmt.Sprintf("ops: Conv2D kernel %d larger than input %dx%d", k, h, w))
	}

	cinPer := inC / groups
	coutPer := outC / groups
	out := tensor.New(tensor.Shape{batch, outC, outH, outW})
	id, kd, od := input.Data(), kernel.Data(), out.Data()

	parallel.For(batch*outC, parallel.Config{Workers: parallel.DefaultConfig().Workers, MinChunk: 1}, func(n int) {
		b, oc := n/outC, n%outC
		group := oc / coutPer
		dst := od[(b*outC+oc)*outH*outW:]
		for icl := 0; icl < cinPer; icl++ {
			ic := group*cinPer + icl
			src := id[(b*inC+ic)*h*w:]
			kRow := kd[(oc*cinPer+icl)*k*k:]
			for i := 0; i < outH; i++ {
				for j := 0; j < outW; j++ {
					var sum float32
					for di := 0; di < k; di++ {
						inRow := src[(i+di)*w+j:]
						kOff := kRow[di*k:]
						for dj := 0; dj < k; dj++ {
							sum += inRow[dj] * kOff[dj]
						}
					}
					dst[i*outW+j] += sum
				}
			}
		}
	})

	record(r, &conv2DOp{input: input, kernel: kernel, output: out, groups: groups})
	return out
}

// conv2DOp computes input and kernel gradients for the grouped convolution.
// The input gradient is the full correlation of the output gradient with the
// flipped kernel; the kernel gradient correlates input with output gradient.
type conv2DOp struct {
	input  *tensor.Tensor
	kernel *tensor.Tensor
	output *tensor.Tensor
	groups int
}

func (op *conv2DOp) Inputs() []*tensor.Tensor {
	return []*tensor.Tensor{op.input, op.kernel}
}
func (op *conv2DOp) Output() *tensor.Tensor { return op.output }

func (op *conv2DOp) Backward(outputGrad *tensor.Tensor) []*tensor.Tensor {
	in, ker := op.input.Shape(), op.kernel.Shape()
	batch, inC, h, w := in[0], in[1], in[2], in[3]
	outC, cinPer, k := ker[0], ker[1], ker[2]
	outH, outW := h-k+1, w-k+1
	coutPer := outC / op.groups

	id, kd, gd := op.input.Data(), op.kernel.Data(), outputGrad.Data()

	gradIn := tensor.New(in)
	gid := gradIn.Data()
	parallel.For(batch, parallel.Config{Workers: parallel.DefaultConfig().Workers, MinChunk: 1}, func(b int) {
		for oc := 0; oc < outC; oc++ {
			group := oc / coutPer
			g := gd[(b*outC+oc)*outH*outW:]
			for icl := 0; icl < cinPer; icl++ {
				ic := group*cinPer + icl
				dst := gid[(b*inC+ic)*h*w:]
				kRow := kd[(oc*cinPer+icl)*k*k:]
				for i := 0; i < outH; i++ {
					for j := 0; j < outW; j++ {
						gv := g[i*outW+j]
						if gv == 0 {
							continue
						}
						for di := 0; di < k; di++ {
							row := dst[(i+di)*w+j:]
							kOff := kRow[di*k:]
							for dj := 0; dj < k; dj++ {
								row[dj] += gv * kOff[dj]
							}
						}
					}
				}
			}
		}
	})

	gradKer := tensor.New(ker)
	gkd := gradKer.Data()
	parallel.For(outC, parallel.Config{Workers: parallel.DefaultConfig().Workers, MinChunk: 1}, func(oc int) {
		group := oc / coutPer
		for icl := 0; icl < cinPer; icl++ {
			ic := group*cinPer + icl
			dst := gkd[(oc*cinPer+icl)*k*k:]
			for b := 0; b < batch; b++ {
				g := gd[(b*outC+oc)*outH*outW:]
				src := id[(b*inC+ic)*h*w:]
				for i := 0; i < outH; i++ {
					for j := 0; j < outW; j++ {
						gv := g[i*outW+j]
						if gv == 0 {
							continue
						}
						for di := 0; di < k; di++ {
							row := src[(i+di)*w+j:]
							kOff := dst[di*k:]
							for dj := 0; dj < k; dj++ {
								kOff[dj] += gv * row[dj]
							}
						}
					}
				}
			}
		}
	})

	return []*tensor.Tensor{gradIn, gradKer}
}
