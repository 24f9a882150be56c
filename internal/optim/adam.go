package optim

import (
	"fmt"
	"math"

	"github.com/convkg-ml/convkg/internal/nn"
	"github.com/convkg-ml/convkg/internal/tensor"
)

// AdamConfig holds Adam hyperparameters. Zero values fall back to the
// usual defaults (lr 0.001, betas 0.9/0.999, eps 1e-8); the trainer passes
// lr 0.003.
type AdamConfig struct {
	LR    float32
	Beta1 float32
	Beta2 float32
	Eps   float32
}

// Adam implements Adam (Kingma & Ba, 2014): exponential moving averages of
// gradients and squared gradients with bias correction.
//
//	m_t = beta1*m + (1-beta1)*g
//	v_t = beta2*v + (1-beta2)*g²
//	param -= lr * (m_t / (1-beta1^t)) / (sqrt(v_t / (1-beta2^t)) + eps)
type Adam struct {
	params []*nn.Parameter
	cfg    AdamConfig
	t      int

	m map[*nn.Parameter]*tensor.Tensor
	v map[*nn.Parameter]*tensor.Tensor
}

// NewAdam creates an Adam optimizer over the given parameters.
func NewAdam(params []*nn.Parameter, cfg AdamConfig) *Adam {
	if cfg.LR == 0 {
		cfg.LR = 0.001
	}
	if cfg.Beta1 == 0 {
		cfg.Beta1 = 0.9
	}
	if cfg.Beta2 == 0 {
		cfg.Beta2 = 0.999
	}
	if cfg.Eps == 0 {
		cfg.Eps = 1e-8
	}
	return &Adam{
		params: params,
		cfg:    cfg,
		m:      make(map[*nn.Parameter]*tensor.Tensor, len(params)),
		v:      make(map[*nn.Parameter]*tensor.Tensor, len(params)),
	}
}

// Step applies one Adam update to every parameter with a gradient.
func (a *Adam) Step(grads map[*tensor.Tensor]*tensor.Tensor) {
	a.t++
	correction1 := float32(1 - math.Pow(float64(a.cfg.Beta1), float64(a.t)))
	correction2 := float32(1 - math.Pow(float64(a.cfg.Beta2), float64(a.t)))

	for _, param := range a.params {
		grad, ok := grads[param.Tensor()]
		if !ok {
			continue
		}
		m, ok := a.m[param]
		if !ok {
			m = tensor.Zeros(param.Tensor().Shape())
			a.m[param] = m
		}
		v, ok := a.v[param]
		if !ok {
			v = tensor.Zeros(param.Tensor().Shape())
			a.v[param] = v
		}

		gd, md, vd := grad.Data(), m.Data(), v.Data()
		pd := param.Tensor().Data()
		for i := range pd {
			g := gd[i]
			md[i] = a.cfg.Beta1*md[i] + (1-a.cfg.Beta1)*g
			vd[i] = a.cfg.Beta2*vd[i] + (1-a.cfg.Beta2)*g*g
			mHat := md[i] / correction1
			vHat := vd[i] / correction2
			pd[i] -= a.cfg.LR * mHat / (float32(math.Sqrt(float64(vHat))) + a.cfg.Eps)
		}
	}
}

// LR returns the configured learning rate.
func (a *Adam) LR() float32 { return a.cfg.LR }

// Timestep returns the number of steps applied so far.
func (a *Adam) Timestep() int { return a.t }

// StateDict returns the moment buffers keyed by parameter name plus the
// step counter. Moments for parameters that never received a gradient are
// materialized as zeros so the dict has a stable set of keys.
func (a *Adam) StateDict() map[string]*tensor.Tensor {
	state := make(map[string]*tensor.Tensor, 2*len(a.params)+1)
	for _, param := range a.params {
		m, ok := a.m[param]
		if !ok {
			m = tensor.Zeros(param.Tensor().Shape())
		}
		v, ok := a.v[param]
		if !ok {
			v = tensor.Zeros(param.Tensor().Shape())
		}
		state[param.Name()+".m"] = m
		state[param.Name()+".v"] = v
	}
	step := tensor.New(tensor.Shape{1})
	step.Data()[0] = float32(a.t)
	state["step"] = step
	return state
}

// LoadStateDict restores the moment buffers and step counter.
func (a *Adam) LoadStateDict(state map[string]*tensor.Tensor) error {
	step, ok := state["step"]
	if !ok {
		return fmt.Errorf("optim: state dict missing %q", "step")
	}
	a.t = int(step.Item())

	for _, param := range a.params {
		for _, moment := range []string{".m", ".v"} {
			key := param.Name() + moment
			src, ok := state[key]
			if !ok {
				return fmt.Errorf("optim: state dict missing %q", key)
			}
			if !src.Shape().Equal(param.Tensor().Shape()) {
				return fmt.Errorf("optim: %q shape mismatch: have %v, want %v",
					key, src.Shape(), param.Tensor().Shape())
			}
			dst := src.Clone()
			if moment == ".m" {
				a.m[param] = dst
			} else {
				a.v[param] = dst
			}
		}
	}
	return nil
}
