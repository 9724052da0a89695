// Package optim implements the first-order update rules used to fit tape
// parameters: plain SGD and bias-corrected Adam. Optimizers own their
// parameter slice for their lifetime; moment state is indexed by position.
package optim

import (
	"math"

	ad "github.com/morph4d/morph4d/internal/autodiff"
)

// Optimizer advances parameters along their accumulated gradients.
type Optimizer interface {
	Step()
	ZeroGrad()
}

// SGD is gradient descent with a fixed learning rate.
type SGD struct {
	LR float64

	params []*ad.Value
}

// NewSGD returns a plain gradient-descent optimizer.
func NewSGD(params []*ad.Value, lr float64) *SGD {
	return &SGD{LR: lr, params: params}
}

// Step applies one descent update. Gradients are left in place; call
// ZeroGrad before the next backward pass.
func (s *SGD) Step() {
	for _, p := range s.params {
		p.Data -= s.LR * p.Grad
	}
}

// ZeroGrad clears accumulated gradients.
func (s *SGD) ZeroGrad() { ad.ZeroGrad(s.params) }

// Adam is the adaptive-moment optimizer with bias-corrected first and
// second moment estimates.
type Adam struct {
	LR    float64
	Beta1 float64
	Beta2 float64
	Eps   float64

	params []*ad.Value
	m, v   []float64
	t      int
}

// NewAdam returns an Adam optimizer with the standard moment decays
// (0.9, 0.999) and epsilon 1e-8.
func NewAdam(params []*ad.Value, lr float64) *Adam {
	return &Adam{
		LR:     lr,
		Beta1:  0.9,
		Beta2:  0.999,
		Eps:    1e-8,
		params: params,
		m:      make([]float64, len(params)),
		v:      make([]float64, len(params)),
	}
}

// Step applies one Adam update with bias correction.
func (a *Adam) Step() {
	a.t++
	c1 := 1 - math.Pow(a.Beta1, float64(a.t))
	c2 := 1 - math.Pow(a.Beta2, float64(a.t))
	for i, p := range a.params {
		g := p.Grad
		a.m[i] = a.Beta1*a.m[i] + (1-a.Beta1)*g
		a.v[i] = a.Beta2*a.v[i] + (1-a.Beta2)*g*g
		p.Data -= a.LR * (a.m[i] / c1) / (math.Sqrt(a.v[i]/c2) + a.Eps)
	}
}

// ZeroGrad clears accumulated gradients.
func (a *Adam) ZeroGrad() { ad.ZeroGrad(a.params) }

var (
	_ Optimizer = (*SGD)(nil)
	_ Optimizer = (*Adam)(nil)
)
