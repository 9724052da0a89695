// Package autodiff implements a scalar reverse-mode differentiation tape.
//
// Every Value is a node in a dynamically built computation graph. Operations
// record their inputs and local derivatives; Backward walks the graph once in
// reverse topological order and accumulates gradients into the leaves.
//
// The tape is scalar-valued on purpose: the geometry and field code in this
// repository composes small fixed-size quantities (3-vectors, quaternions,
// MLP activations), and a scalar tape keeps that algebra readable. Gradient
// isolation is expressed with Detach, an explicit stop-gradient node, never
// with a global mode switch.
package autodiff

import "math"

// Value is a node in the differentiation tape. Data is the forward result,
// Grad is filled in by Backward. A Value with no parents is a leaf: either a
// constant or a trainable parameter.
type Value struct {
	Data float64
	Grad float64

	parents []*Value
	locals  []float64 // d(self)/d(parents[i]) at the forward point
}

// Const returns a leaf node. Gradients accumulate into it like any other
// leaf, so the same constructor serves constants and parameters; optimizers
// only ever see the slices a module chooses to expose via its Params method.
func Const(x float64) *Value {
	return &Value{Data: x}
}

// Param is Const under a name that marks intent at call sites.
func Param(x float64) *Value {
	return &Value{Data: x}
}

// Lift converts a float64 slice into constant leaves.
func Lift(xs []float64) []*Value {
	out := make([]*Value, len(xs))
	for i, x := range xs {
		out[i] = Const(x)
	}
	return out
}

func unary(data float64, p *Value, local float64) *Value {
	return &Value{Data: data, parents: []*Value{p}, locals: []float64{local}}
}

func binary(data float64, a, b *Value, la, lb float64) *Value {
	return &Value{Data: data, parents: []*Value{a, b}, locals: []float64{la, lb}}
}

// Add returns v + b.
func (v *Value) Add(b *Value) *Value {
	return binary(v.Data+b.Data, v, b, 1, 1)
}

// Sub returns v - b.
func (v *Value) Sub(b *Value) *Value {
	return binary(v.Data-b.Data, v, b, 1, -1)
}

// Mul returns v * b.
func (v *Value) Mul(b *Value) *Value {
	return binary(v.Data*b.Data, v, b, b.Data, v.Data)
}

// Div returns v / b. Division by zero propagates ±Inf exactly as the
// underlying float math would; callers guard denominators where needed.
func (v *Value) Div(b *Value) *Value {
	inv := 1 / b.Data
	return binary(v.Data*inv, v, b, inv, -v.Data*inv*inv)
}

// Neg returns -v.
func (v *Value) Neg() *Value {
	return unary(-v.Data, v, -1)
}

// AddConst returns v + c without allocating a node for c.
func (v *Value) AddConst(c float64) *Value {
	return unary(v.Data+c, v, 1)
}

// MulConst returns v * c without allocating a node for c.
func (v *Value) MulConst(c float64) *Value {
	return unary(v.Data*c, v, c)
}

// Pow returns v^p for a constant exponent.
func (v *Value) Pow(p float64) *Value {
	return unary(math.Pow(v.Data, p), v, p*math.Pow(v.Data, p-1))
}

// Square returns v*v with a single node.
func (v *Value) Square() *Value {
	return unary(v.Data*v.Data, v, 2*v.Data)
}

// Sqrt returns sqrt(v). The local derivative is floored so that a
// zero-length argument yields a finite (if meaningless) gradient instead of
// poisoning the whole tape with NaN.
func (v *Value) Sqrt() *Value {
	s := math.Sqrt(v.Data)
	d := s
	if d < 1e-12 {
		d = 1e-12
	}
	return unary(s, v, 0.5/d)
}

// Exp returns e^v.
func (v *Value) Exp() *Value {
	e := math.Exp(v.Data)
	return unary(e, v, e)
}

// Log returns ln(v). Callers are responsible for keeping the argument
// positive (the loss utilities add their own epsilon).
func (v *Value) Log() *Value {
	return unary(math.Log(v.Data), v, 1/v.Data)
}

// Sin returns sin(v).
func (v *Value) Sin() *Value {
	return unary(math.Sin(v.Data), v, math.Cos(v.Data))
}

// Cos returns cos(v).
func (v *Value) Cos() *Value {
	return unary(math.Cos(v.Data), v, -math.Sin(v.Data))
}

// Tanh returns tanh(v).
func (v *Value) Tanh() *Value {
	t := math.Tanh(v.Data)
	return unary(t, v, 1-t*t)
}

// Sigmoid returns 1/(1+e^-v).
func (v *Value) Sigmoid() *Value {
	s := 1 / (1 + math.Exp(-v.Data))
	return unary(s, v, s*(1-s))
}

// ReLU returns max(v, 0).
func (v *Value) ReLU() *Value {
	if v.Data > 0 {
		return unary(v.Data, v, 1)
	}
	return unary(0, v, 0)
}

// Abs returns |v| with subgradient sign(v) (zero at the kink).
func (v *Value) Abs() *Value {
	switch {
	case v.Data > 0:
		return unary(v.Data, v, 1)
	case v.Data < 0:
		return unary(-v.Data, v, -1)
	default:
		return unary(0, v, 0)
	}
}

// Clamp limits v to [lo, hi]. The gradient is 1 inside the interval and 0
// where the clamp is active.
func (v *Value) Clamp(lo, hi float64) *Value {
	switch {
	case v.Data < lo:
		return unary(lo, v, 0)
	case v.Data > hi:
		return unary(hi, v, 0)
	default:
		return unary(v.Data, v, 1)
	}
}

// Detach returns a fresh leaf carrying the same Data with no history.
// Gradients never flow through a detached node; this is the tape's explicit
// stop-gradient operation.
func (v *Value) Detach() *Value {
	return &Value{Data: v.Data}
}
