package autodiff

import "math"

// Sum reduces a slice with a single n-ary node, keeping the graph shallow
// regardless of batch size. The slice is copied, so callers may reuse their
// buffer. An empty slice sums to a constant zero.
func Sum(xs []*Value) *Value {
	if len(xs) == 0 {
		return Const(0)
	}
	total := 0.0
	parents := make([]*Value, len(xs))
	locals := make([]float64, len(xs))
	for i, x := range xs {
		total += x.Data
		parents[i] = x
		locals[i] = 1
	}
	return &Value{Data: total, parents: parents, locals: locals}
}

// Mean is Sum divided by the element count.
func Mean(xs []*Value) *Value {
	if len(xs) == 0 {
		return Const(0)
	}
	return Sum(xs).MulConst(1 / float64(len(xs)))
}

// Dot returns the inner product of a and b as one n-ary node.
// Panics if the lengths differ; that is a programming error on the same
// footing as an out-of-range index.
func Dot(a, b []*Value) *Value {
	if len(a) != len(b) {
		panic("autodiff: Dot length mismatch")
	}
	if len(a) == 0 {
		return Const(0)
	}
	total := 0.0
	parents := make([]*Value, 0, 2*len(a))
	locals := make([]float64, 0, 2*len(a))
	for i := range a {
		total += a[i].Data * b[i].Data
		parents = append(parents, a[i], b[i])
		locals = append(locals, b[i].Data, a[i].Data)
	}
	return &Value{Data: total, parents: parents, locals: locals}
}

// MaxData returns the largest forward value in xs. It is a plain float, used
// for numerically shifting softmax-style reductions; subtracting a constant
// shift does not alter gradients.
func MaxData(xs []*Value) float64 {
	m := math.Inf(-1)
	for _, x := range xs {
		if x.Data > m {
			m = x.Data
		}
	}
	return m
}

// Softmax returns the max-shifted softmax of xs.
func Softmax(xs []*Value) []*Value {
	shift := MaxData(xs)
	exps := make([]*Value, len(xs))
	for i, x := range xs {
		exps[i] = x.AddConst(-shift).Exp()
	}
	total := Sum(exps)
	out := make([]*Value, len(xs))
	for i := range exps {
		out[i] = exps[i].Div(total)
	}
	return out
}

// LogSumExp returns log(Σ e^x) with the usual max shift.
func LogSumExp(xs []*Value) *Value {
	shift := MaxData(xs)
	exps := make([]*Value, len(xs))
	for i, x := range xs {
		exps[i] = x.AddConst(-shift).Exp()
	}
	return Sum(exps).Log().AddConst(shift)
}

// MaxOf selects the element with the largest forward value. Gradient flows
// only through the winner, like the active branch of ReLU.
func MaxOf(xs []*Value) *Value {
	if len(xs) == 0 {
		return Const(math.Inf(-1))
	}
	best := xs[0]
	for _, x := range xs[1:] {
		if x.Data > best.Data {
			best = x
		}
	}
	return unary(best.Data, best, 1)
}

// MinOf selects the element with the smallest forward value.
func MinOf(xs []*Value) *Value {
	if len(xs) == 0 {
		return Const(math.Inf(1))
	}
	best := xs[0]
	for _, x := range xs[1:] {
		if x.Data < best.Data {
			best = x
		}
	}
	return unary(best.Data, best, 1)
}

// ArgMaxData returns the index of the largest forward value.
func ArgMaxData(xs []*Value) int {
	idx := 0
	for i, x := range xs {
		if x.Data > xs[idx].Data {
			idx = i
		}
	}
	return idx
}
