// Package nn holds the small neural building blocks shared by the field and
// warp code: frequency positional encodings, multilayer perceptrons with
// skip connections, and learned code tables (instance and appearance
// embeddings). Everything operates on autodiff tape values.
package nn

import (
	"math"
	"math/rand"

	ad "github.com/morph4d/morph4d/internal/autodiff"
)

// Activation selects the nonlinearity applied between MLP layers.
type Activation int

const (
	// ActReLU is the default hidden activation.
	ActReLU Activation = iota
	// ActTanh bounds hidden activations; used by flow-style heads.
	ActTanh
	// ActNone disables the nonlinearity (output layers).
	ActNone
)

func (a Activation) apply(v *ad.Value) *ad.Value {
	switch a {
	case ActReLU:
		return v.ReLU()
	case ActTanh:
		return v.Tanh()
	default:
		return v
	}
}

// PosEncoding is a band of sin/cos features at octave frequencies, the
// standard positional encoding for coordinate networks. With IncludeInput
// the raw coordinates are passed through as the leading features.
type PosEncoding struct {
	NumFreqs     int
	IncludeInput bool
}

// NewPosEncoding returns an encoding with NumFreqs octaves that passes the
// raw input through.
func NewPosEncoding(numFreqs int) PosEncoding {
	return PosEncoding{NumFreqs: numFreqs, IncludeInput: true}
}

// Dim returns the encoded width for an input of the given dimensionality.
func (pe PosEncoding) Dim(inDim int) int {
	d := 2 * pe.NumFreqs * inDim
	if pe.IncludeInput {
		d += inDim
	}
	return d
}

// Encode expands x into its frequency features.
func (pe PosEncoding) Encode(x []*ad.Value) []*ad.Value {
	out := make([]*ad.Value, 0, pe.Dim(len(x)))
	if pe.IncludeInput {
		out = append(out, x...)
	}
	for k := 0; k < pe.NumFreqs; k++ {
		freq := math.Pow(2, float64(k))
		for _, xi := range x {
			s := xi.MulConst(freq)
			out = append(out, s.Sin(), s.Cos())
		}
	}
	return out
}

// Linear is one dense layer: weight rows by output unit plus a bias vector.
type Linear struct {
	W [][]*ad.Value // [out][in]
	B []*ad.Value   // [out]
}

// NewLinear initializes weights at N(0, 1/sqrt(in)) and biases at zero.
func NewLinear(rng *rand.Rand, in, out int) *Linear {
	std := 1 / math.Sqrt(float64(in))
	l := &Linear{
		W: make([][]*ad.Value, out),
		B: make([]*ad.Value, out),
	}
	for o := 0; o < out; o++ {
		row := make([]*ad.Value, in)
		for i := range row {
			row[i] = ad.Param(rng.NormFloat64() * std)
		}
		l.W[o] = row
		l.B[o] = ad.Param(0)
	}
	return l
}

// Forward computes Wx + b.
func (l *Linear) Forward(x []*ad.Value) []*ad.Value {
	out := make([]*ad.Value, len(l.W))
	for o, row := range l.W {
		out[o] = ad.Dot(row, x).Add(l.B[o])
	}
	return out
}

// Params appends the layer's trainable leaves to dst.
func (l *Linear) Params(dst []*ad.Value) []*ad.Value {
	for _, row := range l.W {
		dst = append(dst, row...)
	}
	return append(dst, l.B...)
}

// MLP is a stack of Linear layers with a hidden activation and optional
// skip connections: at each index in Skips, the original input is
// concatenated onto the hidden features before the next layer.
type MLP struct {
	Layers []*Linear
	Out    *Linear
	Act    Activation
	Skips  map[int]bool
	inDim  int
}

// NewMLP builds depth hidden layers of the given width over inDim inputs,
// plus a linear head to outDim. skips lists hidden-layer indices that
// receive the input again.
func NewMLP(rng *rand.Rand, inDim, width, depth, outDim int, skips []int, act Activation) *MLP {
	m := &MLP{
		Act:   act,
		Skips: make(map[int]bool, len(skips)),
		inDim: inDim,
	}
	for _, s := range skips {
		m.Skips[s] = true
	}
	prev := inDim
	for d := 0; d < depth; d++ {
		in := prev
		if m.Skips[d] && d > 0 {
			in += inDim
		}
		m.Layers = append(m.Layers, NewLinear(rng, in, width))
		prev = width
	}
	m.Out = NewLinear(rng, prev, outDim)
	return m
}

// Forward evaluates the network on one feature vector.
func (m *MLP) Forward(x []*ad.Value) []*ad.Value {
	h := x
	for d, layer := range m.Layers {
		if m.Skips[d] && d > 0 {
			h = append(append(make([]*ad.Value, 0, len(h)+len(x)), h...), x...)
		}
		h = layer.Forward(h)
		for i := range h {
			h[i] = m.Act.apply(h[i])
		}
	}
	return m.Out.Forward(h)
}

// Params returns every trainable leaf in the network.
func (m *MLP) Params() []*ad.Value {
	var ps []*ad.Value
	for _, l := range m.Layers {
		ps = l.Params(ps)
	}
	return m.Out.Params(ps)
}

// Embedding is a learned code table. Lookup(-1) returns the mean code,
// which serves as the shared "mean instance" when no id is provided.
type Embedding struct {
	Table [][]*ad.Value // [n][dim]
}

// NewEmbedding initializes n codes of the given width at N(0, 0.1).
func NewEmbedding(rng *rand.Rand, n, dim int) *Embedding {
	e := &Embedding{Table: make([][]*ad.Value, n)}
	for i := range e.Table {
		code := make([]*ad.Value, dim)
		for j := range code {
			code[j] = ad.Param(rng.NormFloat64() * 0.1)
		}
		e.Table[i] = code
	}
	return e
}

// Dim returns the code width.
func (e *Embedding) Dim() int {
	if len(e.Table) == 0 {
		return 0
	}
	return len(e.Table[0])
}

// Lookup returns code i, or the mean over all codes for a negative id.
func (e *Embedding) Lookup(i int) []*ad.Value {
	if i >= 0 {
		return e.Table[i]
	}
	dim := e.Dim()
	mean := make([]*ad.Value, dim)
	for j := 0; j < dim; j++ {
		col := make([]*ad.Value, len(e.Table))
		for r, code := range e.Table {
			col[r] = code[j]
		}
		mean[j] = ad.Mean(col)
	}
	return mean
}

// Params returns every code component.
func (e *Embedding) Params() []*ad.Value {
	var ps []*ad.Value
	for _, code := range e.Table {
		ps = append(ps, code...)
	}
	return ps
}
