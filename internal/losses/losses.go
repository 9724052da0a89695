// Package losses provides the regularization and matching terms used while
// fitting the deformable field: distribution entropy, a hard-assignment
// cross-entropy for skinning weights, least-squares scale alignment, and a
// class-weighted binary cross-entropy.
package losses

import (
	"errors"

	ad "github.com/morph4d/morph4d/internal/autodiff"
)

// ErrDegenerateSource is returned by AlignScale when the source vector is
// identically zero and no scale can align it to anything.
var ErrDegenerateSource = errors.New("losses: align scale source is zero")

const logEps = 1e-9

// Entropy returns -Σ p·log(p+ε) for one probability row. The input must be
// non-negative and normalized over its length. For skinning weights each row
// is a distribution over bone assignments; low entropy means a point commits
// to few bones.
func Entropy(prob []*ad.Value) *ad.Value {
	terms := make([]*ad.Value, len(prob))
	for i, p := range prob {
		terms[i] = p.Mul(p.AddConst(logEps).Log())
	}
	return ad.Sum(terms).Neg()
}

// EntropyRows applies Entropy to each row.
func EntropyRows(rows [][]*ad.Value) []*ad.Value {
	out := make([]*ad.Value, len(rows))
	for i, r := range rows {
		out[i] = Entropy(r)
	}
	return out
}

// HardAssignmentCrossEntropy pushes unnormalized scores toward a one-hot
// assignment: it takes the argmax category of the row as a fixed target and
// returns the cross-entropy of softmax(scores) against that target,
// log Σ e^s − s[argmax]. Zero when the row is already effectively one-hot;
// gradients keep flowing through every score.
func HardAssignmentCrossEntropy(scores []*ad.Value) *ad.Value {
	idx := ad.ArgMaxData(scores)
	return ad.LogSumExp(scores).Sub(scores[idx])
}

// HardAssignmentCrossEntropyRows reduces the trailing axis of each row.
func HardAssignmentCrossEntropyRows(rows [][]*ad.Value) []*ad.Value {
	out := make([]*ad.Value, len(rows))
	for i, r := range rows {
		out[i] = HardAssignmentCrossEntropy(r)
	}
	return out
}

// AlignScale returns the least-squares scale s minimizing ‖s·source−target‖²,
// which is ⟨source,target⟩/⟨source,source⟩. A negative result means the best
// alignment flips orientation; that is treated as invalid and clamped to 1.
// An identically zero source has no defined scale and returns
// ErrDegenerateSource.
func AlignScale(source, target []*ad.Value) (*ad.Value, error) {
	denom := ad.Dot(source, source)
	if denom.Data == 0 {
		return nil, ErrDegenerateSource
	}
	s := ad.Dot(source, target).Div(denom)
	if s.Data < 0 {
		return ad.Const(1), nil
	}
	return s, nil
}

// BinaryCrossEntropy returns the weighted mean of
// −w·[t·log(p) + (1−t)·log(1−p)] with ε-guarded logs. pred and target must
// lie in [0,1]; weight may be nil for uniform weighting. Length mismatches
// panic like an out-of-range index would.
func BinaryCrossEntropy(pred, target, weight []*ad.Value) *ad.Value {
	if len(pred) != len(target) || (weight != nil && len(weight) != len(pred)) {
		panic("losses: BinaryCrossEntropy length mismatch")
	}
	terms := make([]*ad.Value, len(pred))
	for i := range pred {
		p := pred[i]
		t := target[i]
		pos := t.Mul(p.AddConst(logEps).Log())
		neg := t.Neg().AddConst(1).Mul(p.Neg().AddConst(1 + logEps).Log())
		term := pos.Add(neg).Neg()
		if weight != nil {
			term = term.Mul(weight[i])
		}
		terms[i] = term
	}
	return ad.Mean(terms)
}

// BalancedBCEWeights returns per-point weights that equalize the aggregate
// positive and negative class contributions of a density batch:
// w = d·(0.5/mean(d)) + (1−d)·(0.5/mean(1−d)), with a 1e-6 floor on both
// denominators. The input is read as forward values only; the returned
// weights are constants, matching the detached weighting of the original
// formulation.
func BalancedBCEWeights(density []*ad.Value) []*ad.Value {
	if len(density) == 0 {
		return nil
	}
	var meanPos float64
	for _, d := range density {
		meanPos += d.Data
	}
	meanPos /= float64(len(density))
	meanNeg := 1 - meanPos

	weightPos := 0.5 / (1e-6 + meanPos)
	weightNeg := 0.5 / (1e-6 + meanNeg)

	out := make([]*ad.Value, len(density))
	for i, d := range density {
		out[i] = ad.Const(d.Data*weightPos + (1-d.Data)*weightNeg)
	}
	return out
}
