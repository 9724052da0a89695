package losses

import (
	"errors"
	"math"
	"testing"

	ad "github.com/morph4d/morph4d/internal/autodiff"
)

func lift(xs []float64) []*ad.Value {
	out := make([]*ad.Value, len(xs))
	for i, x := range xs {
		out[i] = ad.Param(x)
	}
	return out
}

func TestEntropy(t *testing.T) {
	cases := []struct {
		name string
		prob []float64
		want float64
		tol  float64
	}{
		{"uniform 4", []float64{0.25, 0.25, 0.25, 0.25}, math.Log(4), 1e-6},
		{"uniform 25", uniform(25), math.Log(25), 1e-6},
		{"one-hot", []float64{0, 0, 1, 0}, 0, 1e-6},
		{"two-way split", []float64{0.5, 0.5, 0, 0}, math.Log(2), 1e-6},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Entropy(lift(tc.prob)).Data
			if math.Abs(got-tc.want) > tc.tol {
				t.Errorf("Entropy(%v) = %g, want %g", tc.prob, got, tc.want)
			}
		})
	}
}

func uniform(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 1 / float64(n)
	}
	return out
}

func TestEntropyOrdering(t *testing.T) {
	// Entropy must rank peaked below uniform.
	peaked := Entropy(lift([]float64{0.9, 0.05, 0.03, 0.02})).Data
	flat := Entropy(lift([]float64{0.25, 0.25, 0.25, 0.25})).Data
	if peaked >= flat {
		t.Errorf("peaked entropy %g >= uniform entropy %g", peaked, flat)
	}
}

func TestEntropyGradient(t *testing.T) {
	probs := []float64{0.1, 0.2, 0.3, 0.4}
	vals := lift(probs)
	ad.Backward(Entropy(vals))

	const h = 1e-6
	for i := range probs {
		fwd := func(x float64) float64 {
			p := append([]float64(nil), probs...)
			p[i] = x
			return Entropy(lift(p)).Data
		}
		want := (fwd(probs[i]+h) - fwd(probs[i]-h)) / (2 * h)
		if math.Abs(vals[i].Grad-want) > 1e-4 {
			t.Errorf("dH/dp[%d] = %g, want %g", i, vals[i].Grad, want)
		}
	}
}

func TestHardAssignmentCrossEntropy(t *testing.T) {
	cases := []struct {
		name   string
		scores []float64
		want   float64
		tol    float64
	}{
		{"strongly peaked", []float64{20, 0, 0, 0}, 0, 1e-6},
		{"uniform scores", []float64{1, 1, 1, 1}, math.Log(4), 1e-6},
		{"two close scores", []float64{3, 3, -50}, math.Log(2), 1e-6},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := HardAssignmentCrossEntropy(lift(tc.scores)).Data
			if math.Abs(got-tc.want) > tc.tol {
				t.Errorf("CE(%v) = %g, want %g", tc.scores, got, tc.want)
			}
		})
	}
}

func TestHardAssignmentCrossEntropyGradient(t *testing.T) {
	// d/ds of (logsumexp(s) - s[k]) is softmax(s) - onehot(k): the winner is
	// pulled up, every loser pushed down.
	scores := lift([]float64{1, 0.5, -0.5})
	ad.Backward(HardAssignmentCrossEntropy(scores))

	soft := ad.Softmax(lift([]float64{1, 0.5, -0.5}))
	want := []float64{soft[0].Data - 1, soft[1].Data, soft[2].Data}
	for i := range scores {
		if math.Abs(scores[i].Grad-want[i]) > 1e-6 {
			t.Errorf("grad[%d] = %g, want %g", i, scores[i].Grad, want[i])
		}
	}
	if scores[0].Grad >= 0 {
		t.Errorf("winner gradient %g should be negative", scores[0].Grad)
	}
	if scores[1].Grad <= 0 || scores[2].Grad <= 0 {
		t.Errorf("loser gradients (%g, %g) should be positive", scores[1].Grad, scores[2].Grad)
	}
}

func TestAlignScale(t *testing.T) {
	cases := []struct {
		name   string
		source []float64
		target []float64
		want   float64
	}{
		{"identity", []float64{1, 2, 3}, []float64{1, 2, 3}, 1},
		{"double", []float64{1, 2, 3}, []float64{2, 4, 6}, 2},
		{"half", []float64{2, 4, 6}, []float64{1, 2, 3}, 0.5},
		{"opposed clamps to one", []float64{1, 2, 3}, []float64{-1, -2, -3}, 1},
		{"orthogonal clamps nothing", []float64{1, 0}, []float64{0, 1}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, err := AlignScale(lift(tc.source), lift(tc.target))
			if err != nil {
				t.Fatalf("AlignScale: %v", err)
			}
			if math.Abs(s.Data-tc.want) > 1e-9 {
				t.Errorf("scale = %g, want %g", s.Data, tc.want)
			}
		})
	}
}

func TestAlignScaleDegenerateSource(t *testing.T) {
	_, err := AlignScale(lift([]float64{0, 0, 0}), lift([]float64{1, 2, 3}))
	if !errors.Is(err, ErrDegenerateSource) {
		t.Fatalf("err = %v, want ErrDegenerateSource", err)
	}
}

func TestAlignScaleResidual(t *testing.T) {
	// The returned scale minimizes ||s*source - target||^2, so nudging it in
	// either direction must not reduce the residual.
	source := []float64{1, -2, 0.5, 3}
	target := []float64{0.9, -2.2, 0.7, 2.6}
	s, err := AlignScale(lift(source), lift(target))
	if err != nil {
		t.Fatalf("AlignScale: %v", err)
	}
	resid := func(scale float64) float64 {
		var sum float64
		for i := range source {
			d := scale*source[i] - target[i]
			sum += d * d
		}
		return sum
	}
	best := resid(s.Data)
	for _, d := range []float64{-1e-3, 1e-3} {
		if resid(s.Data+d) < best {
			t.Errorf("residual at s%+g is below residual at s=%g", d, s.Data)
		}
	}
}

func TestBinaryCrossEntropy(t *testing.T) {
	cases := []struct {
		name   string
		pred   []float64
		target []float64
		want   float64
		tol    float64
	}{
		{"perfect", []float64{1, 0, 1, 0}, []float64{1, 0, 1, 0}, 0, 1e-6},
		{"coin flip", []float64{0.5, 0.5}, []float64{1, 0}, math.Log(2), 1e-6},
		{"confidently wrong", []float64{1, 1}, []float64{1, 0}, -math.Log(logEps) / 2, 1e-3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := BinaryCrossEntropy(lift(tc.pred), lift(tc.target), nil).Data
			if math.Abs(got-tc.want) > tc.tol {
				t.Errorf("BCE = %g, want %g +- %g", got, tc.want, tc.tol)
			}
		})
	}
}

func TestBinaryCrossEntropyWeighted(t *testing.T) {
	pred := []float64{0.3, 0.3}
	target := []float64{1, 1}
	unweighted := BinaryCrossEntropy(lift(pred), lift(target), nil).Data
	weighted := BinaryCrossEntropy(lift(pred), lift(target), lift([]float64{2, 2})).Data
	if math.Abs(weighted-2*unweighted) > 1e-9 {
		t.Errorf("weighted BCE = %g, want %g", weighted, 2*unweighted)
	}
}

func TestBalancedBCEWeights(t *testing.T) {
	// With an unbalanced 0/1 batch, the aggregate weight mass on positives
	// must equal the mass on negatives.
	density := lift([]float64{1, 0, 0, 0, 0, 0, 0, 0})
	weights := BalancedBCEWeights(density)
	var posMass, negMass float64
	for i, w := range weights {
		if density[i].Data > 0.5 {
			posMass += w.Data
		} else {
			negMass += w.Data
		}
	}
	if math.Abs(posMass-negMass) > 1e-3 {
		t.Errorf("positive mass %g != negative mass %g", posMass, negMass)
	}
}

func TestBalancedBCEWeightsDetached(t *testing.T) {
	// The weights are read from the density batch but must not connect it to
	// the graph: backprop through a weighted loss leaves the density inputs
	// untouched.
	density := lift([]float64{0.2, 0.8})
	weights := BalancedBCEWeights(density)
	pred := lift([]float64{0.5, 0.5})
	target := lift([]float64{0, 1})
	ad.Backward(BinaryCrossEntropy(pred, target, weights))
	for i, d := range density {
		if d.Grad != 0 {
			t.Errorf("density[%d] received gradient %g through detached weights", i, d.Grad)
		}
	}
	for i, p := range pred {
		if p.Grad == 0 {
			t.Errorf("pred[%d] received no gradient", i)
		}
	}
}
