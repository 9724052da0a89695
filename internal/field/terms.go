package field

import (
	"sort"

	ad "github.com/morph4d/morph4d/internal/autodiff"
	"github.com/morph4d/morph4d/internal/warp"
)

// Terms maps named per-point loss series accumulated during a query. Series
// from successive rays are appended under the same key.
type Terms map[string][]*ad.Value

// Merge folds other's series into t, appending on key collision. Merging
// into a nil map returns other unchanged.
func (t Terms) Merge(other Terms) Terms {
	if t == nil {
		return other
	}
	for name, vals := range other {
		t[name] = append(t[name], vals...)
	}
	return t
}

// Mean reduces one series to its scalar mean, or nil when absent.
func (t Terms) Mean(name string) *ad.Value {
	vals := t[name]
	if len(vals) == 0 {
		return nil
	}
	return ad.Mean(vals)
}

// Names returns the present keys in sorted order.
func (t Terms) Names() []string {
	out := make([]string, 0, len(t))
	for name := range t {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// absorbAux folds warp auxiliaries in: per-point skinning entropy directly,
// delta-skinning corrections reduced to per-point squared norms.
func (t Terms) absorbAux(aux *warp.Aux) {
	if aux == nil {
		return
	}
	if len(aux.SkinEntropy) > 0 {
		t[KeySkinEntropy] = append(t[KeySkinEntropy], aux.SkinEntropy...)
	}
	for _, deltas := range aux.DeltaSkin {
		if len(deltas) == 0 {
			continue
		}
		sq := make([]*ad.Value, len(deltas))
		for i, d := range deltas {
			sq[i] = d.Square()
		}
		t[KeyDeltaSkin] = append(t[KeyDeltaSkin], ad.Sum(sq))
	}
}
