package mesh

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"
)

// SDF answers signed distance queries against a triangle mesh. Distances are
// negative inside the surface and positive outside. Queries run against a
// bounding volume hierarchy built once at construction; the mesh must not be
// mutated afterwards.
type SDF struct {
	mesh  *Mesh
	order []int // triangle indices grouped by leaf
	nodes []bvhNode
}

// bvhNode is one hierarchy node. Interior nodes carry child indices in left
// and right; leaves set left to -1 and cover order[start:start+count].
type bvhNode struct {
	min, max     r3.Vec
	left, right  int
	start, count int
}

const bvhLeafSize = 4

// NewSDF builds the acceleration structure for m. A mesh without faces has
// no surface to measure against and is rejected.
func NewSDF(m *Mesh) (*SDF, error) {
	if len(m.Faces) == 0 {
		return nil, fmt.Errorf("mesh: signed distance needs at least one face")
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	s := &SDF{mesh: m}

	type entry struct {
		idx      int
		min, max r3.Vec
		centroid r3.Vec
	}
	entries := make([]entry, len(m.Faces))
	for i, f := range m.Faces {
		a, b, c := m.Verts[f[0]], m.Verts[f[1]], m.Verts[f[2]]
		e := entry{
			idx: i,
			min: vecMin(vecMin(a, b), c),
			max: vecMax(vecMax(a, b), c),
		}
		e.centroid = r3.Scale(1.0/3.0, r3.Add(r3.Add(a, b), c))
		entries[i] = e
	}

	var build func(lo, hi int) int
	build = func(lo, hi int) int {
		node := bvhNode{
			min: entries[lo].min, max: entries[lo].max,
			left: -1, right: -1,
		}
		for i := lo + 1; i < hi; i++ {
			node.min = vecMin(node.min, entries[i].min)
			node.max = vecMax(node.max, entries[i].max)
		}
		if hi-lo <= bvhLeafSize {
			node.start = len(s.order)
			node.count = hi - lo
			for i := lo; i < hi; i++ {
				s.order = append(s.order, entries[i].idx)
			}
			s.nodes = append(s.nodes, node)
			return len(s.nodes) - 1
		}
		// Median split along the widest centroid axis.
		cmin, cmax := entries[lo].centroid, entries[lo].centroid
		for i := lo + 1; i < hi; i++ {
			cmin = vecMin(cmin, entries[i].centroid)
			cmax = vecMax(cmax, entries[i].centroid)
		}
		ext := r3.Sub(cmax, cmin)
		axis := 0
		if ext.Y > ext.X {
			axis = 1
		}
		if ext.Z > axisComponent(ext, axis) {
			axis = 2
		}
		sort.Slice(entries[lo:hi], func(i, j int) bool {
			return axisComponent(entries[lo+i].centroid, axis) < axisComponent(entries[lo+j].centroid, axis)
		})
		mid := (lo + hi) / 2
		self := len(s.nodes)
		s.nodes = append(s.nodes, node)
		left := build(lo, mid)
		right := build(mid, hi)
		s.nodes[self].left = left
		s.nodes[self].right = right
		return self
	}
	build(0, len(entries))
	return s, nil
}

func vecMin(a, b r3.Vec) r3.Vec {
	return r3.Vec{X: math.Min(a.X, b.X), Y: math.Min(a.Y, b.Y), Z: math.Min(a.Z, b.Z)}
}

func vecMax(a, b r3.Vec) r3.Vec {
	return r3.Vec{X: math.Max(a.X, b.X), Y: math.Max(a.Y, b.Y), Z: math.Max(a.Z, b.Z)}
}

func axisComponent(v r3.Vec, axis int) float64 {
	switch axis {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}

// boxDist2 returns the squared distance from p to the box, zero inside.
func boxDist2(p, min, max r3.Vec) float64 {
	var d2 float64
	for axis := 0; axis < 3; axis++ {
		v := axisComponent(p, axis)
		if lo := axisComponent(min, axis); v < lo {
			d2 += (lo - v) * (lo - v)
		} else if hi := axisComponent(max, axis); v > hi {
			d2 += (v - hi) * (v - hi)
		}
	}
	return d2
}

// Distance returns the unsigned distance from p to the nearest surface
// point. Traversal is branch and bound: the nearer child is descended first
// and subtrees whose box cannot beat the current best are pruned.
func (s *SDF) Distance(p r3.Vec) float64 {
	best := math.Inf(1)
	var walk func(ni int)
	walk = func(ni int) {
		n := &s.nodes[ni]
		if boxDist2(p, n.min, n.max) >= best {
			return
		}
		if n.left < 0 {
			for i := n.start; i < n.start+n.count; i++ {
				f := s.mesh.Faces[s.order[i]]
				q := closestPointTriangle(p, s.mesh.Verts[f[0]], s.mesh.Verts[f[1]], s.mesh.Verts[f[2]])
				d := r3.Sub(p, q)
				if d2 := r3.Dot(d, d); d2 < best {
					best = d2
				}
			}
			return
		}
		l, r := n.left, n.right
		dl := boxDist2(p, s.nodes[l].min, s.nodes[l].max)
		dr := boxDist2(p, s.nodes[r].min, s.nodes[r].max)
		if dr < dl {
			l, r = r, l
		}
		walk(l)
		walk(r)
	}
	walk(0)
	return math.Sqrt(best)
}

// Contains reports whether p lies inside the surface using ray crossing
// parity. Rays that graze an edge or vertex make the count unreliable, so
// the test retries with a different direction whenever a hit lands within
// epsilon of a triangle boundary.
func (s *SDF) Contains(p r3.Vec) bool {
	dirs := []r3.Vec{
		{X: 1},
		{X: 0.29167538, Y: 0.7351655, Z: 0.61205675},
		{X: -0.5784492, Y: 0.33614704, Z: -0.74322},
		{X: 0.1740604, Y: -0.9231864, Z: 0.34261203},
	}
	for _, dir := range dirs {
		crossings, clean := s.countCrossings(p, dir)
		if clean {
			return crossings%2 == 1
		}
	}
	// Every probe direction grazed an edge; fall back to the last count.
	crossings, _ := s.countCrossings(p, dirs[len(dirs)-1])
	return crossings%2 == 1
}

// countCrossings counts ray-triangle intersections along dir. The second
// return is false when any hit was too close to a triangle edge to trust.
func (s *SDF) countCrossings(p, dir r3.Vec) (int, bool) {
	const edgeEps = 1e-9
	inv := r3.Vec{X: 1 / dir.X, Y: 1 / dir.Y, Z: 1 / dir.Z}
	crossings := 0
	clean := true
	var walk func(ni int)
	walk = func(ni int) {
		n := &s.nodes[ni]
		if !rayHitsBox(p, inv, n.min, n.max) {
			return
		}
		if n.left < 0 {
			for i := n.start; i < n.start+n.count; i++ {
				f := s.mesh.Faces[s.order[i]]
				t, u, v, hit := rayTriangle(p, dir, s.mesh.Verts[f[0]], s.mesh.Verts[f[1]], s.mesh.Verts[f[2]])
				if !hit || t <= edgeEps {
					continue
				}
				if u < edgeEps || v < edgeEps || u+v > 1-edgeEps {
					clean = false
				}
				crossings++
			}
			return
		}
		walk(n.left)
		walk(n.right)
	}
	walk(0)
	return crossings, clean
}

// rayHitsBox is a slab test for t in (0, inf). Infinite components of inv
// behave correctly because the comparisons reject NaN orderings.
func rayHitsBox(p, inv, min, max r3.Vec) bool {
	tmin, tmax := 0.0, math.Inf(1)
	for axis := 0; axis < 3; axis++ {
		o := axisComponent(p, axis)
		iv := axisComponent(inv, axis)
		t1 := (axisComponent(min, axis) - o) * iv
		t2 := (axisComponent(max, axis) - o) * iv
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		if t1 > tmin {
			tmin = t1
		}
		if t2 < tmax {
			tmax = t2
		}
		if tmin > tmax {
			return false
		}
	}
	return true
}

// rayTriangle is the Moeller-Trumbore intersection. It reports the ray
// parameter t and barycentrics (u, v) of the hit.
func rayTriangle(p, dir, a, b, c r3.Vec) (t, u, v float64, hit bool) {
	e1 := r3.Sub(b, a)
	e2 := r3.Sub(c, a)
	pv := r3.Cross(dir, e2)
	det := r3.Dot(e1, pv)
	if math.Abs(det) < 1e-15 {
		return 0, 0, 0, false
	}
	invDet := 1 / det
	tv := r3.Sub(p, a)
	u = r3.Dot(tv, pv) * invDet
	if u < 0 || u > 1 {
		return 0, 0, 0, false
	}
	qv := r3.Cross(tv, e1)
	v = r3.Dot(dir, qv) * invDet
	if v < 0 || u+v > 1 {
		return 0, 0, 0, false
	}
	t = r3.Dot(e2, qv) * invDet
	if t <= 0 {
		return 0, 0, 0, false
	}
	return t, u, v, true
}

// closestPointTriangle returns the point of triangle abc nearest to p,
// classifying p against the vertex, edge and face Voronoi regions.
func closestPointTriangle(p, a, b, c r3.Vec) r3.Vec {
	ab := r3.Sub(b, a)
	ac := r3.Sub(c, a)
	ap := r3.Sub(p, a)
	d1 := r3.Dot(ab, ap)
	d2 := r3.Dot(ac, ap)
	if d1 <= 0 && d2 <= 0 {
		return a
	}
	bp := r3.Sub(p, b)
	d3 := r3.Dot(ab, bp)
	d4 := r3.Dot(ac, bp)
	if d3 >= 0 && d4 <= d3 {
		return b
	}
	vc := d1*d4 - d3*d2
	if vc <= 0 && d1 >= 0 && d3 <= 0 {
		return r3.Add(a, r3.Scale(d1/(d1-d3), ab))
	}
	cp := r3.Sub(p, c)
	d5 := r3.Dot(ab, cp)
	d6 := r3.Dot(ac, cp)
	if d6 >= 0 && d5 <= d6 {
		return c
	}
	vb := d5*d2 - d1*d6
	if vb <= 0 && d2 >= 0 && d6 <= 0 {
		return r3.Add(a, r3.Scale(d2/(d2-d6), ac))
	}
	va := d3*d6 - d5*d4
	if va <= 0 && d4-d3 >= 0 && d5-d6 >= 0 {
		return r3.Add(b, r3.Scale((d4-d3)/((d4-d3)+(d5-d6)), r3.Sub(c, b)))
	}
	denom := 1 / (va + vb + vc)
	return r3.Add(r3.Add(a, r3.Scale(vb*denom, ab)), r3.Scale(vc*denom, ac))
}

// SignedDistance returns the distance from p to the surface, negated when p
// is inside.
func (s *SDF) SignedDistance(p r3.Vec) float64 {
	d := s.Distance(p)
	if s.Contains(p) {
		return -d
	}
	return d
}

// Eval evaluates the signed distance at every point.
func (s *SDF) Eval(pts []r3.Vec) []float64 {
	out := make([]float64, len(pts))
	for i, p := range pts {
		out[i] = s.SignedDistance(p)
	}
	return out
}
