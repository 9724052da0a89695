// Package mesh provides triangle-mesh geometry used to seed and proxy the
// reconstructed shape: OBJ input/output, a coarse UV sphere generator, and a
// BVH-accelerated signed distance query.
//
// Everything here operates on plain float64 coordinates. Meshes feed shape
// initialization and visualization, never the gradient tape.
package mesh

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/morph4d/morph4d/internal/geom"
)

// Mesh is an indexed triangle mesh. Faces index into Verts; every face must
// reference three existing vertices.
type Mesh struct {
	Verts []r3.Vec
	Faces [][3]int
}

// Validate checks that all face indices are in range.
func (m *Mesh) Validate() error {
	for i, f := range m.Faces {
		for _, v := range f {
			if v < 0 || v >= len(m.Verts) {
				return fmt.Errorf("mesh: face %d references vertex %d of %d", i, v, len(m.Verts))
			}
		}
	}
	return nil
}

// Clone returns a deep copy.
func (m *Mesh) Clone() *Mesh {
	out := &Mesh{
		Verts: append([]r3.Vec(nil), m.Verts...),
		Faces: append([][3]int(nil), m.Faces...),
	}
	return out
}

// Scale multiplies every vertex by s in place.
func (m *Mesh) Scale(s float64) {
	for i := range m.Verts {
		m.Verts[i] = r3.Scale(s, m.Verts[i])
	}
}

// Translate offsets every vertex by t in place.
func (m *Mesh) Translate(t r3.Vec) {
	for i := range m.Verts {
		m.Verts[i] = r3.Add(m.Verts[i], t)
	}
}

// ApplyEuler rotates the mesh in place by extrinsic XYZ Euler angles in
// radians, matching the convention used for canonical-frame adjustments.
func (m *Mesh) ApplyEuler(rx, ry, rz float64) {
	r := eulerMatrix(rx, ry, rz)
	for i, v := range m.Verts {
		m.Verts[i] = r.MulVec(v)
	}
}

func eulerMatrix(rx, ry, rz float64) *r3.Mat {
	cx, sx := math.Cos(rx), math.Sin(rx)
	cy, sy := math.Cos(ry), math.Sin(ry)
	cz, sz := math.Cos(rz), math.Sin(rz)
	mx := r3.NewMat([]float64{
		1, 0, 0,
		0, cx, -sx,
		0, sx, cx,
	})
	my := r3.NewMat([]float64{
		cy, 0, sy,
		0, 1, 0,
		-sy, 0, cy,
	})
	mz := r3.NewMat([]float64{
		cz, -sz, 0,
		sz, cz, 0,
		0, 0, 1,
	})
	zy := r3.NewMat(nil)
	zy.Mul(mz, my)
	out := r3.NewMat(nil)
	out.Mul(zy, mx)
	return out
}

// Bounds returns the axis-aligned bounding box of the vertices. An empty
// mesh yields the unit box so downstream sampling stays well defined.
func (m *Mesh) Bounds() geom.AABB {
	if len(m.Verts) == 0 {
		return geom.UnitAABB()
	}
	return geom.AABBFromPoints(m.Verts)
}

// CenterOfMass returns the mean vertex position.
func (m *Mesh) CenterOfMass() r3.Vec {
	var c r3.Vec
	if len(m.Verts) == 0 {
		return c
	}
	for _, v := range m.Verts {
		c = r3.Add(c, v)
	}
	return r3.Scale(1/float64(len(m.Verts)), c)
}

// PrincipalAxes returns a right-handed orthonormal basis for the vertex
// cloud ordered by descending variance, from the eigendecomposition of the
// vertex covariance. Meshes with fewer than three vertices or a degenerate
// covariance fall back to the world axes.
func (m *Mesh) PrincipalAxes() [3]r3.Vec {
	world := [3]r3.Vec{{X: 1}, {Y: 1}, {Z: 1}}
	if len(m.Verts) < 3 {
		return world
	}
	c := m.CenterOfMass()
	var cov [3][3]float64
	for _, v := range m.Verts {
		d := [3]float64{v.X - c.X, v.Y - c.Y, v.Z - c.Z}
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				cov[i][j] += d[i] * d[j]
			}
		}
	}
	n := float64(len(m.Verts))
	sym := mat.NewSymDense(3, []float64{
		cov[0][0] / n, cov[0][1] / n, cov[0][2] / n,
		cov[1][0] / n, cov[1][1] / n, cov[1][2] / n,
		cov[2][0] / n, cov[2][1] / n, cov[2][2] / n,
	})
	var eig mat.EigenSym
	if !eig.Factorize(sym, true) {
		return world
	}
	var vecs mat.Dense
	eig.VectorsTo(&vecs)
	// EigenSym orders eigenvalues ascending; columns are read largest first.
	var axes [3]r3.Vec
	for k := 0; k < 3; k++ {
		col := 2 - k
		axes[k] = r3.Vec{X: vecs.At(0, col), Y: vecs.At(1, col), Z: vecs.At(2, col)}
	}
	axes[2] = r3.Cross(axes[0], axes[1])
	return axes
}

// FaceNormal returns the unnormalized normal of face i (counter-clockwise
// winding gives outward normals).
func (m *Mesh) FaceNormal(i int) r3.Vec {
	f := m.Faces[i]
	a, b, c := m.Verts[f[0]], m.Verts[f[1]], m.Verts[f[2]]
	return r3.Cross(r3.Sub(b, a), r3.Sub(c, a))
}

// UVSphere builds a latitude/longitude sphere centered at the origin.
// latCount and lonCount are segment counts; the poles are shared vertices
// and the body is triangulated in counter-clockwise winding viewed from
// outside. The coarse 4x4 sphere is the default shape proxy.
func UVSphere(radius float64, latCount, lonCount int) *Mesh {
	if latCount < 2 {
		latCount = 2
	}
	if lonCount < 3 {
		lonCount = 3
	}
	m := &Mesh{}
	// Poles first, then interior rings top to bottom.
	m.Verts = append(m.Verts, r3.Vec{Z: radius})
	m.Verts = append(m.Verts, r3.Vec{Z: -radius})
	for i := 1; i < latCount; i++ {
		theta := math.Pi * float64(i) / float64(latCount)
		st, ct := math.Sin(theta), math.Cos(theta)
		for j := 0; j < lonCount; j++ {
			phi := 2 * math.Pi * float64(j) / float64(lonCount)
			m.Verts = append(m.Verts, r3.Vec{
				X: radius * st * math.Cos(phi),
				Y: radius * st * math.Sin(phi),
				Z: radius * ct,
			})
		}
	}
	ring := func(i, j int) int { return 2 + (i-1)*lonCount + j%lonCount }
	// Top cap.
	for j := 0; j < lonCount; j++ {
		m.Faces = append(m.Faces, [3]int{0, ring(1, j), ring(1, j+1)})
	}
	// Body quads split into two triangles.
	for i := 1; i < latCount-1; i++ {
		for j := 0; j < lonCount; j++ {
			a, b := ring(i, j), ring(i, j+1)
			c, d := ring(i+1, j), ring(i+1, j+1)
			m.Faces = append(m.Faces, [3]int{a, c, d}, [3]int{a, d, b})
		}
	}
	// Bottom cap.
	for j := 0; j < lonCount; j++ {
		m.Faces = append(m.Faces, [3]int{1, ring(latCount-1, j+1), ring(latCount-1, j)})
	}
	return m
}
