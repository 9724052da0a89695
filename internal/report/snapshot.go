package report

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"github.com/HugoSmits86/nativewebp"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/morph4d/morph4d/internal/mesh"
	"github.com/morph4d/morph4d/internal/warp"
)

const (
	snapshotSize = 800
	snapshotPad  = 1.10 // view box margin around the scene bounds
)

// BoneSnapshot draws the rest pose of a skeletal warp into a WebP image at
// path: each bone Gaussian as a colored ellipse over the proxy mesh vertices
// in gray, projected orthographically onto the proxy's two dominant
// principal axes. A nil proxy draws bones only, projected onto world XY.
func BoneSnapshot(path string, bones warp.BoneField, proxy *mesh.Mesh) error {
	rest := bones.Articulation().MeanVals()
	extents := bones.GaussExtents()
	if len(rest) == 0 {
		return fmt.Errorf("bone snapshot: no bones")
	}
	if len(rest) != len(extents) {
		return fmt.Errorf("bone snapshot: %d poses but %d extents", len(rest), len(extents))
	}

	u, v := r3.Vec{X: 1}, r3.Vec{Y: 1}
	if proxy != nil && len(proxy.Verts) >= 3 {
		axes := proxy.PrincipalAxes()
		u, v = axes[0], axes[1]
	}
	project := func(p r3.Vec) (float64, float64) {
		return r3.Dot(p, u), r3.Dot(p, v)
	}

	// Per-bone screen position and projected Gaussian half-widths.
	centers := make([][2]float64, len(rest))
	radii := make([][2]float64, len(rest))
	var xs, ys []float64
	grow := func(x, y float64) {
		xs = append(xs, x)
		ys = append(ys, y)
	}
	for i, dq := range rest {
		c := dq.Translation().Data()
		px, py := project(r3.Vec{X: c[0], Y: c[1], Z: c[2]})
		e := extents[i]
		rx := math.Sqrt(e[0]*e[0]*u.X*u.X + e[1]*e[1]*u.Y*u.Y + e[2]*e[2]*u.Z*u.Z)
		ry := math.Sqrt(e[0]*e[0]*v.X*v.X + e[1]*e[1]*v.Y*v.Y + e[2]*e[2]*v.Z*v.Z)
		centers[i] = [2]float64{px, py}
		radii[i] = [2]float64{rx, ry}
		grow(px-rx, py-ry)
		grow(px+rx, py+ry)
	}
	if proxy != nil {
		for _, vert := range proxy.Verts {
			grow(project(vert))
		}
	}
	minX, maxX := floats.Min(xs), floats.Max(xs)
	minY, maxY := floats.Min(ys), floats.Max(ys)

	// Square view box centered on the scene, preserving aspect ratio.
	cx, cy := (minX+maxX)/2, (minY+maxY)/2
	span := math.Max(maxX-minX, maxY-minY) * snapshotPad
	if span <= 0 {
		span = 1
	}
	scale := float64(snapshotSize) / span
	toPx := func(x, y float64) (int, int) {
		px := snapshotSize/2 + int(math.Round((x-cx)*scale))
		py := snapshotSize/2 - int(math.Round((y-cy)*scale)) // image Y grows downward
		return px, py
	}

	img := image.NewNRGBA(image.Rect(0, 0, snapshotSize, snapshotSize))
	bg := color.NRGBA{R: 24, G: 24, B: 28, A: 255}
	for y := 0; y < snapshotSize; y++ {
		for x := 0; x < snapshotSize; x++ {
			img.SetNRGBA(x, y, bg)
		}
	}

	if proxy != nil {
		gray := color.NRGBA{R: 158, G: 158, B: 158, A: 255}
		for _, vert := range proxy.Verts {
			vx, vy := project(vert)
			px, py := toPx(vx, vy)
			setDot(img, px, py, 1, gray)
		}
	}

	colors := generateColors(len(centers))
	for i, c := range centers {
		cc := color.NRGBAModel.Convert(colors[i]).(color.NRGBA)
		px, py := toPx(c[0], c[1])
		rx := math.Max(radii[i][0]*scale, 1)
		ry := math.Max(radii[i][1]*scale, 1)
		drawEllipse(img, px, py, rx, ry, cc)
		setDot(img, px, py, 2, cc)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create snapshot directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create snapshot file: %w", err)
	}
	defer f.Close()

	if err := nativewebp.Encode(f, img, nil); err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return nil
}

// setDot fills a (2r+1)-pixel square centered on (x, y), clipped to img.
func setDot(img *image.NRGBA, x, y, r int, c color.NRGBA) {
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			p := image.Pt(x+dx, y+dy)
			if p.In(img.Rect) {
				img.SetNRGBA(p.X, p.Y, c)
			}
		}
	}
}

// drawEllipse traces an axis-aligned ellipse outline centered on (cx, cy).
// The step count follows the larger radius so the outline stays closed.
func drawEllipse(img *image.NRGBA, cx, cy int, rx, ry float64, c color.NRGBA) {
	steps := int(math.Ceil(2 * math.Pi * math.Max(rx, ry)))
	if steps < 16 {
		steps = 16
	}
	for i := 0; i < steps; i++ {
		t := 2 * math.Pi * float64(i) / float64(steps)
		p := image.Pt(cx+int(math.Round(rx*math.Cos(t))), cy+int(math.Round(ry*math.Sin(t))))
		if p.In(img.Rect) {
			img.SetNRGBA(p.X, p.Y, c)
		}
	}
}
