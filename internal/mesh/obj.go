package mesh

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

// ReadOBJ parses a Wavefront OBJ stream. Only vertex and face directives are
// interpreted; texture coordinates, normals, groups and materials are
// skipped. Faces with more than three vertices are fan-triangulated and
// negative indices resolve relative to the vertices seen so far.
func ReadOBJ(r io.Reader) (*Mesh, error) {
	m := &Mesh{}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineno := 0
	for sc.Scan() {
		lineno++
		line := strings.TrimSpace(sc.Text())
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		switch fields[0] {
		case "v":
			if len(fields) < 4 {
				return nil, fmt.Errorf("mesh: line %d: vertex needs 3 coordinates", lineno)
			}
			var v r3.Vec
			var err error
			if v.X, err = strconv.ParseFloat(fields[1], 64); err == nil {
				if v.Y, err = strconv.ParseFloat(fields[2], 64); err == nil {
					v.Z, err = strconv.ParseFloat(fields[3], 64)
				}
			}
			if err != nil {
				return nil, fmt.Errorf("mesh: line %d: %w", lineno, err)
			}
			m.Verts = append(m.Verts, v)
		case "f":
			if len(fields) < 4 {
				return nil, fmt.Errorf("mesh: line %d: face needs at least 3 vertices", lineno)
			}
			idx := make([]int, 0, len(fields)-1)
			for _, ref := range fields[1:] {
				i, err := parseVertexRef(ref, len(m.Verts))
				if err != nil {
					return nil, fmt.Errorf("mesh: line %d: %w", lineno, err)
				}
				idx = append(idx, i)
			}
			for i := 1; i+1 < len(idx); i++ {
				m.Faces = append(m.Faces, [3]int{idx[0], idx[i], idx[i+1]})
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("mesh: read obj: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// parseVertexRef resolves one face vertex reference (v, v/vt, v//vn or
// v/vt/vn) into a zero-based vertex index.
func parseVertexRef(ref string, nverts int) (int, error) {
	if i := strings.IndexByte(ref, '/'); i >= 0 {
		ref = ref[:i]
	}
	n, err := strconv.Atoi(ref)
	if err != nil {
		return 0, fmt.Errorf("vertex reference %q: %w", ref, err)
	}
	switch {
	case n > 0:
		return n - 1, nil
	case n < 0:
		return nverts + n, nil
	default:
		return 0, fmt.Errorf("vertex reference 0 is not valid")
	}
}

// LoadOBJ reads a mesh from an OBJ file on disk.
func LoadOBJ(path string) (*Mesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("mesh: %w", err)
	}
	defer f.Close()
	m, err := ReadOBJ(f)
	if err != nil {
		return nil, fmt.Errorf("mesh: %s: %w", path, err)
	}
	return m, nil
}

// WriteOBJ writes the mesh as Wavefront OBJ with 1-based face indices.
func WriteOBJ(w io.Writer, m *Mesh) error {
	bw := bufio.NewWriter(w)
	for _, v := range m.Verts {
		if _, err := fmt.Fprintf(bw, "v %g %g %g\n", v.X, v.Y, v.Z); err != nil {
			return fmt.Errorf("mesh: write obj: %w", err)
		}
	}
	for _, f := range m.Faces {
		if _, err := fmt.Fprintf(bw, "f %d %d %d\n", f[0]+1, f[1]+1, f[2]+1); err != nil {
			return fmt.Errorf("mesh: write obj: %w", err)
		}
	}
	return bw.Flush()
}

// SaveOBJ writes the mesh to an OBJ file on disk.
func SaveOBJ(path string, m *Mesh) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("mesh: %w", err)
	}
	if err := WriteOBJ(f, m); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
