package meshcodec

import (
	"bufio"
	"fmt"
	"io"

	"github.com/go-gl/mathgl/mgl32"

	"snowdrift.dev/internal/sim/world/terrain/mesh"
)

// WriteOBJ writes m translated by origin. Vertex colors use the common
// "v x y z r g b" extension; decorations become named points.
func WriteOBJ(w io.Writer, m *mesh.Mesh, origin mgl32.Vec3) error {
	bw := bufio.NewWriterSize(w, 128*1024)
	fmt.Fprintf(bw, "# chunk %d %d, %d vertices, %d triangles\n", m.Coord.CX, m.Coord.CZ, m.VertexCount(), m.TriangleCount())
	fmt.Fprintf(bw, "o chunk_%d_%d\n", m.Coord.CX, m.Coord.CZ)
	for i, p := range m.Positions {
		p = origin.Add(p)
		if i < len(m.Colors) {
			c := m.Colors[i]
			fmt.Fprintf(bw, "v %g %g %g %g %g %g\n", p[0], p[1], p[2], c[0], c[1], c[2])
		} else {
			fmt.Fprintf(bw, "v %g %g %g\n", p[0], p[1], p[2])
		}
	}
	for _, n := range m.Normals {
		fmt.Fprintf(bw, "vn %g %g %g\n", n[0], n[1], n[2])
	}
	withNormals := len(m.Normals) == len(m.Positions)
	for t := 0; t+2 < len(m.Indices); t += 3 {
		a, b, c := m.Indices[t]+1, m.Indices[t+1]+1, m.Indices[t+2]+1
		if withNormals {
			fmt.Fprintf(bw, "f %d//%d %d//%d %d//%d\n", a, a, b, b, c, c)
		} else {
			fmt.Fprintf(bw, "f %d %d %d\n", a, b, c)
		}
	}
	for i, d := range m.Decorations {
		fmt.Fprintf(bw, "# %s %d %s variant=%d at %g %g %g\n", d.Kind, i, d.Biome, d.Variant, d.World[0], d.World[1], d.World[2])
	}
	return bw.Flush()
}
