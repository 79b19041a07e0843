// Package mesh turns one chunk coordinate into a renderable height-field
// mesh plus its vegetation decorations.
package mesh

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"snowdrift.dev/internal/sim/world/chunks"
	"snowdrift.dev/internal/sim/world/logic/mathx"
	"snowdrift.dev/internal/sim/world/terrain/gen"
)

const KindTree = "tree"

// Mesh is a triangle list in chunk-local space. Vertex (x, z) of the
// (size+1)^2 grid lives at index z*(size+1)+x.
type Mesh struct {
	Coord chunks.Coord
	Size  int

	Positions []mgl32.Vec3
	Colors    []mgl32.Vec4
	Normals   []mgl32.Vec3
	Indices   []uint32

	Decorations []Decoration
}

// Decoration is a child instance placed on the chunk, e.g. a tree.
type Decoration struct {
	Kind    string
	World   mgl32.Vec3
	Local   mgl32.Vec3
	Biome   gen.Biome
	Variant uint32
}

func (m *Mesh) VertexCount() int   { return len(m.Positions) }
func (m *Mesh) TriangleCount() int { return len(m.Indices) / 3 }

type Mesher struct {
	sampler *gen.Sampler
	size    int
	spacing float64
}

func NewMesher(s *gen.Sampler, chunkSize int, spacing float64) *Mesher {
	if chunkSize < 1 {
		chunkSize = 1
	}
	if !(spacing > 0) {
		spacing = 1
	}
	return &Mesher{sampler: s, size: chunkSize, spacing: spacing}
}

func (m *Mesher) ChunkSize() int         { return m.size }
func (m *Mesher) VertexSpacing() float64 { return m.spacing }

// worldAt maps a global vertex index to world space. Going through the
// integer index keeps shared edges of neighbouring chunks bit-identical.
func (m *Mesher) worldAt(gx, gz int) (float64, float64) {
	return float64(gx) * m.spacing, float64(gz) * m.spacing
}

// Generate builds the mesh for c. It is deterministic and safe to call from
// several goroutines at once.
func (m *Mesher) Generate(c chunks.Coord) *Mesh {
	n := m.size
	stride := n + 1
	out := &Mesh{
		Coord:     c,
		Size:      n,
		Positions: make([]mgl32.Vec3, 0, stride*stride),
		Colors:    make([]mgl32.Vec4, 0, stride*stride),
		Indices:   make([]uint32, 0, 6*n*n),
	}

	baseX, baseZ := c.CX*n, c.CZ*n
	for z := 0; z <= n; z++ {
		for x := 0; x <= n; x++ {
			wx, wz := m.worldAt(baseX+x, baseZ+z)
			h := m.sampler.Height(wx, wz)
			out.Positions = append(out.Positions, mgl32.Vec3{
				float32(float64(x) * m.spacing),
				float32(h),
				float32(float64(z) * m.spacing),
			})
			out.Colors = append(out.Colors, m.sampler.ColorAt(wx, wz))
		}
	}

	for z := 0; z < n; z++ {
		for x := 0; x < n; x++ {
			i := uint32(z*stride + x)
			s := uint32(stride)
			out.Indices = append(out.Indices,
				i, i+s, i+1,
				i+1, i+s, i+s+1,
			)
		}
	}

	out.Normals = areaWeightedNormals(out.Positions, out.Indices)
	out.Decorations = m.decorate(c, out.Positions, stride)
	return out
}

// decorate places vegetation at cell corners. Only the n*n owned corners are
// tested so a shared edge never gets a tree from both chunks.
func (m *Mesher) decorate(c chunks.Coord, positions []mgl32.Vec3, stride int) []Decoration {
	n := m.size
	origin := chunks.Origin(c, n, m.spacing)
	seed := m.sampler.Field().Seed()
	var out []Decoration
	for z := 0; z < n; z++ {
		for x := 0; x < n; x++ {
			gx, gz := c.CX*n+x, c.CZ*n+z
			wx, wz := m.worldAt(gx, gz)
			if !m.sampler.ShouldSpawn(wx, wz) {
				continue
			}
			local := positions[z*stride+x]
			out = append(out, Decoration{
				Kind:    KindTree,
				Local:   local,
				World:   origin.Add(local),
				Biome:   m.sampler.Biome(wx, wz),
				Variant: uint32(mathx.Hash2(seed, gx, gz)),
			})
		}
	}
	return out
}

// areaWeightedNormals sums unnormalized face normals per vertex, so larger
// triangles weigh more, then normalizes. Degenerate sums fall back to +Y.
func areaWeightedNormals(pos []mgl32.Vec3, idx []uint32) []mgl32.Vec3 {
	acc := make([]mgl32.Vec3, len(pos))
	for t := 0; t+2 < len(idx); t += 3 {
		a, b, c := idx[t], idx[t+1], idx[t+2]
		face := pos[b].Sub(pos[a]).Cross(pos[c].Sub(pos[a]))
		acc[a] = acc[a].Add(face)
		acc[b] = acc[b].Add(face)
		acc[c] = acc[c].Add(face)
	}
	for i, v := range acc {
		l := v.Len()
		if !(l > 1e-12) || math.IsInf(float64(l), 0) {
			acc[i] = gen.Up
			continue
		}
		acc[i] = v.Mul(1 / l)
	}
	return acc
}
