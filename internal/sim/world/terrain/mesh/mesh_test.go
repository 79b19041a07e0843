package mesh

import (
	"math"
	"reflect"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"snowdrift.dev/internal/sim/tuning"
	"snowdrift.dev/internal/sim/world/chunks"
	"snowdrift.dev/internal/sim/world/terrain/gen"
	"snowdrift.dev/internal/sim/world/terrain/noise"
)

func newTestMesher(t *testing.T, cfg tuning.Tuning) *Mesher {
	t.Helper()
	f, err := noise.New(cfg.Seed, cfg.Noise)
	if err != nil {
		t.Fatalf("noise.New: %v", err)
	}
	return NewMesher(gen.NewSampler(f, cfg), cfg.ChunkSize, cfg.VertexSpacing)
}

func smallTuning() tuning.Tuning {
	cfg := tuning.Defaults()
	cfg.ChunkSize = 8
	cfg.VertexSpacing = 3.0
	return cfg
}

func TestGenerateCounts(t *testing.T) {
	m := newTestMesher(t, smallTuning())
	out := m.Generate(chunks.Coord{CX: 2, CZ: -3})
	if got, want := len(out.Positions), 81; got != want {
		t.Fatalf("positions=%d want %d", got, want)
	}
	if len(out.Colors) != 81 || len(out.Normals) != 81 {
		t.Fatalf("colors=%d normals=%d", len(out.Colors), len(out.Normals))
	}
	if got, want := len(out.Indices), 6*8*8; got != want {
		t.Fatalf("indices=%d want %d", got, want)
	}
	for _, i := range out.Indices {
		if int(i) >= len(out.Positions) {
			t.Fatalf("index %d out of range", i)
		}
	}
	if out.TriangleCount() != 128 {
		t.Fatalf("triangles=%d", out.TriangleCount())
	}
}

func TestGenerateDeterministicAcrossInstances(t *testing.T) {
	cfg := smallTuning()
	a := newTestMesher(t, cfg).Generate(chunks.Coord{CX: -1, CZ: 4})
	b := newTestMesher(t, cfg).Generate(chunks.Coord{CX: -1, CZ: 4})
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("meshes differ")
	}
	if a.Digest() != b.Digest() {
		t.Fatalf("digest differs")
	}
	c := newTestMesher(t, cfg).Generate(chunks.Coord{CX: -1, CZ: 5})
	if a.Digest() == c.Digest() {
		t.Fatalf("different chunks share a digest")
	}
}

func TestNeighbouringChunksShareEdges(t *testing.T) {
	cfg := smallTuning()
	m := newTestMesher(t, cfg)
	n := cfg.ChunkSize
	stride := n + 1

	base := chunks.Coord{CX: 3, CZ: -2}
	right := chunks.Coord{CX: 4, CZ: -2}
	up := chunks.Coord{CX: 3, CZ: -1}
	mb, mr, mu := m.Generate(base), m.Generate(right), m.Generate(up)
	ob := chunks.Origin(base, n, cfg.VertexSpacing)
	or := chunks.Origin(right, n, cfg.VertexSpacing)
	ou := chunks.Origin(up, n, cfg.VertexSpacing)

	for k := 0; k <= n; k++ {
		// x = n column of base against x = 0 column of right.
		pb := ob.Add(mb.Positions[k*stride+n])
		pr := or.Add(mr.Positions[k*stride])
		if pb != pr {
			t.Fatalf("x edge row %d: %v vs %v", k, pb, pr)
		}
		// z = n row of base against z = 0 row of up.
		pb = ob.Add(mb.Positions[n*stride+k])
		pu := ou.Add(mu.Positions[k])
		if pb != pu {
			t.Fatalf("z edge col %d: %v vs %v", k, pb, pu)
		}
	}
}

func TestTrianglesFaceUp(t *testing.T) {
	out := newTestMesher(t, smallTuning()).Generate(chunks.Coord{})
	p := out.Positions
	for i := 0; i+2 < len(out.Indices); i += 3 {
		a, b, c := p[out.Indices[i]], p[out.Indices[i+1]], p[out.Indices[i+2]]
		n := b.Sub(a).Cross(c.Sub(a))
		if n[1] <= 0 {
			t.Fatalf("triangle %d winds downward: %v", i/3, n)
		}
	}
	for i, n := range out.Normals {
		if math.Abs(float64(n.Len())-1) > 1e-4 || n[1] <= 0 {
			t.Fatalf("normal %d = %v", i, n)
		}
	}
}

func TestDecorationsFollowDensity(t *testing.T) {
	none := smallTuning()
	none.Vegetation.Sparse, none.Vegetation.Dense = 0, 0
	if got := newTestMesher(t, none).Generate(chunks.Coord{}).Decorations; len(got) != 0 {
		t.Fatalf("decorations=%d want 0", len(got))
	}

	all := smallTuning()
	all.Vegetation.Sparse, all.Vegetation.Dense = 1.01, 1.01
	c := chunks.Coord{CX: -2, CZ: 1}
	out := newTestMesher(t, all).Generate(c)
	if len(out.Decorations) != 64 {
		t.Fatalf("decorations=%d want 64", len(out.Decorations))
	}
	origin := chunks.Origin(c, all.ChunkSize, all.VertexSpacing)
	edge := float32(float64(all.ChunkSize) * all.VertexSpacing)
	for _, d := range out.Decorations {
		if d.Kind != KindTree {
			t.Fatalf("kind=%q", d.Kind)
		}
		if d.World != origin.Add(d.Local) {
			t.Fatalf("world %v != origin %v + local %v", d.World, origin, d.Local)
		}
		if d.Local[0] < 0 || d.Local[0] >= edge || d.Local[2] < 0 || d.Local[2] >= edge {
			t.Fatalf("local %v outside owned cells", d.Local)
		}
	}
}

func TestDigestNilMesh(t *testing.T) {
	var m *Mesh
	if m.Digest() != "" {
		t.Fatalf("nil digest should be empty")
	}
}

func TestNormalsFallBackToUpWhenDegenerate(t *testing.T) {
	nan := float32(math.NaN())
	cases := map[string][]mgl32.Vec3{
		"collinear": {{0, 0, 0}, {1, 0, 0}, {2, 0, 0}},
		"overflow":  {{0, 0, 0}, {1e30, 0, 0}, {0, 0, 1e30}},
		"nan":       {{0, 0, 0}, {nan, 0, 0}, {0, 0, 1}},
	}
	for name, pos := range cases {
		for i, n := range areaWeightedNormals(pos, []uint32{0, 2, 1}) {
			if n != gen.Up {
				t.Fatalf("%s: normal %d = %v, want %v", name, i, n, gen.Up)
			}
		}
	}
}
