package meshcodec

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"snowdrift.dev/internal/sim/tuning"
	"snowdrift.dev/internal/sim/world/chunks"
	"snowdrift.dev/internal/sim/world/terrain/gen"
	"snowdrift.dev/internal/sim/world/terrain/mesh"
	"snowdrift.dev/internal/sim/world/terrain/noise"
)

func testMesh(t *testing.T) *mesh.Mesh {
	t.Helper()
	cfg := tuning.Defaults()
	cfg.ChunkSize = 4
	f, err := noise.New(cfg.Seed, cfg.Noise)
	if err != nil {
		t.Fatalf("noise.New: %v", err)
	}
	return mesh.NewMesher(gen.NewSampler(f, cfg), cfg.ChunkSize, 3).Generate(chunks.Coord{CX: 1, CZ: -1})
}

func TestEncodeDecodePreservesBuffers(t *testing.T) {
	m := testMesh(t)
	s, err := Encode(m)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	b, err := Decode(s)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(b.Positions) != 25 || len(b.Indices) != 96 {
		t.Fatalf("counts: %d positions %d indices", len(b.Positions), len(b.Indices))
	}
	for i := range m.Positions {
		if b.Positions[i] != m.Positions[i] || b.Colors[i] != m.Colors[i] || b.Normals[i] != m.Normals[i] {
			t.Fatalf("vertex %d differs", i)
		}
	}
	for i := range m.Indices {
		if b.Indices[i] != m.Indices[i] {
			t.Fatalf("index %d differs", i)
		}
	}
}

func TestUnmarshalRejectsBadInput(t *testing.T) {
	raw := Marshal(testMesh(t))

	if _, err := Unmarshal(raw[:8]); !errors.Is(err, ErrTruncated) {
		t.Fatalf("short header: %v", err)
	}
	if _, err := Unmarshal(raw[:len(raw)-1]); !errors.Is(err, ErrTruncated) {
		t.Fatalf("short body: %v", err)
	}
	bad := append([]byte("XXXX"), raw[4:]...)
	if _, err := Unmarshal(bad); !errors.Is(err, ErrMagic) {
		t.Fatalf("magic: %v", err)
	}
	oob := append([]byte(nil), raw...)
	copy(oob[len(oob)-4:], []byte{0xff, 0xff, 0, 0})
	if _, err := Unmarshal(oob); err == nil || !strings.Contains(err.Error(), "out of range") {
		t.Fatalf("index range: %v", err)
	}
	if _, err := Decode("not base64!"); err == nil {
		t.Fatalf("expected base64 error")
	}
}

func TestWriteOBJ(t *testing.T) {
	m := testMesh(t)
	var buf bytes.Buffer
	if err := WriteOBJ(&buf, m, chunks.Origin(m.Coord, 4, 3)); err != nil {
		t.Fatalf("WriteOBJ: %v", err)
	}
	var v, vn, f int
	for _, line := range strings.Split(buf.String(), "\n") {
		switch {
		case strings.HasPrefix(line, "v "):
			v++
		case strings.HasPrefix(line, "vn "):
			vn++
		case strings.HasPrefix(line, "f "):
			f++
		}
	}
	if v != 25 || vn != 25 || f != 32 {
		t.Fatalf("v=%d vn=%d f=%d", v, vn, f)
	}
	if !strings.Contains(buf.String(), "o chunk_1_-1") {
		t.Fatalf("missing object name")
	}
}
