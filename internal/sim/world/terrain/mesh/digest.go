package mesh

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"math"
)

// Digest is a hex sha256 over every buffer of the mesh in little-endian
// order. Two meshes with equal digests are byte-identical.
func (m *Mesh) Digest() string {
	if m == nil {
		return ""
	}
	h := sha256.New()
	var b [4]byte
	putU32 := func(v uint32) {
		binary.LittleEndian.PutUint32(b[:], v)
		h.Write(b[:])
	}
	putF32 := func(v float32) { putU32(math.Float32bits(v)) }

	putU32(uint32(int32(m.Coord.CX)))
	putU32(uint32(int32(m.Coord.CZ)))
	putU32(uint32(len(m.Positions)))
	putU32(uint32(len(m.Indices)))
	for _, p := range m.Positions {
		putF32(p[0])
		putF32(p[1])
		putF32(p[2])
	}
	for _, c := range m.Colors {
		putF32(c[0])
		putF32(c[1])
		putF32(c[2])
		putF32(c[3])
	}
	for _, n := range m.Normals {
		putF32(n[0])
		putF32(n[1])
		putF32(n[2])
	}
	for _, i := range m.Indices {
		putU32(i)
	}
	putU32(uint32(len(m.Decorations)))
	for _, d := range m.Decorations {
		writeString(h, d.Kind)
		putF32(d.World[0])
		putF32(d.World[1])
		putF32(d.World[2])
		putU32(uint32(d.Biome))
		putU32(d.Variant)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func writeString(h hash.Hash, s string) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(len(s)))
	h.Write(b[:])
	h.Write([]byte(s))
}
