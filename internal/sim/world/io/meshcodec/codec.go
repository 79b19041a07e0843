// Package meshcodec packs chunk meshes for the viewer wire format
// (F32LE_ZSTD_B64) and writes them as Wavefront OBJ for inspection.
package meshcodec

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/klauspost/compress/zstd"

	"snowdrift.dev/internal/sim/world/terrain/mesh"
)

const (
	Encoding = "F32LE_ZSTD_B64"
	magic    = "SDM1"

	headerLen   = 12
	maxVertices = 1 << 24
	maxIndices  = 1 << 26
)

var (
	ErrMagic     = errors.New("meshcodec: bad magic")
	ErrTruncated = errors.New("meshcodec: truncated payload")
)

// Buffers is a decoded payload.
type Buffers struct {
	Positions []mgl32.Vec3
	Colors    []mgl32.Vec4
	Normals   []mgl32.Vec3
	Indices   []uint32
}

var (
	encoderOnce = sync.OnceValues(func() (*zstd.Encoder, error) {
		return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	})
	decoderOnce = sync.OnceValues(func() (*zstd.Decoder, error) {
		return zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	})
)

// Marshal lays the mesh out as raw little-endian buffers behind a small header.
func Marshal(m *mesh.Mesh) []byte {
	vc, ic := len(m.Positions), len(m.Indices)
	buf := make([]byte, 0, headerLen+vc*(12+16+12)+ic*4)
	buf = append(buf, magic...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(vc))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(ic))
	f32 := func(v float32) { buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v)) }
	for _, p := range m.Positions {
		f32(p[0])
		f32(p[1])
		f32(p[2])
	}
	for i := 0; i < vc; i++ {
		c := mgl32.Vec4{1, 1, 1, 1}
		if i < len(m.Colors) {
			c = m.Colors[i]
		}
		f32(c[0])
		f32(c[1])
		f32(c[2])
		f32(c[3])
	}
	for i := 0; i < vc; i++ {
		n := mgl32.Vec3{0, 1, 0}
		if i < len(m.Normals) {
			n = m.Normals[i]
		}
		f32(n[0])
		f32(n[1])
		f32(n[2])
	}
	for _, i := range m.Indices {
		buf = binary.LittleEndian.AppendUint32(buf, i)
	}
	return buf
}

func Unmarshal(raw []byte) (*Buffers, error) {
	if len(raw) < headerLen {
		return nil, ErrTruncated
	}
	if string(raw[:4]) != magic {
		return nil, ErrMagic
	}
	vc := int(binary.LittleEndian.Uint32(raw[4:8]))
	ic := int(binary.LittleEndian.Uint32(raw[8:12]))
	if vc > maxVertices || ic > maxIndices {
		return nil, fmt.Errorf("meshcodec: counts too large (%d vertices, %d indices)", vc, ic)
	}
	if want := headerLen + vc*(12+16+12) + ic*4; len(raw) != want {
		return nil, fmt.Errorf("%w: have %d bytes, want %d", ErrTruncated, len(raw), want)
	}

	off := headerLen
	f32 := func() float32 {
		v := math.Float32frombits(binary.LittleEndian.Uint32(raw[off:]))
		off += 4
		return v
	}
	b := &Buffers{
		Positions: make([]mgl32.Vec3, vc),
		Colors:    make([]mgl32.Vec4, vc),
		Normals:   make([]mgl32.Vec3, vc),
		Indices:   make([]uint32, ic),
	}
	for i := range b.Positions {
		b.Positions[i] = mgl32.Vec3{f32(), f32(), f32()}
	}
	for i := range b.Colors {
		b.Colors[i] = mgl32.Vec4{f32(), f32(), f32(), f32()}
	}
	for i := range b.Normals {
		b.Normals[i] = mgl32.Vec3{f32(), f32(), f32()}
	}
	for i := range b.Indices {
		idx := binary.LittleEndian.Uint32(raw[off:])
		off += 4
		if int(idx) >= vc {
			return nil, fmt.Errorf("meshcodec: index %d out of range (%d vertices)", idx, vc)
		}
		b.Indices[i] = idx
	}
	return b, nil
}

// Encode returns the zstd-compressed, base64 payload for a CHUNK_MESH message.
func Encode(m *mesh.Mesh) (string, error) {
	if m == nil {
		return "", errors.New("meshcodec: nil mesh")
	}
	enc, err := encoderOnce()
	if err != nil {
		return "", err
	}
	z := enc.EncodeAll(Marshal(m), nil)
	return base64.StdEncoding.EncodeToString(z), nil
}

func Decode(s string) (*Buffers, error) {
	z, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("meshcodec: base64: %w", err)
	}
	dec, err := decoderOnce()
	if err != nil {
		return nil, err
	}
	raw, err := dec.DecodeAll(z, nil)
	if err != nil {
		return nil, fmt.Errorf("meshcodec: zstd: %w", err)
	}
	return Unmarshal(raw)
}
