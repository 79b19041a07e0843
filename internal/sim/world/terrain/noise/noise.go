// Package noise provides the seeded coherent-noise field the terrain is built
// from. Every purpose gets its own generator seeded from one world seed plus a
// fixed offset, so purposes stay independent yet reproducible.
package noise

import (
	"fmt"
	"math"

	"github.com/aquilax/go-perlin"
	"github.com/ojrac/opensimplex-go"

	"snowdrift.dev/internal/sim/tuning"
)

type Purpose int

const (
	Height Purpose = iota
	Biome
	River
	Vegetation
	Detail

	numPurposes
)

// Seed offsets per purpose. Changing any of these changes every world.
var seedOffsets = [numPurposes]int64{
	Height:     0,
	Biome:      69,
	River:      420,
	Vegetation: 1337,
	Detail:     2718,
}

func (p Purpose) String() string {
	switch p {
	case Height:
		return "height"
	case Biome:
		return "biome"
	case River:
		return "river"
	case Vegetation:
		return "vegetation"
	case Detail:
		return "detail"
	default:
		return fmt.Sprintf("purpose(%d)", int(p))
	}
}

func (p Purpose) SeedOffset() int64 {
	if p < 0 || p >= numPurposes {
		return 0
	}
	return seedOffsets[p]
}

// Source is a 2D coherent noise function. Implementations must be pure and
// safe for concurrent use.
type Source interface {
	Noise2D(x, z float64) float64
}

// Field samples one Source per Purpose. Immutable after New.
type Field struct {
	seed    int64
	backend string
	sources [numPurposes]Source
}

func New(seed int64, cfg tuning.Noise) (*Field, error) {
	f := &Field{seed: seed, backend: cfg.Backend}
	for p := Purpose(0); p < numPurposes; p++ {
		src, err := newSource(cfg, seed+p.SeedOffset())
		if err != nil {
			return nil, err
		}
		f.sources[p] = src
	}
	return f, nil
}

func newSource(cfg tuning.Noise, seed int64) (Source, error) {
	switch cfg.Backend {
	case "", "perlin":
		octaves := cfg.PerlinOctaves
		if octaves <= 0 {
			octaves = 1
		}
		return perlin.NewPerlin(cfg.PerlinAlpha, cfg.PerlinBeta, int32(octaves), seed), nil
	case "opensimplex":
		return simplexSource{n: opensimplex.New(seed)}, nil
	default:
		return nil, fmt.Errorf("noise: unsupported backend %q", cfg.Backend)
	}
}

type simplexSource struct {
	n opensimplex.Noise
}

func (s simplexSource) Noise2D(x, z float64) float64 {
	return s.n.Eval2(x, z)
}

func (f *Field) Seed() int64     { return f.seed }
func (f *Field) Backend() string { return f.backend }

// Sample returns the purpose's noise at (x, z), clamped to [-1, 1].
// Unknown purposes, non-finite coordinates and non-finite results yield 0.
func (f *Field) Sample(p Purpose, x, z float64) float64 {
	if p < 0 || p >= numPurposes {
		return 0
	}
	if math.IsNaN(x) || math.IsNaN(z) || math.IsInf(x, 0) || math.IsInf(z, 0) {
		return 0
	}
	v := f.sources[p].Noise2D(x, z)
	if math.IsNaN(v) {
		return 0
	}
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
