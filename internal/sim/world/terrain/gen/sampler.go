package gen

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"snowdrift.dev/internal/sim/tuning"
	"snowdrift.dev/internal/sim/world/logic/mathx"
	"snowdrift.dev/internal/sim/world/terrain/noise"
)

// Up is the fallback surface normal.
var Up = mgl32.Vec3{0, 1, 0}

// Sampler turns the raw noise field into heights, biomes and placement
// decisions. All methods are pure functions of world coordinates.
type Sampler struct {
	field *noise.Field

	terrain tuning.Terrain
	biome   tuning.Biome
	veg     tuning.Vegetation
	color   tuning.Color
}

// Sample is everything known about one world coordinate.
type Sample struct {
	Height float64
	Blend  float64
	Biome  Biome
	Normal mgl32.Vec3
}

func NewSampler(field *noise.Field, t tuning.Tuning) *Sampler {
	return &Sampler{
		field:   field,
		terrain: t.Terrain,
		biome:   t.Biome,
		veg:     t.Vegetation,
		color:   t.Color,
	}
}

func (s *Sampler) Field() *noise.Field { return s.field }

// Blend is the biome blend factor t in [0,1]; 0 is plains, 1 is forest.
func (s *Sampler) Blend(x, z float64) float64 {
	return s.blendFromRaw(s.biomeRaw(x, z))
}

func (s *Sampler) biomeRaw(x, z float64) float64 {
	f := s.biome.Freq
	return s.field.Sample(noise.Biome, x*f, z*f)
}

func (s *Sampler) blendFromRaw(raw float64) float64 {
	span := s.biome.RemapHigh - s.biome.RemapLow
	if span <= 0 {
		if raw < s.biome.RemapLow {
			return 0
		}
		return 1
	}
	return mathx.Clamp01((raw - s.biome.RemapLow) / span)
}

func (s *Sampler) Height(x, z float64) float64 {
	return s.heightWithBlend(x, z, s.Blend(x, z))
}

func (s *Sampler) heightWithBlend(x, z, t float64) float64 {
	tr := s.terrain

	base := s.field.Sample(noise.Height, x*tr.NoiseFreq, z*tr.NoiseFreq) * tr.NoiseAmp
	plains := base * tr.PlainsScale
	forest := base * tr.ForestScale
	h := mathx.Lerp(plains, forest, t)

	erosion := s.field.Sample(noise.Height, x*tr.ErosionFreq, z*tr.ErosionFreq) * tr.ErosionAmp

	d := s.field.Sample(noise.Height, x*tr.DriftFreq, z*tr.DriftFreq)
	drift := d * d * tr.DriftAmp

	return h + erosion + drift
}

// Normal estimates the surface normal with central differences. The result
// always points into the +Y hemisphere; degenerate input yields Up.
func (s *Sampler) Normal(x, z float64) mgl32.Vec3 {
	e := s.terrain.NormalEpsilon
	if !(e > 0) {
		return Up
	}
	dx := s.Height(x+e, z) - s.Height(x-e, z)
	dz := s.Height(x, z+e) - s.Height(x, z-e)

	tx := mgl32.Vec3{float32(2 * e), float32(dx), 0}
	tz := mgl32.Vec3{0, float32(dz), float32(2 * e)}
	return safeNormalize(tz.Cross(tx))
}

func safeNormalize(v mgl32.Vec3) mgl32.Vec3 {
	l := v.Len()
	if !(l > 1e-12) || math.IsInf(float64(l), 0) {
		return Up
	}
	return v.Mul(1 / l)
}

func (s *Sampler) Biome(x, z float64) Biome {
	return s.classify(x, z, s.biomeRaw(x, z))
}

func (s *Sampler) classify(x, z, raw float64) Biome {
	b := s.biome
	if b.RiverWidth > 0 {
		r := s.field.Sample(noise.River, x*b.RiverFreq, z*b.RiverFreq)
		if math.Abs(r) < b.RiverWidth {
			return River
		}
	}
	switch {
	case raw < b.PlainsBelow:
		return Plains
	case raw > b.MountainAbove:
		return Mountain
	default:
		return Forest
	}
}

// ShouldSpawn reports whether vegetation grows at (x, z). Density follows the
// biome blend between the sparse and dense frequencies, and placement follows
// a separate noise purpose so trees cluster instead of scattering uniformly.
func (s *Sampler) ShouldSpawn(x, z float64) bool {
	return s.shouldSpawnWithBlend(x, z, s.Blend(x, z))
}

func (s *Sampler) shouldSpawnWithBlend(x, z, t float64) bool {
	freq := mathx.Lerp(s.veg.Sparse, s.veg.Dense, t)
	f := s.veg.Freq
	n := (s.field.Sample(noise.Vegetation, x*f, z*f) + 1) * 0.5
	return n < freq
}

// ColorAt perturbs the base tint with high-frequency detail noise. It never
// affects geometry.
func (s *Sampler) ColorAt(x, z float64) mgl32.Vec4 {
	c := s.color
	n := s.field.Sample(noise.Detail, x*c.DetailFreq, z*c.DetailFreq)
	variation := n * c.Variation
	return mgl32.Vec4{
		float32(mathx.Clamp01(c.Tint[0] + variation*c.Gains[0])),
		float32(mathx.Clamp01(c.Tint[1] + variation*c.Gains[1])),
		float32(mathx.Clamp01(c.Tint[2] + variation*c.Gains[2])),
		1,
	}
}

func (s *Sampler) Sample(x, z float64) Sample {
	raw := s.biomeRaw(x, z)
	t := s.blendFromRaw(raw)
	return Sample{
		Height: s.heightWithBlend(x, z, t),
		Blend:  t,
		Biome:  s.classify(x, z, raw),
		Normal: s.Normal(x, z),
	}
}
