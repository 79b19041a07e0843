package gen

import (
	"math"
	"testing"

	"snowdrift.dev/internal/sim/tuning"
	"snowdrift.dev/internal/sim/world/terrain/noise"
)

func newTestSampler(t *testing.T, cfg tuning.Tuning) *Sampler {
	t.Helper()
	f, err := noise.New(cfg.Seed, cfg.Noise)
	if err != nil {
		t.Fatalf("noise.New: %v", err)
	}
	return NewSampler(f, cfg)
}

func TestSamplerDeterministicAcrossInstances(t *testing.T) {
	for _, backend := range []string{"perlin", "opensimplex"} {
		cfg := tuning.Defaults()
		cfg.Noise.Backend = backend
		a := newTestSampler(t, cfg)
		b := newTestSampler(t, cfg)
		for i := 0; i < 200; i++ {
			x := float64(i)*7.3 - 500
			z := float64(i)*-3.1 + 250
			if a.Height(x, z) != b.Height(x, z) {
				t.Fatalf("%s: height differs at (%v,%v)", backend, x, z)
			}
			if a.Sample(x, z) != b.Sample(x, z) {
				t.Fatalf("%s: sample differs at (%v,%v)", backend, x, z)
			}
			if a.ShouldSpawn(x, z) != b.ShouldSpawn(x, z) {
				t.Fatalf("%s: spawn differs at (%v,%v)", backend, x, z)
			}
			if a.ColorAt(x, z) != b.ColorAt(x, z) {
				t.Fatalf("%s: color differs at (%v,%v)", backend, x, z)
			}
		}
	}
}

func TestHeightBounded(t *testing.T) {
	cfg := tuning.Defaults()
	s := newTestSampler(t, cfg)
	tr := cfg.Terrain
	limit := tr.NoiseAmp*math.Max(tr.PlainsScale, tr.ForestScale) + tr.ErosionAmp + tr.DriftAmp
	for i := -300; i <= 300; i++ {
		x := float64(i) * 13.7
		z := float64(i) * 5.9
		h := s.Height(x, z)
		if math.IsNaN(h) || math.IsInf(h, 0) || math.Abs(h) > limit {
			t.Fatalf("height(%v,%v)=%v outside ±%v", x, z, h, limit)
		}
	}
}

// Walking a long line in small steps must never make the blend factor or the
// height jump, and the walk has to actually cross from plains into blended
// terrain for the check to mean anything.
func TestBlendContinuousAcrossBiomeBoundaries(t *testing.T) {
	cfg := tuning.Defaults()
	s := newTestSampler(t, cfg)

	const step = 0.5
	z := 123.4
	prevT := s.Blend(-10000, z)
	prevH := s.Height(-10000, z)
	sawPlains, sawBlended := false, false
	for x := -10000.0 + step; x <= 10000; x += step {
		bt := s.Blend(x, z)
		h := s.Height(x, z)
		if bt < 0 || bt > 1 {
			t.Fatalf("blend(%v)=%v outside [0,1]", x, bt)
		}
		if d := math.Abs(bt - prevT); d > 0.05 {
			t.Fatalf("blend jumped by %v at x=%v", d, x)
		}
		if d := math.Abs(h - prevH); d > 2 {
			t.Fatalf("height jumped by %v at x=%v", d, x)
		}
		if bt == 0 {
			sawPlains = true
		} else {
			sawBlended = true
		}
		prevT, prevH = bt, h
	}
	if !sawPlains || !sawBlended {
		t.Fatalf("walk never crossed a biome boundary (plains=%v blended=%v)", sawPlains, sawBlended)
	}
}

func TestNormalIsUnitAndUpward(t *testing.T) {
	s := newTestSampler(t, tuning.Defaults())
	for i := -100; i <= 100; i++ {
		x := float64(i) * 11.1
		z := float64(-i) * 4.7
		n := s.Normal(x, z)
		l := n.Len()
		if math.Abs(float64(l)-1) > 1e-4 {
			t.Fatalf("normal %v at (%v,%v) has length %v", n, x, z, l)
		}
		if n[1] <= 0 {
			t.Fatalf("normal %v at (%v,%v) points down", n, x, z)
		}
	}
}

func TestNormalFallsBackWhenDegenerate(t *testing.T) {
	cfg := tuning.Defaults()
	cfg.Terrain.NormalEpsilon = 0
	s := newTestSampler(t, cfg)
	if n := s.Normal(10, 10); n != Up {
		t.Fatalf("normal=%v want %v", n, Up)
	}
	if n := s.Normal(math.NaN(), math.Inf(1)); n != Up {
		t.Fatalf("normal for non-finite input=%v want %v", n, Up)
	}
}

func TestShouldSpawnFollowsDensityRange(t *testing.T) {
	never := tuning.Defaults()
	never.Vegetation.Sparse, never.Vegetation.Dense = 0, 0
	always := tuning.Defaults()
	always.Vegetation.Sparse, always.Vegetation.Dense = 1.01, 1.01

	sn := newTestSampler(t, never)
	sa := newTestSampler(t, always)
	for i := 0; i < 500; i++ {
		x, z := float64(i)*3.3, float64(i)*1.7
		if sn.ShouldSpawn(x, z) {
			t.Fatalf("spawned at (%v,%v) with zero density", x, z)
		}
		if !sa.ShouldSpawn(x, z) {
			t.Fatalf("no spawn at (%v,%v) with full density", x, z)
		}
	}
}

func TestColorStaysInUnitRange(t *testing.T) {
	s := newTestSampler(t, tuning.Defaults())
	for i := 0; i < 500; i++ {
		c := s.ColorAt(float64(i)*0.9, float64(i)*-2.3)
		for k := 0; k < 4; k++ {
			if c[k] < 0 || c[k] > 1 {
				t.Fatalf("color %v out of range", c)
			}
		}
		if c[3] != 1 {
			t.Fatalf("alpha=%v want 1", c[3])
		}
	}
}

func TestBiomeClassificationMatchesThresholds(t *testing.T) {
	cfg := tuning.Defaults()
	cfg.Biome.RiverWidth = 0
	s := newTestSampler(t, cfg)
	for i := 0; i < 2000; i++ {
		x, z := float64(i)*17.0, float64(i)*-9.0
		raw := s.biomeRaw(x, z)
		got := s.Biome(x, z)
		var want Biome
		switch {
		case raw < cfg.Biome.PlainsBelow:
			want = Plains
		case raw > cfg.Biome.MountainAbove:
			want = Mountain
		default:
			want = Forest
		}
		if got != want {
			t.Fatalf("biome(%v,%v)=%v want %v (raw %v)", x, z, got, want, raw)
		}
		if got == River {
			t.Fatalf("river with zero width at (%v,%v)", x, z)
		}
	}
}

func TestGroundFacadeMatchesSampler(t *testing.T) {
	s := newTestSampler(t, tuning.Defaults())
	h := s.SampleHeight(42.5, -17.25)
	if want := float32(s.Height(42.5, -17.25)); h != want {
		t.Fatalf("SampleHeight=%v want %v", h, want)
	}
	n := s.SampleNormal(42.5, -17.25)
	if n[1] <= 0 {
		t.Fatalf("SampleNormal=%v points down", n)
	}
}
