package tuning

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed tuning.schema.json
var schemaJSON string

const schemaURL = "mem://tuning.schema.json"

type Tuning struct {
	Seed int64 `yaml:"seed" json:"seed"`

	ChunkSize      int     `yaml:"chunk_size" json:"chunk_size"`
	VertexSpacing  float64 `yaml:"vertex_spacing" json:"vertex_spacing"`
	RenderDistance int     `yaml:"render_distance" json:"render_distance"`
	// Extra chunks a resident chunk may drift beyond RenderDistance before eviction.
	EvictHysteresis int `yaml:"evict_hysteresis" json:"evict_hysteresis"`

	TickRateHz int `yaml:"tick_rate_hz" json:"tick_rate_hz"`
	// 0 = generate every missing chunk in the tick it becomes wanted.
	MaxGenerationsPerTick int `yaml:"max_generations_per_tick" json:"max_generations_per_tick"`
	GenWorkers            int `yaml:"gen_workers" json:"gen_workers"`
	// Log a line when one tick generates at least this many chunks.
	SpikeLogThreshold int `yaml:"spike_log_threshold" json:"spike_log_threshold"`

	Noise      Noise      `yaml:"noise" json:"noise"`
	Terrain    Terrain    `yaml:"terrain" json:"terrain"`
	Biome      Biome      `yaml:"biome" json:"biome"`
	Vegetation Vegetation `yaml:"vegetation" json:"vegetation"`
	Color      Color      `yaml:"color" json:"color"`
}

type Noise struct {
	Backend string `yaml:"backend" json:"backend"` // perlin | opensimplex

	PerlinAlpha   float64 `yaml:"perlin_alpha" json:"perlin_alpha"`
	PerlinBeta    float64 `yaml:"perlin_beta" json:"perlin_beta"`
	PerlinOctaves int     `yaml:"perlin_octaves" json:"perlin_octaves"`
}

type Terrain struct {
	NoiseFreq float64 `yaml:"noise_freq" json:"noise_freq"`
	NoiseAmp  float64 `yaml:"noise_amp" json:"noise_amp"`

	PlainsScale float64 `yaml:"plains_scale" json:"plains_scale"`
	ForestScale float64 `yaml:"forest_scale" json:"forest_scale"`

	ErosionFreq float64 `yaml:"erosion_freq" json:"erosion_freq"`
	ErosionAmp  float64 `yaml:"erosion_amp" json:"erosion_amp"`
	DriftFreq   float64 `yaml:"drift_freq" json:"drift_freq"`
	DriftAmp    float64 `yaml:"drift_amp" json:"drift_amp"`

	NormalEpsilon float64 `yaml:"normal_epsilon" json:"normal_epsilon"`
}

type Biome struct {
	Freq float64 `yaml:"freq" json:"freq"`
	// Raw biome noise in [RemapLow, RemapHigh] maps linearly to blend factor [0,1].
	RemapLow  float64 `yaml:"remap_low" json:"remap_low"`
	RemapHigh float64 `yaml:"remap_high" json:"remap_high"`

	PlainsBelow   float64 `yaml:"plains_below" json:"plains_below"`
	MountainAbove float64 `yaml:"mountain_above" json:"mountain_above"`
	RiverFreq     float64 `yaml:"river_freq" json:"river_freq"`
	RiverWidth    float64 `yaml:"river_width" json:"river_width"`
}

type Vegetation struct {
	Freq   float64 `yaml:"freq" json:"freq"`
	Sparse float64 `yaml:"sparse" json:"sparse"`
	Dense  float64 `yaml:"dense" json:"dense"`
}

type Color struct {
	DetailFreq float64    `yaml:"detail_freq" json:"detail_freq"`
	Variation  float64    `yaml:"variation" json:"variation"`
	Tint       [3]float64 `yaml:"tint" json:"tint"`
	Gains      [3]float64 `yaml:"gains" json:"gains"`
}

func Defaults() Tuning {
	return Tuning{
		Seed:              12345,
		ChunkSize:         64,
		VertexSpacing:     1.0,
		RenderDistance:    20,
		TickRateHz:        30,
		GenWorkers:        1,
		SpikeLogThreshold: 64,
		Noise: Noise{
			Backend:       "perlin",
			PerlinAlpha:   2,
			PerlinBeta:    2,
			PerlinOctaves: 1,
		},
		Terrain: Terrain{
			NoiseFreq:     0.01,
			NoiseAmp:      20,
			PlainsScale:   2.0,
			ForestScale:   1.0,
			ErosionFreq:   0.004,
			ErosionAmp:    2,
			DriftFreq:     0.002,
			DriftAmp:      6,
			NormalEpsilon: 0.5,
		},
		Biome: Biome{
			Freq:          0.008,
			RemapLow:      -0.2,
			RemapHigh:     0.3,
			PlainsBelow:   -0.2,
			MountainAbove: 0.55,
			RiverFreq:     0.003,
			RiverWidth:    0.04,
		},
		Vegetation: Vegetation{
			Freq:   0.14,
			Sparse: 0.03,
			Dense:  0.25,
		},
		Color: Color{
			DetailFreq: 0.15,
			Variation:  0.03,
			Tint:       [3]float64{0.88, 0.93, 1.0},
			Gains:      [3]float64{0.4, 0.6, 1.0},
		},
	}
}

// Load reads a tuning.yaml and validates it against the embedded schema.
// Keys absent from the file keep their Defaults value; explicit zeros stay.
func Load(path string) (Tuning, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Tuning{}, err
	}
	return Parse(raw)
}

func Parse(raw []byte) (Tuning, error) {
	if err := validate(raw); err != nil {
		return Tuning{}, fmt.Errorf("tuning.yaml: %w", err)
	}
	t := Defaults()
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return Tuning{}, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return Tuning{}, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func validate(raw []byte) error {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return err
	}
	if doc == nil {
		return nil
	}
	// yaml.v3 decodes numbers as int/float64; round-trip through JSON so the
	// schema validator sees the same value kinds it would for a JSON document.
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	s, err := compiledSchema()
	if err != nil {
		return err
	}
	return s.Validate(v)
}

func compiledSchema() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaURL, strings.NewReader(schemaJSON)); err != nil {
		return nil, err
	}
	return c.Compile(schemaURL)
}

func (t Tuning) Validate() error {
	switch t.Noise.Backend {
	case "perlin", "opensimplex":
	default:
		return fmt.Errorf("noise.backend: unsupported %q", t.Noise.Backend)
	}
	if t.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be > 0")
	}
	if t.VertexSpacing <= 0 {
		return fmt.Errorf("vertex_spacing must be > 0")
	}
	if t.TickRateHz <= 0 {
		return fmt.Errorf("tick_rate_hz must be > 0")
	}
	if t.RenderDistance < 0 || t.EvictHysteresis < 0 {
		return fmt.Errorf("render_distance and evict_hysteresis must be >= 0")
	}
	if t.MaxGenerationsPerTick < 0 {
		return fmt.Errorf("max_generations_per_tick must be >= 0")
	}
	if t.Biome.RemapHigh <= t.Biome.RemapLow {
		return fmt.Errorf("biome.remap_high (%v) must exceed biome.remap_low (%v)", t.Biome.RemapHigh, t.Biome.RemapLow)
	}
	if t.Vegetation.Sparse < 0 || t.Vegetation.Dense > 1 {
		return fmt.Errorf("vegetation range must lie in [0,1]")
	}
	return nil
}

// ChunkWorldSize is the world-space edge length of one chunk.
func (t Tuning) ChunkWorldSize() float64 {
	return float64(t.ChunkSize) * t.VertexSpacing
}
