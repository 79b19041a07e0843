package gen

type Biome uint8

const (
	Plains Biome = iota
	Forest
	Mountain
	River
)

func (b Biome) String() string {
	switch b {
	case Plains:
		return "PLAINS"
	case Forest:
		return "FOREST"
	case Mountain:
		return "MOUNTAIN"
	case River:
		return "RIVER"
	default:
		return "UNKNOWN"
	}
}
