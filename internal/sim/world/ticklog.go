package world

const (
	EventLoad   = "LOAD"
	EventUnload = "UNLOAD"
)

// TickLogger receives one record per tick. Implemented in internal/persistence/*.
type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type TickLogEntry struct {
	Tick     uint64      `json:"tick"`
	Skipped  bool        `json:"skipped,omitempty"`
	Observer *[3]float32 `json:"observer,omitempty"`
	Center   [2]int      `json:"center"`

	RenderDistance int `json:"render_distance"`
	// ExactSquare is set when the registry must equal the wanted square after
	// this tick (no generation budget, no hysteresis).
	ExactSquare bool `json:"exact_square"`

	Resident int          `json:"resident"`
	Pending  int          `json:"pending"`
	Dropped  int          `json:"dropped,omitempty"`
	Events   []ChunkEvent `json:"events,omitempty"`
	Micros   int64        `json:"micros"`
}

type ChunkEvent struct {
	Kind        string `json:"kind"`
	CX          int    `json:"cx"`
	CZ          int    `json:"cz"`
	Handle      uint64 `json:"handle"`
	Digest      string `json:"digest,omitempty"`
	Decorations int    `json:"decorations,omitempty"`
}

// Metrics is a snapshot published after every tick.
type Metrics struct {
	Tick        uint64 `json:"tick"`
	HasObserver bool   `json:"has_observer"`
	Center      [2]int `json:"center"`
	Resident    int    `json:"resident"`
	Pending     int    `json:"pending"`
	Viewers     int    `json:"viewers"`

	LoadedTotal   uint64 `json:"loaded_total"`
	UnloadedTotal uint64 `json:"unloaded_total"`
	SkippedTotal  uint64 `json:"skipped_total"`
	LogErrors     uint64 `json:"log_errors"`

	StepMicros int64 `json:"step_micros"`
}
