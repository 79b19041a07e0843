package viewerproto

// Version is the viewer protocol version.
const Version = "0.1"

const (
	TypeSubscribe    = "SUBSCRIBE"
	TypeObserverMove = "OBSERVER_MOVE"
	TypeChunkMesh    = "CHUNK_MESH"
	TypeChunkEvict   = "CHUNK_EVICT"
	TypeTick         = "TICK"
	TypeReset        = "RESET"
)

// Envelope is decoded first to dispatch on Type.
type Envelope struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
}

// Client -> Server. First message on the viewer WS connection.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Name            string `json:"name,omitempty"`
	// Controls lets this viewer move the observer.
	Controls bool `json:"controls,omitempty"`
}

// Client -> Server. Sets the observer world position; takes effect next tick.
type ObserverMoveMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	Pos             [3]float32 `json:"pos"`
}

// HTTP response for GET /v1/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string      `json:"protocol_version"`
	Tick            uint64      `json:"tick"`
	WorldParams     WorldParams `json:"world_params"`
}

type WorldParams struct {
	Seed            int64   `json:"seed"`
	ChunkSize       int     `json:"chunk_size"`
	VertexSpacing   float64 `json:"vertex_spacing"`
	RenderDistance  int     `json:"render_distance"`
	EvictHysteresis int     `json:"evict_hysteresis"`
	TickRateHz      int     `json:"tick_rate_hz"`
	NoiseBackend    string  `json:"noise_backend"`
	MeshEncoding    string  `json:"mesh_encoding"`
}

// HTTP response for GET /v1/ground.
type GroundResponse struct {
	X      float32    `json:"x"`
	Z      float32    `json:"z"`
	Height float32    `json:"height"`
	Normal [3]float32 `json:"normal"`
	Biome  string     `json:"biome"`
	Blend  float64    `json:"blend"`
	Tree   bool       `json:"tree"`
}

// Server -> Client. A chunk entered the resident set.
// Encoding "F32LE_ZSTD_B64" means: base64, then zstd, then a "SDM1" header
// (vertex count, index count as u32 LE) followed by positions xyz, colors
// rgba, normals xyz as f32 LE and indices as u32 LE.
type ChunkMeshMsg struct {
	Type            string       `json:"type"`
	ProtocolVersion string       `json:"protocol_version"`
	Tick            uint64       `json:"tick"`
	CX              int          `json:"cx"`
	CZ              int          `json:"cz"`
	Handle          uint64       `json:"handle"`
	Origin          [3]float32   `json:"origin"`
	VertexCount     int          `json:"vertex_count"`
	IndexCount      int          `json:"index_count"`
	Decorations     []Decoration `json:"decorations"`
	Digest          string       `json:"digest"`
	Encoding        string       `json:"encoding"`
	Data            string       `json:"data"`
}

type Decoration struct {
	Kind    string     `json:"kind"`
	Pos     [3]float32 `json:"pos"`
	Biome   string     `json:"biome"`
	Variant uint32     `json:"variant"`
}

// Server -> Client. Release the chunk's render resources.
type ChunkEvictMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`
	CX              int    `json:"cx"`
	CZ              int    `json:"cz"`
	Handle          uint64 `json:"handle"`
}

// Server -> Client. Sent every tick.
type TickMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`

	Skipped  bool        `json:"skipped"`
	Center   [2]int      `json:"center"`
	Observer *[3]float32 `json:"observer,omitempty"`

	Resident int `json:"resident"`
	Pending  int `json:"pending"`
	Loaded   int `json:"loaded"`
	Unloaded int `json:"unloaded"`
	Dropped  int `json:"dropped,omitempty"`
}

// Server -> Client. Drop every cached chunk; the resident set follows.
type ResetMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`
	Reason          string `json:"reason"`
}
