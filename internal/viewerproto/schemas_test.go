package viewerproto_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"snowdrift.dev/internal/viewerproto"
)

func compile(t *testing.T, name string) *jsonschema.Schema {
	t.Helper()
	p := filepath.Join("..", "..", "schemas", "viewer", name)
	s, err := jsonschema.Compile(p)
	if err != nil {
		t.Fatalf("compile %s: %v", name, err)
	}
	return s
}

// toAny marshals a Go message and decodes it generically so the validator
// sees exactly what goes over the wire.
func toAny(t *testing.T, v any) any {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return out
}

func TestSchemas_ValidateMessages(t *testing.T) {
	obs := [3]float32{96, 12.5, -3}
	digest := "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08"
	cases := []struct {
		schema string
		msg    any
	}{
		{"subscribe.schema.json", viewerproto.SubscribeMsg{Type: viewerproto.TypeSubscribe, ProtocolVersion: viewerproto.Version, Name: "probe", Controls: true}},
		{"observer_move.schema.json", viewerproto.ObserverMoveMsg{Type: viewerproto.TypeObserverMove, ProtocolVersion: viewerproto.Version, Pos: obs}},
		{"chunk_mesh.schema.json", viewerproto.ChunkMeshMsg{
			Type: viewerproto.TypeChunkMesh, ProtocolVersion: viewerproto.Version,
			Tick: 3, CX: -1, CZ: 2, Handle: 7, Origin: [3]float32{-96, 0, 192},
			VertexCount: 1089, IndexCount: 6144,
			Decorations: []viewerproto.Decoration{{Kind: "tree", Pos: [3]float32{-90, 4.5, 200}, Biome: "FOREST", Variant: 42}},
			Digest: digest, Encoding: "F32LE_ZSTD_B64", Data: "KLUv/QBYAQAA",
		}},
		{"chunk_mesh.schema.json", viewerproto.ChunkMeshMsg{
			Type: viewerproto.TypeChunkMesh, ProtocolVersion: viewerproto.Version,
			Handle: 1, Digest: digest, Encoding: "F32LE_ZSTD_B64",
		}},
		{"chunk_evict.schema.json", viewerproto.ChunkEvictMsg{Type: viewerproto.TypeChunkEvict, ProtocolVersion: viewerproto.Version, Tick: 4, CX: -10, CZ: 3, Handle: 7}},
		{"tick.schema.json", viewerproto.TickMsg{Type: viewerproto.TypeTick, ProtocolVersion: viewerproto.Version, Tick: 5, Center: [2]int{1, 0}, Observer: &obs, Resident: 441, Loaded: 21, Unloaded: 21}},
		{"tick.schema.json", viewerproto.TickMsg{Type: viewerproto.TypeTick, ProtocolVersion: viewerproto.Version, Tick: 0, Skipped: true}},
		{"reset.schema.json", viewerproto.ResetMsg{Type: viewerproto.TypeReset, ProtocolVersion: viewerproto.Version, Tick: 9, Reason: "resync"}},
		{"bootstrap.schema.json", viewerproto.BootstrapResponse{
			ProtocolVersion: viewerproto.Version,
			WorldParams: viewerproto.WorldParams{
				Seed: 12345, ChunkSize: 32, VertexSpacing: 3, RenderDistance: 10,
				TickRateHz: 30, NoiseBackend: "perlin", MeshEncoding: "F32LE_ZSTD_B64",
			},
		}},
	}
	for _, tc := range cases {
		s := compile(t, tc.schema)
		if err := s.Validate(toAny(t, tc.msg)); err != nil {
			t.Fatalf("%s: %v", tc.schema, err)
		}
	}
}

func TestSchemas_RejectMalformed(t *testing.T) {
	var bad any
	_ = json.Unmarshal([]byte(`{"type":"OBSERVER_MOVE","protocol_version":"0.1","pos":[1,2]}`), &bad)
	if err := compile(t, "observer_move.schema.json").Validate(bad); err == nil {
		t.Fatalf("expected pos arity error")
	}
	_ = json.Unmarshal([]byte(`{"type":"CHUNK_EVICT","protocol_version":"0.1","tick":1,"cx":0,"cz":0,"handle":0}`), &bad)
	if err := compile(t, "chunk_evict.schema.json").Validate(bad); err == nil {
		t.Fatalf("expected handle minimum error")
	}
}
