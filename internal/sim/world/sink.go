package world

import (
	"encoding/json"

	"snowdrift.dev/internal/sim/world/chunks"
	"snowdrift.dev/internal/sim/world/io/meshcodec"
	"snowdrift.dev/internal/sim/world/stream"
	"snowdrift.dev/internal/viewerproto"
)

// ChunkLoaded implements stream.Sink. The mesh is encoded once and fanned
// out to every viewer in sync.
func (w *World) ChunkLoaded(c stream.LoadedChunk) stream.Handle {
	w.nextHandle++
	h := w.nextHandle

	msg := viewerproto.ChunkMeshMsg{
		Type:            viewerproto.TypeChunkMesh,
		ProtocolVersion: viewerproto.Version,
		Tick:            w.tick.Load(),
		CX:              c.Coord.CX,
		CZ:              c.Coord.CZ,
		Handle:          h,
		Origin:          c.Origin,
		Encoding:        meshcodec.Encoding,
		Decorations:     make([]viewerproto.Decoration, 0, len(c.Decorations)),
	}
	for _, d := range c.Decorations {
		msg.Decorations = append(msg.Decorations, viewerproto.Decoration{
			Kind:    d.Kind,
			Pos:     d.World,
			Biome:   d.Biome.String(),
			Variant: d.Variant,
		})
	}
	if c.Mesh != nil {
		msg.VertexCount = len(c.Mesh.Positions)
		msg.IndexCount = len(c.Mesh.Indices)
		data, err := meshcodec.Encode(c.Mesh)
		if err != nil {
			w.log.Printf("chunk %v: encode mesh: %v", c.Coord, err)
		}
		msg.Data = data
	}
	msg.Digest = c.Digest

	b, err := json.Marshal(msg)
	if err == nil {
		w.resident[c.Coord] = b
		w.broadcast(b)
	} else {
		w.log.Printf("chunk %v: marshal: %v", c.Coord, err)
	}

	w.events = append(w.events, ChunkEvent{
		Kind:        EventLoad,
		CX:          c.Coord.CX,
		CZ:          c.Coord.CZ,
		Handle:      h,
		Digest:      c.Digest,
		Decorations: len(c.Decorations),
	})
	return stream.Handle(h)
}

// ChunkUnloaded implements stream.Sink.
func (w *World) ChunkUnloaded(c chunks.Coord, h stream.Handle) {
	delete(w.resident, c)
	b, err := json.Marshal(viewerproto.ChunkEvictMsg{
		Type:            viewerproto.TypeChunkEvict,
		ProtocolVersion: viewerproto.Version,
		Tick:            w.tick.Load(),
		CX:              c.CX,
		CZ:              c.CZ,
		Handle:          uint64(h),
	})
	if err == nil {
		w.broadcast(b)
	}
	w.events = append(w.events, ChunkEvent{Kind: EventUnload, CX: c.CX, CZ: c.CZ, Handle: uint64(h)})
}
