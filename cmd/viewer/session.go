package main

import (
	"encoding/json"
	"fmt"
	"log"

	"snowdrift.dev/internal/sim/tuning"
	"snowdrift.dev/internal/sim/world/chunks"
	"snowdrift.dev/internal/sim/world/io/meshcodec"
	"snowdrift.dev/internal/sim/world/terrain/gen"
	"snowdrift.dev/internal/sim/world/terrain/mesh"
	"snowdrift.dev/internal/sim/world/terrain/noise"
	"snowdrift.dev/internal/viewerproto"
)

// session mirrors the server's resident set the way a renderer would and
// checks every message against it.
type session struct {
	params viewerproto.WorldParams
	log    *log.Logger

	cached map[chunks.Coord]uint64
	pos    [3]float32

	local *mesh.Mesher

	ticks, meshes, evicts, resets, verified uint64

	bytes int
}

func newSession(wp viewerproto.WorldParams, logger *log.Logger) *session {
	return &session{
		params: wp,
		log:    logger,
		cached: map[chunks.Coord]uint64{},
	}
}

func (s *session) enableLocalDigests(tune tuning.Tuning) error {
	if tune.Seed != s.params.Seed || tune.ChunkSize != s.params.ChunkSize || tune.VertexSpacing != s.params.VertexSpacing {
		return fmt.Errorf("tuning does not match server world params")
	}
	field, err := noise.New(tune.Seed, tune.Noise)
	if err != nil {
		return err
	}
	s.local = mesh.NewMesher(gen.NewSampler(field, tune), tune.ChunkSize, tune.VertexSpacing)
	return nil
}

func (s *session) moveMsg() viewerproto.ObserverMoveMsg {
	return viewerproto.ObserverMoveMsg{
		Type:            viewerproto.TypeObserverMove,
		ProtocolVersion: viewerproto.Version,
		Pos:             s.pos,
	}
}

// advance moves the observer one chunk along +x.
func (s *session) advance() {
	s.pos[0] += float32(float64(s.params.ChunkSize) * s.params.VertexSpacing)
}

// handle applies one server message. It returns the TICK message when msg
// was one.
func (s *session) handle(msg []byte) (*viewerproto.TickMsg, error) {
	var env viewerproto.Envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		return nil, fmt.Errorf("bad message: %w", err)
	}
	switch env.Type {
	case viewerproto.TypeChunkMesh:
		var m viewerproto.ChunkMeshMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			return nil, err
		}
		return nil, s.onMesh(m)
	case viewerproto.TypeChunkEvict:
		var m viewerproto.ChunkEvictMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			return nil, err
		}
		c := chunks.Coord{CX: m.CX, CZ: m.CZ}
		h, ok := s.cached[c]
		if !ok {
			return nil, fmt.Errorf("tick %d: evict for %v which is not cached", m.Tick, c)
		}
		if h != m.Handle {
			return nil, fmt.Errorf("tick %d: evict %v handle %d, cached %d", m.Tick, c, m.Handle, h)
		}
		delete(s.cached, c)
		s.evicts++
	case viewerproto.TypeReset:
		var m viewerproto.ResetMsg
		_ = json.Unmarshal(msg, &m)
		s.log.Printf("RESET tick=%d reason=%s dropping %d chunks", m.Tick, m.Reason, len(s.cached))
		s.cached = map[chunks.Coord]uint64{}
		s.resets++
	case viewerproto.TypeTick:
		var m viewerproto.TickMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			return nil, err
		}
		s.ticks++
		if len(s.cached) != m.Resident {
			return nil, fmt.Errorf("tick %d: %d chunks cached, server reports %d resident", m.Tick, len(s.cached), m.Resident)
		}
		if m.Loaded > 0 || m.Unloaded > 0 {
			s.log.Printf("TICK %d center=(%d,%d) resident=%d pending=%d +%d -%d",
				m.Tick, m.Center[0], m.Center[1], m.Resident, m.Pending, m.Loaded, m.Unloaded)
		}
		return &m, nil
	}
	return nil, nil
}

func (s *session) onMesh(m viewerproto.ChunkMeshMsg) error {
	c := chunks.Coord{CX: m.CX, CZ: m.CZ}
	if _, ok := s.cached[c]; ok {
		return fmt.Errorf("tick %d: %v delivered twice", m.Tick, c)
	}
	if m.Encoding != meshcodec.Encoding {
		return fmt.Errorf("tick %d: %v unsupported encoding %q", m.Tick, c, m.Encoding)
	}
	buf, err := meshcodec.Decode(m.Data)
	if err != nil {
		return fmt.Errorf("tick %d: %v: %w", m.Tick, c, err)
	}
	if len(buf.Positions) != m.VertexCount || len(buf.Indices) != m.IndexCount {
		return fmt.Errorf("tick %d: %v decoded %d/%d, header says %d/%d",
			m.Tick, c, len(buf.Positions), len(buf.Indices), m.VertexCount, m.IndexCount)
	}
	if s.local != nil {
		if got := s.local.Generate(c).Digest(); got != m.Digest {
			return fmt.Errorf("tick %d: %v digest %s, local generation gives %s", m.Tick, c, m.Digest, got)
		}
		s.verified++
	}
	s.cached[c] = m.Handle
	s.meshes++
	s.bytes += len(m.Data)
	return nil
}

func (s *session) summary() {
	s.log.Printf("ticks=%d meshes=%d evicts=%d resets=%d verified=%d cached=%d payload_bytes=%d",
		s.ticks, s.meshes, s.evicts, s.resets, s.verified, len(s.cached), s.bytes)
}
