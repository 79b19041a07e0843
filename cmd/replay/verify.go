package main

import (
	"fmt"

	"snowdrift.dev/internal/sim/tuning"
	"snowdrift.dev/internal/sim/world"
	"snowdrift.dev/internal/sim/world/chunks"
	"snowdrift.dev/internal/sim/world/terrain/gen"
	"snowdrift.dev/internal/sim/world/terrain/mesh"
	"snowdrift.dev/internal/sim/world/terrain/noise"
)

// verifier rebuilds the resident set from LOAD/UNLOAD records and checks it
// against what each tick claims.
type verifier struct {
	resident map[chunks.Coord]uint64
	handles  map[uint64]struct{}
	lastTick uint64
	started  bool

	verifyFrom uint64

	mesher    *mesh.Mesher
	meshEvery int

	ticks, squares, loads, unloads, meshes uint64
}

func newVerifier() *verifier {
	return &verifier{
		resident: map[chunks.Coord]uint64{},
		handles:  map[uint64]struct{}{},
	}
}

// enableMeshCheck regenerates loaded chunks and compares their digests.
func (v *verifier) enableMeshCheck(tune tuning.Tuning, every int) error {
	field, err := noise.New(tune.Seed, tune.Noise)
	if err != nil {
		return err
	}
	if every <= 0 {
		every = 1
	}
	v.mesher = mesh.NewMesher(gen.NewSampler(field, tune), tune.ChunkSize, tune.VertexSpacing)
	v.meshEvery = every
	return nil
}

func (v *verifier) apply(e world.TickLogEntry) error {
	if v.started && e.Tick <= v.lastTick {
		return fmt.Errorf("tick %d after %d: not increasing", e.Tick, v.lastTick)
	}
	v.started = true
	v.lastTick = e.Tick
	v.ticks++

	if e.Skipped && len(e.Events) > 0 {
		return fmt.Errorf("tick %d: skipped tick carries %d events", e.Tick, len(e.Events))
	}
	for _, ev := range e.Events {
		c := chunks.Coord{CX: ev.CX, CZ: ev.CZ}
		switch ev.Kind {
		case world.EventLoad:
			if _, ok := v.resident[c]; ok {
				return fmt.Errorf("tick %d: %v loaded twice", e.Tick, c)
			}
			if _, ok := v.handles[ev.Handle]; ok {
				return fmt.Errorf("tick %d: handle %d reused for %v", e.Tick, ev.Handle, c)
			}
			v.resident[c] = ev.Handle
			v.handles[ev.Handle] = struct{}{}
			v.loads++
			if err := v.checkMesh(e.Tick, c, ev.Digest); err != nil {
				return err
			}
		case world.EventUnload:
			h, ok := v.resident[c]
			if !ok {
				return fmt.Errorf("tick %d: %v unloaded but not resident", e.Tick, c)
			}
			if h != ev.Handle {
				return fmt.Errorf("tick %d: %v unloaded with handle %d, loaded with %d", e.Tick, c, ev.Handle, h)
			}
			delete(v.resident, c)
			v.unloads++
		default:
			return fmt.Errorf("tick %d: unknown event kind %q", e.Tick, ev.Kind)
		}
	}
	if len(v.resident) != e.Resident {
		return fmt.Errorf("tick %d: rebuilt %d resident chunks, record says %d", e.Tick, len(v.resident), e.Resident)
	}

	if e.Skipped || !e.ExactSquare || e.Tick < v.verifyFrom {
		return nil
	}
	center := chunks.Coord{CX: e.Center[0], CZ: e.Center[1]}
	want := chunks.Wanted(center, e.RenderDistance)
	if len(want) != len(v.resident) {
		return fmt.Errorf("tick %d: %d resident, square around %v needs %d", e.Tick, len(v.resident), center, len(want))
	}
	for _, c := range want {
		if _, ok := v.resident[c]; !ok {
			return fmt.Errorf("tick %d: %v missing from resident set (center %v)", e.Tick, c, center)
		}
	}
	v.squares++
	return nil
}

func (v *verifier) checkMesh(tick uint64, c chunks.Coord, digest string) error {
	if v.mesher == nil || digest == "" {
		return nil
	}
	if v.loads%uint64(v.meshEvery) != 0 {
		return nil
	}
	got := v.mesher.Generate(c).Digest()
	if got != digest {
		return fmt.Errorf("tick %d: %v digest mismatch: regenerated=%s logged=%s", tick, c, got, digest)
	}
	v.meshes++
	return nil
}
