// Package stream keeps the set of resident chunks matched to the observer's
// position: it generates chunks entering the load square and evicts those
// leaving it, once per tick.
package stream

import (
	"sync"

	"github.com/alitto/pond/v2"
	"github.com/go-gl/mathgl/mgl32"

	"snowdrift.dev/internal/sim/tuning"
	"snowdrift.dev/internal/sim/world/chunks"
	"snowdrift.dev/internal/sim/world/terrain/mesh"
)

// Handle is the render collaborator's opaque reference to a loaded chunk.
type Handle uint64

type Generator interface {
	Generate(c chunks.Coord) *mesh.Mesh
}

// LoadedChunk is handed to the sink when a chunk enters the registry.
type LoadedChunk struct {
	Coord       chunks.Coord
	Mesh        *mesh.Mesh
	Digest      string
	Origin      mgl32.Vec3
	Decorations []mesh.Decoration
}

// Sink owns render resources. ChunkUnloaded receives the handle returned by
// the matching ChunkLoaded call.
type Sink interface {
	ChunkLoaded(c LoadedChunk) Handle
	ChunkUnloaded(c chunks.Coord, h Handle)
}

// ObserverSource yields the observer position, or false before one exists.
type ObserverSource interface {
	ObserverPosition() (mgl32.Vec3, bool)
}

type ObserverFunc func() (mgl32.Vec3, bool)

func (f ObserverFunc) ObserverPosition() (mgl32.Vec3, bool) { return f() }

// Fixed is an observer that never moves.
type Fixed mgl32.Vec3

func (f Fixed) ObserverPosition() (mgl32.Vec3, bool) { return mgl32.Vec3(f), true }

type Config struct {
	ChunkSize      int
	VertexSpacing  float64
	RenderDistance int
	// Resident chunks survive until RenderDistance+EvictHysteresis.
	EvictHysteresis int
	// 0 generates every missing chunk in the tick it becomes wanted.
	MaxGenerationsPerTick int
	Workers               int
}

func ConfigFromTuning(t tuning.Tuning) Config {
	return Config{
		ChunkSize:             t.ChunkSize,
		VertexSpacing:         t.VertexSpacing,
		RenderDistance:        t.RenderDistance,
		EvictHysteresis:       t.EvictHysteresis,
		MaxGenerationsPerTick: t.MaxGenerationsPerTick,
		Workers:               t.GenWorkers,
	}
}

type State uint8

const (
	Unloaded State = iota
	Pending
	Loaded
)

func (s State) String() string {
	switch s {
	case Pending:
		return "PENDING"
	case Loaded:
		return "LOADED"
	default:
		return "UNLOADED"
	}
}

// Chunk is one registry record. Decorations live and die with it.
type Chunk struct {
	Coord       chunks.Coord
	Handle      Handle
	Origin      mgl32.Vec3
	Digest      string
	Vertices    int
	Decorations []mesh.Decoration
	LoadedTick  uint64
}

// Report describes what one Tick did.
type Report struct {
	Tick    uint64
	Skipped bool
	// On skipped ticks Center repeats the last streamed center.
	Center chunks.Coord

	Wanted   int
	Loaded   []chunks.Coord
	Unloaded []chunks.Coord
	// Pending coordinates abandoned because they left the wanted square.
	Dropped int

	Resident int
	Pending  int
}

type Streamer struct {
	cfg  Config
	gen  Generator
	sink Sink
	pool pond.Pool

	loaded  map[chunks.Coord]*Chunk
	pending map[chunks.Coord]struct{}

	tick      uint64
	center    chunks.Coord
	hasCenter bool
}

func New(cfg Config, gen Generator, sink Sink) *Streamer {
	if cfg.ChunkSize < 1 {
		cfg.ChunkSize = 1
	}
	if !(cfg.VertexSpacing > 0) {
		cfg.VertexSpacing = 1
	}
	if cfg.RenderDistance < 0 {
		cfg.RenderDistance = 0
	}
	if cfg.EvictHysteresis < 0 {
		cfg.EvictHysteresis = 0
	}
	if cfg.MaxGenerationsPerTick < 0 {
		cfg.MaxGenerationsPerTick = 0
	}
	s := &Streamer{
		cfg:     cfg,
		gen:     gen,
		sink:    sink,
		loaded:  map[chunks.Coord]*Chunk{},
		pending: map[chunks.Coord]struct{}{},
	}
	if cfg.Workers > 1 {
		s.pool = pond.NewPool(cfg.Workers)
	}
	return s
}

// Close stops the worker pool. The registry is left as is.
func (s *Streamer) Close() {
	if s.pool != nil {
		s.pool.StopAndWait()
		s.pool = nil
	}
}

func (s *Streamer) Config() Config { return s.cfg }

// Center returns the observer chunk of the last non-skipped tick.
func (s *Streamer) Center() (chunks.Coord, bool) { return s.center, s.hasCenter }

// Tick runs one load/evict pass. Without an observer position the tick is
// skipped and the registry is left untouched.
func (s *Streamer) Tick(obs ObserverSource) Report {
	s.tick++
	rep := Report{Tick: s.tick, Center: s.center}
	if obs == nil {
		rep.Skipped = true
		return s.finish(rep)
	}
	pos, ok := obs.ObserverPosition()
	if !ok {
		rep.Skipped = true
		return s.finish(rep)
	}

	center := chunks.ObserverCoord(pos, s.cfg.ChunkSize, s.cfg.VertexSpacing)
	s.center, s.hasCenter = center, true
	rep.Center = center

	wanted := chunks.Wanted(center, s.cfg.RenderDistance)
	rep.Wanted = len(wanted)

	rep.Dropped = s.dropStalePending(center)

	var missing []chunks.Coord
	for _, c := range wanted {
		if _, ok := s.loaded[c]; ok {
			continue
		}
		missing = append(missing, c)
	}
	batch := missing
	if budget := s.cfg.MaxGenerationsPerTick; budget > 0 && len(missing) > budget {
		batch = missing[:budget]
		for _, c := range missing[budget:] {
			s.pending[c] = struct{}{}
		}
	}

	built := s.generate(batch)
	for i, c := range batch {
		s.insert(c, built[i])
		delete(s.pending, c)
	}
	rep.Loaded = batch

	rep.Unloaded = s.evict(center, s.cfg.RenderDistance+s.cfg.EvictHysteresis)
	return s.finish(rep)
}

func (s *Streamer) finish(rep Report) Report {
	rep.Resident = len(s.loaded)
	rep.Pending = len(s.pending)
	return rep
}

func (s *Streamer) dropStalePending(center chunks.Coord) int {
	n := 0
	for c := range s.pending {
		if !chunks.Within(c, center, s.cfg.RenderDistance) {
			delete(s.pending, c)
			n++
		}
	}
	return n
}

type generated struct {
	mesh   *mesh.Mesh
	digest string
}

func (s *Streamer) build(c chunks.Coord) generated {
	m := s.gen.Generate(c)
	if m == nil {
		return generated{}
	}
	return generated{mesh: m, digest: m.Digest()}
}

// generate meshes and digests batch, in parallel when a pool exists. Results
// keep batch order so the sink sees the same sequence either way.
func (s *Streamer) generate(batch []chunks.Coord) []generated {
	out := make([]generated, len(batch))
	if s.pool == nil || len(batch) < 2 {
		for i, c := range batch {
			out[i] = s.build(c)
		}
		return out
	}
	var wg sync.WaitGroup
	for i, c := range batch {
		wg.Add(1)
		s.pool.Submit(func() {
			defer wg.Done()
			out[i] = s.build(c)
		})
	}
	wg.Wait()
	return out
}

func (s *Streamer) insert(c chunks.Coord, g generated) {
	if _, ok := s.loaded[c]; ok {
		return
	}
	m := g.mesh
	origin := chunks.Origin(c, s.cfg.ChunkSize, s.cfg.VertexSpacing)
	var decorations []mesh.Decoration
	if m != nil {
		decorations = m.Decorations
	}
	var h Handle
	if s.sink != nil {
		h = s.sink.ChunkLoaded(LoadedChunk{
			Coord:       c,
			Mesh:        m,
			Digest:      g.digest,
			Origin:      origin,
			Decorations: decorations,
		})
	}
	ch := &Chunk{
		Coord:       c,
		Handle:      h,
		Origin:      origin,
		Digest:      g.digest,
		Decorations: decorations,
		LoadedTick:  s.tick,
	}
	if m != nil {
		ch.Vertices = m.VertexCount()
	}
	s.loaded[c] = ch
}

func (s *Streamer) evict(center chunks.Coord, keep int) []chunks.Coord {
	var out []chunks.Coord
	for c := range s.loaded {
		if !chunks.Within(c, center, keep) {
			out = append(out, c)
		}
	}
	chunks.SortKeys(out)
	for _, c := range out {
		ch := s.loaded[c]
		delete(s.loaded, c)
		if s.sink != nil {
			s.sink.ChunkUnloaded(c, ch.Handle)
		}
	}
	return out
}

func (s *Streamer) Len() int        { return len(s.loaded) }
func (s *Streamer) PendingLen() int { return len(s.pending) }

func (s *Streamer) Has(c chunks.Coord) bool {
	_, ok := s.loaded[c]
	return ok
}

func (s *Streamer) State(c chunks.Coord) State {
	if _, ok := s.loaded[c]; ok {
		return Loaded
	}
	if _, ok := s.pending[c]; ok {
		return Pending
	}
	return Unloaded
}

func (s *Streamer) Get(c chunks.Coord) (*Chunk, bool) {
	ch, ok := s.loaded[c]
	return ch, ok
}

// Keys returns resident coordinates ordered by x, then z.
func (s *Streamer) Keys() []chunks.Coord {
	out := make([]chunks.Coord, 0, len(s.loaded))
	for c := range s.loaded {
		out = append(out, c)
	}
	chunks.SortKeys(out)
	return out
}

// Resident calls fn for each resident chunk in Keys order.
func (s *Streamer) Resident(fn func(*Chunk)) {
	for _, c := range s.Keys() {
		fn(s.loaded[c])
	}
}
