package world

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl32"

	"snowdrift.dev/internal/sim/tuning"
	"snowdrift.dev/internal/sim/world/chunks"
	"snowdrift.dev/internal/sim/world/terrain/gen"
	"snowdrift.dev/internal/sim/world/terrain/mesh"
	"snowdrift.dev/internal/sim/world/terrain/noise"
	"snowdrift.dev/internal/sim/world/stream"
)

type Config struct {
	ID string
	// Spawn places the observer before the first move. Nil leaves the
	// observer absent, so ticks are skipped until a viewer moves it.
	Spawn  *mgl32.Vec3
	Logger *log.Logger
}

// ObserverMoveRequest sets the observer position for the next tick.
// Clear removes the observer instead.
type ObserverMoveRequest struct {
	Pos   mgl32.Vec3
	Clear bool
}

type ViewerJoinRequest struct {
	SessionID string
	Name      string
	Out       chan []byte
}

// World owns the chunk streamer and the viewer set. All state is accessed
// only from the loop goroutine; other goroutines talk to it via channels.
type World struct {
	cfg  Config
	tune tuning.Tuning
	log  *log.Logger

	tick atomic.Uint64

	field    *noise.Field
	sampler  *gen.Sampler
	mesher   *mesh.Mesher
	streamer *stream.Streamer

	observer    mgl32.Vec3
	hasObserver bool
	wasSkipping bool

	viewers    map[string]*viewer
	nextHandle uint64
	// Encoded CHUNK_MESH per resident chunk, replayed to joining or
	// resyncing viewers.
	resident map[chunks.Coord][]byte

	tickLoggers []TickLogger
	events      []ChunkEvent
	logErrors   uint64

	move  chan ObserverMoveRequest
	join  chan ViewerJoinRequest
	leave chan string
	stop  chan struct{}
	done  chan struct{}

	stopOnce sync.Once
	doneOnce sync.Once
	metrics  atomic.Pointer[Metrics]
}

func New(cfg Config, tune tuning.Tuning) (*World, error) {
	if err := tune.Validate(); err != nil {
		return nil, fmt.Errorf("world: %w", err)
	}
	field, err := noise.New(tune.Seed, tune.Noise)
	if err != nil {
		return nil, fmt.Errorf("world: %w", err)
	}
	if cfg.ID == "" {
		cfg.ID = "OVERWORLD"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	sampler := gen.NewSampler(field, tune)
	mesher := mesh.NewMesher(sampler, tune.ChunkSize, tune.VertexSpacing)

	w := &World{
		cfg:      cfg,
		tune:     tune,
		log:      logger,
		field:    field,
		sampler:  sampler,
		mesher:   mesher,
		viewers:  map[string]*viewer{},
		resident: map[chunks.Coord][]byte{},
		move:     make(chan ObserverMoveRequest, 256),
		join:     make(chan ViewerJoinRequest, 64),
		leave:    make(chan string, 64),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	w.streamer = stream.New(stream.ConfigFromTuning(tune), mesher, w)
	if cfg.Spawn != nil {
		w.observer, w.hasObserver = *cfg.Spawn, true
	}
	w.metrics.Store(&Metrics{})
	return w, nil
}

func (w *World) AddTickLogger(l TickLogger) {
	if l != nil {
		w.tickLoggers = append(w.tickLoggers, l)
	}
}

func (w *World) ObserverMove() chan<- ObserverMoveRequest { return w.move }
func (w *World) ViewerJoin() chan<- ViewerJoinRequest     { return w.join }
func (w *World) ViewerLeave() chan<- string               { return w.leave }

// Done is closed once Run has returned.
func (w *World) Done() <-chan struct{} { return w.done }

func (w *World) ID() string                 { return w.cfg.ID }
func (w *World) Tuning() tuning.Tuning      { return w.tune }
func (w *World) CurrentTick() uint64        { return w.tick.Load() }
func (w *World) Metrics() Metrics           { return *w.metrics.Load() }
func (w *World) Streamer() *stream.Streamer { return w.streamer }

// Sampler is immutable and safe to query from any goroutine.
func (w *World) Sampler() *gen.Sampler { return w.sampler }

// Mesher shares the world's sampler; Generate is safe from any goroutine.
func (w *World) Mesher() *mesh.Mesher { return w.mesher }

// ObserverPosition implements stream.ObserverSource.
func (w *World) ObserverPosition() (mgl32.Vec3, bool) {
	return w.observer, w.hasObserver
}

func (w *World) applyMove(req ObserverMoveRequest) {
	if req.Clear {
		w.hasObserver = false
		return
	}
	w.observer, w.hasObserver = sanitize(req.Pos), true
}

// sanitize replaces non-finite components with 0.
func sanitize(p mgl32.Vec3) mgl32.Vec3 {
	for i, v := range p {
		if v != v || v > maxCoord || v < -maxCoord {
			p[i] = 0
		}
	}
	return p
}

const maxCoord = 1e30
