package world

import (
	"context"
	"encoding/json"
	"time"

	"snowdrift.dev/internal/sim/world/stream"
	"snowdrift.dev/internal/viewerproto"
)

func (w *World) Run(ctx context.Context) error {
	defer w.doneOnce.Do(func() { close(w.done) })
	rate := w.tune.TickRateHz
	if rate <= 0 {
		rate = 1
	}
	ticker := time.NewTicker(time.Second / time.Duration(rate))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.move:
			w.applyMove(req)
		case req := <-w.join:
			w.handleViewerJoin(req)
		case id := <-w.leave:
			w.drainJoins()
			w.handleViewerLeave(id)
		case <-ticker.C:
			w.step()
		}
	}
}

func (w *World) Stop() { w.stopOnce.Do(func() { close(w.stop) }) }

// Close releases the generation workers. Call after Run has returned.
func (w *World) Close() { w.streamer.Close() }

// StepOnce applies queued requests and advances one tick. It is intended
// for tests and tools that drive the world without Run.
func (w *World) StepOnce() stream.Report {
	for {
		select {
		case req := <-w.move:
			w.applyMove(req)
			continue
		default:
		}
		break
	}
	w.drainJoins()
	for {
		select {
		case id := <-w.leave:
			w.handleViewerLeave(id)
			continue
		default:
		}
		break
	}
	return w.step()
}

// drainJoins handles queued joins so a leave never overtakes its own join.
func (w *World) drainJoins() {
	for {
		select {
		case req := <-w.join:
			w.handleViewerJoin(req)
		default:
			return
		}
	}
}

func (w *World) step() stream.Report {
	start := time.Now()
	nowTick := w.tick.Load()
	w.events = w.events[:0]

	rep := w.streamer.Tick(w)
	w.flushResyncs(nowTick)
	w.logTransitions(nowTick, rep)

	var obs *[3]float32
	if !rep.Skipped {
		p := [3]float32(w.observer)
		obs = &p
	}
	tickMsg, _ := json.Marshal(viewerproto.TickMsg{
		Type:            viewerproto.TypeTick,
		ProtocolVersion: viewerproto.Version,
		Tick:            nowTick,
		Skipped:         rep.Skipped,
		Center:          [2]int{rep.Center.CX, rep.Center.CZ},
		Observer:        obs,
		Resident:        rep.Resident,
		Pending:         rep.Pending,
		Loaded:          len(rep.Loaded),
		Unloaded:        len(rep.Unloaded),
		Dropped:         rep.Dropped,
	})
	w.broadcast(tickMsg)

	micros := time.Since(start).Microseconds()
	if len(w.tickLoggers) > 0 {
		entry := TickLogEntry{
			Tick:           nowTick,
			Skipped:        rep.Skipped,
			Observer:       obs,
			Center:         [2]int{rep.Center.CX, rep.Center.CZ},
			RenderDistance: w.tune.RenderDistance,
			ExactSquare:    w.tune.MaxGenerationsPerTick == 0 && w.tune.EvictHysteresis == 0,
			Resident:       rep.Resident,
			Pending:        rep.Pending,
			Dropped:        rep.Dropped,
			Events:         append([]ChunkEvent(nil), w.events...),
			Micros:         micros,
		}
		for _, l := range w.tickLoggers {
			if err := l.WriteTick(entry); err != nil {
				w.logErrors++
				if w.logErrors == 1 || w.logErrors%1000 == 0 {
					w.log.Printf("tick %d: tick log write failed (%d total): %v", nowTick, w.logErrors, err)
				}
			}
		}
	}

	prev := w.metrics.Load()
	m := &Metrics{
		Tick:          nowTick + 1,
		HasObserver:   !rep.Skipped,
		Center:        [2]int{rep.Center.CX, rep.Center.CZ},
		Resident:      rep.Resident,
		Pending:       rep.Pending,
		Viewers:       len(w.viewers),
		LoadedTotal:   prev.LoadedTotal + uint64(len(rep.Loaded)),
		UnloadedTotal: prev.UnloadedTotal + uint64(len(rep.Unloaded)),
		SkippedTotal:  prev.SkippedTotal,
		LogErrors:     w.logErrors,
		StepMicros:    micros,
	}
	if rep.Skipped {
		m.SkippedTotal++
	}
	w.metrics.Store(m)
	w.tick.Add(1)
	return rep
}

func (w *World) logTransitions(nowTick uint64, rep stream.Report) {
	if rep.Skipped != w.wasSkipping || (nowTick == 0 && rep.Skipped) {
		if rep.Skipped {
			w.log.Printf("tick %d: no observer position, skipping ticks", nowTick)
		} else {
			w.log.Printf("tick %d: observer at chunk %v, streaming resumed", nowTick, rep.Center)
		}
		w.wasSkipping = rep.Skipped
	}
	if n := len(rep.Loaded); n > 0 && n >= w.tune.SpikeLogThreshold {
		w.log.Printf("tick %d: generated %d chunks in one tick (resident=%d pending=%d)", nowTick, n, rep.Resident, rep.Pending)
	}
}
