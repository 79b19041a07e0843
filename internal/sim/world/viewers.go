package world

import (
	"encoding/json"

	"snowdrift.dev/internal/sim/world/chunks"
	"snowdrift.dev/internal/viewerproto"
)

type viewer struct {
	id   string
	name string
	out  chan []byte
	// resync viewers get nothing until RESET plus the full resident set
	// has been queued for them.
	resync bool
}

func (w *World) handleViewerJoin(req ViewerJoinRequest) {
	if req.SessionID == "" || req.Out == nil {
		return
	}
	if old := w.viewers[req.SessionID]; old != nil {
		close(old.out)
	}
	w.viewers[req.SessionID] = &viewer{id: req.SessionID, name: req.Name, out: req.Out, resync: true}
	w.log.Printf("viewer %s joined (%q), %d resident chunks queued", req.SessionID, req.Name, len(w.resident))
}

func (w *World) handleViewerLeave(id string) {
	v := w.viewers[id]
	if v == nil {
		return
	}
	delete(w.viewers, id)
	close(v.out)
	w.log.Printf("viewer %s left", id)
}

func (w *World) broadcast(b []byte) {
	for _, v := range w.viewers {
		if v.resync {
			continue
		}
		if !trySend(v.out, b) {
			v.resync = true
		}
	}
}

// flushResyncs sends RESET followed by every resident chunk, nearest first,
// to each viewer marked for resync. A viewer whose queue fills up again
// stays marked and is retried next tick.
func (w *World) flushResyncs(nowTick uint64) {
	var pending []*viewer
	for _, v := range w.viewers {
		if v.resync {
			pending = append(pending, v)
		}
	}
	if len(pending) == 0 {
		return
	}
	reset, _ := json.Marshal(viewerproto.ResetMsg{
		Type:            viewerproto.TypeReset,
		ProtocolVersion: viewerproto.Version,
		Tick:            nowTick,
		Reason:          "resync",
	})
	keys := make([]chunks.Coord, 0, len(w.resident))
	for c := range w.resident {
		keys = append(keys, c)
	}
	center, _ := w.streamer.Center()
	chunks.SortNearest(keys, center)

	for _, v := range pending {
		if !trySend(v.out, reset) {
			continue
		}
		ok := true
		for _, c := range keys {
			if !trySend(v.out, w.resident[c]) {
				ok = false
				break
			}
		}
		v.resync = !ok
	}
}

func trySend(ch chan []byte, b []byte) bool {
	select {
	case ch <- b:
		return true
	default:
		return false
	}
}
