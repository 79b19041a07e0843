package log

import (
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"snowdrift.dev/internal/sim/world"
)

func TestTickLoggerRoundTripsThroughReader(t *testing.T) {
	dir := t.TempDir()
	l := NewTickLogger(dir)
	obs := [3]float32{1, 2, 3}
	for i := uint64(0); i < 5; i++ {
		e := world.TickLogEntry{Tick: i, Center: [2]int{int(i), 0}, RenderDistance: 10, ExactSquare: true}
		if i == 2 {
			e.Observer = &obs
			e.Events = []world.ChunkEvent{{Kind: world.EventLoad, CX: 4, CZ: -1, Handle: 9, Digest: "ab"}}
		}
		if err := l.WriteTick(e); err != nil {
			t.Fatalf("WriteTick: %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	files, err := ListFiles(filepath.Join(dir, "events"), "events")
	if err != nil || len(files) != 1 {
		t.Fatalf("files=%v err=%v", files, err)
	}
	var got []world.TickLogEntry
	if err := ReadTicks(files[0], func(e world.TickLogEntry) error {
		got = append(got, e)
		return nil
	}); err != nil {
		t.Fatalf("ReadTicks: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("entries=%d", len(got))
	}
	e := got[2]
	if e.Tick != 2 || e.Observer == nil || *e.Observer != obs || len(e.Events) != 1 || e.Events[0].Handle != 9 {
		t.Fatalf("entry 2: %+v", e)
	}
}

func TestTickLoggerRotatesHourly(t *testing.T) {
	dir := t.TempDir()
	l := NewTickLogger(dir)
	clock := time.Date(2026, 3, 1, 10, 59, 0, 0, time.UTC)
	l.now = func() time.Time { return clock }

	if err := l.WriteTick(world.TickLogEntry{Tick: 1}); err != nil {
		t.Fatalf("write: %v", err)
	}
	clock = clock.Add(2 * time.Minute)
	if err := l.WriteTick(world.TickLogEntry{Tick: 2}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	files, err := ListFiles(filepath.Join(dir, "events"), "events")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(files) != 2 ||
		filepath.Base(files[0]) != "events-2026-03-01-10.jsonl.zst" ||
		filepath.Base(files[1]) != "events-2026-03-01-11.jsonl.zst" {
		t.Fatalf("files=%v", files)
	}
	if l.Records() != 2 || !reflect.DeepEqual(l.Segments(), files) {
		t.Fatalf("records=%d segments=%v", l.Records(), l.Segments())
	}
}

func TestReopenedHourAppendsFrame(t *testing.T) {
	dir := t.TempDir()
	clock := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := uint64(0); i < 2; i++ {
		l := NewTickLogger(dir)
		l.now = func() time.Time { return clock }
		if err := l.WriteTick(world.TickLogEntry{Tick: i}); err != nil {
			t.Fatalf("write: %v", err)
		}
		if err := l.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	}
	files, err := ListFiles(filepath.Join(dir, "events"), "events")
	if err != nil || len(files) != 1 {
		t.Fatalf("files=%v err=%v", files, err)
	}
	var ticks []uint64
	if err := ReadTicks(files[0], func(e world.TickLogEntry) error {
		ticks = append(ticks, e.Tick)
		return nil
	}); err != nil {
		t.Fatalf("ReadTicks: %v", err)
	}
	if !reflect.DeepEqual(ticks, []uint64{0, 1}) {
		t.Fatalf("ticks=%v", ticks)
	}
}
