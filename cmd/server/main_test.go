package main

import (
	"strings"
	"testing"

	"snowdrift.dev/internal/sim/world"
)

func TestWriteMetricsWithoutIndex(t *testing.T) {
	var sb strings.Builder
	writeMetrics(&sb, "OVERWORLD", world.Metrics{Tick: 9, Resident: 441, LoadedTotal: 462, UnloadedTotal: 21, StepMicros: 1500}, nil)
	out := sb.String()
	for _, want := range []string{
		`snowdrift_world_tick{world="OVERWORLD"} 9`,
		`snowdrift_resident_chunks{world="OVERWORLD"} 441`,
		`snowdrift_chunk_transitions_total{world="OVERWORLD",kind="load"} 462`,
		`snowdrift_chunk_transitions_total{world="OVERWORLD",kind="unload"} 21`,
		`snowdrift_step_ms{world="OVERWORLD"} 1.500`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
	if strings.Contains(out, "snowdrift_index_") {
		t.Fatalf("index metrics without an index:\n%s", out)
	}
}

func TestOpenRuntimeIndex(t *testing.T) {
	dir := t.TempDir()

	idx, err := openRuntimeIndex(dir, true)
	if err != nil || idx != nil {
		t.Fatalf("disabled: idx=%v err=%v", idx, err)
	}

	t.Setenv("SD_INDEX_BACKEND", "bogus")
	if _, err := openRuntimeIndex(dir, false); err == nil {
		t.Fatalf("expected error for unknown backend")
	}

	t.Setenv("SD_INDEX_BACKEND", "")
	idx, err = openRuntimeIndex(dir, false)
	if err != nil || idx == nil {
		t.Fatalf("sqlite: idx=%v err=%v", idx, err)
	}
	defer idx.Close()

	var sb strings.Builder
	writeMetrics(&sb, "OVERWORLD", world.Metrics{}, idx)
	if !strings.Contains(sb.String(), "snowdrift_index_dropped_total 0") {
		t.Fatalf("missing index metrics:\n%s", sb.String())
	}
}
