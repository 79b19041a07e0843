package main

import (
	"fmt"
	"io"

	"snowdrift.dev/internal/sim/world"
)

// writeMetrics renders m in the Prometheus text exposition format.
func writeMetrics(rw io.Writer, worldID string, m world.Metrics, idx runtimeIndex) {
	fmt.Fprintf(rw, "# HELP snowdrift_world_tick Current world tick.\n")
	fmt.Fprintf(rw, "# TYPE snowdrift_world_tick gauge\n")
	fmt.Fprintf(rw, "snowdrift_world_tick{world=%q} %d\n", worldID, m.Tick)

	fmt.Fprintf(rw, "# HELP snowdrift_resident_chunks Chunks currently in the registry.\n")
	fmt.Fprintf(rw, "# TYPE snowdrift_resident_chunks gauge\n")
	fmt.Fprintf(rw, "snowdrift_resident_chunks{world=%q} %d\n", worldID, m.Resident)

	fmt.Fprintf(rw, "# HELP snowdrift_pending_chunks Wanted chunks waiting for a generation slot.\n")
	fmt.Fprintf(rw, "# TYPE snowdrift_pending_chunks gauge\n")
	fmt.Fprintf(rw, "snowdrift_pending_chunks{world=%q} %d\n", worldID, m.Pending)

	fmt.Fprintf(rw, "# HELP snowdrift_viewers Connected viewer sessions.\n")
	fmt.Fprintf(rw, "# TYPE snowdrift_viewers gauge\n")
	fmt.Fprintf(rw, "snowdrift_viewers{world=%q} %d\n", worldID, m.Viewers)

	fmt.Fprintf(rw, "# HELP snowdrift_chunk_transitions_total Chunk load and unload transitions.\n")
	fmt.Fprintf(rw, "# TYPE snowdrift_chunk_transitions_total counter\n")
	fmt.Fprintf(rw, "snowdrift_chunk_transitions_total{world=%q,kind=%q} %d\n", worldID, "load", m.LoadedTotal)
	fmt.Fprintf(rw, "snowdrift_chunk_transitions_total{world=%q,kind=%q} %d\n", worldID, "unload", m.UnloadedTotal)

	fmt.Fprintf(rw, "# HELP snowdrift_skipped_ticks_total Ticks skipped for lack of an observer.\n")
	fmt.Fprintf(rw, "# TYPE snowdrift_skipped_ticks_total counter\n")
	fmt.Fprintf(rw, "snowdrift_skipped_ticks_total{world=%q} %d\n", worldID, m.SkippedTotal)

	fmt.Fprintf(rw, "# HELP snowdrift_tick_log_errors_total Tick logger write failures.\n")
	fmt.Fprintf(rw, "# TYPE snowdrift_tick_log_errors_total counter\n")
	fmt.Fprintf(rw, "snowdrift_tick_log_errors_total{world=%q} %d\n", worldID, m.LogErrors)

	fmt.Fprintf(rw, "# HELP snowdrift_step_ms Last tick step duration in milliseconds.\n")
	fmt.Fprintf(rw, "# TYPE snowdrift_step_ms gauge\n")
	fmt.Fprintf(rw, "snowdrift_step_ms{world=%q} %.3f\n", worldID, float64(m.StepMicros)/1000)

	if idx == nil {
		return
	}
	s := idx.Stats()
	fmt.Fprintf(rw, "# HELP snowdrift_index_queue_depth Current sqlite index queue depth.\n")
	fmt.Fprintf(rw, "# TYPE snowdrift_index_queue_depth gauge\n")
	fmt.Fprintf(rw, "snowdrift_index_queue_depth %d\n", s.QueueDepth)

	fmt.Fprintf(rw, "# HELP snowdrift_index_dropped_total Tick records dropped because the index queue was full.\n")
	fmt.Fprintf(rw, "# TYPE snowdrift_index_dropped_total counter\n")
	fmt.Fprintf(rw, "snowdrift_index_dropped_total %d\n", s.DropTickTotal)

	fmt.Fprintf(rw, "# HELP snowdrift_index_write_failures_total Failed sqlite index transactions.\n")
	fmt.Fprintf(rw, "# TYPE snowdrift_index_write_failures_total counter\n")
	fmt.Fprintf(rw, "snowdrift_index_write_failures_total %d\n", s.WriteFailures)
}
