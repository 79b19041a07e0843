// Package rates limits events per fixed window of ticks.
package rates

// Allow counts one event at nowTick against a window that started at
// startTick. It returns the updated window state, whether the event fits and,
// when it does not, how many ticks remain until the window resets.
func Allow(nowTick uint64, startTick uint64, count int, window uint64, max int) (newStart uint64, newCount int, ok bool, cooldownTicks uint64) {
	newStart = startTick
	newCount = count
	if window == 0 || max <= 0 {
		return newStart, newCount, true, 0
	}

	if nowTick-newStart >= window {
		newStart = nowTick
		newCount = 0
	}
	newCount++
	if newCount <= max {
		return newStart, newCount, true, 0
	}
	return newStart, newCount, false, (newStart + window) - nowTick
}

// Window allows at most Max events per Window ticks. The zero value allows
// everything.
type Window struct {
	Window uint64
	Max    int

	start uint64
	count int
}

func (w *Window) Allow(nowTick uint64) bool {
	var ok bool
	w.start, w.count, ok, _ = Allow(nowTick, w.start, w.count, w.Window, w.Max)
	return ok
}
