package orchestrator

// gapTracker computes the last version below which every range has committed.
// Ranges may commit in any order; a committed range beyond a gap is held until the gap closes.
type gapTracker struct {
	checkpoint int64
	pending    map[int64]int64 // start version -> end version of committed ranges past the checkpoint
}

func newGapTracker(checkpoint int64) *gapTracker {
	return &gapTracker{
		checkpoint: checkpoint,
		pending:    make(map[int64]int64),
	}
}

// complete records [start, end] as committed and reports whether the checkpoint moved
func (g *gapTracker) complete(start, end int64) (int64, bool) {
	if end <= g.checkpoint {
		return g.checkpoint, false
	}
	if previous, ok := g.pending[start]; !ok || end > previous {
		g.pending[start] = end
	}

	advanced := false
	for progressed := true; progressed; {
		progressed = false
		for s, e := range g.pending {
			if s > g.checkpoint+1 {
				continue
			}
			if e > g.checkpoint {
				g.checkpoint = e
				advanced = true
			}
			delete(g.pending, s)
			progressed = true
		}
	}

	return g.checkpoint, advanced
}

// gaps returns the number of committed ranges waiting on an earlier range
func (g *gapTracker) gaps() int {
	return len(g.pending)
}
