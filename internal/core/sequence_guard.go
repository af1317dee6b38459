package core

import (
	"github.com/yottachain/mena/internal/errs"
)

// SequenceGuard tracks the highest source sequence seen per submitter
// partition. Upstream assigns sequences per caller; gaps are tolerated
// (a rejected action still consumed its number) but a regression on a
// non-duplicate action means out-of-order delivery and is refused.
//
// Not thread-safe. Only the single-threaded engine touches it.
type SequenceGuard struct {
	highWater map[string]int64
	gaps      map[string]int64
}

func NewSequenceGuard() *SequenceGuard {
	return &SequenceGuard{
		highWater: make(map[string]int64),
		gaps:      make(map[string]int64),
	}
}

// Validate checks one incoming source sequence and advances the high
// water mark on acceptance.
func (g *SequenceGuard) Validate(partition string, sourceSequence int64, isDuplicate bool) error {
	last, seen := g.highWater[partition]
	if seen && sourceSequence <= last {
		if isDuplicate {
			return nil
		}
		return errs.Conflictf("out-of-order action: partition=%s high_water=%d got=%d",
			partition, last, sourceSequence)
	}
	if seen && sourceSequence > last+1 {
		g.gaps[partition]++
	}
	g.highWater[partition] = sourceSequence
	return nil
}

// Gaps returns the count of observed sequence gaps for a partition.
func (g *SequenceGuard) Gaps(partition string) int64 {
	return g.gaps[partition]
}

// Partitions returns the high water marks for persistence.
func (g *SequenceGuard) Partitions() map[string]int64 {
	out := make(map[string]int64, len(g.highWater))
	for partition, seq := range g.highWater {
		out[partition] = seq
	}
	return out
}

// Restore loads persisted high water marks.
func (g *SequenceGuard) Restore(marks map[string]int64) {
	for partition, seq := range marks {
		g.highWater[partition] = seq
	}
}
