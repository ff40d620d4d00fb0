package sequencer

import (
	"math"

	"github.com/fieldworks/stratd/internal/field"
	"github.com/fieldworks/stratd/internal/objective"
)

// Selector decides which objective to pursue next. Implementations must be
// pure: abandoned or already-done targets are filtered by the caller-passed
// skip set and the target flags.
//
// The authoritative priority order of the original robot is unknown, so the
// selector is pluggable and nearest-first is only the default.
type Selector interface {
	// NextGlass returns the index of the next glass to take, or false if
	// no eligible glass remains.
	NextGlass(glasses [objective.GlassCount]objective.Glass, from field.Point, skip map[int]bool) (int, bool)
	// NextGift returns the index of the next gift to do, or false if no
	// eligible gift remains.
	NextGift(gifts [objective.GiftCount]objective.Gift, fromX float64, skip map[int]bool) (int, bool)
}

// NearestSelector picks the nearest eligible target by canonical distance,
// breaking ties on the lower index.
type NearestSelector struct{}

// NextGlass implements Selector.
func (NearestSelector) NextGlass(glasses [objective.GlassCount]objective.Glass, from field.Point, skip map[int]bool) (int, bool) {
	best := -1
	bestDist := math.Inf(1)
	for i, g := range glasses {
		if g.Taken || skip[i] {
			continue
		}
		d := math.Hypot(g.Pos.X-from.X, g.Pos.Y-from.Y)
		if d < bestDist {
			best = i
			bestDist = d
		}
	}
	return best, best >= 0
}

// NextGift implements Selector.
func (NearestSelector) NextGift(gifts [objective.GiftCount]objective.Gift, fromX float64, skip map[int]bool) (int, bool) {
	best := -1
	bestDist := math.Inf(1)
	for i, g := range gifts {
		if g.Done || skip[i] {
			continue
		}
		d := math.Abs(g.X - fromX)
		if d < bestDist {
			best = i
			bestDist = d
		}
	}
	return best, best >= 0
}

// FixedOrderSelector walks targets in index order. Useful for scripted
// matches and for reproducing a hand-tuned sequence.
type FixedOrderSelector struct{}

// NextGlass implements Selector.
func (FixedOrderSelector) NextGlass(glasses [objective.GlassCount]objective.Glass, _ field.Point, skip map[int]bool) (int, bool) {
	for i, g := range glasses {
		if !g.Taken && !skip[i] {
			return i, true
		}
	}
	return -1, false
}

// NextGift implements Selector.
func (FixedOrderSelector) NextGift(gifts [objective.GiftCount]objective.Gift, _ float64, skip map[int]bool) (int, bool) {
	for i, g := range gifts {
		if !g.Done && !skip[i] {
			return i, true
		}
	}
	return -1, false
}

// SelectorByName resolves a configured selector name. Unknown names fall
// back to nearest.
func SelectorByName(name string) Selector {
	switch name {
	case "fixed":
		return FixedOrderSelector{}
	default:
		return NearestSelector{}
	}
}
