// Package objective tracks the claimable targets of a match: the glasses on
// the playing field and the gifts along the table edge.
//
// All positions are stored in the canonical frame and transformed on read,
// never on write, so the board must be reset only after the team color is
// fixed. The board is owned by the strategy sequencer for the duration of a
// match; the debug layer reads it through Snapshot.
package objective

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/fieldworks/stratd/internal/field"
)

const (
	// GlassCount is the number of glasses on the playing field.
	GlassCount = 12
	// GiftCount is the number of gifts along the table edge.
	GiftCount = 4
)

var (
	// ErrAlreadyDone reports a claim or completion of a target whose flag
	// is already set. This is a programmer-error guard, not retryable.
	ErrAlreadyDone = errors.New("objective already done")
	// ErrBadIndex reports an out-of-range target index.
	ErrBadIndex = errors.New("objective index out of range")
)

// Glass is a glass on the playing field.
type Glass struct {
	Pos   field.Point `json:"pos"`
	Taken bool        `json:"taken"`
}

// Gift is a gift on the table edge. X is the canonical coordinate of its
// actuation point; LastTrySec is the match time of the last attempt against
// it, successful or not, or -1 if it was never attempted.
type Gift struct {
	Done       bool    `json:"done"`
	X          float64 `json:"x"`
	LastTrySec int     `json:"last_try_sec"`
}

// glassLayout holds the canonical glass positions. Glass i and glass 11-i
// are Y-mirror twins, so on the blue side the mirror transform reverses
// the physical index order by itself: the physical glasses closest to the
// blue starting zone become glasses 0 and 1. The layout is never
// recomputed per color.
var glassLayout = [GlassCount]field.Point{
	{X: 900, Y: 1450},
	{X: 1200, Y: 1450},
	{X: 1500, Y: 1450},
	{X: 1050, Y: 1250},
	{X: 1350, Y: 1250},
	{X: 1200, Y: 1050},
	{X: 1200, Y: 950},
	{X: 1350, Y: 750},
	{X: 1050, Y: 750},
	{X: 1500, Y: 550},
	{X: 1200, Y: 550},
	{X: 900, Y: 550},
}

// giftLayout holds the canonical X coordinate of each gift.
var giftLayout = [GiftCount]float64{600, 1200, 1800, 2400}

// Outer and inner glass index groups, in canonical indices. The mirror
// twin symmetry of the layout keeps the groups valid on both sides.
var (
	OuterGlassIndices = [2]int{0, 1}
	InnerGlassIndices = [2]int{3, 4}
)

// Board is the single mutable aggregate of a match.
type Board struct {
	mu sync.RWMutex

	matchID            uuid.UUID
	color              field.Color
	glasses            [GlassCount]Glass
	gifts              [GiftCount]Gift
	elapsedSec         int
	avoiding           bool
	state              string
	subState           string
	takeFirstGlassLeft bool
}

// NewBoard creates a board for one match. The color must be final: reads
// mirror through it.
func NewBoard(color field.Color, takeFirstGlassLeft bool) *Board {
	b := &Board{}
	b.Reset(color, takeFirstGlassLeft)
	return b
}

// Reset re-initializes every target at its canonical position and clears
// all flags. Positions stay canonical; mirroring happens on read.
func (b *Board) Reset(color field.Color, takeFirstGlassLeft bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.matchID = uuid.New()
	b.color = color
	b.takeFirstGlassLeft = takeFirstGlassLeft
	b.elapsedSec = 0
	b.avoiding = false
	b.state = ""
	b.subState = ""

	for i := range b.glasses {
		b.glasses[i] = Glass{Pos: glassLayout[i]}
	}
	for i := range b.gifts {
		b.gifts[i] = Gift{X: giftLayout[i], LastTrySec: -1}
	}
}

// MatchID returns the identifier of the current match.
func (b *Board) MatchID() uuid.UUID {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.matchID
}

// Color returns the color the board was reset for.
func (b *Board) Color() field.Color {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.color
}

// TakeFirstGlassLeft reports the configured first-pickup side preference.
func (b *Board) TakeFirstGlassLeft() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.takeFirstGlassLeft
}

// Glass returns a copy of glass i.
func (b *Board) Glass(i int) (Glass, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if i < 0 || i >= GlassCount {
		return Glass{}, ErrBadIndex
	}
	return b.glasses[i], nil
}

// Glasses returns a copy of all glasses.
func (b *Board) Glasses() [GlassCount]Glass {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.glasses
}

// Gift returns a copy of gift i.
func (b *Board) Gift(i int) (Gift, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if i < 0 || i >= GiftCount {
		return Gift{}, ErrBadIndex
	}
	return b.gifts[i], nil
}

// Gifts returns a copy of all gifts.
func (b *Board) Gifts() [GiftCount]Gift {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.gifts
}

// Claim marks glass i as taken. A glass transitions to taken exactly once;
// claiming it again returns ErrAlreadyDone.
func (b *Board) Claim(i int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if i < 0 || i >= GlassCount {
		return ErrBadIndex
	}
	if b.glasses[i].Taken {
		return ErrAlreadyDone
	}
	b.glasses[i].Taken = true
	return nil
}

// Complete marks gift i as done. Completing it again returns ErrAlreadyDone.
func (b *Board) Complete(i int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if i < 0 || i >= GiftCount {
		return ErrBadIndex
	}
	if b.gifts[i].Done {
		return ErrAlreadyDone
	}
	b.gifts[i].Done = true
	return nil
}

// RecordAttempt stores the match time of an attempt against gift i. The
// stored value is monotonically non-decreasing.
func (b *Board) RecordAttempt(i, atSec int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if i < 0 || i >= GiftCount {
		return ErrBadIndex
	}
	if atSec > b.gifts[i].LastTrySec {
		b.gifts[i].LastTrySec = atSec
	}
	return nil
}

// AdvanceTime updates the elapsed match time. Regressions are clamped: the
// clock reader is an external collaborator and jitter must not move the
// match time backwards.
func (b *Board) AdvanceTime(toSec int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if toSec > b.elapsedSec {
		b.elapsedSec = toSec
	}
}

// ElapsedSec returns the elapsed match time in seconds.
func (b *Board) ElapsedSec() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.elapsedSec
}

// SetAvoiding flags that an avoidance maneuver is in progress.
func (b *Board) SetAvoiding(v bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.avoiding = v
}

// Avoiding reports whether an avoidance maneuver is in progress.
func (b *Board) Avoiding() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.avoiding
}

// SetPhase records the sequencer state and sub-state tags for observers.
func (b *Board) SetPhase(state, subState string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = state
	b.subState = subState
}

// Phase returns the sequencer state and sub-state tags.
func (b *Board) Phase() (string, string) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state, b.subState
}
