package objective

// Snapshot is a read-only view of the board for the debug layer. It is safe
// to marshal and carries no references back into the board.
type Snapshot struct {
	MatchID    string        `json:"match_id"`
	Color      string        `json:"color"`
	State      string        `json:"state"`
	SubState   string        `json:"sub_state,omitempty"`
	Avoiding   bool          `json:"avoiding"`
	ElapsedSec int           `json:"elapsed_sec"`
	Glasses    []GlassStatus `json:"glasses"`
	Gifts      []GiftStatus  `json:"gifts"`
}

// GlassStatus is the per-glass part of a snapshot.
type GlassStatus struct {
	Index int     `json:"index"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Taken bool    `json:"taken"`
}

// GiftStatus is the per-gift part of a snapshot.
type GiftStatus struct {
	Index      int     `json:"index"`
	X          float64 `json:"x"`
	Done       bool    `json:"done"`
	LastTrySec int     `json:"last_try_sec"`
}

// Snapshot captures the current board state under the read lock.
func (b *Board) Snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()

	s := Snapshot{
		MatchID:    b.matchID.String(),
		Color:      b.color.String(),
		State:      b.state,
		SubState:   b.subState,
		Avoiding:   b.avoiding,
		ElapsedSec: b.elapsedSec,
		Glasses:    make([]GlassStatus, 0, GlassCount),
		Gifts:      make([]GiftStatus, 0, GiftCount),
	}
	for i, g := range b.glasses {
		s.Glasses = append(s.Glasses, GlassStatus{Index: i, X: g.Pos.X, Y: g.Pos.Y, Taken: g.Taken})
	}
	for i, g := range b.gifts {
		s.Gifts = append(s.Gifts, GiftStatus{Index: i, X: g.X, Done: g.Done, LastTrySec: g.LastTrySec})
	}
	return s
}
