package sequencer

// State is the strategy finite-state machine state.
type State int

const (
	StateInit State = iota
	StateSelectPickup
	StateApproachPickup
	StateAcquirePickup
	StateSelectDelivery
	StateApproachDelivery
	StatePerformDelivery
	StateMatchEnded
)

// SubStateAvoiding is the orthogonal sub-state tag published while an
// avoidance maneuver runs. It is entered from the approach states and
// returns to them.
const SubStateAvoiding = "avoiding"

var stateNames = map[State]string{
	StateInit:             "init",
	StateSelectPickup:     "select_pickup",
	StateApproachPickup:   "approach_pickup",
	StateAcquirePickup:    "acquire_pickup",
	StateSelectDelivery:   "select_delivery",
	StateApproachDelivery: "approach_delivery",
	StatePerformDelivery:  "perform_delivery",
	StateMatchEnded:       "match_ended",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "unknown"
}

// AllStateNames lists every state tag, for the state gauge.
func AllStateNames() []string {
	return []string{
		StateInit.String(),
		StateSelectPickup.String(),
		StateApproachPickup.String(),
		StateAcquirePickup.String(),
		StateSelectDelivery.String(),
		StateApproachDelivery.String(),
		StatePerformDelivery.String(),
		StateMatchEnded.String(),
	}
}
