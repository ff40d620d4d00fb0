// Package motion defines the interface to the external motion subsystem and
// the trajectory supervisor that waits on it.
//
// The motion subsystem runs independently; it is observed only through a
// status bitmask. The supervisor is the single blocking point of the
// strategy core: it polls the status until it intersects the caller's
// acceptance set, with the match deadline overriding any acceptance set.
package motion

import "strings"

// Outcome is the terminal-status bitmask reported by the motion subsystem.
type Outcome uint8

const (
	// EndTrajectory means the trajectory finished exactly on target.
	EndTrajectory Outcome = 1 << iota
	// EndBlocking means the base detected blocking during the trajectory.
	EndBlocking
	// EndNear means the robot arrived near the target, reduced precision.
	EndNear
	// EndObstacle means an obstacle was detected ahead.
	EndObstacle
	// EndError means the subsystem rejected or cannot run the command.
	EndError
	// EndTimer means the match deadline was reached.
	EndTimer
)

// Acceptance presets.
const (
	// AcceptStandard is the acceptance set for precision motions. EndNear
	// alone never terminates a wait under this set.
	AcceptStandard = EndTrajectory | EndBlocking | EndObstacle | EndTimer | EndError

	// AcceptNear additionally accepts near arrival. It trades precision
	// for speed and must only be used where approximate arrival is fine.
	AcceptNear = AcceptStandard | EndNear
)

// Success reports whether the outcome counts as a reached target, exact or
// near.
func (o Outcome) Success() bool {
	return o&(EndTrajectory|EndNear) != 0
}

// Has reports whether all bits of flag are set.
func (o Outcome) Has(flag Outcome) bool {
	return o&flag == flag
}

// Intersects reports whether any bit of mask is set.
func (o Outcome) Intersects(mask Outcome) bool {
	return o&mask != 0
}

func (o Outcome) String() string {
	if o == 0 {
		return "pending"
	}
	names := []struct {
		bit  Outcome
		name string
	}{
		{EndTrajectory, "trajectory"},
		{EndBlocking, "blocking"},
		{EndNear, "near"},
		{EndObstacle, "obstacle"},
		{EndError, "error"},
		{EndTimer, "timer"},
	}
	var parts []string
	for _, n := range names {
		if o&n.bit != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}
