package motion

import (
	"context"
	"fmt"
	"time"

	"github.com/fieldworks/stratd/internal/field"
)

// Controller is the motion subsystem. Issue calls are non-blocking; the
// result of the last issued request is observed through Status.
type Controller interface {
	// GotoAbsolute starts a straight move to (x, y) in playing-side
	// coordinates.
	GotoAbsolute(x, y float64) error
	// TurnTo starts a turn to the given playing-side heading in degrees.
	TurnTo(angleDeg float64) error
	// FollowArc starts an arc around (centerX, centerY) sweeping the given
	// angle in radians.
	FollowArc(centerX, centerY, sweepRad float64) error
	// Status reports the current terminal-condition bitmask of the last
	// request, or 0 while it is still running.
	Status() Outcome
	// Stop aborts the current motion immediately.
	Stop()
}

// Actuators groups the fire-and-forget mechanism commands. No status
// feedback is modeled for them.
type Actuators interface {
	LongArmUp()
	LongArmDown()
	ShortArmUp()
	ShortArmDown()
	// DoGift triggers the delivery action on gift number n.
	DoGift(n int)
	// StopAll halts every actuator; issued once on match abort.
	StopAll()
}

// Calibrator positions the robot against the border references before the
// match.
type Calibrator interface {
	// AutoPosition takes the playing-side starting pose and the distance
	// between the back of the robot and the wheel axis.
	AutoPosition(ctx context.Context, start field.Pose, thickness float64) error
}

// Clock reads the monotonic time since match start.
type Clock interface {
	Elapsed() time.Duration
}

// RequestKind selects one of the three motion primitives.
type RequestKind int

const (
	RequestGoto RequestKind = iota
	RequestTurn
	RequestArc
)

func (k RequestKind) String() string {
	switch k {
	case RequestGoto:
		return "goto"
	case RequestTurn:
		return "turn"
	case RequestArc:
		return "arc"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Request describes one motion to issue. Coordinates are playing-side:
// callers mirror canonical values through the field package first.
type Request struct {
	Kind     RequestKind
	X, Y     float64
	AngleDeg float64
	CenterX  float64
	CenterY  float64
	SweepRad float64
}

// Goto builds a straight-move request.
func Goto(x, y float64) Request {
	return Request{Kind: RequestGoto, X: x, Y: y}
}

// Turn builds a turn request.
func Turn(angleDeg float64) Request {
	return Request{Kind: RequestTurn, AngleDeg: angleDeg}
}

// Arc builds an arc request.
func Arc(centerX, centerY, sweepRad float64) Request {
	return Request{Kind: RequestArc, CenterX: centerX, CenterY: centerY, SweepRad: sweepRad}
}
