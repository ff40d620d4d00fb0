// Package sim provides in-memory implementations of the motion, actuator,
// calibration, clock, and avoidance collaborators, good enough to run a
// full match without hardware. It backs `stratd run --sim` and the
// integration tests.
package sim

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fieldworks/stratd/internal/field"
	"github.com/fieldworks/stratd/internal/motion"
)

// Clock is a scaled wall clock. Scale > 1 makes simulated matches shorter
// than real time.
type Clock struct {
	start time.Time
	scale float64
}

// NewClock starts a clock at zero elapsed time.
func NewClock(scale float64) *Clock {
	if scale <= 0 {
		scale = 1
	}
	return &Clock{start: time.Now(), scale: scale}
}

// Elapsed implements motion.Clock.
func (c *Clock) Elapsed() time.Duration {
	return time.Duration(float64(time.Since(c.start)) * c.scale)
}

// ManualClock is a hand-advanced clock for tests.
type ManualClock struct {
	mu      sync.Mutex
	elapsed time.Duration
}

// Elapsed implements motion.Clock.
func (c *ManualClock) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.elapsed
}

// Advance moves the clock forward.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.elapsed += d
}

// Set jumps the clock to an absolute elapsed time.
func (c *ManualClock) Set(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.elapsed = d
}

// nearFraction is the travel fraction after which the base reports near
// arrival while still refining toward the exact target.
const nearFraction = 0.9

// Robot simulates the holonomic base. Motions take time proportional to
// distance at Speed; the status mask reports EndNear over the last stretch
// and EndTrajectory on exact arrival, mirroring the real base's arrival
// window behavior.
type Robot struct {
	mu sync.Mutex

	clock  motion.Clock
	logger *zap.Logger

	// Speed in mm per simulated second; TurnRate in degrees per second.
	Speed    float64
	TurnRate float64

	pos     field.Point
	heading float64

	moving   bool
	issuedAt time.Duration
	duration time.Duration
	target   field.Point
	targetA  float64
	isTurn   bool

	// pending obstructions injected with FailNext
	pendingFails []motion.Outcome

	stopped bool
}

// NewRobot creates a simulated base read off the given clock.
func NewRobot(clock motion.Clock, logger *zap.Logger) *Robot {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Robot{
		clock:    clock,
		logger:   logger,
		Speed:    500,
		TurnRate: 180,
	}
}

// FailNext makes the next n issued motions terminate with the given
// outcome after a third of their travel time.
func (r *Robot) FailNext(n int, out motion.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := 0; i < n; i++ {
		r.pendingFails = append(r.pendingFails, out)
	}
}

// Position returns the current simulated position.
func (r *Robot) Position() field.Point {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pos
}

// SetPosition teleports the robot; used by calibration.
func (r *Robot) SetPosition(p field.Point, headingDeg float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pos = p
	r.heading = headingDeg
}

// GotoAbsolute implements motion.Controller.
func (r *Robot) GotoAbsolute(x, y float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if x < 0 || x > field.TableLength || y < 0 || y > field.TableWidth {
		return fmt.Errorf("target (%.0f, %.0f) outside the table", x, y)
	}
	dist := math.Hypot(x-r.pos.X, y-r.pos.Y)
	r.begin(field.Point{X: x, Y: y}, r.heading, false, time.Duration(dist/r.Speed*float64(time.Second)))
	return nil
}

// TurnTo implements motion.Controller.
func (r *Robot) TurnTo(angleDeg float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delta := math.Abs(angleDeg - r.heading)
	r.begin(r.pos, angleDeg, true, time.Duration(delta/r.TurnRate*float64(time.Second)))
	return nil
}

// FollowArc implements motion.Controller.
func (r *Robot) FollowArc(centerX, centerY, sweepRad float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	radius := math.Hypot(r.pos.X-centerX, r.pos.Y-centerY)
	arcLen := math.Abs(sweepRad) * radius
	// end point of the arc around the center
	a0 := math.Atan2(r.pos.Y-centerY, r.pos.X-centerX)
	a1 := a0 + sweepRad
	end := field.Point{X: centerX + radius*math.Cos(a1), Y: centerY + radius*math.Sin(a1)}
	r.begin(end, r.heading, false, time.Duration(arcLen/r.Speed*float64(time.Second)))
	return nil
}

// begin starts a motion; the caller holds the lock.
func (r *Robot) begin(target field.Point, targetA float64, isTurn bool, d time.Duration) {
	if d < time.Millisecond {
		d = time.Millisecond
	}
	r.moving = true
	r.stopped = false
	r.issuedAt = r.clock.Elapsed()
	r.duration = d
	r.target = target
	r.targetA = targetA
	r.isTurn = isTurn
}

// Status implements motion.Controller.
func (r *Robot) Status() motion.Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.moving {
		return 0
	}
	progress := float64(r.clock.Elapsed()-r.issuedAt) / float64(r.duration)

	// injected obstruction fires after a third of the travel
	if len(r.pendingFails) > 0 && progress >= 1.0/3.0 {
		out := r.pendingFails[0]
		r.pendingFails = r.pendingFails[1:]
		r.moving = false
		return out
	}

	switch {
	case progress >= 1:
		r.moving = false
		r.pos = r.target
		r.heading = r.targetA
		return motion.EndTrajectory | motion.EndNear
	case progress >= nearFraction:
		return motion.EndNear
	default:
		return 0
	}
}

// Stop implements motion.Controller.
func (r *Robot) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.moving {
		// freeze wherever the motion got to
		progress := float64(r.clock.Elapsed()-r.issuedAt) / float64(r.duration)
		if progress > 1 {
			progress = 1
		}
		if !r.isTurn && progress > 0 {
			r.pos = field.Point{
				X: r.pos.X + (r.target.X-r.pos.X)*progress,
				Y: r.pos.Y + (r.target.Y-r.pos.Y)*progress,
			}
		}
	}
	r.moving = false
	r.stopped = true
}

// Arms records actuator commands. All operations are fire-and-forget.
type Arms struct {
	mu sync.Mutex

	LongUp   bool
	ShortUp  bool
	GiftsHit []int
	Halted   bool
}

// NewArms creates the simulated actuators with both arms up.
func NewArms() *Arms {
	return &Arms{LongUp: true, ShortUp: true}
}

func (a *Arms) LongArmUp()    { a.mu.Lock(); a.LongUp = true; a.mu.Unlock() }
func (a *Arms) LongArmDown()  { a.mu.Lock(); a.LongUp = false; a.mu.Unlock() }
func (a *Arms) ShortArmUp()   { a.mu.Lock(); a.ShortUp = true; a.mu.Unlock() }
func (a *Arms) ShortArmDown() { a.mu.Lock(); a.ShortUp = false; a.mu.Unlock() }

// DoGift implements motion.Actuators.
func (a *Arms) DoGift(n int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.GiftsHit = append(a.GiftsHit, n)
}

// StopAll implements motion.Actuators.
func (a *Arms) StopAll() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Halted = true
}

// Gifts returns a copy of the gift actuations so far.
func (a *Arms) Gifts() []int {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]int, len(a.GiftsHit))
	copy(out, a.GiftsHit)
	return out
}

// Calibrator teleports the simulated robot to the starting pose.
type Calibrator struct {
	Robot *Robot
}

// AutoPosition implements motion.Calibrator.
func (c Calibrator) AutoPosition(_ context.Context, start field.Pose, _ float64) error {
	c.Robot.SetPosition(start.Point, start.AngleDeg)
	return nil
}

// Avoider is the pre-defined recovery motion: in simulation it clears any
// remaining injected obstruction for the current spot.
type Avoider struct {
	Robot *Robot
}

// PerformAvoidance implements recovery.Avoider.
func (a Avoider) PerformAvoidance(context.Context) error {
	a.Robot.Stop()
	return nil
}
