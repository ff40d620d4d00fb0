package sequencer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fieldworks/stratd/internal/field"
	"github.com/fieldworks/stratd/internal/motion"
	"github.com/fieldworks/stratd/internal/objective"
	"github.com/fieldworks/stratd/internal/sim"
)

// scriptCtrl completes every motion on the first status poll. A queue of
// override outcomes lets tests fail specific motions; once the queue is
// drained all motions succeed exactly.
type scriptCtrl struct {
	mu        sync.Mutex
	overrides []motion.Outcome
	current   motion.Outcome
	issued    []motion.Request
	stopped   bool
	onIssue   func(n int)
}

func (c *scriptCtrl) issue(req motion.Request) error {
	c.mu.Lock()
	c.issued = append(c.issued, req)
	n := len(c.issued)
	if len(c.overrides) > 0 {
		c.current = c.overrides[0]
		c.overrides = c.overrides[1:]
	} else {
		c.current = motion.EndTrajectory | motion.EndNear
	}
	hook := c.onIssue
	c.mu.Unlock()
	if hook != nil {
		hook(n)
	}
	return nil
}

func (c *scriptCtrl) GotoAbsolute(x, y float64) error { return c.issue(motion.Goto(x, y)) }
func (c *scriptCtrl) TurnTo(a float64) error          { return c.issue(motion.Turn(a)) }
func (c *scriptCtrl) FollowArc(x, y, s float64) error { return c.issue(motion.Arc(x, y, s)) }

func (c *scriptCtrl) Status() motion.Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *scriptCtrl) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
}

func (c *scriptCtrl) issuedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.issued)
}

func (c *scriptCtrl) firstIssued() motion.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.issued[0]
}

// countingAvoider counts avoidance maneuvers.
type countingAvoider struct {
	mu    sync.Mutex
	calls int
}

func (a *countingAvoider) PerformAvoidance(context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	return nil
}

func (a *countingAvoider) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

// recordingCalibrator remembers the starting pose it was given.
type recordingCalibrator struct {
	start     field.Pose
	thickness float64
	called    bool
}

func (c *recordingCalibrator) AutoPosition(_ context.Context, start field.Pose, thickness float64) error {
	c.start = start
	c.thickness = thickness
	c.called = true
	return nil
}

type fixture struct {
	seq     *Sequencer
	board   *objective.Board
	ctrl    *scriptCtrl
	arms    *sim.Arms
	clock   *sim.ManualClock
	avoider *countingAvoider
	calib   *recordingCalibrator
}

func newFixture(t *testing.T, color field.Color, takeLeft bool) *fixture {
	t.Helper()

	board := objective.NewBoard(color, takeLeft)
	ctrl := &scriptCtrl{}
	clock := &sim.ManualClock{}
	arms := sim.NewArms()
	avoider := &countingAvoider{}
	calib := &recordingCalibrator{}

	sup, err := motion.NewSupervisor(ctrl, clock, motion.SupervisorConfig{
		MatchDuration: field.MatchDuration * time.Second,
		PollInterval:  time.Millisecond,
	}, zap.NewNop())
	require.NoError(t, err)

	seq, err := New(Deps{
		Board:      board,
		Supervisor: sup,
		Controller: ctrl,
		Actuators:  arms,
		Calibrator: calib,
		Clock:      clock,
		Avoider:    avoider,
	}, Config{
		MatchDuration: field.MatchDuration * time.Second,
		MaxRetries:    3,
	})
	require.NoError(t, err)

	return &fixture{seq: seq, board: board, ctrl: ctrl, arms: arms, clock: clock, avoider: avoider, calib: calib}
}

func TestNewValidation(t *testing.T) {
	f := newFixture(t, field.ColorRed, true)

	_, err := New(Deps{}, Config{MatchDuration: time.Second})
	assert.Error(t, err)

	deps := Deps{
		Board:      f.board,
		Supervisor: nil,
		Controller: f.ctrl,
		Actuators:  f.arms,
		Calibrator: f.calib,
		Clock:      f.clock,
		Avoider:    f.avoider,
	}
	_, err = New(deps, Config{MatchDuration: time.Second})
	assert.Error(t, err, "nil supervisor must be rejected")
}

func TestRunFullMatch(t *testing.T) {
	f := newFixture(t, field.ColorRed, true)

	err := f.seq.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateMatchEnded, f.seq.State())
	for i, g := range f.board.Glasses() {
		assert.True(t, g.Taken, "glass %d", i)
	}
	for i, g := range f.board.Gifts() {
		assert.True(t, g.Done, "gift %d", i)
		assert.GreaterOrEqual(t, g.LastTrySec, 0, "gift %d attempt recorded", i)
	}
	assert.Len(t, f.arms.Gifts(), objective.GiftCount)
	assert.True(t, f.calib.called)
	assert.Equal(t, float64(field.RobotThickness), f.calib.thickness)

	// approach + acquire per glass, approach + perform per gift
	assert.Equal(t, 2*objective.GlassCount+2*objective.GiftCount, f.ctrl.issuedCount())
}

func TestRunTwiceRejected(t *testing.T) {
	f := newFixture(t, field.ColorRed, true)
	require.NoError(t, f.seq.Run(context.Background()))
	assert.ErrorIs(t, f.seq.Run(context.Background()), ErrMatchOver)
}

func TestFirstGlassSidePreference(t *testing.T) {
	left := newFixture(t, field.ColorRed, true)
	require.NoError(t, left.seq.Run(context.Background()))
	g0, err := left.board.Glass(objective.OuterGlassIndices[0])
	require.NoError(t, err)
	first := left.ctrl.firstIssued()
	assert.Equal(t, g0.Pos.X, first.X)
	assert.Equal(t, g0.Pos.Y, first.Y)

	right := newFixture(t, field.ColorRed, false)
	require.NoError(t, right.seq.Run(context.Background()))
	g1, err := right.board.Glass(objective.OuterGlassIndices[1])
	require.NoError(t, err)
	first = right.ctrl.firstIssued()
	assert.Equal(t, g1.Pos.X, first.X)
	assert.Equal(t, g1.Pos.Y, first.Y)
}

func TestBlueFirstApproachIsMirrored(t *testing.T) {
	f := newFixture(t, field.ColorBlue, true)
	require.NoError(t, f.seq.Run(context.Background()))

	g0, err := f.board.Glass(objective.OuterGlassIndices[0])
	require.NoError(t, err)
	want := field.MirrorPoint(field.ColorBlue, g0.Pos)
	first := f.ctrl.firstIssued()
	assert.Equal(t, want.X, first.X)
	assert.Equal(t, want.Y, first.Y)
}

func TestAcquisitionAlternatesToDelivery(t *testing.T) {
	f := newFixture(t, field.ColorRed, true)
	require.NoError(t, f.seq.Run(context.Background()))

	// approach glass 0, acquire glass 0, then straight to a gift approach
	require.GreaterOrEqual(t, f.ctrl.issuedCount(), 3)
	f.ctrl.mu.Lock()
	third := f.ctrl.issued[2]
	f.ctrl.mu.Unlock()
	assert.Equal(t, float64(giftWorkingY), third.Y, "third motion approaches the gift edge")
}

func TestThreeRetryablesAbandonObjective(t *testing.T) {
	f := newFixture(t, field.ColorRed, true)
	// the first approach is glass 0: obstruct it three times in a row
	f.ctrl.overrides = []motion.Outcome{motion.EndObstacle, motion.EndBlocking, motion.EndObstacle}

	err := f.seq.Run(context.Background())
	require.NoError(t, err)

	g0, err2 := f.board.Glass(objective.OuterGlassIndices[0])
	require.NoError(t, err2)
	assert.False(t, g0.Taken, "abandoned glass must not be claimed")
	assert.Equal(t, 2, f.avoider.count(), "avoidance runs before each retry, not at abandonment")

	// the rest of the match still happens
	taken := 0
	for _, g := range f.board.Glasses() {
		if g.Taken {
			taken++
		}
	}
	assert.Equal(t, objective.GlassCount-1, taken)
	for _, g := range f.board.Gifts() {
		assert.True(t, g.Done)
	}
}

func TestRetryThenSuccessKeepsObjective(t *testing.T) {
	f := newFixture(t, field.ColorRed, true)
	// one obstruction, then clean: the same glass is retried and taken
	f.ctrl.overrides = []motion.Outcome{motion.EndObstacle}

	require.NoError(t, f.seq.Run(context.Background()))

	for i, g := range f.board.Glasses() {
		assert.True(t, g.Taken, "glass %d", i)
	}
	assert.Equal(t, 1, f.avoider.count())
}

func TestInvalidSkipsWithoutClaiming(t *testing.T) {
	f := newFixture(t, field.ColorRed, true)
	f.ctrl.overrides = []motion.Outcome{motion.EndError}

	require.NoError(t, f.seq.Run(context.Background()))

	g0, err := f.board.Glass(objective.OuterGlassIndices[0])
	require.NoError(t, err)
	assert.False(t, g0.Taken, "rejected objective is skipped, not claimed")
	assert.Zero(t, f.avoider.count(), "invalid outcomes are never retried")

	taken := 0
	for _, g := range f.board.Glasses() {
		if g.Taken {
			taken++
		}
	}
	assert.Equal(t, objective.GlassCount-1, taken)
}

func TestDeadlineMidMatchStopsEverything(t *testing.T) {
	f := newFixture(t, field.ColorRed, true)
	// cross the match deadline while the fifth motion is in flight
	f.ctrl.onIssue = func(n int) {
		if n == 5 {
			f.clock.Set(field.MatchDuration * time.Second)
		}
	}

	err := f.seq.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateMatchEnded, f.seq.State())
	assert.True(t, f.arms.Halted, "stop-all must be issued on abort")
	assert.Equal(t, 5, f.ctrl.issuedCount(), "no motion requests after MatchEnded")

	state, _ := f.board.Phase()
	assert.Equal(t, StateMatchEnded.String(), state)
	assert.GreaterOrEqual(t, f.board.ElapsedSec(), int(field.MatchDuration))
}

func TestContextCancellationStopsLoop(t *testing.T) {
	f := newFixture(t, field.ColorRed, true)
	ctx, cancel := context.WithCancel(context.Background())
	f.ctrl.onIssue = func(n int) {
		if n == 3 {
			cancel()
		}
	}

	err := f.seq.Run(ctx)
	assert.Error(t, err)
	assert.Equal(t, StateMatchEnded, f.seq.State())
	assert.True(t, f.arms.Halted)
}

func TestSnapshotTracksPhase(t *testing.T) {
	f := newFixture(t, field.ColorRed, true)
	require.NoError(t, f.seq.Run(context.Background()))

	s := f.seq.Snapshot()
	assert.Equal(t, StateMatchEnded.String(), s.State)
	assert.False(t, s.Avoiding)
	assert.Len(t, s.Glasses, objective.GlassCount)
}
