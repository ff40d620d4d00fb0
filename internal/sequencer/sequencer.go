// Package sequencer runs the strategic match loop: it selects objectives,
// delegates motion to the trajectory supervisor, applies the recovery
// policy on failure, and enforces the match deadline.
//
// The sequencer exclusively owns the board for the duration of a match.
// Motion requests are strictly sequential: a new request is only issued
// after the previous one reached a terminal status.
package sequencer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fieldworks/stratd/internal/field"
	"github.com/fieldworks/stratd/internal/motion"
	"github.com/fieldworks/stratd/internal/objective"
	"github.com/fieldworks/stratd/internal/recovery"
	"github.com/fieldworks/stratd/internal/telemetry"
)

// giftWorkingY is the canonical Y at which the robot drives along the gift
// edge while actuating gifts.
const giftWorkingY = 250

// ErrMatchOver reports a Run call on a sequencer whose match already ended.
var ErrMatchOver = errors.New("match already ended")

// Config tunes the sequencer.
type Config struct {
	// MatchDuration is the hard time budget of a match.
	MatchDuration time.Duration
	// MaxRetries bounds consecutive retryable outcomes per objective.
	MaxRetries int
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.MatchDuration <= 0 {
		return fmt.Errorf("match duration must be positive, got %s", c.MatchDuration)
	}
	return nil
}

// Deps are the collaborators the sequencer drives. Controller is only used
// for the stop-all command on abort; every motion goes through Supervisor.
type Deps struct {
	Board      *objective.Board
	Supervisor *motion.Supervisor
	Controller motion.Controller
	Actuators  motion.Actuators
	Calibrator motion.Calibrator
	Clock      motion.Clock
	Avoider    recovery.Avoider
	Selector   Selector
	Metrics    *telemetry.Metrics
	Logger     *zap.Logger
}

// Sequencer is the top-level finite-state loop of a match.
type Sequencer struct {
	cfg    Config
	board  *objective.Board
	sup    *motion.Supervisor
	ctrl   motion.Controller
	acts   motion.Actuators
	calib  motion.Calibrator
	clock  motion.Clock
	sel    Selector
	policy *recovery.Policy
	met    *telemetry.Metrics
	logger *zap.Logger

	state State
	// pos is the believed position in the canonical frame: the last target
	// reached. Good enough for nearest-first selection.
	pos field.Point

	currentGlass int
	currentGift  int

	abandonedGlasses map[int]bool
	abandonedGifts   map[int]bool
}

// New creates a sequencer for one match.
func New(deps Deps, cfg Config) (*Sequencer, error) {
	if deps.Board == nil {
		return nil, fmt.Errorf("board cannot be nil")
	}
	if deps.Supervisor == nil {
		return nil, fmt.Errorf("supervisor cannot be nil")
	}
	if deps.Controller == nil {
		return nil, fmt.Errorf("controller cannot be nil")
	}
	if deps.Actuators == nil {
		return nil, fmt.Errorf("actuators cannot be nil")
	}
	if deps.Calibrator == nil {
		return nil, fmt.Errorf("calibrator cannot be nil")
	}
	if deps.Clock == nil {
		return nil, fmt.Errorf("clock cannot be nil")
	}
	if deps.Avoider == nil {
		return nil, fmt.Errorf("avoider cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid sequencer config: %w", err)
	}
	if deps.Selector == nil {
		deps.Selector = NearestSelector{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	policy, err := recovery.NewPolicy(cfg.MaxRetries, deps.Avoider, deps.Board, deps.Logger)
	if err != nil {
		return nil, err
	}

	return &Sequencer{
		cfg:              cfg,
		board:            deps.Board,
		sup:              deps.Supervisor,
		ctrl:             deps.Controller,
		acts:             deps.Actuators,
		calib:            deps.Calibrator,
		clock:            deps.Clock,
		sel:              deps.Selector,
		policy:           policy,
		met:              deps.Metrics,
		logger:           deps.Logger,
		state:            StateInit,
		currentGlass:     -1,
		currentGift:      -1,
		abandonedGlasses: make(map[int]bool),
		abandonedGifts:   make(map[int]bool),
	}, nil
}

// State returns the current sequencer state.
func (s *Sequencer) State() State {
	return s.state
}

// Snapshot returns the observable match state.
func (s *Sequencer) Snapshot() objective.Snapshot {
	return s.board.Snapshot()
}

// Run drives the match to completion. It returns nil on a normal end
// (objectives exhausted or deadline abort) and an error only on context
// cancellation or a failed calibration. Run can be called at most once:
// MatchEnded is a sink state.
func (s *Sequencer) Run(ctx context.Context) error {
	if s.state == StateMatchEnded {
		return ErrMatchOver
	}

	s.logger.Info("match loop starting",
		zap.Stringer("match_id", s.board.MatchID()),
		zap.Stringer("color", s.board.Color()),
	)

	for {
		s.syncClock()

		if err := ctx.Err(); err != nil {
			s.stopAll()
			s.transition(StateMatchEnded)
			return err
		}
		if s.state != StateMatchEnded && s.clock.Elapsed() >= s.cfg.MatchDuration {
			s.abort()
		}

		switch s.state {
		case StateInit:
			if err := s.runInit(ctx); err != nil {
				s.stopAll()
				s.transition(StateMatchEnded)
				return err
			}

		case StateSelectPickup:
			s.runSelectPickup()

		case StateApproachPickup:
			s.runApproachPickup(ctx)

		case StateAcquirePickup:
			s.runAcquirePickup(ctx)

		case StateSelectDelivery:
			s.runSelectDelivery()

		case StateApproachDelivery:
			s.runApproachDelivery(ctx)

		case StatePerformDelivery:
			s.runPerformDelivery(ctx)

		case StateMatchEnded:
			s.logger.Info("match ended",
				zap.Int("elapsed_sec", s.board.ElapsedSec()),
				zap.Int("glasses_taken", s.countTakenGlasses()),
				zap.Int("gifts_done", s.countDoneGifts()),
			)
			return nil
		}
	}
}

// runInit calibrates against the border and picks the first glass per the
// configured side preference.
func (s *Sequencer) runInit(ctx context.Context) error {
	s.acts.ShortArmUp()
	s.acts.LongArmUp()

	start := field.StartPose(s.board.Color())
	if err := s.calib.AutoPosition(ctx, start, field.RobotThickness); err != nil {
		return fmt.Errorf("border auto-positioning failed: %w", err)
	}
	s.pos = field.Point{X: field.StartX, Y: field.StartY}

	// The side preference only biases which of the two outer glasses is
	// attempted first; after that, selection is the selector's business.
	if s.board.TakeFirstGlassLeft() {
		s.currentGlass = objective.OuterGlassIndices[0]
	} else {
		s.currentGlass = objective.OuterGlassIndices[1]
	}
	s.policy.Reset()
	s.logger.Info("calibrated",
		zap.Float64("x", start.X),
		zap.Float64("y", start.Y),
		zap.Int("first_glass", s.currentGlass),
	)
	s.transition(StateApproachPickup)
	return nil
}

func (s *Sequencer) runSelectPickup() {
	idx, ok := s.sel.NextGlass(s.board.Glasses(), s.pos, s.abandonedGlasses)
	if !ok {
		s.currentGlass = -1
		s.transition(StateSelectDelivery)
		return
	}
	s.currentGlass = idx
	s.policy.Reset()
	s.transition(StateApproachPickup)
}

func (s *Sequencer) runApproachPickup(ctx context.Context) {
	glass, err := s.board.Glass(s.currentGlass)
	if err != nil {
		s.logger.Error("selected glass vanished", zap.Int("glass", s.currentGlass), zap.Error(err))
		s.transition(StateSelectPickup)
		return
	}
	target := field.MirrorPoint(s.board.Color(), glass.Pos)

	out := s.execute(ctx, motion.Goto(target.X, target.Y), motion.AcceptNear)
	switch recovery.Classify(out) {
	case recovery.ClassSuccess:
		s.transition(StateAcquirePickup)
	case recovery.ClassRetryable:
		s.retryOrAbandon(ctx, func() { s.abandonGlass() }, StateSelectPickup)
	case recovery.ClassInvalid:
		s.skipInvalid("glass", s.currentGlass)
		s.abandonGlass()
		s.transition(StateSelectPickup)
	case recovery.ClassAbort:
		s.abort()
	}
}

// runAcquirePickup refines to the exact glass position with the arm down.
// Near arrival is not acceptable here: the standard acceptance set keeps
// the supervisor waiting until exact arrival or a failure bit.
func (s *Sequencer) runAcquirePickup(ctx context.Context) {
	glass, err := s.board.Glass(s.currentGlass)
	if err != nil {
		s.logger.Error("selected glass vanished", zap.Int("glass", s.currentGlass), zap.Error(err))
		s.transition(StateSelectPickup)
		return
	}
	target := field.MirrorPoint(s.board.Color(), glass.Pos)

	s.acts.ShortArmDown()
	out := s.execute(ctx, motion.Goto(target.X, target.Y), motion.AcceptStandard)
	switch recovery.Classify(out) {
	case recovery.ClassSuccess:
		s.acts.ShortArmUp()
		if err := s.board.Claim(s.currentGlass); err != nil {
			s.logger.Error("claim failed", zap.Int("glass", s.currentGlass), zap.Error(err))
		} else if s.met != nil {
			s.met.GlassesClaimed.Inc()
		}
		s.logger.Info("glass taken", zap.Int("glass", s.currentGlass))
		s.pos = glass.Pos
		s.currentGlass = -1
		s.transition(StateSelectDelivery)
	case recovery.ClassRetryable:
		s.acts.ShortArmUp()
		s.retryOrAbandon(ctx, func() { s.abandonGlass() }, StateSelectPickup)
	case recovery.ClassInvalid:
		s.acts.ShortArmUp()
		s.skipInvalid("glass", s.currentGlass)
		s.abandonGlass()
		s.transition(StateSelectPickup)
	case recovery.ClassAbort:
		s.abort()
	}
}

func (s *Sequencer) runSelectDelivery() {
	idx, ok := s.sel.NextGift(s.board.Gifts(), s.pos.X, s.abandonedGifts)
	if !ok {
		// No gift left: fall back to the remaining pickups, or end the
		// match once both target sets are exhausted.
		if _, left := s.sel.NextGlass(s.board.Glasses(), s.pos, s.abandonedGlasses); left {
			s.transition(StateSelectPickup)
			return
		}
		s.logger.Info("all objectives exhausted")
		s.transition(StateMatchEnded)
		return
	}
	s.currentGift = idx
	s.policy.Reset()
	s.transition(StateApproachDelivery)
}

func (s *Sequencer) runApproachDelivery(ctx context.Context) {
	gift, err := s.board.Gift(s.currentGift)
	if err != nil {
		s.logger.Error("selected gift vanished", zap.Int("gift", s.currentGift), zap.Error(err))
		s.transition(StateSelectDelivery)
		return
	}
	target := field.MirrorPoint(s.board.Color(), field.Point{X: gift.X, Y: giftWorkingY})

	out := s.execute(ctx, motion.Goto(target.X, target.Y), motion.AcceptNear)
	switch recovery.Classify(out) {
	case recovery.ClassSuccess:
		s.transition(StatePerformDelivery)
	case recovery.ClassRetryable:
		s.retryOrAbandon(ctx, func() { s.abandonGift() }, StateSelectDelivery)
	case recovery.ClassInvalid:
		s.skipInvalid("gift", s.currentGift)
		s.abandonGift()
		s.transition(StateSelectDelivery)
	case recovery.ClassAbort:
		s.abort()
	}
}

// runPerformDelivery positions exactly on the gift, offset by the
// color-dependent servo correction, and triggers the delivery arm.
func (s *Sequencer) runPerformDelivery(ctx context.Context) {
	gift, err := s.board.Gift(s.currentGift)
	if err != nil {
		s.logger.Error("selected gift vanished", zap.Int("gift", s.currentGift), zap.Error(err))
		s.transition(StateSelectDelivery)
		return
	}
	color := s.board.Color()
	x := gift.X + field.ServoCorrection(color)
	y := field.MirrorY(color, giftWorkingY)

	out := s.execute(ctx, motion.Goto(x, y), motion.AcceptStandard)
	switch recovery.Classify(out) {
	case recovery.ClassSuccess:
		s.acts.DoGift(s.currentGift)
		s.recordGiftAttempt()
		if err := s.board.Complete(s.currentGift); err != nil {
			s.logger.Error("complete failed", zap.Int("gift", s.currentGift), zap.Error(err))
		} else if s.met != nil {
			s.met.GiftsCompleted.Inc()
		}
		s.logger.Info("gift done", zap.Int("gift", s.currentGift))
		s.pos = field.Point{X: gift.X, Y: giftWorkingY}
		s.currentGift = -1
		s.transition(StateSelectPickup)
	case recovery.ClassRetryable:
		s.retryOrAbandon(ctx, func() { s.abandonGift() }, StateSelectDelivery)
	case recovery.ClassInvalid:
		s.skipInvalid("gift", s.currentGift)
		s.recordGiftAttempt()
		s.abandonGift()
		s.transition(StateSelectDelivery)
	case recovery.ClassAbort:
		s.abort()
	}
}

// retryOrAbandon applies the recovery policy to a retryable outcome. On
// retry the current state is kept so the motion is re-issued; on
// abandonment the abandon callback runs and the sequencer moves to next.
func (s *Sequencer) retryOrAbandon(ctx context.Context, abandon func(), next State) {
	s.board.SetPhase(s.state.String(), SubStateAvoiding)
	decision, err := s.policy.OnRetryable(ctx)
	s.board.SetPhase(s.state.String(), "")
	if s.met != nil && decision == recovery.DecisionRetry {
		s.met.AvoidanceTotal.Inc()
	}
	if err != nil {
		s.logger.Warn("recovery failed, abandoning objective", zap.Error(err))
	}
	if err != nil || decision == recovery.DecisionAbandon {
		abandon()
		s.transition(next)
	}
	// DecisionRetry: stay in the current state; the loop re-issues.
}

func (s *Sequencer) abandonGlass() {
	if s.currentGlass >= 0 {
		s.abandonedGlasses[s.currentGlass] = true
		if s.met != nil {
			s.met.AbandonmentTotal.WithLabelValues("glass").Inc()
		}
		s.currentGlass = -1
	}
}

func (s *Sequencer) abandonGift() {
	if s.currentGift >= 0 {
		s.abandonedGifts[s.currentGift] = true
		s.recordGiftAttempt()
		if s.met != nil {
			s.met.AbandonmentTotal.WithLabelValues("gift").Inc()
		}
		s.currentGift = -1
	}
}

func (s *Sequencer) recordGiftAttempt() {
	if s.currentGift < 0 {
		return
	}
	if err := s.board.RecordAttempt(s.currentGift, s.board.ElapsedSec()); err != nil {
		s.logger.Error("record attempt failed", zap.Int("gift", s.currentGift), zap.Error(err))
	}
}

func (s *Sequencer) skipInvalid(kind string, idx int) {
	s.logger.Warn("motion rejected, skipping objective",
		zap.String("kind", kind),
		zap.Int("index", idx),
	)
	if s.met != nil {
		s.met.OutcomesTotal.WithLabelValues(recovery.ClassInvalid.String()).Inc()
	}
}

// abort issues the stop-all command and sinks in MatchEnded. It runs at
// most once; no motion request is issued afterwards.
func (s *Sequencer) abort() {
	if s.state == StateMatchEnded {
		return
	}
	s.logger.Info("match deadline reached, stopping all actuation")
	s.stopAll()
	s.transition(StateMatchEnded)
}

func (s *Sequencer) stopAll() {
	s.ctrl.Stop()
	s.acts.StopAll()
}

// execute runs one supervised motion and feeds the outcome metrics.
func (s *Sequencer) execute(ctx context.Context, req motion.Request, accept motion.Outcome) motion.Outcome {
	start := s.clock.Elapsed()
	out, err := s.sup.Execute(ctx, req, accept)
	if err != nil {
		// Context cancellation: treat as an abort, the run loop exits on
		// the next ctx check.
		return motion.EndTimer
	}
	s.syncClock()
	if s.met != nil {
		s.met.TrajectoryWait.Observe((s.clock.Elapsed() - start).Seconds())
		s.met.OutcomesTotal.WithLabelValues(recovery.Classify(out).String()).Inc()
	}
	return out
}

// syncClock publishes the elapsed match time to the board and metrics.
func (s *Sequencer) syncClock() {
	sec := int(s.clock.Elapsed() / time.Second)
	s.board.AdvanceTime(sec)
	if s.met != nil {
		s.met.MatchElapsedSec.Set(s.clock.Elapsed().Seconds())
	}
}

func (s *Sequencer) transition(next State) {
	if s.state == next {
		return
	}
	s.logger.Debug("state transition",
		zap.Stringer("from", s.state),
		zap.Stringer("to", next),
	)
	s.state = next
	s.board.SetPhase(next.String(), "")
	if s.met != nil {
		s.met.SetState(AllStateNames(), next.String())
	}
}

func (s *Sequencer) countTakenGlasses() int {
	n := 0
	for _, g := range s.board.Glasses() {
		if g.Taken {
			n++
		}
	}
	return n
}

func (s *Sequencer) countDoneGifts() int {
	n := 0
	for _, g := range s.board.Gifts() {
		if g.Done {
			n++
		}
	}
	return n
}
