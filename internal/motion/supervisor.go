package motion

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultPollInterval is the status sampling cadence of the supervisor.
const DefaultPollInterval = 10 * time.Millisecond

// SupervisorConfig tunes the supervisor wait loop.
type SupervisorConfig struct {
	// MatchDuration is the abort threshold checked on every iteration.
	MatchDuration time.Duration
	// PollInterval is the status sampling cadence.
	PollInterval time.Duration
}

// Validate checks the configuration.
func (c SupervisorConfig) Validate() error {
	if c.MatchDuration <= 0 {
		return fmt.Errorf("match duration must be positive, got %s", c.MatchDuration)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.PollInterval)
	}
	return nil
}

// Supervisor issues motion requests and waits for their terminal status.
// It is the only blocking point in the strategy core; the wait is a paced
// poll loop that re-checks the match deadline on every iteration.
type Supervisor struct {
	ctrl    Controller
	clock   Clock
	cfg     SupervisorConfig
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewSupervisor creates a supervisor over the given controller and clock.
func NewSupervisor(ctrl Controller, clock Clock, cfg SupervisorConfig, logger *zap.Logger) (*Supervisor, error) {
	if ctrl == nil {
		return nil, fmt.Errorf("controller cannot be nil")
	}
	if clock == nil {
		return nil, fmt.Errorf("clock cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid supervisor config: %w", err)
	}
	return &Supervisor{
		ctrl:    ctrl,
		clock:   clock,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Every(cfg.PollInterval), 1),
		logger:  logger,
	}, nil
}

// Execute issues req and blocks until the reported status intersects
// accept. The match deadline overrides any acceptance set: as soon as the
// clock crosses it, or the subsystem reports EndTimer, Execute returns with
// the timer bit set. Context cancellation aborts the wait with an error.
func (s *Supervisor) Execute(ctx context.Context, req Request, accept Outcome) (Outcome, error) {
	if deadline := s.deadlineOutcome(); deadline != 0 {
		return deadline, nil
	}

	if err := s.issue(req); err != nil {
		s.logger.Warn("motion request rejected at issue",
			zap.Stringer("kind", req.Kind),
			zap.Error(err),
		)
		return EndError, nil
	}

	start := s.clock.Elapsed()
	for {
		if deadline := s.deadlineOutcome(); deadline != 0 {
			s.ctrl.Stop()
			return deadline, nil
		}

		status := s.ctrl.Status()
		if status.Intersects(EndTimer) {
			return status, nil
		}
		if status.Intersects(accept) {
			s.logger.Debug("trajectory terminal",
				zap.Stringer("kind", req.Kind),
				zap.Stringer("outcome", status),
				zap.Duration("wait", s.clock.Elapsed()-start),
			)
			return status, nil
		}

		if err := s.limiter.Wait(ctx); err != nil {
			s.ctrl.Stop()
			return 0, err
		}
	}
}

// deadlineOutcome synthesizes EndTimer once the clock crosses the match
// duration, so the deadline holds even if the subsystem never sets the bit.
func (s *Supervisor) deadlineOutcome() Outcome {
	if s.clock.Elapsed() >= s.cfg.MatchDuration {
		return EndTimer
	}
	return 0
}

// issue dispatches the request to the controller. Issuing is non-blocking.
func (s *Supervisor) issue(req Request) error {
	switch req.Kind {
	case RequestGoto:
		return s.ctrl.GotoAbsolute(req.X, req.Y)
	case RequestTurn:
		return s.ctrl.TurnTo(req.AngleDeg)
	case RequestArc:
		return s.ctrl.FollowArc(req.CenterX, req.CenterY, req.SweepRad)
	default:
		return fmt.Errorf("unknown request kind %d", int(req.Kind))
	}
}
