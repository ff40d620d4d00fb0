// Package recovery classifies motion outcomes and drives the bounded
// retry-with-avoidance protocol for transient physical obstructions.
package recovery

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fieldworks/stratd/internal/motion"
)

// Class is the outcome taxonomy the sequencer reacts to.
type Class int

const (
	// ClassSuccess means the objective motion reached its target.
	ClassSuccess Class = iota
	// ClassRetryable means a transient physical obstruction worth retrying.
	ClassRetryable
	// ClassInvalid means the command was rejected; skip the objective
	// without retrying and without counting against the time budget.
	ClassInvalid
	// ClassAbort means the match deadline was reached; fatal to the loop.
	ClassAbort
)

func (c Class) String() string {
	switch c {
	case ClassSuccess:
		return "success"
	case ClassRetryable:
		return "retryable"
	case ClassInvalid:
		return "invalid"
	case ClassAbort:
		return "abort"
	default:
		return fmt.Sprintf("class(%d)", int(c))
	}
}

// Classify maps a reported outcome bitmask to its class. The timer bit
// beats every other bit present.
func Classify(o motion.Outcome) Class {
	switch {
	case o.Intersects(motion.EndTimer):
		return ClassAbort
	case o.Success():
		return ClassSuccess
	case o.Intersects(motion.EndBlocking | motion.EndObstacle):
		return ClassRetryable
	default:
		// EndError and anything unrecognized: do not retry.
		return ClassInvalid
	}
}

// Decision is the policy's answer to a retryable outcome.
type Decision int

const (
	// DecisionRetry means run the avoidance maneuver, then re-issue the
	// original motion request.
	DecisionRetry Decision = iota
	// DecisionAbandon means skip the objective for the rest of the match.
	DecisionAbandon
)

// Avoider performs the pre-defined short recovery motion. It lives outside
// the strategy core.
type Avoider interface {
	PerformAvoidance(ctx context.Context) error
}

// AvoidingFlag exposes the in-progress avoidance flag so the observability
// layer can see it.
type AvoidingFlag interface {
	SetAvoiding(bool)
}

// DefaultMaxRetries is the consecutive-retryable bound per objective.
const DefaultMaxRetries = 3

// Policy holds the per-objective retry counter. Reset it every time the
// sequencer selects a new objective.
type Policy struct {
	maxRetries int
	avoider    Avoider
	flag       AvoidingFlag
	logger     *zap.Logger

	attempts int
}

// NewPolicy creates a recovery policy. maxRetries <= 0 selects the default.
func NewPolicy(maxRetries int, avoider Avoider, flag AvoidingFlag, logger *zap.Logger) (*Policy, error) {
	if avoider == nil {
		return nil, fmt.Errorf("avoider cannot be nil")
	}
	if flag == nil {
		return nil, fmt.Errorf("avoiding flag cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Policy{
		maxRetries: maxRetries,
		avoider:    avoider,
		flag:       flag,
		logger:     logger,
	}, nil
}

// Reset clears the consecutive-retryable counter for a new objective.
func (p *Policy) Reset() {
	p.attempts = 0
}

// Attempts returns the consecutive retryable count for the current
// objective.
func (p *Policy) Attempts() int {
	return p.attempts
}

// OnRetryable registers one retryable outcome for the current objective.
// Below the bound it runs the avoidance maneuver, with the avoiding flag
// set for its duration, and asks for a retry. At the bound it asks for
// abandonment without moving.
func (p *Policy) OnRetryable(ctx context.Context) (Decision, error) {
	p.attempts++
	if p.attempts >= p.maxRetries {
		p.logger.Info("objective abandoned after consecutive obstructions",
			zap.Int("attempts", p.attempts),
		)
		return DecisionAbandon, nil
	}

	p.logger.Debug("running avoidance maneuver", zap.Int("attempt", p.attempts))
	p.flag.SetAvoiding(true)
	err := p.avoider.PerformAvoidance(ctx)
	p.flag.SetAvoiding(false)
	if err != nil {
		return DecisionAbandon, fmt.Errorf("avoidance maneuver failed: %w", err)
	}
	return DecisionRetry, nil
}
