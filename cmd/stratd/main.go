// Stratd is the autonomous decision core for a table-top competition robot.
//
// It runs the 89-second match loop: border calibration, objective
// selection, trajectory supervision with bounded retries, and hard
// deadline enforcement. Without hardware it drives a kinematic simulation,
// which is how `stratd run` behaves out of the box.
//
// Usage:
//
//	# Run a simulated match with defaults
//	stratd run
//
//	# Play the blue side, first glass on the right
//	stratd run --color blue --first-glass right
//
//	# Configure via environment
//	STRATD_MATCH_COLOR=blue STRATD_SERVER_PORT=9999 stratd run
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fieldworks/stratd/internal/config"
	"github.com/fieldworks/stratd/internal/field"
	"github.com/fieldworks/stratd/internal/logging"
	"github.com/fieldworks/stratd/internal/motion"
	"github.com/fieldworks/stratd/internal/objective"
	"github.com/fieldworks/stratd/internal/sequencer"
	"github.com/fieldworks/stratd/internal/server"
	"github.com/fieldworks/stratd/internal/sim"
	"github.com/fieldworks/stratd/internal/telemetry"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var (
	configPath string
	flagColor  string
	flagFirst  string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "stratd",
	Short: "Autonomous match strategy daemon",
	Long: `stratd is the decision core of a competition robot. It sequences
pickup and delivery objectives against a hard match deadline, supervising
each trajectory and recovering from obstructions.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml (optional)")
	runCmd.Flags().StringVar(&flagColor, "color", "", "team color, red or blue (overrides config)")
	runCmd.Flags().StringVar(&flagFirst, "first-glass", "", "first outer glass side, left or right (overrides config)")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a full simulated match",
	Long: `Run one match against the built-in simulation: calibrate, then pick
up and deliver objectives until the deadline. The final board state is
printed as JSON when the match ends.

Examples:
  # Defaults: red side, first glass on the left
  stratd run

  # Blue side, 10x faster than real time
  stratd run --color blue`,
	RunE: runMatch,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("stratd\n")
		fmt.Printf("Version:    %s\n", version)
		fmt.Printf("Commit:     %s\n", gitCommit)
		fmt.Printf("Build Date: %s\n", buildDate)
	},
}

func runMatch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := applyFlagOverrides(cfg); err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, stopping match", zap.Stringer("signal", sig))
		cancel()
	}()

	return run(ctx, cfg, logger)
}

// applyFlagOverrides layers command-line flags on top of the loaded config.
func applyFlagOverrides(cfg *config.Config) error {
	if flagColor != "" {
		cfg.Match.Color = flagColor
	}
	switch flagFirst {
	case "":
	case "left":
		cfg.Match.TakeFirstGlassLeft = true
	case "right":
		cfg.Match.TakeFirstGlassLeft = false
	default:
		return fmt.Errorf("invalid --first-glass %q, want left or right", flagFirst)
	}
	return cfg.Validate()
}

// run wires the collaborators and plays one match to completion.
func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	color, err := field.ParseColor(cfg.Match.Color)
	if err != nil {
		return err
	}

	board := objective.NewBoard(color, cfg.Match.TakeFirstGlassLeft)
	metrics := telemetry.NewMetrics()

	clock := sim.NewClock(cfg.Sim.TimeScale)
	robot := sim.NewRobot(clock, logger.Named("sim"))
	robot.Speed = cfg.Sim.Speed
	arms := sim.NewArms()

	sup, err := motion.NewSupervisor(robot, clock, motion.SupervisorConfig{
		MatchDuration: cfg.Match.Duration.Duration(),
		PollInterval:  cfg.Match.PollInterval.Duration(),
	}, logger.Named("supervisor"))
	if err != nil {
		return err
	}

	seq, err := sequencer.New(sequencer.Deps{
		Board:      board,
		Supervisor: sup,
		Controller: robot,
		Actuators:  arms,
		Calibrator: sim.Calibrator{Robot: robot},
		Clock:      clock,
		Avoider:    sim.Avoider{Robot: robot},
		Selector:   sequencer.SelectorByName(cfg.Strategy.Selector),
		Metrics:    metrics,
		Logger:     logger.Named("sequencer"),
	}, sequencer.Config{
		MatchDuration: cfg.Match.Duration.Duration(),
		MaxRetries:    cfg.Match.MaxRetries,
	})
	if err != nil {
		return err
	}

	var srv *server.Server
	if cfg.Server.Enabled {
		srv, err = server.NewServer(board, logger.Named("http"), &server.Config{
			Host: cfg.Server.Host,
			Port: cfg.Server.Port,
		})
		if err != nil {
			return err
		}
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server failed", zap.Error(err))
			}
		}()
	}

	runErr := seq.Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		logger.Error("match loop failed", zap.Error(runErr))
	}

	if srv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http server shutdown failed", zap.Error(err))
		}
	}

	out, err := json.MarshalIndent(board.Snapshot(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal final snapshot: %w", err)
	}
	fmt.Println(string(out))

	return runErr
}
