package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/frahmantamala/account-rental/internal/booking"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run booking maintenance sweeps",
	Long:  `Expire unpaid holds and complete finished reservations. Meant to be run from cron; every sweep is safe to repeat.`,
}

var expireHoldsCmd = &cobra.Command{
	Use:   "expire-holds",
	Short: "Expire holds whose payment window has passed",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSweep("expire-holds", func(ctx context.Context, s *booking.Service) (booking.SweepResult, error) {
			return s.ExpireStaleHolds(ctx, time.Time{})
		})
	},
}

var completeReservationsCmd = &cobra.Command{
	Use:   "complete-reservations",
	Short: "Complete reservations whose rental window has ended",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSweep("complete-reservations", func(ctx context.Context, s *booking.Service) (booking.SweepResult, error) {
			return s.CompleteFinishedReservations(ctx, time.Time{})
		})
	},
}

var sweepTimeout time.Duration

func runSweep(name string, run func(context.Context, *booking.Service) (booking.SweepResult, error)) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	app, err := newApp(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()

	result, err := run(ctx, app.Bookings)
	if err != nil {
		app.Logger.Error("sweep failed", "sweep", name, "error", err)
		return err
	}

	app.Logger.Info("sweep finished",
		"sweep", name,
		"scanned", result.Scanned,
		"succeeded", result.Succeeded,
		"failed", result.Failed)
	if result.Failed > 0 {
		fmt.Fprintf(os.Stderr, "%s: %d of %d targets failed\n", name, result.Failed, result.Scanned)
	}
	return nil
}

func init() {
	sweepCmd.PersistentFlags().DurationVar(&sweepTimeout, "timeout", 5*time.Minute, "Upper bound for one sweep run")

	sweepCmd.AddCommand(expireHoldsCmd)
	sweepCmd.AddCommand(completeReservationsCmd)

	rootCmd.AddCommand(sweepCmd)
}
