package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/logging"
	"github.com/hackgods/clinic-scheduling/internal/store"
)

// opener builds the scheduler for one command run and returns its cleanup.
type opener func(ctx context.Context, logger zerolog.Logger) (*appointment.Service, func(), error)

type app struct {
	svc    *appointment.Service
	close  func()
	logger zerolog.Logger

	correlationID uuid.UUID
	startedAt     time.Time
}

func main() {
	if err := newRootCmd(openFromConfig).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openFromConfig(ctx context.Context, logger zerolog.Logger) (*appointment.Service, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	st, err := store.Open(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return appointment.NewService(st.Repo, st.Locker), st.Close, nil
}

func newRootCmd(open opener) *cobra.Command {
	a := &app{}
	var verbose bool

	root := &cobra.Command{
		Use:   "clinicctl",
		Short: "clinicctl - manage clinic patients, doctors and appointments",
		Long: `clinicctl books, reschedules and cancels clinic appointments while
guaranteeing a doctor is never double-booked for the same date and time.

The store is picked from the environment (STORE, SQLITE_PATH, POSTGRES_DSN)
and .env in the working directory.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := "warn"
			if verbose {
				level = "debug"
			}
			a.logger = logging.New(cmd.ErrOrStderr(), "dev", level)
			a.correlationID = uuid.New()
			a.startedAt = time.Now()

			svc, closeFn, err := open(cmd.Context(), a.logger)
			if err != nil {
				return err
			}
			a.svc, a.close = svc, closeFn

			a.logger.Debug().
				Str("command", cmd.CommandPath()).
				Str("correlation_id", a.correlationID.String()).
				Msg("command start")
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.close != nil {
				a.close()
			}
			a.logger.Debug().
				Str("command", cmd.CommandPath()).
				Str("correlation_id", a.correlationID.String()).
				Int64("duration_ms", time.Since(a.startedAt).Milliseconds()).
				Msg("command end")
		},
	}

	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	root.AddCommand(
		newPatientsCmd(a),
		newDoctorsCmd(a),
		newAppointmentsCmd(a),
	)

	return root
}
