package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/met-downscale/internal/config"
	"github.com/couchcryptid/met-downscale/internal/observability"
)

// app carries what every subcommand shares. cfg and logger are set by the
// root command before any subcommand runs.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics
}

func newRootCmd(metrics *observability.Metrics) *cobra.Command {
	a := &app{metrics: metrics}
	root := &cobra.Command{
		Use:   "downscale",
		Short: "Downscale ensemble forecasts to hourly site meteorology.",
		Long: `Downscale converts 6-hourly ensemble forecasts into hourly site series,
optionally debiased against observations and fanned out with seeded noise.
Settings come from the environment; see internal/config.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			a.cfg = cfg
			a.logger = observability.NewLogger(cfg)
			return nil
		},
	}
	root.AddCommand(newRunCmd(a), newFitCmd(a))
	return root
}
