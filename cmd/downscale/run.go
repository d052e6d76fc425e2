package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/met-downscale/internal/adapter/coefficients"
	"github.com/couchcryptid/met-downscale/internal/adapter/csvfile"
	"github.com/couchcryptid/met-downscale/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/met-downscale/internal/adapter/kafka"
	"github.com/couchcryptid/met-downscale/internal/adapter/solarcache"
	"github.com/couchcryptid/met-downscale/internal/domain"
	"github.com/couchcryptid/met-downscale/internal/pipeline"
)

type runFlags struct {
	date  string
	from  string
	to    string
	all   bool
	serve bool
}

func newRunCmd(a *app) *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Downscale one or more forecast issue dates.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd.Context(), f)
		},
	}
	cmd.Flags().StringVar(&f.date, "date", "", "issue date to process (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.from, "from", "", "first issue date of a range (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.to, "to", "", "last issue date of a range, inclusive (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&f.all, "all", false, "process every forecast file in INPUT_DIR")
	cmd.Flags().BoolVar(&f.serve, "serve", false, "keep the HTTP server up after the batch until interrupted")
	cmd.MarkFlagsMutuallyExclusive("date", "from", "all")
	cmd.MarkFlagsMutuallyExclusive("date", "to", "all")
	cmd.MarkFlagsRequiredTogether("from", "to")
	return cmd
}

func (a *app) run(ctx context.Context, f runFlags) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := csvfile.NewForecastStore(a.cfg.InputDir, domain.FormOptions{Members: a.cfg.Members})
	issues, err := selectIssues(f, store)
	if err != nil {
		return err
	}

	p, closeFn, err := a.buildPipeline(store)
	if err != nil {
		return err
	}
	defer closeFn()

	var srv *httpadapter.Server
	if a.cfg.HTTPAddr != "" {
		srv = httpadapter.NewServer(a.cfg.HTTPAddr, p, p, a.logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("http server error", "error", err)
			}
		}()
	}

	_, runErr := p.RunBatch(ctx, issues)

	if srv != nil {
		if f.serve {
			a.logger.Info("batch done, serving until interrupted")
			<-ctx.Done()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("http server shutdown error", "error", err)
		}
	}
	return runErr
}

// buildPipeline wires the stages for the configured mode. The returned
// function releases the optional notifier.
func (a *app) buildPipeline(store *csvfile.ForecastStore) (*pipeline.Pipeline, func(), error) {
	cfg := a.cfg
	opts := domain.DownscaleOptions{
		Mode:   cfg.Mode(),
		Noise:  domain.NoiseOptions{Members: cfg.EnsembleSize, Seed: cfg.NoiseSeed},
		Offset: cfg.OffsetPolicy,
		Kernel: solarcache.NewCachedKernel(domain.ClearSkyKernel{Site: cfg.Site}, cfg.SolarCacheSize, a.metrics.SolarKernelCache),
	}

	if opts.Mode != domain.ModePassThrough {
		set, err := coefficients.NewStore(cfg.CoefficientsPath).Load()
		if err != nil {
			return nil, nil, fmt.Errorf("load coefficients: %w", err)
		}
		if set.BinWidth() != cfg.DOYBinWidth {
			a.logger.Warn("coefficient bin width differs from DOY_BIN_WIDTH, using the fitted width",
				"fitted", set.BinWidth(), "configured", cfg.DOYBinWidth)
		}
		opts.Coefficients = set

		if cfg.ObservationsPath != "" {
			obs, err := csvfile.LoadObservations(cfg.ObservationsPath)
			if err != nil {
				return nil, nil, fmt.Errorf("load observations: %w", err)
			}
			opts.Observations = obs
		}
	}
	a.logger.Info("pipeline configured", "mode", opts.Mode.String(), "offset", opts.Observations != nil,
		"write_files", cfg.WriteFiles, "workers", cfg.Workers)

	transformer := pipeline.NewDownscaler(opts, cfg.SubdailyPerDay, cfg.Workers, a.logger, a.metrics)

	var loader pipeline.SeriesLoader
	if cfg.WriteFiles {
		loader = csvfile.NewSeriesWriter(cfg.OutputDir, a.logger)
	}

	var pipeOpts []pipeline.Option
	closeFn := func() {}
	if len(cfg.KafkaBrokers) > 0 {
		notifier := kafkaadapter.NewNotifier(cfg.KafkaBrokers, cfg.KafkaTopic, a.logger)
		pipeOpts = append(pipeOpts, pipeline.WithNotifier(notifier))
		closeFn = func() {
			if err := notifier.Close(); err != nil {
				a.logger.Error("kafka writer close error", "error", err)
			}
		}
	}

	return pipeline.New(store, transformer, loader, a.logger, a.metrics, pipeOpts...), closeFn, nil
}

// selectIssues resolves the run flags to an ordered list of issue dates.
func selectIssues(f runFlags, store *csvfile.ForecastStore) ([]time.Time, error) {
	switch {
	case f.date != "":
		d, err := parseIssue("date", f.date)
		if err != nil {
			return nil, err
		}
		return []time.Time{d}, nil
	case f.from != "":
		from, err := parseIssue("from", f.from)
		if err != nil {
			return nil, err
		}
		to, err := parseIssue("to", f.to)
		if err != nil {
			return nil, err
		}
		return issueRange(from, to)
	case f.all:
		issues, err := store.Issues()
		if err != nil {
			return nil, fmt.Errorf("list forecasts: %w", err)
		}
		if len(issues) == 0 {
			return nil, errors.New("no forecast files found")
		}
		return issues, nil
	default:
		return nil, errors.New("one of --date, --from/--to or --all is required")
	}
}

func parseIssue(flag, s string) (time.Time, error) {
	d, err := time.Parse(domain.IssueLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s %q: want YYYY-MM-DD", flag, s)
	}
	return d, nil
}

func issueRange(from, to time.Time) ([]time.Time, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("--to %s is before --from %s", to.Format(domain.IssueLayout), from.Format(domain.IssueLayout))
	}
	var out []time.Time
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out, nil
}
