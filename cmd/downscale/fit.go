package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/met-downscale/internal/adapter/coefficients"
	"github.com/couchcryptid/met-downscale/internal/adapter/csvfile"
	"github.com/couchcryptid/met-downscale/internal/domain"
)

type fitFlags struct {
	historyDir   string
	observations string
}

func newFitCmd(a *app) *cobra.Command {
	var f fitFlags
	cmd := &cobra.Command{
		Use:   "fit",
		Short: "Fit bias coefficients from past forecasts and site observations.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if f.historyDir == "" {
				f.historyDir = a.cfg.InputDir
			}
			if f.observations == "" {
				f.observations = a.cfg.ObservationsPath
			}
			return a.fit(cmd.Context(), f)
		},
	}
	cmd.Flags().StringVar(&f.historyDir, "history-dir", "", "directory of past forecast files (default INPUT_DIR)")
	cmd.Flags().StringVar(&f.observations, "observations", "", "site observation file (default OBSERVATIONS_PATH)")
	return cmd
}

func (a *app) fit(ctx context.Context, f fitFlags) error {
	if f.observations == "" {
		return errors.New("fit needs observations: set --observations or OBSERVATIONS_PATH")
	}
	obs, err := csvfile.LoadObservations(f.observations)
	if err != nil {
		return fmt.Errorf("load observations: %w", err)
	}
	obsDaily, gaps := domain.AggregateObservations(obs, a.cfg.ObsPerDay)
	if len(gaps) > 0 {
		a.logger.Warn("observation days left out of the fit", "count", len(gaps))
	}

	store := csvfile.NewForecastStore(f.historyDir, domain.FormOptions{Members: a.cfg.Members})
	issues, err := store.Issues()
	if err != nil {
		return fmt.Errorf("list forecasts: %w", err)
	}
	if len(issues) == 0 {
		return fmt.Errorf("no forecast files in %s", f.historyDir)
	}

	var pairs []domain.DailyPair
	for _, issue := range issues {
		fc, err := store.Extract(ctx, issue)
		if err != nil {
			return fmt.Errorf("load history: %w", err)
		}
		daily, _ := domain.AggregateDaily(fc, a.cfg.SubdailyPerDay)
		pairs = append(pairs, domain.PairHistory(daily, obsDaily)...)
	}
	a.logger.Info("history paired", "issue_dates", len(issues), "pairs", len(pairs))

	set, err := domain.FitCoefficients(pairs, domain.FitOptions{
		BinWidth: a.cfg.DOYBinWidth,
		MinPairs: a.cfg.MinBinDays,
	})
	if err != nil {
		return fmt.Errorf("fit coefficients: %w", err)
	}

	out := coefficients.NewStore(a.cfg.CoefficientsPath)
	if err := out.Save(set, time.Now().UTC()); err != nil {
		return err
	}
	a.logger.Info("coefficients saved", "path", out.Path(), "bins", domain.NumBins(set.BinWidth()), "entries", len(set.Entries()))
	return nil
}
