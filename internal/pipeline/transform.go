package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/met-downscale/internal/domain"
	"github.com/couchcryptid/met-downscale/internal/observability"
)

// Downscaler implements Transformer by fanning the domain stages out over
// forecast members.
type Downscaler struct {
	opts           domain.DownscaleOptions
	expectedPerDay int
	workers        int
	logger         *slog.Logger
	metrics        *observability.Metrics
}

// NewDownscaler creates a Downscaler. expectedPerDay is the forecast readings
// per day required for a complete daily aggregate; workers bounds concurrent
// members.
func NewDownscaler(opts domain.DownscaleOptions, expectedPerDay, workers int, logger *slog.Logger, metrics *observability.Metrics) *Downscaler {
	return &Downscaler{
		opts:           opts,
		expectedPerDay: expectedPerDay,
		workers:        max(workers, 1),
		logger:         logger,
		metrics:        metrics,
	}
}

// Transform builds every output series for the forecast. A member that fails
// is dropped and reported; the date fails only if no member survives or the
// context ends. Series are ordered by member, then noise member.
func (d *Downscaler) Transform(ctx context.Context, f *domain.Forecast) (Result, error) {
	daily, incomplete := domain.AggregateDaily(f, d.expectedPerDay)

	series := make([][]domain.OutputSeries, len(daily))
	reports := make([]domain.Report, len(daily))
	failures := make([]error, len(daily))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)
	for i, member := range daily {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			s, r, err := domain.DownscaleMember(f, member, d.opts)
			if err != nil {
				failures[i] = err
				return nil
			}
			series[i], reports[i] = s, r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	res := Result{Issue: f.Issue, Mode: d.opts.Mode, Report: domain.Report{IncompleteDays: incomplete}}
	var errs []error
	for i, member := range daily {
		if failures[i] != nil {
			d.logger.Warn("member dropped", "member", member.Member, "error", failures[i])
			d.metrics.MemberFailures.Inc()
			res.Report.MemberFailures = append(res.Report.MemberFailures, domain.MemberFailure{Member: member.Member, Err: failures[i]})
			errs = append(errs, fmt.Errorf("member %d: %w", member.Member, failures[i]))
			continue
		}
		res.Series = append(res.Series, series[i]...)
		res.Report.Merge(reports[i])
	}
	if len(res.Series) == 0 {
		return Result{}, fmt.Errorf("no member could be downscaled: %w", errors.Join(errs...))
	}
	return res, nil
}
