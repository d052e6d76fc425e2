package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/met-downscale/internal/domain"
	"github.com/couchcryptid/met-downscale/internal/observability"
)

// ForecastExtractor loads the validated forecast for one issue date.
type ForecastExtractor interface {
	Extract(ctx context.Context, issue time.Time) (*domain.Forecast, error)
}

// Transformer turns one forecast into every output series for its issue date.
type Transformer interface {
	Transform(ctx context.Context, f *domain.Forecast) (Result, error)
}

// SeriesLoader writes output series to their destination.
type SeriesLoader interface {
	Load(ctx context.Context, series []domain.OutputSeries) error
}

// BatchNotifier announces series after they have been written.
type BatchNotifier interface {
	Notify(ctx context.Context, emitted []domain.EmittedSeries) error
}

// Result is the combined in-memory table of one issue date.
type Result struct {
	Issue  time.Time
	Mode   domain.Mode
	Series []domain.OutputSeries
	Report domain.Report
}

// RunStatus summarizes one finished issue-date run.
type RunStatus struct {
	Issue    time.Time `json:"issue"`
	Mode     string    `json:"mode"`
	Outcome  string    `json:"outcome"`
	Series   int       `json:"series"`
	Error    string    `json:"error,omitempty"`
	Finished time.Time `json:"finished"`
}

const maxStatusHistory = 100

// Pipeline runs issue dates through load, transform and emit.
type Pipeline struct {
	extractor   ForecastExtractor
	transformer Transformer
	loader      SeriesLoader  // nil keeps results in memory only
	notifier    BatchNotifier // optional
	logger      *slog.Logger
	metrics     *observability.Metrics
	ready       atomic.Bool

	mu      sync.Mutex
	history []RunStatus
}

// Option configures optional pipeline stages.
type Option func(*Pipeline)

// WithNotifier announces emitted series after each successful load.
func WithNotifier(n BatchNotifier) Option {
	return func(p *Pipeline) { p.notifier = n }
}

// New creates a Pipeline with the given stages and observability. A nil
// loader disables file output; results are still returned.
func New(e ForecastExtractor, t Transformer, l SeriesLoader, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Pipeline {
	p := &Pipeline{
		extractor:   e,
		transformer: t,
		loader:      l,
		logger:      logger,
		metrics:     metrics,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CheckReadiness returns nil once at least one issue date has completed.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed any issue date yet")
	}
	return nil
}

// Status returns the most recent runs, oldest first.
func (p *Pipeline) Status() []RunStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]RunStatus, len(p.history))
	copy(out, p.history)
	return out
}

// RunBatch runs each issue date in order. A failed date is logged and counted
// and the next date still runs; cancellation stops the batch. The returned
// error joins every failure.
func (p *Pipeline) RunBatch(ctx context.Context, issues []time.Time) ([]Result, error) {
	p.logger.Info("pipeline started", "issue_dates", len(issues))
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	var results []Result
	var errs []error
	for _, issue := range issues {
		if err := ctx.Err(); err != nil {
			p.logger.Info("pipeline stopping", "reason", err)
			errs = append(errs, err)
			break
		}
		res, err := p.Run(ctx, issue)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		results = append(results, res)
	}
	p.logger.Info("pipeline finished", "succeeded", len(results), "failed", len(errs))
	return results, errors.Join(errs...)
}

// Run processes one issue date. Nothing is emitted unless every stage
// succeeds for the date.
func (p *Pipeline) Run(ctx context.Context, issue time.Time) (Result, error) {
	issue = domain.DayOf(issue)
	log := p.logger.With("issue_date", issue.Format(domain.IssueLayout))

	res, err := p.run(ctx, issue, log)
	status := RunStatus{Issue: issue, Mode: res.Mode.String(), Outcome: "success", Series: len(res.Series), Finished: time.Now().UTC()}
	if err != nil {
		status.Mode, status.Outcome, status.Error, status.Series = "", "error", err.Error(), 0
		p.metrics.Runs.WithLabelValues("error").Inc()
		log.Error("issue date failed", "error", err)
		p.record(status)
		return Result{}, fmt.Errorf("issue %s: %w", issue.Format(domain.IssueLayout), err)
	}

	p.metrics.Runs.WithLabelValues("success").Inc()
	p.ready.Store(true)
	p.record(status)
	log.Info("issue date complete", "mode", res.Mode.String(), "series", len(res.Series))
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, issue time.Time, log *slog.Logger) (Result, error) {
	var f *domain.Forecast
	err := p.timed("load", func() error {
		var err error
		f, err = p.extractor.Extract(ctx, issue)
		return err
	})
	if err != nil {
		return Result{}, fmt.Errorf("load forecast: %w", err)
	}

	var res Result
	err = p.timed("transform", func() error {
		var err error
		res, err = p.transformer.Transform(ctx, f)
		return err
	})
	if err != nil {
		return Result{}, fmt.Errorf("transform: %w", err)
	}
	res.Issue = issue
	p.observeReport(res.Report, log)
	p.observeNulls(res.Series)

	if p.loader == nil {
		return res, nil
	}
	err = p.timed("emit", func() error {
		return p.loader.Load(ctx, res.Series)
	})
	if err != nil {
		return Result{}, fmt.Errorf("emit: %w", err)
	}
	p.metrics.SeriesEmitted.Add(float64(len(res.Series)))

	if p.notifier != nil {
		emitted := make([]domain.EmittedSeries, len(res.Series))
		for i, s := range res.Series {
			emitted[i] = domain.NewEmittedSeries(s)
		}
		// files are already in place; a notification failure does not fail the date
		if err := p.notifier.Notify(ctx, emitted); err != nil {
			log.Warn("notify emitted series failed", "error", err)
		}
	}
	return res, nil
}

func (p *Pipeline) timed(stage string, fn func() error) error {
	start := time.Now()
	err := fn()
	p.metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	return err
}

func (p *Pipeline) observeReport(r domain.Report, log *slog.Logger) {
	for kind, n := range r.Gaps() {
		if n == 0 {
			continue
		}
		p.metrics.DataGaps.WithLabelValues(kind).Add(float64(n))
		log.Warn("data gaps left null", "kind", kind, "count", n)
	}
	for _, e := range r.IncompleteDays {
		log.Debug("incomplete day", "error", e)
	}
	for _, e := range r.ZeroMeans {
		log.Debug("zero daily mean", "error", e)
	}
	for _, e := range r.Interpolation {
		log.Debug("interpolation range", "error", e)
	}
	for _, e := range r.Anchors {
		log.Debug("offset anchor missing", "error", e)
	}
}

func (p *Pipeline) observeNulls(series []domain.OutputSeries) {
	counts := make([]int, len(domain.OutputHeader)-1)
	for _, s := range series {
		for _, row := range s.Rows {
			for i, v := range row.Values {
				if !v.Valid {
					counts[i]++
				}
			}
		}
	}
	for i, n := range counts {
		if n > 0 {
			p.metrics.NullCells.WithLabelValues(domain.OutputHeader[i+1]).Add(float64(n))
		}
	}
}

func (p *Pipeline) record(s RunStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.history = append(p.history, s)
	if len(p.history) > maxStatusHistory {
		p.history = p.history[len(p.history)-maxStatusHistory:]
	}
}
