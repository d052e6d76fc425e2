package pipeline_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/met-downscale/internal/domain"
	"github.com/couchcryptid/met-downscale/internal/observability"
	"github.com/couchcryptid/met-downscale/internal/pipeline"
)

// --- mocks ---

type mockExtractor struct {
	missing map[time.Time]bool
	calls   []time.Time
}

func (m *mockExtractor) Extract(_ context.Context, issue time.Time) (*domain.Forecast, error) {
	m.calls = append(m.calls, issue)
	if m.missing[issue] {
		return nil, &domain.MissingInputError{Path: "forecast.csv", Issue: issue}
	}
	return &domain.Forecast{Issue: issue}, nil
}

type mockTransformer struct {
	err    error
	report domain.Report
}

func (m *mockTransformer) Transform(_ context.Context, f *domain.Forecast) (pipeline.Result, error) {
	if m.err != nil {
		return pipeline.Result{}, m.err
	}
	row := domain.OutputRow{Time: f.Issue}
	row.Values[domain.ColAirTemp] = domain.Valid(15)
	return pipeline.Result{
		Mode: domain.ModeDebias,
		Series: []domain.OutputSeries{
			{Issue: f.Issue, Key: domain.SeriesKey{Member: 1}, Rows: []domain.OutputRow{row}},
			{Issue: f.Issue, Key: domain.SeriesKey{Member: 2}, Rows: []domain.OutputRow{row}},
		},
		Report: m.report,
	}, nil
}

type mockLoader struct {
	err    error
	loaded []domain.OutputSeries
}

func (m *mockLoader) Load(_ context.Context, series []domain.OutputSeries) error {
	if m.err != nil {
		return m.err
	}
	m.loaded = append(m.loaded, series...)
	return nil
}

type mockNotifier struct {
	err      error
	notified []domain.EmittedSeries
}

func (m *mockNotifier) Notify(_ context.Context, emitted []domain.EmittedSeries) error {
	m.notified = append(m.notified, emitted...)
	return m.err
}

func newTestMetrics() *observability.Metrics {
	// Use a fresh registry to avoid "already registered" panics in tests.
	return observability.NewMetricsForTesting()
}

var (
	day1 = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	day2 = time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC)
	day3 = time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
)

// --- tests ---

func TestRun_EmitsAfterAllStages(t *testing.T) {
	loader := &mockLoader{}
	notifier := &mockNotifier{}
	metrics := newTestMetrics()
	p := pipeline.New(&mockExtractor{}, &mockTransformer{}, loader, slog.Default(), metrics, pipeline.WithNotifier(notifier))

	res, err := p.Run(context.Background(), day1.Add(13*time.Hour))
	require.NoError(t, err)

	assert.Equal(t, day1, res.Issue, "issue is truncated to the UTC day")
	assert.Equal(t, domain.ModeDebias, res.Mode)
	assert.Len(t, res.Series, 2)
	assert.Len(t, loader.loaded, 2)
	require.Len(t, notifier.notified, 2)
	assert.Equal(t, "met_20240601_m02_n00.csv", notifier.notified[1].File)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Runs.WithLabelValues("success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.SeriesEmitted))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.NullCells.WithLabelValues("Rain")))
	assert.Zero(t, testutil.ToFloat64(metrics.NullCells.WithLabelValues("AirTemp")))
}

func TestRun_TransformErrorEmitsNothing(t *testing.T) {
	loader := &mockLoader{}
	metrics := newTestMetrics()
	p := pipeline.New(&mockExtractor{}, &mockTransformer{err: errors.New("no member could be downscaled")}, loader, slog.Default(), metrics)

	_, err := p.Run(context.Background(), day1)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "issue 2024-06-01")
	assert.Empty(t, loader.loaded)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Runs.WithLabelValues("error")))

	status := p.Status()
	require.Len(t, status, 1)
	assert.Equal(t, "error", status[0].Outcome)
	assert.Zero(t, status[0].Series)
	assert.Contains(t, status[0].Error, "no member could be downscaled")
}

func TestRun_LoadErrorFailsDate(t *testing.T) {
	notifier := &mockNotifier{}
	p := pipeline.New(&mockExtractor{}, &mockTransformer{}, &mockLoader{err: errors.New("disk full")}, slog.Default(), newTestMetrics(), pipeline.WithNotifier(notifier))

	_, err := p.Run(context.Background(), day1)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "emit: disk full")
	assert.Empty(t, notifier.notified)
	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestRun_NotifyFailureKeepsDate(t *testing.T) {
	p := pipeline.New(&mockExtractor{}, &mockTransformer{}, &mockLoader{}, slog.Default(), newTestMetrics(),
		pipeline.WithNotifier(&mockNotifier{err: errors.New("broker down")}))

	res, err := p.Run(context.Background(), day1)

	require.NoError(t, err)
	assert.Len(t, res.Series, 2)
}

func TestRun_NilLoaderReturnsResult(t *testing.T) {
	metrics := newTestMetrics()
	p := pipeline.New(&mockExtractor{}, &mockTransformer{}, nil, slog.Default(), metrics)

	res, err := p.Run(context.Background(), day1)

	require.NoError(t, err)
	assert.Len(t, res.Series, 2)
	assert.Zero(t, testutil.ToFloat64(metrics.SeriesEmitted))
}

func TestRun_CountsDataGaps(t *testing.T) {
	metrics := newTestMetrics()
	report := domain.Report{
		IncompleteDays: []*domain.IncompleteDayError{{Member: 3, Day: day1, Variable: domain.AirTemp, Have: 3, Want: 4}},
		Anchors:        []*domain.AnchorMissingError{{Key: domain.SeriesKey{Member: 1}, Variable: domain.RelHum}},
	}
	p := pipeline.New(&mockExtractor{}, &mockTransformer{report: report}, nil, slog.Default(), metrics)

	_, err := p.Run(context.Background(), day1)

	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.DataGaps.WithLabelValues("incomplete_day")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.DataGaps.WithLabelValues("anchor_missing")))
	assert.Zero(t, testutil.ToFloat64(metrics.DataGaps.WithLabelValues("zero_mean")))
}

func TestRunBatch_ContinuesPastFailedDate(t *testing.T) {
	ext := &mockExtractor{missing: map[time.Time]bool{day2: true}}
	loader := &mockLoader{}
	p := pipeline.New(ext, &mockTransformer{}, loader, slog.Default(), newTestMetrics())

	results, err := p.RunBatch(context.Background(), []time.Time{day1, day2, day3})

	require.Error(t, err)
	var missing *domain.MissingInputError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, day2, missing.Issue)

	require.Len(t, results, 2)
	assert.Equal(t, day1, results[0].Issue)
	assert.Equal(t, day3, results[1].Issue)
	assert.Len(t, loader.loaded, 4)

	status := p.Status()
	require.Len(t, status, 3)
	assert.Equal(t, []string{"success", "error", "success"}, []string{status[0].Outcome, status[1].Outcome, status[2].Outcome})
}

func TestRunBatch_StopsOnCancel(t *testing.T) {
	ext := &mockExtractor{}
	p := pipeline.New(ext, &mockTransformer{}, &mockLoader{}, slog.Default(), newTestMetrics())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := p.RunBatch(ctx, []time.Time{day1, day2})

	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, results)
	assert.Empty(t, ext.calls)
}

func TestRunBatch_PipelineRunningGauge(t *testing.T) {
	metrics := newTestMetrics()
	p := pipeline.New(&mockExtractor{}, &mockTransformer{}, nil, slog.Default(), metrics)

	_, err := p.RunBatch(context.Background(), []time.Time{day1})

	require.NoError(t, err)
	assert.Zero(t, testutil.ToFloat64(metrics.PipelineRunning))
}

func TestCheckReadiness(t *testing.T) {
	p := pipeline.New(&mockExtractor{}, &mockTransformer{}, nil, slog.Default(), newTestMetrics())
	require.Error(t, p.CheckReadiness(context.Background()))

	_, err := p.Run(context.Background(), day1)
	require.NoError(t, err)
	assert.NoError(t, p.CheckReadiness(context.Background()))
}
