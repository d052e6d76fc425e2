// Package csvfile reads forecast and observation CSVs and writes driver files.
package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/met-downscale/internal/domain"
)

// ForecastHeader is the required forecast file header.
var ForecastHeader = []string{"time", "member", "shortwave", "longwave", "air_temperature", "relative_humidity", "wind_speed", "precipitation_flux"}

// ObservationHeader is the required site observation file header.
var ObservationHeader = []string{"time", "air_temperature", "relative_humidity", "wind_speed", "shortwave", "longwave", "precipitation_flux"}

const issueFileLayout = "20060102"

var timeLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02 15:04"}

// ForecastStore reads forecast_<YYYYMMDD>.csv files from a directory.
// It implements pipeline.ForecastExtractor.
type ForecastStore struct {
	dir  string
	opts domain.FormOptions
}

// NewForecastStore creates a store over dir. opts are applied to every file.
func NewForecastStore(dir string, opts domain.FormOptions) *ForecastStore {
	return &ForecastStore{dir: dir, opts: opts}
}

// Path is the file that holds the forecast issued on issue.
func (s *ForecastStore) Path(issue time.Time) string {
	return filepath.Join(s.dir, "forecast_"+issue.UTC().Format(issueFileLayout)+".csv")
}

// Extract loads and validates one issue date. A missing file is a
// *domain.MissingInputError.
func (s *ForecastStore) Extract(ctx context.Context, issue time.Time) (*domain.Forecast, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := s.Path(issue)
	//nolint:gosec // G304: path built from configured dir and a parsed date.
	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &domain.MissingInputError{Path: path, Issue: issue}
	}
	if err != nil {
		return nil, fmt.Errorf("open forecast %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	f, err := ReadForecast(file, issue, s.opts)
	if err != nil {
		return nil, fmt.Errorf("read forecast %s: %w", path, err)
	}
	return f, nil
}

// Issues lists the issue dates present in the directory, oldest first.
func (s *ForecastStore) Issues() ([]time.Time, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, "forecast_*.csv"))
	if err != nil {
		return nil, fmt.Errorf("list forecasts: %w", err)
	}
	var issues []time.Time
	for _, m := range matches {
		stem := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(m), "forecast_"), ".csv")
		issue, err := time.Parse(issueFileLayout, stem)
		if err != nil {
			continue
		}
		issues = append(issues, issue)
	}
	sort.Slice(issues, func(i, j int) bool { return issues[i].Before(issues[j]) })
	return issues, nil
}

// ReadForecast parses a forecast CSV into a validated grid.
func ReadForecast(r io.Reader, issue time.Time, opts domain.FormOptions) (*domain.Forecast, error) {
	reader, err := newReader(r, ForecastHeader)
	if err != nil {
		return nil, err
	}

	var rows []domain.ForecastRow
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read record: %w", err)
		}

		ts, err := parseTime(record[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		member, err := strconv.Atoi(strings.TrimSpace(record[1]))
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid member %q", line, record[1])
		}
		values, err := parseMet(ForecastHeader[2:], record[2:])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rows = append(rows, domain.ForecastRow{Member: member, Time: ts, Values: values})
	}

	return domain.NewForecast(issue, rows, opts)
}

// LoadObservations reads the site observation file at path.
func LoadObservations(path string) (*domain.Observations, error) {
	//nolint:gosec // G304: path comes from configuration.
	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &domain.MissingInputError{Path: path}
	}
	if err != nil {
		return nil, fmt.Errorf("open observations %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	obs, err := ReadObservations(file)
	if err != nil {
		return nil, fmt.Errorf("read observations %s: %w", path, err)
	}
	return obs, nil
}

// ReadObservations parses an observation CSV.
func ReadObservations(r io.Reader) (*domain.Observations, error) {
	reader, err := newReader(r, ObservationHeader)
	if err != nil {
		return nil, err
	}

	var rows []domain.ObservationRow
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read record: %w", err)
		}
		ts, err := parseTime(record[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		values, err := parseMet(ObservationHeader[1:], record[1:])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rows = append(rows, domain.ObservationRow{Time: ts, Values: values})
	}
	return domain.NewObservations(rows)
}

// newReader validates the header row and fixes the field count.
func newReader(r io.Reader, expected []string) (*csv.Reader, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = len(expected)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i, h := range header {
		if strings.TrimSpace(h) != expected[i] {
			return nil, fmt.Errorf("invalid header: expected column %d to be %s, got %s", i, expected[i], h)
		}
	}
	return reader, nil
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q", s)
}

// parseMet reads one cell per named column. Empty and NA cells are missing.
func parseMet(names, cells []string) (domain.Met, error) {
	var m domain.Met
	for i, name := range names {
		v, err := domain.ParseVariable(name)
		if err != nil {
			return m, err
		}
		cell := strings.TrimSpace(cells[i])
		if cell == "" || cell == missingCell {
			continue
		}
		x, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return m, fmt.Errorf("invalid %s %q", name, cell)
		}
		m[v] = domain.Valid(x)
	}
	return m, nil
}

// DecodeSeries parses a driver file written by EncodeSeries.
func DecodeSeries(r io.Reader) ([]domain.OutputRow, error) {
	reader, err := newReader(r, domain.OutputHeader)
	if err != nil {
		return nil, err
	}
	var rows []domain.OutputRow
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read record: %w", err)
		}
		ts, err := time.Parse(domain.OutputTimeLayout, record[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid time %q", line, record[0])
		}
		row := domain.OutputRow{Time: ts}
		for i, cell := range record[1:] {
			if cell == missingCell {
				continue
			}
			x, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid %s %q", line, domain.OutputHeader[i+1], cell)
			}
			row.Values[i] = domain.Valid(x)
		}
		rows = append(rows, row)
	}
	return rows, nil
}
