package csvfile

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/renameio/v2"

	"github.com/couchcryptid/met-downscale/internal/domain"
)

const missingCell = "NA"

// SeriesWriter writes one driver file per output series.
// It implements pipeline.SeriesLoader.
type SeriesWriter struct {
	dir    string
	logger *slog.Logger
}

// NewSeriesWriter creates a writer into dir, created on first use.
func NewSeriesWriter(dir string, logger *slog.Logger) *SeriesWriter {
	return &SeriesWriter{dir: dir, logger: logger}
}

// Load writes every series. Each file is replaced atomically, so a reader
// never sees a partial table. Files written before a failure stay.
func (w *SeriesWriter) Load(ctx context.Context, series []domain.OutputSeries) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	for _, s := range series {
		if err := ctx.Err(); err != nil {
			return err
		}
		path := filepath.Join(w.dir, s.FileName())
		if err := writeFile(path, s); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		w.logger.Debug("series written", "file", path, "rows", len(s.Rows))
	}
	return nil
}

func writeFile(path string, s domain.OutputSeries) error {
	f, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o644))
	if err != nil {
		return err
	}
	defer func() { _ = f.Cleanup() }()

	if err := EncodeSeries(f, s); err != nil {
		return err
	}
	return f.CloseAtomicallyReplace()
}

// EncodeSeries writes s as CSV. Missing cells are NA.
func EncodeSeries(w io.Writer, s domain.OutputSeries) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(domain.OutputHeader); err != nil {
		return err
	}
	record := make([]string, len(domain.OutputHeader))
	for _, row := range s.Rows {
		record[0] = row.Time.UTC().Format(domain.OutputTimeLayout)
		for i, v := range row.Values {
			if !v.Valid {
				record[i+1] = missingCell
				continue
			}
			record[i+1] = strconv.FormatFloat(v.Float64, 'f', -1, 64)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
