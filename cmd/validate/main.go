// Command validate checks emitted series files against the output
// invariants: header and row shape, an hourly time axis of the expected
// length, physical bounds, and snow alongside rain.
//
// Usage:
//
//	go run ./cmd/validate -dir data/out -rows 48
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/couchcryptid/met-downscale/internal/adapter/csvfile"
	"github.com/couchcryptid/met-downscale/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

type seriesFile struct {
	name string
	rows []domain.OutputRow
}

func main() {
	dir := flag.String("dir", "", "directory containing met_*.csv output files")
	rows := flag.Int("rows", 48, "expected rows per file")
	flag.Parse()

	if *dir == "" {
		flag.Usage()
		os.Exit(1)
	}
	os.Exit(run(*dir, *rows))
}

func run(dir string, wantRows int) int {
	fmt.Println("=== Downscaled Series Validation ===")
	fmt.Println()

	files, err := loadSeries(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}
	if len(files) == 0 {
		fmt.Fprintf(os.Stderr, "FATAL: no met_*.csv files in %s\n", dir)
		return 1
	}

	phases := []*phase{
		validateShape(files, wantRows),
		validateBounds(files),
		validateSnow(files),
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Files: %d, rows: %d, null cells: %d\n", len(files), countRows(files), countNulls(files))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			if i >= 20 {
				fmt.Printf("  ... and %d more\n", len(p.errors)-20)
				break
			}
			fmt.Printf("  %s\n", e)
		}
	}

	if !allPassed {
		return 1
	}
	return 0
}

func loadSeries(dir string) ([]seriesFile, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "met_*.csv"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	out := make([]seriesFile, 0, len(paths))
	for _, path := range paths {
		rows, err := loadFile(path)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
		out = append(out, seriesFile{name: filepath.Base(path), rows: rows})
	}
	return out, nil
}

func loadFile(path string) ([]domain.OutputRow, error) {
	//nolint:gosec // G304: path comes from a glob over the CLI-provided directory.
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return csvfile.DecodeSeries(f)
}

func countRows(files []seriesFile) int {
	n := 0
	for _, f := range files {
		n += len(f.rows)
	}
	return n
}

func countNulls(files []seriesFile) int {
	n := 0
	for _, f := range files {
		n += domain.OutputSeries{Rows: f.rows}.NullCells()
	}
	return n
}

func validateShape(files []seriesFile, wantRows int) *phase {
	p := &phase{name: "Row count and hourly axis"}
	for _, f := range files {
		if !strings.HasPrefix(f.name, "met_") || len(f.name) != len("met_20060102_m01_n01.csv") {
			p.errorf("%s: unexpected file name", f.name)
		}
		if len(f.rows) != wantRows {
			p.errorf("%s: %d rows, want %d", f.name, len(f.rows), wantRows)
		}
		for i := 1; i < len(f.rows); i++ {
			if step := f.rows[i].Time.Sub(f.rows[i-1].Time); step != time.Hour {
				p.errorf("%s row %d: step %s, want 1h", f.name, i+1, step)
				break
			}
		}
	}
	return p
}

func validateBounds(files []seriesFile) *phase {
	p := &phase{name: "Physical bounds"}
	for _, f := range files {
		for i, r := range f.rows {
			if v := r.Get(domain.ColRelHum); v.Valid && (v.Float64 < 0 || v.Float64 > 100) {
				p.errorf("%s row %d: RelHum %g outside [0, 100]", f.name, i+1, v.Float64)
			}
			for _, c := range []domain.Column{domain.ColShortWave, domain.ColLongWave, domain.ColRain, domain.ColWindSpeed} {
				if v := r.Get(c); v.Valid && v.Float64 < 0 {
					p.errorf("%s row %d: %s %g is negative", f.name, i+1, domain.OutputHeader[c+1], v.Float64)
				}
			}
		}
	}
	return p
}

func validateSnow(files []seriesFile) *phase {
	p := &phase{name: "Snow is zero alongside rain"}
	for _, f := range files {
		for i, r := range f.rows {
			if r.Get(domain.ColRain).Valid && r.Get(domain.ColSnow) != domain.Valid(0) {
				p.errorf("%s row %d: Snow %v with valid Rain", f.name, i+1, r.Get(domain.ColSnow))
			}
		}
	}
	return p
}
