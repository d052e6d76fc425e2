// Command genmock writes synthetic forecast and observation fixtures. One
// seeded site climate drives both, so `downscale fit` on the output recovers
// the forecast's warm bias.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -out-dir data/forecasts \
//	  -obs-out data/observations.csv \
//	  -from 2024-01-01 -issues 60
package main

import (
	"bytes"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/renameio/v2"

	"github.com/couchcryptid/met-downscale/internal/adapter/csvfile"
	"github.com/couchcryptid/met-downscale/internal/domain"
	"github.com/couchcryptid/met-downscale/internal/synth"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	def := synth.DefaultOptions()
	outDir := flag.String("out-dir", "", "directory for forecast_YYYYMMDD.csv files")
	obsOut := flag.String("obs-out", "", "path for the observation CSV (optional)")
	from := flag.String("from", "2024-01-01", "first issue date (YYYY-MM-DD)")
	issues := flag.Int("issues", 30, "number of consecutive issue dates")
	members := flag.Int("members", def.Members, "forecast members per issue")
	seed := flag.Uint64("seed", def.Seed, "generator seed")
	bias := flag.Float64("warm-bias", def.WarmBias, "forecast temperature bias in kelvin")
	flag.Parse()

	if *outDir == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out-dir")
	}
	start, err := time.Parse(domain.IssueLayout, *from)
	if err != nil {
		return fmt.Errorf("invalid -from %q: %w", *from, err)
	}
	if *issues < 1 || *members < 1 {
		return fmt.Errorf("-issues and -members must be positive")
	}

	opts := def
	opts.Seed, opts.Members, opts.WarmBias = *seed, *members, *bias

	store := csvfile.NewForecastStore(*outDir, domain.FormOptions{})
	for i := range *issues {
		issue := start.AddDate(0, 0, i)
		var buf bytes.Buffer
		if err := csvfile.EncodeForecast(&buf, synth.Forecast(issue, opts)); err != nil {
			return fmt.Errorf("encode forecast %s: %w", issue.Format(domain.IssueLayout), err)
		}
		if err := writeFile(store.Path(issue), buf.Bytes()); err != nil {
			return err
		}
	}
	fmt.Printf("wrote %d forecast files (%d members) to %s\n", *issues, *members, *outDir)

	if *obsOut != "" {
		days := *issues + opts.Days - 1
		var buf bytes.Buffer
		if err := csvfile.EncodeObservations(&buf, synth.Observations(start, days, opts)); err != nil {
			return fmt.Errorf("encode observations: %w", err)
		}
		if err := writeFile(*obsOut, buf.Bytes()); err != nil {
			return err
		}
		fmt.Printf("wrote %d days of hourly observations to %s\n", days, *obsOut)
	}
	return nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
