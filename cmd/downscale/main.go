// Command downscale turns ensemble weather forecasts into hourly site
// meteorology, optionally debiased against site observations.
//
// Usage:
//
//	downscale fit --history-dir ./data/history
//	downscale run --date 2024-06-01
//	downscale run --from 2024-06-01 --to 2024-06-07
package main

import (
	"log/slog"
	"os"

	"github.com/couchcryptid/met-downscale/internal/observability"
)

func main() {
	if err := newRootCmd(observability.NewMetrics()).Execute(); err != nil {
		slog.Error("downscale failed", "error", err)
		os.Exit(1)
	}
}
