package csvfile

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/couchcryptid/met-downscale/internal/domain"
)

// EncodeForecast writes rows in the forecast input format.
func EncodeForecast(w io.Writer, rows []domain.ForecastRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ForecastHeader); err != nil {
		return err
	}
	for _, r := range rows {
		record := append([]string{r.Time.UTC().Format(time.RFC3339), strconv.Itoa(r.Member)}, formatMet(ForecastHeader[2:], r.Values)...)
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// EncodeObservations writes rows in the observation input format.
func EncodeObservations(w io.Writer, rows []domain.ObservationRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ObservationHeader); err != nil {
		return err
	}
	for _, r := range rows {
		record := append([]string{r.Time.UTC().Format(time.RFC3339)}, formatMet(ObservationHeader[1:], r.Values)...)
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatMet(names []string, m domain.Met) []string {
	out := make([]string, len(names))
	for i, name := range names {
		v, err := domain.ParseVariable(name)
		if err != nil {
			out[i] = missingCell
			continue
		}
		x, ok := m.Get(v)
		if !ok {
			out[i] = missingCell
			continue
		}
		out[i] = strconv.FormatFloat(x, 'g', -1, 64)
	}
	return out
}
