// Package coefficients persists fitted bias coefficients as JSON.
package coefficients

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/renameio/v2"

	"github.com/couchcryptid/met-downscale/internal/domain"
)

// document is the on-disk layout.
type document struct {
	BinWidth     int                       `json:"bin_width"`
	FittedAt     time.Time                 `json:"fitted_at"`
	Coefficients []domain.CoefficientEntry `json:"coefficients"`
}

// Store reads and writes one coefficient file.
type Store struct {
	path string
}

// NewStore creates a store at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path is the coefficient file location.
func (s *Store) Path() string { return s.path }

// Save replaces the file atomically.
func (s *Store) Save(set *domain.CoefficientSet, fittedAt time.Time) error {
	data, err := json.MarshalIndent(document{
		BinWidth:     set.BinWidth(),
		FittedAt:     fittedAt.UTC(),
		Coefficients: set.Entries(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode coefficients: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create coefficient dir: %w", err)
	}
	if err := renameio.WriteFile(s.path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write coefficients %s: %w", s.path, err)
	}
	return nil
}

// Load reads the file. A missing file is a *domain.MissingInputError.
func (s *Store) Load() (*domain.CoefficientSet, error) {
	//nolint:gosec // G304: path comes from configuration.
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &domain.MissingInputError{Path: s.path}
	}
	if err != nil {
		return nil, fmt.Errorf("read coefficients %s: %w", s.path, err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode coefficients %s: %w", s.path, err)
	}
	set, err := domain.NewCoefficientSet(doc.BinWidth, doc.Coefficients)
	if err != nil {
		return nil, fmt.Errorf("coefficients %s: %w", s.path, err)
	}
	return set, nil
}
