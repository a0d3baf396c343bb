// Package bundle persists the trained model artifact: the forest, the
// frozen encoder, the feature order, the derived findings, and the
// evaluation metrics, serialized together so inference can never pair a
// forest with the wrong encoder.
package bundle

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/campus-safety/kestrel/internal/domain"
	"github.com/campus-safety/kestrel/internal/encoder"
	"github.com/campus-safety/kestrel/internal/model"
)

// Bundle is the unit of deployment from training to inference.
type Bundle struct {
	Forest       *model.Forest
	Encoder      *encoder.Encoder
	FeatureOrder []string
	Findings     []domain.Finding
	Metrics      *domain.EvaluationMetrics
	TrainedAt    time.Time
	Version      string
}

// Store reads and writes bundles at a fixed filesystem path.
type Store struct {
	path string
}

// NewStore creates a store for the given path. The parent directory must
// exist; Save will not create it.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the bundle location.
func (s *Store) Path() string {
	return s.path
}

// Save writes the bundle atomically: serialize into a temp file in the
// target directory, fsync, then rename over the destination. A reader
// never observes a half-written bundle.
func (s *Store) Save(b *Bundle) error {
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp bundle file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := gob.NewEncoder(tmp).Encode(b); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode bundle: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync bundle: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close bundle file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace bundle: %w", err)
	}
	return nil
}

// Load reads the bundle from disk. A missing file reports
// domain.ErrBundleMissing so callers can distinguish "not trained yet"
// from corruption.
func (s *Store) Load() (*Bundle, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrBundleMissing, s.path)
		}
		return nil, fmt.Errorf("failed to open bundle: %w", err)
	}
	defer f.Close()

	var b Bundle
	if err := gob.NewDecoder(f).Decode(&b); err != nil {
		return nil, fmt.Errorf("failed to decode bundle: %w", err)
	}
	return &b, nil
}
