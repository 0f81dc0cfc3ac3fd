// Package sources provides the backends a calendar store reloads from: a local CSV
// file, an object in S3-compatible storage, a sqlite table and a rule-based US
// generator.
package sources

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/aristath/tradecal/internal/modules/calendar"
)

// FileSource loads the dataset from a CSV file on disk
type FileSource struct {
	path string
	log  zerolog.Logger
}

// NewFileSource creates a file source
func NewFileSource(path string, log zerolog.Logger) *FileSource {
	return &FileSource{
		path: path,
		log:  log.With().Str("source", "file").Logger(),
	}
}

// Name implements calendar.Source
func (s *FileSource) Name() string { return "file" }

// Path returns the dataset path
func (s *FileSource) Path() string { return s.path }

// Load implements calendar.Source
func (s *FileSource) Load(ctx context.Context) (*calendar.Registry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("file source: %w", err)
	}
	defer f.Close()

	reg, err := calendar.Load(f)
	if err != nil {
		return nil, fmt.Errorf("file source %s: %w", s.path, err)
	}

	s.log.Debug().
		Str("path", s.path).
		Int("records", reg.Len()).
		Msg("Loaded calendar file")

	return reg.WithSource(s.Name()), nil
}
