package calendar

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Source produces complete registries from some backing dataset.
type Source interface {
	Name() string
	Load(ctx context.Context) (*Registry, error)
}

// ErrNoSource is returned by Reload on a store built without a source
var ErrNoSource = errors.New("store has no source")

// Store publishes the current registry snapshot. Readers never block; a reload builds
// the next registry off to the side and swaps it in only when it loaded cleanly.
type Store struct {
	current atomic.Pointer[Registry]
	source  Source
	mu      sync.Mutex // serialises reloads
	log     zerolog.Logger
}

// NewStore creates a store holding initial. source may be nil for a fixed registry.
func NewStore(initial *Registry, source Source, log zerolog.Logger) *Store {
	s := &Store{
		source: source,
		log:    log.With().Str("component", "calendar_store").Logger(),
	}
	if initial == nil {
		initial = newRegistry(map[Key]Record{})
	}
	s.current.Store(initial)
	return s
}

// Current returns the published snapshot.
func (s *Store) Current() *Registry {
	return s.current.Load()
}

// Swap publishes reg and returns the snapshot it replaced.
func (s *Store) Swap(reg *Registry) *Registry {
	if reg == nil {
		reg = newRegistry(map[Key]Record{})
	}
	return s.current.Swap(reg)
}

// SourceName returns the configured source name, or empty.
func (s *Store) SourceName() string {
	if s.source == nil {
		return ""
	}
	return s.source.Name()
}

// Reload loads a fresh registry from the source and publishes it. On failure the
// previous snapshot stays in place and the error is returned.
func (s *Store) Reload(ctx context.Context) (*Registry, error) {
	if s.source == nil {
		return nil, ErrNoSource
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	reg, err := s.source.Load(ctx)
	if err != nil {
		s.log.Error().
			Err(err).
			Str("source", s.source.Name()).
			Msg("Calendar reload failed, keeping previous snapshot")
		return nil, fmt.Errorf("reload from %s: %w", s.source.Name(), err)
	}
	if reg == nil {
		reg = newRegistry(map[Key]Record{}).WithSource(s.source.Name())
	}

	prev := s.current.Swap(reg)
	s.log.Info().
		Str("source", s.source.Name()).
		Str("snapshot", reg.ID().String()).
		Str("previous", prev.ID().String()).
		Int("records", reg.Len()).
		Dur("duration", time.Since(start)).
		Msg("Calendar reloaded")

	return reg, nil
}
