package calendar

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/tradecal/internal/modules/market"
)

type stubSource struct {
	mu    sync.Mutex
	data  string
	err   error
	loads int
}

func (s *stubSource) Name() string { return "stub" }

func (s *stubSource) Load(ctx context.Context) (*Registry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	if s.err != nil {
		return nil, s.err
	}
	reg, err := Load(strings.NewReader(s.data))
	if err != nil {
		return nil, err
	}
	return reg.WithSource(s.Name()), nil
}

func (s *stubSource) set(data string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = data
	s.err = err
}

func TestStore_ReloadPublishes(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	source := &stubSource{data: sampleDataset}

	store := NewStore(nil, source, log)
	assert.Equal(t, 0, store.Current().Len())
	assert.Equal(t, "stub", store.SourceName())

	e := NewEvaluator(store)
	at := time.Date(2024, 1, 2, 4, 0, 0, 0, time.UTC)
	assert.True(t, e.IsTradeDay(market.HK, at))

	reg, err := store.Reload(context.Background())
	require.NoError(t, err)
	assert.Same(t, reg, store.Current())
	assert.Equal(t, "stub", reg.Source())
	assert.False(t, e.IsTradeDay(market.HK, at))
}

func TestStore_FailedReloadKeepsSnapshot(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	source := &stubSource{data: sampleDataset}
	store := NewStore(nil, source, log)

	first, err := store.Reload(context.Background())
	require.NoError(t, err)

	boom := errors.New("bucket unavailable")
	source.set("", boom)
	reg, err := store.Reload(context.Background())
	require.Error(t, err)
	assert.Nil(t, reg)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "stub")
	assert.Same(t, first, store.Current())

	source.set(sampleDataset+"HK,Asia/Hong_Kong,2024-01-02,Close\n", nil)
	_, err = store.Reload(context.Background())
	assert.ErrorIs(t, err, ErrDuplicateKey)
	assert.Same(t, first, store.Current())
}

func TestStore_NoSource(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	reg, err := Load(strings.NewReader(sampleDataset))
	require.NoError(t, err)

	store := NewStore(reg, nil, log)
	assert.Same(t, reg, store.Current())
	assert.Empty(t, store.SourceName())

	_, err = store.Reload(context.Background())
	assert.ErrorIs(t, err, ErrNoSource)
}

func TestStore_Swap(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	a, err := Load(strings.NewReader(sampleDataset))
	require.NoError(t, err)
	b, err := Load(strings.NewReader(""))
	require.NoError(t, err)

	store := NewStore(a, nil, log)
	assert.Same(t, a, store.Swap(b))
	assert.Same(t, b, store.Current())

	assert.Same(t, b, store.Swap(nil))
	assert.NotNil(t, store.Current())
	assert.Equal(t, 0, store.Current().Len())
}

func TestStore_ConcurrentReadersDuringReload(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	source := &stubSource{data: sampleDataset}
	store := NewStore(nil, source, log)
	e := NewEvaluator(store)
	at := time.Date(2024, 1, 3, 6, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				v := e.Classify(market.SG, at)
				assert.Contains(t, []DayKind{FullTradingDay, HalfTradingDay}, v.Kind)
			}
		}()
	}
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Reload(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 4, source.loads)
	assert.Equal(t, HalfTradingDay, e.Classify(market.SG, at).Kind)
}

type nilSource struct{}

func (nilSource) Name() string { return "nil" }

func (nilSource) Load(ctx context.Context) (*Registry, error) { return nil, nil }

func TestStore_NilRegistryFromSource(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	store := NewStore(nil, nilSource{}, log)

	reg, err := store.Reload(context.Background())
	require.NoError(t, err)
	require.NotNil(t, reg)
	assert.Same(t, reg, store.Current())
	assert.Equal(t, 0, reg.Len())
	assert.Equal(t, "nil", reg.Source())
}
