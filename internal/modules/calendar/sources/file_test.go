package sources

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/tradecal/internal/modules/calendar"
	"github.com/aristath/tradecal/internal/modules/market"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "non_trading_days.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestFileSource_Load(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	path := writeFile(t, sampleCSV)

	source := NewFileSource(path, log)
	assert.Equal(t, path, source.Path())

	reg, err := source.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "file", reg.Source())

	status, ok := reg.Lookup(market.HK, ymd(2024, 1, 2))
	require.True(t, ok)
	assert.True(t, status.IsClosed())
}

func TestFileSource_Missing(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	_, err := NewFileSource(filepath.Join(t.TempDir(), "nope.csv"), log).Load(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFileSource_Malformed(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	path := writeFile(t, sampleCSV+"HK,Asia/Hong_Kong,2024-01-02,Close\n")

	_, err := NewFileSource(path, log).Load(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, calendar.ErrDuplicateKey)
	assert.Contains(t, err.Error(), path)
}

func TestFileSource_ReloadThroughStore(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	path := writeFile(t, sampleCSV)
	store := calendar.NewStore(nil, NewFileSource(path, log), log)

	_, err := store.Reload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, store.Current().Len())

	require.NoError(t, os.WriteFile(path, []byte("market,timezone,date,status\n"), 0644))
	_, err = store.Reload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, store.Current().Len())
}
