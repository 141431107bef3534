package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	domain "github.com/awssidogiri-web/AWS-Sidogiri/internal/domain/waterlevel"
)

// TestFileRepository_NotFound verifies Load returns ErrNotFound for a missing file.
func TestFileRepository_NotFound(t *testing.T) {
	t.Parallel()
	repo := NewFileRepository(filepath.Join(t.TempDir(), "missing.json"))
	s, err := repo.Load(context.Background())
	require.ErrorIs(t, err, ErrNotFound)
	require.Nil(t, s)
}

// TestFileRepository_SaveLoad_Roundtrip ensures Save followed by Load returns equal state.
func TestFileRepository_SaveLoad_Roundtrip(t *testing.T) {
	t.Parallel()
	file := filepath.Join(t.TempDir(), "state.json")
	repo := NewFileRepository(file)

	ts := time.Now().UTC().Truncate(time.Second)
	want := &domain.SystemState{
		CurrentWaterLevel: 61.5,
		TriggerLevel:      50,
		AlarmActive:       true,
		ManualOverride:    false,
		LastReadingAt:     ts,
		AlarmStartedAt:    ts.Add(-time.Minute),
		ConnectionCount:   12,
	}

	require.NoError(t, repo.Save(context.Background(), want))

	got, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, want, got)

	_, err = os.Stat(file)
	require.NoError(t, err)
}

// TestFileRepository_VolatileFieldsExcluded ensures LogStoreReady never survives a roundtrip.
func TestFileRepository_VolatileFieldsExcluded(t *testing.T) {
	t.Parallel()
	repo := NewFileRepository(filepath.Join(t.TempDir(), "state.json"))

	state := &domain.SystemState{
		TriggerLevel:  80,
		LogStoreReady: true,
	}

	require.NoError(t, repo.Save(context.Background(), state))

	got, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.False(t, got.LogStoreReady)
}
