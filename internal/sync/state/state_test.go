package state

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewState(t *testing.T) {
	t.Parallel()

	s := NewState()
	assert.Equal(t, CurrentVersion, s.Version)
	assert.Nil(t, s.LastRun)
	assert.True(t, s.LastSyncTime().IsZero())
}

func TestLoadState_NewFile(t *testing.T) {
	t.Parallel()

	s, err := LoadState(filepath.Join(t.TempDir(), "nonexistent.json"))
	require.NoError(t, err)
	assert.Equal(t, CurrentVersion, s.Version)
}

func TestSaveAndLoad(t *testing.T) {
	t.Parallel()

	path := Path(t.TempDir())
	started := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	s := NewState()
	s.RecordRun(Run{ID: "run-1", Started: started.Unix(), Scanned: 3, Added: 2, Skipped: 1, Duration: "15ms"})
	s.RecordRun(Run{ID: "run-2", Started: started.Add(time.Hour).Unix(), Scanned: 3, Skipped: 3, Duration: "2ms"})
	require.NoError(t, s.Save(path))

	loaded, err := LoadState(path)
	require.NoError(t, err)
	require.NotNil(t, loaded.LastRun)
	assert.Equal(t, "run-2", loaded.LastRun.ID)
	assert.Equal(t, 2, loaded.Total)
	assert.True(t, started.Add(time.Hour).Equal(loaded.LastSyncTime()))

	// no temp files left behind
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLoadState_InvalidJSON(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte("{invalid"), 0o644))

	_, err := LoadState(path)
	assert.Error(t, err)
}

func TestLoadState_UnsupportedVersion(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte(`{"version":"9.0"}`), 0o644))

	_, err := LoadState(path)
	assert.ErrorContains(t, err, "unsupported state version")
}
