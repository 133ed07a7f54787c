package scheduler

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archetype-labs/archlint/internal/testutil"
)

func TestWatcherTracksEdits(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.js"), []byte("old"), 0o644))

	w, err := NewWatcher(root, testutil.NewTestLogger(t))
	require.NoError(t, err)
	defer w.Close()

	assert.Empty(t, w.Recent())
	assert.True(t, w.LastEdit().IsZero())

	before := time.Now()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.js"), []byte("new"), 0o644))

	assert.Eventually(t, func() bool {
		return w.Recent()["a.js"]
	}, 3*time.Second, 10*time.Millisecond)
	assert.False(t, w.LastEdit().Before(before))
}

func TestWatcherTracksNewSubdirectories(t *testing.T) {
	root := t.TempDir()

	w, err := NewWatcher(root, testutil.NewTestLogger(t))
	require.NoError(t, err)
	defer w.Close()

	sub := filepath.Join(root, "src")
	require.NoError(t, os.Mkdir(sub, 0o755))

	// The create event for the directory registers it; give the loop a
	// moment before writing into it.
	assert.Eventually(t, func() bool {
		if err := os.WriteFile(filepath.Join(sub, "b.js"), []byte("x"), 0o644); err != nil {
			return false
		}
		return w.Recent()["src/b.js"]
	}, 3*time.Second, 50*time.Millisecond)
}

func TestWatcherIgnoresDotPaths(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".archlint"), 0o755))

	w, err := NewWatcher(root, testutil.NewTestLogger(t))
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(filepath.Join(root, ".hidden"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".archlint", "state.db"), []byte("x"), 0o644))

	time.Sleep(200 * time.Millisecond)
	assert.Empty(t, w.Recent())
}
