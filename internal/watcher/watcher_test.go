package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solestoreapp/solestore-client/internal/cache"
	"github.com/solestoreapp/solestore-client/internal/logger"
)

// recordingLoader counts LoadFavorites calls by force flag.
type recordingLoader struct {
	mu     sync.Mutex
	loads  int
	forced int
}

func (l *recordingLoader) LoadFavorites(_ context.Context, _ int64, force bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.loads++
	if force {
		l.forced++
	}
}

func (l *recordingLoader) counts() (loads, forced int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loads, l.forced
}

func startWatcher(t *testing.T, userID int64) (*CacheWatcher, *cache.Cache, *recordingLoader) {
	t.Helper()

	c, err := cache.Open(t.TempDir(), logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	loader := &recordingLoader{}
	w, err := New(loader, c, userID, logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Stop() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, w.Start(ctx))

	return w, c, loader
}

// waitForForced polls until at least n forced reloads happened or the deadline
// passes.
func waitForForced(t *testing.T, loader *recordingLoader, n int) bool {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, forced := loader.counts(); forced >= n {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func writeMarker(t *testing.T, dir, key, writerID string) {
	t.Helper()
	content := fmt.Sprintf("%s %d\n", writerID, time.Now().UnixMilli())
	require.NoError(t, os.WriteFile(filepath.Join(dir, key), []byte(content), 0o640))
}

func TestStart_PerformsInitialLoad(t *testing.T) {
	_, _, loader := startWatcher(t, 7)

	loads, forced := loader.counts()
	assert.Equal(t, 1, loads)
	assert.Zero(t, forced, "initial load is not forced")
}

func TestForeignWrite_TriggersForcedReload(t *testing.T) {
	_, c, loader := startWatcher(t, 7)

	writeMarker(t, c.MarkerDir(), cache.FavoritesKey(7), "another-process")

	assert.True(t, waitForForced(t, loader, 1), "foreign marker write must force a reload")
}

func TestSelfWrite_IsIgnored(t *testing.T) {
	_, c, loader := startWatcher(t, 7)

	// A marker carrying our own writer id is what c.Put would leave behind.
	writeMarker(t, c.MarkerDir(), cache.FavoritesKey(7), c.WriterID())

	assert.False(t, waitForForced(t, loader, 1), "self-writes must not reload")
}

func TestOtherUsersKey_IsIgnored(t *testing.T) {
	_, c, loader := startWatcher(t, 7)

	writeMarker(t, c.MarkerDir(), cache.FavoritesKey(99), "another-process")
	writeMarker(t, c.MarkerDir(), cache.CartKey(7), "another-process")

	assert.False(t, waitForForced(t, loader, 1), "only this user's favorites key matters")
}

func TestForeignBurst_CoalescesIntoOneReload(t *testing.T) {
	_, c, loader := startWatcher(t, 7)

	for range 5 {
		writeMarker(t, c.MarkerDir(), cache.FavoritesKey(7), "another-process")
	}

	require.True(t, waitForForced(t, loader, 1))
	// Allow any stragglers to land before asserting the count.
	time.Sleep(300 * time.Millisecond)
	_, forced := loader.counts()
	assert.Equal(t, 1, forced, "marker churn within one window coalesces")
}

func TestAnonymousUser_DoesNothing(t *testing.T) {
	_, _, loader := startWatcher(t, 0)

	loads, _ := loader.counts()
	assert.Zero(t, loads)
}

func TestStop_Idempotent(t *testing.T) {
	w, _, _ := startWatcher(t, 7)
	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())
}
