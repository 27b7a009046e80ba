// Package watcher implements cross-process reconciliation for favorites: it
// observes the durable cache's marker directory and forces a reload of
// authoritative state whenever another client process rewrites this user's
// favorites snapshot. The cart deliberately has no such listener; it relies
// on its freshness-window check instead.
package watcher

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/solestoreapp/solestore-client/internal/cache"
	"github.com/solestoreapp/solestore-client/internal/debounce"
	"github.com/solestoreapp/solestore-client/internal/logger"
)

// reloadQuiescence coalesces marker churn from one foreign sync burst into a
// single forced reload.
const reloadQuiescence = 100 * time.Millisecond

// FavoritesLoader is the slice of the favorites store the watcher drives.
type FavoritesLoader interface {
	LoadFavorites(ctx context.Context, userID int64, force bool)
}

// CacheWatcher reloads favorites when a different process writes this user's
// snapshot. Self-writes are identified by the cache writer id recorded in
// marker files and ignored, mirroring how browser storage events fire only in
// other tabs.
type CacheWatcher struct {
	loader   FavoritesLoader
	userID   int64
	key      string
	selfID   string
	dir      string
	logger   *logger.Logger
	fsw      *fsnotify.Watcher
	reloader *debounce.Debouncer[struct{}, struct{}]

	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a watcher for the given user over the cache's marker directory.
func New(loader FavoritesLoader, c *cache.Cache, userID int64, log *logger.Logger) (*CacheWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &CacheWatcher{
		loader: loader,
		userID: userID,
		key:    cache.FavoritesKey(userID),
		selfID: c.WriterID(),
		dir:    c.MarkerDir(),
		logger: log,
		fsw:    fsw,
	}
	w.reloader = debounce.New(reloadQuiescence, func(ctx context.Context, _ struct{}) (struct{}, error) {
		w.logger.Info("favorites changed in another process, reloading", "user_id", w.userID)
		w.loader.LoadFavorites(ctx, w.userID, true)
		return struct{}{}, nil
	})

	return w, nil
}

// Start performs the initial no-force load and begins observing marker
// changes until ctx is cancelled. Without a user it does nothing.
func (w *CacheWatcher) Start(ctx context.Context) error {
	if w.userID == 0 {
		return nil
	}

	w.loader.LoadFavorites(ctx, w.userID, false)

	if err := w.fsw.Add(w.dir); err != nil {
		return err
	}

	w.wg.Add(1)
	go w.run(ctx)
	return nil
}

// Stop releases the fsnotify watcher and any scheduled reload.
func (w *CacheWatcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		err = w.fsw.Close()
		w.reloader.Stop()
		w.wg.Wait()
	})
	return err
}

// run consumes fsnotify events until the watcher closes or ctx is cancelled.
func (w *CacheWatcher) run(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.WithError(err).Warn("cache watcher error")
		}
	}
}

// handle schedules a forced reload for foreign writes to this user's key.
func (w *CacheWatcher) handle(event fsnotify.Event) {
	if filepath.Base(event.Name) != w.key {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) {
		return
	}
	if w.isSelfWrite(event.Name) {
		return
	}

	w.reloader.Trigger(struct{}{})
}

// isSelfWrite reports whether the marker was written by this process. A
// removed or unreadable marker counts as foreign; reloading spuriously is
// cheaper than missing a change.
func (w *CacheWatcher) isSelfWrite(path string) bool {
	content, err := os.ReadFile(path) //#nosec G304 -- path comes from our own marker directory
	if err != nil {
		return false
	}
	fields := bytes.Fields(content)
	return len(fields) > 0 && string(fields[0]) == w.selfID
}
