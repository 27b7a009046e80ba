// Package cache implements the durable local cache: per-user snapshots of
// cart and favorites state persisted in a SQLite database shared by every
// client process on the machine. Writes also touch a marker file so other
// processes can observe the change without polling (see internal/watcher).
package cache

import (
	"database/sql"
	"encoding/json/v2"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	gonanoid "github.com/matoous/go-nanoid/v2"
	_ "modernc.org/sqlite" // database/sql driver

	"github.com/solestoreapp/solestore-client/internal/domain"
	"github.com/solestoreapp/solestore-client/internal/errors"
	"github.com/solestoreapp/solestore-client/internal/logger"
)

// Key prefixes for the two snapshot families. One entry per user.
const (
	CartKeyPrefix      = "cart_"
	FavoritesKeyPrefix = "favorites_"
)

// markerSubdir holds the per-key change marker files.
const markerSubdir = "events"

// CartKey returns the snapshot key for a user's cart.
func CartKey(userID int64) string {
	return fmt.Sprintf("%s%d", CartKeyPrefix, userID)
}

// FavoritesKey returns the snapshot key for a user's favorites.
func FavoritesKey(userID int64) string {
	return fmt.Sprintf("%s%d", FavoritesKeyPrefix, userID)
}

// Cache is the durable snapshot store. Safe for concurrent use; SQLite in WAL
// mode arbitrates between processes with last-writer-wins semantics, which is
// the accepted policy for the narrow two-writers-same-tick race.
type Cache struct {
	db       *sql.DB
	dir      string
	writerID string
	validate *validator.Validate
	logger   *logger.Logger
}

// Open opens (creating if needed) the snapshot database under dir and sweeps
// structurally invalid favorites entries left behind by older versions or
// corrupt writes.
func Open(dir string, log *logger.Logger) (*Cache, error) {
	if err := os.MkdirAll(filepath.Join(dir, markerSubdir), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)",
		filepath.Join(dir, "snapshots.db"))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot database: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS snapshots (
		key        TEXT PRIMARY KEY,
		payload    BLOB NOT NULL,
		updated_at INTEGER NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create snapshots table: %w", err)
	}

	writerID, err := gonanoid.New()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to generate writer id: %w", err)
	}

	c := &Cache{
		db:       db,
		dir:      dir,
		writerID: writerID,
		validate: validator.New(),
		logger:   log,
	}

	if err := c.sweepInvalidFavorites(); err != nil {
		log.Warn("cache sweep failed", "error", err)
	}

	return c, nil
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// WriterID identifies this process's writes in marker files. The cross-tab
// watcher uses it to ignore self-writes, mirroring how browser storage events
// only fire in other tabs.
func (c *Cache) WriterID() string {
	return c.writerID
}

// MarkerDir is the directory the watcher should observe for change markers.
func (c *Cache) MarkerDir() string {
	return filepath.Join(c.dir, markerSubdir)
}

// Put marshals v and overwrites the snapshot stored under key, then touches
// the key's marker file.
func (c *Cache) Put(key string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot %s: %w", key, err)
	}

	_, err = c.db.Exec(`INSERT INTO snapshots (key, payload, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		key, payload, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to store snapshot %s: %w", key, err)
	}

	c.touchMarker(key)
	return nil
}

// Get unmarshals the snapshot stored under key into dest and returns the
// write time. A missing entry returns errors.ErrNotFound. An entry that no
// longer parses is deleted and reported as a miss rather than surfaced.
func (c *Cache) Get(key string, dest any) (time.Time, error) {
	var payload []byte
	var updatedAt int64
	err := c.db.QueryRow(`SELECT payload, updated_at FROM snapshots WHERE key = ?`, key).
		Scan(&payload, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, errors.ErrNotFound
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read snapshot %s: %w", key, err)
	}

	if err := json.Unmarshal(payload, dest); err != nil {
		c.logger.Warn("discarding unparseable cache entry", "key", key, "error", err)
		_ = c.Delete(key)
		return time.Time{}, errors.ErrNotFound
	}

	return time.UnixMilli(updatedAt), nil
}

// Delete removes the snapshot stored under key and touches its marker file so
// other processes observe the removal.
func (c *Cache) Delete(key string) error {
	if _, err := c.db.Exec(`DELETE FROM snapshots WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete snapshot %s: %w", key, err)
	}
	c.touchMarker(key)
	return nil
}

// DeletePrefix removes every snapshot whose key starts with prefix. Used by
// the logout path to wipe all users' cart entries at once.
func (c *Cache) DeletePrefix(prefix string) error {
	rows, err := c.db.Query(`SELECT key FROM snapshots WHERE key LIKE ? || '%'`, prefix)
	if err != nil {
		return fmt.Errorf("failed to list snapshots with prefix %s: %w", prefix, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return err
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, key := range keys {
		if err := c.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

// ValidFavorites reports whether a favorites snapshot is structurally sound:
// every entry must carry a denormalized shoe with model and brand names, or
// offline rendering would break.
func (c *Cache) ValidFavorites(snap *domain.FavoritesSnapshot) bool {
	for i := range snap.Favorites {
		entry := &snap.Favorites[i]
		if entry.Shoe == nil {
			return false
		}
		if err := c.validate.Struct(entry.Shoe); err != nil {
			return false
		}
	}
	return true
}

// sweepInvalidFavorites deletes favorites snapshots that fail the structural
// check. Runs once at open, before any store hydrates from the cache.
func (c *Cache) sweepInvalidFavorites() error {
	rows, err := c.db.Query(`SELECT key, payload FROM snapshots WHERE key LIKE ? || '%'`, FavoritesKeyPrefix)
	if err != nil {
		return err
	}
	defer rows.Close()

	var stale []string
	for rows.Next() {
		var key string
		var payload []byte
		if err := rows.Scan(&key, &payload); err != nil {
			return err
		}

		var snap domain.FavoritesSnapshot
		if err := json.Unmarshal(payload, &snap); err != nil || !c.ValidFavorites(&snap) {
			stale = append(stale, key)
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, key := range stale {
		c.logger.Info("clearing stale favorites cache entry", "key", key)
		if _, err := c.db.Exec(`DELETE FROM snapshots WHERE key = ?`, key); err != nil {
			return err
		}
	}
	return nil
}

// touchMarker rewrites the marker file for key with this process's writer id.
// Marker writes are best effort; a failed marker only delays cross-process
// reconciliation until the freshness window expires.
func (c *Cache) touchMarker(key string) {
	path := filepath.Join(c.dir, markerSubdir, key)
	content := fmt.Sprintf("%s %d\n", c.writerID, time.Now().UnixMilli())
	if err := os.WriteFile(path, []byte(content), 0o640); err != nil {
		c.logger.Warn("failed to write cache marker", "key", key, "error", err)
	}
}
