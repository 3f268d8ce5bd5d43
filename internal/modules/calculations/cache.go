// Package calculations memoizes expensive analytics results in the cache database.
package calculations

import (
	"bytes"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// DefaultTTL is used when a cache is built with a non-positive TTL
const DefaultTTL = time.Hour

// Cache stores msgpack-encoded values by (kind, key) with an expiry.
type Cache struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
	log zerolog.Logger
}

// NewCache creates a cache over the calculation_cache table
func NewCache(db *sql.DB, ttl time.Duration, log zerolog.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		db:  db,
		ttl: ttl,
		now: time.Now,
		log: log.With().Str("component", "calculation_cache").Logger(),
	}
}

// TTL returns the entry lifetime
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Key derives a stable cache key from any msgpack-encodable value. Values are
// encoded once, decoded back into generic form and re-encoded with sorted map
// keys, so maps hash the same regardless of iteration order. Map keys must be
// strings.
func Key(v interface{}) (string, error) {
	raw, err := msgpack.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode cache key: %w", err)
	}
	generic, err := msgpack.NewDecoder(bytes.NewReader(raw)).DecodeInterface()
	if err != nil {
		return "", fmt.Errorf("failed to normalize cache key: %w", err)
	}

	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(generic); err != nil {
		return "", fmt.Errorf("failed to encode cache key: %w", err)
	}
	sum := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:]), nil
}

// Set stores value under (kind, key), replacing any previous entry, and
// returns the new entry id.
func (c *Cache) Set(ctx context.Context, kind, key string, value interface{}) (string, error) {
	data, err := msgpack.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("failed to encode %s cache entry: %w", kind, err)
	}

	id := uuid.New().String()
	now := c.now()
	_, err = c.db.ExecContext(ctx, `
		INSERT INTO calculation_cache (kind, key, id, data, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(kind, key) DO UPDATE SET
			id = excluded.id,
			data = excluded.data,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at
	`, kind, key, id, data, now.Unix(), now.Add(c.ttl).Unix())
	if err != nil {
		return "", fmt.Errorf("failed to store %s cache entry: %w", kind, err)
	}
	return id, nil
}

// Get decodes the fresh entry for (kind, key) into dest. It reports false
// when the entry is missing or expired.
func (c *Cache) Get(ctx context.Context, kind, key string, dest interface{}) (bool, error) {
	var data []byte
	var expiresAt int64
	err := c.db.QueryRowContext(ctx,
		"SELECT data, expires_at FROM calculation_cache WHERE kind = ? AND key = ?",
		kind, key,
	).Scan(&data, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read %s cache entry: %w", kind, err)
	}

	if c.now().Unix() >= expiresAt {
		return false, nil
	}

	if err := msgpack.Unmarshal(data, dest); err != nil {
		// A blob written by an older layout is treated as a miss.
		c.log.Warn().Err(err).Str("kind", kind).Msg("Discarding undecodable cache entry")
		_ = c.Delete(ctx, kind, key)
		return false, nil
	}
	return true, nil
}

// Delete removes one entry
func (c *Cache) Delete(ctx context.Context, kind, key string) error {
	_, err := c.db.ExecContext(ctx, "DELETE FROM calculation_cache WHERE kind = ? AND key = ?", kind, key)
	if err != nil {
		return fmt.Errorf("failed to delete %s cache entry: %w", kind, err)
	}
	return nil
}

// DeleteKind removes every entry of one kind
func (c *Cache) DeleteKind(ctx context.Context, kind string) (int64, error) {
	res, err := c.db.ExecContext(ctx, "DELETE FROM calculation_cache WHERE kind = ?", kind)
	if err != nil {
		return 0, fmt.Errorf("failed to delete %s cache entries: %w", kind, err)
	}
	return res.RowsAffected()
}

// DeleteExpired removes every expired entry and returns how many went
func (c *Cache) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := c.db.ExecContext(ctx, "DELETE FROM calculation_cache WHERE expires_at <= ?", c.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired cache entries: %w", err)
	}
	return res.RowsAffected()
}

// Count returns the number of stored entries, expired ones included
func (c *Cache) Count(ctx context.Context) (int, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM calculation_cache").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count cache entries: %w", err)
	}
	return n, nil
}
