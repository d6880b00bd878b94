package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"ghostwriter/pkg/metrics"

	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"
)

var bucketName = []byte("search_results")

type cacheEntry struct {
	StoredAt time.Time      `json:"stored_at"`
	Results  []SearchResult `json:"results"`
}

// CachedSearchEngine memoizes search responses in BoltDB.
type CachedSearchEngine struct {
	next    SearchEngine
	db      *bolt.DB
	ttl     time.Duration
	now     func() time.Time
	logger  *zap.Logger
	metrics *metrics.Collector
}

func NewCachedSearchEngine(next SearchEngine, dbPath string, ttl time.Duration, logger *zap.Logger, m *metrics.Collector) (*CachedSearchEngine, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory for BoltDB: %w", err)
	}

	db, err := bolt.Open(dbPath, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open BoltDB: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	return &CachedSearchEngine{
		next:    next,
		db:      db,
		ttl:     ttl,
		now:     time.Now,
		logger:  logger,
		metrics: m,
	}, nil
}

func (c *CachedSearchEngine) Name() string { return c.next.Name() }

func (c *CachedSearchEngine) Search(ctx context.Context, req *SearchRequest) ([]SearchResult, error) {
	key := c.key(req)

	if results, ok := c.get(key); ok {
		c.metrics.ObserveCache(true)
		c.logger.Debug("search cache hit", zap.String("query", req.Query))
		return results, nil
	}
	c.metrics.ObserveCache(false)

	results, err := c.next.Search(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := c.put(key, results); err != nil {
		c.logger.Warn("failed to cache search results", zap.String("query", req.Query), zap.Error(err))
	}
	return results, nil
}

func (c *CachedSearchEngine) get(key []byte) ([]SearchResult, bool) {
	var entry cacheEntry
	found := false

	err := c.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketName).Get(key)
		if v == nil {
			return nil
		}
		if err := json.Unmarshal(v, &entry); err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		c.logger.Warn("failed to read search cache", zap.Error(err))
		return nil, false
	}
	if !found || (c.ttl > 0 && c.now().Sub(entry.StoredAt) > c.ttl) {
		return nil, false
	}
	return entry.Results, true
}

func (c *CachedSearchEngine) put(key []byte, results []SearchResult) error {
	data, err := json.Marshal(cacheEntry{StoredAt: c.now(), Results: results})
	if err != nil {
		return err
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put(key, data)
	})
}

// Purge removes expired entries and returns how many were dropped.
func (c *CachedSearchEngine) Purge() (int, error) {
	if c.ttl <= 0 {
		return 0, nil
	}
	removed := 0
	err := c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		var stale [][]byte
		err := b.ForEach(func(k, v []byte) error {
			var entry cacheEntry
			if err := json.Unmarshal(v, &entry); err != nil || c.now().Sub(entry.StoredAt) > c.ttl {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		removed = len(stale)
		return nil
	})
	return removed, err
}

func (c *CachedSearchEngine) Close() error {
	return c.db.Close()
}

func (c *CachedSearchEngine) key(req *SearchRequest) []byte {
	h := sha256.New()
	h.Write([]byte(c.next.Name()))
	h.Write([]byte{0})
	h.Write([]byte(req.Query))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(req.MaxResults)))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(req.MaxPages)))
	return []byte(hex.EncodeToString(h.Sum(nil)))
}
