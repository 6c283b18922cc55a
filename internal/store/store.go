// Package store provides a thin bbolt wrapper for pulse's local data store.
//
// The store backs the default response cache: raw upstream responses are
// written with an expiry and read back until they go stale or the cache is
// refreshed. It also keeps a history of generated PDF exports.
//
// Buckets:
//
//	responses: cached upstream responses keyed by metric query and period
//	exports: one record per generated PDF export
//	_meta: schema version and created_at
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Current schema version. Bump when bucket layout or key format changes.
const schemaVersion = 2

// Bucket name constants.
var (
	bucketResponses = []byte("responses")
	bucketExports   = []byte("exports")
	bucketInternal  = []byte("_meta")
)

// AllBuckets lists every top-level bucket for stats and clear operations.
var AllBuckets = []string{"responses", "exports"}

// Store wraps a bbolt database.
type Store struct {
	db   *bolt.DB
	path string
}

// Open opens (or creates) the bbolt database at path.
// Parent directories are created automatically.
// Runs schema migrations on every open.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating db directory: %w", err)
	}

	db, err := openDB(path)
	if err != nil {
		return nil, err
	}

	s := &Store{db: db, path: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration: %w", err)
	}
	return s, nil
}

func openDB(path string) (*bolt.DB, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening db %s: %w", path, err)
	}
	return db, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the filesystem path of the open database.
func (s *Store) Path() string {
	return s.path
}

// ─── Migrations ───────────────────────────────────────────────────────────────

// migrate ensures all buckets exist and schema is current.
// Buckets from schema version 1 are dropped on upgrade.
func (s *Store) migrate() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketResponses, bucketExports, bucketInternal} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("creating bucket %s: %w", name, err)
			}
		}

		meta := tx.Bucket(bucketInternal)
		current := string(meta.Get([]byte("schema_version")))
		if current == fmt.Sprintf("%d", schemaVersion) {
			return nil
		}
		for _, legacy := range []string{"obs", "series_meta", "snapshots"} {
			if tx.Bucket([]byte(legacy)) != nil {
				if err := tx.DeleteBucket([]byte(legacy)); err != nil {
					return fmt.Errorf("dropping legacy bucket %s: %w", legacy, err)
				}
			}
		}
		if err := meta.Put([]byte("schema_version"), []byte(fmt.Sprintf("%d", schemaVersion))); err != nil {
			return err
		}
		if meta.Get([]byte("created_at")) == nil {
			if err := meta.Put([]byte("created_at"), []byte(time.Now().UTC().Format(time.RFC3339))); err != nil {
				return err
			}
		}
		return nil
	})
}

// ─── Responses ────────────────────────────────────────────────────────────────

// storedResponse is the on-disk envelope for a cached response.
type storedResponse struct {
	FetchedAt time.Time `json:"fetched_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Payload   []byte    `json:"payload"`
}

// PutResponse stores payload under key, stamping FetchedAt and an expiry
// ttl from now.
func (s *Store) PutResponse(key string, payload []byte, ttl time.Duration) error {
	now := time.Now().UTC()
	b, err := json.Marshal(storedResponse{
		FetchedAt: now,
		ExpiresAt: now.Add(ttl),
		Payload:   payload,
	})
	if err != nil {
		return fmt.Errorf("encoding response: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketResponses).Put([]byte(key), b)
	})
}

// GetResponse retrieves a cached response by key.
// Returns (payload, fetchedAt, true, nil) if found and fresh at now,
// (nil, zero, false, nil) if missing or expired.
func (s *Store) GetResponse(key string, now time.Time) ([]byte, time.Time, bool, error) {
	var env storedResponse
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketResponses).Get([]byte(key))
		if v == nil {
			return nil
		}
		found = true
		return json.Unmarshal(v, &env)
	})
	if err != nil {
		return nil, time.Time{}, false, fmt.Errorf("decoding response %s: %w", key, err)
	}
	if !found || !now.Before(env.ExpiresAt) {
		return nil, time.Time{}, false, nil
	}
	return env.Payload, env.FetchedAt, true, nil
}

// PurgeExpired deletes every response that is stale at now and returns how
// many were removed.
func (s *Store) PurgeExpired(now time.Time) (int, error) {
	var n int
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketResponses)
		var stale [][]byte
		err := b.ForEach(func(k, v []byte) error {
			var env storedResponse
			if err := json.Unmarshal(v, &env); err != nil || !now.Before(env.ExpiresAt) {
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
		n = len(stale)
		return nil
	})
	return n, err
}

// ─── Exports ──────────────────────────────────────────────────────────────────

// ExportRecord describes one generated PDF report.
type ExportRecord struct {
	ID        string    `json:"id"`
	Month     string    `json:"month"`
	File      string    `json:"file"`
	Location  string    `json:"location"` // local path or s3:// URL
	Bytes     int       `json:"bytes"`
	Warnings  int       `json:"warnings"`
	CreatedAt time.Time `json:"created_at"`
}

// PutExport saves an export record. The key is export:<ID>.
func (s *Store) PutExport(rec ExportRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("export record has no id")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding export: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketExports).Put([]byte("export:"+rec.ID), b)
	})
}

// ListExports returns all export records, oldest first.
func (s *Store) ListExports() ([]ExportRecord, error) {
	var recs []ExportRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketExports).ForEach(func(k, v []byte) error {
			var rec ExportRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			recs = append(recs, rec)
			return nil
		})
	})
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].CreatedAt.Before(recs[j].CreatedAt) })
	return recs, err
}

// ─── Stats & Maintenance ──────────────────────────────────────────────────────

// BucketStats holds row count and byte size for a single bucket.
type BucketStats struct {
	Name  string
	Count int
	Bytes int64
}

// Stats returns row counts and approximate sizes for all buckets.
func (s *Store) Stats() ([]BucketStats, error) {
	var stats []BucketStats
	err := s.db.View(func(tx *bolt.Tx) error {
		for _, name := range AllBuckets {
			b := tx.Bucket([]byte(name))
			if b == nil {
				continue
			}
			var count int
			var bytes int64
			b.ForEach(func(k, v []byte) error {
				count++
				bytes += int64(len(k) + len(v))
				return nil
			})
			stats = append(stats, BucketStats{Name: name, Count: count, Bytes: bytes})
		}
		return nil
	})
	return stats, err
}

// ClearBucket deletes all entries in the named bucket.
func (s *Store) ClearBucket(name string) error {
	known := false
	for _, b := range AllBuckets {
		if b == name {
			known = true
		}
	}
	if !known {
		return fmt.Errorf("unknown bucket %q", name)
	}
	bname := []byte(name)
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bname); err != nil {
			return fmt.Errorf("clearing bucket %s: %w", name, err)
		}
		_, err := tx.CreateBucket(bname)
		return err
	})
}

// ClearAll deletes all entries from every user-facing bucket.
func (s *Store) ClearAll() error {
	for _, name := range AllBuckets {
		if err := s.ClearBucket(name); err != nil {
			return err
		}
	}
	return nil
}

// Compact rewrites the database into a fresh file and swaps it in place,
// returning the file sizes before and after. The Store stays usable.
func (s *Store) Compact() (before, after int64, err error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return 0, 0, err
	}
	before = info.Size()

	tmp := s.path + ".compact"
	_ = os.Remove(tmp)
	dst, err := openDB(tmp)
	if err != nil {
		return before, 0, err
	}
	if err := bolt.Compact(dst, s.db, 0); err != nil {
		dst.Close()
		os.Remove(tmp)
		return before, 0, fmt.Errorf("compacting: %w", err)
	}
	if err := dst.Close(); err != nil {
		return before, 0, err
	}
	if err := s.db.Close(); err != nil {
		return before, 0, err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return before, 0, fmt.Errorf("replacing db: %w", err)
	}
	if s.db, err = openDB(s.path); err != nil {
		return before, 0, err
	}

	info, err = os.Stat(s.path)
	if err != nil {
		return before, 0, err
	}
	return before, info.Size(), nil
}
