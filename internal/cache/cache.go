package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"codectx/internal/log"
	"codectx/internal/models"
)

// memCapacity bounds the memory tier; the disk mirror is the authority for
// anything evicted by capacity pressure.
const memCapacity = 256

// Store is a TTL key/value cache with a memory tier and a disk mirror.
// Expired entries are never returned; they are evicted lazily by the read
// that discovers the expiry.
type Store struct {
	dir        string
	mem        *lru.Cache[string, models.CacheEntry]
	defaultTTL time.Duration
	lg         *log.Logger
	now        func() time.Time
}

// New opens a cache rooted at dir. The directory is created on demand.
func New(dir string, defaultTTL time.Duration, lg *log.Logger) (*Store, error) {
	if defaultTTL <= 0 {
		defaultTTL = 24 * time.Hour
	}
	mem, err := lru.New[string, models.CacheEntry](memCapacity)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Store{dir: dir, mem: mem, defaultTTL: defaultTTL, lg: lg, now: time.Now}, nil
}

// Dir returns the cache directory.
func (s *Store) Dir() string { return s.dir }

// Put stores data under key with the default TTL.
func (s *Store) Put(key string, data []byte) {
	s.PutTTL(key, data, s.defaultTTL)
}

// PutTTL stores data under key with an explicit TTL. A zero or negative TTL
// produces an entry that is already expired. A disk-mirror write failure is
// logged and leaves the memory entry valid.
func (s *Store) PutTTL(key string, data []byte, ttl time.Duration) {
	now := s.now()
	e := models.CacheEntry{
		Key:        key,
		Data:       data,
		Timestamp:  now,
		ExpiryTime: now.Add(ttl),
		Size:       int64(len(data)),
	}
	s.mem.Add(key, e)
	b, err := json.Marshal(e)
	if err == nil {
		err = os.WriteFile(s.filePath(key), b, 0o644)
	}
	if err != nil {
		s.lg.Warn("cache mirror write failed", "key", key, "err", err.Error())
	}
}

// Get returns the payload for key, or ok=false on a miss. A disk-mirror hit
// is promoted into the memory tier.
func (s *Store) Get(key string) ([]byte, bool) {
	now := s.now()
	if e, ok := s.mem.Get(key); ok {
		if !e.Expired(now) {
			return e.Data, true
		}
		s.mem.Remove(key)
	}
	path := s.filePath(key)
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	var e models.CacheEntry
	if err := json.Unmarshal(b, &e); err != nil {
		// corrupt mirror entries count as absent
		_ = os.Remove(path)
		return nil, false
	}
	// a mirror written for another key must never answer for this one
	if e.Key != key {
		return nil, false
	}
	if e.Expired(now) {
		_ = os.Remove(path)
		return nil, false
	}
	s.mem.Add(key, e)
	return e.Data, true
}

// PutJSON marshals v and stores it under key with the default TTL.
func (s *Store) PutJSON(key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.Put(key, b)
	return nil
}

// GetJSON unmarshals the cached payload for key into v.
func (s *Store) GetJSON(key string, v any) bool {
	b, ok := s.Get(key)
	if !ok {
		return false
	}
	return json.Unmarshal(b, v) == nil
}

var keySanitizer = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// SanitizeKey derives the readable part of the disk token for a cache key.
// Sanitizing is lossy, so the token alone cannot identify a key; filePath
// appends a key hash to keep mirrors for distinct keys in distinct files.
func SanitizeKey(key string) string {
	tok := keySanitizer.ReplaceAllString(key, "-")
	if len(tok) > 120 {
		tok = tok[:120]
	}
	if tok == "" {
		tok = "-"
	}
	return tok
}

func keyHash(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:4])
}

func (s *Store) filePath(key string) string {
	return filepath.Join(s.dir, SanitizeKey(key)+"."+keyHash(key)+".json")
}

// DirSize sums the sizes of regular files under dir. A missing directory
// counts as zero.
func DirSize(dir string) int64 {
	var total int64
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			total += info.Size()
		}
		return nil
	})
	return total
}
