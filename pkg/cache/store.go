package cache

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/lintang-b-s/trafficshed/pkg"
	"github.com/lintang-b-s/trafficshed/pkg/metrics"
	"go.uber.org/zap"
)

type Config struct {
	Path     string
	InMemory bool
	TTL      time.Duration
	LRUSize  int
}

func DefaultConfig() Config {
	return Config{
		Path:    "./data/cache",
		TTL:     pkg.DEFAULT_CACHE_TTL_HOURS * time.Hour,
		LRUSize: 1 << 14,
	}
}

// Store is a two level key/value cache: an in-process LRU in front of an embedded badger database.
// entries of both layers expire after TTL. Safe for concurrent use.
type Store struct {
	lru *expirable.LRU[string, memEntry]
	db  *badger.DB
	ttl time.Duration
	log *zap.Logger
}

func Open(cfg Config, log *zap.Logger) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("cache path is required for a persistent cache")
	}
	if cfg.LRUSize <= 0 {
		cfg.LRUSize = DefaultConfig().LRUSize
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create cache directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	if log != nil {
		opts = opts.WithLogger(&badgerLogger{log: log.Sugar()})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger cache: %w", err)
	}

	mem := expirable.NewLRU[string, memEntry](cfg.LRUSize, nil, cfg.TTL)

	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		lru: mem,
		db:  db,
		ttl: cfg.TTL,
		log: log,
	}, nil
}

// Get returns (value, true) on a hit. A badger hit is promoted into the LRU.
func (s *Store) Get(key string) ([]byte, bool, error) {
	if mem, ok := s.lru.Get(key); ok && !mem.expired(time.Now()) {
		metrics.CacheHit("lru")
		return mem.val, true, nil
	}
	metrics.CacheMiss("lru")

	var (
		val       []byte
		expiresAt time.Time
	)
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		if ts := item.ExpiresAt(); ts > 0 {
			expiresAt = time.Unix(int64(ts), 0)
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		metrics.CacheMiss("badger")
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	metrics.CacheHit("badger")
	s.lru.Add(key, memEntry{val: val, expiresAt: expiresAt})
	return val, true, nil
}

func (s *Store) Set(key string, val []byte) error {
	var expiresAt time.Time
	err := s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), val)
		if s.ttl > 0 {
			entry = entry.WithTTL(s.ttl)
			expiresAt = time.Unix(int64(entry.ExpiresAt), 0)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		return err
	}
	s.lru.Add(key, memEntry{val: val, expiresAt: expiresAt})
	return nil
}

// Purge drops the in-memory layer only.
func (s *Store) Purge() {
	s.lru.Purge()
}

func (s *Store) Close() error {
	return s.db.Close()
}

// memEntry keeps the badger expiry next to the value, a promoted entry must not outlive its badger copy.
type memEntry struct {
	val       []byte
	expiresAt time.Time
}

func (e memEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

type badgerLogger struct {
	log *zap.SugaredLogger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.log.Errorf(format, args...)
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.log.Warnf(format, args...)
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.log.Debugf(format, args...)
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.log.Debugf(format, args...)
}
