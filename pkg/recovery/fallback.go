package recovery

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bastiangx/campuscomplete/pkg/clock"
	"github.com/gofrs/flock"
	"github.com/vmihailenco/msgpack/v5"
)

// DefaultFallbackTTL is how long a stored result may be served as fallback.
const DefaultFallbackTTL = time.Hour

const keyPrefix = "autocomplete_fallback_"

// Key returns the store key for a scope key.
func Key(scopeKey string) string {
	return keyPrefix + scopeKey
}

// Store keeps the last good result per key for the session. Load returns
// ErrNoFallback when the key is missing or older than the store's TTL.
type Store[T any] interface {
	Load(key string) (T, time.Time, error)
	Save(key string, value T) error
}

type record[T any] struct {
	Data      T     `msgpack:"data"`
	Timestamp int64 `msgpack:"timestamp"`
}

func (r record[T]) storedAt() time.Time {
	return time.UnixMilli(r.Timestamp)
}

// MemoryStore is a Store living as long as the process.
type MemoryStore[T any] struct {
	mu    sync.Mutex
	items map[string]record[T]
	ttl   time.Duration
	clock clock.Clock
}

// NewMemoryStore creates an in-memory store. A zero ttl uses DefaultFallbackTTL.
func NewMemoryStore[T any](ttl time.Duration, clk clock.Clock) *MemoryStore[T] {
	if ttl <= 0 {
		ttl = DefaultFallbackTTL
	}
	return &MemoryStore[T]{
		items: make(map[string]record[T]),
		ttl:   ttl,
		clock: clock.OrReal(clk),
	}
}

func (s *MemoryStore[T]) Load(key string) (T, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero T
	rec, ok := s.items[key]
	if !ok {
		return zero, time.Time{}, ErrNoFallback
	}
	if s.clock.Now().Sub(rec.storedAt()) >= s.ttl {
		delete(s.items, key)
		return zero, time.Time{}, ErrNoFallback
	}
	return rec.Data, rec.storedAt(), nil
}

func (s *MemoryStore[T]) Save(key string, value T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[key] = record[T]{Data: value, Timestamp: s.clock.Now().UnixMilli()}
	return nil
}

// FileStore is a Store persisted as one msgpack file in a session directory,
// so several processes sharing the directory see each other's results.
// Writers hold a file lock; the last write wins. The file lock is per
// descriptor, so mu serialises goroutines of this process.
type FileStore[T any] struct {
	mu    sync.Mutex
	path  string
	lock  *flock.Flock
	ttl   time.Duration
	clock clock.Clock
}

const (
	fallbackFileName = "fallback.msgpack"
	fallbackLockName = "fallback.lock"
)

// NewFileStore creates the session directory if needed.
func NewFileStore[T any](dir string, ttl time.Duration, clk clock.Clock) (*FileStore[T], error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}
	if ttl <= 0 {
		ttl = DefaultFallbackTTL
	}
	return &FileStore[T]{
		path:  filepath.Join(dir, fallbackFileName),
		lock:  flock.New(filepath.Join(dir, fallbackLockName)),
		ttl:   ttl,
		clock: clock.OrReal(clk),
	}, nil
}

func (s *FileStore[T]) Load(key string) (T, time.Time, error) {
	var zero T

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.lock.RLock(); err != nil {
		return zero, time.Time{}, fmt.Errorf("storage lock: %w", err)
	}
	items, err := s.read()
	_ = s.lock.Unlock()
	if err != nil {
		return zero, time.Time{}, err
	}

	rec, ok := items[key]
	if !ok || s.clock.Now().Sub(rec.storedAt()) >= s.ttl {
		return zero, time.Time{}, ErrNoFallback
	}
	return rec.Data, rec.storedAt(), nil
}

func (s *FileStore[T]) Save(key string, value T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("storage lock: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()

	items, err := s.read()
	if err != nil {
		// Corrupt storage is overwritten.
		items = make(map[string]record[T])
	}

	now := s.clock.Now()
	for k, rec := range items {
		if now.Sub(rec.storedAt()) >= s.ttl {
			delete(items, k)
		}
	}
	items[key] = record[T]{Data: value, Timestamp: now.UnixMilli()}

	data, err := msgpack.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to encode fallback storage: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), fallbackFileName+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to write fallback storage: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write fallback storage: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write fallback storage: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to save fallback storage: %w", err)
	}
	return nil
}

// Path returns the storage file location.
func (s *FileStore[T]) Path() string {
	return s.path
}

func (s *FileStore[T]) read() (map[string]record[T], error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return make(map[string]record[T]), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read fallback storage: %w", err)
	}

	items := make(map[string]record[T])
	if err := msgpack.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to decode fallback storage: %w", err)
	}
	return items, nil
}
