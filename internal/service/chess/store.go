package chess

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Store persists GameRecords. Update runs fn on a private copy of the record
// and commits the copy only when fn returns nil, so a failed request leaves
// the stored game untouched.
type Store interface {
	Create(ctx context.Context, rec *GameRecord) error
	Load(ctx context.Context, id string) (*GameRecord, error)
	Update(ctx context.Context, id string, fn func(rec *GameRecord) error) (*GameRecord, error)
	Close() error
}

const defaultSweepInterval = time.Minute

var errInvalidRecord = errors.New("game record requires an id")

type memEntry struct {
	mu       sync.Mutex
	rec      *GameRecord
	lastSeen time.Time // guarded by MemoryStore.mu
}

// MemoryStore keeps games in process memory. Each game has its own mutex held
// for the whole read-modify-write, so requests on one game serialize while
// different games proceed in parallel. Idle games are swept after ttl.
type MemoryStore struct {
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger

	mu      sync.Mutex
	entries map[string]*memEntry

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func NewMemoryStore(ttl time.Duration, logger *zap.Logger) *MemoryStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryStore{
		ttl:     ttl,
		now:     time.Now,
		logger:  logger,
		entries: make(map[string]*memEntry),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// StartJanitor sweeps idle games every interval until Close.
func (s *MemoryStore) StartJanitor(interval time.Duration) {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				if n := s.Sweep(); n > 0 {
					s.logger.Info("chess_sessions_evicted", zap.Int("count", n))
				}
			}
		}
	}()
}

// Sweep drops games idle for longer than ttl and returns how many were removed.
func (s *MemoryStore) Sweep() int {
	if s.ttl <= 0 {
		return 0
	}
	cutoff := s.now().Add(-s.ttl)
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, e := range s.entries {
		if e.lastSeen.Before(cutoff) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *MemoryStore) Create(_ context.Context, rec *GameRecord) error {
	if rec == nil || rec.ID == "" {
		return errInvalidRecord
	}
	s.mu.Lock()
	s.entries[rec.ID] = &memEntry{rec: rec.clone(), lastSeen: s.now()}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Load(_ context.Context, id string) (*GameRecord, error) {
	e, ok := s.touch(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rec.clone(), nil
}

func (s *MemoryStore) Update(_ context.Context, id string, fn func(rec *GameRecord) error) (*GameRecord, error) {
	e, ok := s.touch(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	work := e.rec.clone()
	if err := fn(work); err != nil {
		return nil, err
	}
	work.UpdatedAt = s.now()
	e.rec = work
	s.touch(id)
	return work.clone(), nil
}

func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
	return nil
}

// Wait blocks until the janitor goroutine has exited; only meaningful after
// StartJanitor and Close.
func (s *MemoryStore) Wait() {
	<-s.done
}

func (s *MemoryStore) touch(id string) (*memEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, false
	}
	now := s.now()
	if s.ttl > 0 && now.Sub(e.lastSeen) > s.ttl {
		delete(s.entries, id)
		return nil, false
	}
	e.lastSeen = now
	return e, true
}
