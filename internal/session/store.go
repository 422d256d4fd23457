// Package session keeps per-sender conversation state in a TTL cache backed
// by an optional durable store.
package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"sr-chatbot/internal/domain"
)

// Cache is the fast tier. Implementations must be safe for concurrent use.
type Cache interface {
	Get(key string) (domain.ConversationState, bool)
	Set(key string, st domain.ConversationState)
	Delete(key string)
}

// Persistence is the durable tier.
type Persistence interface {
	LoadSession(ctx context.Context, sender string) (domain.StateRecord, bool, error)
	SaveSession(ctx context.Context, rec domain.StateRecord) error
	DeleteSession(ctx context.Context, sender string) error
}

// Observer receives cache hit/miss counts.
type Observer interface {
	IncrCacheHit()
	IncrCacheMiss()
}

type nopObserver struct{}

func (nopObserver) IncrCacheHit()  {}
func (nopObserver) IncrCacheMiss() {}

// Store is a read-through, write-through session store. Load never fails:
// any error yields a fresh session, and Save errors are logged only.
type Store struct {
	cache   Cache
	persist Persistence
	locks   *keyedMutex
	logger  *zap.Logger
	obs     Observer
	now     func() time.Time
}

// Option customizes a Store.
type Option func(*Store)

// WithPersistence adds a durable tier behind the cache.
func WithPersistence(p Persistence) Option {
	return func(s *Store) { s.persist = p }
}

// WithObserver reports cache hits and misses.
func WithObserver(o Observer) Option {
	return func(s *Store) {
		if o != nil {
			s.obs = o
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore returns a Store over cache.
func NewStore(cache Cache, logger *zap.Logger, opts ...Option) (*Store, error) {
	if cache == nil {
		return nil, errors.New("session: cache must not be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		cache:  cache,
		locks:  newKeyedMutex(),
		logger: logger,
		obs:    nopObserver{},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func key(sender string) string {
	return strings.TrimSpace(sender)
}

// Lock serializes turns for sender. Callers must invoke the returned
// function exactly once.
func (s *Store) Lock(sender string) func() {
	return s.locks.lock(key(sender))
}

// Load returns the session for sender, creating a fresh GREETING session
// when none exists or the durable tier fails.
func (s *Store) Load(ctx context.Context, sender string) domain.ConversationState {
	k := key(sender)
	if st, ok := s.cache.Get(k); ok {
		s.obs.IncrCacheHit()
		return st.Clone()
	}
	s.obs.IncrCacheMiss()

	if s.persist != nil {
		rec, found, err := s.persist.LoadSession(ctx, k)
		switch {
		case err != nil:
			s.logger.Warn("session load failed, starting fresh", zap.String("sender", k), zap.Error(err))
		case found:
			st, convErr := domain.StateFromRecord(rec)
			if convErr == nil {
				st.Sender = k
				s.cache.Set(k, st.Clone())
				return st
			}
			s.logger.Warn("stored session unreadable, starting fresh", zap.String("sender", k), zap.Error(convErr))
		}
	}

	st := domain.NewConversationState(k, s.now())
	s.cache.Set(k, st.Clone())
	return st
}

// Save refreshes UpdatedAt and writes st to both tiers.
func (s *Store) Save(ctx context.Context, st *domain.ConversationState) {
	if st == nil {
		return
	}
	k := key(st.Sender)
	st.Sender = k
	st.UpdatedAt = s.now().UTC()
	if st.CreatedAt.IsZero() {
		st.CreatedAt = st.UpdatedAt
	}
	s.cache.Set(k, st.Clone())

	if s.persist == nil {
		return
	}
	if err := s.persist.SaveSession(ctx, st.Record()); err != nil {
		s.logger.Error("session save failed", zap.String("sender", k), zap.Error(err))
	}
}

// Reset deletes the session from both tiers.
func (s *Store) Reset(ctx context.Context, sender string) {
	k := key(sender)
	s.cache.Delete(k)
	if s.persist == nil {
		return
	}
	if err := s.persist.DeleteSession(ctx, k); err != nil {
		s.logger.Error("session delete failed", zap.String("sender", k), zap.Error(err))
	}
}
