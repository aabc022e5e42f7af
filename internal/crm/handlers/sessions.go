package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/gartstein/crm/internal/crm/view"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
)

// ViewFactory builds a fresh list view for a new session.
type ViewFactory func(ctx context.Context) (*view.ListView, error)

type session struct {
	mu   sync.Mutex
	view *view.ListView
}

// SessionStore keeps one list view per user, evicting the least recently
// used session beyond capacity and any session idle for longer than ttl.
type SessionStore struct {
	mu      sync.Mutex
	cache   *expirable.LRU[string, *session]
	factory ViewFactory
	logger  *zap.Logger
}

func NewSessionStore(capacity int, ttl time.Duration, factory ViewFactory, logger *zap.Logger) *SessionStore {
	logger = logger.Named("sessions")
	onEvict := func(user string, _ *session) {
		logger.Debug("Session evicted", zap.String("user", user))
	}
	return &SessionStore{
		cache:   expirable.NewLRU[string, *session](capacity, onEvict, ttl),
		factory: factory,
		logger:  logger,
	}
}

// With runs fn on user's list view, creating the view on first use.
// Calls for the same user are serialized.
func (s *SessionStore) With(ctx context.Context, user string, fn func(*view.ListView) error) error {
	sess, err := s.get(ctx, user)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return fn(sess.view)
}

func (s *SessionStore) get(ctx context.Context, user string) (*session, error) {
	if sess, ok := s.touch(user); ok {
		return sess, nil
	}

	// Views are built without holding the store lock.
	v, err := s.factory(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.cache.Get(user); ok {
		// A concurrent first request for the same user got there first.
		s.cache.Add(user, sess)
		return sess, nil
	}
	sess := &session{view: v}
	s.cache.Add(user, sess)
	s.logger.Debug("Session created", zap.String("user", user))
	return sess, nil
}

// touch returns user's live session and resets its idle deadline.
func (s *SessionStore) touch(user string) (*session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.cache.Get(user)
	if ok {
		s.cache.Add(user, sess)
	}
	return sess, ok
}

// Len returns the number of live sessions.
func (s *SessionStore) Len() int {
	return s.cache.Len()
}
