package services

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

// SessionStore keeps the live sessions of this process. Sessions idle for
// longer than ttl expire and are purged by the cache janitor.
type SessionStore struct {
	mu    sync.Mutex
	cache *cache.Cache
}

func NewSessionStore(ttl time.Duration, log logrus.FieldLogger) *SessionStore {
	c := newExpiringCache(ttl)
	c.OnEvicted(func(id string, _ interface{}) {
		log.WithField("session_id", id).Debug("Session released")
	})
	return &SessionStore{cache: c}
}

func (s *SessionStore) Put(sess *Session) {
	s.cache.Set(sess.ID, sess, cache.DefaultExpiration)
}

// Get returns the session and refreshes its idle timer.
func (s *SessionStore) Get(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	x, found := s.cache.Get(id)
	if !found {
		return nil, ErrSessionNotFound
	}
	sess := x.(*Session)
	s.cache.Set(id, sess, cache.DefaultExpiration)
	return sess, nil
}

func (s *SessionStore) Delete(id string) {
	s.mu.Lock()
	s.cache.Delete(id)
	s.mu.Unlock()
}

// Len counts stored sessions, expired ones included until the janitor runs.
func (s *SessionStore) Len() int {
	return s.cache.ItemCount()
}

// newExpiringCache returns a cache whose janitor runs twice per ttl. A ttl of
// zero or less disables expiry.
func newExpiringCache(ttl time.Duration) *cache.Cache {
	if ttl <= 0 {
		return cache.New(cache.NoExpiration, 0)
	}
	sweep := ttl / 2
	if sweep < time.Millisecond {
		sweep = time.Millisecond
	}
	return cache.New(ttl, sweep)
}
