package broker

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// cachedSession is a retained session record: the conn-param snapshot held
// at cache time, the pipe-id it was cached from, and the subscription
// filters to restore.
type cachedSession struct {
	ClientID      string
	ConnParam     *ConnParam
	PipeID        uint64
	Subscriptions []string
}

// SessionCache stores cachedSessions for clean-start=false reconnects,
// keyed by client-id. Backed by patrickmn/go-cache with a configurable
// TTL so abandoned sessions are evicted after ttl of inactivity rather
// than accumulating forever.
type SessionCache struct {
	cache *cache.Cache
}

// NewSessionCache returns a cache whose entries expire after ttl (and are
// swept every ttl/2, go-cache's usual cleanup cadence).
func NewSessionCache(ttl time.Duration) *SessionCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &SessionCache{cache: cache.New(ttl, ttl/2)}
}

// Store caches a session for clientID, cloning cp so the cache holds its
// own reference.
func (s *SessionCache) Store(clientID string, cp *ConnParam, pipeID uint64, subscriptions []string) {
	s.cache.SetDefault(clientID, &cachedSession{
		ClientID:      clientID,
		ConnParam:     cp.Clone(),
		PipeID:        pipeID,
		Subscriptions: append([]string(nil), subscriptions...),
	})
}

// Get returns the cached session for clientID, if any, without removing
// it.
func (s *SessionCache) Get(clientID string) (*cachedSession, bool) {
	v, ok := s.cache.Get(clientID)
	if !ok {
		return nil, false
	}
	return v.(*cachedSession), true
}

// Take removes and returns the cached session for clientID, for CONNECT
// restoration (a session is consumed exactly once).
func (s *SessionCache) Take(clientID string) (*cachedSession, bool) {
	v, ok := s.cache.Get(clientID)
	if !ok {
		return nil, false
	}
	s.cache.Delete(clientID)
	return v.(*cachedSession), true
}

// Evict removes clientID's cached session outright, for an explicit
// clean-start=true CONNECT.
func (s *SessionCache) Evict(clientID string) {
	s.cache.Delete(clientID)
}
