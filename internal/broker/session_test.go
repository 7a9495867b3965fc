package broker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSessionCacheStoreAndTake(t *testing.T) {
	s := NewSessionCache(time.Minute)
	cp := NewConnParam("client-1", false, 0, false, "", nil, false, 60, 4, "", nil)

	s.Store("client-1", cp, 7, []string{"a/b"})
	require.Equal(t, int32(2), cp.RefCount())

	taken, ok := s.Take("client-1")
	require.True(t, ok)
	require.Equal(t, uint64(7), taken.PipeID)
	require.Equal(t, []string{"a/b"}, taken.Subscriptions)

	_, ok = s.Take("client-1")
	require.False(t, ok)
}

func TestSessionCacheGetDoesNotConsume(t *testing.T) {
	s := NewSessionCache(time.Minute)
	cp := NewConnParam("client-1", false, 0, false, "", nil, false, 60, 4, "", nil)
	s.Store("client-1", cp, 1, nil)

	_, ok := s.Get("client-1")
	require.True(t, ok)
	_, ok = s.Get("client-1")
	require.True(t, ok)
}

func TestSessionCacheEvict(t *testing.T) {
	s := NewSessionCache(time.Minute)
	cp := NewConnParam("client-1", false, 0, false, "", nil, false, 60, 4, "", nil)
	s.Store("client-1", cp, 1, nil)

	s.Evict("client-1")
	_, ok := s.Get("client-1")
	require.False(t, ok)
}

func TestSessionCacheTakeUnknownClientMisses(t *testing.T) {
	s := NewSessionCache(time.Minute)
	_, ok := s.Take("nobody")
	require.False(t, ok)
}
