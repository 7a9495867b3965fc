package broker

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPipeIndexAddAndGetTopics(t *testing.T) {
	p := NewPipeIndex()
	p.Add(1, "a/b")
	p.Add(1, "a/b")
	p.Add(1, "c/d")

	require.True(t, p.CheckID(1))
	require.Equal(t, []string{"a/b", "c/d"}, p.GetTopics(1))
}

func TestPipeIndexRemove(t *testing.T) {
	p := NewPipeIndex()
	p.Add(1, "a/b")
	p.Add(1, "c/d")
	p.Remove(1, "a/b")

	require.Equal(t, []string{"c/d"}, p.GetTopics(1))
}

func TestPipeIndexDelReturnsAndClears(t *testing.T) {
	p := NewPipeIndex()
	p.Add(1, "a/b")

	topics := p.Del(1)
	require.Equal(t, []string{"a/b"}, topics)
	require.False(t, p.CheckID(1))
}

func TestPipeIndexRebind(t *testing.T) {
	p := NewPipeIndex()
	p.Add(1, "a/b")

	p.Rebind(1, 2)
	require.False(t, p.CheckID(1))
	require.Equal(t, []string{"a/b"}, p.GetTopics(2))
}
