package broker

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nanomq-go/nanomq/internal/packet"
)

func TestDBTreeInsertMatchLiteral(t *testing.T) {
	tree := NewDBTree()
	tree.Insert("sensors/kitchen/temp", 1, "client-1", packet.QoSAtLeastOnce)

	subs := tree.Match("sensors/kitchen/temp")
	require.Len(t, subs, 1)
	require.Equal(t, uint64(1), subs[0].pipeID)
	require.Equal(t, packet.QoSAtLeastOnce, subs[0].qos)
}

func TestDBTreeMatchPlusWildcard(t *testing.T) {
	tree := NewDBTree()
	tree.Insert("sensors/+/temp", 1, "client-1", packet.QoSAtMostOnce)

	require.Len(t, tree.Match("sensors/kitchen/temp"), 1)
	require.Len(t, tree.Match("sensors/kitchen/bath/temp"), 0)
}

func TestDBTreeMatchHashWildcard(t *testing.T) {
	tree := NewDBTree()
	tree.Insert("sensors/#", 1, "client-1", packet.QoSAtMostOnce)

	require.Len(t, tree.Match("sensors/kitchen/temp"), 1)
	require.Len(t, tree.Match("sensors"), 1)
	require.Len(t, tree.Match("other/topic"), 0)
}

func TestDBTreeMatchCollapsesDuplicatePipeToHighestQoS(t *testing.T) {
	tree := NewDBTree()
	tree.Insert("a/b", 1, "client-1", packet.QoSAtMostOnce)
	tree.Insert("a/#", 1, "client-1", packet.QoSExactlyOnce)

	subs := tree.Match("a/b")
	require.Len(t, subs, 1)
	require.Equal(t, packet.QoSExactlyOnce, subs[0].qos)
}

func TestDBTreeDeletePrunesEmptyPath(t *testing.T) {
	tree := NewDBTree()
	tree.Insert("a/b/c", 1, "client-1", packet.QoSAtMostOnce)

	sub, ok := tree.Delete("a/b/c", 1)
	require.True(t, ok)
	require.Equal(t, uint64(1), sub.pipeID)

	require.Empty(t, tree.root.children)
	require.Len(t, tree.Match("a/b/c"), 0)
}

func TestDBTreeDeleteMissingReturnsFalse(t *testing.T) {
	tree := NewDBTree()
	_, ok := tree.Delete("a/b", 99)
	require.False(t, ok)
}

func TestDBTreeRetainAndRetainedFor(t *testing.T) {
	tree := NewDBTree()
	tree.Retain("a/b", []byte("payload"), packet.QoSAtLeastOnce)

	msgs := tree.RetainedFor("a/+")
	require.Len(t, msgs, 1)
	require.Equal(t, "a/b", msgs[0].topic)
	require.Equal(t, []byte("payload"), msgs[0].payload)
}

func TestDBTreeRetainEmptyPayloadClears(t *testing.T) {
	tree := NewDBTree()
	tree.Retain("a/b", []byte("payload"), packet.QoSAtMostOnce)
	tree.Retain("a/b", nil, packet.QoSAtMostOnce)

	require.Len(t, tree.RetainedFor("a/b"), 0)
}

func TestDBTreeRetainedForHashCollectsAll(t *testing.T) {
	tree := NewDBTree()
	tree.Retain("a/b", []byte("1"), packet.QoSAtMostOnce)
	tree.Retain("a/c/d", []byte("2"), packet.QoSAtMostOnce)

	msgs := tree.RetainedFor("a/#")
	require.Len(t, msgs, 2)
}
