package broker

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nanomq-go/nanomq/internal/packet"
)

func TestHandleSubscribeInsertsAndGrantsQoS(t *testing.T) {
	b := New(testConfig())
	sub := &packet.SubscribePacket{
		PacketID: 1,
		Filters: []packet.SubscribeFilter{
			{Topic: "a/b", QoS: packet.QoSAtLeastOnce},
		},
	}

	_, codes := b.HandleSubscribe(1, "client-1", sub)
	require.Equal(t, []byte{packet.SubackMaxQoS1}, codes)
	require.Len(t, b.liveTree.Match("a/b"), 1)
	require.Equal(t, []string{"a/b"}, b.pipes.GetTopics(1))
}

func TestHandleSubscribeReplaysRetained(t *testing.T) {
	b := New(testConfig())
	b.retainedTree.Retain("a/b", []byte("hello"), packet.QoSAtMostOnce)

	sub := &packet.SubscribePacket{
		PacketID: 1,
		Filters:  []packet.SubscribeFilter{{Topic: "a/b", QoS: packet.QoSAtMostOnce}},
	}
	replays, codes := b.HandleSubscribe(1, "client-1", sub)

	require.Len(t, replays, 1)
	require.Equal(t, []byte("hello"), replays[0].payload)
	require.Equal(t, []byte{packet.SubackMaxQoS0}, codes)
}

func TestHandleSubscribeRejectsEmptyFilter(t *testing.T) {
	b := New(testConfig())
	sub := &packet.SubscribePacket{
		PacketID: 1,
		Filters:  []packet.SubscribeFilter{{Topic: "", QoS: packet.QoSAtMostOnce}},
	}
	_, codes := b.HandleSubscribe(1, "client-1", sub)
	require.Equal(t, []byte{packet.SubackFailure}, codes)
}

func TestHandleSubscribeRejectsOneBadFilterWithoutDroppingOthers(t *testing.T) {
	b := New(testConfig())
	sub := &packet.SubscribePacket{
		PacketID: 1,
		Filters: []packet.SubscribeFilter{
			{Topic: "a/#/b", QoS: packet.QoSAtMostOnce},
			{Topic: "c/d", QoS: packet.QoSAtLeastOnce},
		},
	}

	_, codes := b.HandleSubscribe(1, "client-1", sub)
	require.Equal(t, []byte{packet.SubackFailure, packet.SubackMaxQoS1}, codes)
	require.Len(t, b.liveTree.Match("a/x/b"), 0)
	require.Len(t, b.liveTree.Match("c/d"), 1)
	require.Equal(t, []string{"c/d"}, b.pipes.GetTopics(1))
}

func TestHandleUnsubscribeRemovesFromTreeAndIndex(t *testing.T) {
	b := New(testConfig())
	sub := &packet.SubscribePacket{
		PacketID: 1,
		Filters:  []packet.SubscribeFilter{{Topic: "a/b", QoS: packet.QoSAtMostOnce}},
	}
	b.HandleSubscribe(1, "client-1", sub)

	unsub := &packet.UnsubscribePacket{PacketID: 2, TopicFilters: []string{"a/b"}}
	b.HandleUnsubscribe(1, "client-1", unsub)

	require.Len(t, b.liveTree.Match("a/b"), 0)
	require.Empty(t, b.pipes.GetTopics(1))
}
