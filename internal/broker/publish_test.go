package broker

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nanomq-go/nanomq/internal/packet"
)

func TestHandlePublishRetainsWhenFlagged(t *testing.T) {
	b := New(testConfig())
	pub := &packet.PublishPacket{Topic: "a/b", Payload: []byte("x"), Retain: true, QoS: packet.QoSAtMostOnce}

	_, err := b.HandlePublish(pub, 1)
	require.NoError(t, err)

	msgs := b.retainedTree.RetainedFor("a/b")
	require.Len(t, msgs, 1)
}

func TestHandlePublishFansOutToMatchingSubscribersAtMinQoS(t *testing.T) {
	b := New(testConfig())
	b.liveTree.Insert("a/b", 2, "client-2", packet.QoSAtMostOnce)

	pub := &packet.PublishPacket{Topic: "a/b", Payload: []byte("x"), QoS: packet.QoSExactlyOnce}
	fan, err := b.HandlePublish(pub, 1)
	require.NoError(t, err)
	require.Equal(t, 1, fan.Total())

	dest := fan.Next()
	require.Equal(t, uint64(2), dest.pipeID)
	require.Equal(t, packet.QoSAtMostOnce, dest.qos)
	require.Nil(t, dest.packet.PacketID)
}

func TestHandlePublishNoSubscribersYieldsEmptyFanout(t *testing.T) {
	b := New(testConfig())
	pub := &packet.PublishPacket{Topic: "nobody/listens", Payload: []byte("x"), QoS: packet.QoSAtMostOnce}

	fan, err := b.HandlePublish(pub, 1)
	require.NoError(t, err)
	require.Equal(t, 0, fan.Total())
	require.True(t, fan.Done())
}

func TestHandlePublishAssignsPacketIDForQoSAboveZero(t *testing.T) {
	b := New(testConfig())
	b.liveTree.Insert("a/b", 2, "client-2", packet.QoSAtLeastOnce)

	pub := &packet.PublishPacket{Topic: "a/b", Payload: []byte("x"), QoS: packet.QoSAtLeastOnce}
	fan, err := b.HandlePublish(pub, 1)
	require.NoError(t, err)

	dest := fan.Next()
	require.NotNil(t, dest.packet.PacketID)
}
