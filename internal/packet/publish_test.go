package packet_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nanomq-go/nanomq/internal/packet"
)

func TestPublishEncodeParseRoundTrip(t *testing.T) {
	id := uint16(42)
	pub := &packet.PublishPacket{
		QoS:      packet.QoSAtLeastOnce,
		Topic:    "sensors/kitchen/temp",
		PacketID: &id,
		Payload:  []byte("21.5"),
	}

	encoded := pub.Encode()

	var decoded packet.PublishPacket
	require.NoError(t, decoded.Parse(encoded))
	require.Equal(t, pub.Topic, decoded.Topic)
	require.Equal(t, pub.QoS, decoded.QoS)
	require.Equal(t, pub.Payload, decoded.Payload)
	require.NotNil(t, decoded.PacketID)
	require.Equal(t, id, *decoded.PacketID)
}

func TestPublishParseRejectsQoS0WithDUP(t *testing.T) {
	var p packet.PublishPacket
	raw := []byte{byte(packet.PUBLISH) | 0x08, 0x00}
	require.Error(t, p.Parse(raw))
}

func TestPublishParseRejectsWildcardTopic(t *testing.T) {
	pub := &packet.PublishPacket{Topic: "a/+/c", Payload: []byte("x")}
	encoded := pub.Encode()

	var decoded packet.PublishPacket
	require.Error(t, decoded.Parse(encoded))
}

func TestPublishCloneOverridesQoSAndPacketID(t *testing.T) {
	original := &packet.PublishPacket{
		QoS:     packet.QoSExactlyOnce,
		Topic:   "a/b",
		Payload: []byte("payload"),
	}
	id := uint16(7)
	clone := original.Clone(&id, packet.QoSAtLeastOnce)

	require.Equal(t, packet.QoSAtLeastOnce, clone.QoS)
	require.NotNil(t, clone.PacketID)
	require.Equal(t, id, *clone.PacketID)
	require.Equal(t, original.Topic, clone.Topic)
	require.Equal(t, original.Payload, clone.Payload)
}

func TestPublishCloneQoS0HasNoPacketID(t *testing.T) {
	original := &packet.PublishPacket{Topic: "a/b", Payload: []byte("x")}
	clone := original.Clone(nil, packet.QoSAtMostOnce)
	require.Nil(t, clone.PacketID)
}
