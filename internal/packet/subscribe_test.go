package packet_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nanomq-go/nanomq/internal/packet"
	"github.com/nanomq-go/nanomq/internal/packet/utils"
)

func buildSubscribe(t *testing.T, packetID uint16, topics []string, qoses []byte) []byte {
	t.Helper()
	var body []byte
	body = append(body, utils.EncodePacketID(packetID)...)
	for i, topic := range topics {
		body = append(body, utils.EncodeString(topic)...)
		body = append(body, qoses[i])
	}

	var raw []byte
	raw = append(raw, byte(packet.SUBSCRIBE)|0x02)
	raw = append(raw, utils.EncodeRemainingLength(len(body))...)
	raw = append(raw, body...)
	return raw
}

func TestSubscribeParseMultipleFilters(t *testing.T) {
	raw := buildSubscribe(t, 10, []string{"a/b", "c/+/d"}, []byte{0x01, 0x02})

	var s packet.SubscribePacket
	require.NoError(t, s.Parse(raw))
	require.Equal(t, uint16(10), s.PacketID)
	require.Len(t, s.Filters, 2)
	require.Equal(t, "a/b", s.Filters[0].Topic)
	require.Equal(t, packet.QoSAtLeastOnce, s.Filters[0].QoS)
	require.Equal(t, "c/+/d", s.Filters[1].Topic)
	require.Equal(t, packet.QoSExactlyOnce, s.Filters[1].QoS)
}

func TestSubscribeParseAcceptsMisplacedWildcardAtWireLevel(t *testing.T) {
	// A misplaced `#`/`+` is still a well-formed packet at decode time;
	// only HandleSubscribe's per-filter validation rejects it, so the
	// other filters in the same SUBSCRIBE still get SUBACK'd.
	raw := buildSubscribe(t, 1, []string{"a/#/b"}, []byte{0x00})

	var s packet.SubscribePacket
	require.NoError(t, s.Parse(raw))
	require.Equal(t, "a/#/b", s.Filters[0].Topic)
}

func TestValidateWildcardsRejectsMultiLevelWildcardNotLast(t *testing.T) {
	require.Error(t, packet.ValidateWildcards("a/#/b"))
}

func TestValidateWildcardsRejectsSingleLevelWildcardNotAlone(t *testing.T) {
	require.Error(t, packet.ValidateWildcards("a+"))
}

func TestValidateWildcardsAcceptsValidFilters(t *testing.T) {
	require.NoError(t, packet.ValidateWildcards("a/b/#"))
	require.NoError(t, packet.ValidateWildcards("a/+/c"))
}

func TestSubscribeParseRejectsBadFlags(t *testing.T) {
	raw := buildSubscribe(t, 1, []string{"a/b"}, []byte{0x00})
	raw[0] = byte(packet.SUBSCRIBE) // drop required 0x02 flag bits

	var s packet.SubscribePacket
	require.Error(t, s.Parse(raw))
}

func TestSubAckEncodeParseRoundTrip(t *testing.T) {
	ack := packet.NewSubAck(10, []byte{packet.SubackMaxQoS1, packet.SubackFailure})
	encoded := ack.Encode()

	var decoded packet.SubackPacket
	require.NoError(t, decoded.Parse(encoded))
	require.Equal(t, uint16(10), decoded.PacketID)
	require.Equal(t, []byte{packet.SubackMaxQoS1, packet.SubackFailure}, decoded.ReturnCodes)
}
