package packet_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nanomq-go/nanomq/internal/packet"
)

func TestAckPacketsEncodeParseRoundTrip(t *testing.T) {
	var puback packet.PubackPacket
	require.NoError(t, puback.Parse(packet.NewPubAck(1)))
	require.Equal(t, uint16(1), puback.PacketID)

	var pubrec packet.PubrecPacket
	require.NoError(t, pubrec.Parse(packet.NewPubRec(2)))
	require.Equal(t, uint16(2), pubrec.PacketID)

	var pubrel packet.PubrelPacket
	require.NoError(t, pubrel.Parse(packet.NewPubRel(3)))
	require.Equal(t, uint16(3), pubrel.PacketID)

	var pubcomp packet.PubcompPacket
	require.NoError(t, pubcomp.Parse(packet.NewPubComp(4)))
	require.Equal(t, uint16(4), pubcomp.PacketID)
}

func TestPubRelReservedFlagsSetInFixedHeader(t *testing.T) {
	raw := packet.NewPubRel(1)
	require.Equal(t, byte(packet.PUBREL)|0x02, raw[0])
}

func TestAckPacketParseRejectsWrongType(t *testing.T) {
	var puback packet.PubackPacket
	require.Error(t, puback.Parse(packet.NewPubRec(1)))
}
