package packet_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nanomq-go/nanomq/internal/packet"
)

func TestPingreqParseValid(t *testing.T) {
	var p packet.PingreqPacket
	require.NoError(t, p.Parse([]byte{byte(packet.PINGREQ), 0x00}))
}

func TestPingreqParseRejectsNonZeroFlags(t *testing.T) {
	var p packet.PingreqPacket
	require.Error(t, p.Parse([]byte{byte(packet.PINGREQ) | 0x01, 0x00}))
}

func TestPingrespEncodeParseRoundTrip(t *testing.T) {
	encoded := packet.CreatePingresp().Encode()

	var p packet.PingrespPacket
	require.NoError(t, p.Parse(encoded))
}
