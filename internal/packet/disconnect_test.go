package packet_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nanomq-go/nanomq/internal/packet"
)

func TestDisconnectEncodeParseRoundTrip(t *testing.T) {
	encoded := (&packet.DisconnectPacket{}).Encode()

	var d packet.DisconnectPacket
	require.NoError(t, d.Parse(encoded))
}

func TestDisconnectParseRejectsNonZeroRemainingLength(t *testing.T) {
	var d packet.DisconnectPacket
	require.Error(t, d.Parse([]byte{byte(packet.DISCONNECT), 0x01}))
}
