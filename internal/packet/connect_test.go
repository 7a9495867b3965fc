package packet_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nanomq-go/nanomq/internal/packet"
	"github.com/nanomq-go/nanomq/internal/packet/utils"
)

func buildConnect(t *testing.T, clientID string, cleanStart bool, flagsExtra byte) []byte {
	t.Helper()
	var body []byte
	body = append(body, utils.EncodeString("MQTT")...)
	body = append(body, 4) // protocol level 3.1.1
	flags := flagsExtra
	if cleanStart {
		flags |= 0x02
	}
	body = append(body, flags)
	body = append(body, 0x00, 0x3C) // keep-alive 60s
	body = append(body, utils.EncodeString(clientID)...)

	var raw []byte
	raw = append(raw, byte(packet.CONNECT))
	raw = append(raw, utils.EncodeRemainingLength(len(body))...)
	raw = append(raw, body...)
	return raw
}

func TestConnectParseValid(t *testing.T) {
	raw := buildConnect(t, "client-1", true, 0)

	var c packet.ConnectPacket
	require.NoError(t, c.Parse(raw))
	require.Equal(t, "client-1", c.ClientID)
	require.True(t, c.CleanStart)
	require.Equal(t, uint16(60), c.KeepAlive)
	require.False(t, c.AssignedClientID)
}

func TestConnectParseAssignsClientIDWhenEmptyAndCleanStart(t *testing.T) {
	raw := buildConnect(t, "", true, 0)

	var c packet.ConnectPacket
	require.NoError(t, c.Parse(raw))
	require.True(t, c.AssignedClientID)
	require.NotEmpty(t, c.ClientID)
}

func TestConnectParseRejectsEmptyClientIDWithoutCleanStart(t *testing.T) {
	raw := buildConnect(t, "", false, 0)

	var c packet.ConnectPacket
	require.Error(t, c.Parse(raw))
}

func TestConnectParseRejectsBadProtocolName(t *testing.T) {
	var body []byte
	body = append(body, utils.EncodeString("BOGUS")...)
	body = append(body, 4, 0x02, 0x00, 0x3C)
	body = append(body, utils.EncodeString("c")...)

	var raw []byte
	raw = append(raw, byte(packet.CONNECT))
	raw = append(raw, utils.EncodeRemainingLength(len(body))...)
	raw = append(raw, body...)

	var c packet.ConnectPacket
	require.Error(t, c.Parse(raw))
}

func TestValidateClientIDRejectsOversizedID(t *testing.T) {
	require.Error(t, packet.ValidateClientID("this-client-id-is-definitely-too-long"))
}

func TestValidateClientIDAcceptsAlphanumeric(t *testing.T) {
	require.NoError(t, packet.ValidateClientID("Client123"))
}
