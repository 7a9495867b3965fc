package broker

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nanomq-go/nanomq/internal/packet"
)

func TestComposeWillBuildsPublishFromConnParam(t *testing.T) {
	cp := NewConnParam("client-1", true, byte(packet.QoSAtLeastOnce), true, "last/will", []byte("bye"), true, 60, 4, "", nil)
	pub := composeWill(cp)

	require.Equal(t, "last/will", pub.Topic)
	require.Equal(t, []byte("bye"), pub.Payload)
	require.Equal(t, packet.QoSAtLeastOnce, pub.QoS)
	require.True(t, pub.Retain)
}

func TestComposeConnectEventCarriesFlagsAndSessionPresent(t *testing.T) {
	pub := composeConnectEvent("client-1", 0x02, true)
	require.Equal(t, connectEventTopic, pub.Topic)

	var evt connectEvent
	require.NoError(t, json.Unmarshal(pub.Payload, &evt))
	require.Equal(t, "client-1", evt.ClientID)
	require.Equal(t, byte(0x02), evt.ConnectFlags)
	require.True(t, evt.SessionPresent)
}

func TestComposeDisconnectEventCarriesAbnormalFlag(t *testing.T) {
	pub := composeDisconnectEvent("client-1", true)
	require.Equal(t, disconnectEventTopic, pub.Topic)

	var evt disconnectEvent
	require.NoError(t, json.Unmarshal(pub.Payload, &evt))
	require.Equal(t, "client-1", evt.ClientID)
	require.True(t, evt.Abnormal)
}
