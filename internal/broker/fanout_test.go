package broker

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nanomq-go/nanomq/internal/packet"
)

func TestFanoutEmptyIsImmediatelyDone(t *testing.T) {
	f := newFanout(nil)
	require.Equal(t, 0, f.Total())
	require.True(t, f.Done())
}

func TestFanoutNextAdvancesInOrder(t *testing.T) {
	dests := []fanoutDest{
		{pipeID: 1, qos: packet.QoSAtMostOnce, packet: &packet.PublishPacket{Topic: "a"}},
		{pipeID: 2, qos: packet.QoSAtLeastOnce, packet: &packet.PublishPacket{Topic: "a"}},
	}
	f := newFanout(dests)
	require.Equal(t, 2, f.Total())

	require.False(t, f.Done())
	first := f.Next()
	require.Equal(t, uint64(1), first.pipeID)

	require.False(t, f.Done())
	second := f.Next()
	require.Equal(t, uint64(2), second.pipeID)

	require.True(t, f.Done())
}
