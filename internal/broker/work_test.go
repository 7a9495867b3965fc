package broker

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nanomq-go/nanomq/internal/packet"
)

func TestStepInitTransitionsToRecv(t *testing.T) {
	b := New(testConfig())
	w := newWorkItem(1, false)

	out, err := b.Step(w, nil)
	require.NoError(t, err)
	require.Nil(t, out)
	require.Equal(t, StateRecv, w.state)
}

func TestStepInitBridgeTransitionsToBridge(t *testing.T) {
	b := New(testConfig())
	w := newWorkItem(1, true)

	_, err := b.Step(w, nil)
	require.NoError(t, err)
	require.Equal(t, StateBridge, w.state)
}

func TestStepPingreqRespondsWithPingresp(t *testing.T) {
	b := New(testConfig())
	w := newWorkItem(1, false)
	w.state = StateRecv

	pingreq := []byte{byte(packet.PINGREQ), 0x00}
	out, err := b.Step(w, pingreq)
	require.NoError(t, err)
	require.Nil(t, out)
	require.Equal(t, StateWait, w.state)

	out, err = b.Step(w, nil)
	require.NoError(t, err)
	require.Equal(t, [][]byte{packet.CreatePingresp().Encode()}, out)
	require.Equal(t, StateSend, w.state)
}

func TestStepPublishQoS0NoSubscribersReturnsToRecv(t *testing.T) {
	b := New(testConfig())
	w := newWorkItem(1, false)
	w.state = StateRecv

	pub := &packet.PublishPacket{Topic: "a/b", Payload: []byte("x"), QoS: packet.QoSAtMostOnce}
	raw := pub.Encode()

	_, err := b.Step(w, raw)
	require.NoError(t, err)
	require.Equal(t, StateWait, w.state)

	out, err := b.Step(w, nil)
	require.NoError(t, err)
	require.Nil(t, out)
	require.Equal(t, StateRecv, w.state)
}

func TestStepPublishQoS1WithNoSubscribersReturnsPubAck(t *testing.T) {
	b := New(testConfig())
	w := newWorkItem(1, false)
	w.state = StateRecv

	id := uint16(5)
	pub := &packet.PublishPacket{Topic: "a/b", Payload: []byte("x"), QoS: packet.QoSAtLeastOnce, PacketID: &id}
	raw := pub.Encode()

	_, err := b.Step(w, raw)
	require.NoError(t, err)

	out, err := b.Step(w, nil)
	require.NoError(t, err)
	require.Equal(t, [][]byte{packet.NewPubAck(id)}, out)
	require.Equal(t, StateSend, w.state)
}

func TestStepDisconnectPromotesWill(t *testing.T) {
	b := New(testConfig())
	b.liveTree.Insert("last/will", 2, "client-2", packet.QoSAtMostOnce)

	var delivered []uint64
	b.SetSink(func(pipeID uint64, encoded []byte) { delivered = append(delivered, pipeID) })

	w := newWorkItem(1, false)
	w.state = StateRecv
	w.clientID = "client-1"
	w.conn = NewConnParam("client-1", true, byte(packet.QoSAtMostOnce), false, "last/will", []byte("bye"), true, 60, 4, "", nil)

	disconnect := []byte{byte(packet.DISCONNECT), 0x00}
	_, err := b.Step(w, disconnect)
	require.NoError(t, err)
	require.Equal(t, []uint64{2}, delivered)
	require.Equal(t, StateRecv, w.state)
	require.Nil(t, w.conn)
}

func TestStepPublishQoS2ResendDoesNotRedispatchFanout(t *testing.T) {
	b := New(testConfig())
	b.liveTree.Insert("a/b", 2, "client-2", packet.QoSExactlyOnce)

	deliveries := 0
	b.SetSink(func(pipeID uint64, encoded []byte) { deliveries++ })

	w := newWorkItem(1, false)
	w.state = StateRecv
	w.clientID = "client-1"

	id := uint16(7)
	pub := &packet.PublishPacket{Topic: "a/b", Payload: []byte("x"), QoS: packet.QoSExactlyOnce, PacketID: &id}
	raw := pub.Encode()

	_, err := b.Step(w, raw)
	require.NoError(t, err)
	out, err := b.Step(w, nil)
	require.NoError(t, err)
	require.Equal(t, [][]byte{packet.NewPubRec(id)}, out)
	require.Equal(t, 1, deliveries)

	// Client never got the PUBREC and resends the identical PUBLISH.
	w.state = StateRecv
	_, err = b.Step(w, raw)
	require.NoError(t, err)
	out, err = b.Step(w, nil)
	require.NoError(t, err)
	require.Equal(t, [][]byte{packet.NewPubRec(id)}, out)
	require.Equal(t, 1, deliveries, "duplicate QoS2 publish must not be re-dispatched to subscribers")
}

func TestHandlePipeLossCleansUpQoSState(t *testing.T) {
	b := New(testConfig())
	w := newWorkItem(1, false)
	w.clientID = "client-1"
	b.qos.AddPendingQoS1(1, 9, &packet.PublishPacket{Topic: "a"})

	b.HandlePipeLoss(w)

	p1, _, _ := b.qos.GetStatistics()
	require.Equal(t, 0, p1)
}
