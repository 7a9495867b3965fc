package broker

import (
	"context"
	"fmt"

	"github.com/nanomq-go/nanomq/internal/packet"
)

// workState is one of the cooperative states a work item cycles through.
// Exactly one transition runs per scheduler wake-up.
type workState int

const (
	StateInit workState = iota
	StateRecv
	StateWait
	StateSend
	StateBridge
)

func (s workState) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateRecv:
		return "RECV"
	case StateWait:
		return "WAIT"
	case StateSend:
		return "SEND"
	case StateBridge:
		return "BRIDGE"
	default:
		return "UNKNOWN"
	}
}

// proto distinguishes a work item reading the local broker socket from
// one reading the bridge's upstream socket.
type proto int

const (
	ProtoBroker proto = iota
	ProtoBridge
)

// WorkItem is one unit of concurrency in the worker pool. Allocated at
// startup, one per concurrency slot, destroyed at shutdown.
type WorkItem struct {
	state  workState
	proto  proto
	pipeID uint64

	conn *ConnParam

	inbound  []byte
	parsed   *packet.ParsedPacket
	outbound [][]byte

	fan            *fanout
	retainedReplay []retainedMsg

	clientID string
}

// Bind attaches the post-CONNECT conn-param snapshot and client-id to w,
// called once authentication succeeds.
func (w *WorkItem) Bind(cp *ConnParam, clientID string) {
	w.conn = cp
	w.clientID = clientID
}

// IsDisconnect reports whether the packet most recently classified by
// Step was a DISCONNECT, so the transport knows to close the pipe.
func (w *WorkItem) IsDisconnect() bool {
	return w.parsed != nil && w.parsed.IsDisconnect()
}

// PipeID returns the pipe this work item is bound to.
func (w *WorkItem) PipeID() uint64 { return w.pipeID }

// newWorkItem allocates a work item bound to pipeID, reading the local
// broker socket unless bridge is true.
func newWorkItem(pipeID uint64, bridge bool) *WorkItem {
	p := ProtoBroker
	if bridge {
		p = ProtoBridge
	}
	return &WorkItem{state: StateInit, proto: p, pipeID: pipeID}
}

// Step runs exactly one state transition for w, driven by the arrival of
// raw (non-nil on a fresh receive) or, once in WAIT, by resuming the same
// work item to process its previously classified packet. The outbound
// slice returned is what the caller (internal/transport) must write to
// the pipe before re-entering Step.
//
// An explicit state enum driven by a step function is easier to audit
// than cooperative tasks scattered across channels and goroutines.
func (b *Broker) Step(w *WorkItem, raw []byte) ([][]byte, error) {
	if err := b.pool.Acquire(context.Background()); err != nil {
		return nil, err
	}
	defer b.pool.Release()

	switch w.state {
	case StateInit:
		w.state = StateRecv
		if w.proto == ProtoBridge {
			w.state = StateBridge
		}
		return nil, nil

	case StateBridge:
		w.state = StateRecv
		return b.stepRecv(w, raw)

	case StateRecv:
		return b.stepRecv(w, raw)

	case StateWait:
		return b.stepWait(w)

	case StateSend:
		w.state = StateRecv
		if w.proto == ProtoBridge {
			w.state = StateBridge
		}
		w.outbound = nil
		return nil, nil

	default:
		return nil, fmt.Errorf("broker: work item in unexpected state %s", w.state)
	}
}

func (b *Broker) stepRecv(w *WorkItem, raw []byte) ([][]byte, error) {
	parsed, err := packet.Parse(raw)
	if err != nil {
		// Packet decode failure: drop and stay in RECV, unless this was
		// the very first (CONNECT) packet — the transport owns that
		// disconnect decision since it holds the pipe.
		return nil, err
	}
	w.parsed = parsed
	w.inbound = raw

	if parsed.IsDisconnect() {
		w.state = StateWait
		return b.stepDisconnect(w)
	}

	w.state = StateWait
	return nil, nil
}

// HandlePipeLoss runs the same will-promotion/session-cache/teardown
// sequence as a received DISCONNECT, for a pipe that disappeared without
// sending one.
func (b *Broker) HandlePipeLoss(w *WorkItem) {
	_, _ = b.stepDisconnect(w)
	b.qos.CleanupClient(w.pipeID)
}

func (b *Broker) stepDisconnect(w *WorkItem) ([][]byte, error) {
	if w.conn != nil && w.conn.WillFlag {
		willPub := composeWill(w.conn)
		fan, err := b.HandlePublish(willPub, w.pipeID)
		if err == nil {
			b.dispatchFanoutSync(fan)
		}
	}

	if w.conn != nil && !w.conn.CleanStart {
		// Session record created on DISCONNECT when clean-start=false;
		// the pipe index/tree entries stay in place under the cached
		// snapshot until BindSession rebinds them to a new pipe-id on
		// reconnect.
		b.CacheSession(w.clientID, w.conn, w.pipeID)
	} else {
		topics := b.pipes.Del(w.pipeID)
		for _, topic := range topics {
			b.liveTree.Delete(topic, w.pipeID)
		}
	}

	evt := composeDisconnectEvent(w.clientID, w.conn == nil)
	if fan, err := b.HandlePublish(evt, 0); err == nil {
		b.dispatchFanoutSync(fan)
	}

	if w.conn != nil {
		w.conn.Release()
		w.conn = nil
	}

	w.state = StateRecv
	return nil, nil
}

// dispatchFanoutSync is the synchronous fallback used for will and event
// publications composed inline during teardown, where no further
// suspension point is needed — every destination clone is handed straight
// to the transport's per-pipe writers.
func (b *Broker) dispatchFanoutSync(fan *fanout) {
	for !fan.Done() {
		dest := fan.Next()
		b.deliver(dest.pipeID, dest.packet)
	}
}

// deliver writes pkt to pipeID's outbound queue via the registered
// transport sink. Set by internal/transport at startup.
func (b *Broker) deliver(pipeID uint64, pkt *packet.PublishPacket) {
	if b.sink != nil {
		b.sink(pipeID, pkt.Encode())
	}
}

func (b *Broker) stepWait(w *WorkItem) ([][]byte, error) {
	p := w.parsed
	switch p.Type {
	case packet.PINGREQ:
		w.state = StateSend
		return [][]byte{packet.CreatePingresp().Encode()}, nil

	case packet.PUBREC:
		b.qos.HandlePubRec(w.pipeID, p.Pubrec.PacketID)
		w.state = StateSend
		return [][]byte{packet.NewPubRel(p.Pubrec.PacketID)}, nil

	case packet.SUBSCRIBE:
		replays, codes := b.HandleSubscribe(w.pipeID, w.clientID, p.Subscribe)
		w.state = StateSend
		out := make([][]byte, 0, len(replays)+1)
		for _, r := range replays {
			out = append(out, (&packet.PublishPacket{Topic: r.topic, Payload: r.payload, QoS: r.qos, Retain: true}).Encode())
		}
		out = append(out, packet.NewSubAck(p.Subscribe.PacketID, codes).Encode())
		return out, nil

	case packet.UNSUBSCRIBE:
		b.HandleUnsubscribe(w.pipeID, w.clientID, p.Unsubscribe)
		w.state = StateSend
		return [][]byte{packet.NewUnsubAck(p.Unsubscribe.PacketID).Encode()}, nil

	case packet.PUBLISH:
		return b.stepWaitPublish(w)

	case packet.PUBACK:
		b.qos.HandlePubAck(w.pipeID, p.Puback.PacketID)
		w.state = StateRecv
		return nil, nil

	case packet.PUBREL:
		b.qos.HandleIncomingPubRel(w.pipeID, p.Pubrel.PacketID)
		w.state = StateSend
		return [][]byte{packet.NewPubComp(p.Pubrel.PacketID)}, nil

	case packet.PUBCOMP:
		b.qos.HandlePubComp(w.pipeID, p.Pubcomp.PacketID)
		w.state = StateRecv
		return nil, nil

	default:
		// No matching branch: log and return to RECV.
		b.log.LogError("stepWait", fmt.Errorf("unhandled packet type %s in WAIT", p.Type))
		w.state = StateRecv
		return nil, nil
	}
}

func (b *Broker) stepWaitPublish(w *WorkItem) ([][]byte, error) {
	pub := w.parsed.Publish

	if pub.QoS == packet.QoSExactlyOnce && pub.PacketID != nil {
		if b.qos.HandleIncomingQoS2Publish(w.pipeID, *pub.PacketID) {
			// Already seen this packet-id: the client never got our
			// PUBREC and resent the PUBLISH. Re-ack without running the
			// fan-out again, or QoS2's exactly-once guarantee breaks.
			w.state = StateSend
			return [][]byte{packet.NewPubRec(*pub.PacketID)}, nil
		}
	}

	fan, err := b.HandlePublish(pub, w.pipeID)
	if err != nil {
		w.state = StateRecv
		return nil, err
	}
	w.fan = fan

	// The two branches below (total==0 vs total>0) are mutually
	// exclusive, so the fanout is freed exactly once regardless of
	// which is taken.
	if fan.Total() == 0 {
		w.fan = nil
		w.state = StateRecv
		var ack []byte
		switch pub.QoS {
		case packet.QoSAtLeastOnce:
			ack = packet.NewPubAck(*pub.PacketID)
		case packet.QoSExactlyOnce:
			ack = packet.NewPubRec(*pub.PacketID)
		}
		if ack != nil {
			w.state = StateSend
			return [][]byte{ack}, nil
		}
		return nil, nil
	}

	var out [][]byte
	for !fan.Done() {
		dest := fan.Next()
		if dest.packet.PacketID != nil {
			switch dest.qos {
			case packet.QoSAtLeastOnce:
				b.qos.AddPendingQoS1(dest.pipeID, *dest.packet.PacketID, dest.packet)
			case packet.QoSExactlyOnce:
				b.qos.AddPendingQoS2(dest.pipeID, *dest.packet.PacketID, dest.packet)
			}
		}
		if dest.pipeID == w.pipeID {
			out = append(out, dest.packet.Encode())
		} else {
			b.deliver(dest.pipeID, dest.packet)
		}
	}
	w.fan = nil

	switch pub.QoS {
	case packet.QoSAtLeastOnce:
		out = append(out, packet.NewPubAck(*pub.PacketID))
	case packet.QoSExactlyOnce:
		out = append(out, packet.NewPubRec(*pub.PacketID))
	}

	if len(out) == 0 {
		w.state = StateRecv
		return nil, nil
	}
	w.state = StateSend
	return out, nil
}
