package broker

import (
	"context"

	"github.com/nanomq-go/nanomq/internal/packet"
)

// HandlePublish resolves a decoded PUBLISH against the live topic tree and
// the retained store. It returns the pipe-fanout descriptor the worker
// state machine drives through WAIT.
func (b *Broker) HandlePublish(pub *packet.PublishPacket, sourcePipeID uint64) (*fanout, error) {
	if pub.Retain {
		b.retainedTree.Retain(pub.Topic, pub.Payload, pub.QoS)
		b.log.LogRetainedMessage(pub.Topic, len(pub.Payload) == 0)
	}

	// Publishes originating from a real client (not the bridge's own
	// re-injection, not a synthesized system event) are offered to the
	// bridge's forwards[] rules.
	if b.bridge != nil && sourcePipeID != 0 {
		go func() {
			if err := b.bridge.Forward(context.Background(), pub); err != nil {
				b.log.LogError("bridge forward", err)
			}
		}()
	}

	subs := b.liveTree.Match(pub.Topic)
	dests := make([]fanoutDest, 0, len(subs))
	for _, sub := range subs {
		qos := minQoS(pub.QoS, sub.qos)
		var packetID *uint16
		if qos > packet.QoSAtMostOnce {
			id := b.nextPacketID()
			packetID = &id
		}
		dests = append(dests, fanoutDest{
			pipeID: sub.pipeID,
			qos:    qos,
			packet: pub.Clone(packetID, qos),
		})
	}

	b.log.LogPublish("", pub.Topic, byte(pub.QoS), pub.Retain, len(dests))
	return newFanout(dests), nil
}

func minQoS(a, b packet.QoSLevel) packet.QoSLevel {
	if a < b {
		return a
	}
	return b
}
