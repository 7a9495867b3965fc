package broker

import (
	"github.com/nanomq-go/nanomq/internal/packet"
)

// HandleSubscribe inserts ctx for every filter in sub into the live tree
// and pipe index, collects retained-message replays, and builds the
// SUBACK return-code list. Retained replays are returned separately so
// the worker can dispatch them before the SUBACK, per the ordering
// decision recorded in DESIGN.md.
func (b *Broker) HandleSubscribe(pipeID uint64, clientID string, sub *packet.SubscribePacket) ([]retainedMsg, []byte) {
	returnCodes := make([]byte, len(sub.Filters))
	var replays []retainedMsg

	for i, filter := range sub.Filters {
		if err := validateFilterForSubscribe(filter.Topic); err != nil {
			returnCodes[i] = packet.SubackFailure
			continue
		}

		b.liveTree.Insert(filter.Topic, pipeID, clientID, filter.QoS)
		b.pipes.Add(pipeID, filter.Topic)
		returnCodes[i] = grantedQoS(filter.QoS)

		replays = append(replays, b.retainedTree.RetainedFor(filter.Topic)...)
		b.log.LogSubscription("subscribe", clientID, filter.Topic, byte(filter.QoS))
	}

	return replays, returnCodes
}

// HandleUnsubscribe deletes every listed filter from the live tree and
// pipe index.
func (b *Broker) HandleUnsubscribe(pipeID uint64, clientID string, unsub *packet.UnsubscribePacket) {
	for _, filter := range unsub.TopicFilters {
		b.liveTree.Delete(filter, pipeID)
		b.pipes.Remove(pipeID, filter)
		b.log.LogSubscription("unsubscribe", clientID, filter, 0)
	}
}

func grantedQoS(requested packet.QoSLevel) byte {
	switch requested {
	case packet.QoSAtMostOnce:
		return packet.SubackMaxQoS0
	case packet.QoSAtLeastOnce:
		return packet.SubackMaxQoS1
	case packet.QoSExactlyOnce:
		return packet.SubackMaxQoS2
	default:
		return packet.SubackFailure
	}
}

func validateFilterForSubscribe(filter string) error {
	if filter == "" {
		return errEmptyFilter
	}
	return packet.ValidateWildcards(filter)
}
