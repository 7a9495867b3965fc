package packet

import (
	"github.com/nanomq-go/nanomq/internal/packet/errs"
	"github.com/nanomq-go/nanomq/internal/packet/utils"
)

// UnsubscribePacket is the decoded form of an UNSUBSCRIBE control packet.
type UnsubscribePacket struct {
	PacketID     uint16
	TopicFilters []string
	Raw          []byte
}

func validateUnsubscribeTopicFilter(filter string) error {
	return validateTopicFilter(filter)
}

// Parse decodes an UNSUBSCRIBE packet from raw, which must contain the
// complete packet including the fixed header.
func (u *UnsubscribePacket) Parse(raw []byte) error {
	if len(raw) < 2 {
		return &errs.Err{Context: "UnsubscribePacket.Parse", Message: errs.ErrShortBuffer}
	}
	if PacketType(raw[0]&0xF0) != UNSUBSCRIBE {
		return &errs.Err{Context: "UnsubscribePacket.Parse", Message: errs.ErrInvalidPacketType}
	}
	if raw[0]&0x0F != 0x02 {
		return &errs.Err{Context: "UnsubscribePacket.Parse", Message: errs.ErrInvalidUnsubscribeFlags}
	}

	remLen, consumed, err := utils.ParseRemainingLength(raw[1:])
	if err != nil {
		return err
	}
	body := raw[1+consumed:]
	if len(body) < remLen {
		return &errs.Err{Context: "UnsubscribePacket.Parse", Message: errs.ErrInvalidPacketLength}
	}
	body = body[:remLen]

	id, err := utils.ParsePacketID(body)
	if err != nil {
		return &errs.Err{Context: "UnsubscribePacket.Parse", Message: errs.ErrInvalidPacketID}
	}
	u.PacketID = id
	body = body[2:]

	if len(body) == 0 {
		return &errs.Err{Context: "UnsubscribePacket.Parse", Message: errs.ErrNoTopicFilters}
	}

	for len(body) > 0 {
		topic, n, err := utils.ParseString(body)
		if err != nil {
			return &errs.Err{Context: "UnsubscribePacket.Parse", Message: errs.ErrInvalidUnsubscribePacket}
		}
		body = body[n:]

		if err := validateUnsubscribeTopicFilter(topic); err != nil {
			return err
		}
		u.TopicFilters = append(u.TopicFilters, topic)
	}

	u.Raw = raw
	return nil
}
