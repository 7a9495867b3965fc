package packet

import (
	"github.com/nanomq-go/nanomq/internal/packet/errs"
	"github.com/nanomq-go/nanomq/internal/packet/utils"
)

// SUBACK per-filter return codes, MQTT 3.1.1 section 3.9.3.
const (
	SubackMaxQoS0 byte = 0x00
	SubackMaxQoS1 byte = 0x01
	SubackMaxQoS2 byte = 0x02
	SubackFailure byte = 0x80
)

// SubackPacket is the decoded/encoded form of a SUBACK control packet.
type SubackPacket struct {
	PacketID    uint16
	ReturnCodes []byte
}

// NewSubAck builds a SUBACK whose return codes are supplied by the caller
// (the broker, which negotiates granted QoS and per-filter failures — see
// internal/broker/subscribe.go), one per filter in the same order as the
// SUBSCRIBE packet's filter list.
func NewSubAck(packetID uint16, returnCodes []byte) *SubackPacket {
	return &SubackPacket{PacketID: packetID, ReturnCodes: returnCodes}
}

// Encode serializes the SUBACK to wire format.
func (s *SubackPacket) Encode() []byte {
	body := make([]byte, 0, 2+len(s.ReturnCodes))
	body = append(body, utils.EncodePacketID(s.PacketID)...)
	body = append(body, s.ReturnCodes...)

	out := make([]byte, 0, 1+4+len(body))
	out = append(out, byte(SUBACK))
	out = append(out, utils.EncodeRemainingLength(len(body))...)
	out = append(out, body...)
	return out
}

// Parse decodes a SUBACK packet from raw.
func (s *SubackPacket) Parse(raw []byte) error {
	if len(raw) < 2 {
		return &errs.Err{Context: "SubackPacket.Parse", Message: errs.ErrShortBuffer}
	}
	if PacketType(raw[0]&0xF0) != SUBACK {
		return &errs.Err{Context: "SubackPacket.Parse", Message: errs.ErrInvalidPacketType}
	}

	remLen, consumed, err := utils.ParseRemainingLength(raw[1:])
	if err != nil {
		return err
	}
	body := raw[1+consumed:]
	if len(body) < remLen || remLen < 2 {
		return &errs.Err{Context: "SubackPacket.Parse", Message: errs.ErrInvalidPacketLength}
	}
	body = body[:remLen]

	id, err := utils.ParsePacketID(body)
	if err != nil {
		return err
	}
	s.PacketID = id
	s.ReturnCodes = append([]byte(nil), body[2:]...)
	return nil
}
