package packet

import (
	"github.com/nanomq-go/nanomq/internal/packet/errs"
	"github.com/nanomq-go/nanomq/internal/packet/utils"
)

// PubackPacket, PubrecPacket, PubrelPacket and PubcompPacket are the four
// QoS-handshake acknowledgement packets; all four share the same wire shape
// (fixed header + 2-byte packet id).
type PubackPacket struct{ PacketID uint16 }
type PubrecPacket struct{ PacketID uint16 }
type PubrelPacket struct{ PacketID uint16 }
type PubcompPacket struct{ PacketID uint16 }

func parseAckPacket(raw []byte, wantType PacketType) (uint16, error) {
	if len(raw) < 2 {
		return 0, &errs.Err{Context: "parseAckPacket", Message: errs.ErrShortBuffer}
	}
	if PacketType(raw[0]&0xF0) != wantType {
		return 0, &errs.Err{Context: "parseAckPacket", Message: errs.ErrInvalidPacketType}
	}

	remLen, consumed, err := utils.ParseRemainingLength(raw[1:])
	if err != nil {
		return 0, err
	}
	if remLen != 2 {
		return 0, &errs.Err{Context: "parseAckPacket", Message: errs.ErrInvalidPacketLength}
	}

	body := raw[1+consumed:]
	return utils.ParsePacketID(body)
}

func (p *PubackPacket) Parse(raw []byte) error {
	id, err := parseAckPacket(raw, PUBACK)
	if err != nil {
		return err
	}
	p.PacketID = id
	return nil
}

func (p *PubrecPacket) Parse(raw []byte) error {
	id, err := parseAckPacket(raw, PUBREC)
	if err != nil {
		return err
	}
	p.PacketID = id
	return nil
}

func (p *PubrelPacket) Parse(raw []byte) error {
	id, err := parseAckPacket(raw, PUBREL)
	if err != nil {
		return err
	}
	p.PacketID = id
	return nil
}

func (p *PubcompPacket) Parse(raw []byte) error {
	id, err := parseAckPacket(raw, PUBCOMP)
	if err != nil {
		return err
	}
	p.PacketID = id
	return nil
}

func encodeAck(flags byte, typ PacketType, packetID uint16) []byte {
	out := make([]byte, 0, 4)
	out = append(out, byte(typ)|flags)
	out = append(out, 2)
	out = append(out, utils.EncodePacketID(packetID)...)
	return out
}

// NewPubAck encodes a PUBACK for packetID.
func NewPubAck(packetID uint16) []byte { return encodeAck(0, PUBACK, packetID) }

// NewPubRec encodes a PUBREC for packetID.
func NewPubRec(packetID uint16) []byte { return encodeAck(0, PUBREC, packetID) }

// NewPubRel encodes a PUBREL for packetID. PUBREL's fixed header reserved
// bits are 0010 per the MQTT 3.1.1 spec.
func NewPubRel(packetID uint16) []byte { return encodeAck(0x02, PUBREL, packetID) }

// NewPubComp encodes a PUBCOMP for packetID.
func NewPubComp(packetID uint16) []byte { return encodeAck(0, PUBCOMP, packetID) }
