package packet

import (
	"github.com/nanomq-go/nanomq/internal/packet/errs"
	"github.com/nanomq-go/nanomq/internal/packet/utils"
)

// UnsubackPacket is the decoded/encoded form of an UNSUBACK control packet.
type UnsubackPacket struct {
	PacketID uint16
}

// NewUnsubAck builds an UNSUBACK for packetID.
func NewUnsubAck(packetID uint16) *UnsubackPacket {
	return &UnsubackPacket{PacketID: packetID}
}

// Encode serializes the UNSUBACK to wire format.
func (u *UnsubackPacket) Encode() []byte {
	return []byte{byte(UNSUBACK), 0x02, byte(u.PacketID >> 8), byte(u.PacketID)}
}

// Parse decodes an UNSUBACK packet from raw.
func (u *UnsubackPacket) Parse(raw []byte) error {
	if len(raw) < 2 {
		return &errs.Err{Context: "UnsubackPacket.Parse", Message: errs.ErrShortBuffer}
	}
	if PacketType(raw[0]&0xF0) != UNSUBACK {
		return &errs.Err{Context: "UnsubackPacket.Parse", Message: errs.ErrInvalidPacketType}
	}

	remLen, consumed, err := utils.ParseRemainingLength(raw[1:])
	if err != nil {
		return err
	}
	if remLen != 2 {
		return &errs.Err{Context: "UnsubackPacket.Parse", Message: errs.ErrInvalidPacketLength}
	}

	body := raw[1+consumed:]
	id, err := utils.ParsePacketID(body)
	if err != nil {
		return err
	}
	u.PacketID = id
	return nil
}
