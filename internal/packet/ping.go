package packet

import "github.com/nanomq-go/nanomq/internal/packet/errs"

// PingreqPacket is the decoded form of a PINGREQ control packet (no
// variable header or payload).
type PingreqPacket struct{ Raw []byte }

// PingrespPacket is the encoded/decoded form of a PINGRESP control packet.
type PingrespPacket struct{}

// Parse validates a PINGREQ packet: fixed header flags and remaining
// length must both be zero, and the packet must be exactly 2 bytes.
func (p *PingreqPacket) Parse(raw []byte) error {
	if len(raw) != 2 {
		return &errs.Err{Context: "PingreqPacket.Parse", Message: errs.ErrInvalidPingreqLength}
	}
	if PacketType(raw[0]&0xF0) != PINGREQ {
		return &errs.Err{Context: "PingreqPacket.Parse", Message: errs.ErrInvalidPacketType}
	}
	if raw[0]&0x0F != 0 {
		return &errs.Err{Context: "PingreqPacket.Parse", Message: errs.ErrInvalidPingreqFlags}
	}
	if raw[1] != 0 {
		return &errs.Err{Context: "PingreqPacket.Parse", Message: errs.ErrInvalidPingreqLength}
	}
	p.Raw = raw
	return nil
}

// Parse validates a PINGRESP packet using the same shape rules as PINGREQ.
func (p *PingrespPacket) Parse(raw []byte) error {
	if len(raw) != 2 {
		return &errs.Err{Context: "PingrespPacket.Parse", Message: errs.ErrInvalidPingrespLength}
	}
	if PacketType(raw[0]&0xF0) != PINGRESP {
		return &errs.Err{Context: "PingrespPacket.Parse", Message: errs.ErrInvalidPacketType}
	}
	if raw[0]&0x0F != 0 {
		return &errs.Err{Context: "PingrespPacket.Parse", Message: errs.ErrInvalidPingrespFlags}
	}
	if raw[1] != 0 {
		return &errs.Err{Context: "PingrespPacket.Parse", Message: errs.ErrInvalidPingrespLength}
	}
	return nil
}

// CreatePingresp builds a fresh PINGRESP packet value.
func CreatePingresp() *PingrespPacket { return &PingrespPacket{} }

// Encode serializes the PINGRESP to wire format.
func (p *PingrespPacket) Encode() []byte { return []byte{byte(PINGRESP), 0x00} }
