package packet

import "github.com/nanomq-go/nanomq/internal/packet/errs"

// DisconnectPacket is the decoded form of a DISCONNECT control packet (no
// variable header or payload in MQTT 3.1.1).
type DisconnectPacket struct{}

// Parse validates a DISCONNECT packet: type byte 0xE0 and a zero remaining
// length.
func (d *DisconnectPacket) Parse(raw []byte) error {
	if len(raw) != 2 {
		return &errs.Err{Context: "DisconnectPacket.Parse", Message: errs.ErrInvalidDisconnectPacket}
	}
	if raw[0] != byte(DISCONNECT) {
		return &errs.Err{Context: "DisconnectPacket.Parse", Message: errs.ErrInvalidPacketType}
	}
	if raw[1] != 0 {
		return &errs.Err{Context: "DisconnectPacket.Parse", Message: errs.ErrInvalidDisconnectPacket}
	}
	return nil
}

// Encode serializes the DISCONNECT to wire format.
func (d *DisconnectPacket) Encode() []byte { return []byte{byte(DISCONNECT), 0x00} }
