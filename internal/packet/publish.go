package packet

import (
	"strings"
	"unicode/utf8"

	"github.com/nanomq-go/nanomq/internal/packet/errs"
	"github.com/nanomq-go/nanomq/internal/packet/utils"
)

// QoSLevel is the MQTT quality-of-service level: 0 (at-most-once), 1
// (at-least-once) or 2 (exactly-once).
type QoSLevel uint8

const (
	QoSAtMostOnce  QoSLevel = 0
	QoSAtLeastOnce QoSLevel = 1
	QoSExactlyOnce QoSLevel = 2
)

// MaxPayloadSize is the largest remaining-length value the wire format can
// express (4-byte variable-length encoding).
const MaxPayloadSize = 268435455

// PublishPacket is the decoded form of a PUBLISH control packet.
type PublishPacket struct {
	DUP      bool
	QoS      QoSLevel
	Retain   bool
	Topic    string
	PacketID *uint16
	Payload  []byte
	Raw      []byte
}

func containsWildcards(topic string) bool {
	return strings.ContainsAny(topic, "+#")
}

func validateTopic(topic string) error {
	if topic == "" {
		return &errs.Err{Context: "validateTopic", Message: errs.ErrEmptyTopic}
	}
	if !utf8.ValidString(topic) {
		return &errs.Err{Context: "validateTopic", Message: errs.ErrInvalidUTF8Topic}
	}
	if strings.ContainsRune(topic, 0) {
		return &errs.Err{Context: "validateTopic", Message: errs.ErrNullCharacterInTopic}
	}
	for _, r := range topic {
		if r < 0x20 || (r >= 0x7F && r <= 0x9F) {
			return &errs.Err{Context: "validateTopic", Message: errs.ErrControlCharacterInTopic}
		}
	}
	if containsWildcards(topic) {
		return &errs.Err{Context: "validateTopic", Message: errs.ErrWildcardsNotAllowedInPublish}
	}
	for _, level := range strings.Split(topic, "/") {
		if level == "" {
			continue
		}
	}
	return nil
}

// Parse decodes a PUBLISH packet from raw, which must contain the complete
// packet including the fixed header.
func (p *PublishPacket) Parse(raw []byte) error {
	if len(raw) < 2 {
		return &errs.Err{Context: "PublishPacket.Parse", Message: errs.ErrShortBuffer}
	}
	if PacketType(raw[0]&0xF0) != PUBLISH {
		return &errs.Err{Context: "PublishPacket.Parse", Message: errs.ErrInvalidPacketType}
	}

	flags := raw[0] & 0x0F
	p.DUP = flags&0x08 != 0
	p.QoS = QoSLevel((flags >> 1) & 0x03)
	p.Retain = flags&0x01 != 0

	if p.QoS > QoSExactlyOnce {
		return &errs.Err{Context: "PublishPacket.Parse", Message: errs.ErrInvalidQoSLevel}
	}
	if p.QoS == QoSAtMostOnce && p.DUP {
		return &errs.Err{Context: "PublishPacket.Parse", Message: errs.ErrInvalidDUPFlag}
	}

	remLen, consumed, err := utils.ParseRemainingLength(raw[1:])
	if err != nil {
		return err
	}
	body := raw[1+consumed:]
	if len(body) < remLen {
		return &errs.Err{Context: "PublishPacket.Parse", Message: errs.ErrInvalidPacketLength}
	}
	body = body[:remLen]

	topic, n, err := utils.ParseString(body)
	if err != nil {
		return &errs.Err{Context: "PublishPacket.Parse", Message: errs.ErrInvalidPublishPacket}
	}
	if err := validateTopic(topic); err != nil {
		return err
	}
	p.Topic = topic
	body = body[n:]

	if p.QoS > QoSAtMostOnce {
		id, err := utils.ParsePacketID(body)
		if err != nil {
			return &errs.Err{Context: "PublishPacket.Parse", Message: errs.ErrMissingPacketID}
		}
		p.PacketID = &id
		body = body[2:]
	}

	if len(body) > MaxPayloadSize {
		return &errs.Err{Context: "PublishPacket.Parse", Message: errs.ErrPayloadTooLarge}
	}
	p.Payload = append([]byte(nil), body...)
	p.Raw = raw
	return nil
}

// Encode serializes the packet back to wire format, for fan-out delivery.
func (p *PublishPacket) Encode() []byte {
	var flags byte
	if p.DUP {
		flags |= 0x08
	}
	flags |= byte(p.QoS) << 1
	if p.Retain {
		flags |= 0x01
	}

	var body []byte
	body = append(body, utils.EncodeString(p.Topic)...)
	if p.QoS > QoSAtMostOnce && p.PacketID != nil {
		body = append(body, utils.EncodePacketID(*p.PacketID)...)
	}
	body = append(body, p.Payload...)

	out := make([]byte, 0, 1+4+len(body))
	out = append(out, byte(PUBLISH)|flags)
	out = append(out, utils.EncodeRemainingLength(len(body))...)
	out = append(out, body...)
	return out
}

// Clone returns a deep copy suitable for an independent fan-out
// destination, optionally overwriting the packet id and QoS for the
// negotiated subscriber.
func (p *PublishPacket) Clone(packetID *uint16, qos QoSLevel) *PublishPacket {
	clone := &PublishPacket{
		DUP:     p.DUP,
		QoS:     qos,
		Retain:  p.Retain,
		Topic:   p.Topic,
		Payload: append([]byte(nil), p.Payload...),
	}
	if qos > QoSAtMostOnce && packetID != nil {
		id := *packetID
		clone.PacketID = &id
	}
	return clone
}
