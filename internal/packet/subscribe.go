package packet

import (
	"strings"
	"unicode/utf8"

	"github.com/nanomq-go/nanomq/internal/packet/errs"
	"github.com/nanomq-go/nanomq/internal/packet/utils"
)

// SubscribeFilter is one (topic-filter, requested-QoS) pair from a
// SUBSCRIBE packet's payload.
type SubscribeFilter struct {
	Topic string
	QoS   QoSLevel
}

// SubscribePacket is the decoded form of a SUBSCRIBE control packet.
type SubscribePacket struct {
	PacketID uint16
	Filters  []SubscribeFilter
	Raw      []byte
}

// validateTopicFilter checks the wire-level constraints that make a
// SUBSCRIBE packet undecodable outright: an empty string, invalid UTF-8,
// or an embedded NUL. Wildcard-placement validation is deliberately not
// done here — a single filter with a misplaced `+`/`#` is still a
// well-formed packet and must SUBACK the other filters, so that check
// happens per-filter in the broker's HandleSubscribe via ValidateWildcards.
func validateTopicFilter(filter string) error {
	if filter == "" {
		return &errs.Err{Context: "validateTopicFilter", Message: errs.ErrEmptyTopicFilter}
	}
	if !utf8.ValidString(filter) {
		return &errs.Err{Context: "validateTopicFilter", Message: errs.ErrInvalidUTF8TopicFilter}
	}
	if strings.ContainsRune(filter, 0) {
		return &errs.Err{Context: "validateTopicFilter", Message: errs.ErrNullCharacterInTopicFilter}
	}
	return nil
}

// ValidateWildcards reports whether filter places `+` and `#` legally: each
// wildcard must occupy its level alone, and `#` must be the last level.
// Exported so HandleSubscribe can reject a single bad filter with a 0x80
// SUBACK code without failing the rest of the packet's filters.
func ValidateWildcards(filter string) error {
	levels := strings.Split(filter, "/")
	for i, level := range levels {
		if strings.Contains(level, "#") {
			if level != "#" {
				return &errs.Err{Context: "ValidateWildcards", Message: errs.ErrMultiLevelWildcardNotAlone}
			}
			if i != len(levels)-1 {
				return &errs.Err{Context: "ValidateWildcards", Message: errs.ErrMultiLevelWildcardNotLast}
			}
		}
		if strings.Contains(level, "+") && level != "+" {
			return &errs.Err{Context: "ValidateWildcards", Message: errs.ErrSingleLevelWildcardNotAlone}
		}
	}
	return nil
}

// Parse decodes a SUBSCRIBE packet from raw, which must contain the
// complete packet including the fixed header.
func (s *SubscribePacket) Parse(raw []byte) error {
	if len(raw) < 2 {
		return &errs.Err{Context: "SubscribePacket.Parse", Message: errs.ErrShortBuffer}
	}
	if PacketType(raw[0]&0xF0) != SUBSCRIBE {
		return &errs.Err{Context: "SubscribePacket.Parse", Message: errs.ErrInvalidPacketType}
	}
	if raw[0]&0x0F != 0x02 {
		return &errs.Err{Context: "SubscribePacket.Parse", Message: errs.ErrInvalidSubscribeFlags}
	}

	remLen, consumed, err := utils.ParseRemainingLength(raw[1:])
	if err != nil {
		return err
	}
	body := raw[1+consumed:]
	if len(body) < remLen {
		return &errs.Err{Context: "SubscribePacket.Parse", Message: errs.ErrInvalidPacketLength}
	}
	body = body[:remLen]

	id, err := utils.ParsePacketID(body)
	if err != nil {
		return &errs.Err{Context: "SubscribePacket.Parse", Message: errs.ErrInvalidPacketID}
	}
	s.PacketID = id
	body = body[2:]

	if len(body) == 0 {
		return &errs.Err{Context: "SubscribePacket.Parse", Message: errs.ErrNoTopicFilters}
	}

	for len(body) > 0 {
		topic, n, err := utils.ParseString(body)
		if err != nil {
			return &errs.Err{Context: "SubscribePacket.Parse", Message: errs.ErrInvalidSubscribePacket}
		}
		body = body[n:]

		if err := validateTopicFilter(topic); err != nil {
			return err
		}

		if len(body) < 1 {
			return &errs.Err{Context: "SubscribePacket.Parse", Message: errs.ErrMissingQoSByte}
		}
		qosByte := body[0]
		if qosByte&0xFC != 0 {
			return &errs.Err{Context: "SubscribePacket.Parse", Message: errs.ErrInvalidQoSReservedBits}
		}
		qos := QoSLevel(qosByte & 0x03)
		if qos > QoSExactlyOnce {
			return &errs.Err{Context: "SubscribePacket.Parse", Message: errs.ErrInvalidQoSLevel}
		}
		body = body[1:]

		s.Filters = append(s.Filters, SubscribeFilter{Topic: topic, QoS: qos})
	}

	s.Raw = raw
	return nil
}
