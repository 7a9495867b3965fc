// Package utils holds the wire-format primitives shared by every MQTT packet
// codec: the variable-length "remaining length" field, length-prefixed
// strings, and packet identifiers.
package utils

import (
	"encoding/binary"
	"unicode/utf8"

	"github.com/nanomq-go/nanomq/internal/packet/errs"
)

// EncodeRemainingLength encodes n using the MQTT variable-length scheme
// (up to 4 bytes, max value 268,435,455).
func EncodeRemainingLength(n int) []byte {
	if n < 0 {
		return []byte{0}
	}

	var encoded []byte
	for {
		b := byte(n % 128)
		n /= 128
		if n > 0 {
			b |= 0x80
		}
		encoded = append(encoded, b)
		if n == 0 || len(encoded) >= 4 {
			break
		}
	}
	return encoded
}

// ParseRemainingLength decodes the variable-length remaining-length field
// at the start of data, returning the value and the number of bytes it
// occupied.
func ParseRemainingLength(data []byte) (length int, consumed int, err error) {
	multiplier := 1

	for {
		if consumed >= len(data) {
			return 0, 0, &errs.Err{Context: "ParseRemainingLength", Message: errs.ErrShortBuffer}
		}
		if consumed >= 4 {
			return 0, 0, &errs.Err{Context: "ParseRemainingLength", Message: errs.ErrRemainingLengthExceeded}
		}

		b := data[consumed]
		length += int(b&0x7F) * multiplier
		if length > 268435455 {
			return 0, 0, &errs.Err{Context: "ParseRemainingLength", Message: errs.ErrRemainingLengthExceeded}
		}

		multiplier *= 128
		consumed++

		if b&0x80 == 0 {
			break
		}
	}
	return length, consumed, nil
}

// EncodeString encodes s with a 2-byte big-endian length prefix.
func EncodeString(s string) []byte {
	out := make([]byte, 2+len(s))
	binary.BigEndian.PutUint16(out, uint16(len(s)))
	copy(out[2:], s)
	return out
}

// ParseString decodes a 2-byte length-prefixed UTF-8 string from data,
// returning the string and the number of bytes consumed.
func ParseString(data []byte) (string, int, error) {
	if len(data) < 2 {
		return "", 0, &errs.Err{Context: "ParseString", Message: errs.ErrShortBuffer}
	}

	length := int(binary.BigEndian.Uint16(data[:2]))
	if len(data) < 2+length {
		return "", 0, &errs.Err{Context: "ParseString", Message: errs.ErrShortBuffer}
	}

	s := string(data[2 : 2+length])
	if !utf8.ValidString(s) {
		return "", 0, &errs.Err{Context: "ParseString", Message: errs.ErrInvalidUTF8String}
	}
	return s, 2 + length, nil
}

// EncodePacketID encodes a non-zero packet identifier as 2 big-endian bytes.
func EncodePacketID(id uint16) []byte {
	out := make([]byte, 2)
	binary.BigEndian.PutUint16(out, id)
	return out
}

// ParsePacketID decodes a 2-byte packet identifier, rejecting the reserved
// zero value.
func ParsePacketID(data []byte) (uint16, error) {
	if len(data) < 2 {
		return 0, &errs.Err{Context: "ParsePacketID", Message: errs.ErrShortBuffer}
	}
	id := binary.BigEndian.Uint16(data[:2])
	if id == 0 {
		return 0, &errs.Err{Context: "ParsePacketID", Message: errs.ErrInvalidPacketID}
	}
	return id, nil
}
