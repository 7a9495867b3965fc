package packet

import (
	"github.com/google/uuid"
	"github.com/nanomq-go/nanomq/internal/packet/errs"
	"github.com/nanomq-go/nanomq/internal/packet/utils"
)

// ConnectPacket is the decoded form of a CONNECT control packet,
// byte-accurate to MQTT 3.1.1.
type ConnectPacket struct {
	ProtocolName    string
	ProtocolLevel   byte
	CleanStart      bool
	WillFlag        bool
	WillQoS         byte
	WillRetain      bool
	UsernameFlag    bool
	PasswordFlag    bool
	KeepAlive       uint16
	ClientID        string
	WillTopic       string
	WillMessage     []byte
	Username        string
	Password        []byte
	AssignedClientID bool
	Raw             []byte
}

// ValidateClientID enforces the MQTT 3.1.1 client-id character set and
// length limit (23 bytes, [0-9a-zA-Z]).
func ValidateClientID(id string) error {
	if len(id) > 23 {
		return &errs.Err{Context: "ValidateClientID", Message: errs.ErrClientIDLengthExceed}
	}
	for _, r := range id {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		default:
			return &errs.Err{Context: "ValidateClientID", Message: errs.ErrInvalidCharsClientID}
		}
	}
	return nil
}

// Parse decodes a CONNECT packet's variable header and payload from raw,
// which must contain the complete packet including the fixed header.
func (c *ConnectPacket) Parse(raw []byte) error {
	if len(raw) < 2 {
		return &errs.Err{Context: "ConnectPacket.Parse", Message: errs.ErrShortBuffer}
	}
	if PacketType(raw[0]&0xF0) != CONNECT {
		return &errs.Err{Context: "ConnectPacket.Parse", Message: errs.ErrInvalidPacketType}
	}

	remLen, consumed, err := utils.ParseRemainingLength(raw[1:])
	if err != nil {
		return err
	}
	body := raw[1+consumed:]
	if len(body) < remLen {
		return &errs.Err{Context: "ConnectPacket.Parse", Message: errs.ErrInvalidPacketLength}
	}
	body = body[:remLen]

	protoName, n, err := utils.ParseString(body)
	if err != nil {
		return &errs.Err{Context: "ConnectPacket.Parse", Message: errs.ErrInvalidConnPacket}
	}
	if protoName != "MQTT" && protoName != "MQIsdp" {
		return &errs.Err{Context: "ConnectPacket.Parse", Message: errs.ErrUnsupportedProtocolName}
	}
	c.ProtocolName = protoName
	body = body[n:]

	if len(body) < 1 {
		return &errs.Err{Context: "ConnectPacket.Parse", Message: errs.ErrShortBuffer}
	}
	c.ProtocolLevel = body[0]
	if c.ProtocolLevel != 4 && c.ProtocolLevel != 5 {
		return &errs.Err{Context: "ConnectPacket.Parse", Message: errs.ErrUnsupportedProtocolLevel}
	}
	body = body[1:]

	if len(body) < 1 {
		return &errs.Err{Context: "ConnectPacket.Parse", Message: errs.ErrShortBuffer}
	}
	flags := body[0]
	c.UsernameFlag = flags&0x80 != 0
	c.PasswordFlag = flags&0x40 != 0
	c.WillRetain = flags&0x20 != 0
	c.WillQoS = (flags >> 3) & 0x03
	c.WillFlag = flags&0x04 != 0
	c.CleanStart = flags&0x02 != 0
	if flags&0x01 != 0 {
		return &errs.Err{Context: "ConnectPacket.Parse", Message: errs.ErrInvalidConnPacket}
	}
	if c.WillQoS > 2 {
		return &errs.Err{Context: "ConnectPacket.Parse", Message: errs.ErrInvalidWillQos}
	}
	if c.PasswordFlag && !c.UsernameFlag {
		return &errs.Err{Context: "ConnectPacket.Parse", Message: errs.ErrPasswordWithoutUsername}
	}
	body = body[1:]

	if len(body) < 2 {
		return &errs.Err{Context: "ConnectPacket.Parse", Message: errs.ErrShortBuffer}
	}
	c.KeepAlive = uint16(body[0])<<8 | uint16(body[1])
	body = body[2:]

	clientID, n, err := utils.ParseString(body)
	if err != nil {
		return &errs.Err{Context: "ConnectPacket.Parse", Message: errs.ErrInvalidConnPacket}
	}
	body = body[n:]

	if clientID == "" {
		if !c.CleanStart {
			return &errs.Err{Context: "ConnectPacket.Parse", Message: errs.ErrEmptyAndCleanSessionClientID}
		}
		clientID = uuid.NewString()
		c.AssignedClientID = true
	}
	if err := ValidateClientID(clientID); err != nil && !c.AssignedClientID {
		return err
	}
	c.ClientID = clientID

	if c.WillFlag {
		willTopic, n, err := utils.ParseString(body)
		if err != nil {
			return &errs.Err{Context: "ConnectPacket.Parse", Message: errs.ErrInvalidConnPacket}
		}
		body = body[n:]
		c.WillTopic = willTopic

		if len(body) < 2 {
			return &errs.Err{Context: "ConnectPacket.Parse", Message: errs.ErrShortBuffer}
		}
		willLen := int(body[0])<<8 | int(body[1])
		body = body[2:]
		if len(body) < willLen {
			return &errs.Err{Context: "ConnectPacket.Parse", Message: errs.ErrShortBuffer}
		}
		c.WillMessage = append([]byte(nil), body[:willLen]...)
		body = body[willLen:]
	}

	if c.UsernameFlag {
		username, n, err := utils.ParseString(body)
		if err != nil {
			return &errs.Err{Context: "ConnectPacket.Parse", Message: errs.ErrMalformedUsernameField}
		}
		c.Username = username
		body = body[n:]
	}

	if c.PasswordFlag {
		if len(body) < 2 {
			return &errs.Err{Context: "ConnectPacket.Parse", Message: errs.ErrMalformedPasswordField}
		}
		passLen := int(body[0])<<8 | int(body[1])
		body = body[2:]
		if len(body) < passLen {
			return &errs.Err{Context: "ConnectPacket.Parse", Message: errs.ErrMalformedPasswordField}
		}
		c.Password = append([]byte(nil), body[:passLen]...)
		body = body[passLen:]
	}

	c.Raw = raw
	return nil
}
