package packet

import "github.com/nanomq-go/nanomq/internal/packet/errs"

// Parse dispatches raw (a complete packet including its fixed header) to
// the matching codec and returns a tagged ParsedPacket covering every
// control packet type the worker state machine needs to classify.
func Parse(raw []byte) (*ParsedPacket, error) {
	if len(raw) < 1 {
		return nil, &errs.Err{Context: "Parse", Message: errs.ErrShortBuffer}
	}

	typ := PacketType(raw[0] & 0xF0)
	result := &ParsedPacket{Type: typ, Raw: raw}

	switch typ {
	case CONNECT:
		p := &ConnectPacket{}
		if err := p.Parse(raw); err != nil {
			return nil, err
		}
		result.Connect = p

	case PUBLISH:
		p := &PublishPacket{}
		if err := p.Parse(raw); err != nil {
			return nil, err
		}
		result.Publish = p

	case PUBACK:
		p := &PubackPacket{}
		if err := p.Parse(raw); err != nil {
			return nil, err
		}
		result.Puback = p

	case PUBREC:
		p := &PubrecPacket{}
		if err := p.Parse(raw); err != nil {
			return nil, err
		}
		result.Pubrec = p

	case PUBREL:
		p := &PubrelPacket{}
		if err := p.Parse(raw); err != nil {
			return nil, err
		}
		result.Pubrel = p

	case PUBCOMP:
		p := &PubcompPacket{}
		if err := p.Parse(raw); err != nil {
			return nil, err
		}
		result.Pubcomp = p

	case SUBSCRIBE:
		p := &SubscribePacket{}
		if err := p.Parse(raw); err != nil {
			return nil, err
		}
		result.Subscribe = p

	case UNSUBSCRIBE:
		p := &UnsubscribePacket{}
		if err := p.Parse(raw); err != nil {
			return nil, err
		}
		result.Unsubscribe = p

	case PINGREQ:
		p := &PingreqPacket{}
		if err := p.Parse(raw); err != nil {
			return nil, err
		}
		result.Pingreq = p

	case DISCONNECT:
		p := &DisconnectPacket{}
		if err := p.Parse(raw); err != nil {
			return nil, err
		}
		result.Disconnect = p

	default:
		return nil, &errs.Err{Context: "Parse", Message: errs.ErrInvalidPacketType}
	}

	return result, nil
}
