package protocol

import (
	"bytes"
	"fmt"
)

// Message type constants.
const (
	MessageUnreachable uint8 = 0x00 // relay gave up delivering
	MessageData        uint8 = 0x01
)

// MessageHeaderSize is the fixed message header size:
// Retries(1) + Type(1) + Source(6) + Destination(6) + SourcePort(1) +
// DestinationPort(1) + DataLength(1).
const MessageHeaderSize = 17

// DefaultRetries is assigned to messages rebuilt from radio packets.
const DefaultRetries = 1

const (
	msgOffRetries     = 0
	msgOffType        = 1
	msgOffSource      = 2
	msgOffDestination = 8
	msgOffSourcePort  = 14
	msgOffDestPort    = 15
	msgOffDataLength  = 16
)

// Message is the record local clients exchange with the relay.
type Message struct {
	Retries         uint8
	Type            uint8
	Source          Address
	Destination     Address
	SourcePort      uint8
	DestinationPort uint8
	Data            []byte
}

// BuildMessage assembles a message. Data longer than a packet payload is
// rejected since the relay could never transmit it.
func BuildMessage(retries, typ uint8, src, dst Address, srcPort, dstPort uint8, data []byte) (*Message, error) {
	if len(data) > MaxPayloadSize {
		return nil, fmt.Errorf("message %w: %d bytes (max %d)", ErrPayloadTooLarge, len(data), MaxPayloadSize)
	}
	m := &Message{
		Retries:         retries,
		Type:            typ,
		Source:          src,
		Destination:     dst,
		SourcePort:      srcPort,
		DestinationPort: dstPort,
	}
	if len(data) > 0 {
		m.Data = make([]byte, len(data))
		copy(m.Data, data)
	}
	return m, nil
}

// TotalLength is the encoded size of the message.
func (m *Message) TotalLength() int {
	return MessageHeaderSize + len(m.Data)
}

// Matches reports whether two messages carry the same addressing and data.
// Retries and Type are ignored.
func (m *Message) Matches(o *Message) bool {
	return m.Source == o.Source &&
		m.Destination == o.Destination &&
		m.SourcePort == o.SourcePort &&
		m.DestinationPort == o.DestinationPort &&
		bytes.Equal(m.Data, o.Data)
}

// Flip swaps source and destination addresses and ports in place.
func (m *Message) Flip() {
	m.Source, m.Destination = m.Destination, m.Source
	m.SourcePort, m.DestinationPort = m.DestinationPort, m.SourcePort
}

// ValidateMessage checks raw bytes received from a local client. Only DATA
// messages are accepted as input.
func ValidateMessage(data []byte) error {
	if err := validateMessageFrame(data); err != nil {
		return err
	}
	if data[msgOffType] != MessageData {
		return fmt.Errorf("message %w: 0x%02x", ErrUnknownType, data[msgOffType])
	}
	return nil
}

func validateMessageFrame(data []byte) error {
	if len(data) < MessageHeaderSize {
		return fmt.Errorf("message %w: %d bytes (need at least %d)", ErrTooShort, len(data), MessageHeaderSize)
	}
	declared := int(data[msgOffDataLength])
	if declared != len(data)-MessageHeaderSize {
		return fmt.Errorf("message %w: declared %d data bytes, received %d", ErrLengthMismatch, declared, len(data)-MessageHeaderSize)
	}
	if declared > MaxPayloadSize {
		return fmt.Errorf("message %w: %d bytes (max %d)", ErrPayloadTooLarge, declared, MaxPayloadSize)
	}
	return nil
}

// EncodeMessage serializes a Message for a local socket.
func EncodeMessage(m *Message) []byte {
	buf := make([]byte, m.TotalLength())
	buf[msgOffRetries] = m.Retries
	buf[msgOffType] = m.Type
	copy(buf[msgOffSource:msgOffDestination], m.Source[:])
	copy(buf[msgOffDestination:msgOffSourcePort], m.Destination[:])
	buf[msgOffSourcePort] = m.SourcePort
	buf[msgOffDestPort] = m.DestinationPort
	buf[msgOffDataLength] = uint8(len(m.Data))
	copy(buf[MessageHeaderSize:], m.Data)
	return buf
}

// DecodeMessage validates and deserializes a client message.
func DecodeMessage(data []byte) (*Message, error) {
	if err := ValidateMessage(data); err != nil {
		return nil, err
	}
	return parseMessage(data), nil
}

// DecodeReply deserializes a message sent back by the relay, which may be
// UNREACHABLE as well as DATA.
func DecodeReply(data []byte) (*Message, error) {
	if err := validateMessageFrame(data); err != nil {
		return nil, err
	}
	if t := data[msgOffType]; t != MessageData && t != MessageUnreachable {
		return nil, fmt.Errorf("message %w: 0x%02x", ErrUnknownType, t)
	}
	return parseMessage(data), nil
}

func parseMessage(data []byte) *Message {
	m := &Message{
		Retries:         data[msgOffRetries],
		Type:            data[msgOffType],
		SourcePort:      data[msgOffSourcePort],
		DestinationPort: data[msgOffDestPort],
	}
	copy(m.Source[:], data[msgOffSource:msgOffDestination])
	copy(m.Destination[:], data[msgOffDestination:msgOffSourcePort])
	if len(data) > MessageHeaderSize {
		m.Data = make([]byte, len(data)-MessageHeaderSize)
		copy(m.Data, data[MessageHeaderSize:])
	}
	return m
}
