package protocol

import "fmt"

// MessageToPacket builds the radio packet carrying m. Only DATA messages
// travel over the radio.
func MessageToPacket(m *Message) (*Packet, error) {
	if m.Type != MessageData {
		return nil, fmt.Errorf("convert message: %w: 0x%02x", ErrUnknownType, m.Type)
	}
	return BuildPacket(TypeData, m.Source, m.Destination, m.SourcePort, m.DestinationPort, m.Data)
}

// PacketToMessage rebuilds the client message carried by p. Error packets
// become UNREACHABLE messages. Retries is set to DefaultRetries.
func PacketToMessage(p *Packet) *Message {
	typ := MessageData
	if p.IsError() {
		typ = MessageUnreachable
	}
	m := &Message{
		Retries:         DefaultRetries,
		Type:            typ,
		Source:          p.Source,
		Destination:     p.Destination,
		SourcePort:      p.SourcePort,
		DestinationPort: p.DestinationPort,
	}
	if len(p.Payload) > 0 {
		m.Data = make([]byte, len(p.Payload))
		copy(m.Data, p.Payload)
	}
	return m
}
