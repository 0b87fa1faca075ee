package protocol

import "fmt"

// Checksum computes the packet checksum, stores it in p.Checksum and returns
// it. TotalLength is refreshed from the payload first.
func Checksum(p *Packet) uint8 {
	p.TotalLength = uint8(HeaderSize + len(p.Payload))
	p.Checksum = sum(Encode(p))
	return p.Checksum
}

// sum adds every byte of an encoded packet except the checksum byte.
func sum(buf []byte) uint8 {
	var s uint8
	for i, b := range buf {
		if i == offChecksum {
			continue
		}
		s += b
	}
	return s
}

// Validate checks raw bytes received from the radio.
func Validate(data []byte) error {
	if len(data) < HeaderSize {
		return fmt.Errorf("packet %w: %d bytes (need at least %d)", ErrTooShort, len(data), HeaderSize)
	}
	if !KnownType(data[offType]) {
		return fmt.Errorf("packet %w: 0x%02x", ErrUnknownType, data[offType])
	}
	if int(data[offTotalLength]) != len(data) {
		return fmt.Errorf("packet %w: declared %d, received %d", ErrLengthMismatch, data[offTotalLength], len(data))
	}
	if got := sum(data); got != data[offChecksum] {
		return fmt.Errorf("packet %w: declared 0x%02x, computed 0x%02x", ErrChecksumMismatch, data[offChecksum], got)
	}
	return nil
}

// BuildPacket assembles a packet with a correct length and checksum.
func BuildPacket(typ uint8, src, dst Address, srcPort, dstPort uint8, payload []byte) (*Packet, error) {
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("packet %w: %d bytes (max %d)", ErrPayloadTooLarge, len(payload), MaxPayloadSize)
	}
	p := &Packet{
		Type:            typ,
		Source:          src,
		Destination:     dst,
		SourcePort:      srcPort,
		DestinationPort: dstPort,
	}
	if len(payload) > 0 {
		p.Payload = make([]byte, len(payload))
		copy(p.Payload, payload)
	}
	Checksum(p)
	return p, nil
}

// Encode serializes a Packet for the radio. The stored TotalLength and
// Checksum are written as-is.
func Encode(p *Packet) []byte {
	buf := make([]byte, HeaderSize+len(p.Payload))
	buf[offType] = p.Type
	copy(buf[offSource:offDestination], p.Source[:])
	copy(buf[offDestination:offSourcePort], p.Destination[:])
	buf[offSourcePort] = p.SourcePort
	buf[offDestPort] = p.DestinationPort
	buf[offTotalLength] = p.TotalLength
	buf[offChecksum] = p.Checksum
	copy(buf[HeaderSize:], p.Payload)
	return buf
}

// Decode validates and deserializes raw radio bytes.
func Decode(data []byte) (*Packet, error) {
	if err := Validate(data); err != nil {
		return nil, err
	}
	p := &Packet{
		Type:            data[offType],
		SourcePort:      data[offSourcePort],
		DestinationPort: data[offDestPort],
		TotalLength:     data[offTotalLength],
		Checksum:        data[offChecksum],
	}
	copy(p.Source[:], data[offSource:offDestination])
	copy(p.Destination[:], data[offDestination:offSourcePort])
	if len(data) > HeaderSize {
		p.Payload = make([]byte, len(data)-HeaderSize)
		copy(p.Payload, data[HeaderSize:])
	}
	return p, nil
}
