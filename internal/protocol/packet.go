// Package protocol defines the radio packet and client message formats
// exchanged by the relay, and the conversion between them.
package protocol

// Packet type constants.
const (
	TypeUnknown      uint8 = 0x00 // never valid on the wire
	TypeData         uint8 = 0x01 // addressed payload
	TypeErrorInvalid uint8 = 0x02 // peer rejected our packet
	TypeErrorServer  uint8 = 0x03 // peer could not deliver to its server
	TypeBroadcast    uint8 = 0xFF // neighbor discovery beacon
)

// HeaderSize is the fixed packet header size:
// Type(1) + Source(6) + Destination(6) + SourcePort(1) + DestinationPort(1) +
// TotalLength(1) + Checksum(1).
const HeaderSize = 17

// MaxPacketSize is the largest frame the radio accepts in one transmission.
const MaxPacketSize = 255

// MaxPayloadSize is the largest payload a single packet can carry.
const MaxPayloadSize = MaxPacketSize - HeaderSize

// Header field offsets.
const (
	offType        = 0
	offSource      = 1
	offDestination = 7
	offSourcePort  = 13
	offDestPort    = 14
	offTotalLength = 15
	offChecksum    = 16
)

// Packet is a single radio frame.
type Packet struct {
	Type            uint8
	Source          Address
	Destination     Address
	SourcePort      uint8
	DestinationPort uint8
	TotalLength     uint8 // header + payload
	Checksum        uint8
	Payload         []byte
}

// IsError reports whether the packet signals a delivery failure at the peer.
func (p *Packet) IsError() bool {
	return p.Type == TypeErrorInvalid || p.Type == TypeErrorServer
}

// Flip swaps source and destination addresses and ports in place.
func (p *Packet) Flip() {
	p.Source, p.Destination = p.Destination, p.Source
	p.SourcePort, p.DestinationPort = p.DestinationPort, p.SourcePort
}

// KnownType reports whether t is a packet type the relay understands.
func KnownType(t uint8) bool {
	switch t {
	case TypeData, TypeErrorInvalid, TypeErrorServer, TypeBroadcast:
		return true
	}
	return false
}

// TypeName returns a short label for logs.
func TypeName(t uint8) string {
	switch t {
	case TypeData:
		return "DATA"
	case TypeErrorInvalid:
		return "ERROR_INVALID"
	case TypeErrorServer:
		return "ERROR_SERVER"
	case TypeBroadcast:
		return "BROADCAST"
	}
	return "UNKNOWN"
}
