package protocol

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// AddressSize is the length of a node address (an Ethernet MAC).
const AddressSize = 6

// Address identifies a node on the radio mesh.
type Address [AddressSize]byte

// BroadcastAddress is the destination of neighbor discovery beacons.
var BroadcastAddress = Address{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}

// ParseAddress parses 12 hex digits, optionally separated by colons or dashes.
func ParseAddress(s string) (Address, error) {
	var a Address
	clean := strings.NewReplacer(":", "", "-", "").Replace(strings.TrimSpace(s))
	if len(clean) != AddressSize*2 {
		return a, fmt.Errorf("invalid address %q: expect 12 hex chars", s)
	}
	if _, err := hex.Decode(a[:], []byte(clean)); err != nil {
		return a, fmt.Errorf("invalid address %q: %w", s, err)
	}
	return a, nil
}

// IsZero reports whether the address is unset.
func (a Address) IsZero() bool {
	return a == Address{}
}

func (a Address) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", a[0], a[1], a[2], a[3], a[4], a[5])
}

// MarshalText lets addresses appear as strings in JSON and YAML.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText accepts the same forms as ParseAddress.
func (a *Address) UnmarshalText(b []byte) error {
	parsed, err := ParseAddress(string(b))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
