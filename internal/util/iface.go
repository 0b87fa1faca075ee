package util

import (
	"fmt"
	"net"
)

// FallbackInterfaces are tried in order when no interface is configured.
var FallbackInterfaces = []string{"eth0", "wlan0"}

// HardwareAddr returns the 6-byte MAC of the named interface. An empty name
// tries FallbackInterfaces.
func HardwareAddr(name string) ([6]byte, string, error) {
	var out [6]byte

	candidates := FallbackInterfaces
	if name != "" {
		candidates = []string{name}
	}

	var lastErr error
	for _, n := range candidates {
		iface, err := net.InterfaceByName(n)
		if err != nil {
			lastErr = err
			continue
		}
		if len(iface.HardwareAddr) != len(out) {
			lastErr = fmt.Errorf("interface %s has no 6-byte hardware address", n)
			continue
		}
		copy(out[:], iface.HardwareAddr)
		return out, n, nil
	}
	return out, "", fmt.Errorf("failed to read hardware address: %w", lastErr)
}
