// Package neighbor tracks the radio peers heard by this node and the
// per-port connections held with each of them.
package neighbor

import (
	"time"

	"github.com/loramesh/lorax/internal/protocol"
	"github.com/loramesh/lorax/internal/util"
)

// DefaultStaleAfter is how long a neighbor survives without a broadcast.
const DefaultStaleAfter = 60 * time.Second

// Neighbor is one peer on the radio, or this node itself.
type Neighbor struct {
	Address       protocol.Address
	Type          uint8 // type of the last packet that refreshed it
	NumNeighbors  uint8 // neighbor count it last advertised
	BroadcastTime time.Time

	conns *util.OrderedMap[PortPair, *Connection]
}

func newNeighbor(addr protocol.Address, now time.Time) *Neighbor {
	return &Neighbor{
		Address:       addr,
		BroadcastTime: now,
		conns:         util.NewOrderedMap[PortPair, *Connection](),
	}
}

// Connection looks up the connection for ports.
func (n *Neighbor) Connection(ports PortPair) (*Connection, bool) {
	return n.conns.Get(ports)
}

// EnsureConnection returns the connection for ports, creating it in
// WaitingMessage if needed. created is true for a new connection.
func (n *Neighbor) EnsureConnection(ports PortPair, now time.Time) (c *Connection, created bool) {
	if c, ok := n.conns.Get(ports); ok {
		return c, false
	}
	c = newConnection(ports, now)
	n.conns.PushFront(ports, c)
	return c, true
}

// DropConnection removes the connection for ports and its queue.
func (n *Neighbor) DropConnection(ports PortPair) bool {
	return n.conns.Delete(ports)
}

// Connections returns the neighbor's connections in table order.
func (n *Neighbor) Connections() []*Connection {
	out := make([]*Connection, 0, n.conns.Len())
	n.conns.Range(func(_ PortPair, c *Connection) bool {
		out = append(out, c)
		return true
	})
	return out
}

// NumConnections returns the number of open connections.
func (n *Neighbor) NumConnections() int {
	return n.conns.Len()
}
