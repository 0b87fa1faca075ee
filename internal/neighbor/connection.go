package neighbor

import (
	"fmt"
	"time"

	"github.com/loramesh/lorax/internal/protocol"
)

// State is the phase of a Connection.
type State uint8

const (
	// WaitingMessage: the last event was a delivery to a local client or the
	// server; the connection is waiting for the next client message.
	WaitingMessage State = iota
	// WaitingPacket: a message went out over the radio and the connection is
	// waiting for the peer's reply packet.
	WaitingPacket
)

func (s State) String() string {
	switch s {
	case WaitingMessage:
		return "WAITING_MESSAGE"
	case WaitingPacket:
		return "WAITING_PACKET"
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// PortPair keys a connection under its neighbor. Local is this node's port,
// Remote is the neighbor's.
type PortPair struct {
	Local  uint8
	Remote uint8
}

func (p PortPair) String() string {
	return fmt.Sprintf("%d<->%d", p.Local, p.Remote)
}

// Connection is the per-port-pair state machine with its queue of messages
// awaiting a reply.
type Connection struct {
	Ports      PortPair
	State      State
	StateTime  time.Time
	Client     bool   // opened by a local client
	ClientAddr string // return socket path, set iff Client

	queue []*protocol.Message
}

func newConnection(ports PortPair, now time.Time) *Connection {
	return &Connection{
		Ports:     ports,
		State:     WaitingMessage,
		StateTime: now,
	}
}

// SetState moves the connection to s and restarts its timer.
func (c *Connection) SetState(s State, now time.Time) {
	c.State = s
	c.StateTime = now
}

// Touch restarts the state timer without changing state.
func (c *Connection) Touch(now time.Time) {
	c.StateTime = now
}

// Enqueue appends m unless a matching message is already queued.
// It reports whether m was added.
func (c *Connection) Enqueue(m *protocol.Message) bool {
	for _, q := range c.queue {
		if q.Matches(m) {
			return false
		}
	}
	c.queue = append(c.queue, m)
	return true
}

// Head returns the oldest queued message, or nil.
func (c *Connection) Head() *protocol.Message {
	if len(c.queue) == 0 {
		return nil
	}
	return c.queue[0]
}

// Pop removes and returns the oldest queued message, or nil.
func (c *Connection) Pop() *protocol.Message {
	if len(c.queue) == 0 {
		return nil
	}
	m := c.queue[0]
	c.queue[0] = nil
	c.queue = c.queue[1:]
	return m
}

// QueueLen returns the number of messages awaiting a reply.
func (c *Connection) QueueLen() int {
	return len(c.queue)
}
