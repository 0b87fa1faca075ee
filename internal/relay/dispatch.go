package relay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/loramesh/lorax/internal/monitor"
	"github.com/loramesh/lorax/internal/neighbor"
	"github.com/loramesh/lorax/internal/protocol"
	"github.com/loramesh/lorax/internal/transport"
	"github.com/loramesh/lorax/internal/util"
)

// ErrNoReturnAddress rejects client messages from unbound sockets, which
// could never receive a reply.
var ErrNoReturnAddress = errors.New("client socket is not bound")

// ──────────────────────────────────────────────────────────────────────────────
// Radio side
// ──────────────────────────────────────────────────────────────────────────────

// HandlePacket validates one radio frame and dispatches it. Invalid frames
// are logged and discarded without touching any state.
func (e *Engine) HandlePacket(ctx context.Context, data []byte) {
	p, err := protocol.Decode(data)
	if err != nil {
		util.Stats.AddBad()
		util.LogWarning("dropping radio frame (%d bytes): %v", len(data), err)
		return
	}
	util.Stats.AddRecv(len(data))
	if util.DebugEnabled() {
		util.LogDebug("radio -> %s %s:%d -> %s:%d (%d bytes)",
			protocol.TypeName(p.Type), p.Source, p.SourcePort, p.Destination, p.DestinationPort, len(data))
	}

	now := e.opts.Now()
	self := e.table.Self().Address

	if p.Type == protocol.TypeBroadcast {
		e.handleBroadcast(p, now)
		return
	}
	if p.Destination != self {
		util.LogDebug("ignoring %s packet for %s", protocol.TypeName(p.Type), p.Destination)
		return
	}

	ports := neighbor.PortPair{Local: p.DestinationPort, Remote: p.SourcePort}
	if p.IsError() {
		e.handleErrorPacket(ports, p, now)
		return
	}

	n, created := e.table.Ensure(p.Source, now)
	if created {
		util.LogInfo("neighbor %s added from %s packet", n.Address, protocol.TypeName(p.Type))
		e.publish(monitor.EventNeighborAdded, n, nil, "")
	}
	e.handleDataPacket(ctx, n, ports, p, now)
}

func (e *Engine) handleBroadcast(p *protocol.Packet, now time.Time) {
	if p.Source == e.table.Self().Address {
		util.LogDebug("ignoring our own broadcast")
		return
	}
	var count uint8
	if len(p.Payload) > 0 {
		count = p.Payload[0]
	}
	n, created := e.table.Upsert(p.Source, p.Type, count, now)
	if created {
		util.LogInfo("neighbor %s discovered (%d neighbors)", n.Address, count)
		e.publish(monitor.EventNeighborAdded, n, nil, fmt.Sprintf("%d neighbors", count))
	}
}

// handleDataPacket hands the packet's message to the connection's client, or
// to the server for connections the peer opened. A failed hand-off is
// reported back to the peer as ERROR_SERVER.
func (e *Engine) handleDataPacket(ctx context.Context, n *neighbor.Neighbor, ports neighbor.PortPair, p *protocol.Packet, now time.Time) {
	c, created := n.EnsureConnection(ports, now)
	if created {
		e.publish(monitor.EventConnectionOpened, n, c, "opened by peer")
	}

	dest := e.opts.ServerPath
	if c.Client {
		dest = c.ClientAddr
	}

	if err := e.deliver(dest, protocol.PacketToMessage(p)); err != nil {
		util.LogWarning("delivery to %s failed: %v", dest, err)
		if err := e.reflect(ctx, p); err != nil {
			e.drop(n, c, fmt.Errorf("error reply failed: %w", err))
		}
		return
	}
	e.publish(monitor.EventMessageDelivered, n, c, dest)

	if c.Client && c.Pop() != nil {
		util.LogDebug("connection %s [%s] reply received, %d still queued", n.Address, c.Ports, c.QueueLen())
	}
	e.settle(c, now)
}

// reflect answers a packet with ERROR_SERVER, carrying the original payload.
func (e *Engine) reflect(ctx context.Context, p *protocol.Packet) error {
	reply := *p
	reply.Flip()
	reply.Type = protocol.TypeErrorServer
	protocol.Checksum(&reply)
	return e.transmit(ctx, &reply)
}

// handleErrorPacket tells the client its oldest message was refused by the
// peer. Error packets are never answered.
// Unknown sources are not added to the table.
func (e *Engine) handleErrorPacket(ports neighbor.PortPair, p *protocol.Packet, now time.Time) {
	n, ok := e.table.Find(p.Source)
	if !ok {
		util.LogWarning("dropping %s from unknown neighbor %s", protocol.TypeName(p.Type), p.Source)
		return
	}
	c, ok := n.Connection(ports)
	if !ok || !c.Client {
		util.LogWarning("dropping %s from %s: no client connection on %s", protocol.TypeName(p.Type), n.Address, ports)
		return
	}

	m := c.Pop()
	if m == nil {
		m = protocol.PacketToMessage(p)
	}
	m.Type = protocol.MessageUnreachable

	util.Stats.AddUnreachable()
	e.publish(monitor.EventUnreachable, n, c, protocol.TypeName(p.Type))
	if err := e.deliver(c.ClientAddr, m); err != nil {
		e.drop(n, c, err)
		return
	}
	e.settle(c, now)
}

// settle returns a connection to WAITING_MESSAGE, or keeps it waiting for a
// packet while it still holds queued messages.
func (e *Engine) settle(c *neighbor.Connection, now time.Time) {
	if c.QueueLen() > 0 {
		c.SetState(neighbor.WaitingPacket, now)
		return
	}
	c.SetState(neighbor.WaitingMessage, now)
}

// ──────────────────────────────────────────────────────────────────────────────
// Client side
// ──────────────────────────────────────────────────────────────────────────────

// HandleMessage validates one client datagram and transmits it. Messages
// from the server are replies and are flipped back toward the peer; they are
// not queued. The returned error is informational; the loop keeps running.
func (e *Engine) HandleMessage(ctx context.Context, d transport.Datagram) error {
	m, err := protocol.DecodeMessage(d.Data)
	if err != nil {
		util.LogWarning("dropping client message from %q: %v", d.From, err)
		return err
	}

	fromServer := d.From == e.opts.ServerPath
	if !fromServer && d.From == "" {
		util.LogWarning("dropping client message: %v", ErrNoReturnAddress)
		return ErrNoReturnAddress
	}
	util.Stats.AddMessageIn()

	if fromServer {
		m.Flip()
	}

	self := e.table.Self().Address
	switch {
	case m.Source.IsZero():
		m.Source = self
	case m.Source != self:
		util.LogWarning("message source %s is not this node (%s)", m.Source, self)
	}

	p, err := protocol.MessageToPacket(m)
	if err != nil {
		util.LogWarning("dropping client message from %q: %v", d.From, err)
		return err
	}

	now := e.opts.Now()
	n, created := e.table.Ensure(m.Destination, now)
	if created {
		util.LogInfo("neighbor %s added from client message", n.Address)
		e.publish(monitor.EventNeighborAdded, n, nil, "")
	}

	ports := neighbor.PortPair{Local: m.SourcePort, Remote: m.DestinationPort}
	c, created := n.EnsureConnection(ports, now)
	if created {
		e.publish(monitor.EventConnectionOpened, n, c, "opened by "+d.From)
		if !fromServer {
			c.Client = true
			c.ClientAddr = d.From
		}
	}

	// Only the client that opened the connection gets retries and replies.
	tracked := !fromServer && c.Client && c.ClientAddr == d.From
	if tracked {
		if !c.Enqueue(m) {
			util.LogDebug("connection %s [%s] message already queued", n.Address, c.Ports)
		}
	} else if !fromServer {
		owner := e.opts.ServerPath
		if c.Client {
			owner = c.ClientAddr
		}
		util.LogWarning("connection %s [%s] belongs to %s; sending message from %s without retries",
			n.Address, c.Ports, owner, d.From)
	}

	if err := e.transmit(ctx, p); err != nil {
		e.drop(n, c, err)
		return err
	}

	if tracked {
		c.SetState(neighbor.WaitingPacket, now)
	}
	e.publish(monitor.EventMessageSent, n, c, fmt.Sprintf("%d bytes", len(m.Data)))
	return nil
}
