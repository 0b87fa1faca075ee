package relay

import (
	"context"
	"fmt"
	"time"

	"github.com/loramesh/lorax/internal/monitor"
	"github.com/loramesh/lorax/internal/neighbor"
	"github.com/loramesh/lorax/internal/protocol"
	"github.com/loramesh/lorax/internal/telemetry"
	"github.com/loramesh/lorax/internal/util"
)

// sweepNeighbors evicts neighbors that stopped broadcasting.
func (e *Engine) sweepNeighbors(now time.Time) {
	for _, addr := range e.table.Sweep(now) {
		telemetry.Evictions.Inc()
		if e.bus != nil {
			e.bus.Publish(monitor.Event{Type: monitor.EventNeighborEvicted, Neighbor: addr.String()})
		}
	}
}

// sweepRetries finds the first connection, in table order, whose reply is
// overdue and either retransmits its oldest message or gives up on it.
// At most one such action is taken per call; it reports whether one was.
func (e *Engine) sweepRetries(ctx context.Context, now time.Time) bool {
	acted := false
	e.table.Range(func(n *neighbor.Neighbor) bool {
		for _, c := range n.Connections() {
			if c.State != neighbor.WaitingPacket || now.Sub(c.StateTime) < e.opts.RetryInterval {
				continue
			}

			head := c.Head()
			if head == nil {
				util.LogWarning("connection %s [%s] waiting for a packet with nothing queued", n.Address, c.Ports)
				c.SetState(neighbor.WaitingMessage, now)
				continue
			}

			if head.Retries > 0 {
				head.Retries--
				e.retransmit(ctx, n, c, head, now)
			} else {
				e.giveUp(n, c, now)
			}
			acted = true
			return false
		}
		return true
	})
	return acted
}

func (e *Engine) retransmit(ctx context.Context, n *neighbor.Neighbor, c *neighbor.Connection, m *protocol.Message, now time.Time) {
	p, err := protocol.MessageToPacket(m)
	if err == nil {
		err = e.transmit(ctx, p)
	}
	if err != nil {
		e.drop(n, c, fmt.Errorf("retransmit: %w", err))
		return
	}
	c.Touch(now)
	util.Stats.AddRetry()
	util.LogInfo("connection %s [%s] retransmitted, %d retries left", n.Address, c.Ports, m.Retries)
	e.publish(monitor.EventRetry, n, c, fmt.Sprintf("%d retries left", m.Retries))
}

// giveUp returns the oldest message to its client marked UNREACHABLE.
func (e *Engine) giveUp(n *neighbor.Neighbor, c *neighbor.Connection, now time.Time) {
	m := c.Pop()
	m.Type = protocol.MessageUnreachable

	util.Stats.AddUnreachable()
	util.LogWarning("connection %s [%s] unreachable, returning message to %s", n.Address, c.Ports, c.ClientAddr)
	e.publish(monitor.EventUnreachable, n, c, "retries exhausted")

	if err := e.deliver(c.ClientAddr, m); err != nil {
		e.drop(n, c, err)
		return
	}
	e.settle(c, now)
}
