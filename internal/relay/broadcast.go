package relay

import (
	"context"
	"fmt"
	"time"

	"github.com/loramesh/lorax/internal/monitor"
	"github.com/loramesh/lorax/internal/protocol"
	"github.com/loramesh/lorax/internal/util"
)

// Broadcast announces this node with a one-byte payload holding the number
// of neighbors it knows. The broadcast timer restarts even when the radio
// refuses the packet, so a dead radio is not hammered every iteration.
func (e *Engine) Broadcast(ctx context.Context) error {
	now := e.opts.Now()
	self := e.table.Self()
	self.BroadcastTime = now
	e.drawJitter()

	count := e.table.Len()
	if count > 255 {
		count = 255
	}

	p, err := protocol.BuildPacket(protocol.TypeBroadcast, self.Address, protocol.BroadcastAddress, 0, 0, []byte{byte(count)})
	if err != nil {
		return err
	}
	if err := e.transmit(ctx, p); err != nil {
		util.LogError("broadcast failed: %v", err)
		return fmt.Errorf("broadcast: %w", err)
	}

	util.Stats.AddBroadcast()
	util.LogDebug("broadcast sent: %d neighbors, next in %s", count, e.opts.BroadcastInterval+e.jitter)
	e.publish(monitor.EventBroadcast, self, nil, fmt.Sprintf("%d neighbors", count))
	return nil
}

// broadcastDue reports whether the jittered interval has passed since the
// last broadcast.
func (e *Engine) broadcastDue(now time.Time) bool {
	return now.Sub(e.table.Self().BroadcastTime) > e.opts.BroadcastInterval+e.jitter
}

// untilBroadcast is the time left before the next broadcast is due.
func (e *Engine) untilBroadcast(now time.Time) time.Duration {
	due := e.table.Self().BroadcastTime.Add(e.opts.BroadcastInterval + e.jitter)
	return due.Sub(now)
}

func (e *Engine) drawJitter() {
	if e.opts.BroadcastJitter <= 0 {
		e.jitter = 0
		return
	}
	e.jitter = time.Duration(e.opts.Rand.Int64N(int64(e.opts.BroadcastJitter)))
}
