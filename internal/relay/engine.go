// Package relay runs the store-and-forward loop: radio packets are turned
// into client messages and back, connections are retried until the peer
// answers, and neighbors are discovered by periodic broadcasts.
package relay

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/loramesh/lorax/internal/monitor"
	"github.com/loramesh/lorax/internal/neighbor"
	"github.com/loramesh/lorax/internal/protocol"
	"github.com/loramesh/lorax/internal/telemetry"
	"github.com/loramesh/lorax/internal/transport"
	"github.com/loramesh/lorax/internal/util"
)

// Defaults applied to zero Options fields.
const (
	DefaultRetryInterval     = 3 * time.Second
	DefaultBroadcastInterval = 10 * time.Second
)

// ErrSourceClosed is returned by Run when an input channel closes.
var ErrSourceClosed = errors.New("relay input closed")

// Radio transmits one encoded packet and reports whether it went on air.
type Radio interface {
	Transmit(ctx context.Context, b []byte) error
}

// Clients delivers encoded messages to local unix socket paths.
type Clients interface {
	SendTo(path string, b []byte) error
}

// Options configures an Engine.
type Options struct {
	Address           protocol.Address
	ServerPath        string // messages from here are server replies
	RetryInterval     time.Duration
	BroadcastInterval time.Duration
	BroadcastJitter   time.Duration // upper bound of the random extra delay
	StaleAfter        time.Duration

	Now  func() time.Time // defaults to time.Now
	Rand *rand.Rand       // jitter source
	Bus  *monitor.Bus     // optional event feed
}

// Engine owns the neighbor table. All methods except Snapshot must be called
// from the goroutine running Run (or, in tests, from a single goroutine).
type Engine struct {
	opts    Options
	table   *neighbor.Table
	radio   Radio
	clients Clients
	bus     *monitor.Bus

	jitter   time.Duration // current draw, added to BroadcastInterval
	snapshot atomic.Pointer[neighbor.Snapshot]
}

// New creates an engine whose table holds only this node.
func New(opts Options, radio Radio, clients Clients) *Engine {
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = DefaultRetryInterval
	}
	if opts.BroadcastInterval <= 0 {
		opts.BroadcastInterval = DefaultBroadcastInterval
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = neighbor.DefaultStaleAfter
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	e := &Engine{
		opts:    opts,
		radio:   radio,
		clients: clients,
		bus:     opts.Bus,
	}
	now := opts.Now()
	e.table = neighbor.NewTable(opts.Address, now, opts.StaleAfter)
	e.drawJitter()
	e.publishSnapshot(now)
	return e
}

// Table exposes the neighbor table to the loop goroutine.
func (e *Engine) Table() *neighbor.Table {
	return e.table
}

// Snapshot returns the table copy taken at the end of the last iteration.
// Safe for concurrent use.
func (e *Engine) Snapshot() *neighbor.Snapshot {
	return e.snapshot.Load()
}

// Run processes radio packets and client messages until ctx is cancelled.
// Each iteration handles at most one datagram per source, radio first, then
// runs the sweeps.
func (e *Engine) Run(ctx context.Context, radioIn, clientIn <-chan transport.Datagram) error {
	util.LogInfo("relay running as %s, server at %s", e.opts.Address, e.opts.ServerPath)

	timer := time.NewTimer(e.opts.RetryInterval)
	defer timer.Stop()
	idleWake := e.armTimer(timer)

	for {
		var pkt, msg *transport.Datagram
		idle := false

		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-radioIn:
			if !ok {
				return ErrSourceClosed
			}
			pkt = &d
		case d, ok := <-clientIn:
			if !ok {
				return ErrSourceClosed
			}
			msg = &d
		case <-timer.C:
			idle = idleWake
		}

		// Pick up a datagram already waiting on the other source.
		if pkt == nil {
			select {
			case d, ok := <-radioIn:
				if ok {
					pkt = &d
				}
			default:
			}
		}
		if msg == nil {
			select {
			case d, ok := <-clientIn:
				if ok {
					msg = &d
				}
			default:
			}
		}

		if pkt != nil {
			e.HandlePacket(ctx, pkt.Data)
		}
		if msg != nil {
			e.HandleMessage(ctx, *msg)
		}
		e.Tick(ctx, idle)

		idleWake = e.armTimer(timer)
	}
}

// armTimer sets timer to the next broadcast deadline, capped at the retry
// interval. It reports whether the wake-up is the broadcast deadline.
func (e *Engine) armTimer(timer *time.Timer) bool {
	wait := e.untilBroadcast(e.opts.Now())
	idle := true
	if wait > e.opts.RetryInterval {
		wait = e.opts.RetryInterval
		idle = false
	}
	if wait < 0 {
		wait = 0
	}
	timer.Reset(wait)
	return idle
}

// Tick runs the end-of-iteration work: stale neighbor eviction, one retry
// action, and the broadcast check. idle marks an iteration woken only by the
// broadcast deadline.
func (e *Engine) Tick(ctx context.Context, idle bool) {
	now := e.opts.Now()

	e.sweepNeighbors(now)
	acted := e.sweepRetries(ctx, now)

	switch {
	case idle && !acted:
		e.Broadcast(ctx)
	case e.broadcastDue(now):
		e.Broadcast(ctx)
	}

	e.publishSnapshot(e.opts.Now())
}

func (e *Engine) publishSnapshot(now time.Time) {
	snap := e.table.Snapshot(now)
	e.snapshot.Store(snap)
	conns, queued := snap.Counts()
	telemetry.SetTable(len(snap.Neighbors), conns, queued)
}

// ──────────────────────────────────────────────────────────────────────────────
// Shared helpers
// ──────────────────────────────────────────────────────────────────────────────

func (e *Engine) transmit(ctx context.Context, p *protocol.Packet) error {
	data := protocol.Encode(p)
	if util.DebugEnabled() {
		util.LogDebug("radio <- %s %s:%d -> %s:%d (%d bytes)",
			protocol.TypeName(p.Type), p.Source, p.SourcePort, p.Destination, p.DestinationPort, len(data))
	}
	return e.radio.Transmit(ctx, data)
}

func (e *Engine) deliver(path string, m *protocol.Message) error {
	if path == "" {
		return errors.New("no return address")
	}
	if err := e.clients.SendTo(path, protocol.EncodeMessage(m)); err != nil {
		util.Stats.AddFailure()
		return err
	}
	util.Stats.AddMessageOut()
	return nil
}

// drop removes a connection after a transport failure.
func (e *Engine) drop(n *neighbor.Neighbor, c *neighbor.Connection, cause error) {
	n.DropConnection(c.Ports)
	util.LogWarning("connection %s [%s] dropped (%d queued): %v", n.Address, c.Ports, c.QueueLen(), cause)
	e.publish(monitor.EventConnectionDropped, n, c, cause.Error())
}

func (e *Engine) publish(t monitor.EventType, n *neighbor.Neighbor, c *neighbor.Connection, detail string) {
	if e.bus == nil {
		return
	}
	ev := monitor.Event{Type: t, Detail: detail}
	if n != nil {
		ev.Neighbor = n.Address.String()
	}
	if c != nil {
		ev.Ports = c.Ports.String()
	}
	e.bus.Publish(ev)
}
