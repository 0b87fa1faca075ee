package relay_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/loramesh/lorax/internal/neighbor"
	"github.com/loramesh/lorax/internal/protocol"
	"github.com/loramesh/lorax/internal/relay"
	"github.com/loramesh/lorax/internal/transport"
)

// Compile-time interface checks.
var (
	_ relay.Radio   = (*fakeRadio)(nil)
	_ relay.Clients = (*fakeClients)(nil)
	_ relay.Radio   = (*transport.RadioLink)(nil)
	_ relay.Clients = (*transport.Socket)(nil)
)

var (
	selfAddr = protocol.Address{0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0x01}
	peerAddr = protocol.Address{0xbb, 0xbb, 0xbb, 0xbb, 0xbb, 0x02}
	epoch    = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
)

const (
	serverPath = "/run/lorax/server"
	clientPath = "/home/pi/client.messages"
)

// fakeRadio records every packet the engine puts on air.
type fakeRadio struct {
	t    *testing.T
	mu   sync.Mutex
	sent []*protocol.Packet
	fail error
}

func (r *fakeRadio) Transmit(_ context.Context, b []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	p, err := protocol.Decode(b)
	if err != nil {
		r.t.Errorf("engine transmitted an invalid packet: %v", err)
		return err
	}
	r.sent = append(r.sent, p)
	return nil
}

// ofType returns the transmitted packets of type typ.
func (r *fakeRadio) ofType(typ uint8) []*protocol.Packet {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*protocol.Packet
	for _, p := range r.sent {
		if p.Type == typ {
			out = append(out, p)
		}
	}
	return out
}

type delivery struct {
	path string
	msg  *protocol.Message
}

// fakeClients records deliveries; paths in fail refuse them.
type fakeClients struct {
	t    *testing.T
	mu   sync.Mutex
	out  []delivery
	fail map[string]bool
}

func (c *fakeClients) SendTo(path string, b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail[path] {
		return errors.New("connection refused")
	}
	m, err := protocol.DecodeReply(b)
	if err != nil {
		c.t.Errorf("engine delivered an invalid message: %v", err)
		return err
	}
	c.out = append(c.out, delivery{path: path, msg: m})
	return nil
}

func (c *fakeClients) deliveries() []delivery {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]delivery(nil), c.out...)
}

type clock struct{ now time.Time }

func (c *clock) Now() time.Time          { return c.now }
func (c *clock) advance(d time.Duration) { c.now = c.now.Add(d) }

type harness struct {
	engine  *relay.Engine
	radio   *fakeRadio
	clients *fakeClients
	clock   *clock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		radio:   &fakeRadio{t: t},
		clients: &fakeClients{t: t, fail: map[string]bool{}},
		clock:   &clock{now: epoch},
	}
	h.engine = relay.New(relay.Options{
		Address:    selfAddr,
		ServerPath: serverPath,
		Now:        h.clock.Now,
	}, h.radio, h.clients)
	return h
}

func packetBytes(t *testing.T, typ uint8, src, dst protocol.Address, srcPort, dstPort uint8, payload string) []byte {
	t.Helper()
	p, err := protocol.BuildPacket(typ, src, dst, srcPort, dstPort, []byte(payload))
	if err != nil {
		t.Fatalf("BuildPacket: %v", err)
	}
	return protocol.Encode(p)
}

func clientMessage(t *testing.T, retries uint8, src protocol.Address, srcPort, dstPort uint8, data string) transport.Datagram {
	t.Helper()
	m, err := protocol.BuildMessage(retries, protocol.MessageData, src, peerAddr, srcPort, dstPort, []byte(data))
	if err != nil {
		t.Fatalf("BuildMessage: %v", err)
	}
	return transport.Datagram{Data: protocol.EncodeMessage(m), From: clientPath}
}

func connection(t *testing.T, e *relay.Engine, addr protocol.Address, local, remote uint8) *neighbor.Connection {
	t.Helper()
	n, ok := e.Table().Find(addr)
	if !ok {
		t.Fatalf("neighbor %s not in table", addr)
	}
	c, ok := n.Connection(neighbor.PortPair{Local: local, Remote: remote})
	if !ok {
		t.Fatalf("connection %d<->%d not found", local, remote)
	}
	return c
}
