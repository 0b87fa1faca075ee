package neighbor_test

import (
	"testing"
	"time"

	"github.com/loramesh/lorax/internal/neighbor"
	"github.com/loramesh/lorax/internal/protocol"
)

func msg(t *testing.T, data string) *protocol.Message {
	t.Helper()
	m, err := protocol.BuildMessage(2, protocol.MessageData, selfAddr, peerA, 1, 9, []byte(data))
	if err != nil {
		t.Fatalf("BuildMessage: %v", err)
	}
	return m
}

func TestConnectionQueue(t *testing.T) {
	n, _ := neighbor.NewTable(selfAddr, epoch, 0).Ensure(peerA, epoch)
	c, created := n.EnsureConnection(neighbor.PortPair{Local: 1, Remote: 9}, epoch)
	if !created || c.State != neighbor.WaitingMessage {
		t.Fatalf("new connection: created=%v state=%s", created, c.State)
	}

	if !c.Enqueue(msg(t, "one")) || !c.Enqueue(msg(t, "two")) {
		t.Fatalf("enqueue failed")
	}

	dup := msg(t, "one")
	dup.Retries = 0
	if c.Enqueue(dup) {
		t.Fatalf("matching message queued twice")
	}
	if c.QueueLen() != 2 {
		t.Fatalf("QueueLen = %d", c.QueueLen())
	}

	if got := string(c.Pop().Data); got != "one" {
		t.Fatalf("Pop = %q, want one", got)
	}
	if got := string(c.Head().Data); got != "two" {
		t.Fatalf("Head = %q, want two", got)
	}
	c.Pop()
	if c.Pop() != nil || c.Head() != nil {
		t.Fatalf("empty queue returned a message")
	}
}

func TestConnectionStateTimer(t *testing.T) {
	n, _ := neighbor.NewTable(selfAddr, epoch, 0).Ensure(peerA, epoch)
	c, _ := n.EnsureConnection(neighbor.PortPair{Local: 1, Remote: 9}, epoch)

	later := epoch.Add(5 * time.Second)
	c.SetState(neighbor.WaitingPacket, later)
	if c.State != neighbor.WaitingPacket || !c.StateTime.Equal(later) {
		t.Fatalf("SetState: %s at %v", c.State, c.StateTime)
	}

	again, created := n.EnsureConnection(neighbor.PortPair{Local: 1, Remote: 9}, later)
	if created || again != c {
		t.Fatalf("EnsureConnection returned a different connection")
	}

	if !n.DropConnection(c.Ports) || n.NumConnections() != 0 {
		t.Fatalf("DropConnection failed")
	}
}

func TestPortPairIsOrdered(t *testing.T) {
	n, _ := neighbor.NewTable(selfAddr, epoch, 0).Ensure(peerA, epoch)
	a, _ := n.EnsureConnection(neighbor.PortPair{Local: 1, Remote: 2}, epoch)
	b, created := n.EnsureConnection(neighbor.PortPair{Local: 2, Remote: 1}, epoch)
	if !created || a == b {
		t.Fatalf("swapped port pair should be a distinct connection")
	}
}
