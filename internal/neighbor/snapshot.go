package neighbor

import (
	"time"

	"github.com/loramesh/lorax/internal/protocol"
)

// Snapshot is an immutable copy of the table for readers outside the relay
// loop (control queries, the status server).
type Snapshot struct {
	Self      protocol.Address `json:"self"`
	Taken     time.Time        `json:"taken"`
	Neighbors []NeighborView   `json:"neighbors"` // excludes self
	Local     []ConnectionView `json:"local_connections"`
}

// NeighborView describes one neighbor in a Snapshot.
type NeighborView struct {
	Address       protocol.Address `json:"address"`
	Type          string           `json:"type"`
	NumNeighbors  uint8            `json:"num_neighbors"`
	LastBroadcast time.Time        `json:"last_broadcast"`
	Connections   []ConnectionView `json:"connections"`
}

// ConnectionView describes one connection in a Snapshot.
type ConnectionView struct {
	LocalPort  uint8     `json:"local_port"`
	RemotePort uint8     `json:"remote_port"`
	State      string    `json:"state"`
	Since      time.Time `json:"since"`
	Client     string    `json:"client,omitempty"`
	Queued     int       `json:"queued"`
}

// Snapshot copies the table's current state.
func (t *Table) Snapshot(now time.Time) *Snapshot {
	s := &Snapshot{
		Self:      t.self.Address,
		Taken:     now,
		Neighbors: make([]NeighborView, 0, t.Len()),
		Local:     viewConnections(t.self),
	}
	t.Range(func(n *Neighbor) bool {
		if n == t.self {
			return true
		}
		s.Neighbors = append(s.Neighbors, NeighborView{
			Address:       n.Address,
			Type:          protocol.TypeName(n.Type),
			NumNeighbors:  n.NumNeighbors,
			LastBroadcast: n.BroadcastTime,
			Connections:   viewConnections(n),
		})
		return true
	})
	return s
}

// Addresses lists the neighbors' addresses.
func (s *Snapshot) Addresses() []protocol.Address {
	out := make([]protocol.Address, len(s.Neighbors))
	for i, n := range s.Neighbors {
		out[i] = n.Address
	}
	return out
}

// Counts returns the number of connections and queued messages.
func (s *Snapshot) Counts() (conns, queued int) {
	add := func(cs []ConnectionView) {
		for _, c := range cs {
			conns++
			queued += c.Queued
		}
	}
	add(s.Local)
	for _, n := range s.Neighbors {
		add(n.Connections)
	}
	return conns, queued
}

func viewConnections(n *Neighbor) []ConnectionView {
	conns := n.Connections()
	out := make([]ConnectionView, 0, len(conns))
	for _, c := range conns {
		out = append(out, ConnectionView{
			LocalPort:  c.Ports.Local,
			RemotePort: c.Ports.Remote,
			State:      c.State.String(),
			Since:      c.StateTime,
			Client:     c.ClientAddr,
			Queued:     c.QueueLen(),
		})
	}
	return out
}
