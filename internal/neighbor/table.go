package neighbor

import (
	"time"

	"github.com/loramesh/lorax/internal/protocol"
	"github.com/loramesh/lorax/internal/util"
)

// Table maps addresses to neighbors. The self entry always exists, is never
// evicted and is visited last. Not safe for concurrent use; the relay loop
// owns it.
type Table struct {
	self       *Neighbor
	entries    *util.OrderedMap[protocol.Address, *Neighbor]
	staleAfter time.Duration
}

// NewTable creates a table holding only the self entry.
func NewTable(self protocol.Address, now time.Time, staleAfter time.Duration) *Table {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	t := &Table{
		self:       newNeighbor(self, now),
		entries:    util.NewOrderedMap[protocol.Address, *Neighbor](),
		staleAfter: staleAfter,
	}
	t.self.Type = protocol.TypeBroadcast
	t.entries.Set(self, t.self)
	return t
}

// Self returns this node's entry.
func (t *Table) Self() *Neighbor {
	return t.self
}

// Find looks up addr, checking the self entry first.
func (t *Table) Find(addr protocol.Address) (*Neighbor, bool) {
	if addr == t.self.Address {
		return t.self, true
	}
	return t.entries.Get(addr)
}

// Ensure returns the neighbor for addr, creating it at the front of the
// table if unknown. A new neighbor counts as heard at now.
func (t *Table) Ensure(addr protocol.Address, now time.Time) (n *Neighbor, created bool) {
	if n, ok := t.Find(addr); ok {
		return n, false
	}
	n = newNeighbor(addr, now)
	n.Type = protocol.TypeData
	t.entries.PushFront(addr, n)
	return n, true
}

// Upsert records a broadcast heard from addr.
func (t *Table) Upsert(addr protocol.Address, typ, numNeighbors uint8, now time.Time) (n *Neighbor, created bool) {
	n, created = t.Ensure(addr, now)
	if n == t.self {
		return n, false
	}
	n.Type = typ
	n.NumNeighbors = numNeighbors
	n.BroadcastTime = now
	return n, created
}

// Sweep evicts every neighbor other than self whose last broadcast is more
// than the stale window before now, together with its connections.
func (t *Table) Sweep(now time.Time) []protocol.Address {
	var evicted []protocol.Address
	t.entries.Range(func(addr protocol.Address, n *Neighbor) bool {
		if n == t.self {
			return true
		}
		if age := now.Sub(n.BroadcastTime); age > t.staleAfter {
			util.LogInfo("neighbor %s evicted: silent for %s (%d connections dropped)",
				addr, age.Truncate(time.Second), n.NumConnections())
			t.entries.Delete(addr)
			evicted = append(evicted, addr)
		}
		return true
	})
	return evicted
}

// Len returns the number of neighbors, not counting self.
func (t *Table) Len() int {
	return t.entries.Len() - 1
}

// Range visits every entry in table order, self last, until fn returns false.
func (t *Table) Range(fn func(*Neighbor) bool) {
	t.entries.Range(func(_ protocol.Address, n *Neighbor) bool {
		return fn(n)
	})
}

// Addresses lists the neighbors' addresses in table order, excluding self.
func (t *Table) Addresses() []protocol.Address {
	out := make([]protocol.Address, 0, t.Len())
	t.Range(func(n *Neighbor) bool {
		if n != t.self {
			out = append(out, n.Address)
		}
		return true
	})
	return out
}
