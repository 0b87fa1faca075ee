package control

import (
	"context"
	"fmt"
	"time"

	"github.com/loramesh/lorax/internal/neighbor"
	"github.com/loramesh/lorax/internal/transport"
	"github.com/loramesh/lorax/internal/util"
)

// SnapshotSource supplies the latest neighbor table copy.
type SnapshotSource interface {
	Snapshot() *neighbor.Snapshot
}

// Serve answers queries arriving on sock until ctx is cancelled. It reads the
// relay's published snapshot and never touches the live table.
func Serve(ctx context.Context, sock *transport.Socket, src SnapshotSource) {
	in := make(chan transport.Datagram, 8)
	go sock.Pump(ctx, in)

	for {
		select {
		case <-ctx.Done():
			return
		case d := <-in:
			if d.From == "" {
				util.LogWarning("control: query from unbound socket ignored")
				continue
			}
			resp := Answer(d.Data, src.Snapshot())
			if err := sock.SendTo(d.From, resp); err != nil {
				util.LogWarning("control: reply to %s failed: %v", d.From, err)
			}
		}
	}
}

// Query sends a one-byte request to the relay's control socket from sock and
// waits for the reply.
func Query(ctx context.Context, sock *transport.Socket, controlPath string, req byte, timeout time.Duration) ([]byte, error) {
	if err := sock.SendTo(controlPath, []byte{req}); err != nil {
		return nil, err
	}

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	for {
		d, err := sock.Recv(deadline)
		if err != nil {
			return nil, fmt.Errorf("control query: %w", err)
		}
		if d.From == controlPath {
			return d.Data, nil
		}
		util.LogDebug("control: ignoring datagram from %s", d.From)
	}
}
