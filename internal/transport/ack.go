package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// Acknowledgement failures.
var (
	ErrAckTimeout   = errors.New("no acknowledgement before timeout")
	ErrAckRejected  = errors.New("peer rejected datagram")
	ErrAckSource    = errors.New("acknowledgement from unexpected sender")
	ErrAckMalformed = errors.New("malformed acknowledgement")
)

// AckOK is the status byte of a successful acknowledgement.
const AckOK = 0x00

// SendWithAck writes b to path and waits for a one-byte status reply from the
// same path. The wait ends at timeout or at ctx's deadline, whichever is first.
// The socket must not be pumped concurrently.
func (s *Socket) SendWithAck(ctx context.Context, path string, b []byte, timeout time.Duration) error {
	if err := s.SendTo(path, b); err != nil {
		return err
	}

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	d, err := s.Recv(deadline)
	if err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return fmt.Errorf("%s: %w (%s)", path, ErrAckTimeout, timeout)
		}
		return fmt.Errorf("wait ack from %s: %w", path, err)
	}
	if d.From != path {
		return fmt.Errorf("%w: got %q, want %q", ErrAckSource, d.From, path)
	}
	if len(d.Data) != 1 {
		return fmt.Errorf("%w: %d bytes", ErrAckMalformed, len(d.Data))
	}
	if d.Data[0] != AckOK {
		return fmt.Errorf("%s: %w (status %d)", path, ErrAckRejected, d.Data[0])
	}
	return nil
}
