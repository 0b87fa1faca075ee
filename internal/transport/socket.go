// Package transport moves datagrams over the unix sockets that connect the
// relay to the radio daemon and to local clients.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/loramesh/lorax/internal/util"
)

// MaxDatagram bounds a single read. Packets and messages are far smaller.
const MaxDatagram = 1024

// Datagram is one received datagram and the path it came from. From is
// empty when the sender did not bind its socket.
type Datagram struct {
	Data []byte
	From string
}

// Socket is a bound unix datagram socket.
type Socket struct {
	conn *net.UnixConn
	path string
}

// Bind creates a datagram socket at path, replacing a stale socket file left
// by a previous run.
func Bind(path string) (*Socket, error) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to remove stale socket %s: %w", path, err)
	}
	conn, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Name: path, Net: "unixgram"})
	if err != nil {
		return nil, fmt.Errorf("failed to bind %s: %w", path, err)
	}
	return &Socket{conn: conn, path: path}, nil
}

// Path returns the bound path.
func (s *Socket) Path() string {
	return s.path
}

// Close closes the socket and removes its file. Pending reads return.
func (s *Socket) Close() error {
	err := s.conn.Close()
	if rmErr := os.Remove(s.path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
		err = errors.Join(err, rmErr)
	}
	return err
}

// SendTo writes one datagram to the socket bound at path.
func (s *Socket) SendTo(path string, b []byte) error {
	_, err := s.conn.WriteToUnix(b, &net.UnixAddr{Name: path, Net: "unixgram"})
	if err != nil {
		return fmt.Errorf("send to %s: %w", path, err)
	}
	return nil
}

// Recv blocks for one datagram. A zero deadline waits forever.
func (s *Socket) Recv(deadline time.Time) (Datagram, error) {
	if err := s.conn.SetReadDeadline(deadline); err != nil {
		return Datagram{}, err
	}
	buf := make([]byte, MaxDatagram)
	n, from, err := s.conn.ReadFromUnix(buf)
	if err != nil {
		return Datagram{}, err
	}
	d := Datagram{Data: buf[:n]}
	if from != nil {
		d.From = from.Name
	}
	return d, nil
}

// Pump reads datagrams into out until the socket is closed or ctx is done.
// It is the only reader of the socket while it runs.
func (s *Socket) Pump(ctx context.Context, out chan<- Datagram) {
	go func() {
		<-ctx.Done()
		if err := s.conn.SetReadDeadline(time.Now()); err != nil && !errors.Is(err, net.ErrClosed) {
			util.LogDebug("socket %s: unblocking reader: %v", s.path, err)
		}
	}()

	for {
		d, err := s.Recv(time.Time{})
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, net.ErrClosed) {
				util.LogError("socket %s: read failed: %v", s.path, err)
			}
			return
		}
		select {
		case out <- d:
		case <-ctx.Done():
			return
		}
	}
}
