package transport_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/loramesh/lorax/internal/transport"
)

func bind(t *testing.T, dir, name string) *transport.Socket {
	t.Helper()
	s, err := transport.Bind(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("Bind %s: %v", name, err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// fakeRadio answers every datagram with status and forwards the payload to
// the returned channel. A negative status never answers.
func fakeRadio(t *testing.T, dir string, status int) (*transport.Socket, <-chan []byte) {
	t.Helper()
	s := bind(t, dir, "e32.data")
	got := make(chan []byte, 8)
	go func() {
		for {
			d, err := s.Recv(time.Time{})
			if err != nil {
				return
			}
			got <- d.Data
			if status >= 0 && d.From != "" {
				s.SendTo(d.From, []byte{byte(status)})
			}
		}
	}()
	return s, got
}

func TestRadioTransmitAcknowledged(t *testing.T) {
	dir := t.TempDir()
	radio, got := fakeRadio(t, dir, transport.AckOK)
	link := transport.NewRadioLink(bind(t, dir, "e32.ack"), bind(t, dir, "e32.client"), radio.Path(), time.Second)

	if err := link.Register(context.Background()); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if reg := <-got; len(reg) != 0 {
		t.Fatalf("registration datagram has %d bytes", len(reg))
	}

	if err := link.Transmit(context.Background(), []byte{1, 2, 3}); err != nil {
		t.Fatalf("Transmit: %v", err)
	}
	if b := <-got; string(b) != "\x01\x02\x03" {
		t.Fatalf("radio received % x", b)
	}
}

func TestRadioTransmitRejected(t *testing.T) {
	dir := t.TempDir()
	radio, _ := fakeRadio(t, dir, 1)
	link := transport.NewRadioLink(bind(t, dir, "e32.ack"), bind(t, dir, "e32.client"), radio.Path(), time.Second)

	err := link.Transmit(context.Background(), []byte{1})
	if !errors.Is(err, transport.ErrAckRejected) {
		t.Fatalf("got %v, want ErrAckRejected", err)
	}
}

func TestRadioTransmitTimeout(t *testing.T) {
	dir := t.TempDir()
	radio, _ := fakeRadio(t, dir, -1)
	link := transport.NewRadioLink(bind(t, dir, "e32.ack"), bind(t, dir, "e32.client"), radio.Path(), 50*time.Millisecond)

	start := time.Now()
	err := link.Transmit(context.Background(), []byte{1})
	if !errors.Is(err, transport.ErrAckTimeout) {
		t.Fatalf("got %v, want ErrAckTimeout", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatalf("timeout took %s", time.Since(start))
	}
}

func TestPumpDeliversSenderPath(t *testing.T) {
	dir := t.TempDir()
	rx := bind(t, dir, "messages")
	tx := bind(t, dir, "client")

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan transport.Datagram, 1)
	done := make(chan struct{})
	go func() {
		rx.Pump(ctx, out)
		close(done)
	}()

	if err := tx.SendTo(rx.Path(), []byte("hello")); err != nil {
		t.Fatalf("SendTo: %v", err)
	}

	select {
	case d := <-out:
		if string(d.Data) != "hello" || d.From != tx.Path() {
			t.Fatalf("datagram = %q from %q", d.Data, d.From)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no datagram pumped")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Pump did not stop after cancel")
	}
}

func TestPumpStopsWhenClosedBeforeCancel(t *testing.T) {
	dir := t.TempDir()
	rx := bind(t, dir, "messages")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		rx.Pump(ctx, make(chan transport.Datagram))
		close(done)
	}()

	if err := rx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Pump did not stop after close")
	}
}
