package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/loramesh/lorax/internal/util"
)

// RadioLink is the relay's connection to the radio daemon. Packets go out
// from the ack socket to the daemon's data socket and are acknowledged once
// on air; received packets arrive on the client socket.
type RadioLink struct {
	ack      *Socket
	client   *Socket
	dataPath string
	timeout  time.Duration
}

// NewRadioLink wires the bound ack and client sockets to the daemon's data
// socket path.
func NewRadioLink(ack, client *Socket, dataPath string, timeout time.Duration) *RadioLink {
	return &RadioLink{
		ack:      ack,
		client:   client,
		dataPath: dataPath,
		timeout:  timeout,
	}
}

// Register announces the client socket to the daemon with an empty datagram
// so it knows where to deliver received packets. Call before pumping the
// client socket.
func (r *RadioLink) Register(ctx context.Context) error {
	if err := r.client.SendWithAck(ctx, r.dataPath, nil, r.timeout); err != nil {
		return fmt.Errorf("register with radio: %w", err)
	}
	util.LogInfo("registered %s with radio at %s", r.client.Path(), r.dataPath)
	return nil
}

// Transmit sends one encoded packet and waits for the daemon's
// acknowledgement.
func (r *RadioLink) Transmit(ctx context.Context, b []byte) error {
	if err := r.ack.SendWithAck(ctx, r.dataPath, b, r.timeout); err != nil {
		util.Stats.AddFailure()
		return fmt.Errorf("radio transmit: %w", err)
	}
	util.Stats.AddSent(len(b))
	return nil
}

// Incoming returns the socket received packets arrive on.
func (r *RadioLink) Incoming() *Socket {
	return r.client
}
