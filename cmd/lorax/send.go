package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/loramesh/lorax/internal/protocol"
	"github.com/loramesh/lorax/internal/transport"
	"github.com/loramesh/lorax/internal/util"
)

// ErrUnreachable is returned by send when the relay gave up on the message.
var ErrUnreachable = errors.New("destination unreachable")

type sendFlags struct {
	txsock     string
	rxsock     string
	retries    uint8
	timeout    time.Duration
	sourcePort uint8
	sourceAddr string
}

func newSendCmd(c *cli) *cobra.Command {
	f := &sendFlags{}

	cmd := &cobra.Command{
		Use:   "send <dest_addr> <dest_port> <message>",
		Short: "Send one message over the mesh and wait for the reply",
		Long: `Send builds a DATA message for dest_addr (12 hex chars) and dest_port
(0-255), hands it to the relay and prints the peer's reply.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.txsock == "" {
				f.txsock = c.cfg.Sockets.Messages
			}
			return runSend(cmd, f, args)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.txsock, "txsock", "", "relay message socket (default from config)")
	fl.StringVar(&f.rxsock, "rxsock", homePath("client.messages"), "socket to bind for the reply")
	fl.Uint8Var(&f.retries, "retries", 3, "retransmissions before the relay gives up")
	fl.DurationVar(&f.timeout, "timeout", 55*time.Second, "how long to wait for the reply")
	fl.Uint8Var(&f.sourcePort, "source-port", 1, "source port of the message")
	fl.StringVar(&f.sourceAddr, "source-address", "", "source address (default: stamped by the relay)")
	return cmd
}

func runSend(cmd *cobra.Command, f *sendFlags, args []string) error {
	dst, err := protocol.ParseAddress(args[0])
	if err != nil {
		return err
	}
	port, err := strconv.ParseUint(args[1], 10, 8)
	if err != nil {
		return fmt.Errorf("invalid destination port %q: must be 0~255", args[1])
	}

	var src protocol.Address
	if f.sourceAddr != "" {
		if src, err = protocol.ParseAddress(f.sourceAddr); err != nil {
			return err
		}
	}

	m, err := protocol.BuildMessage(f.retries, protocol.MessageData, src, dst, f.sourcePort, uint8(port), []byte(args[2]))
	if err != nil {
		return err
	}

	sock, err := transport.Bind(f.rxsock)
	if err != nil {
		return err
	}
	defer sock.Close()

	if err := sock.SendTo(f.txsock, protocol.EncodeMessage(m)); err != nil {
		return err
	}
	util.LogDebug("sent %d bytes to %s:%d via %s", len(m.Data), dst, port, f.txsock)

	deadline := time.Now().Add(f.timeout)
	if d, ok := cmd.Context().Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	for {
		d, err := sock.Recv(deadline)
		if err != nil {
			return fmt.Errorf("no reply: %w", err)
		}
		if d.From != f.txsock {
			util.LogDebug("ignoring datagram from %q", d.From)
			continue
		}

		reply, err := protocol.DecodeReply(d.Data)
		if err != nil {
			return fmt.Errorf("bad reply: %w", err)
		}
		if reply.Type == protocol.MessageUnreachable {
			return fmt.Errorf("%w: %s:%d", ErrUnreachable, dst, port)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(reply.Data))
		return nil
	}
}
