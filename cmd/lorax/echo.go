package main

import (
	"context"
	"errors"
	"net"

	"github.com/spf13/cobra"

	"github.com/loramesh/lorax/internal/protocol"
	"github.com/loramesh/lorax/internal/transport"
	"github.com/loramesh/lorax/internal/util"
)

func newEchoCmd(c *cli) *cobra.Command {
	var pidfile string

	cmd := &cobra.Command{
		Use:   "echo [socket]",
		Short: "Run a server that sends every message back to the relay",
		Long: `Echo binds the relay's server socket (or the given path) and returns each
message it receives to its sender unchanged. The relay flips it back toward
the peer that sent it.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := c.cfg.Sockets.Server
			if len(args) == 1 {
				path = args[0]
			}
			if pidfile != "" {
				remove, err := writePIDFile(pidfile)
				if err != nil {
					return err
				}
				defer remove()
			}

			sock, err := transport.Bind(path)
			if err != nil {
				return err
			}
			defer sock.Close()

			util.LogInfo("echo server listening on %s", path)
			return runEcho(cmd.Context(), sock)
		},
	}
	cmd.Flags().StringVar(&pidfile, "pidfile", "", "write the process ID to this file")
	return cmd
}

// runEcho reflects datagrams until ctx is cancelled.
func runEcho(ctx context.Context, sock *transport.Socket) error {
	in := make(chan transport.Datagram, 8)
	go sock.Pump(ctx, in)

	for {
		select {
		case <-ctx.Done():
			return nil
		case d := <-in:
			if m, err := protocol.DecodeMessage(d.Data); err == nil {
				util.LogInfo("echo %q from %s:%d", m.Data, m.Source, m.SourcePort)
			} else {
				util.LogWarning("echoing invalid message from %s: %v", d.From, err)
			}
			if d.From == "" {
				continue
			}
			if err := sock.SendTo(d.From, d.Data); err != nil && !errors.Is(err, net.ErrClosed) {
				util.LogWarning("echo to %s failed: %v", d.From, err)
			}
		}
	}
}
