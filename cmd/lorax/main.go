// Lorax: store-and-forward relay for a LoRa radio mesh.
//
// The relay sits between local clients (unix datagram sockets) and a radio
// daemon, translating client messages into radio packets, retrying until the
// peer answers, and discovering neighbors by periodic broadcast.
//
// Subcommands: relay (the daemon), send (one-shot client), control (status
// queries) and echo (reference server).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

var version = "dev"

func main() {
	// Root context, cancelled on Ctrl+C or SIGTERM from the service manager.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
