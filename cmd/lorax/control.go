package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/loramesh/lorax/internal/control"
	"github.com/loramesh/lorax/internal/transport"
)

type controlFlags struct {
	txsock  string
	rxsock  string
	timeout time.Duration
}

func newControlCmd(c *cli) *cobra.Command {
	f := &controlFlags{}

	cmd := &cobra.Command{
		Use:   "control",
		Short: "Query a running relay",
	}
	cmd.PersistentFlags().StringVar(&f.txsock, "txsock", "", "relay control socket (default from config)")
	cmd.PersistentFlags().StringVar(&f.rxsock, "rxsock", homePath("control.client"), "socket to bind for the reply")
	cmd.PersistentFlags().DurationVar(&f.timeout, "timeout", 3*time.Second, "how long to wait for the reply")

	query := func(cmd *cobra.Command, req byte) ([]byte, error) {
		if f.txsock == "" {
			f.txsock = c.cfg.Sockets.Control
		}
		sock, err := transport.Bind(f.rxsock)
		if err != nil {
			return nil, err
		}
		defer sock.Close()
		return control.Query(cmd.Context(), sock, f.txsock, req, f.timeout)
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "neighbors",
			Short: "List the neighbors the relay currently knows",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				resp, err := query(cmd, control.RequestGetNeighbors)
				if err != nil {
					return err
				}
				addrs, err := control.ParseNeighbors(resp)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d neighbors\n", len(addrs))
				for _, a := range addrs {
					fmt.Fprintln(cmd.OutOrStdout(), a)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "myaddress",
			Short: "Print the relay's node address",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				resp, err := query(cmd, control.RequestGetMyAddress)
				if err != nil {
					return err
				}
				a, err := control.ParseMyAddress(resp)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), a)
				return nil
			},
		},
	)
	return cmd
}
