package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/loramesh/lorax/internal/config"
	"github.com/loramesh/lorax/internal/control"
	"github.com/loramesh/lorax/internal/monitor"
	"github.com/loramesh/lorax/internal/relay"
	"github.com/loramesh/lorax/internal/telemetry"
	"github.com/loramesh/lorax/internal/transport"
	"github.com/loramesh/lorax/internal/util"
)

// relayFlags override config values when set on the command line.
type relayFlags struct {
	address     string
	iface       string
	messages    string
	server      string
	radioAck    string
	radioClient string
	radioData   string
	control     string
	monitor     string
	pidfile     string
	systemd     bool
}

func newRelayCmd(c *cli) *cobra.Command {
	f := &relayFlags{}

	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Run the relay daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f.apply(cmd.Flags(), c.cfg)
			if err := c.cfg.Validate(); err != nil {
				return err
			}
			return runRelay(cmd.Context(), c.cfg)
		},
	}

	f.register(cmd.Flags())
	return cmd
}

func (f *relayFlags) register(fl *pflag.FlagSet) {
	fl.StringVar(&f.address, "address", "", "node address as 12 hex chars (overrides --eth-iface)")
	fl.StringVarP(&f.iface, "eth-iface", "i", "", "interface to take the node address from (default eth0, then wlan0)")
	fl.StringVarP(&f.messages, "sock-unix-messages", "m", "", "bound socket for client messages")
	fl.StringVarP(&f.server, "sock-unix-server", "s", "", "socket of the local server")
	fl.StringVarP(&f.radioAck, "sock-unix-e32-ack", "a", "", "bound socket for radio acknowledgements")
	fl.StringVarP(&f.radioClient, "sock-unix-e32-client", "c", "", "bound socket the radio delivers packets to")
	fl.StringVarP(&f.radioData, "sock-unix-e32-data", "e", "", "radio daemon input socket")
	fl.StringVar(&f.control, "sock-unix-control", "", "bound socket for control queries")
	fl.StringVar(&f.monitor, "monitor", "", "listen address of the HTTP status server (e.g. 127.0.0.1:9310)")
	fl.StringVar(&f.pidfile, "pidfile", "", "write the process ID to this file")
	fl.BoolVar(&f.systemd, "systemd", false, "write the pid file to "+config.RunDir+"/lorax.pid")
}

func (f *relayFlags) apply(fl *pflag.FlagSet, cfg *config.Config) {
	set := func(name string, dst *string, v string) {
		if fl.Changed(name) {
			*dst = v
		}
	}
	set("address", &cfg.Address, f.address)
	set("eth-iface", &cfg.Interface, f.iface)
	set("sock-unix-messages", &cfg.Sockets.Messages, f.messages)
	set("sock-unix-server", &cfg.Sockets.Server, f.server)
	set("sock-unix-e32-ack", &cfg.Sockets.RadioAck, f.radioAck)
	set("sock-unix-e32-client", &cfg.Sockets.RadioClient, f.radioClient)
	set("sock-unix-e32-data", &cfg.Sockets.RadioData, f.radioData)
	set("sock-unix-control", &cfg.Sockets.Control, f.control)
	set("monitor", &cfg.Monitor.Listen, f.monitor)
	set("pidfile", &cfg.PIDFile, f.pidfile)
	if f.systemd && cfg.PIDFile == "" {
		cfg.PIDFile = config.RunDir + "/lorax.pid"
	}
}

// runRelay binds every socket, registers with the radio and runs the relay
// loop until ctx is cancelled.
func runRelay(ctx context.Context, cfg *config.Config) error {
	addr, err := cfg.NodeAddress()
	if err != nil {
		return err
	}

	pterm.Info.Println(fmt.Sprintf("Lorax v%s, node %s", version, addr))
	telemetry.SetBuildInfo(version, addr.String())

	if cfg.PIDFile != "" {
		remove, err := writePIDFile(cfg.PIDFile)
		if err != nil {
			return err
		}
		defer remove()
	}

	var closers []*transport.Socket
	defer func() {
		for _, s := range closers {
			s.Close()
		}
	}()
	bind := func(path string) (*transport.Socket, error) {
		s, err := transport.Bind(path)
		if err == nil {
			closers = append(closers, s)
		}
		return s, err
	}

	messages, err := bind(cfg.Sockets.Messages)
	if err != nil {
		return err
	}
	radioAck, err := bind(cfg.Sockets.RadioAck)
	if err != nil {
		return err
	}
	radioClient, err := bind(cfg.Sockets.RadioClient)
	if err != nil {
		return err
	}
	ctrl, err := bind(cfg.Sockets.Control)
	if err != nil {
		return err
	}

	link := transport.NewRadioLink(radioAck, radioClient, cfg.Sockets.RadioData, cfg.RadioAckTimeout())
	if err := link.Register(ctx); err != nil {
		return err
	}

	bus := monitor.NewBus()
	engine := relay.New(relay.Options{
		Address:           addr,
		ServerPath:        cfg.Sockets.Server,
		RetryInterval:     cfg.RetryInterval(),
		BroadcastInterval: cfg.BroadcastInterval(),
		BroadcastJitter:   cfg.BroadcastJitter(),
		StaleAfter:        cfg.StaleAfter(),
		Bus:               bus,
	}, link, messages)

	radioIn := make(chan transport.Datagram, 16)
	clientIn := make(chan transport.Datagram, 16)
	go link.Incoming().Pump(ctx, radioIn)
	go messages.Pump(ctx, clientIn)
	go control.Serve(ctx, ctrl, engine)

	if cfg.Monitor.Listen != "" {
		go func() {
			if err := monitor.NewServer(cfg.Monitor.Listen, bus, engine).Run(ctx); err != nil {
				util.LogError("monitor stopped: %v", err)
			}
		}()
	}

	util.StartStatsReporter(ctx, cfg.StatsInterval())

	err = engine.Run(ctx, radioIn, clientIn)
	if errors.Is(err, relay.ErrSourceClosed) {
		return fmt.Errorf("relay stopped: %w", err)
	}
	util.LogInfo("relay stopped")
	return err
}
