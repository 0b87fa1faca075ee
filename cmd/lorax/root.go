package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/loramesh/lorax/internal/config"
	"github.com/loramesh/lorax/internal/util"
)

// cli holds state shared by every subcommand, filled in PersistentPreRunE.
type cli struct {
	cfgFile string
	verbose bool
	cfg     *config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "lorax",
		Short: "Store-and-forward relay for a LoRa radio mesh",
		Long: `Lorax relays small addressed messages between local clients and
peers reachable over a half-duplex LoRa radio, retrying until the peer
answers and discovering neighbors by periodic broadcast.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if c.cfgFile != "" {
				cfg, err := config.Load(c.cfgFile)
				if err != nil {
					return fmt.Errorf("failed to load config: %w", err)
				}
				c.cfg = cfg
			} else {
				c.cfg = config.Default()
			}

			if c.verbose {
				c.cfg.Verbose = true
			}
			if c.cfg.Verbose {
				util.EnableDebug()
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&c.cfgFile, "config", "", "YAML config file (defaults apply when omitted)")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newRelayCmd(c),
		newSendCmd(c),
		newControlCmd(c),
		newEchoCmd(c),
	)
	return root
}

// homePath returns name inside the user's home directory, falling back to
// the working directory.
func homePath(name string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return name
	}
	return filepath.Join(home, name)
}
