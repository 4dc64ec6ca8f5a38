package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"beacon/internal/platform/config"
)

// cli carries the global flags; subcommands read them through load.
type cli struct {
	cfgFile string
	output  string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "beaconctl",
		Short: "Operator tooling for the beacon crisis routing service",
		Long: `beaconctl runs operator tasks directly against beacon's stores.

It reads the same environment as the server (DATABASE_URL, REDIS_URL, ...)
and overlays any YAML file given with --config. Without DATABASE_URL every
command runs against empty in-memory stores, which is only useful for
token issue and for trying out seed files.

Commands:
  partners import   Register partners from a seed file
  blackout          Inspect or end a signal's blackout window
  isolation verify  Check whether a signal is held in isolated storage
  legal manifest    Export an approved legal request's manifest
  audit tail        Stream relayed audit events from Kafka
  token issue       Mint an operator JWT`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&c.cfgFile, "config", "", "YAML config file overlaid on the environment")
	root.PersistentFlags().StringVarP(&c.output, "output", "o", "table", "Output format (table, json)")

	root.AddCommand(
		c.partnersCmd(),
		c.blackoutCmd(),
		c.isolationCmd(),
		c.legalCmd(),
		c.auditCmd(),
		c.tokenCmd(),
	)
	return root
}

func (c *cli) load() (config.Server, error) {
	return config.Load(c.cfgFile)
}

// emit writes v as indented JSON when --output=json, otherwise calls table.
func (c *cli) emit(w io.Writer, v any, table func(io.Writer) error) error {
	switch c.output {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "table", "":
		return table(w)
	default:
		return fmt.Errorf("unknown output format %q (want table or json)", c.output)
	}
}
