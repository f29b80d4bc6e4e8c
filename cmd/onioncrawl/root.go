package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for onioncrawl.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "onioncrawl",
		Short: "Bounded-depth crawler for Tor hidden services",
		Long: `onioncrawl crawls Tor hidden services (.onion addresses) depth-first from a
seed URL. Each page is rendered in headless Chrome through the Tor SOCKS
proxy, searched for keywords, checked against a domain denylist and
screenshotted. Results are appended to a JSONL file that dashboards can tail.

Tor must be listening on 127.0.0.1:9050 unless --tor-proxy or --embedded-tor
is given.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewReportCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
