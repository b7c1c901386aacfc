package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ajitpratap0/formtap/pkg/catalog"
	"github.com/ajitpratap0/formtap/pkg/config"
	"github.com/ajitpratap0/formtap/pkg/connector/core"
	"github.com/ajitpratap0/formtap/pkg/connector/registry"

	// Register sinks and state stores
	_ "github.com/ajitpratap0/formtap/pkg/connector/destinations/jsonl"
	_ "github.com/ajitpratap0/formtap/pkg/connector/destinations/kafka"
	_ "github.com/ajitpratap0/formtap/pkg/connector/destinations/singer"
	_ "github.com/ajitpratap0/formtap/pkg/state"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(os.Stdout, os.Stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:   "formtap",
		Short: "formtap - Typeform extractor speaking the Singer protocol",
		Long: `formtap extracts forms, questions, landings and answers from Typeform and
writes Singer SCHEMA, RECORD and STATE messages. Syncs are incremental and resume
from the last saved checkpoint of every form.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.SetErr(errOut)

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "formtap v%s\n", version)
			fmt.Fprintf(cmd.OutOrStdout(), "Go version: %s\n", runtime.Version())
			fmt.Fprintf(cmd.OutOrStdout(), "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List available sinks and state stores",
		Run: func(cmd *cobra.Command, args []string) {
			w := cmd.OutOrStdout()
			fmt.Fprintln(w, "Available sinks:")
			for _, name := range registry.ListSinks() {
				fmt.Fprintf(w, "  - %s%s\n", name, describe(core.ConnectorTypeSink, name))
			}
			fmt.Fprintln(w, "\nAvailable state stores:")
			for _, name := range registry.ListStores() {
				fmt.Fprintf(w, "  - %s%s\n", name, describe(core.ConnectorTypeStore, name))
			}
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "discover",
		Short: "Print the Singer catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := catalog.Discover()
			if err != nil {
				return err
			}
			return cat.Write(cmd.OutOrStdout())
		},
	})

	root.AddCommand(newSyncCmd())
	return root
}

func newSyncCmd() *cobra.Command {
	var opts syncOptions
	v := config.NewViper()

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Extract records and checkpoints",
		Long: `Sync every selected stream of every form and print Singer messages.

Without --catalog all streams and fields are selected, narrowed by the streams
setting. The initial state comes from --state when given, else from the
configured state store.

Example:
  formtap sync --config tap.yaml --state state.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd.Context(), opts, v, cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "Path to the tap configuration (YAML or JSON)")
	flags.StringVarP(&opts.statePath, "state", "s", "", "Path to a state document to resume from")
	flags.StringVar(&opts.catalogPath, "catalog", "", "Path to a catalog with stream and field selection")

	flags.String("start-date", "", "Start of the first window for forms without a bookmark")
	flags.StringSlice("streams", nil, "Streams to sync when no catalog is given")
	flags.StringSlice("forms", nil, "Only sync these form ids")
	flags.String("sink", "", "Sink type (singer, jsonl, kafka)")
	flags.String("state-store", "", "State store type (file, redis, postgres, s3, sqlite)")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	flags.String("metrics-textfile", "", "Write prometheus metrics to this file at the end of the run")
	flags.Bool("tracing", false, "Export spans to stderr")

	bind := func(key, name string) {
		_ = v.BindPFlag(key, flags.Lookup(name))
	}
	bind("start_date", "start-date")
	bind("streams", "streams")
	bind("forms", "forms")
	bind("sink.type", "sink")
	bind("state.type", "state-store")
	bind("log.level", "log-level")
	bind("metrics_textfile", "metrics-textfile")
	bind("tracing", "tracing")

	return cmd
}

func describe(t core.ConnectorType, name string) string {
	info, err := registry.GetConnectorInfo(t, name)
	if err != nil || info == nil || info.Description == "" {
		return ""
	}
	return ": " + info.Description
}
