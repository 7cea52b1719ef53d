// Command findmymeow runs the cat similarity search service and its
// maintenance tasks.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hupe1980/findmymeow"
	"github.com/hupe1980/findmymeow/internal/app"
	"github.com/hupe1980/findmymeow/internal/config"
	"github.com/spf13/cobra"
)

// Set by the linker.
var (
	version = "dev"
	commit  = "unknown"
)

type globalFlags struct {
	configFile string
	logLevel   string
	logFormat  string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "findmymeow",
		Short: "Find lost cats by photo and location",
		Long: `findmymeow indexes cat photos by visual similarity and serves
combined image and location searches over lost, found and adoption posts.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.configFile, "config", "c", os.Getenv("FINDMYMEOW_CONFIG"), "config file (YAML)")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	pf.StringVar(&flags.logFormat, "log-format", "", "log format override (text, json)")

	root.AddCommand(
		newServeCmd(flags),
		newResetIndexCmd(flags),
		newIndexStatsCmd(flags),
		newVersionCmd(),
	)

	return root
}

// load reads the config file and applies flag overrides.
func (f *globalFlags) load() (*config.Config, *findmymeow.Logger, error) {
	cfg, err := config.Load(f.configFile)
	if err != nil {
		return nil, nil, err
	}

	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	if f.logFormat != "" {
		cfg.Log.Format = f.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	logger, err := app.NewLogger(cfg.Log, os.Stderr)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// open loads the configuration and wires the service.
func (f *globalFlags) open(ctx context.Context) (*app.App, error) {
	cfg, logger, err := f.load()
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg, logger)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "findmymeow %s (commit %s)\n", version, commit)
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
