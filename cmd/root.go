// Package cmd provides the workflowforge command-line entry point: run a
// workflow definition to completion, resume a previously checkpointed
// execution, or list executions pending recovery.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/forgeworks/workflowforge/internal/config"
	"github.com/forgeworks/workflowforge/internal/log"
)

var (
	version = "dev"
	cfgFile string
	debug   bool

	cfg    config.Config
	loader = config.NewLoader()
)

var rootCmd = &cobra.Command{
	Use:     "forge",
	Short:   "workflowforge runs and recovers saga-style workflow executions",
	Long:    "workflowforge executes YAML-defined workflows as ordered operations with middleware, checkpointing, and saga-style compensation on failure.",
	Version: version,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ./.workflowforge/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false,
		"enable debug logging (also: WORKFLOWFORGE_DEBUG=1)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(listPendingCmd)
}

func initConfig() {
	loaded, err := loader.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "workflowforge: loading config: %v\n", err)
		os.Exit(1)
	}
	cfg = loaded

	if debug || os.Getenv("WORKFLOWFORGE_DEBUG") != "" {
		cfg.Logging.Enabled = true
		if cfg.Logging.Path == "" {
			cfg.Logging.Path = "debug.log"
		}
	}

	if cfg.Logging.Enabled {
		fl, _, err := log.NewFileLogger(cfg.Logging.Path)
		if err == nil {
			fl.SetMinLevel(parseLevel(cfg.Logging.MinLevel))
			log.SetDefault(fl)
		}
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		fmt.Fprintln(os.Stderr, "workflowforge: invalid configuration:")
		for _, e := range errs {
			fmt.Fprintf(os.Stderr, "  - %v\n", e)
		}
		os.Exit(1)
	}
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string shown by --version, typically
// injected from main via build-time ldflags.
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

func parseLevel(s string) log.Level {
	switch s {
	case "debug":
		return log.LevelDebug
	case "warn":
		return log.LevelWarn
	case "error":
		return log.LevelError
	default:
		return log.LevelInfo
	}
}
