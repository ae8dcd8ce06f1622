// Package main provides the devsonar CLI: the relay server, the stderr-watching runner,
// and the history tools built on top of them.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"devsonar/src/config"
	"devsonar/src/logger"
)

var (
	appConfig *config.Config
	log       logger.Logger

	cfgPath      string
	flagPort     int
	flagMode     string
	flagDebounce int
	flagProject  string
	flagStore    string
	flagStoreDSN string
	flagLogLevel string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "devsonar",
	Short: "devsonar - Route runtime errors from your dev processes to a coding agent",
	Long: `devsonar watches the stderr of your development processes, cuts it into
individual error reports (Python, Go, Ruby, Java and Rust traces), batches them,
and hands each batch to a coding agent running in your project.

Configuration is read from ~/.devsonar/config.toml (or $DEVSONAR_CONFIG), then
environment variables, then command-line flags.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
			os.Exit(1)
		}
		applyFlags(cmd, cfg)
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
			os.Exit(1)
		}
		appConfig = cfg
		log = newLogger(cfg)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgPath, "config", "", "path to config.toml (default ~/.devsonar/config.toml)")
	pf.IntVarP(&flagPort, "port", "p", 0, "relay port")
	pf.StringVar(&flagMode, "mode", "", "forward mode: cli, webhook, broker or log")
	pf.IntVar(&flagDebounce, "debounce", 0, "debounce window in milliseconds")
	pf.StringVar(&flagProject, "project-dir", "", "directory the coding agent runs in")
	pf.StringVar(&flagStore, "store", "", "history store: memory, sqlite or postgres")
	pf.StringVar(&flagStoreDSN, "store-dsn", "", "history store path or connection string")
	pf.StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn or error")

	rootCmd.AddCommand(serveCmd, runCmd, scanCmd, mcpCmd, viewCmd)
}

// applyFlags overlays explicitly set flags on the loaded configuration.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Port = flagPort
	}
	if flags.Changed("mode") {
		cfg.Mode = flagMode
	}
	if flags.Changed("debounce") {
		cfg.DebounceMS = flagDebounce
	}
	if flags.Changed("project-dir") {
		cfg.ProjectDir = flagProject
	}
	if flags.Changed("store") {
		cfg.Store.Driver = flagStore
	}
	if flags.Changed("store-dsn") {
		cfg.Store.DSN = flagStoreDSN
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = flagLogLevel
	}
}

func newLogger(cfg *config.Config) logger.Logger {
	return logger.NewSlogLogger(logger.ParseLevel(cfg.LogLevel), cfg.LogFormat)
}

// closeTimeout bounds how long shutdown waits for batches already handed to the agent.
const closeTimeout = 5*time.Minute + 10*time.Second

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
