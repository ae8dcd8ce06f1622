package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"devsonar/src/broker"
	"devsonar/src/config"
	"devsonar/src/ingest"
	"devsonar/src/logger"
	"devsonar/src/metrics"
	"devsonar/src/reporter"
	"devsonar/src/runner"
	"devsonar/src/server"
	"devsonar/src/stderr"
)

var (
	runSource  string
	runPublish bool
)

// runCmd wraps a child process and watches its stderr
var runCmd = &cobra.Command{
	Use:   "run [flags] -- <command> [args...]",
	Short: "Run a command and forward the errors it prints",
	Long: `Run a command with its stderr tee'd through the error classifier.

If no relay is listening on the configured port one is started in-process for the
lifetime of the command; otherwise reports are posted to the running relay. With
--publish, reports go to the devsonar.errors.reports topic on Redpanda instead.

The command's exit code is returned as devsonar's exit code.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		code, err := runCommand(ctx, appConfig, log, args)
		if err != nil {
			fmt.Fprintf(os.Stderr, "devsonar: %v\n", err)
		}
		os.Exit(code)
	},
}

func init() {
	runCmd.Flags().SetInterspersed(false)
	runCmd.Flags().StringVar(&runSource, "source", "", "source tag for reports (default \"stderr\")")
	runCmd.Flags().BoolVar(&runPublish, "publish", false, "publish reports to Redpanda instead of a relay")
}

func runCommand(ctx context.Context, cfg *config.Config, log logger.Logger, argv []string) (int, error) {
	if runPublish {
		return runPublishing(ctx, cfg, log, argv)
	}

	rel, err := newRelay(ctx, cfg, log)
	if err != nil {
		return 1, err
	}

	var sink stderr.Sink
	var m *metrics.Metrics
	switch err := rel.server.Listen(); {
	case errors.Is(err, server.ErrAddrInUse):
		log.Info("[Runner] Relay already listening on %s, reporting to it", cfg.RelayURL())
		rel.close()
		rel = nil
		rep := reporter.New(reporter.WithRelayURL(cfg.RelayURL()), reporter.WithLogger(log))
		sink = rep.Sink(context.WithoutCancel(ctx))
	case err != nil:
		rel.close()
		return 1, err
	default:
		sink = rel.buffer.Add
		m = rel.metrics
	}

	r := newRunner(cfg, log, sink, m)
	if rel == nil {
		return r.Run(ctx, argv)
	}

	// The relay outlives the child just long enough to drain what it reported.
	relayCtx, stopRelay := context.WithCancel(context.WithoutCancel(ctx))
	g, gctx := errgroup.WithContext(relayCtx)

	g.Go(func() error {
		return rel.run(gctx)
	})

	var code int
	var runErr error
	g.Go(func() error {
		defer stopRelay()
		code, runErr = r.Run(ctx, argv)
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("[Runner] Relay stopped: %v", err)
	}
	return code, runErr
}

func runPublishing(ctx context.Context, cfg *config.Config, log logger.Logger, argv []string) (int, error) {
	if len(cfg.RedpandaBrokers) == 0 {
		return 1, &config.UserError{
			Message: "--publish needs a Redpanda connection",
			Hint:    "Set REDPANDA_BROKERS (for example localhost:9092)",
		}
	}
	brk, err := broker.NewRedpandaBroker(cfg.RedpandaBrokers, log)
	if err != nil {
		return 1, fmt.Errorf("failed to connect to Redpanda: %w", err)
	}
	defer brk.Close()

	pub := ingest.NewPublisher(brk, log)
	return newRunner(cfg, log, pub.Sink(context.WithoutCancel(ctx)), nil).Run(ctx, argv)
}

// newRunner builds the child runner. m is the relay's metrics when the relay runs in this
// process, nil otherwise.
func newRunner(cfg *config.Config, log logger.Logger, sink stderr.Sink, m *metrics.Metrics) *runner.Runner {
	return &runner.Runner{
		Sink: sink,
		Classifier: stderr.Options{
			Source:        runSource,
			IdleThreshold: cfg.IdleThreshold,
			MaxTraceLines: cfg.MaxTraceLines,
			Metrics:       m,
			Logger:        log,
		},
		RelayURL: cfg.RelayURL(),
		Stdin:    os.Stdin,
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
		Logger:   log,
	}
}
