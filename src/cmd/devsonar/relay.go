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
	"devsonar/src/buffer"
	"devsonar/src/config"
	"devsonar/src/forward"
	"devsonar/src/ingest"
	"devsonar/src/logger"
	"devsonar/src/metrics"
	"devsonar/src/server"
	"devsonar/src/session"
	"devsonar/src/store"
)

// serveCmd runs the relay in the foreground
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the relay server",
	Long: `Start the relay: an HTTP intake on the configured port that batches incoming
error reports and forwards them according to the configured mode.

When REDPANDA_BROKERS is set the relay also consumes reports published by remote
runners on the devsonar.errors.reports topic.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		rel, err := newRelay(ctx, appConfig, log)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to start relay: %v\n", err)
			os.Exit(1)
		}
		if err := rel.server.Listen(); err != nil {
			rel.close()
			if errors.Is(err, server.ErrAddrInUse) {
				fmt.Fprintf(os.Stderr, "Port %d is already in use. Is another relay running?\n", appConfig.Port)
			} else {
				fmt.Fprintf(os.Stderr, "Failed to start relay: %v\n", err)
			}
			os.Exit(1)
		}

		fmt.Fprintf(os.Stderr, "devsonar relay listening on %s (mode: %s)\n", appConfig.RelayURL(), appConfig.Mode)
		if err := rel.run(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Relay error: %v\n", err)
			os.Exit(1)
		}
	},
}

// relay bundles everything the relay server needs so serve and run share one wiring.
type relay struct {
	cfg      *config.Config
	log      logger.Logger
	store    store.Store
	sessions *session.Manager
	broker   broker.Broker
	metrics  *metrics.Metrics
	buffer   *buffer.Buffer
	server   *server.Server
}

// newRelay opens the history store, broker and session file and builds the buffer and
// HTTP server. Nothing listens until server.Listen is called.
func newRelay(ctx context.Context, cfg *config.Config, log logger.Logger) (*relay, error) {
	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s history store: %w", cfg.Store.Driver, err)
	}

	dir, err := session.DefaultDir()
	if err != nil {
		st.Close()
		return nil, err
	}
	sessions := session.NewManager(dir, log)
	if err := sessions.Load(); err != nil {
		log.Warn("[Relay] Could not load session: %v", err)
	}

	var brk broker.Broker
	if len(cfg.RedpandaBrokers) > 0 {
		brk, err = broker.NewRedpandaBroker(cfg.RedpandaBrokers, log)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("failed to connect to Redpanda: %w", err)
		}
	}

	fwd, err := newForwarder(cfg, sessions, brk, log)
	if err != nil {
		st.Close()
		if brk != nil {
			brk.Close()
		}
		return nil, err
	}

	m := metrics.New()
	buf := buffer.New(forward.NewRecording(fwd, st, log), buffer.Options{
		Debounce: cfg.Debounce(),
		MaxSize:  cfg.MaxBufferSize,
		Logger:   log,
		Metrics:  m,
	})

	srv := server.New(server.Options{
		Addr:       cfg.Addr(),
		Buffer:     buf,
		Store:      st,
		Sessions:   sessions,
		Metrics:    m,
		IntakeRate: cfg.IntakeRate,
		Logger:     log,
	})

	return &relay{
		cfg:      cfg,
		log:      log,
		store:    st,
		sessions: sessions,
		broker:   brk,
		metrics:  m,
		buffer:   buf,
		server:   srv,
	}, nil
}

// newForwarder selects the delivery target for the configured mode.
func newForwarder(cfg *config.Config, sessions *session.Manager, brk broker.Broker, log logger.Logger) (forward.Forwarder, error) {
	switch cfg.Mode {
	case config.ModeCLI:
		return &forward.AgentForwarder{
			Command:        cfg.AgentCommand,
			ProjectDir:     cfg.ProjectDir,
			Timeout:        forward.DefaultAgentTimeout,
			MaxStackLength: cfg.MaxStackLength,
			Sessions:       sessions,
			Logger:         log,
			Run:            forward.ExecRunner,
		}, nil
	case config.ModeWebhook:
		return forward.NewWebhookForwarder(cfg.WebhookURL, nil), nil
	case config.ModeBroker:
		if brk == nil {
			return nil, &config.UserError{
				Message: "broker mode needs a Redpanda connection",
				Hint:    "Set REDPANDA_BROKERS (for example localhost:9092) or choose another mode",
			}
		}
		return forward.NewBrokerForwarder(brk), nil
	case config.ModeLog:
		return forward.NewLogForwarder(log, cfg.MaxStackLength), nil
	default:
		return nil, fmt.Errorf("unknown mode %q", cfg.Mode)
	}
}

// run serves until ctx ends, then drains the buffer and releases every resource.
func (r *relay) run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return r.server.Serve(gctx)
	})

	if r.broker != nil {
		agent := ingest.NewAgent(r.broker, r.buffer, r.log)
		g.Go(func() error {
			if err := agent.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	retention := store.NewRetention(r.store, r.cfg.Store.Retention, r.log)
	if err := retention.Start(gctx, store.DefaultRetentionSchedule); err != nil {
		r.log.Warn("[Relay] History pruning disabled: %v", err)
	}

	err := g.Wait()

	closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if cerr := r.buffer.Close(closeCtx); cerr != nil {
		r.log.Warn("[Relay] Pending reports were not all forwarded: %v", cerr)
	}
	r.close()
	return err
}

// close releases the store and broker. The buffer must already be drained.
func (r *relay) close() {
	if err := r.store.Close(); err != nil {
		r.log.Warn("[Relay] Failed to close history store: %v", err)
	}
	if r.broker != nil {
		if err := r.broker.Close(); err != nil {
			r.log.Warn("[Relay] Failed to close broker: %v", err)
		}
	}
}
