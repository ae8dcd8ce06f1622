// Package runner launches a child process and classifies its stderr on the fly.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"devsonar/src/contracts"
	"devsonar/src/logger"
	"devsonar/src/reporter"
	"devsonar/src/stderr"
)

// DefaultWaitDelay bounds how long Run waits for stderr to drain after the child exits or is interrupted.
const DefaultWaitDelay = 5 * time.Second

// Runner runs one child process per Run call.
type Runner struct {
	// Sink receives each error segment found in the child's stderr.
	Sink stderr.Sink
	// Classifier tunes segmentation. Source defaults to "stderr".
	Classifier stderr.Options
	// RelayURL is exported to the child as DEVSONAR_URL when set.
	RelayURL string
	Dir      string

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	WaitDelay time.Duration
	Logger    logger.Logger
}

// Run starts argv and blocks until it exits. Cancelling ctx interrupts the child.
// The returned exit code mirrors the child's; err is set only when the child could not be run.
func (r *Runner) Run(ctx context.Context, argv []string) (int, error) {
	if len(argv) == 0 {
		return 1, errors.New("no command given")
	}
	log := r.Logger
	if log == nil {
		log = logger.NewSilentLogger()
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = r.Dir
	cmd.Stdin = orReader(r.Stdin, os.Stdin)
	cmd.Stdout = orWriter(r.Stdout, os.Stdout)
	cmd.Env = os.Environ()
	if r.RelayURL != "" {
		cmd.Env = append(cmd.Env, reporter.EnvRelayURL+"="+r.RelayURL)
	}

	// Interrupt first so the child can unwind; WaitDelay escalates to a kill.
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = r.WaitDelay
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = DefaultWaitDelay
	}

	sink := r.Sink
	if sink == nil {
		sink = func(contracts.ErrorReport) {}
	}
	opts := r.Classifier
	if opts.Logger == nil {
		opts.Logger = log
	}
	classifier := stderr.New(sink, opts)

	// exec copies stderr on a single goroutine, so the classifier sees chunks in order.
	cmd.Stderr = io.MultiWriter(orWriter(r.Stderr, os.Stderr), classifier)

	log.Debug("[Runner] Starting %v", argv)
	if err := cmd.Start(); err != nil {
		return 127, fmt.Errorf("failed to start %s: %w", argv[0], err)
	}

	err := cmd.Wait()
	classifier.Flush()

	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		if code < 0 {
			// Terminated by a signal.
			code = 1
		}
		log.Debug("[Runner] %s exited with code %d", argv[0], code)
		return code, nil
	}
	if errors.Is(err, exec.ErrWaitDelay) {
		log.Warn("[Runner] %s left stderr open after exit", argv[0])
		return cmd.ProcessState.ExitCode(), nil
	}
	if ctx.Err() != nil && cmd.ProcessState != nil {
		// The child handled the interrupt and exited on its own terms.
		return cmd.ProcessState.ExitCode(), nil
	}
	return 1, fmt.Errorf("failed waiting for %s: %w", argv[0], err)
}

func orReader(r, fallback io.Reader) io.Reader {
	if r != nil {
		return r
	}
	return fallback
}

func orWriter(w, fallback io.Writer) io.Writer {
	if w != nil {
		return w
	}
	return fallback
}
