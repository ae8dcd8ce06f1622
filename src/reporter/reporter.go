// Package reporter sends error reports from a Go program to a devsonar relay.
//
//	r := reporter.New()
//	defer reporter.RecoverAndReport(r, "main")
//	http.Handle("/", reporter.Middleware(r)(mux))
package reporter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"runtime"
	"strings"
	"time"

	"devsonar/src/contracts"
	"devsonar/src/logger"
)

const (
	// EnvRelayURL names the environment variable holding the relay address.
	EnvRelayURL = "DEVSONAR_URL"

	DefaultRelayURL = "http://localhost:9100"
	DefaultTimeout  = time.Second
)

// Reporter posts reports to the relay's /errors endpoint.
type Reporter struct {
	relayURL string
	enabled  bool
	client   *http.Client
	logger   logger.Logger
}

// Option configures a Reporter.
type Option func(*Reporter)

// WithRelayURL sets the relay server URL.
func WithRelayURL(u string) Option {
	return func(r *Reporter) {
		r.relayURL = u
	}
}

// WithTimeout sets the HTTP request timeout.
func WithTimeout(d time.Duration) Option {
	return func(r *Reporter) {
		r.client.Timeout = d
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Reporter) {
		r.client = c
	}
}

// WithLogger routes delivery failures to log.
func WithLogger(log logger.Logger) Option {
	return func(r *Reporter) {
		r.logger = log
	}
}

// WithEnabled turns reporting on or off. A disabled Reporter accepts every call and sends nothing.
func WithEnabled(enabled bool) Option {
	return func(r *Reporter) {
		r.enabled = enabled
	}
}

// New creates a Reporter. The relay URL defaults to $DEVSONAR_URL, then DefaultRelayURL.
func New(opts ...Option) *Reporter {
	relayURL := os.Getenv(EnvRelayURL)
	if relayURL == "" {
		relayURL = DefaultRelayURL
	}

	r := &Reporter{
		relayURL: relayURL,
		enabled:  true,
		client:   &http.Client{Timeout: DefaultTimeout},
		logger:   logger.NewSilentLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RelayURL returns the relay address in use.
func (r *Reporter) RelayURL() string {
	return r.relayURL
}

// Send posts one or more reports in a single request. Missing timestamps are filled in.
func (r *Reporter) Send(ctx context.Context, reports ...contracts.ErrorReport) error {
	if !r.enabled || len(reports) == 0 {
		return nil
	}

	now := contracts.NowTimestamp(time.Now())
	for i := range reports {
		if reports[i].Timestamp == "" {
			reports[i].Timestamp = now
		}
	}

	var payload any = reports
	if len(reports) == 1 {
		payload = reports[0]
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	u, err := url.JoinPath(r.relayURL, "errors")
	if err != nil {
		return fmt.Errorf("invalid relay URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Debug("[Reporter] Failed to send error report: %v", err)
		return fmt.Errorf("failed to send error report: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		r.logger.Debug("[Reporter] Relay returned status %d", resp.StatusCode)
		return fmt.Errorf("relay returned status %d", resp.StatusCode)
	}
	return nil
}

// Report sends a custom report.
func (r *Reporter) Report(ctx context.Context, message, stack, source string, reportContext map[string]any) error {
	return r.Send(ctx, contracts.ErrorReport{
		Message: message,
		Stack:   stack,
		Source:  source,
		Context: reportContext,
	})
}

// ReportError reports err with the caller's stack.
func (r *Reporter) ReportError(ctx context.Context, err error, source string) error {
	if !r.enabled || err == nil {
		return nil
	}
	return r.Report(ctx, err.Error(), captureStack(3), source, map[string]any{
		"language":    "go",
		"detectedVia": "error",
	})
}

// ReportPanic reports a recovered panic value with the stack of the panicking goroutine.
func (r *Reporter) ReportPanic(ctx context.Context, recovered any, source string) error {
	if !r.enabled || recovered == nil {
		return nil
	}
	return r.Report(ctx, fmt.Sprintf("panic: %v", recovered), captureStack(4), source, map[string]any{
		"language":    "go",
		"detectedVia": "recover",
	})
}

// Sink returns a classifier sink that sends each report, logging failures.
func (r *Reporter) Sink(ctx context.Context) func(contracts.ErrorReport) {
	return func(report contracts.ErrorReport) {
		if err := r.Send(ctx, report); err != nil {
			r.logger.Warn("[Reporter] %v", err)
		}
	}
}

// Health queries the relay's health endpoint.
func (r *Reporter) Health(ctx context.Context) (contracts.HealthResponse, error) {
	var health contracts.HealthResponse

	u, err := url.JoinPath(r.relayURL, "health")
	if err != nil {
		return health, fmt.Errorf("invalid relay URL: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return health, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return health, fmt.Errorf("relay unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return health, fmt.Errorf("relay returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return health, fmt.Errorf("invalid health response: %w", err)
	}
	return health, nil
}

func captureStack(skip int) string {
	var buf strings.Builder
	pcs := make([]uintptr, 32)
	n := runtime.Callers(skip, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	for {
		frame, more := frames.Next()
		fmt.Fprintf(&buf, "%s\n\t%s:%d\n", frame.Function, frame.File, frame.Line)
		if !more {
			break
		}
	}
	return buf.String()
}
