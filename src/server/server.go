// Package server implements the devsonar relay: an HTTP intake that feeds error reports
// into the aggregation buffer and exposes the buffer, history and live feed.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"devsonar/src/buffer"
	"devsonar/src/contracts"
	"devsonar/src/logger"
	"devsonar/src/metrics"
	"devsonar/src/session"
	"devsonar/src/store"
)

// Target is reported by the health endpoint.
const Target = "claude-code"

const (
	maxBodyBytes       = 10 << 20
	defaultRecentLimit = 20
	maxRecentLimit     = 500
	shutdownTimeout    = 5 * time.Second
)

// ErrAddrInUse is returned by Listen when another process already holds the port.
var ErrAddrInUse = errors.New("address already in use")

// Options wires a Server. Buffer is required.
type Options struct {
	Addr     string
	Buffer   *buffer.Buffer
	Store    store.Store
	Sessions *session.Manager
	Metrics  *metrics.Metrics
	// IntakeRate caps POST /errors requests per second. Zero disables the limit.
	IntakeRate float64
	Logger     logger.Logger
}

// Server is the relay HTTP server.
type Server struct {
	opts    Options
	log     logger.Logger
	limiter *rate.Limiter
	hub     *Hub
	handler http.Handler

	mu       sync.Mutex
	listener net.Listener
	http     *http.Server
}

// New creates a Server.
func New(opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = logger.NewSilentLogger()
	}

	s := &Server{
		opts: opts,
		log:  log,
		hub:  NewHub(log),
	}
	if opts.IntakeRate > 0 {
		burst := int(opts.IntakeRate)
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(opts.IntakeRate), burst)
	}
	s.handler = s.routes()
	return s
}

// Hub returns the websocket broadcaster fed by POST /errors.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the HTTP handler with all routes mounted.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors)

	r.Post("/errors", s.handleErrors)
	r.Get("/errors/recent", s.handleRecent)
	r.Get("/errors/inflight", s.handleInFlight)
	r.Get("/health", s.handleHealth)
	r.Post("/flush", s.handleFlush)
	r.Get("/ws", s.hub.ServeHTTP)
	if s.opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.opts.Metrics.Handler())
	}
	return r
}

// Listen binds the configured address. It returns ErrAddrInUse when the port is taken.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			return fmt.Errorf("%w: %s", ErrAddrInUse, s.opts.Addr)
		}
		return fmt.Errorf("failed to listen on %s: %w", s.opts.Addr, err)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	return nil
}

// Addr returns the bound address, or the configured one before Listen.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.opts.Addr
}

// Serve handles requests until ctx is cancelled, then shuts down gracefully.
// Listen is called first if it has not been.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln == nil {
		if err := s.Listen(); err != nil {
			return err
		}
		s.mu.Lock()
		ln = s.listener
		s.mu.Unlock()
	}

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.http = srv
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("[Relay] Listening on http://%s", ln.Addr())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	s.hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("relay shutdown: %w", err)
	}
	return nil
}

// Start is Listen followed by Serve.
func (s *Server) Start(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

type receivedResponse struct {
	Received int `json:"received"`
}

type flushedResponse struct {
	Flushed int `json:"flushed"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleErrors(w http.ResponseWriter, r *http.Request) {
	if s.limiter != nil && !s.limiter.Allow() {
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded"})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "request body too large"})
		return
	}

	entries, err := splitEntries(body)
	if err != nil {
		s.log.Warn("[Relay] Malformed request body: %v", err)
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON"})
		return
	}

	for _, raw := range entries {
		var report contracts.ErrorReport
		if err := json.Unmarshal(raw, &report); err != nil {
			s.log.Warn("[Relay] Invalid error report received: %s", raw)
			continue
		}
		if err := report.Validate(); err != nil {
			s.log.Warn("[Relay] Invalid error report received (%v): %s", err, raw)
			continue
		}
		if report.Stack == "" {
			s.log.Warn("[Relay] Error report missing stack trace: %q", report.Message)
		}

		source := report.Source
		if source == "" {
			source = "unknown"
		}
		s.log.Debug("[Relay] Received error: %s (source: %s)", report.Message, source)

		s.hub.Broadcast(report)
		s.opts.Buffer.Add(report)
	}

	writeJSON(w, http.StatusAccepted, receivedResponse{Received: len(entries)})
}

// splitEntries accepts a single JSON value or an array of them.
func splitEntries(body []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, errors.New("empty body")
	}
	if trimmed[0] == '[' {
		var entries []json.RawMessage
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, err
		}
		return entries, nil
	}
	if !json.Valid(trimmed) {
		return nil, errors.New("body is not valid JSON")
	}
	return []json.RawMessage{trimmed}, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := contracts.HealthResponse{
		Status:   "ok",
		Buffered: s.opts.Buffer.Size(),
		InFlight: s.opts.Buffer.InFlightCount(),
		Target:   Target,
	}
	if s.opts.Sessions != nil {
		if id := s.opts.Sessions.ID(); id != "" {
			resp.SessionID = &id
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleFlush(w http.ResponseWriter, r *http.Request) {
	n := s.opts.Buffer.Flush()
	s.log.Debug("[Relay] Manual flush of %d report(s)", n)
	writeJSON(w, http.StatusOK, flushedResponse{Flushed: n})
}

func (s *Server) handleInFlight(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.opts.Buffer.InFlight())
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	limit := defaultRecentLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = min(n, maxRecentLimit)
	}

	records := []store.Record{}
	if s.opts.Store != nil {
		recent, err := s.opts.Store.Recent(r.Context(), limit)
		if err != nil {
			s.log.Error("[Relay] Failed to read history: %v", err)
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to read history"})
			return
		}
		if recent != nil {
			records = recent
		}
	}
	writeJSON(w, http.StatusOK, records)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// cors allows browser reporters on other origins to post reports.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
