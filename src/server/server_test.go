package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"devsonar/src/buffer"
	"devsonar/src/contracts"
	"devsonar/src/forward"
	"devsonar/src/metrics"
	"devsonar/src/session"
	"devsonar/src/store"
)

type capture struct {
	mu      sync.Mutex
	batches [][]contracts.ErrorReport
}

func (c *capture) Forward(ctx context.Context, reports []contracts.ErrorReport) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batches = append(c.batches, reports)
	return nil
}

func newTestServer(t *testing.T, opts Options) (*Server, *buffer.Buffer) {
	t.Helper()
	if opts.Buffer == nil {
		opts.Buffer = buffer.New(&capture{}, buffer.Options{Debounce: time.Hour})
	}
	t.Cleanup(func() { _ = opts.Buffer.Close(context.Background()) })
	return New(opts), opts.Buffer
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestPostErrors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCount  int
		wantQueued int
	}{
		{
			name:       "single object",
			body:       `{"message":"boom","stack":"at x","timestamp":"2024-01-01T00:00:00Z"}`,
			wantStatus: http.StatusAccepted,
			wantCount:  1,
			wantQueued: 1,
		},
		{
			name:       "array",
			body:       `[{"message":"a","timestamp":"t"},{"message":"b","timestamp":"t"}]`,
			wantStatus: http.StatusAccepted,
			wantCount:  2,
			wantQueued: 2,
		},
		{
			name:       "invalid entries are counted but skipped",
			body:       `[{"message":"a","timestamp":"t"},{"message":"","timestamp":"t"},{"message":"c"},{"message":5,"timestamp":"t"}]`,
			wantStatus: http.StatusAccepted,
			wantCount:  4,
			wantQueued: 1,
		},
		{
			name:       "non-object value",
			body:       `"just a string"`,
			wantStatus: http.StatusAccepted,
			wantCount:  1,
			wantQueued: 0,
		},
		{
			name:       "malformed JSON",
			body:       `{"message":`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "empty body",
			body:       ``,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, buf := newTestServer(t, Options{})

			rec := do(t, srv.Handler(), http.MethodPost, "/errors", tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d (%s)", tt.wantStatus, rec.Code, rec.Body.String())
			}
			if tt.wantStatus != http.StatusAccepted {
				return
			}

			var resp receivedResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("invalid response: %v", err)
			}
			if resp.Received != tt.wantCount {
				t.Errorf("expected received %d, got %d", tt.wantCount, resp.Received)
			}
			if buf.Size() != tt.wantQueued {
				t.Errorf("expected %d queued, got %d", tt.wantQueued, buf.Size())
			}
		})
	}
}

func TestPostErrors_RateLimited(t *testing.T) {
	srv, _ := newTestServer(t, Options{IntakeRate: 1})
	body := `{"message":"a","timestamp":"t"}`

	if rec := do(t, srv.Handler(), http.MethodPost, "/errors", body); rec.Code != http.StatusAccepted {
		t.Fatalf("expected first request accepted, got %d", rec.Code)
	}
	if rec := do(t, srv.Handler(), http.MethodPost, "/errors", body); rec.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", rec.Code)
	}
}

func TestPostErrors_CountsMetrics(t *testing.T) {
	m := metrics.New()
	buf := buffer.New(&capture{}, buffer.Options{Debounce: time.Hour, Metrics: m})
	srv, _ := newTestServer(t, Options{Metrics: m, Buffer: buf})

	do(t, srv.Handler(), http.MethodPost, "/errors", `[{"message":"a","timestamp":"t","source":"web"},{"message":"b","timestamp":"t"}]`)

	rec := do(t, srv.Handler(), http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from /metrics, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `devsonar_reports_received_total{source="web"} 1`) {
		t.Errorf("expected web counter in exposition, got:\n%s", body)
	}
	if !strings.Contains(body, `devsonar_reports_received_total{source="unknown"} 1`) {
		t.Errorf("expected unknown counter in exposition, got:\n%s", body)
	}
	if strings.Contains(body, `devsonar_reports_received_total{source=""}`) {
		t.Errorf("expected no empty source label, got:\n%s", body)
	}
}

func TestHealth(t *testing.T) {
	sessions := session.NewManager(t.TempDir(), nil)
	srv, buf := newTestServer(t, Options{Sessions: sessions})

	buf.Add(contracts.ErrorReport{Message: "a", Timestamp: "t"})

	rec := do(t, srv.Handler(), http.MethodGet, "/health", "")
	var health contracts.HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if health.Status != "ok" || health.Buffered != 1 || health.Target != Target {
		t.Errorf("unexpected health: %+v", health)
	}
	if health.SessionID != nil {
		t.Errorf("expected null session id, got %q", *health.SessionID)
	}
	if !strings.Contains(rec.Body.String(), `"session_id":null`) {
		t.Errorf("expected explicit null session_id, got %s", rec.Body.String())
	}

	if err := sessions.Save("sess-1"); err != nil {
		t.Fatalf("failed to save session: %v", err)
	}
	rec = do(t, srv.Handler(), http.MethodGet, "/health", "")
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if health.SessionID == nil || *health.SessionID != "sess-1" {
		t.Errorf("expected session id sess-1, got %v", health.SessionID)
	}
}

func TestFlush(t *testing.T) {
	fwd := &capture{}
	buf := buffer.New(fwd, buffer.Options{Debounce: time.Hour})
	srv, _ := newTestServer(t, Options{Buffer: buf})

	buf.Add(contracts.ErrorReport{Message: "a", Timestamp: "t"})
	buf.Add(contracts.ErrorReport{Message: "b", Timestamp: "t"})

	rec := do(t, srv.Handler(), http.MethodPost, "/flush", "")
	var resp flushedResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if resp.Flushed != 2 {
		t.Errorf("expected flushed 2, got %d", resp.Flushed)
	}

	if err := buf.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	fwd.mu.Lock()
	defer fwd.mu.Unlock()
	if len(fwd.batches) != 1 || len(fwd.batches[0]) != 2 {
		t.Errorf("expected one batch of 2, got %v", fwd.batches)
	}
}

func TestInFlight(t *testing.T) {
	gate := make(chan struct{})
	fwd := forward.Func(func(ctx context.Context, reports []contracts.ErrorReport) error {
		<-gate
		return nil
	})
	buf := buffer.New(fwd, buffer.Options{Debounce: time.Hour})
	srv, _ := newTestServer(t, Options{Buffer: buf})
	defer close(gate)

	buf.Add(contracts.ErrorReport{Message: "a", Timestamp: "t"})
	buf.Flush()

	rec := do(t, srv.Handler(), http.MethodGet, "/errors/inflight", "")
	var entries []contracts.InFlightEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if len(entries) != 1 || entries[0].Message != "a" || entries[0].Status != contracts.InFlightStatus {
		t.Errorf("unexpected in-flight entries: %+v", entries)
	}
}

func TestRecent(t *testing.T) {
	st := store.NewMemoryStore()
	now := time.Now()
	err := st.SaveRecords(context.Background(), []store.Record{
		{ID: "1", Message: "old", ForwardedAt: now.Add(-time.Minute), Outcome: store.OutcomeForwarded},
		{ID: "2", Message: "new", ForwardedAt: now, Outcome: store.OutcomeFailed},
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	srv, _ := newTestServer(t, Options{Store: st})

	rec := do(t, srv.Handler(), http.MethodGet, "/errors/recent?limit=1", "")
	var records []store.Record
	if err := json.Unmarshal(rec.Body.Bytes(), &records); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if len(records) != 1 || records[0].ID != "2" {
		t.Errorf("expected newest record only, got %+v", records)
	}

	if rec := do(t, srv.Handler(), http.MethodGet, "/errors/recent?limit=zero", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad limit, got %d", rec.Code)
	}
}

func TestRecent_NoStore(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	rec := do(t, srv.Handler(), http.MethodGet, "/errors/recent", "")
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("expected empty array, got %q", rec.Body.String())
	}
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	rec := do(t, srv.Handler(), http.MethodOptions, "/errors", "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("expected CORS header, got %q", rec.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestWebsocketBroadcast(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for srv.Hub().Clients() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	resp, err := http.Post(ts.URL+"/errors", "application/json",
		strings.NewReader(`{"message":"live","timestamp":"t"}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got contracts.ErrorReport
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("invalid frame: %v", err)
	}
	if got.Message != "live" {
		t.Errorf("expected message 'live', got %q", got.Message)
	}
}

func TestListen_AddrInUse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	srv, _ := newTestServer(t, Options{Addr: ln.Addr().String()})
	err = srv.Listen()
	if !errors.Is(err, ErrAddrInUse) {
		t.Errorf("expected ErrAddrInUse, got %v", err)
	}
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	srv, _ := newTestServer(t, Options{Addr: "127.0.0.1:0"})
	if err := srv.Listen(); err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	var resp *http.Response
	var err error
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		resp, err = http.Get("http://" + srv.Addr() + "/health")
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	resp.Body.Close()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
