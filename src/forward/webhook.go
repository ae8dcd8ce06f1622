package forward

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"devsonar/src/contracts"
)

// NewBatch wraps reports with a fresh batch id.
func NewBatch(reports []contracts.ErrorReport, now time.Time) contracts.Batch {
	return contracts.Batch{
		ID:        uuid.NewString(),
		Reports:   reports,
		FlushedAt: contracts.NowTimestamp(now),
	}
}

// WebhookForwarder POSTs each batch as JSON to a URL. Non-2xx responses are errors; nothing
// is retried.
type WebhookForwarder struct {
	url    string
	client *http.Client
}

// NewWebhookForwarder creates a WebhookForwarder. A nil client gets a 10 second timeout.
func NewWebhookForwarder(url string, client *http.Client) *WebhookForwarder {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &WebhookForwarder{url: url, client: client}
}

func (w *WebhookForwarder) Forward(ctx context.Context, reports []contracts.ErrorReport) error {
	body, err := json.Marshal(NewBatch(reports, time.Now()))
	if err != nil {
		return fmt.Errorf("failed to marshal batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
