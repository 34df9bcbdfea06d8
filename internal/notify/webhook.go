package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// WebhookDispatcher POSTs events as JSON to a configured endpoint.
type WebhookDispatcher struct {
	URL    string
	Client *http.Client
}

// NewWebhookDispatcher creates a dispatcher for the given endpoint.
func NewWebhookDispatcher(url string) *WebhookDispatcher {
	return &WebhookDispatcher{
		URL:    url,
		Client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (d *WebhookDispatcher) Dispatch(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.Client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to deliver event for job %s: %w", ev.Job.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("event delivery for job %s returned %d", ev.Job.ID, resp.StatusCode)
	}
	return nil
}
