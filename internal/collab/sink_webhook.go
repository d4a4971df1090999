package collab

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// WebhookSink POSTs engine events to a webhook URL as JSON. Failures are
// logged, never surfaced: notification delivery is an external concern.
type WebhookSink struct {
	url    string
	client *http.Client
}

func NewWebhookSink(url string, timeout time.Duration) *WebhookSink {
	return &WebhookSink{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (s *WebhookSink) Emit(event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		slog.Error("failed to marshal notification event", "kind", event.Kind, "error", err)
		return
	}

	resp, err := s.client.Post(s.url, "application/json", bytes.NewReader(payload))
	if err != nil {
		slog.Error("notification webhook failed", "kind", event.Kind, "app_id", event.AppID, "error", err)
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		slog.Error("notification webhook rejected event", "kind", event.Kind, "app_id", event.AppID, "status", resp.StatusCode)
	}
}
