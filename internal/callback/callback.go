// Package callback posts one-shot command outcomes to the admin webhook.
package callback

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bybot/pagare-worker/internal/fetch"
)

// Action names understood by the webhook
const (
	ActionAnalysisComplete = "analysis_complete"
	ActionAnalysisError    = "analysis_error"
	ActionFillComplete     = "fill_complete"
	ActionFillError        = "fill_error"
)

const (
	webhookPath = "/webhook/n8n"
	tokenHeader = "X-N8N-Access-Token"
)

// Sender posts callbacks
type Sender interface {
	Send(ctx context.Context, procesoID int64, action string, data map[string]any) error
}

// Client posts callbacks to {baseURL}/webhook/n8n
type Client struct {
	url    string
	token  string
	http   *fetch.Client
	logger *slog.Logger
}

// New creates a webhook client
func New(baseURL, token string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		url:    strings.TrimRight(baseURL, "/") + webhookPath,
		token:  token,
		http:   fetch.New(&fetch.Options{Timeout: timeout}),
		logger: logger,
	}
}

// Send posts {action, proceso_id, ...data}. Keys in data never override action or proceso_id.
func (c *Client) Send(ctx context.Context, procesoID int64, action string, data map[string]any) error {
	payload := make(map[string]any, len(data)+2)
	for k, v := range data {
		payload[k] = v
	}
	payload["action"] = action
	payload["proceso_id"] = procesoID

	if _, err := c.http.PostJSON(ctx, c.url, payload, map[string]string{tokenHeader: c.token}); err != nil {
		c.logger.Error("callback failed", "action", action, "proceso_id", procesoID, "error", err)
		return fmt.Errorf("failed to send %s callback: %w", action, err)
	}

	c.logger.Info("callback sent", "action", action, "proceso_id", procesoID)
	return nil
}

// Nop discards callbacks; used with --no_callback
type Nop struct{}

// Send does nothing
func (Nop) Send(context.Context, int64, string, map[string]any) error { return nil }
