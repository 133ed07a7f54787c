// Package telemetry posts audit events to the config server. Events are
// fire-and-forget: analysis never blocks on, or fails because of, telemetry.
package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Client sends events to POST {server}/telemetry. A nil or empty-server
// client is a no-op, so callers never need to branch on configuration.
type Client struct {
	server string
	http   *http.Client
	logger *slog.Logger
	wg     sync.WaitGroup
}

// New builds a client. An empty server disables sending.
func New(server string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{
		server: strings.TrimSuffix(server, "/"),
		http:   &http.Client{Timeout: 5 * time.Second},
		logger: logger,
	}
}

// Emit sends one event asynchronously. Failures are logged at debug level
// and otherwise ignored.
func (c *Client) Emit(event string, payload map[string]any) {
	if c == nil || c.server == "" {
		return
	}
	body := map[string]any{
		"event":     event,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"payload":   payload,
	}
	data, err := json.Marshal(body)
	if err != nil {
		c.logger.Debug("telemetry marshal failed", "event", event, "error", err)
		return
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.server+"/telemetry", bytes.NewReader(data))
		if err != nil {
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Correlation-Id", uuid.NewString())

		resp, err := c.http.Do(req)
		if err != nil {
			c.logger.Debug("telemetry post failed", "event", event, "error", err)
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			c.logger.Debug("telemetry rejected", "event", event, "status", resp.StatusCode)
		}
	}()
}

// Flush waits for in-flight events, bounded by the context.
func (c *Client) Flush(ctx context.Context) {
	if c == nil {
		return
	}
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
	case <-done:
	}
}
