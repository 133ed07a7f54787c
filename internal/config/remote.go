package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CorrelationHeader ties a config fetch to server-side logs.
const CorrelationHeader = "X-Correlation-Id"

// ErrRemoteFetch marks a network-level failure against an explicitly
// configured server. It is a hard error: falling back silently would hand
// the caller a weaker rule set than the one they asked for.
var ErrRemoteFetch = errors.New("remote config fetch failed")

// errRemotePayload marks a reachable server returning an unusable payload.
// Unlike ErrRemoteFetch this falls through to the next source.
var errRemotePayload = errors.New("remote config payload rejected")

// remoteClient fetches archetype and rule documents from the config server.
type remoteClient struct {
	base   string
	http   *http.Client
	logger *slog.Logger
}

func newRemoteClient(server string, logger *slog.Logger) *remoteClient {
	return &remoteClient{
		base:   strings.TrimSuffix(server, "/"),
		http:   &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

// get fetches one JSON document into out.
func (c *remoteClient) get(ctx context.Context, path string, out any) error {
	url := c.base + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRemoteFetch, err)
	}
	req.Header.Set(CorrelationHeader, uuid.NewString())

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRemoteFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: server returned %d for %s", ErrRemoteFetch, resp.StatusCode, url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRemoteFetch, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %s: %v", errRemotePayload, url, err)
	}
	return nil
}

// archetype fetches GET /archetypes/{name} as a raw document.
func (c *remoteClient) archetype(ctx context.Context, name string) (map[string]any, error) {
	var raw map[string]any
	if err := c.get(ctx, "/archetypes/"+name, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// rule fetches GET /archetypes/{name}/rules/{rule} as a raw document.
func (c *remoteClient) rule(ctx context.Context, archetype, rule string) (map[string]any, error) {
	var raw map[string]any
	if err := c.get(ctx, "/archetypes/"+archetype+"/rules/"+rule, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}
