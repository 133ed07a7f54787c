package exempt

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TokenHeader carries the shared secret on remote exemption fetches.
const TokenHeader = "X-Exemptions-Token"

// correlationHeader ties a fetch to server-side logs.
const correlationHeader = "X-Correlation-Id"

// ErrRemoteFetch wraps network failures against an explicitly configured
// server. They are hard errors: if you asked a server, you trust it, and a
// silent fallback could hide a weaker rule/exemption set.
var ErrRemoteFetch = fmt.Errorf("remote exemption fetch failed")

// Loader resolves exemptions through the remote, local, built-in chain.
type Loader struct {
	Server    string
	LocalPath string
	// Token is the shared secret sent on remote fetches.
	Token  string
	Client *http.Client
	Logger *slog.Logger
}

func (l *Loader) logger() *slog.Logger {
	if l.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return l.Logger
}

func (l *Loader) httpClient() *http.Client {
	if l.Client == nil {
		return &http.Client{Timeout: 10 * time.Second}
	}
	return l.Client
}

// Load resolves the exemption list for an archetype. Remote wins when a
// server is configured; otherwise local files; otherwise the built-in
// defaults. Malformed files or entries are dropped with a warning, never
// failing the load of other sources.
func (l *Loader) Load(ctx context.Context, archetype string) ([]Exemption, error) {
	if l.Server != "" {
		return l.loadRemote(ctx, archetype)
	}
	if l.LocalPath != "" {
		if exs, ok := l.loadLocal(archetype); ok {
			return exs, nil
		}
	}
	return defaultExemptions[archetype], nil
}

func (l *Loader) loadRemote(ctx context.Context, archetype string) ([]Exemption, error) {
	url := strings.TrimSuffix(l.Server, "/") + "/archetypes/" + archetype + "/exemptions"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteFetch, err)
	}
	req.Header.Set(correlationHeader, uuid.NewString())
	if l.Token != "" {
		req.Header.Set(TokenHeader, l.Token)
	}

	resp, err := l.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: server returned %d for %s", ErrRemoteFetch, resp.StatusCode, url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteFetch, err)
	}
	exs, ok := l.parse(body, url)
	if !ok {
		// A reachable server with a malformed payload is a validation
		// error, not a network error: degrade to no exemptions.
		return nil, nil
	}
	return exs, nil
}

// loadLocal reads the legacy single file plus every sharded file and
// concatenates the results. The second return is false when no local
// source existed at all.
func (l *Loader) loadLocal(archetype string) ([]Exemption, bool) {
	var out []Exemption
	found := false

	legacy := filepath.Join(l.LocalPath, archetype+"-exemptions.json")
	if exs, ok := l.readFile(legacy); ok {
		out = append(out, exs...)
		found = true
	}

	shardDir := filepath.Join(l.LocalPath, archetype+"-exemptions")
	entries, err := os.ReadDir(shardDir)
	if err == nil {
		suffix := "-" + archetype + "-exemptions.json"
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), suffix) {
				continue
			}
			if exs, ok := l.readFile(filepath.Join(shardDir, entry.Name())); ok {
				out = append(out, exs...)
				found = true
			}
		}
	}

	return out, found
}

// readFile loads one exemption file. The path is canonicalized and must
// remain inside the configured local directory; crafted filenames must not
// read elsewhere.
func (l *Loader) readFile(path string) ([]Exemption, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, false
	}
	root, err := filepath.Abs(l.LocalPath)
	if err != nil {
		return nil, false
	}
	if !strings.HasPrefix(abs, root+string(filepath.Separator)) && abs != root {
		l.logger().Warn("exemption file outside local config path, skipping", "path", path)
		return nil, false
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, false
	}
	return l.parse(data, path)
}

// parse decodes one exemption array. Non-array documents yield zero
// exemptions with a warning; individually malformed entries are dropped.
func (l *Loader) parse(data []byte, source string) ([]Exemption, bool) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		l.logger().Warn("exemptions are not a JSON array, ignoring", "source", source, "error", err)
		return nil, false
	}

	out := make([]Exemption, 0, len(raw))
	for i, entry := range raw {
		var e Exemption
		if err := json.Unmarshal(entry, &e); err != nil {
			l.logger().Warn("dropping malformed exemption entry", "source", source, "index", i, "error", err)
			continue
		}
		if !e.Valid() {
			l.logger().Warn("dropping incomplete exemption entry", "source", source, "index", i)
			continue
		}
		out = append(out, e)
	}
	return out, true
}

// defaultExemptions is the built-in table, keyed by archetype. Kept empty
// for all known archetypes: shipping suppressions inside the binary is a
// policy decision the server or local files should make.
var defaultExemptions = map[string][]Exemption{}
