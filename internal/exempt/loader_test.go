package exempt

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archetype-labs/archlint/internal/testutil"
)

const exemptionPayload = `[
	{"repo": "acme/billing", "rule": "outdated-dependencies", "expirationDate": "2030-01-01", "reason": "migration"},
	{"repo": "acme/billing", "rule": "missing-directories", "expirationDate": "2030-01-01", "reason": "monorepo"}
]`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoaderRemote(t *testing.T) {
	var gotToken, gotCorrelation string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get(TokenHeader)
		gotCorrelation = r.Header.Get(correlationHeader)
		assert.Equal(t, "/archetypes/node-fullstack/exemptions", r.URL.Path)
		_, _ = w.Write([]byte(exemptionPayload))
	}))
	defer srv.Close()

	l := &Loader{Server: srv.URL, Token: "s3cret", Logger: testutil.NewTestLogger(t)}
	exs, err := l.Load(context.Background(), "node-fullstack")
	require.NoError(t, err)
	assert.Len(t, exs, 2)
	assert.Equal(t, "s3cret", gotToken)
	assert.NotEmpty(t, gotCorrelation, "every fetch carries a correlation id")
}

func TestLoaderRemoteUnreachableIsHardError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // connection refused from here on

	l := &Loader{Server: srv.URL, Logger: testutil.NewTestLogger(t)}
	_, err := l.Load(context.Background(), "node-fullstack")
	assert.ErrorIs(t, err, ErrRemoteFetch)
}

func TestLoaderRemoteErrorStatusIsHardError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	l := &Loader{Server: srv.URL, Logger: testutil.NewTestLogger(t)}
	_, err := l.Load(context.Background(), "node-fullstack")
	assert.ErrorIs(t, err, ErrRemoteFetch)
}

func TestLoaderRemoteMalformedPayloadDegrades(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"invalid": "format"}`))
	}))
	defer srv.Close()

	l := &Loader{Server: srv.URL, Logger: testutil.NewTestLogger(t)}
	exs, err := l.Load(context.Background(), "node-fullstack")
	require.NoError(t, err, "a reachable server with bad data is not a network failure")
	assert.Empty(t, exs)
}

func TestLoaderLocalLegacyFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "node-fullstack-exemptions.json"), exemptionPayload)

	l := &Loader{LocalPath: dir, Logger: testutil.NewTestLogger(t)}
	exs, err := l.Load(context.Background(), "node-fullstack")
	require.NoError(t, err)
	assert.Len(t, exs, 2)
}

func TestLoaderLocalShards(t *testing.T) {
	dir := t.TempDir()
	shardDir := filepath.Join(dir, "go-service-exemptions")
	writeFile(t, filepath.Join(shardDir, "team-a-go-service-exemptions.json"),
		`[{"repo": "acme/api", "rule": "outdated-dependencies", "expirationDate": "2030-01-01"}]`)
	writeFile(t, filepath.Join(shardDir, "team-b-go-service-exemptions.json"),
		`[{"repo": "acme/worker", "rule": "outdated-dependencies", "expirationDate": "2030-01-01"}]`)
	writeFile(t, filepath.Join(shardDir, "README.md"), "not an exemption file")

	l := &Loader{LocalPath: dir, Logger: testutil.NewTestLogger(t)}
	exs, err := l.Load(context.Background(), "go-service")
	require.NoError(t, err)
	assert.Len(t, exs, 2, "only files matching the shard suffix are read")
}

func TestLoaderLocalMalformedFileYieldsZero(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "node-fullstack-exemptions.json"), `{"invalid": "format"}`)

	l := &Loader{LocalPath: dir, Logger: testutil.NewTestLogger(t)}
	exs, err := l.Load(context.Background(), "node-fullstack")
	require.NoError(t, err)
	assert.Empty(t, exs)
}

func TestLoaderLocalDropsInvalidEntries(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "node-fullstack-exemptions.json"), `[
		{"repo": "acme/billing", "rule": "outdated-dependencies", "expirationDate": "2030-01-01"},
		{"repo": "", "rule": "missing-directories", "expirationDate": "2030-01-01"},
		"not an object"
	]`)

	l := &Loader{LocalPath: dir, Logger: testutil.NewTestLogger(t)}
	exs, err := l.Load(context.Background(), "node-fullstack")
	require.NoError(t, err)
	require.Len(t, exs, 1)
	assert.Equal(t, "outdated-dependencies", exs[0].Rule)
}

func TestLoaderNoSourcesFallsBackToBuiltins(t *testing.T) {
	l := &Loader{Logger: testutil.NewTestLogger(t)}
	exs, err := l.Load(context.Background(), "node-fullstack")
	require.NoError(t, err)
	assert.Empty(t, exs)
}

func TestReadFileRejectsEscapingPaths(t *testing.T) {
	dir := t.TempDir()
	outside := filepath.Join(filepath.Dir(dir), "outside.json")
	writeFile(t, outside, exemptionPayload)

	l := &Loader{LocalPath: dir, Logger: testutil.NewTestLogger(t)}
	_, ok := l.readFile(filepath.Join(dir, "..", "outside.json"))
	assert.False(t, ok)
}
