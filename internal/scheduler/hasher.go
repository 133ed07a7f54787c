package scheduler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/archetype-labs/archlint/internal/state"
	"github.com/archetype-labs/archlint/pkg/core"
)

// hashBatchSize bounds concurrent hashing so large repositories do not
// fan out into unbounded goroutines or file descriptors.
const hashBatchSize = 16

// memCacheSize bounds the in-memory hash layer.
const memCacheSize = 4096

// HashContent returns the hex SHA-256 of file content.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Hasher computes and remembers content hashes. The persisted table (SQLite)
// is the previous run's view; the LRU keeps the current process hot. Only
// the orchestrating goroutine commits - hash workers just return values.
type Hasher struct {
	store  *state.Store
	mem    *lru.Cache[string, string]
	logger *slog.Logger
}

// NewHasher builds a hasher. The store may be nil (no persistence, every
// run sees every file as changed).
func NewHasher(store *state.Store, logger *slog.Logger) *Hasher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	mem, _ := lru.New[string, string](memCacheSize)
	return &Hasher{store: store, mem: mem, logger: logger}
}

// Previous returns the prior run's hash table.
func (h *Hasher) Previous() map[string]string {
	if h.store == nil {
		return nil
	}
	prev, err := h.store.AllContentHashes()
	if err != nil {
		h.logger.Warn("previous hash table unavailable, treating all files as changed", "error", err)
		return nil
	}
	return prev
}

// HashAll hashes every file with bounded concurrency and returns a
// path-to-hash table.
func (h *Hasher) HashAll(ctx context.Context, files []core.FileData) (map[string]string, error) {
	out := make(map[string]string, len(files))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(hashBatchSize)
	for _, f := range files {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			hash := HashContent(f.Content)
			mu.Lock()
			out[f.Path] = hash
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Commit writes the current run's hashes through the memory layer into the
// persisted table. Called from the orchestrating goroutine only.
func (h *Hasher) Commit(hashes map[string]string) {
	for path, hash := range hashes {
		h.mem.Add(path, hash)
		if h.store == nil {
			continue
		}
		if err := h.store.SetContentHash(path, hash); err != nil {
			h.logger.Warn("failed to persist content hash", "path", path, "error", err)
		}
	}
}

// Cached returns the in-process hash for a path, if the LRU still holds it.
func (h *Hasher) Cached(path string) (string, bool) {
	return h.mem.Get(path)
}
