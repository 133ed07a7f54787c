// Package scheduler orders and parallelizes per-file analysis work. It
// skips unchanged files via content hashing, front-loads the files most
// likely to matter, and offloads CPU-heavy fact computation to a bounded
// worker pool.
package scheduler

import (
	"context"
	"log/slog"
	"sort"

	"github.com/archetype-labs/archlint/pkg/core"
)

// Plan is the ordered work for one run.
type Plan struct {
	// Batches are consumed in order; batch zero has the highest priority.
	Batches []Batch
	// CacheHits are paths skipped because their content is unchanged.
	CacheHits []string
	// Hashes is the current run's full hash table, committed by the caller
	// once the run completes.
	Hashes map[string]string
}

// Files returns the planned files flattened in batch order.
func (p *Plan) Files() []core.FileData {
	var out []core.FileData
	for _, b := range p.Batches {
		out = append(out, b.Files...)
	}
	return out
}

// Scheduler builds plans for repeated runs over one repository.
type Scheduler struct {
	hasher  *Hasher
	watcher *Watcher
	logger  *slog.Logger
}

// New builds a scheduler. The watcher may be nil (no recent-edit boost).
func New(hasher *Hasher, watcher *Watcher, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Scheduler{hasher: hasher, watcher: watcher, logger: logger}
}

// Plan hashes the candidate files, drops the unchanged ones as cache hits,
// and groups the rest into fixed-size priority batches, highest first.
func (s *Scheduler) Plan(ctx context.Context, files []core.FileData) (*Plan, error) {
	hashes, err := s.hasher.HashAll(ctx, files)
	if err != nil {
		return nil, err
	}
	previous := s.hasher.Previous()

	var recent map[string]bool
	if s.watcher != nil {
		recent = s.watcher.Recent()
	}

	type scored struct {
		file  core.FileData
		score int
	}
	var changed []scored
	var hits []string
	for _, f := range files {
		if prev, ok := previous[f.Path]; ok && prev == hashes[f.Path] {
			hits = append(hits, f.Path)
			continue
		}
		changed = append(changed, scored{file: f, score: score(f, recent)})
	}

	sort.SliceStable(changed, func(i, j int) bool {
		return changed[i].score > changed[j].score
	})

	var batches []Batch
	for start := 0; start < len(changed); start += batchSize {
		end := min(start+batchSize, len(changed))
		b := Batch{Files: make([]core.FileData, 0, end-start)}
		scores := make([]int, 0, end-start)
		for _, sc := range changed[start:end] {
			b.Files = append(b.Files, sc.file)
			scores = append(scores, sc.score)
		}
		b.Priority = batchPriority(scores)
		batches = append(batches, b)
	}

	sort.Strings(hits)
	s.logger.Debug("analysis planned",
		"candidates", len(files),
		"cache_hits", len(hits),
		"batches", len(batches))

	return &Plan{Batches: batches, CacheHits: hits, Hashes: hashes}, nil
}

// Commit persists the plan's hash table after a successful run.
func (s *Scheduler) Commit(plan *Plan) {
	s.hasher.Commit(plan.Hashes)
}
