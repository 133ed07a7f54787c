// Package walker produces the analysis file set for a repository root,
// honoring the archetype's blacklist and whitelist glob patterns.
package walker

import (
	"bytes"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/archetype-labs/archlint/pkg/core"
)

// maxFileSize caps what the walker is willing to load into memory.
// Larger files are almost always generated artifacts.
const maxFileSize = 1 << 20 // 1 MiB

// skippedDirs are never descended into, regardless of patterns.
var skippedDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	".archlint":    true,
}

// Walker collects FileData units under a root.
type Walker struct {
	Root string
	// Blacklist patterns exclude paths; they win over the whitelist.
	Blacklist []string
	// Whitelist patterns include paths; empty means everything.
	Whitelist []string
	Logger    *slog.Logger
}

// Walk returns the matching files sorted by path. Unreadable entries are
// skipped with a debug log; a missing root is an error.
func (w *Walker) Walk() ([]core.FileData, error) {
	logger := w.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var files []core.FileData
	err := filepath.WalkDir(w.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == w.Root {
				return err
			}
			logger.Debug("skipping unreadable entry", "path", path, "error", err)
			return nil
		}
		if d.IsDir() {
			if skippedDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(w.Root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if !w.match(rel) {
			return nil
		}

		info, err := d.Info()
		if err != nil || info.Size() > maxFileSize {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Debug("skipping unreadable file", "path", path, "error", err)
			return nil
		}
		if isBinary(data) {
			return nil
		}

		files = append(files, core.FileData{
			Name:    d.Name(),
			Path:    rel,
			Content: string(data),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

func (w *Walker) match(rel string) bool {
	for _, pattern := range w.Blacklist {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return false
		}
	}
	if len(w.Whitelist) == 0 {
		return true
	}
	for _, pattern := range w.Whitelist {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

// isBinary sniffs for NUL bytes in the first block.
func isBinary(data []byte) bool {
	block := data
	if len(block) > 8000 {
		block = block[:8000]
	}
	return bytes.IndexByte(block, 0) >= 0
}
