// Package measure drives the bundler for one measurement and reduces
// its output to minified and gzip byte counts.
package measure

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
)

// Sizes is the byte-count outcome of one bundle invocation.
type Sizes struct {
	MinifiedBytes int64 `json:"minified_bytes"`
	GzipBytes     int64 `json:"gzip_bytes"`
}

// Bundler is the black-box bundling capability: entry source plus a
// resolution root in, output byte counts out.
type Bundler interface {
	Bundle(entryContent, root string) (*Sizes, error)
}

// embeddedVersion is the esbuild library version compiled into this
// binary, reported when a workspace's own install differs.
const embeddedVersion = "0.27.2"

// DefaultConcurrency bounds simultaneous bundle invocations; esbuild
// already parallelizes internally within each one.
const DefaultConcurrency = 4

// Engine owns the bundling capability and the per-root capability
// state. Measurements from all workspaces funnel through one Engine so
// the concurrency bound is global.
type Engine struct {
	bundler Bundler
	sem     *semaphore.Weighted

	mu    sync.Mutex
	roots map[string]bool // root -> capability checked
}

// NewEngine creates a measurement engine around a bundling capability.
// A nil bundler means bundling is unavailable everywhere until Reset
// is followed by re-wiring a capability.
func NewEngine(bundler Bundler, concurrency int64) *Engine {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Engine{
		bundler: bundler,
		sem:     semaphore.NewWeighted(concurrency),
		roots:   make(map[string]bool),
	}
}

// Available reports whether a bundling capability exists for the root.
func (e *Engine) Available(root string) bool {
	if e.bundler == nil {
		return false
	}
	e.checkRoot(root)
	return true
}

// Measure bundles the entry against the root and returns its sizes.
// Bundling errors are returned to the caller for negative caching;
// panics inside the capability are contained the same way.
func (e *Engine) Measure(ctx context.Context, entryContent, root string) (sizes *Sizes, err error) {
	if e.bundler == nil {
		return nil, ErrUnavailable
	}
	e.checkRoot(root)

	if err := e.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer e.sem.Release(1)

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("root", root).Msg("Bundler panicked")
			sizes = nil
			err = ErrBundlerPanic
		}
	}()

	return e.bundler.Bundle(entryContent, root)
}

// Reset drops the per-root capability state so a changed toolchain is
// re-discovered. Driven by bulk cache clears.
func (e *Engine) Reset() {
	e.mu.Lock()
	e.roots = make(map[string]bool)
	e.mu.Unlock()
}

// checkRoot logs a once-per-root notice when the workspace's own
// esbuild install (direct, or nested under common framework tooling)
// differs from the embedded library version. The embedded bundler is
// used either way; the notice preserves the "prefer the project's own
// copy" intent as a diagnostic.
func (e *Engine) checkRoot(root string) {
	e.mu.Lock()
	checked := e.roots[root]
	e.roots[root] = true
	e.mu.Unlock()
	if checked {
		return
	}

	installed := workspaceEsbuildVersion(root)
	if installed != "" && installed != embeddedVersion {
		log.Debug().
			Str("root", root).
			Str("workspace_version", installed).
			Str("embedded_version", embeddedVersion).
			Msg("Workspace esbuild version differs from embedded bundler")
	}
}

// frameworkTooling lists packages that commonly carry their own nested
// esbuild install without the workspace declaring one directly.
var frameworkTooling = []string{"vite", "tsup", "wrangler", "@angular-devkit/build-angular"}

func workspaceEsbuildVersion(root string) string {
	candidates := []string{filepath.Join(root, "node_modules", "esbuild", "package.json")}
	for _, tool := range frameworkTooling {
		candidates = append(candidates,
			filepath.Join(root, "node_modules", filepath.FromSlash(tool), "node_modules", "esbuild", "package.json"))
	}
	for _, manifest := range candidates {
		data, err := os.ReadFile(manifest)
		if err != nil {
			continue
		}
		var parsed struct {
			Version string `json:"version"`
		}
		if err := json.Unmarshal(data, &parsed); err == nil && parsed.Version != "" {
			return parsed.Version
		}
	}
	return ""
}

// findProjectConfig walks upward from the root looking for the nearest
// TypeScript or JavaScript project config, so workspace path mappings
// apply during resolution.
func findProjectConfig(root string) string {
	dir := root
	for {
		for _, name := range []string{"tsconfig.json", "jsconfig.json"} {
			candidate := filepath.Join(dir, name)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
