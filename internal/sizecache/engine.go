// Package sizecache is the bundling cache and dedup engine: it owns the
// positive and negative TTL caches, in-flight request deduplication and
// the generation counter that makes bulk invalidation safe against
// in-flight work.
package sizecache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/bundlecost/bundlecost/internal/importsig"
	"github.com/bundlecost/bundlecost/internal/measure"
	"github.com/bundlecost/bundlecost/internal/resolver"
)

// MeasurementResult is the cached outcome of one measurement. Version
// is "local" for unversioned targets, the installed version string, or
// "unknown" when the manifest could not be read.
type MeasurementResult struct {
	Name          string `json:"name"`
	MinifiedBytes int64  `json:"minified_bytes"`
	GzipBytes     int64  `json:"gzip_bytes"`
	Version       string `json:"version"`
}

// State is the lifecycle position of one cache key, as seen by
// presentation layers deciding what to render without triggering work.
type State string

const (
	StateCached      State = "cached"
	StatePending     State = "pending"
	StateFailed      State = "failed"
	StateUnavailable State = "unavailable"
	StateMissing     State = "missing"
)

// Default TTLs. Positive entries survive an editing session; negative
// entries keep an unbundleable package from being re-attempted on every
// visible-range refresh, but expire quickly enough to pick up fixes.
const (
	DefaultPositiveTTL = time.Hour
	DefaultNegativeTTL = 5 * time.Minute
)

// Measurer is the engine's view of the measurement layer.
type Measurer interface {
	Measure(ctx context.Context, entryContent, root string) (*measure.Sizes, error)
	Available(root string) bool
	Reset()
}

// Recorder receives cache and measurement events. Implemented by the
// observability metrics; all hooks are optional.
type Recorder interface {
	CacheEvent(event string)
	MeasurementDone(outcome string, duration time.Duration)
	CacheEntries(n int)
}

type cacheEntry struct {
	result MeasurementResult
	at     time.Time
}

// pendingBuild is the shared in-flight measurement for one key, tagged
// with the generation it was started under. result is published before
// done is closed.
type pendingBuild struct {
	generation uint64
	done       chan struct{}
	result     *MeasurementResult
}

// Engine owns all cache state. Construct one per process (or per test);
// there is no ambient instance.
type Engine struct {
	measurer    Measurer
	positiveTTL time.Duration
	negativeTTL time.Duration
	versionFn   func(root, pkg string) (string, error)
	now         func() time.Time
	metrics     Recorder

	mu         sync.Mutex
	generation uint64
	cache      map[string]cacheEntry
	failed     map[string]time.Time
	pending    map[string]*pendingBuild
	warned     map[string]bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithTTLs overrides the positive and negative cache TTLs.
func WithTTLs(positive, negative time.Duration) Option {
	return func(e *Engine) {
		e.positiveTTL = positive
		e.negativeTTL = negative
	}
}

// WithClock overrides the time source for TTL checks.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithVersionLookup overrides how installed package versions are read.
func WithVersionLookup(fn func(root, pkg string) (string, error)) Option {
	return func(e *Engine) { e.versionFn = fn }
}

// WithMetrics wires a metrics recorder.
func WithMetrics(r Recorder) Option {
	return func(e *Engine) { e.metrics = r }
}

// NewEngine creates a cache engine over a measurer.
func NewEngine(measurer Measurer, opts ...Option) *Engine {
	e := &Engine{
		measurer:    measurer,
		positiveTTL: DefaultPositiveTTL,
		negativeTTL: DefaultNegativeTTL,
		versionFn:   resolver.PackageVersion,
		now:         time.Now,
		cache:       make(map[string]cacheEntry),
		failed:      make(map[string]time.Time),
		pending:     make(map[string]*pendingBuild),
		warned:      make(map[string]bool),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CacheID returns the stable cache key for an import signature, or ""
// when the signature cannot be measured (local import with no resolved
// path).
func (e *Engine) CacheID(info importsig.ImportInfo) string {
	req, err := importsig.NewRequest(info)
	if err != nil {
		return ""
	}
	return req.ID
}

// GetSize returns the measured size for an import signature, from cache
// when fresh, otherwise by bundling. nil means failed, unavailable or
// unmeasurable; State explains which. It never panics and never returns
// an error: all per-request failures are converted to nil.
func (e *Engine) GetSize(ctx context.Context, info importsig.ImportInfo, root string) *MeasurementResult {
	req, err := importsig.NewRequest(info)
	if err != nil {
		return nil
	}
	return e.getSize(ctx, req, root)
}

func (e *Engine) getSize(ctx context.Context, req *importsig.BundleRequest, root string) *MeasurementResult {
	key := root + ":" + req.ID

	e.mu.Lock()
	gen := e.generation

	if entry, ok := e.cache[key]; ok {
		if e.now().Sub(entry.at) < e.positiveTTL {
			result := entry.result
			e.mu.Unlock()
			e.event("hit")
			return &result
		}
		delete(e.cache, key)
		e.entriesLocked()
	}

	if at, ok := e.failed[key]; ok {
		if e.now().Sub(at) < e.negativeTTL {
			e.mu.Unlock()
			e.event("negative_hit")
			return nil
		}
		delete(e.failed, key)
	}

	if p, ok := e.pending[key]; ok && p.generation == gen {
		e.mu.Unlock()
		e.event("dedup_join")
		select {
		case <-ctx.Done():
			// Abandons the wait only; the build keeps running.
			return nil
		case <-p.done:
			return p.result
		}
	}

	if !e.measurer.Available(root) {
		warned := e.warned[root]
		e.warned[root] = true
		e.mu.Unlock()
		if !warned {
			log.Warn().
				Str("root", root).
				Msg("No bundling capability available; sizes cannot be measured until one is wired and the cache is cleared")
		}
		return nil
	}

	p := &pendingBuild{generation: gen, done: make(chan struct{})}
	e.pending[key] = p
	e.mu.Unlock()
	e.event("build_start")

	return e.runBuild(ctx, req, root, key, gen, p)
}

// runBuild executes the measurement and commits the outcome under the
// generation guard. The measurement itself is detached from caller
// cancellation: a generation bump or an abandoned caller never cancels
// in-flight work, it only gates the commit.
func (e *Engine) runBuild(ctx context.Context, req *importsig.BundleRequest, root, key string, gen uint64, p *pendingBuild) *MeasurementResult {
	start := time.Now()
	sizes, err := e.measurer.Measure(context.WithoutCancel(ctx), req.EntryContent, root)
	duration := time.Since(start)

	var result *MeasurementResult
	if err == nil && sizes != nil {
		result = &MeasurementResult{
			Name:          req.DisplayName,
			MinifiedBytes: sizes.MinifiedBytes,
			GzipBytes:     sizes.GzipBytes,
			Version:       e.resolveVersion(root, req),
		}
	} else if err != nil && !errors.Is(err, measure.ErrUnavailable) {
		log.Debug().Err(err).Str("name", req.DisplayName).Str("root", root).Msg("Measurement failed")
	}

	outcome := "failure"
	e.mu.Lock()
	switch {
	case e.generation != gen:
		// Computed against possibly stale assumptions; drop silently.
		outcome = "discarded"
	case result != nil:
		e.cache[key] = cacheEntry{result: *result, at: e.now()}
		e.entriesLocked()
		outcome = "success"
	case errors.Is(err, measure.ErrUnavailable):
		outcome = "unavailable"
	default:
		e.failed[key] = e.now()
	}
	if e.pending[key] == p {
		delete(e.pending, key)
	}
	e.mu.Unlock()

	p.result = result
	close(p.done)

	if e.metrics != nil {
		e.metrics.MeasurementDone(outcome, duration)
	}
	return result
}

func (e *Engine) resolveVersion(root string, req *importsig.BundleRequest) string {
	if req.VersionPackageName == "" {
		return "local"
	}
	version, err := e.versionFn(root, req.VersionPackageName)
	if err != nil {
		log.Debug().Err(err).Str("package", req.VersionPackageName).Msg("Version lookup failed")
		return "unknown"
	}
	return version
}

// CachedSize returns a fresh positive entry without triggering work.
func (e *Engine) CachedSize(info importsig.ImportInfo, root string) *MeasurementResult {
	req, err := importsig.NewRequest(info)
	if err != nil {
		return nil
	}
	key := root + ":" + req.ID

	e.mu.Lock()
	defer e.mu.Unlock()
	if entry, ok := e.cache[key]; ok && e.now().Sub(entry.at) < e.positiveTTL {
		result := entry.result
		return &result
	}
	return nil
}

// State is a non-mutating introspection query with the same precedence
// as GetSize: cached, failed, pending, unavailable, missing.
func (e *Engine) State(info importsig.ImportInfo, root string) State {
	req, err := importsig.NewRequest(info)
	if err != nil {
		return StateMissing
	}
	key := root + ":" + req.ID

	e.mu.Lock()
	defer e.mu.Unlock()
	if entry, ok := e.cache[key]; ok && e.now().Sub(entry.at) < e.positiveTTL {
		return StateCached
	}
	if at, ok := e.failed[key]; ok && e.now().Sub(at) < e.negativeTTL {
		return StateFailed
	}
	if p, ok := e.pending[key]; ok && p.generation == e.generation {
		return StatePending
	}
	if !e.measurer.Available(root) {
		return StateUnavailable
	}
	return StateMissing
}

// Available reports whether bundling works for the root.
func (e *Engine) Available(root string) bool {
	return e.measurer.Available(root)
}

// ClearCache atomically bumps the generation and drops all cache state.
// In-flight builds run to completion but their results are discarded at
// commit time. The measurer's capability state is reset so a newly
// installed toolchain is rediscovered.
func (e *Engine) ClearCache() {
	e.mu.Lock()
	e.generation++
	gen := e.generation
	e.cache = make(map[string]cacheEntry)
	e.failed = make(map[string]time.Time)
	e.pending = make(map[string]*pendingBuild)
	e.warned = make(map[string]bool)
	e.mu.Unlock()

	e.measurer.Reset()
	if e.metrics != nil {
		e.metrics.CacheEntries(0)
	}
	log.Info().Uint64("generation", gen).Msg("Bundle size cache cleared")
}

func (e *Engine) event(name string) {
	if e.metrics != nil {
		e.metrics.CacheEvent(name)
	}
}

// entriesLocked reports the positive cache size; callers hold e.mu.
func (e *Engine) entriesLocked() {
	if e.metrics != nil {
		e.metrics.CacheEntries(len(e.cache))
	}
}
