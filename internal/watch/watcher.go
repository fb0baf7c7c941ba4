// Package watch invalidates the size cache when a workspace's installed
// dependencies change. It watches each workspace root's package
// manifest and lockfiles; a burst of changes (an npm/pnpm install)
// debounces into a single bulk cache clear.
package watch

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// manifestFiles are the files whose change means "node_modules content
// may have moved under us".
var manifestFiles = map[string]struct{}{
	"package.json":        {},
	"package-lock.json":   {},
	"npm-shrinkwrap.json": {},
	"yarn.lock":           {},
	"pnpm-lock.yaml":      {},
	"bun.lockb":           {},
}

// Manager watches workspace roots as they are first measured and fires
// onChange once per debounced change burst.
type Manager struct {
	debounce time.Duration
	onChange func()

	mu      sync.Mutex
	fs      *fsnotify.Watcher
	roots   map[string]struct{}
	timer   *time.Timer
	closed  bool
	started bool
}

// NewManager creates a watcher manager. onChange runs on the watcher
// goroutine; keep it fast (a cache clear is).
func NewManager(debounce time.Duration, onChange func()) (*Manager, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Manager{
		debounce: debounce,
		onChange: onChange,
		fs:       fs,
		roots:    make(map[string]struct{}),
	}, nil
}

// Add starts watching a workspace root. Adding the same root twice is a
// no-op; a root that cannot be watched is logged and skipped rather
// than failing the measurement that discovered it.
func (m *Manager) Add(root string) {
	root = filepath.Clean(root)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	if _, ok := m.roots[root]; ok {
		return
	}

	if err := m.fs.Add(root); err != nil {
		log.Warn().Err(err).Str("root", root).Msg("Cannot watch workspace root")
		return
	}
	m.roots[root] = struct{}{}

	if !m.started {
		m.started = true
		go m.loop()
	}
	log.Debug().Str("root", root).Msg("Watching workspace manifests")
}

func (m *Manager) loop() {
	for {
		select {
		case event, ok := <-m.fs.Events:
			if !ok {
				return
			}
			if !isManifestEvent(event) {
				continue
			}
			m.bump(event.Name)
		case err, ok := <-m.fs.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("Watcher error")
		}
	}
}

func isManifestEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	_, ok := manifestFiles[filepath.Base(event.Name)]
	return ok
}

// bump resets the debounce timer; onChange fires once per quiet period.
func (m *Manager) bump(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = time.AfterFunc(m.debounce, func() {
		log.Info().Str("file", path).Msg("Dependency manifest changed, clearing size cache")
		m.onChange()
	})
}

// Close stops watching and drops any pending debounce.
func (m *Manager) Close() error {
	m.mu.Lock()
	m.closed = true
	if m.timer != nil {
		m.timer.Stop()
	}
	m.mu.Unlock()
	return m.fs.Close()
}
