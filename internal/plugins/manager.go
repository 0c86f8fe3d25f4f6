package plugins

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/tcpapi/internal/config"
	"github.com/danmuck/tcpapi/internal/store"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

var ErrNoStore = errors.New("plugins: no data store configured")

// Manager owns the plugin document and the shared data store. It is safe for
// concurrent use by every connection.
type Manager struct {
	path     string
	db       *store.Store
	registry *Registry

	reloadMu sync.Mutex
	mu       sync.RWMutex
	doc      config.PluginDocument
	loadedAt time.Time
	loads    uint64
	lastErr  error

	loaded atomic.Bool
	dirty  atomic.Bool

	watchMu sync.Mutex
	watcher *fsnotify.Watcher
	stop    chan struct{}
}

// NewManager builds a manager for the document at path. An empty path runs
// with defaults: every plugin enabled and any app key accepted.
func NewManager(path string, db *store.Store) *Manager {
	return &Manager{
		path:     strings.TrimSpace(path),
		db:       db,
		registry: NewRegistry(),
		doc:      defaultDocument(),
	}
}

func defaultDocument() config.PluginDocument {
	return config.PluginDocument{
		API: config.APIConfig{MaxRecent: config.DefaultRecentLimit},
	}
}

func (m *Manager) Register(p Plugin) {
	m.registry.Register(p)
}

func (m *Manager) All() map[string]Plugin {
	return m.registry.All()
}

func (m *Manager) Get(name string) (Plugin, bool) {
	return m.registry.Get(name)
}

// DB returns the store opened at startup. It may be nil.
func (m *Manager) DB() *store.Store {
	return m.db
}

// EnsureConfigsLoaded refreshes the plugin document. With force it always
// re-reads; otherwise only when the file changed or was never loaded. A
// failed reload keeps the last good document.
func (m *Manager) EnsureConfigsLoaded(ctx context.Context, force bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.path == "" {
		return nil
	}
	if !force && m.loaded.Load() && !m.dirty.Load() {
		return nil
	}
	return m.reload()
}

func (m *Manager) reload() error {
	m.reloadMu.Lock()
	defer m.reloadMu.Unlock()

	m.dirty.Store(false)
	doc, err := config.LoadPluginDocument(m.path)
	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		// Retry on the next unforced refresh.
		m.dirty.Store(true)
		m.lastErr = err
		return fmt.Errorf("plugins: reload %s: %w", m.path, err)
	}
	m.doc = doc
	m.lastErr = nil
	m.loadedAt = time.Now()
	m.loads++
	m.loaded.Store(true)
	return nil
}

// Snapshot returns the current plugin document.
func (m *Manager) Snapshot() config.PluginDocument {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc := m.doc
	doc.Apps = slices.Clone(m.doc.Apps)
	doc.Plugins.Enabled = slices.Clone(m.doc.Plugins.Enabled)
	return doc
}

// PluginEnabled reports whether a plugin may serve requests. Unregistered
// plugins are never enabled.
func (m *Manager) PluginEnabled(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	if _, ok := m.registry.Get(name); !ok {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.doc.Plugins.Enabled == nil {
		return true
	}
	return slices.Contains(m.doc.Plugins.Enabled, name)
}

// AppExists reports whether key names a configured app. With no apps
// configured every non-empty key is accepted.
func (m *Manager) AppExists(key string) bool {
	key = strings.TrimSpace(key)
	if key == "" {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.doc.Apps) == 0 {
		return true
	}
	for _, app := range m.doc.Apps {
		if app.Key == key {
			return true
		}
	}
	return false
}

func (m *Manager) MaxRecent() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.doc.API.MaxRecent
}

// Watch marks the document dirty whenever its file changes, so unforced
// refreshes pick it up. The parent directory is watched to follow editors
// that replace the file.
func (m *Manager) Watch() error {
	if m.path == "" {
		return nil
	}
	m.watchMu.Lock()
	defer m.watchMu.Unlock()
	if m.watcher != nil {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("plugins: watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(m.path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("plugins: watch %s: %w", m.path, err)
	}
	m.watcher = watcher
	m.stop = make(chan struct{})
	go m.watchLoop(watcher, m.stop)
	log.Debug().Str("path", m.path).Msg("plugins.Manager.Watch started")
	return nil
}

func (m *Manager) watchLoop(watcher *fsnotify.Watcher, stop <-chan struct{}) {
	target := filepath.Clean(m.path)
	for {
		select {
		case <-stop:
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
				m.dirty.Store(true)
				log.Debug().Str("path", m.path).Str("op", event.Op.String()).Msg("plugins.Manager document changed")
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("plugins.Manager watcher error")
		}
	}
}

// Close stops the watcher. The store is owned by the caller.
func (m *Manager) Close() error {
	m.watchMu.Lock()
	defer m.watchMu.Unlock()
	if m.watcher == nil {
		return nil
	}
	close(m.stop)
	err := m.watcher.Close()
	m.watcher = nil
	return err
}

// Status is the admin view of the plugin subsystem.
type Status struct {
	Path      string    `json:"path"`
	Loaded    bool      `json:"loaded"`
	LoadedAt  time.Time `json:"loaded_at"`
	Loads     uint64    `json:"loads"`
	LastError string    `json:"last_error,omitempty"`
	Plugins   []string  `json:"plugins"`
	Enabled   []string  `json:"enabled"`
	Apps      int       `json:"apps"`
	Store     bool      `json:"store"`
}

func (m *Manager) Status() any {
	names := m.registry.Names()
	enabled := make([]string, 0, len(names))
	for _, name := range names {
		if m.PluginEnabled(name) {
			enabled = append(enabled, name)
		}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	st := Status{
		Path:     m.path,
		Loaded:   m.loaded.Load(),
		LoadedAt: m.loadedAt,
		Loads:    m.loads,
		Plugins:  names,
		Enabled:  enabled,
		Apps:     len(m.doc.Apps),
		Store:    m.db != nil,
	}
	if m.lastErr != nil {
		st.LastError = m.lastErr.Error()
	}
	return st
}
