package plugin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	stdplugin "plugin"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Loader abstracts opening a compiled plugin shared object and
// retrieving its exported Plugin value, so Manager is testable
// without compiling real `buildmode=plugin` .so files. The real
// implementation opens the file via the standard library's `plugin`
// package and looks up a symbol named "Plugin".
type Loader func(path string) (Plugin, error)

// openSharedObject is the production Loader: os/arch-specific .so
// files built with `go build -buildmode=plugin`, exporting a package
// level `var Plugin plugin.Plugin` symbol by convention.
func openSharedObject(path string) (Plugin, error) {
	p, err := stdplugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening plugin %s: %w", path, err)
	}
	sym, err := p.Lookup("Plugin")
	if err != nil {
		return nil, fmt.Errorf("plugin %s missing exported Plugin symbol: %w", path, err)
	}
	value, ok := sym.(*Plugin)
	if !ok {
		return nil, fmt.Errorf("plugin %s's Plugin symbol has unexpected type", path)
	}
	return *value, nil
}

// loaded pairs a live Plugin with the path it was loaded from, for
// diagnostics and Reload bookkeeping.
type loaded struct {
	path   string
	plugin Plugin
}

// Manager discovers, loads, version-checks, and runs the lifecycle of
// every plugin in a directory, then exposes their aggregated
// commands, hooks, completions, and aliases.
//
// Grounded on cli/plugins/manager.go's Manager: same directory-scan +
// fsnotify-watch + debounced-Reload shape, generalized from spawning
// executables to opening in-process Go plugin values.
type Manager struct {
	mu      sync.RWMutex
	dir     string
	logger  *zap.Logger
	load    Loader
	krustyVersion string

	plugins map[string]loaded

	watcher   *fsnotify.Watcher
	closeOnce sync.Once
}

// NewManager builds a Manager rooted at dir. krustyVersion is the host
// shell's own version, checked against each plugin's KrustyVersion
// range constraint.
func NewManager(dir, krustyVersion string, logger *zap.Logger) *Manager {
	return &Manager{
		dir:           dir,
		logger:        logger,
		load:          openSharedObject,
		krustyVersion: krustyVersion,
		plugins:       make(map[string]loaded),
	}
}

// SetLoader overrides the Loader, for tests.
func (m *Manager) SetLoader(l Loader) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.load = l
}

// Close tears down every loaded plugin (Deactivate then Destroy, for
// those that implement them) and stops the file watcher.
func (m *Manager) Close(ctx context.Context) {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		watcher := m.watcher
		plugins := m.plugins
		m.plugins = make(map[string]loaded)
		m.mu.Unlock()

		for _, lp := range plugins {
			m.teardown(ctx, lp.plugin)
		}
		if watcher != nil {
			watcher.Close()
		}
	})
}

// Reload clears and re-discovers every plugin in dir, skipping (and
// logging) any whose krustyVersion constraint the host fails, or
// whose load/Initialize/Activate step errors.
func (m *Manager) Reload(ctx context.Context) {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		m.logf(zap.ErrorLevel, "cannot create plugin directory", zap.String("path", m.dir), zap.Error(err))
		return
	}
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		m.logf(zap.ErrorLevel, "cannot read plugin directory", zap.Error(err))
		return
	}

	m.mu.Lock()
	old := m.plugins
	m.plugins = make(map[string]loaded)
	m.mu.Unlock()

	for _, lp := range old {
		m.teardown(ctx, lp.plugin)
	}

	names := entriesFileNames(entries)
	sort.Strings(names)

	for _, name := range names {
		path := filepath.Join(m.dir, name)
		p, err := m.load(path)
		if err != nil {
			m.logf(zap.WarnLevel, "failed to load plugin", zap.String("path", path), zap.Error(err))
			continue
		}
		if err := m.register(ctx, path, p); err != nil {
			m.logf(zap.WarnLevel, "failed to register plugin", zap.String("path", path), zap.Error(err))
		}
	}
}

func entriesFileNames(entries []os.DirEntry) []string {
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".so") {
			continue
		}
		names = append(names, e.Name())
	}
	return names
}

func (m *Manager) register(ctx context.Context, path string, p Plugin) error {
	meta := p.Metadata()
	if meta.Name == "" {
		return fmt.Errorf("plugin at %s has no name", path)
	}
	ok, err := satisfiesRange(m.krustyVersion, meta.KrustyVersion)
	if err != nil {
		return fmt.Errorf("plugin %s: %w", meta.Name, err)
	}
	if !ok {
		return fmt.Errorf("plugin %s requires krustyVersion %s, host is %s", meta.Name, meta.KrustyVersion, m.krustyVersion)
	}

	host := Host{Getenv: os.Getenv, WorkingDir: workingDir, KrustyVersion: m.krustyVersion}
	if init, ok := p.(Initializer); ok {
		if err := init.Initialize(ctx, host); err != nil {
			return fmt.Errorf("plugin %s initialize: %w", meta.Name, err)
		}
	}
	if act, ok := p.(Activator); ok {
		if err := act.Activate(ctx); err != nil {
			return fmt.Errorf("plugin %s activate: %w", meta.Name, err)
		}
	}

	m.mu.Lock()
	m.plugins[meta.Name] = loaded{path: path, plugin: p}
	m.mu.Unlock()
	return nil
}

func (m *Manager) teardown(ctx context.Context, p Plugin) {
	if d, ok := p.(Deactivator); ok {
		if err := d.Deactivate(ctx); err != nil {
			m.logf(zap.WarnLevel, "plugin deactivate error", zap.String("name", p.Metadata().Name), zap.Error(err))
		}
	}
	if d, ok := p.(Destroyer); ok {
		if err := d.Destroy(ctx); err != nil {
			m.logf(zap.WarnLevel, "plugin destroy error", zap.String("name", p.Metadata().Name), zap.Error(err))
		}
	}
}

// Plugins returns the currently loaded plugins, keyed by name.
func (m *Manager) Plugins() map[string]Plugin {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]Plugin, len(m.plugins))
	for name, lp := range m.plugins {
		out[name] = lp.plugin
	}
	return out
}

// Commands aggregates every loaded CommandProvider plugin's commands,
// keyed "plugin_name:command_name" per spec.md §6's plugin contract.
func (m *Manager) Commands() map[string]Command {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]Command)
	for name, lp := range m.plugins {
		provider, ok := lp.plugin.(CommandProvider)
		if !ok {
			continue
		}
		for cmdName, cmd := range provider.Commands() {
			out[name+":"+cmdName] = cmd
		}
	}
	return out
}

// Aliases aggregates every loaded AliasProvider plugin's aliases,
// later-loaded (lexicographically later directory entry) plugins
// winning on name conflicts, matching spec.md §6's "later plugins
// win" rule with discovery order as the tiebreak.
func (m *Manager) Aliases() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.plugins))
	for name := range m.plugins {
		names = append(names, name)
	}
	// Merge in load order (plugin file path), so the later-loaded
	// plugin's alias is the one left standing.
	sort.Slice(names, func(i, j int) bool { return m.plugins[names[i]].path < m.plugins[names[j]].path })

	out := make(map[string]string)
	for _, name := range names {
		provider, ok := m.plugins[name].plugin.(AliasProvider)
		if !ok {
			continue
		}
		for alias, expansion := range provider.Aliases() {
			out[alias] = expansion
		}
	}
	return out
}

// Hooks aggregates every loaded HookProvider plugin's handlers, keyed
// by event name: handlers from different plugins for the same event are
// collected into that event's slice, in plugin-name order.
func (m *Manager) Hooks() map[string][]HookHandler {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.plugins))
	for name := range m.plugins {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(map[string][]HookHandler)
	for _, name := range names {
		provider, ok := m.plugins[name].plugin.(HookProvider)
		if !ok {
			continue
		}
		for event, handler := range provider.Hooks() {
			out[event] = append(out[event], handler)
		}
	}
	return out
}

// Completions aggregates every loaded CompletionProvider plugin's
// completion entries.
func (m *Manager) Completions() []CompletionEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []CompletionEntry
	for _, lp := range m.plugins {
		provider, ok := lp.plugin.(CompletionProvider)
		if !ok {
			continue
		}
		out = append(out, provider.Completions()...)
	}
	return out
}

// Watch starts watching dir for plugin file changes and debounce-
// reloads, mirroring cli/plugins/manager.go's watchForChanges.
func (m *Manager) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating plugin watcher: %w", err)
	}
	if err := watcher.Add(m.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watching plugin directory: %w", err)
	}
	m.mu.Lock()
	m.watcher = watcher
	m.mu.Unlock()

	go m.watchLoop(ctx, watcher)
	return nil
}

func (m *Manager) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	var reloadTimer *time.Timer
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			reloadTimer = time.AfterFunc(500*time.Millisecond, func() {
				m.logf(zap.InfoLevel, "plugin directory changed, reloading")
				m.Reload(ctx)
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			m.logf(zap.ErrorLevel, "plugin watcher error", zap.Error(err))
		}
	}
}

func (m *Manager) logf(level zapcore.Level, msg string, fields ...zap.Field) {
	if m.logger == nil {
		return
	}
	switch level {
	case zap.ErrorLevel:
		m.logger.Error(msg, fields...)
	case zap.WarnLevel:
		m.logger.Warn(msg, fields...)
	case zap.InfoLevel:
		m.logger.Info(msg, fields...)
	default:
		m.logger.Debug(msg, fields...)
	}
}

func workingDir() string {
	wd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return wd
}
