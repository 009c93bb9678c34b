// Package config implements krusty's configuration layer (spec §6):
// a typed, nested settings tree loaded with three-tier precedence
// (defaults → file → environment), with optional hot-reload on file
// change.
//
// Grounded on diillson-chatcli/config/manager.go's ConfigManager — the
// same defaults→.env→environment-variable precedence order and the
// same godotenv-based .env tier — generalized from its flat
// map[string]interface{} bag into the nested prompt/history/
// completion/execution/expansion/aliases/environment/plugins/hooks/
// modules/theme tree spec.md §6 names. File hot-reload is grounded on
// cli/plugins/manager.go's fsnotify + debounce-timer watch loop.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Prompt is the prompt.* config tier.
type Prompt struct {
	Format           string `yaml:"format"`
	ShowGit          bool   `yaml:"showGit"`
	ShowTime         bool   `yaml:"showTime"`
	ShowUser         bool   `yaml:"showUser"`
	ShowHost         bool   `yaml:"showHost"`
	ShowPath         bool   `yaml:"showPath"`
	ShowExitCode     bool   `yaml:"showExitCode"`
	Transient        bool   `yaml:"transient"`
	SimpleWhenNotTTY bool   `yaml:"simpleWhenNotTTY"`
	StartupTimestamp bool   `yaml:"startupTimestamp"`
}

// History is the history.* config tier.
type History struct {
	MaxEntries        int    `yaml:"maxEntries"`
	File              string `yaml:"file"`
	IgnoreDuplicates  bool   `yaml:"ignoreDuplicates"`
	IgnoreSpace       bool   `yaml:"ignoreSpace"`
	SearchMode        string `yaml:"searchMode"` // fuzzy|exact|startswith|regex
	SearchLimit       int    `yaml:"searchLimit"`
}

// CompletionCache is completion.cache.*.
type CompletionCache struct {
	Enabled    bool          `yaml:"enabled"`
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"maxEntries"`
}

// Completion is the completion.* config tier.
type Completion struct {
	Enabled               bool            `yaml:"enabled"`
	CaseSensitive          bool            `yaml:"caseSensitive"`
	MaxSuggestions         int             `yaml:"maxSuggestions"`
	BinPathMaxSuggestions  int             `yaml:"binPathMaxSuggestions"`
	Cache                  CompletionCache `yaml:"cache"`
}

// Execution is the execution.* config tier.
type Execution struct {
	DefaultTimeoutMs int    `yaml:"defaultTimeoutMs"`
	KillSignal       string `yaml:"killSignal"`
}

// ExpansionCacheLimits is expansion.cacheLimits.*.
type ExpansionCacheLimits struct {
	Arg        int `yaml:"arg"`
	Exec       int `yaml:"exec"`
	Arithmetic int `yaml:"arithmetic"`
}

// Expansion is the expansion.* config tier.
type Expansion struct {
	CacheLimits ExpansionCacheLimits `yaml:"cacheLimits"`
}

// PluginSpec is one entry of the plugins map: where to load a plugin
// from and whether it's enabled.
type PluginSpec struct {
	Path    string `yaml:"path"`
	Enabled bool   `yaml:"enabled"`
}

// HookSpec mirrors spec.md's HookConfig data model for the hooks map.
// The map key is the hook's Name; Event names the lifecycle point it
// binds to (e.g. "command:before", "directory:change"); Command is the
// template text run for trigger kinds command/script (entries with a
// plugin or function trigger, or an empty Command, are not registered
// by the shell).
type HookSpec struct {
	Event     string `yaml:"event"`
	Command   string `yaml:"command"`
	Trigger   string `yaml:"trigger"` // command|script|function|plugin
	Priority  int    `yaml:"priority"`
	Enabled   bool   `yaml:"enabled"`
	Async     bool   `yaml:"async"`
	TimeoutMs int    `yaml:"timeoutMs"`
}

// Config is krusty's full settings tree.
type Config struct {
	Verbose      bool   `yaml:"verbose"`
	StreamOutput bool   `yaml:"streamOutput"`
	Prompt       Prompt `yaml:"prompt"`
	History      History `yaml:"history"`
	Completion   Completion `yaml:"completion"`
	Execution    Execution `yaml:"execution"`
	Expansion    Expansion `yaml:"expansion"`

	Aliases     map[string]string    `yaml:"aliases"`
	Environment map[string]string    `yaml:"environment"`
	Plugins     map[string]PluginSpec `yaml:"plugins"`
	Hooks       map[string]HookSpec  `yaml:"hooks"`
	Modules     map[string]bool      `yaml:"modules"`
	Theme       map[string]string    `yaml:"theme"`
}

// Defaults returns the built-in default tree, matching the defaults
// spec.md §6 parenthesizes next to each option.
func Defaults() Config {
	return Config{
		Verbose:      false,
		StreamOutput: true,
		Prompt: Prompt{
			Format:           "{user}@{host} {path} {git} {symbol} ",
			SimpleWhenNotTTY: true,
		},
		History: History{
			MaxEntries:       1000,
			File:             "~/.krusty_history",
			IgnoreDuplicates: true,
			IgnoreSpace:      true,
			SearchMode:       "fuzzy",
		},
		Completion: Completion{
			Enabled:               true,
			CaseSensitive:         false,
			MaxSuggestions:        10,
			BinPathMaxSuggestions: 20,
		},
		Execution: Execution{
			KillSignal: "SIGTERM",
		},
		Aliases:     map[string]string{},
		Environment: map[string]string{},
		Plugins:     map[string]PluginSpec{},
		Hooks:       map[string]HookSpec{},
		Modules:     map[string]bool{},
		Theme:       map[string]string{},
	}
}

// Manager loads Config from defaults, then a YAML file, then .env,
// then OS environment variables, in that priority order (later tiers
// override earlier ones), matching ConfigManager's documented
// "Flags > Env > .env > Defaults" precedence; Manager applies no flag
// tier itself, that is left to the caller.
type Manager struct {
	mu       sync.RWMutex
	cfg      Config
	path     string
	logger   *zap.Logger
	watcher  *fsnotify.Watcher
	onChange func(Config)
}

// New builds a Manager for the config file at path (empty path means
// use ConfigFilePath's resolution).
func New(path string, logger *zap.Logger) *Manager {
	if path == "" {
		path = ConfigFilePath()
	}
	return &Manager{cfg: Defaults(), path: path, logger: logger}
}

// ConfigFilePath resolves the config file location: $KRUSTY_CONFIG if
// set, else "~/.krusty.yaml".
func ConfigFilePath() string {
	if p := os.Getenv("KRUSTY_CONFIG"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".krusty.yaml"
	}
	return filepath.Join(home, ".krusty.yaml")
}

// Load reads defaults, overlays the YAML file (if present), then .env,
// then OS environment variables.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cfg := Defaults()
	if err := overlayFile(&cfg, m.path); err != nil {
		if m.logger != nil {
			m.logger.Debug("config file not found or unreadable", zap.String("path", m.path), zap.Error(err))
		}
	}
	overlayDotEnv(&cfg)
	overlayEnvVars(&cfg)
	m.cfg = cfg
	return nil
}

// Reload re-runs Load and, if a change callback is registered,
// notifies it with the refreshed Config.
func (m *Manager) Reload() {
	if err := m.Load(); err != nil && m.logger != nil {
		m.logger.Error("config reload failed", zap.Error(err))
	}
	m.mu.RLock()
	cfg := m.cfg
	cb := m.onChange
	m.mu.RUnlock()
	if cb != nil {
		cb(cfg)
	}
}

// Get returns a copy of the currently loaded Config.
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// OnChange registers a callback invoked after every successful Reload
// triggered by the file watcher.
func (m *Manager) OnChange(fn func(Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = fn
}

// Watch starts watching the config file for writes and debounce-reloads
// it, mirroring cli/plugins/manager.go's watchForChanges loop. Callers
// must eventually call Close.
func (m *Manager) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	dir := filepath.Dir(m.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return err
	}
	m.mu.Lock()
	m.watcher = watcher
	m.mu.Unlock()

	go m.watchLoop(watcher)
	return nil
}

func (m *Manager) watchLoop(watcher *fsnotify.Watcher) {
	var reloadTimer *time.Timer
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(m.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			reloadTimer = time.AfterFunc(300*time.Millisecond, m.Reload)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			if m.logger != nil {
				m.logger.Error("config watcher error", zap.Error(err))
			}
		}
	}
}

// Close stops the file watcher, if one was started.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.watcher != nil {
		m.watcher.Close()
		m.watcher = nil
	}
}

func overlayFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// overlayDotEnv loads .env (without clobbering existing OS env vars,
// matching godotenv.Read's non-destructive semantics) and applies any
// KRUSTY_-prefixed keys onto cfg.
func overlayDotEnv(cfg *Config) {
	envMap, err := godotenv.Read()
	if err != nil {
		return
	}
	applyEnvMap(cfg, envMap)
}

func overlayEnvVars(cfg *Config) {
	envMap := make(map[string]string)
	for _, e := range os.Environ() {
		pair := strings.SplitN(e, "=", 2)
		if len(pair) == 2 {
			envMap[pair[0]] = pair[1]
		}
	}
	applyEnvMap(cfg, envMap)
}

// applyEnvMap maps KRUSTY_ prefixed, underscore-separated keys onto
// cfg's scalar fields, e.g. KRUSTY_VERBOSE, KRUSTY_HISTORY_MAXENTRIES,
// KRUSTY_PROMPT_SHOWGIT.
func applyEnvMap(cfg *Config, envMap map[string]string) {
	for key, val := range envMap {
		if !strings.HasPrefix(key, "KRUSTY_") {
			continue
		}
		field := strings.TrimPrefix(key, "KRUSTY_")
		applyScalar(cfg, field, val)
	}
}

func applyScalar(cfg *Config, field, val string) {
	switch field {
	case "VERBOSE":
		cfg.Verbose = parseBool(val, cfg.Verbose)
	case "STREAMOUTPUT":
		cfg.StreamOutput = parseBool(val, cfg.StreamOutput)
	case "PROMPT_FORMAT":
		cfg.Prompt.Format = val
	case "PROMPT_SHOWGIT":
		cfg.Prompt.ShowGit = parseBool(val, cfg.Prompt.ShowGit)
	case "PROMPT_SHOWTIME":
		cfg.Prompt.ShowTime = parseBool(val, cfg.Prompt.ShowTime)
	case "PROMPT_SHOWUSER":
		cfg.Prompt.ShowUser = parseBool(val, cfg.Prompt.ShowUser)
	case "PROMPT_SHOWHOST":
		cfg.Prompt.ShowHost = parseBool(val, cfg.Prompt.ShowHost)
	case "PROMPT_SHOWPATH":
		cfg.Prompt.ShowPath = parseBool(val, cfg.Prompt.ShowPath)
	case "PROMPT_SHOWEXITCODE":
		cfg.Prompt.ShowExitCode = parseBool(val, cfg.Prompt.ShowExitCode)
	case "PROMPT_TRANSIENT":
		cfg.Prompt.Transient = parseBool(val, cfg.Prompt.Transient)
	case "PROMPT_SIMPLEWHENNOTTTY":
		cfg.Prompt.SimpleWhenNotTTY = parseBool(val, cfg.Prompt.SimpleWhenNotTTY)
	case "HISTORY_MAXENTRIES":
		cfg.History.MaxEntries = parseInt(val, cfg.History.MaxEntries)
	case "HISTORY_FILE":
		cfg.History.File = val
	case "HISTORY_IGNOREDUPLICATES":
		cfg.History.IgnoreDuplicates = parseBool(val, cfg.History.IgnoreDuplicates)
	case "HISTORY_IGNORESPACE":
		cfg.History.IgnoreSpace = parseBool(val, cfg.History.IgnoreSpace)
	case "HISTORY_SEARCHMODE":
		cfg.History.SearchMode = val
	case "HISTORY_SEARCHLIMIT":
		cfg.History.SearchLimit = parseInt(val, cfg.History.SearchLimit)
	case "COMPLETION_ENABLED":
		cfg.Completion.Enabled = parseBool(val, cfg.Completion.Enabled)
	case "COMPLETION_CASESENSITIVE":
		cfg.Completion.CaseSensitive = parseBool(val, cfg.Completion.CaseSensitive)
	case "COMPLETION_MAXSUGGESTIONS":
		cfg.Completion.MaxSuggestions = parseInt(val, cfg.Completion.MaxSuggestions)
	case "COMPLETION_BINPATHMAXSUGGESTIONS":
		cfg.Completion.BinPathMaxSuggestions = parseInt(val, cfg.Completion.BinPathMaxSuggestions)
	case "EXECUTION_DEFAULTTIMEOUTMS":
		cfg.Execution.DefaultTimeoutMs = parseInt(val, cfg.Execution.DefaultTimeoutMs)
	case "EXECUTION_KILLSIGNAL":
		cfg.Execution.KillSignal = val
	}
}

func parseBool(s string, fallback bool) bool {
	if v, err := strconv.ParseBool(s); err == nil {
		return v
	}
	return fallback
}

func parseInt(s string, fallback int) int {
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return fallback
}
