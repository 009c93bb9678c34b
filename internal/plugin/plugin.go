// Package plugin implements krusty's plugin contract and manager (spec
// §6's "Plugin contract" and the Shell Core's plugin lifecycle):
// discovers, loads, version-checks, and runs the optional lifecycle
// hooks of plugins, then exposes their contributed commands, hooks,
// completions, and aliases to the rest of the shell.
//
// Grounded on diillson-chatcli/cli/plugins/manager.go's discover/
// load/reload shape (directory scan, fsnotify watch, debounced
// Reload) and cli/plugins/plugin.go's Metadata/Plugin split — but
// krusty's plugins are in-process Go values (loaded via the standard
// library's plugin.Open from a `buildmode=plugin` shared object),
// not spawned executables, since spec.md's contract gives plugins
// direct `initialize`/`activate`/`commands`/`hooks` hand-ins rather
// than a subprocess RPC boundary. Per the redesign note on class
// inheritance (spec §9), lifecycle and capability hand-ins are
// modeled as small optional interfaces a Plugin may additionally
// satisfy, not a base class.
package plugin

import "context"

// Metadata identifies a plugin and its compatibility requirement.
type Metadata struct {
	Name string
	// Version is the plugin's own version string.
	Version string
	// KrustyVersion is a semver range constraint (e.g. ">=1.0.0",
	// "=2.1.0") the host shell's version must satisfy.
	KrustyVersion string
}

// Plugin is the mandatory capability every plugin implements.
type Plugin interface {
	Metadata() Metadata
}

// Initializer plugins get a one-time setup call right after loading,
// before Activate.
type Initializer interface {
	Initialize(ctx context.Context, host Host) error
}

// Activator plugins get a call once they're live in the shell (after
// Initialize, if present).
type Activator interface {
	Activate(ctx context.Context) error
}

// Deactivator plugins get a call when the shell is tearing the plugin
// down (e.g. on reload or shutdown), before Destroy.
type Deactivator interface {
	Deactivate(ctx context.Context) error
}

// Destroyer plugins get a final cleanup call after Deactivate.
type Destroyer interface {
	Destroy(ctx context.Context) error
}

// Command is one plugin-contributed builtin, registered in the
// builtins table as "plugin_name:command_name".
type Command struct {
	Description string
	Usage       string
	Execute     func(ctx context.Context, args []string, pctx *Context) (string, error)
}

// CommandProvider plugins contribute builtins.
type CommandProvider interface {
	Commands() map[string]Command
}

// HookHandler is a plugin's hook callback: it takes the event data and
// returns a data map or an error. The Shell Core adapts it to
// internal/hook's HandlerFunc, so this package does not need to import
// internal/hook.
type HookHandler func(ctx context.Context, data map[string]any) (map[string]any, error)

// HookProvider plugins contribute hook handlers keyed by event name.
type HookProvider interface {
	Hooks() map[string]HookHandler
}

// CompletionEntry is one plugin-contributed completion source, merged
// into internal/completion's PluginCompleter shape by the adapter the
// Shell Core builds at wiring time.
type CompletionEntry struct {
	Prefix   string
	Complete func(line string, cursor int) []string
}

// CompletionProvider plugins contribute argument completions.
type CompletionProvider interface {
	Completions() []CompletionEntry
}

// AliasProvider plugins contribute aliases, merged into the shell's
// alias map with later-loaded plugins winning on conflicts.
type AliasProvider interface {
	Aliases() map[string]string
}

// Host is the borrowed-reference capability handle passed to
// Initialize, breaking the plugin↔shell cyclic reference spec §9
// flags: plugins never retain this past the call, and it exposes only
// what a plugin legitimately needs, not the Shell Core itself.
type Host struct {
	Getenv      func(string) string
	WorkingDir  func() string
	KrustyVersion string
}

// Context is the per-invocation handle passed to a plugin command's
// Execute, analogous to Host but scoped to one call.
type Context struct {
	Host
	Args []string
}
