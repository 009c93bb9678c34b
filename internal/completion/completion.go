// Package completion implements krusty's Completion Provider (spec
// §4.I): builtin-aware argument completion dispatched by the current
// line's first token, general command-name/filename completion
// otherwise, and plugin-contributed completions merged in ahead of
// both.
//
// Grounded on diillson-chatcli/cli.go's completer/completeFilePath/
// completeSystemCommands trio — the same dispatch-on-first-token shape,
// the same os.ReadDir-based file and PATH scanning — generalized from
// chatcli's `/command` and `@special` prefixes to krusty's builtin
// argument contracts.
package completion

import (
	"os"
	"strings"
	"sync"

	"github.com/krustyshell/krusty/internal/editor"
	"github.com/sahilm/fuzzy"
)

// PluginCompleter is one plugin's registered `{command_prefix,
// complete_fn}` pair (spec §4.I's "Plugin completions").
type PluginCompleter struct {
	Prefix   string
	Complete func(line string, cursor int) []editor.Suggestion
}

// FS abstracts directory listing so filename/PATH completion is
// testable without touching the real filesystem.
type FS interface {
	ReadDir(dir string) ([]os.DirEntry, error)
}

type osFS struct{}

func (osFS) ReadDir(dir string) ([]os.DirEntry, error) { return os.ReadDir(dir) }

// Config wires the Completer to the shell's shared resources.
type Config struct {
	Builtins              func() []string
	Aliases               func() []string
	EnvVars               func() []string
	Plugins               []PluginCompleter
	BinPathMaxSuggestions int
	FS                    FS
	Getenv                func(string) string
}

// Completer is krusty's Completion Provider, satisfying
// internal/editor.Completer structurally.
type Completer struct {
	mu  sync.RWMutex
	cfg Config
}

// New builds a Completer from cfg, filling in defaults (real
// filesystem, real os.Getenv, a cap of 200 PATH-sourced suggestions).
func New(cfg Config) *Completer {
	if cfg.FS == nil {
		cfg.FS = osFS{}
	}
	if cfg.Getenv == nil {
		cfg.Getenv = os.Getenv
	}
	if cfg.BinPathMaxSuggestions <= 0 {
		cfg.BinPathMaxSuggestions = 200
	}
	if cfg.Builtins == nil {
		cfg.Builtins = func() []string { return nil }
	}
	if cfg.Aliases == nil {
		cfg.Aliases = func() []string { return nil }
	}
	if cfg.EnvVars == nil {
		cfg.EnvVars = func() []string { return nil }
	}
	return &Completer{cfg: cfg}
}

// AddPluginCompleters appends plugin-contributed completion sources,
// replacing the current set. Plugins are discovered asynchronously
// (directory scan, hot-reload watch) after a Completer already exists,
// so this is a post-construction setter rather than a Config field
// callers fill in once.
func (c *Completer) AddPluginCompleters(plugins []PluginCompleter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.Plugins = plugins
}

// Complete returns (buffer, cursor)'s completion candidates: plugin
// completions first, then the builtin-specific handler for the line's
// first token if one applies, else general token completion.
func (c *Completer) Complete(line string, cursor int) []editor.Suggestion {
	var out []editor.Suggestion

	c.mu.RLock()
	plugins := c.cfg.Plugins
	c.mu.RUnlock()

	trimmed := strings.TrimLeft(line, " \t")
	for _, p := range plugins {
		if p.Prefix != "" && strings.HasPrefix(trimmed, p.Prefix) && p.Complete != nil {
			out = append(out, p.Complete(line, cursor)...)
		}
	}

	prefix, fields := currentWord(line, cursor)

	if len(fields) >= 1 {
		if h, ok := builtinHandlers[fields[0]]; ok {
			out = append(out, h(c, prefix, fields)...)
			return dedupByLabel(out)
		}
	}

	if len(fields) == 0 {
		out = append(out, c.completeCommandNames(prefix)...)
	} else {
		out = append(out, c.completeFilenames(prefix)...)
	}
	return dedupByLabel(out)
}

// currentWord returns the partial token ending at cursor and the fully
// typed tokens preceding it (fields[0], when present, is the command
// name; len(fields) is the 0-based position of the partial token, so
// len(fields) == 0 means the command name itself is being completed).
func currentWord(line string, cursor int) (prefix string, fields []string) {
	runes := []rune(line)
	if cursor > len(runes) {
		cursor = len(runes)
	}
	start := cursor
	for start > 0 && !isSpace(runes[start-1]) {
		start--
	}
	prefix = string(runes[start:cursor])
	fields = strings.Fields(string(runes[:start]))
	return prefix, fields
}

func isSpace(r rune) bool { return r == ' ' || r == '\t' }

func dedupByLabel(sugg []editor.Suggestion) []editor.Suggestion {
	seen := make(map[string]bool, len(sugg))
	out := sugg[:0]
	for _, s := range sugg {
		if seen[s.Label] {
			continue
		}
		seen[s.Label] = true
		out = append(out, s)
	}
	return out
}

// fuzzyRank filters and orders candidate labels by query using
// sahilm/fuzzy, returning the matching labels in rank order (every
// candidate, unchanged, when query is empty). It ranks command names,
// file names and most builtin argument lists; filterPrefix is used
// instead for the small fixed flag and index sets (set, read flags,
// jobs, pushd/popd, umask).
func fuzzyRank(query string, candidates []string) []string {
	if query == "" {
		return candidates
	}
	matches := fuzzy.Find(query, candidates)
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.Str
	}
	return out
}
