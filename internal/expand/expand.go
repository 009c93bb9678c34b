// Package expand implements krusty's expansion engine (spec §4.B): the
// phase between parsing and redirection/execution that turns a Command's
// raw, quote-tagged Words into the ExpandedArgs the executor runs.
//
// Phase order per word: history reference expansion, tilde expansion,
// parameter/arithmetic/command substitution, IFS word splitting, then
// pathname (glob) expansion. Quoting suppresses splitting and globbing;
// single quotes additionally suppress every other phase.
package expand

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/krustyshell/krusty/internal/ast"
	"github.com/krustyshell/krusty/internal/shellerr"
)

// Environment is the variable-lookup surface the engine needs. The
// shell core's environment manager satisfies this directly.
type Environment interface {
	Get(name string) (string, bool)
}

// MapEnvironment adapts a plain map[string]string to Environment, mainly
// for tests and sandboxed command-substitution subshells.
type MapEnvironment map[string]string

func (m MapEnvironment) Get(name string) (string, bool) {
	v, ok := m[name]
	return v, ok
}

// HistoryExpander resolves a history reference's body (the text after
// the leading '!') to its expansion, per spec §4.G. ref is one of "!"
// (last command), a signed/unsigned integer, or a command prefix.
type HistoryExpander interface {
	ExpandRef(ref string) (string, bool)
}

// CommandRunner executes a command substitution's command text and
// returns its captured stdout; the engine trims trailing newlines from
// it. The shell core
// supplies an implementation that re-enters the executor; tests and
// sandbox mode may supply a restricted one.
type CommandRunner interface {
	RunCaptured(ctx context.Context, command string) (string, error)
}

// SandboxMode controls how command substitution is allowed to run.
type SandboxMode int

const (
	// SandboxFull runs the substituted text through CommandRunner
	// without restriction; the zero value, matching ordinary
	// interactive/script command substitution.
	SandboxFull SandboxMode = iota
	// SandboxRestricted only allows commands whose name appears in
	// Options.Allowlist, and rejects ;, |, &, redirection operators, and
	// nested backticks in the substituted text. Used by restricted
	// evaluation contexts such as prompt module rendering.
	SandboxRestricted
)

// Options configures one Engine.
type Options struct {
	NoUnset   bool // set -u: unbound parameter expansion is an error
	Sandbox   SandboxMode
	Allowlist []string // command names permitted under SandboxRestricted
	IFS       string   // defaults to " \t\n" when empty
}

// Engine expands ast.Word values into shell-ready argument strings.
type Engine struct {
	env     Environment
	hist    HistoryExpander
	runner  CommandRunner
	opts    Options
	caches  *Caches
	allowed map[string]struct{}
}

// New builds an Engine. hist and runner may be nil when history
// expansion or command substitution are not needed (e.g. a sandboxed
// evaluation context); calling the corresponding phase then either
// no-ops (history) or fails with an ExpansionError (command substitution).
func New(env Environment, hist HistoryExpander, runner CommandRunner, opts Options) (*Engine, error) {
	if opts.IFS == "" {
		opts.IFS = " \t\n"
	}
	caches, err := NewCaches(CacheSizes{})
	if err != nil {
		return nil, err
	}
	allowed := make(map[string]struct{}, len(opts.Allowlist))
	for _, name := range opts.Allowlist {
		allowed[name] = struct{}{}
	}
	return &Engine{env: env, hist: hist, runner: runner, opts: opts, caches: caches, allowed: allowed}, nil
}

// SetNoUnset toggles `set -u`/`set +u` at runtime: once enabled,
// referencing an unset variable without a `:-default` form fails
// expansion with an ExpansionError.
func (e *Engine) SetNoUnset(v bool) {
	e.opts.NoUnset = v
}

// NoUnset reports whether `set -u` is currently in effect.
func (e *Engine) NoUnset() bool {
	return e.opts.NoUnset
}

// ExpandCommand fills in cmd.ExpandedArgs from cmd.Words.
func (e *Engine) ExpandCommand(ctx context.Context, cmd *ast.Command) error {
	var out []string
	for _, w := range cmd.Words {
		fields, err := e.ExpandWord(ctx, w)
		if err != nil {
			return err
		}
		out = append(out, fields...)
	}
	cmd.ExpandedArgs = out
	return nil
}

// ExpandWord runs the full phase pipeline over a single word, returning
// the resulting fields after IFS splitting and globbing (a word may
// expand to zero, one, or many fields).
func (e *Engine) ExpandWord(ctx context.Context, w ast.Word) ([]string, error) {
	text, fullyUnquoted, err := e.expandSegments(ctx, w)
	if err != nil {
		return nil, err
	}

	if !fullyUnquoted {
		return []string{text}, nil
	}

	fields := e.caches.splitWord(e.opts.IFS, text)
	if len(fields) == 0 {
		return nil, nil
	}

	var out []string
	for _, f := range fields {
		out = append(out, e.expandGlob(f)...)
	}
	return out, nil
}

// expandSegments applies history, tilde, and substitution expansion
// across a word's segments, returning the joined result and whether
// every segment was unquoted (which gates splitting/globbing).
func (e *Engine) expandSegments(ctx context.Context, w ast.Word) (string, bool, error) {
	fullyUnquoted := true
	for _, seg := range w.Segments {
		if seg.Quote != ast.Unquoted {
			fullyUnquoted = false
		}
	}

	// History expansion only triggers for a word with no quoting at all
	// (a quoted "!!" is a literal string, matching non-interactive shell
	// behavior).
	raw := w.Raw
	if fullyUnquoted && e.hist != nil {
		if expanded, ok := e.expandHistoryRef(raw); ok {
			return expanded, fullyUnquoted, nil
		}
	}

	var b strings.Builder
	first := true
	for _, seg := range w.Segments {
		text := seg.Text
		switch seg.Quote {
		case ast.SingleQuoted:
			// No further expansion inside single quotes.
		case ast.Unquoted:
			if first && strings.HasPrefix(text, "~") {
				text = e.expandTilde(text)
			}
			expanded, err := e.expandSubstitutions(ctx, text)
			if err != nil {
				return "", fullyUnquoted, err
			}
			text = expanded
		case ast.DoubleQuoted:
			expanded, err := e.expandSubstitutions(ctx, text)
			if err != nil {
				return "", fullyUnquoted, err
			}
			text = expanded
		}
		b.WriteString(text)
		first = false
	}
	return b.String(), fullyUnquoted, nil
}

var historyRefPattern = regexp.MustCompile(`^!(!|-?[0-9]+|[A-Za-z_][A-Za-z0-9_]*)(.*)$`)

func (e *Engine) expandHistoryRef(raw string) (string, bool) {
	m := historyRefPattern.FindStringSubmatch(raw)
	if m == nil {
		return "", false
	}
	expanded, ok := e.hist.ExpandRef(m[1])
	if !ok {
		return "", false
	}
	return expanded + m[2], true
}

func (e *Engine) expandTilde(text string) string {
	rest := text[1:]
	if rest == "" || rest[0] == '/' {
		home, ok := e.env.Get("HOME")
		if !ok || home == "" {
			if h, err := os.UserHomeDir(); err == nil {
				home = h
			}
		}
		return home + rest
	}
	// ~user forms are left untouched: resolving another account's home
	// directory is out of scope for the sandboxed expansion context.
	return text
}

// expandSubstitutions walks text left to right, replacing $((...))
// arithmetic, $(...) and `...` command substitution, ${...} and $NAME
// parameter expansion in place.
func (e *Engine) expandSubstitutions(ctx context.Context, text string) (string, error) {
	var b strings.Builder
	i := 0
	for i < len(text) {
		c := text[i]
		switch {
		case c == '$' && i+2 < len(text) && text[i+1] == '(' && text[i+2] == '(':
			end, ok := matchBalanced(text, i+2, '(', ')')
			if !ok {
				return "", shellerr.Expansion("unterminated arithmetic expansion")
			}
			inner := text[i+3 : end-1]
			val, err := e.evalArith(inner)
			if err != nil {
				return "", err
			}
			b.WriteString(val)
			i = end + 1
		case c == '$' && i+1 < len(text) && text[i+1] == '(':
			end, ok := matchBalanced(text, i+1, '(', ')')
			if !ok {
				return "", shellerr.Expansion("unterminated command substitution")
			}
			out, err := e.runCommandSub(ctx, text[i+2:end])
			if err != nil {
				return "", err
			}
			b.WriteString(out)
			i = end + 1
		case c == '`':
			end := strings.IndexByte(text[i+1:], '`')
			if end < 0 {
				return "", shellerr.Expansion("unterminated command substitution")
			}
			out, err := e.runCommandSub(ctx, text[i+1:i+1+end])
			if err != nil {
				return "", err
			}
			b.WriteString(out)
			i = i + 1 + end + 1
		case c == '$' && i+1 < len(text) && text[i+1] == '{':
			end := strings.IndexByte(text[i+2:], '}')
			if end < 0 {
				return "", shellerr.Expansion("unterminated parameter expansion: missing '}'")
			}
			val, err := e.expandBraceParam(text[i+2 : i+2+end])
			if err != nil {
				return "", err
			}
			b.WriteString(val)
			i = i + 2 + end + 1
		case c == '$' && i+1 < len(text) && isIdentStart(text[i+1]):
			j := i + 1
			for j < len(text) && isIdentPart(text[j]) {
				j++
			}
			name := text[i+1 : j]
			val, err := e.lookupVar(name, false, "")
			if err != nil {
				return "", err
			}
			b.WriteString(val)
			i = j
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String(), nil
}

// matchBalanced finds the index just past the close rune matching the
// open rune at s[openAt], accounting for nesting.
func matchBalanced(s string, openAt int, open, close byte) (int, bool) {
	depth := 0
	for i := openAt; i < len(s); i++ {
		switch s[i] {
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return i + 1, true
			}
		}
	}
	return 0, false
}

func (e *Engine) evalArith(expr string) (string, error) {
	node, err := e.caches.parseArithCached(trimParens(expr))
	if err != nil {
		return "", err
	}
	v, err := node.eval(func(name string) (int64, bool) {
		raw, ok := e.env.Get(name)
		if !ok {
			return 0, false
		}
		n, perr := parseArithLiteral(raw)
		return n, perr == nil
	})
	if err != nil {
		return "", err
	}
	return intToString(v), nil
}

func (e *Engine) runCommandSub(ctx context.Context, command string) (string, error) {
	if e.runner == nil {
		return "", shellerr.Expansion("command substitution is not available in this context")
	}
	if e.opts.Sandbox == SandboxRestricted {
		if err := e.checkSandboxed(command); err != nil {
			return "", err
		}
	}
	out, err := e.runner.RunCaptured(ctx, command)
	if err != nil {
		return "", shellerr.Wrap(shellerr.Expansion("command substitution failed"), err)
	}
	return strings.TrimRight(out, "\n"), nil
}

var forbiddenSandboxTokens = []string{";", "|", "&", ">", "<", "`", "$("}

func (e *Engine) checkSandboxed(command string) error {
	for _, tok := range forbiddenSandboxTokens {
		if strings.Contains(command, tok) {
			return shellerr.Expansion("sandboxed command substitution forbids %q", tok)
		}
	}
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return shellerr.Expansion("empty command substitution")
	}
	if _, ok := e.allowed[fields[0]]; !ok {
		return shellerr.Expansion("%s: command not permitted in sandboxed substitution", fields[0])
	}
	return nil
}

// expandBraceParam handles the ${VAR} and ${VAR:-default} forms.
func (e *Engine) expandBraceParam(body string) (string, error) {
	if idx := strings.Index(body, ":-"); idx >= 0 {
		name, def := body[:idx], body[idx+2:]
		defExpanded, err := e.expandSubstitutions(context.Background(), def)
		if err != nil {
			return "", err
		}
		return e.lookupVar(name, true, defExpanded)
	}
	return e.lookupVar(body, false, "")
}

func (e *Engine) lookupVar(name string, hasDefault bool, def string) (string, error) {
	v, ok := e.env.Get(name)
	if ok && v != "" {
		return v, nil
	}
	if ok && v == "" && !hasDefault {
		return "", nil
	}
	if hasDefault {
		return def, nil
	}
	if e.opts.NoUnset {
		return "", shellerr.UnboundVariable(name)
	}
	return "", nil
}

func splitIFS(text, ifs string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return strings.ContainsRune(ifs, r)
	})
}

// expandGlob expands a pathname pattern for an unquoted field. Fields
// without glob metacharacters, or that match nothing, pass through
// literally (bash's nullglob is off by default).
func (e *Engine) expandGlob(field string) []string {
	if !strings.ContainsAny(field, "*?[") {
		return []string{field}
	}
	matches, err := filepath.Glob(field)
	if err != nil || len(matches) == 0 {
		return []string{field}
	}
	sort.Strings(matches)
	return matches
}

func lookPath(path, name string) (string, bool) {
	if strings.Contains(name, "/") {
		if info, err := os.Stat(name); err == nil && !info.IsDir() {
			return name, true
		}
		return "", false
	}
	for _, dir := range filepath.SplitList(path) {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true
		}
	}
	resolved, err := exec.LookPath(name)
	if err != nil {
		return "", false
	}
	return resolved, true
}

// ResolvePath resolves name against PATH using the engine's bounded
// cache, for callers (the executor, completion provider) that need
// repeated lookups of the same command name.
func (e *Engine) ResolvePath(name string) (string, bool) {
	path, _ := e.env.Get("PATH")
	return e.caches.resolvePath(path, name)
}
