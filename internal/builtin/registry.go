// Package builtin implements krusty's in-process command set: the
// collaborators every POSIX-flavored shell handles without spawning a
// child process (cd, export, jobs, set, and the rest), wired against
// the Executor's BuiltinLookup contract (spec §4.D) plus the Job
// Manager, History Store, and Expansion Engine each builtin needs to
// read or mutate shared session state.
//
// Grounded on cli/command_handler.go's name -> handler dispatch table,
// generalized from chatcli's slash-command switch to a map keyed by
// POSIX builtin name, and on utils/git_utils.go's CommandExecutor-based
// git plumbing for the `wip` builtin.
package builtin

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/krustyshell/krusty/internal/executor"
	"github.com/krustyshell/krusty/internal/expand"
	"github.com/krustyshell/krusty/internal/history"
	"github.com/krustyshell/krusty/internal/job"
)

// Registry owns every piece of session state a builtin reads or
// mutates, and implements executor.BuiltinLookup over its handler
// table. Jobs, History, and Expand may be nil in contexts that don't
// need job control, persisted history, or variable expansion (e.g. a
// minimal test harness); builtins that need them degrade to an error
// message or a silent no-op rather than panicking.
type Registry struct {
	Env     *EnvStore
	Aliases *AliasStore
	Dirs    *DirStack
	Opts    *ShellOptions

	Jobs    *job.Manager
	History *history.Store
	Expand  *expand.Engine
	Exec    *executor.Executor

	// KrustyVersion is reported by `help`/`krusty --version`-style
	// introspection. The plugin manager's range checks get the same
	// version string from the shell, not from this field.
	KrustyVersion string

	mu      sync.Mutex
	hash    map[string]string // command name -> resolved path, `hash` builtin
	traps   map[string]string // signal name or "EXIT" -> command text
	prevDir string            // `cd -` target

	table map[string]executor.Builtin
}

// New builds a Registry seeded from the current process environment
// and working directory, matching a freshly started interactive
// session. Exec, Jobs, and History may be set after construction, once
// those collaborators exist, via their exported fields (Registry is a
// plain struct, not an opaque constructor-only type, exactly because
// shell core wiring happens in stages).
func New(krustyVersion string) *Registry {
	cwd, _ := os.Getwd()
	r := &Registry{
		Env:           NewEnvStore(),
		Aliases:       NewAliasStore(),
		Dirs:          NewDirStack(cwd),
		Opts:          NewShellOptions(),
		KrustyVersion: krustyVersion,
		hash:          make(map[string]string),
		traps:         make(map[string]string),
	}
	r.table = r.buildTable()
	return r
}

// Lookup satisfies executor.BuiltinLookup.
func (r *Registry) Lookup(name string) (executor.Builtin, bool) {
	fn, ok := r.table[name]
	return fn, ok
}

// Names returns every registered builtin name, sorted. Satisfies the
// func() []string shape completion.Config.Builtins expects.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.table))
	for name := range r.table {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Register adds or replaces a builtin entry, used by the shell core to
// fold plugin-contributed commands (registered as "plugin:command") into
// the same lookup table. Callers are expected to finish registering
// plugins before the REPL starts reading commands; Register is not
// itself safe to call concurrently with Lookup.
func (r *Registry) Register(name string, fn executor.Builtin) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.table[name] = fn
}

// AliasNames satisfies completion.Config.Aliases.
func (r *Registry) AliasNames() []string { return r.Aliases.Names() }

// EnvVarNames satisfies completion.Config.EnvVars.
func (r *Registry) EnvVarNames() []string { return r.Env.Names() }

func (r *Registry) buildTable() map[string]executor.Builtin {
	return map[string]executor.Builtin{
		":":       r.builtinTrue,
		"true":    r.builtinTrue,
		"false":   r.builtinFalse,
		"exit":    r.builtinExit,
		"pwd":     r.builtinPwd,
		"cd":      r.builtinCd,
		"command": r.builtinCommand,
		"exec":    r.builtinExec,
		"type":    r.builtinType,
		"which":   r.builtinWhich,
		"hash":    r.builtinHash,
		"help":    r.builtinHelp,

		"export":  r.builtinExport,
		"unset":   r.builtinUnset,
		"alias":   r.builtinAlias,
		"unalias": r.builtinUnalias,
		"set":     r.builtinSet,
		"read":    r.builtinRead,
		"printf":  r.builtinPrintf,
		"getopts": r.builtinGetopts,

		"jobs": r.builtinJobs,
		"fg":   r.builtinFg,
		"bg":   r.builtinBg,
		"wait": r.builtinWait,
		"kill": r.builtinKill,
		"trap": r.builtinTrap,

		"pushd": r.builtinPushd,
		"popd":  r.builtinPopd,
		"dirs":  r.builtinDirs,
		"umask": r.builtinUmask,

		"history": r.builtinHistory,
		"wip":     r.builtinWip,
	}
}

// --- core ---

func (r *Registry) builtinTrue(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	return 0, nil
}

func (r *Registry) builtinFalse(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	return 1, nil
}

// ExitError signals the shell core to terminate the session; the
// Executor itself only runs one command at a time and has no notion of
// ending the whole session, so this is carried out-of-band as a typed
// error the caller (Shell Core's REPL loop) recognizes and unwraps.
type ExitError struct{ Code int }

func (e *ExitError) Error() string { return fmt.Sprintf("exit %d", e.Code) }

// ExitSignal satisfies the executor package's unexported exitSignaler
// interface, letting runStage recognize an exit request structurally
// without internal/executor importing internal/builtin.
func (e *ExitError) ExitSignal() int { return e.Code }

func (r *Registry) builtinExit(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	code := 0
	if len(args) > 1 {
		n, err := parseExitCode(args[1])
		if err != nil {
			fmt.Fprintf(stderr, "exit: %s: numeric argument required\n", args[1])
			code = 2
		} else {
			code = n
		}
	}
	return code, &ExitError{Code: code}
}

// parseExitCode parses a numeric exit argument, truncating to 8 bits
// per POSIX's exit status convention.
func parseExitCode(s string) (int, error) {
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
		return 0, err
	}
	return int(uint8(n)), nil
}

func (r *Registry) builtinPwd(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(stderr, "pwd: %v\n", err)
		return 1, nil
	}
	fmt.Fprintln(stdout, cwd)
	return 0, nil
}

func (r *Registry) builtinCd(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	target := ""
	if len(args) > 1 {
		target = args[1]
	}

	cwd, _ := os.Getwd()
	var dest string
	switch {
	case target == "-":
		if r.prevDir == "" {
			fmt.Fprintln(stderr, "cd: OLDPWD not set")
			return 1, nil
		}
		dest = r.prevDir
		fmt.Fprintln(stdout, dest)
	case target == "" || target == "~":
		home, ok := r.Env.Get("HOME")
		if !ok {
			fmt.Fprintln(stderr, "cd: HOME not set")
			return 1, nil
		}
		dest = home
	case strings.HasPrefix(target, "~/"):
		home, ok := r.Env.Get("HOME")
		if !ok {
			fmt.Fprintln(stderr, "cd: HOME not set")
			return 1, nil
		}
		dest = filepath.Join(home, target[2:])
	case filepath.IsAbs(target):
		dest = target
	default:
		dest = filepath.Join(cwd, target)
	}

	if err := os.Chdir(dest); err != nil {
		fmt.Fprintf(stderr, "cd: %s: %v\n", target, err)
		return 1, nil
	}
	newCwd, err := os.Getwd()
	if err != nil {
		newCwd = dest
	}
	r.prevDir = cwd
	r.Env.Set("OLDPWD", cwd)
	r.Env.Set("PWD", newCwd)
	r.Dirs.SetTop(newCwd)
	return 0, nil
}

func (r *Registry) builtinCommand(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	rest := args[1:]
	for len(rest) > 0 && rest[0] == "-p" {
		rest = rest[1:]
	}
	if len(rest) > 0 && rest[0] == "-v" {
		if len(rest) < 2 {
			return 1, nil
		}
		path, ok := r.resolve(rest[1])
		if !ok {
			return 1, nil
		}
		fmt.Fprintln(stdout, path)
		return 0, nil
	}
	if len(rest) == 0 {
		return 0, nil
	}
	// command bypasses any shell function/alias of the same name and
	// runs the external binary directly, matching POSIX's `command`.
	path, ok := r.resolve(rest[0])
	if !ok {
		fmt.Fprintf(stderr, "command: %s: command not found\n", rest[0])
		return 127, nil
	}
	cmd := exec.CommandContext(ctx, path, rest[1:]...)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = stdin, stdout, stderr
	if r.Env != nil {
		cmd.Env = r.Env.Environ()
	}
	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return exitErr.ExitCode(), nil
		}
		return 1, err
	}
	return 0, nil
}

func (r *Registry) builtinExec(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	rest := args[1:]
	if len(rest) == 0 {
		return 0, nil
	}
	path, ok := r.resolve(rest[0])
	if !ok {
		fmt.Fprintf(stderr, "exec: %s: command not found\n", rest[0])
		return 127, nil
	}
	cmd := exec.CommandContext(ctx, path, rest[1:]...)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = stdin, stdout, stderr
	if r.Env != nil {
		cmd.Env = r.Env.Environ()
	}
	err := cmd.Run()
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode(), &ExitError{Code: exitErr.ExitCode()}
	}
	if err != nil {
		return 1, err
	}
	return 0, &ExitError{Code: 0}
}

func (r *Registry) builtinType(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	if len(args) < 2 {
		return 0, nil
	}
	status := 0
	for _, name := range args[1:] {
		switch {
		case r.isBuiltinName(name):
			fmt.Fprintf(stdout, "%s is a shell builtin\n", name)
		default:
			if alias, ok := r.Aliases.Get(name); ok {
				fmt.Fprintf(stdout, "%s is aliased to `%s'\n", name, alias)
				continue
			}
			if path, ok := r.resolve(name); ok {
				fmt.Fprintf(stdout, "%s is %s\n", name, path)
				continue
			}
			fmt.Fprintf(stderr, "type: %s: not found\n", name)
			status = 1
		}
	}
	return status, nil
}

func (r *Registry) builtinWhich(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	if len(args) < 2 {
		return 0, nil
	}
	status := 0
	for _, name := range args[1:] {
		if path, ok := r.resolve(name); ok {
			fmt.Fprintln(stdout, path)
		} else {
			status = 1
		}
	}
	return status, nil
}

func (r *Registry) builtinHash(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rest := args[1:]
	if len(rest) > 0 && rest[0] == "-r" {
		r.hash = make(map[string]string)
		return 0, nil
	}
	if len(rest) == 0 {
		if len(r.hash) == 0 {
			fmt.Fprintln(stdout, "hash: hash table empty")
			return 0, nil
		}
		names := make([]string, 0, len(r.hash))
		for name := range r.hash {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(stdout, "%s=%s\n", name, r.hash[name])
		}
		return 0, nil
	}
	for _, name := range rest {
		if path, ok := r.resolveLocked(name); ok {
			r.hash[name] = path
		} else {
			fmt.Fprintf(stderr, "hash: %s: not found\n", name)
			return 1, nil
		}
	}
	return 0, nil
}

func (r *Registry) builtinHelp(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	if len(args) > 1 {
		name := args[1]
		if !r.isBuiltinName(name) {
			fmt.Fprintf(stderr, "help: no help topics match `%s'\n", name)
			return 1, nil
		}
		fmt.Fprintf(stdout, "%s: a shell builtin\n", name)
		return 0, nil
	}
	names := r.Names()
	fmt.Fprintf(stdout, "krusty builtin commands (%s):\n", r.KrustyVersion)
	for _, name := range names {
		fmt.Fprintf(stdout, "  %s\n", name)
	}
	return 0, nil
}

func (r *Registry) isBuiltinName(name string) bool {
	_, ok := r.table[name]
	return ok
}

// resolve looks up name: first the remembered hash table, falling back
// to the Expansion Engine's PATH resolution.
func (r *Registry) resolve(name string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resolveLocked(name)
}

func (r *Registry) resolveLocked(name string) (string, bool) {
	if path, ok := r.hash[name]; ok {
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
		delete(r.hash, name)
	}
	if r.Expand != nil {
		return r.Expand.ResolvePath(name)
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return "", false
	}
	return path, true
}
