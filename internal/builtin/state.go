package builtin

import (
	"sort"
	"sync"
)

// AliasStore holds the `alias`/`unalias` table. Expansion of an alias
// into the text it stands for is the Expansion Engine's job (spec
// §4.B); this store only owns the name -> replacement-text mapping the
// Engine and the completion engine both read.
type AliasStore struct {
	mu sync.RWMutex
	m  map[string]string
}

func NewAliasStore() *AliasStore {
	return &AliasStore{m: make(map[string]string)}
}

func (a *AliasStore) Set(name, value string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.m[name] = value
}

func (a *AliasStore) Get(name string) (string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	v, ok := a.m[name]
	return v, ok
}

func (a *AliasStore) Unset(name string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.m[name]; !ok {
		return false
	}
	delete(a.m, name)
	return true
}

// Names returns every alias name, sorted.
func (a *AliasStore) Names() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]string, 0, len(a.m))
	for name := range a.m {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// All returns sorted "name=value" pairs, for `alias` with no arguments.
func (a *AliasStore) All() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]string, 0, len(a.m))
	for name, value := range a.m {
		out = append(out, name+"="+value)
	}
	sort.Strings(out)
	return out
}

// DirStack backs `pushd`/`popd`/`dirs`. Index 0 is always the current
// working directory; pushd/popd rotate entries above it the way a
// POSIX shell's directory stack does.
type DirStack struct {
	mu    sync.Mutex
	stack []string
}

func NewDirStack(cwd string) *DirStack {
	return &DirStack{stack: []string{cwd}}
}

// Push rotates dir to the top of the stack (index 0), pushing the
// previous top down to index 1.
func (d *DirStack) Push(dir string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stack = append([]string{dir}, d.stack...)
}

// SwapTop exchanges the top two entries (`pushd` with no argument),
// returning the new top, or false if there's nothing to swap with.
func (d *DirStack) SwapTop() (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.stack) < 2 {
		return "", false
	}
	d.stack[0], d.stack[1] = d.stack[1], d.stack[0]
	return d.stack[0], true
}

// Pop removes the top entry (`popd`), returning the new top. Refuses
// to pop the last remaining entry.
func (d *DirStack) Pop() (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.stack) < 2 {
		return "", false
	}
	d.stack = d.stack[1:]
	return d.stack[0], true
}

// SetTop replaces index 0 without disturbing the rest of the stack,
// used to keep entry 0 synced with the actual cwd after a plain `cd`.
func (d *DirStack) SetTop(dir string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.stack) == 0 {
		d.stack = []string{dir}
		return
	}
	d.stack[0] = dir
}

// Entries returns a snapshot of the stack, top first.
func (d *DirStack) Entries() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.stack))
	copy(out, d.stack)
	return out
}

// At returns the entry at index n (0-based from the top, as `pushd
// +n`/`popd +n` address it).
func (d *DirStack) At(n int) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n < 0 || n >= len(d.stack) {
		return "", false
	}
	return d.stack[n], true
}

// ShellOptions tracks the `set -o`-style flags spec §6's Configuration
// section names that aren't already Executor.Options fields (vi/emacs
// line-editing mode, noclobber, noglob) plus a mirror of ErrExit, which
// the Executor itself has no field for and the Shell Core's chain
// evaluator must consult directly.
type ShellOptions struct {
	mu         sync.RWMutex
	ErrExit    bool // set -e
	NoClobber  bool // set -C / set -o noclobber
	NoGlob     bool // set -f / set -o noglob
	ViMode     bool // set -o vi
	EmacsMode  bool // set -o emacs (default)
	Verbose    bool // set -v
	Monitor    bool // set -m (job control messages)
	Positional []string
}

func NewShellOptions() *ShellOptions {
	return &ShellOptions{EmacsMode: true}
}

func (o *ShellOptions) SetVi(v bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ViMode = v
	o.EmacsMode = !v
}

func (o *ShellOptions) SetEmacs(v bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.EmacsMode = v
	o.ViMode = !v
}
