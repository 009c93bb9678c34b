package completion

import (
	"io/fs"
	"os"
	"testing"
	"time"

	"github.com/krustyshell/krusty/internal/editor"
)

type fakeEntry struct {
	name string
	dir  bool
	exec bool
}

func (e fakeEntry) Name() string { return e.name }
func (e fakeEntry) IsDir() bool  { return e.dir }
func (e fakeEntry) Type() fs.FileMode {
	if e.dir {
		return fs.ModeDir
	}
	return 0
}
func (e fakeEntry) Info() (fs.FileInfo, error) { return fakeInfo{e}, nil }

type fakeInfo struct{ e fakeEntry }

func (f fakeInfo) Name() string { return f.e.name }
func (f fakeInfo) Size() int64  { return 0 }
func (f fakeInfo) Mode() fs.FileMode {
	if f.e.dir {
		return fs.ModeDir | 0o755
	}
	if f.e.exec {
		return 0o755
	}
	return 0o644
}
func (f fakeInfo) ModTime() time.Time { return time.Time{} }
func (f fakeInfo) IsDir() bool        { return f.e.dir }
func (f fakeInfo) Sys() any           { return nil }

type fakeFS map[string][]fakeEntry

func (f fakeFS) ReadDir(dir string) ([]os.DirEntry, error) {
	entries, ok := f[dir]
	if !ok {
		return nil, os.ErrNotExist
	}
	out := make([]os.DirEntry, len(entries))
	for i, e := range entries {
		out[i] = e
	}
	return out, nil
}

func newTestCompleter(fsys fakeFS, getenv func(string) string) *Completer {
	return New(Config{
		Builtins: func() []string { return []string{"cd", "export", "alias"} },
		Aliases:  func() []string { return []string{"ll", "gs"} },
		EnvVars:  func() []string { return []string{"HOME", "PATH", "EDITOR"} },
		FS:       fsys,
		Getenv:   getenv,
	})
}

func labels(sugg []editor.Suggestion) []string {
	out := make([]string, len(sugg))
	for i, s := range sugg {
		out[i] = s.Label
	}
	return out
}

func containsLabel(sugg []editor.Suggestion, label string) bool {
	for _, s := range sugg {
		if s.Label == label {
			return true
		}
	}
	return false
}

func TestCdCompletesDirectoriesOnly(t *testing.T) {
	fsys := fakeFS{
		".": {
			{name: "src", dir: true},
			{name: "README.md", dir: false},
		},
	}
	c := newTestCompleter(fsys, os.Getenv)
	sugg := c.Complete("cd ", 3)
	if !containsLabel(sugg, "src/") {
		t.Fatalf("expected src/ in %v", labels(sugg))
	}
	if containsLabel(sugg, "README.md") {
		t.Fatalf("did not expect README.md in %v", labels(sugg))
	}
}

func TestCommandNameCompletionMergesBuiltinsAliasesAndPath(t *testing.T) {
	fsys := fakeFS{
		"/usr/bin": {
			{name: "cat", exec: true},
			{name: "curl", exec: true},
			{name: "notes.txt", exec: false},
		},
	}
	getenv := func(k string) string {
		if k == "PATH" {
			return "/usr/bin"
		}
		return ""
	}
	c := newTestCompleter(fsys, getenv)
	sugg := c.Complete("c", 1)
	got := labels(sugg)
	for _, want := range []string{"cd", "cat", "curl"} {
		found := false
		for _, g := range got {
			if g == want {
				found = true
			}
		}
		if !found {
			t.Fatalf("expected %q in %v", want, got)
		}
	}
	if containsLabel(sugg, "notes.txt") {
		t.Fatalf("non-executable file should not be suggested as a command: %v", got)
	}
}

func TestHelpRestrictedToBuiltins(t *testing.T) {
	fsys := fakeFS{"/usr/bin": {{name: "cat", exec: true}}}
	getenv := func(string) string { return "/usr/bin" }
	c := newTestCompleter(fsys, getenv)
	sugg := c.Complete("help c", 6)
	if !containsLabel(sugg, "cd") {
		t.Fatalf("expected builtin cd, got %v", labels(sugg))
	}
	if containsLabel(sugg, "cat") {
		t.Fatalf("help should not suggest PATH executables, got %v", labels(sugg))
	}
}

func TestExportSuggestsNameEquals(t *testing.T) {
	c := newTestCompleter(fakeFS{}, os.Getenv)
	sugg := c.Complete("export H", 8)
	if !containsLabel(sugg, "HOME=") {
		t.Fatalf("expected HOME=, got %v", labels(sugg))
	}
}

func TestKillSuggestsSignalNames(t *testing.T) {
	c := newTestCompleter(fakeFS{}, os.Getenv)
	sugg := c.Complete("kill -", 6)
	if !containsLabel(sugg, "SIGINT") {
		t.Fatalf("expected SIGINT, got %v", labels(sugg))
	}
}

func TestSetDashOSuggestsShellOptions(t *testing.T) {
	c := newTestCompleter(fakeFS{}, os.Getenv)
	sugg := c.Complete("set -o ", 7)
	if !containsLabel(sugg, "pipefail") {
		t.Fatalf("expected pipefail, got %v", labels(sugg))
	}
}

func TestSetDashSuggestsFlags(t *testing.T) {
	c := newTestCompleter(fakeFS{}, os.Getenv)
	sugg := c.Complete("set -", 5)
	if !containsLabel(sugg, "-e") {
		t.Fatalf("expected -e, got %v", labels(sugg))
	}
}

func TestUnaliasDashASuggestsFlagOnly(t *testing.T) {
	c := newTestCompleter(fakeFS{}, os.Getenv)
	sugg := c.Complete("unalias -", 9)
	if len(sugg) != 1 || sugg[0].Label != "-a" {
		t.Fatalf("expected exactly [-a], got %v", labels(sugg))
	}
}

func TestUnaliasPrefixSuggestsAliasNames(t *testing.T) {
	c := newTestCompleter(fakeFS{}, os.Getenv)
	sugg := c.Complete("unalias l", 9)
	if !containsLabel(sugg, "ll") {
		t.Fatalf("expected ll, got %v", labels(sugg))
	}
}

func TestPushdSuggestsStackIndices(t *testing.T) {
	c := newTestCompleter(fakeFS{}, os.Getenv)
	sugg := c.Complete("pushd +", 7)
	if !containsLabel(sugg, "+0") {
		t.Fatalf("expected +0, got %v", labels(sugg))
	}
}

func TestUmaskSuggestsCanonicalMasks(t *testing.T) {
	c := newTestCompleter(fakeFS{}, os.Getenv)
	sugg := c.Complete("umask ", 6)
	if !containsLabel(sugg, "022") {
		t.Fatalf("expected 022, got %v", labels(sugg))
	}
}

func TestGetoptsFirstArgSpecsSecondArgVars(t *testing.T) {
	c := newTestCompleter(fakeFS{}, os.Getenv)
	first := c.Complete(`getopts "`, 9)
	if len(first) == 0 {
		t.Fatal("expected opt-spec suggestions for the first getopts arg")
	}
	second := c.Complete(`getopts "ab:c" o`, 16)
	if !containsLabel(second, "opt") && !containsLabel(second, "OPTARG") {
		t.Fatalf("expected a variable-name suggestion, got %v", labels(second))
	}
}

func TestPluginCompletionsAreMergedAheadOfGeneralTokens(t *testing.T) {
	called := false
	c := New(Config{
		Builtins: func() []string { return nil },
		Aliases:  func() []string { return nil },
		EnvVars:  func() []string { return nil },
		FS:       fakeFS{},
		Getenv:   os.Getenv,
		Plugins: []PluginCompleter{
			{Prefix: "deploy", Complete: func(line string, cursor int) []editor.Suggestion {
				called = true
				return []editor.Suggestion{{Label: "deploy staging", Insert: "deploy staging"}}
			}},
		},
	})
	sugg := c.Complete("deploy ", 7)
	if !called {
		t.Fatal("expected plugin completer to be invoked")
	}
	if !containsLabel(sugg, "deploy staging") {
		t.Fatalf("expected plugin suggestion, got %v", labels(sugg))
	}
}

func TestDedupByLabelRemovesDuplicates(t *testing.T) {
	sugg := []editor.Suggestion{
		{Label: "a", Insert: "a"},
		{Label: "a", Insert: "a-dup"},
		{Label: "b", Insert: "b"},
	}
	out := dedupByLabel(sugg)
	if len(out) != 2 {
		t.Fatalf("expected 2 entries after dedup, got %d: %v", len(out), out)
	}
}

func TestCurrentWordTracksPositionAndPrefix(t *testing.T) {
	prefix, fields := currentWord("cd sr", 5)
	if prefix != "sr" || len(fields) != 1 || fields[0] != "cd" {
		t.Fatalf("prefix=%q fields=%v, want sr,[cd]", prefix, fields)
	}
	prefix, fields = currentWord("", 0)
	if prefix != "" || len(fields) != 0 {
		t.Fatalf("prefix=%q fields=%v, want empty,[]", prefix, fields)
	}
	prefix, fields = currentWord("cd ", 3)
	if prefix != "" || len(fields) != 1 || fields[0] != "cd" {
		t.Fatalf("prefix=%q fields=%v, want empty,[cd]", prefix, fields)
	}
	prefix, fields = currentWord("set -o ", 7)
	if prefix != "" || len(fields) != 2 || fields[1] != "-o" {
		t.Fatalf("prefix=%q fields=%v, want empty,[set -o]", prefix, fields)
	}
}
