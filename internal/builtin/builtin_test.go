package builtin

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/krustyshell/krusty/internal/history"
	"github.com/krustyshell/krusty/internal/job"
)

func newTestHistoryStore(t *testing.T, entries ...string) *history.Store {
	t.Helper()
	s, err := history.Open(history.Options{}, nil)
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	for _, e := range entries {
		s.Add(e)
	}
	return s
}

func run(t *testing.T, r *Registry, name string, args ...string) (string, string, int) {
	t.Helper()
	fn, ok := r.Lookup(name)
	if !ok {
		t.Fatalf("no builtin named %q", name)
	}
	var stdout, stderr bytes.Buffer
	full := append([]string{name}, args...)
	code, err := fn(context.Background(), full, strings.NewReader(""), &stdout, &stderr)
	if err != nil {
		if _, ok := err.(*ExitError); !ok {
			t.Fatalf("%s: unexpected error %v", name, err)
		}
	}
	return stdout.String(), stderr.String(), code
}

func TestExportMarksVariableForChildEnviron(t *testing.T) {
	r := New("0.0.0-test")
	run(t, r, "export", "FOO=bar")
	if !r.Env.IsExported("FOO") {
		t.Fatal("expected FOO exported")
	}
	found := false
	for _, kv := range r.Env.Environ() {
		if kv == "FOO=bar" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected FOO=bar in Environ(), got %v", r.Env.Environ())
	}
}

func TestUnsetRemovesVariable(t *testing.T) {
	r := New("0.0.0-test")
	r.Env.Set("FOO", "bar")
	run(t, r, "unset", "FOO")
	if _, ok := r.Env.Get("FOO"); ok {
		t.Fatal("expected FOO removed")
	}
}

func TestAliasSetAndList(t *testing.T) {
	r := New("0.0.0-test")
	run(t, r, "alias", "ll=ls -la")
	out, _, _ := run(t, r, "alias")
	if !strings.Contains(out, "alias ll=ls -la") {
		t.Fatalf("expected alias listing to contain ll, got %q", out)
	}
}

func TestUnaliasRemovesAlias(t *testing.T) {
	r := New("0.0.0-test")
	r.Aliases.Set("ll", "ls -la")
	_, stderr, code := run(t, r, "unalias", "ll")
	if code != 0 || stderr != "" {
		t.Fatalf("unalias ll: code=%d stderr=%q", code, stderr)
	}
	if _, ok := r.Aliases.Get("ll"); ok {
		t.Fatal("expected ll removed")
	}
}

func TestSetDashUTogglesNoUnset(t *testing.T) {
	r := New("0.0.0-test")
	if r.Expand != nil {
		t.Fatal("expected nil Expand in this test's Registry")
	}
	// With Expand nil, set -u must not panic; it's simply a no-op.
	_, stderr, code := run(t, r, "set", "-u")
	if code != 0 || stderr != "" {
		t.Fatalf("set -u: code=%d stderr=%q", code, stderr)
	}
}

func TestSetDashDashSetsPositionalParameters(t *testing.T) {
	r := New("0.0.0-test")
	run(t, r, "set", "--", "a", "b", "c")
	if strings.Join(r.Opts.Positional, ",") != "a,b,c" {
		t.Fatalf("got positional %v", r.Opts.Positional)
	}
}

func TestSetDashETogglesErrExit(t *testing.T) {
	r := New("0.0.0-test")
	run(t, r, "set", "-e")
	if !r.Opts.ErrExit {
		t.Fatal("expected ErrExit true after set -e")
	}
	run(t, r, "set", "+e")
	if r.Opts.ErrExit {
		t.Fatal("expected ErrExit false after set +e")
	}
}

func TestSetDashOPipefailRequiresExecutor(t *testing.T) {
	r := New("0.0.0-test")
	// Exec is nil; -o pipefail must not panic, just silently have no
	// executor to toggle.
	_, stderr, code := run(t, r, "set", "-o", "pipefail")
	if code != 0 || stderr != "" {
		t.Fatalf("set -o pipefail: code=%d stderr=%q", code, stderr)
	}
}

func TestReadSplitsFieldsLastAbsorbsRemainder(t *testing.T) {
	r := New("0.0.0-test")
	fn, _ := r.Lookup("read")
	var stdout, stderr bytes.Buffer
	code, err := fn(context.Background(), []string{"read", "a", "b"}, strings.NewReader("one two three four\n"), &stdout, &stderr)
	if err != nil || code != 0 {
		t.Fatalf("read: code=%d err=%v", code, err)
	}
	if v, _ := r.Env.Get("a"); v != "one" {
		t.Fatalf("a=%q, want one", v)
	}
	if v, _ := r.Env.Get("b"); v != "two three four" {
		t.Fatalf("b=%q, want %q", v, "two three four")
	}
}

func TestGetoptsStepsThroughOptions(t *testing.T) {
	r := New("0.0.0-test")
	r.Opts.Positional = []string{"-a", "-bvalue", "rest"}

	fn, _ := r.Lookup("getopts")
	call := func() (string, int) {
		var stdout, stderr bytes.Buffer
		fn(context.Background(), []string{"getopts", "ab:", "opt"}, strings.NewReader(""), &stdout, &stderr)
		v, _ := r.Env.Get("opt")
		optind, _ := r.Env.Get("OPTIND")
		n := 0
		for _, c := range optind {
			n = n*10 + int(c-'0')
		}
		return v, n
	}

	opt, optind := call()
	if opt != "a" || optind != 2 {
		t.Fatalf("first getopts: opt=%q optind=%d", opt, optind)
	}
	opt, optind = call()
	if opt != "b" || optind != 3 {
		t.Fatalf("second getopts: opt=%q optind=%d", opt, optind)
	}
	if v, _ := r.Env.Get("OPTARG"); v != "value" {
		t.Fatalf("OPTARG=%q, want value", v)
	}
}

func TestPrintfSubstitutesAndRepeatsFormat(t *testing.T) {
	r := New("0.0.0-test")
	out, _, code := run(t, r, "printf", "%s-%d\\n", "a", "1", "b", "2")
	if code != 0 {
		t.Fatalf("printf: code=%d", code)
	}
	if out != "a-1\nb-2\n" {
		t.Fatalf("got %q", out)
	}
}

func TestPushdPopdRotateStack(t *testing.T) {
	r := New("0.0.0-test")
	start := r.Dirs.Entries()[0]

	tmp := t.TempDir()
	run(t, r, "pushd", tmp)
	entries := r.Dirs.Entries()
	if len(entries) != 2 || entries[0] != tmp {
		t.Fatalf("after pushd, entries=%v", entries)
	}

	run(t, r, "popd")
	entries = r.Dirs.Entries()
	if len(entries) != 1 || entries[0] != start {
		t.Fatalf("after popd, entries=%v, want [%s]", entries, start)
	}
}

func TestUmaskRoundTrips(t *testing.T) {
	r := New("0.0.0-test")
	run(t, r, "umask", "027")
	out, _, _ := run(t, r, "umask")
	if strings.TrimSpace(out) != "0027" {
		t.Fatalf("got umask %q, want 0027", out)
	}
	run(t, r, "umask", "022") // restore a conventional default
}

func TestExitReturnsExitError(t *testing.T) {
	r := New("0.0.0-test")
	fn, _ := r.Lookup("exit")
	var stdout, stderr bytes.Buffer
	code, err := fn(context.Background(), []string{"exit", "3"}, strings.NewReader(""), &stdout, &stderr)
	if code != 3 {
		t.Fatalf("code=%d, want 3", code)
	}
	ee, ok := err.(*ExitError)
	if !ok || ee.Code != 3 {
		t.Fatalf("err=%v, want *ExitError{Code:3}", err)
	}
}

func TestTrueFalseExitCodes(t *testing.T) {
	r := New("0.0.0-test")
	_, _, code := run(t, r, "true")
	if code != 0 {
		t.Fatalf("true: code=%d", code)
	}
	_, _, code = run(t, r, "false")
	if code != 1 {
		t.Fatalf("false: code=%d", code)
	}
}

func TestJobsListsAddedJobs(t *testing.T) {
	r := New("0.0.0-test")
	r.Jobs = job.New(nil, nil)
	id := r.Jobs.AddJob("sleep 10 &", 12345, nil, true)
	r.Jobs.MarkDone(id, 0)

	out, _, code := run(t, r, "jobs")
	if code != 0 {
		t.Fatalf("jobs: code=%d", code)
	}
	if !strings.Contains(out, "sleep 10 &") {
		t.Fatalf("jobs output missing command text: %q", out)
	}
}

func TestTrapRecordsAndListsHandlers(t *testing.T) {
	r := New("0.0.0-test")
	run(t, r, "trap", "echo bye", "INT")
	traps := r.Traps()
	if traps["INT"] != "echo bye" {
		t.Fatalf("traps=%v", traps)
	}
	out, _, _ := run(t, r, "trap")
	if !strings.Contains(out, "INT") {
		t.Fatalf("trap listing missing INT: %q", out)
	}
}

func TestTypeReportsBuiltinAliasAndNotFound(t *testing.T) {
	r := New("0.0.0-test")
	r.Aliases.Set("ll", "ls -la")

	out, _, code := run(t, r, "type", "cd")
	if code != 0 || !strings.Contains(out, "shell builtin") {
		t.Fatalf("type cd: code=%d out=%q", code, out)
	}

	out, _, code = run(t, r, "type", "ll")
	if code != 0 || !strings.Contains(out, "aliased") {
		t.Fatalf("type ll: code=%d out=%q", code, out)
	}

	_, stderr, code := run(t, r, "type", "definitely-not-a-real-command-xyz")
	if code != 1 || !strings.Contains(stderr, "not found") {
		t.Fatalf("type missing command: code=%d stderr=%q", code, stderr)
	}
}

func TestHistoryListsAndClears(t *testing.T) {
	r := New("0.0.0-test")
	r.History = newTestHistoryStore(t, "first", "second")

	out, _, _ := run(t, r, "history")
	if !strings.Contains(out, "first") || !strings.Contains(out, "second") {
		t.Fatalf("history output missing entries: %q", out)
	}

	run(t, r, "history", "-c")
	if r.History.Len() != 0 {
		t.Fatalf("expected history cleared, len=%d", r.History.Len())
	}
}
