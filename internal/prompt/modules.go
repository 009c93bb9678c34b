package prompt

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/fatih/color"
)

// PathModule renders the current working directory, abbreviating the
// home directory prefix to "~" the way most shell prompts do.
type PathModule struct {
	Style *color.Color
}

func (PathModule) Name() string            { return "path" }
func (PathModule) Detect(ctx Context) bool { return ctx.Cwd != "" }

func (m PathModule) Render(ctx Context) (Segment, bool) {
	p := ctx.Cwd
	if ctx.Home != "" && strings.HasPrefix(p, ctx.Home) {
		p = "~" + strings.TrimPrefix(p, ctx.Home)
	}
	return Segment{Content: p, Style: m.Style}, true
}

// GitModule renders the current branch name when cwd is inside a git
// worktree, via `git rev-parse --abbrev-ref HEAD` (or the injected
// Lookup).
type GitModule struct {
	Style  *color.Color
	Lookup func(dir string) (branch string, ok bool)
}

func (GitModule) Name() string { return "git" }

func (m GitModule) Detect(ctx Context) bool {
	_, ok := m.lookup()(ctx.Cwd)
	return ok
}

func (m GitModule) Render(ctx Context) (Segment, bool) {
	branch, ok := m.lookup()(ctx.Cwd)
	if !ok {
		return Segment{}, false
	}
	return Segment{Content: fmt.Sprintf("(%s)", branch), Style: m.Style}, true
}

func (m GitModule) lookup() func(dir string) (string, bool) {
	if m.Lookup != nil {
		return m.Lookup
	}
	return gitBranch
}

// gitBranch shells out to git to find the current branch, matching
// what a real prompt theme does; returns ok=false outside a worktree
// or when git isn't on PATH.
func gitBranch(dir string) (string, bool) {
	cmd := exec.Command("git", "-C", dir, "rev-parse", "--abbrev-ref", "HEAD")
	out, err := cmd.Output()
	if err != nil {
		return "", false
	}
	branch := strings.TrimSpace(string(out))
	if branch == "" || branch == "HEAD" {
		return "", false
	}
	return branch, true
}

// ModulesModule renders the active language/runtime modules the shell
// detected in cwd (e.g. "go", "node") — a stand-in for the pluggable
// per-language version badges many prompt themes show; krusty ships no
// concrete detectors and only renders the names its Compute function
// returns for ctx. Defaults does not register this module.
type ModulesModule struct {
	Style   *color.Color
	Compute func(ctx Context) []string
}

func (ModulesModule) Name() string { return "modules" }

func (m ModulesModule) Detect(ctx Context) bool {
	return m.Compute != nil && len(m.Compute(ctx)) > 0
}

func (m ModulesModule) Render(ctx Context) (Segment, bool) {
	if m.Compute == nil {
		return Segment{}, false
	}
	names := m.Compute(ctx)
	if len(names) == 0 {
		return Segment{}, false
	}
	return Segment{Content: strings.Join(names, " "), Style: m.Style}, true
}

// SymbolModule renders a trailing prompt glyph that changes color (and
// optionally text) based on the previous command's exit code.
type SymbolModule struct {
	OK       string
	Fail     string
	OKStyle  *color.Color
	FailStyle *color.Color
}

func (SymbolModule) Name() string            { return "symbol" }
func (SymbolModule) Detect(ctx Context) bool { return true }

func (m SymbolModule) Render(ctx Context) (Segment, bool) {
	if ctx.ExitCode == 0 {
		sym := m.OK
		if sym == "" {
			sym = "$"
		}
		return Segment{Content: sym, Style: m.OKStyle}, true
	}
	sym := m.Fail
	if sym == "" {
		sym = "$"
	}
	return Segment{Content: sym, Style: m.FailStyle}, true
}

// UserModule renders ctx.User.
type UserModule struct{ Style *color.Color }

func (UserModule) Name() string            { return "user" }
func (UserModule) Detect(ctx Context) bool { return ctx.User != "" }
func (m UserModule) Render(ctx Context) (Segment, bool) {
	return Segment{Content: ctx.User, Style: m.Style}, true
}

// HostModule renders ctx.Host.
type HostModule struct{ Style *color.Color }

func (HostModule) Name() string            { return "host" }
func (HostModule) Detect(ctx Context) bool { return ctx.Host != "" }
func (m HostModule) Render(ctx Context) (Segment, bool) {
	return Segment{Content: ctx.Host, Style: m.Style}, true
}

// JobsModule renders a background-job count badge when jobs are
// running, e.g. "[2]".
type JobsModule struct{ Style *color.Color }

func (JobsModule) Name() string            { return "jobs" }
func (JobsModule) Detect(ctx Context) bool { return ctx.JobCount > 0 }
func (m JobsModule) Render(ctx Context) (Segment, bool) {
	if ctx.JobCount <= 0 {
		return Segment{}, false
	}
	return Segment{Content: fmt.Sprintf("[%d]", ctx.JobCount), Style: m.Style}, true
}

// shellLevelModule renders a ">"-repeated indicator for nested shell
// levels ($SHLVL), suppressed at the top level. Unexported: exposed
// only as a default module (see Defaults) since it is rarely themed
// independently.
type shellLevelModule struct{ Style *color.Color }

func (shellLevelModule) Name() string            { return "shlvl" }
func (shellLevelModule) Detect(ctx Context) bool { return ctx.ShellLevel > 1 }
func (m shellLevelModule) Render(ctx Context) (Segment, bool) {
	if ctx.ShellLevel <= 1 {
		return Segment{}, false
	}
	return Segment{Content: strings.Repeat(">", ctx.ShellLevel-1), Style: m.Style}, true
}

// Defaults returns the standard module set and format order, themed
// with fatih/color in the same purple/green/cyan/gray palette
// diillson-chatcli's colors.go uses for its own prompt segments.
func Defaults() ([]Module, []string) {
	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan)
	purple := color.New(color.FgMagenta)
	gray := color.New(color.FgHiBlack)
	okStyle := color.New(color.FgGreen, color.Bold)
	failStyle := color.New(color.FgRed, color.Bold)

	modules := []Module{
		UserModule{Style: gray},
		HostModule{Style: gray},
		PathModule{Style: cyan},
		GitModule{Style: purple},
		shellLevelModule{Style: gray},
		JobsModule{Style: green},
		SymbolModule{OKStyle: okStyle, FailStyle: failStyle},
	}
	order := []string{"user", "host", "path", "git", "modules", "shlvl", "jobs", "symbol"}
	return modules, order
}
