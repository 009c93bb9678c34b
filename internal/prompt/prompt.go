// Package prompt implements krusty's Prompt Composer (spec §4.J):
// renders a format string against a set of pluggable modules (path,
// git, symbol, user, host, ...), each an external collaborator with
// contract `Detect(ctx) bool` / `Render(ctx) (Segment, bool)`.
//
// Grounded on diillson-chatcli/cli/colors.go's colorize/colorizeForPrompt
// pair (ANSI wrapping with ignore-markers so a line editor computes
// prompt width correctly) and cli/animation_manager.go's terminal-state
// discipline (always reset colors, never leave a partial escape on
// screen) — generalized from chatcli's fixed two-color prompt to
// krusty's themeable, module-driven one.
package prompt

import (
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/krustyshell/krusty/internal/editor"
)

// Context is the read-only snapshot passed to every module on each
// render. Modules must not retain it past Render.
type Context struct {
	Cwd        string
	Home       string
	User       string
	Host       string
	ExitCode   int
	JobCount   int
	Env        map[string]string
	ShellLevel int
}

// Segment is one module's rendered output: plain text content plus an
// optional style to colorize it with.
type Segment struct {
	Content string
	Style   *color.Color
}

// Module is a prompt segment's external-collaborator contract: Detect
// decides whether the module applies to ctx at all (e.g. the git
// module detects a repository root), Render produces its Segment.
type Module interface {
	Name() string
	Detect(ctx Context) bool
	Render(ctx Context) (Segment, bool)
}

// Config wires the Composer to the shell's theme and TTY policy.
type Config struct {
	Modules []Module
	// Format lists module names in render order; a name with no
	// registered Module (or whose Detect/Render declines) is skipped.
	Format []string
	// SimpleWhenNotTTY strips ANSI styling when stdout is not a TTY,
	// or NO_COLOR is set, or TERM=dumb, or FORCE_COLOR=0. New uses the
	// value as given; false keeps styling in every case.
	SimpleWhenNotTTY bool
	IsTTY            func() bool
	Getenv           func(string) string
}

// Composer renders a prompt string from configured modules.
type Composer struct {
	cfg    Config
	byName map[string]Module
}

func New(cfg Config) *Composer {
	if cfg.IsTTY == nil {
		cfg.IsTTY = func() bool {
			fi, err := os.Stdout.Stat()
			if err != nil {
				return false
			}
			return fi.Mode()&os.ModeCharDevice != 0
		}
	}
	if cfg.Getenv == nil {
		cfg.Getenv = os.Getenv
	}
	byName := make(map[string]Module, len(cfg.Modules))
	for _, m := range cfg.Modules {
		byName[m.Name()] = m
	}
	return &Composer{cfg: cfg, byName: byName}
}

// plain reports whether ANSI styling should be suppressed for this
// render, per spec's simpleWhenNotTTY rule.
func (c *Composer) plain() bool {
	if !c.cfg.SimpleWhenNotTTY {
		return false
	}
	if v := c.cfg.Getenv("NO_COLOR"); v != "" {
		return true
	}
	if c.cfg.Getenv("TERM") == "dumb" {
		return true
	}
	if c.cfg.Getenv("FORCE_COLOR") == "0" {
		return true
	}
	return !c.cfg.IsTTY()
}

// Render runs every configured, detected module in order, joins their
// rendered segments with a single space, and applies theme colors
// unless plain rendering is in effect. The returned string's on-screen
// width (via internal/editor.DisplayWidth) reflects exactly what a
// terminal would draw, so the line editor can place the cursor
// correctly after it.
func (c *Composer) Render(ctx Context) string {
	plain := c.plain()
	var parts []string
	for _, name := range c.cfg.Format {
		m, ok := c.byName[name]
		if !ok || !m.Detect(ctx) {
			continue
		}
		seg, ok := m.Render(ctx)
		if !ok || seg.Content == "" {
			continue
		}
		parts = append(parts, renderSegment(seg, plain))
	}
	return strings.Join(parts, " ")
}

// Width is the on-screen column width of a composed prompt string,
// ANSI escapes and wide/combining runes accounted for.
func Width(rendered string) int {
	return editor.DisplayWidth(rendered)
}

func renderSegment(seg Segment, plain bool) string {
	if plain || seg.Style == nil {
		return editor.StripANSI(seg.Content)
	}
	return wrapForPrompt(seg.Style.Sprint(seg.Content))
}

// ignoreStart/ignoreEnd are the SOH/STX markers readline-style line
// editors use to exclude non-printing bytes from prompt-width
// accounting, matching chatcli's colorizeForPrompt convention.
const (
	ignoreStart = "\x01"
	ignoreEnd   = "\x02"
)

// wrapForPrompt brackets every ANSI escape run in s with ignore
// markers so a raw-mode line editor's width accounting (which already
// strips ANSI via internal/editor.DisplayWidth) stays correct even if
// the rendered prompt is fed to a reader that does its own
// byte-counting instead.
func wrapForPrompt(s string) string {
	var b strings.Builder
	inEscape := false
	for i := 0; i < len(s); i++ {
		if s[i] == '\x1b' {
			b.WriteString(ignoreStart)
			inEscape = true
		}
		b.WriteByte(s[i])
		if inEscape && isANSITerminator(s[i]) && s[i] != '\x1b' {
			b.WriteString(ignoreEnd)
			inEscape = false
		}
	}
	if inEscape {
		b.WriteString(ignoreEnd)
	}
	return b.String()
}

func isANSITerminator(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
