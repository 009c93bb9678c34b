package editor

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"golang.org/x/term"
)

// ghostDim matches the teacher's own ColorGray ANSI code, used to dim
// the inline suggestion suffix.
const ghostDim = "\x1b[90m"
const ansiReset = "\x1b[0m"

// Session owns the raw-mode terminal lifecycle and the read loop that
// turns tty bytes into Editor key events. Construct one per prompt
// read, or reuse across ReadLine calls on the same fd.
type Session struct {
	ed  *Editor
	in  *os.File
	out io.Writer
	log *zap.Logger

	prompt       func() string
	contPrompt   func() string
	oldState     *term.State
	lastRendered int // number of terminal lines the previous render occupied
}

// NewSession wires an Editor to a real tty for interactive reads.
func NewSession(ed *Editor, in *os.File, out io.Writer, prompt, contPrompt func() string, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	if prompt == nil {
		prompt = func() string { return "$ " }
	}
	if contPrompt == nil {
		contPrompt = func() string { return "> " }
	}
	return &Session{ed: ed, in: in, out: out, log: logger, prompt: prompt, contPrompt: contPrompt}
}

// enterRaw puts the tty into raw mode, matching multiline_input.go's
// restoreTerminal counterpart on the way out (stty sane / stty echo),
// but via golang.org/x/term so no subprocess is spawned per keystroke.
func (s *Session) enterRaw() error {
	fd := int(s.in.Fd())
	if !term.IsTerminal(fd) {
		return nil
	}
	old, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("editor: entering raw mode: %w", err)
	}
	s.oldState = old
	return nil
}

func (s *Session) exitRaw() {
	if s.oldState == nil {
		return
	}
	_ = term.Restore(int(s.in.Fd()), s.oldState)
	s.oldState = nil
}

// ReadLine reads one logical line interactively: raw mode is entered on
// call and restored before returning, matching spec §5's "Terminal:
// exclusively controlled by Line Editor while reading; the executor
// restores terminal state on command boundaries" by never holding raw
// mode past this call.
func (s *Session) ReadLine() (string, error) {
	s.ed.Reset()
	if err := s.enterRaw(); err != nil {
		return "", err
	}
	defer s.exitRaw()
	defer s.clearRender()

	s.render()

	buf := make([]byte, 4096)
	var pending []byte
	for {
		if len(pending) == 0 {
			n, err := s.in.Read(buf)
			if n > 0 {
				pending = append(pending, buf[:n]...)
			}
			if n == 0 && err != nil {
				return "", err
			}
		}

		passthrough, content, complete := s.ed.paste.Feed(pending)
		pending = nil
		if complete {
			s.ed.FeedPaste(content)
			s.render()
			continue
		}

		for len(passthrough) > 0 {
			ev, consumed := DecodeKey(passthrough)
			if consumed == 0 {
				// Incomplete multi-byte/escape sequence: keep the
				// remainder and read more bytes to complete it.
				pending = passthrough
				break
			}
			passthrough = passthrough[consumed:]

			switch s.ed.HandleKey(ev) {
			case OutcomeSubmit:
				line := s.ed.Buffer().String()
				s.render()
				fmt.Fprint(s.out, "\r\n")
				return line, nil
			case OutcomeEOF:
				fmt.Fprint(s.out, "\r\n")
				return "", io.EOF
			case OutcomeInterrupt:
				fmt.Fprint(s.out, "^C\r\n")
				s.ed.Reset()
				s.render()
			default:
				s.render()
			}
		}
	}
}

// render redraws the prompt, buffer (with continuation prompts for
// embedded newlines), and any active overlay (ghost suggestion, search
// status line, suggestion list), clearing exactly the region the
// previous render occupied first.
func (s *Session) render() {
	s.clearRender()

	var out []byte
	lines := splitLinesKeep(s.ed.Buffer().String())
	primary := s.prompt()
	for i, line := range lines {
		if i == 0 {
			out = append(out, primary...)
		} else {
			out = append(out, '\r', '\n')
			out = append(out, s.contPrompt()...)
		}
		out = append(out, line...)
	}
	if g := s.ed.Ghost(); g != "" {
		out = append(out, ghostDim...)
		out = append(out, g...)
		out = append(out, ansiReset...)
	}

	if q, match, ok := s.ed.Searching(); ok || q != "" {
		out = append(out, '\r', '\n')
		out = append(out, fmt.Sprintf("(reverse-i-search)`%s': %s", q, match)...)
	}

	if groups, gi, row, col, showing := s.ed.ListView(); showing {
		out = append(out, renderGroups(groups, gi, row, col)...)
	}

	s.out.Write(out)
	s.lastRendered = countLines(out)
}

func splitLinesKeep(s string) []string {
	var lines []string
	start := 0
	for i, r := range s {
		if r == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	lines = append(lines, s[start:])
	return lines
}

func countLines(b []byte) int {
	n := 1
	for _, c := range b {
		if c == '\n' {
			n++
		}
	}
	return n
}

func renderGroups(groups []suggestionGroup, curGroup, curRow, curCol int) string {
	var out string
	for gi, g := range groups {
		out += "\r\n"
		if g.Name != "" {
			out += g.Name + ":\r\n"
		}
		for idx, item := range g.Items {
			row, col := idx/g.Cols, idx%g.Cols
			label := item.Label
			if gi == curGroup && row == curRow && col == curCol {
				label = "[" + label + "]"
			}
			out += label + "  "
			if col == g.Cols-1 {
				out += "\r\n"
			}
		}
	}
	return out
}

// clearRender erases whatever the previous render() call drew, using
// plain ANSI cursor-up + clear-line sequences so the next render starts
// from a clean region.
func (s *Session) clearRender() {
	if s.lastRendered <= 0 {
		return
	}
	for i := 0; i < s.lastRendered; i++ {
		if i > 0 {
			fmt.Fprint(s.out, "\x1b[1A")
		}
		fmt.Fprint(s.out, "\r\x1b[2K")
	}
	s.lastRendered = 0
}
