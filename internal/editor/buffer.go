// Package editor implements krusty's Line Editor (spec §4.H): a
// keypress-driven cursor model and display layer running on a raw-mode
// tty, plus history browsing, reverse incremental search, and
// suggestion overlay navigation.
//
// Grounded on diillson-chatcli/cli/multiline_input.go's terminal
// restore idiom (`stty sane`/`stty echo` on exit, generalized here to
// golang.org/x/term's raw-mode save/restore) and
// diillson-chatcli/cli/paste/detector.go's ESC[200~/ESC[201~
// bracketed-paste byte-sequence state machine; the keypress FSM and
// cursor/word-movement model itself is spec's own contract (§4.H), not
// something the teacher's line-mode bufio.Reader input needed.
package editor

import "strings"

// Buffer is the Line Editor's cursor model: a logical rune sequence
// with a single cursor index in [0, len(runes)].
type Buffer struct {
	runes  []rune
	cursor int
}

// NewBuffer builds a Buffer pre-populated with text, cursor at the end.
func NewBuffer(text string) *Buffer {
	runes := []rune(text)
	return &Buffer{runes: runes, cursor: len(runes)}
}

// String returns the buffer's current text.
func (b *Buffer) String() string { return string(b.runes) }

// Cursor returns the current logical cursor index.
func (b *Buffer) Cursor() int { return b.cursor }

// Len returns the rune length of the buffer.
func (b *Buffer) Len() int { return len(b.runes) }

// Insert inserts s at the cursor, advancing the cursor past it.
func (b *Buffer) Insert(s string) {
	r := []rune(s)
	b.runes = append(b.runes[:b.cursor], append(append([]rune(nil), r...), b.runes[b.cursor:]...)...)
	b.cursor += len(r)
}

// DeleteBackward removes the rune before the cursor (backspace).
func (b *Buffer) DeleteBackward() bool {
	if b.cursor == 0 {
		return false
	}
	b.runes = append(b.runes[:b.cursor-1], b.runes[b.cursor:]...)
	b.cursor--
	return true
}

// DeleteForward removes the rune at the cursor (delete).
func (b *Buffer) DeleteForward() bool {
	if b.cursor >= len(b.runes) {
		return false
	}
	b.runes = append(b.runes[:b.cursor], b.runes[b.cursor+1:]...)
	return true
}

// MoveLeft moves the cursor one rune left, clamped at 0.
func (b *Buffer) MoveLeft() {
	if b.cursor > 0 {
		b.cursor--
	}
}

// MoveRight moves the cursor one rune right, clamped at len.
func (b *Buffer) MoveRight() {
	if b.cursor < len(b.runes) {
		b.cursor++
	}
}

// Home moves the cursor to the start of the current logical line.
func (b *Buffer) Home() {
	b.cursor = b.lineStart(b.cursor)
}

// End moves the cursor to the end of the current logical line.
func (b *Buffer) End() {
	b.cursor = b.lineEnd(b.cursor)
}

// KillToEnd deletes from the cursor to the end of the current line,
// returning the killed text.
func (b *Buffer) KillToEnd() string {
	end := b.lineEnd(b.cursor)
	killed := string(b.runes[b.cursor:end])
	b.runes = append(b.runes[:b.cursor], b.runes[end:]...)
	return killed
}

// KillToStart deletes from the start of the current line to the
// cursor, returning the killed text.
func (b *Buffer) KillToStart() string {
	start := b.lineStart(b.cursor)
	killed := string(b.runes[start:b.cursor])
	b.runes = append(b.runes[:start], b.runes[b.cursor:]...)
	b.cursor = start
	return killed
}

// isWordRune matches spec §4.H's word heuristic: `\w` or `[\w-]`.
func isWordRune(r rune) bool {
	return r == '_' || r == '-' ||
		(r >= '0' && r <= '9') ||
		(r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z')
}

// MoveWordLeft skips whitespace/punctuation then a word run, landing on
// the start of the previous word.
func (b *Buffer) MoveWordLeft() {
	i := b.cursor
	for i > 0 && !isWordRune(b.runes[i-1]) {
		i--
	}
	for i > 0 && isWordRune(b.runes[i-1]) {
		i--
	}
	b.cursor = i
}

// MoveWordRight skips the current word run then whitespace/punctuation,
// landing on the start of the next word.
func (b *Buffer) MoveWordRight() {
	i := b.cursor
	n := len(b.runes)
	for i < n && isWordRune(b.runes[i]) {
		i++
	}
	for i < n && !isWordRune(b.runes[i]) {
		i++
	}
	b.cursor = i
}

// DeleteWordLeft deletes the word run (and preceding separators) to the
// left of the cursor, returning the killed text.
func (b *Buffer) DeleteWordLeft() string {
	start := b.cursor
	b.MoveWordLeft()
	killed := string(b.runes[b.cursor:start])
	b.runes = append(b.runes[:b.cursor], b.runes[start:]...)
	return killed
}

// DeleteWordRight deletes the word run (and following separators) to
// the right of the cursor, returning the killed text.
func (b *Buffer) DeleteWordRight() string {
	start := b.cursor
	saved := b.cursor
	b.MoveWordRight()
	end := b.cursor
	b.cursor = saved
	killed := string(b.runes[start:end])
	b.runes = append(b.runes[:start], b.runes[end:]...)
	return killed
}

// LineColumn returns the (lineIndex, column) position of the cursor, both
// 0-based, splitting the buffer on '\n'.
func (b *Buffer) LineColumn() (line, col int) {
	text := string(b.runes[:b.cursor])
	lines := strings.Split(text, "\n")
	return len(lines) - 1, len([]rune(lines[len(lines)-1]))
}

// MoveUp moves the cursor up one logical line, preserving column
// (clamped to the target line's length). Returns false if already on
// the first line.
func (b *Buffer) MoveUp() bool {
	lines, idx, col := b.splitAroundCursor()
	if idx == 0 {
		return false
	}
	target := lines[idx-1]
	if col > len(target) {
		col = len(target)
	}
	b.cursor = b.offsetOf(lines, idx-1, col)
	return true
}

// MoveDown moves the cursor down one logical line, preserving column
// (clamped). Returns false if already on the last line.
func (b *Buffer) MoveDown() bool {
	lines, idx, col := b.splitAroundCursor()
	if idx == len(lines)-1 {
		return false
	}
	target := lines[idx+1]
	if col > len(target) {
		col = len(target)
	}
	b.cursor = b.offsetOf(lines, idx+1, col)
	return true
}

func (b *Buffer) splitAroundCursor() (lines []string, idx, col int) {
	full := string(b.runes)
	lines = strings.Split(full, "\n")
	line, column := b.LineColumn()
	return lines, line, column
}

func (b *Buffer) offsetOf(lines []string, targetLine, col int) int {
	offset := 0
	for i := 0; i < targetLine; i++ {
		offset += len([]rune(lines[i])) + 1 // +1 for the newline
	}
	return offset + col
}

func (b *Buffer) lineStart(from int) int {
	i := from
	for i > 0 && b.runes[i-1] != '\n' {
		i--
	}
	return i
}

func (b *Buffer) lineEnd(from int) int {
	i := from
	for i < len(b.runes) && b.runes[i] != '\n' {
		i++
	}
	return i
}

// SetText replaces the buffer's contents wholesale, placing the cursor
// at the end — used by history browsing and reverse-search acceptance.
func (b *Buffer) SetText(text string) {
	b.runes = []rune(text)
	b.cursor = len(b.runes)
}
