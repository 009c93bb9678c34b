package editor

import (
	"regexp"
	"unicode"

	runewidth "github.com/mattn/go-runewidth"
)

// ansiEscapePattern matches a CSI/OSC-style ANSI escape sequence so
// display width accounting can skip it entirely.
var ansiEscapePattern = regexp.MustCompile(`\x1b\[[0-9;?]*[a-zA-Z]|\x1b\][^\x07]*\x07`)

// StripANSI removes ANSI escape sequences from s, for plain-text width
// accounting and for rendering to a non-TTY sink.
func StripANSI(s string) string {
	return ansiEscapePattern.ReplaceAllString(s, "")
}

// DisplayWidth computes s's on-screen column width: ANSI escapes
// contribute 0, control characters contribute 0, combining marks
// contribute 0, East Asian wide/fullwidth runes contribute 2, and
// everything else contributes go-runewidth's single/double-width
// verdict (ambiguous-width runes are treated as narrow, matching a
// typical non-CJK-locale terminal).
func DisplayWidth(s string) int {
	s = StripANSI(s)
	width := 0
	for _, r := range s {
		width += RuneWidth(r)
	}
	return width
}

// RuneWidth returns one rune's display width contribution.
func RuneWidth(r rune) int {
	if r == '\x1b' || unicode.IsControl(r) {
		return 0
	}
	if unicode.Is(unicode.Mn, r) || unicode.Is(unicode.Me, r) {
		return 0 // combining marks
	}
	return runewidth.RuneWidth(r)
}
