package editor

import "testing"

func TestStripANSIRemovesEscapeSequences(t *testing.T) {
	s := "\x1b[31mred\x1b[0m text"
	if got := StripANSI(s); got != "red text" {
		t.Fatalf("got %q", got)
	}
}

func TestDisplayWidthPlainASCII(t *testing.T) {
	if w := DisplayWidth("hello"); w != 5 {
		t.Fatalf("got %d", w)
	}
}

func TestDisplayWidthIgnoresANSI(t *testing.T) {
	s := "\x1b[1mhi\x1b[0m"
	if w := DisplayWidth(s); w != 2 {
		t.Fatalf("got %d", w)
	}
}

func TestDisplayWidthEastAsianWideIsTwo(t *testing.T) {
	// CJK unified ideograph, full-width.
	if w := DisplayWidth("中"); w != 2 {
		t.Fatalf("got %d", w)
	}
}

func TestDisplayWidthCombiningMarkIsZero(t *testing.T) {
	// 'e' + combining acute accent (U+0301).
	if w := DisplayWidth("é"); w != 1 {
		t.Fatalf("got %d", w)
	}
}

func TestDisplayWidthControlCharIsZero(t *testing.T) {
	if w := DisplayWidth("a\tb"); w != 2 {
		t.Fatalf("got %d", w)
	}
}
