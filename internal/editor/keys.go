package editor

// Key identifies one decoded keypress or control sequence the editor's
// state machine dispatches on.
type Key int

const (
	KeyRune Key = iota // printable rune, carried in KeyEvent.Rune
	KeyEnter
	KeyBackspace
	KeyDelete
	KeyLeft
	KeyRight
	KeyUp
	KeyDown
	KeyHome
	KeyEnd
	KeyCtrlA
	KeyCtrlC
	KeyCtrlD
	KeyCtrlE
	KeyCtrlK
	KeyCtrlR
	KeyCtrlU
	KeyCtrlW
	KeyAltLeft  // word-left
	KeyAltRight // word-right
	KeyAltBackspace
	KeyAltD // delete-word-right
	KeyEscape
	KeyTab
	KeyUnknown
)

// KeyEvent is one decoded input event.
type KeyEvent struct {
	Key  Key
	Rune rune
}

// DecodeKey consumes one key event from the front of buf (raw bytes
// read from the tty) and returns it plus the number of bytes consumed.
// Multi-byte UTF-8 runes and ANSI cursor/escape sequences are decoded
// as a single event; an incomplete escape sequence at the end of buf
// returns consumed == 0 so the caller can read more bytes and retry.
func DecodeKey(buf []byte) (KeyEvent, int) {
	if len(buf) == 0 {
		return KeyEvent{Key: KeyUnknown}, 0
	}

	b0 := buf[0]
	switch b0 {
	case 0x01:
		return KeyEvent{Key: KeyCtrlA}, 1
	case 0x03:
		return KeyEvent{Key: KeyCtrlC}, 1
	case 0x04:
		return KeyEvent{Key: KeyCtrlD}, 1
	case 0x05:
		return KeyEvent{Key: KeyCtrlE}, 1
	case 0x0b:
		return KeyEvent{Key: KeyCtrlK}, 1
	case 0x12:
		return KeyEvent{Key: KeyCtrlR}, 1
	case 0x15:
		return KeyEvent{Key: KeyCtrlU}, 1
	case 0x17:
		return KeyEvent{Key: KeyCtrlW}, 1
	case '\r', '\n':
		return KeyEvent{Key: KeyEnter}, 1
	case 0x7f, 0x08:
		return KeyEvent{Key: KeyBackspace}, 1
	case '\t':
		return KeyEvent{Key: KeyTab}, 1
	case 0x1b:
		return decodeEscape(buf)
	}

	if b0 < 0x80 {
		return KeyEvent{Key: KeyRune, Rune: rune(b0)}, 1
	}

	// Multi-byte UTF-8: decode the full rune.
	r, size := decodeUTF8(buf)
	return KeyEvent{Key: KeyRune, Rune: r}, size
}

func decodeEscape(buf []byte) (KeyEvent, int) {
	if len(buf) < 2 {
		return KeyEvent{}, 0 // need more bytes
	}
	if buf[1] == 0x1b {
		return KeyEvent{Key: KeyEscape}, 1
	}
	if buf[1] != '[' && buf[1] != 'O' {
		// Alt+<char> (ESC followed directly by a printable byte).
		return KeyEvent{Key: altKeyFor(buf[1])}, 2
	}
	if len(buf) < 3 {
		return KeyEvent{}, 0
	}
	switch buf[2] {
	case 'A':
		return KeyEvent{Key: KeyUp}, 3
	case 'B':
		return KeyEvent{Key: KeyDown}, 3
	case 'C':
		return KeyEvent{Key: KeyRight}, 3
	case 'D':
		return KeyEvent{Key: KeyLeft}, 3
	case 'H':
		return KeyEvent{Key: KeyHome}, 3
	case 'F':
		return KeyEvent{Key: KeyEnd}, 3
	}
	// Longer CSI sequence (e.g. modified arrows "\x1b[1;5C", delete
	// "\x1b[3~"): scan to the terminating alpha/tilde byte.
	for i := 2; i < len(buf); i++ {
		if (buf[i] >= 'a' && buf[i] <= 'z') || (buf[i] >= 'A' && buf[i] <= 'Z') || buf[i] == '~' {
			return classifyCSI(buf[:i+1]), i + 1
		}
		if i-2 > 16 {
			break // malformed/too long; bail rather than hang
		}
	}
	return KeyEvent{}, 0
}

func classifyCSI(seq []byte) KeyEvent {
	last := seq[len(seq)-1]
	switch {
	case last == '~' && len(seq) >= 3 && seq[2] == '3':
		return KeyEvent{Key: KeyDelete}
	case last == 'C':
		return KeyEvent{Key: KeyAltRight}
	case last == 'D':
		return KeyEvent{Key: KeyAltLeft}
	case last == 'A':
		return KeyEvent{Key: KeyUp}
	case last == 'B':
		return KeyEvent{Key: KeyDown}
	default:
		return KeyEvent{Key: KeyUnknown}
	}
}

func altKeyFor(b byte) Key {
	switch b {
	case 'b':
		return KeyAltLeft
	case 'f':
		return KeyAltRight
	case 'd':
		return KeyAltD
	case 0x7f:
		return KeyAltBackspace
	default:
		return KeyUnknown
	}
}

func decodeUTF8(buf []byte) (rune, int) {
	b0 := buf[0]
	var size int
	switch {
	case b0&0xe0 == 0xc0:
		size = 2
	case b0&0xf0 == 0xe0:
		size = 3
	case b0&0xf8 == 0xf0:
		size = 4
	default:
		return rune(b0), 1
	}
	if len(buf) < size {
		return 0, 0 // incomplete, need more bytes
	}
	r := rune(b0 & (0xff >> uint(size+1)))
	for i := 1; i < size; i++ {
		r = r<<6 | rune(buf[i]&0x3f)
	}
	return r, size
}
