package editor

import "bytes"

var (
	pasteStartSeq = []byte{0x1b, '[', '2', '0', '0', '~'}
	pasteEndSeq   = []byte{0x1b, '[', '2', '0', '1', '~'}
)

// EnableBracketedPaste / DisableBracketedPaste are the DECSET/DECRST
// sequences a terminal needs to wrap pasted text in pasteStartSeq/
// pasteEndSeq instead of delivering it as ordinary keystrokes.
const (
	EnableBracketedPaste  = "\x1b[?2004h"
	DisableBracketedPaste = "\x1b[?2004l"
)

// PasteDetector accumulates raw tty bytes and reports complete pastes,
// mirroring cli/paste/detector.go's start/end bracket state machine.
type PasteDetector struct {
	pasting bool
	buf     bytes.Buffer
}

// Feed consumes one chunk of raw bytes. While inside a bracketed-paste
// region, bytes are buffered rather than returned for normal key
// decoding; passthrough holds whatever bytes (if any) fall outside a
// paste region and should go through DecodeKey as usual. content is
// non-empty exactly when a complete paste was just closed.
func (p *PasteDetector) Feed(data []byte) (passthrough []byte, content string, complete bool) {
	for len(data) > 0 {
		if !p.pasting {
			if i := bytes.Index(data, pasteStartSeq); i >= 0 {
				passthrough = append(passthrough, data[:i]...)
				data = data[i+len(pasteStartSeq):]
				p.pasting = true
				p.buf.Reset()
				continue
			}
			passthrough = append(passthrough, data...)
			return passthrough, "", false
		}

		if i := bytes.Index(data, pasteEndSeq); i >= 0 {
			p.buf.Write(data[:i])
			p.pasting = false
			content = p.buf.String()
			complete = true
			p.buf.Reset()
			// Any bytes after the close sequence are ordinary
			// keystrokes (or the start of a second paste); leave them
			// for the next Feed call rather than reprocessing them
			// against a stale loop state.
			passthrough = append(passthrough, data[i+len(pasteEndSeq):]...)
			return passthrough, content, complete
		}
		p.buf.Write(data)
		return passthrough, "", false
	}
	return passthrough, content, complete
}

// Pasting reports whether a bracketed-paste region is currently open.
func (p *PasteDetector) Pasting() bool { return p.pasting }
