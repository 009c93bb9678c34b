package editor

import (
	"strings"

	"go.uber.org/zap"
)

// HistorySource is the subset of internal/history.Store the editor
// needs for browsing and reverse search.
type HistorySource interface {
	All() []string
}

// Outcome is what a processed keypress means for the caller's read
// loop: keep editing, submit the line, cancel (EOF on an empty
// buffer), or restart with a cleared buffer (Ctrl+C).
type Outcome int

const (
	OutcomeContinue Outcome = iota
	OutcomeSubmit
	OutcomeEOF
	OutcomeInterrupt
)

// Config holds the editor's fixed (non-mutating-per-keystroke) options.
type Config struct {
	Completer            Completer
	History              HistorySource
	AcceptGhostKey       Key
	MaxSuggestions       int
	SuppressHistoryMerge bool // permanent override, e.g. a config flag
	SuppressHistoryForCd bool
	TerminalWidth        func() int
}

// Editor is the single-line (or soft-wrapped multi-line) interactive
// input state machine. Its exported methods that mutate state (FeedPaste,
// HandleKey) contain no terminal I/O and are unit-testable directly;
// ReadLine in termio.go owns the raw-mode byte loop around it.
type Editor struct {
	cfg Config
	log *zap.Logger

	buf   *Buffer
	paste PasteDetector

	browsingHistory bool
	originalInput   string
	historyMatches  []string
	historyPos      int // -1 == original_input, else index into historyMatches

	searching       bool
	searchQuery     string
	preSearchText   string
	searchMatches   []string
	searchPos       int

	listView    bool
	groups      []suggestionGroup
	curGroup    int
	curRow      int
	curCol      int
	oneShotHide bool

	ghost string
}

// New constructs an Editor with an empty buffer.
func New(cfg Config, logger *zap.Logger) *Editor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxSuggestions <= 0 {
		cfg.MaxSuggestions = 20
	}
	if cfg.TerminalWidth == nil {
		cfg.TerminalWidth = func() int { return 80 }
	}
	return &Editor{cfg: cfg, log: logger, buf: NewBuffer(""), historyPos: -1}
}

// Buffer exposes the underlying edit buffer for rendering.
func (e *Editor) Buffer() *Buffer { return e.buf }

// Reset clears all per-line state so the editor is ready for a new
// prompt.
func (e *Editor) Reset() {
	e.buf = NewBuffer("")
	e.browsingHistory = false
	e.historyPos = -1
	e.searching = false
	e.listView = false
	e.groups = nil
	e.ghost = ""
}

// Ghost returns the dimmed inline suggestion suffix to render after the
// cursor, or "" when none applies.
func (e *Editor) Ghost() string { return e.ghost }

// SuppressHistoryOnce suppresses history-merging into the suggestion
// list for the next time it's computed only, then clears itself.
func (e *Editor) SuppressHistoryOnce() { e.oneShotHide = true }

// Searching reports whether reverse incremental search is active, and
// its current query/best match for status-line rendering.
func (e *Editor) Searching() (query string, match string, ok bool) {
	if !e.searching {
		return "", "", false
	}
	if e.searchPos >= 0 && e.searchPos < len(e.searchMatches) {
		return e.searchQuery, e.searchMatches[e.searchPos], true
	}
	return e.searchQuery, "", true
}

// ListView reports whether the suggestion list overlay is showing, and
// the groups plus the current selection for rendering.
func (e *Editor) ListView() (groups []suggestionGroup, group, row, col int, showing bool) {
	return e.groups, e.curGroup, e.curRow, e.curCol, e.listView
}

// HandleKey applies one decoded keypress to the editor's state and
// reports the resulting Outcome. It never performs terminal I/O.
func (e *Editor) HandleKey(ev KeyEvent) Outcome {
	if e.searching {
		return e.handleSearchKey(ev)
	}
	if e.listView {
		if o, handled := e.handleListKey(ev); handled {
			return o
		}
	}

	switch ev.Key {
	case KeyCtrlC:
		e.Reset()
		return OutcomeInterrupt
	case KeyCtrlD:
		if e.buf.Len() == 0 {
			e.log.Debug("eof on empty buffer")
			return OutcomeEOF
		}
		e.buf.DeleteForward()
	case KeyEnter:
		return OutcomeSubmit
	case KeyCtrlR:
		e.startSearch()
	case KeyBackspace:
		e.exitHistoryBrowse()
		e.buf.DeleteBackward()
	case KeyDelete:
		e.exitHistoryBrowse()
		e.buf.DeleteForward()
	case KeyLeft:
		e.buf.MoveLeft()
	case KeyRight:
		if e.ghost != "" && e.buf.Cursor() == e.buf.Len() {
			e.acceptGhost()
		} else {
			e.buf.MoveRight()
		}
	case KeyUp:
		e.historyUp()
	case KeyDown:
		e.historyDown()
	case KeyHome:
		e.buf.Home()
	case KeyEnd:
		e.buf.End()
	case KeyCtrlA:
		e.buf.Home()
	case KeyCtrlE:
		e.buf.End()
	case KeyCtrlK:
		e.exitHistoryBrowse()
		e.buf.KillToEnd()
	case KeyCtrlU:
		e.exitHistoryBrowse()
		e.buf.KillToStart()
	case KeyCtrlW, KeyAltBackspace:
		e.exitHistoryBrowse()
		e.buf.DeleteWordLeft()
	case KeyAltLeft:
		e.buf.MoveWordLeft()
	case KeyAltRight, KeyAltD:
		if ev.Key == KeyAltD {
			e.exitHistoryBrowse()
			e.buf.DeleteWordRight()
		} else {
			e.buf.MoveWordRight()
		}
	case KeyTab:
		e.toggleListView()
	case KeyEscape:
		if e.listView {
			e.listView = false
		}
	case KeyRune:
		e.exitHistoryBrowse()
		e.buf.Insert(string(ev.Rune))
	}

	if ev.Key != KeyRune && ev.Key == e.cfg.AcceptGhostKey && e.ghost != "" {
		e.acceptGhost()
		return OutcomeContinue
	}

	e.refreshGhost()
	return OutcomeContinue
}

// FeedPaste inserts a completed bracketed paste's content at the
// cursor as a single operation (no per-character key dispatch, so a
// pasted "/mcancel"-looking token or control byte never triggers an
// editor command).
func (e *Editor) FeedPaste(content string) {
	e.exitHistoryBrowse()
	e.buf.Insert(content)
}

func (e *Editor) exitHistoryBrowse() {
	e.browsingHistory = false
	e.historyPos = -1
}

// --- history browsing ---

func (e *Editor) startHistoryBrowse() {
	if e.browsingHistory {
		return
	}
	e.browsingHistory = true
	e.originalInput = e.buf.String()
	e.historyPos = -1
	e.historyMatches = nil
	if e.cfg.History == nil {
		return
	}
	all := e.cfg.History.All()
	for _, x := range all {
		if strings.HasPrefix(x, e.originalInput) {
			e.historyMatches = append(e.historyMatches, x)
		}
	}
	reverseStrings(e.historyMatches)
}

func (e *Editor) historyUp() {
	e.startHistoryBrowse()
	if e.historyPos+1 < len(e.historyMatches) {
		e.historyPos++
		e.buf.SetText(e.historyMatches[e.historyPos])
	}
}

func (e *Editor) historyDown() {
	if !e.browsingHistory {
		return
	}
	if e.historyPos <= 0 {
		e.historyPos = -1
		e.buf.SetText(e.originalInput)
		e.browsingHistory = false
		return
	}
	e.historyPos--
	e.buf.SetText(e.historyMatches[e.historyPos])
}

// --- reverse incremental search ---

func (e *Editor) startSearch() {
	if e.searching {
		e.cycleSearchOlder()
		return
	}
	e.searching = true
	e.preSearchText = e.buf.String()
	e.searchQuery = ""
	e.searchMatches = nil
	e.searchPos = -1
}

func (e *Editor) refreshSearchMatches() {
	e.searchMatches = nil
	e.searchPos = -1
	if e.cfg.History == nil || e.searchQuery == "" {
		return
	}
	var matches []string
	for _, x := range e.cfg.History.All() {
		if strings.Contains(x, e.searchQuery) {
			matches = append(matches, x)
		}
	}
	reverseStrings(matches)
	e.searchMatches = matches
	if len(matches) > 0 {
		e.searchPos = 0
	}
}

func (e *Editor) cycleSearchOlder() {
	if e.searchPos+1 < len(e.searchMatches) {
		e.searchPos++
	}
}

func (e *Editor) handleSearchKey(ev KeyEvent) Outcome {
	switch ev.Key {
	case KeyCtrlR:
		e.cycleSearchOlder()
		return OutcomeContinue
	case KeyEscape:
		e.buf.SetText(e.preSearchText)
		e.searching = false
		return OutcomeContinue
	case KeyBackspace:
		if len(e.searchQuery) > 0 {
			r := []rune(e.searchQuery)
			e.searchQuery = string(r[:len(r)-1])
			e.refreshSearchMatches()
		}
		return OutcomeContinue
	case KeyEnter:
		if match, ok := e.currentSearchMatch(); ok {
			e.buf.SetText(match)
		}
		e.searching = false
		return OutcomeSubmit
	case KeyCtrlC:
		e.buf.SetText(e.preSearchText)
		e.searching = false
		return OutcomeInterrupt
	case KeyRune:
		e.searchQuery += string(ev.Rune)
		e.refreshSearchMatches()
		return OutcomeContinue
	default:
		// Any other key (arrows, Ctrl+A, ...) accepts the current
		// match into the buffer and falls through to ordinary
		// handling of the same key against the new buffer, mirroring
		// readline's reverse-i-search exit-on-navigation behavior.
		if match, ok := e.currentSearchMatch(); ok {
			e.buf.SetText(match)
		}
		e.searching = false
		return e.HandleKey(ev)
	}
}

func (e *Editor) currentSearchMatch() (string, bool) {
	if e.searchPos >= 0 && e.searchPos < len(e.searchMatches) {
		return e.searchMatches[e.searchPos], true
	}
	return "", false
}

// --- suggestion overlay ---

func (e *Editor) toggleListView() {
	if e.listView {
		e.listView = false
		return
	}
	if e.cfg.Completer == nil {
		return
	}
	sugg := e.cfg.Completer.Complete(e.buf.String(), e.buf.Cursor())
	if len(sugg) == 0 {
		return
	}
	suppressHist := e.cfg.SuppressHistoryMerge || e.oneShotHide ||
		(e.cfg.SuppressHistoryForCd && isCdLine(e.buf.String()))
	var histMatches []string
	if e.cfg.History != nil {
		tok := currentToken(e.buf.String(), e.buf.Cursor())
		for _, x := range e.cfg.History.All() {
			if tok == "" || strings.Contains(x, tok) {
				histMatches = append(histMatches, x)
			}
		}
		reverseStrings(histMatches)
	}
	groups := groupSuggestions(sugg, histMatches, e.cfg.MaxSuggestions, suppressHist)
	e.oneShotHide = false
	layoutColumns(groups, e.cfg.TerminalWidth())
	if len(groups) == 0 {
		return
	}
	e.groups = groups
	e.curGroup, e.curRow, e.curCol = 0, 0, 0
	e.listView = true
}

func (e *Editor) handleListKey(ev KeyEvent) (Outcome, bool) {
	switch ev.Key {
	case KeyLeft:
		e.listMoveHoriz(-1)
		return OutcomeContinue, true
	case KeyRight:
		e.listMoveHoriz(1)
		return OutcomeContinue, true
	case KeyUp:
		e.listMoveVert(-1)
		return OutcomeContinue, true
	case KeyDown:
		e.listMoveVert(1)
		return OutcomeContinue, true
	case KeyEnter, KeyTab:
		e.acceptListSelection()
		e.listView = false
		return OutcomeContinue, true
	case KeyEscape, KeyCtrlC:
		e.listView = false
		return OutcomeContinue, true
	}
	return OutcomeContinue, false
}

func (e *Editor) currentGroupItem() (Suggestion, bool) {
	if e.curGroup < 0 || e.curGroup >= len(e.groups) {
		return Suggestion{}, false
	}
	g := e.groups[e.curGroup]
	idx := e.curRow*g.Cols + e.curCol
	if idx < 0 || idx >= len(g.Items) {
		return Suggestion{}, false
	}
	return g.Items[idx], true
}

func (e *Editor) acceptListSelection() {
	item, ok := e.currentGroupItem()
	if !ok {
		return
	}
	tok := currentToken(e.buf.String(), e.buf.Cursor())
	text := e.buf.String()
	cur := e.buf.Cursor()
	runes := []rune(text)
	start := cur - len([]rune(tok))
	if start < 0 {
		start = 0
	}
	newText := string(runes[:start]) + item.Insert + string(runes[cur:])
	e.buf.SetText(newText)
	e.buf.cursor = start + len([]rune(item.Insert))
}

func (e *Editor) listMoveHoriz(delta int) {
	g := &e.groups[e.curGroup]
	if len(g.Items) == 0 {
		return
	}
	idx := e.curRow*g.Cols + e.curCol + delta
	if idx < 0 {
		idx = len(g.Items) - 1
	}
	if idx >= len(g.Items) {
		idx = 0
	}
	e.curRow, e.curCol = idx/g.Cols, idx%g.Cols
}

func (e *Editor) listMoveVert(delta int) {
	if delta > 0 {
		e.listMoveDown()
	} else {
		e.listMoveUp()
	}
}

func (e *Editor) listMoveDown() {
	g := &e.groups[e.curGroup]
	rows := rowCount(g)
	if e.curRow+1 < rows {
		e.setRowColClamped(g, e.curRow+1, e.curCol)
		return
	}
	if e.curGroup+1 < len(e.groups) {
		col := e.curCol
		e.curGroup++
		ng := &e.groups[e.curGroup]
		e.setRowColClamped(ng, 0, col)
	}
}

func (e *Editor) listMoveUp() {
	g := &e.groups[e.curGroup]
	if e.curRow > 0 {
		e.setRowColClamped(g, e.curRow-1, e.curCol)
		return
	}
	if e.curGroup > 0 {
		col := e.curCol
		e.curGroup--
		pg := &e.groups[e.curGroup]
		e.setRowColClamped(pg, rowCount(pg)-1, col)
	}
}

func rowCount(g *suggestionGroup) int {
	if g.Cols <= 0 {
		return 1
	}
	return (len(g.Items) + g.Cols - 1) / g.Cols
}

func (e *Editor) setRowColClamped(g *suggestionGroup, row, col int) {
	if col >= g.Cols {
		col = g.Cols - 1
	}
	if col < 0 {
		col = 0
	}
	idx := row*g.Cols + col
	if idx >= len(g.Items) {
		idx = len(g.Items) - 1
	}
	if idx < 0 {
		idx = 0
	}
	e.curRow, e.curCol = idx/g.Cols, idx%g.Cols
}

// --- inline ghost suggestion ---

func (e *Editor) refreshGhost() {
	e.ghost = ""
	if e.browsingHistory || e.searching || e.listView || e.cfg.Completer == nil {
		return
	}
	if e.buf.Cursor() != e.buf.Len() {
		return // ghost only makes sense appended after a trailing cursor
	}
	sugg := e.cfg.Completer.Complete(e.buf.String(), e.buf.Cursor())
	if len(sugg) == 0 {
		return
	}
	tok := currentToken(e.buf.String(), e.buf.Cursor())
	top := sugg[0]
	if tok != "" && strings.HasPrefix(top.Insert, tok) {
		e.ghost = top.Insert[len(tok):]
	}
}

func (e *Editor) acceptGhost() {
	if e.ghost == "" {
		return
	}
	e.buf.Insert(e.ghost)
	e.ghost = ""
}

func reverseStrings(ss []string) {
	for i, j := 0, len(ss)-1; i < j; i, j = i+1, j-1 {
		ss[i], ss[j] = ss[j], ss[i]
	}
}
