package editor

import "strings"

// Suggestion is one completion candidate offered by a Completer.
type Suggestion struct {
	Label  string // text shown to the user
	Insert string // text that replaces the current token when accepted
	Group  string // "" = ungrouped/flat; non-empty groups render as headed blocks
}

// Completer is satisfied structurally by the Completion Provider
// (component I); kept as a local interface so internal/editor never
// imports internal/completion.
type Completer interface {
	Complete(line string, cursor int) []Suggestion
}

// suggestionGroup is one rendered block of the list view: a name (empty
// for the anonymous flat group), its items, and the column count its
// layout was computed with.
type suggestionGroup struct {
	Name  string
	Items []Suggestion
	Cols  int
}

// groupSuggestions buckets sugg by Group, preserving first-seen group
// order, and appends a trailing "History" group from historyMatches
// when sugg has fewer than max entries and merging isn't suppressed.
func groupSuggestions(sugg []Suggestion, historyMatches []string, max int, suppressHistory bool) []suggestionGroup {
	var order []string
	byGroup := map[string][]Suggestion{}
	for _, s := range sugg {
		if _, ok := byGroup[s.Group]; !ok {
			order = append(order, s.Group)
		}
		byGroup[s.Group] = append(byGroup[s.Group], s)
	}

	if !suppressHistory && len(sugg) < max {
		seen := map[string]bool{}
		for _, s := range sugg {
			seen[s.Label] = true
		}
		var hist []Suggestion
		for _, h := range historyMatches {
			if seen[h] {
				continue
			}
			seen[h] = true
			hist = append(hist, Suggestion{Label: h, Insert: h, Group: "History"})
			if len(sugg)+len(hist) >= max {
				break
			}
		}
		if len(hist) > 0 {
			order = append(order, "History")
			byGroup["History"] = hist
		}
	}

	groups := make([]suggestionGroup, 0, len(order))
	for _, name := range order {
		groups = append(groups, suggestionGroup{Name: name, Items: byGroup[name]})
	}
	return groups
}

// layoutColumns assigns each group a column count derived from
// termWidth and its items' max label width, so Left/Right/Up/Down can
// treat the group as a row-major grid.
func layoutColumns(groups []suggestionGroup, termWidth int) {
	for i := range groups {
		g := &groups[i]
		maxW := 0
		for _, it := range g.Items {
			if w := DisplayWidth(it.Label); w > maxW {
				maxW = w
			}
		}
		cols := 1
		if maxW > 0 && termWidth > 0 {
			cols = termWidth / (maxW + 2)
		}
		if cols < 1 {
			cols = 1
		}
		if cols > len(g.Items) {
			cols = len(g.Items)
		}
		if cols < 1 {
			cols = 1
		}
		g.Cols = cols
	}
}

// currentToken returns the whitespace-delimited run ending at cursor in
// line, used both for ghost-suggestion suffix computation and for
// deciding what a list-view accept replaces.
func currentToken(line string, cursor int) string {
	runes := []rune(line)
	if cursor > len(runes) {
		cursor = len(runes)
	}
	start := cursor
	for start > 0 && !isSpaceRune(runes[start-1]) {
		start--
	}
	return string(runes[start:cursor])
}

func isSpaceRune(r rune) bool {
	return r == ' ' || r == '\t'
}

func isCdLine(line string) bool {
	trimmed := strings.TrimLeft(line, " \t")
	return trimmed == "cd" || strings.HasPrefix(trimmed, "cd ")
}
