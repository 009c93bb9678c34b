// Package history implements krusty's History Store (spec §4.G): a
// file-backed, UTF-8, one-command-per-line command history with
// add-time dedup/rejection policies, a capacity cap, multi-mode search,
// and the `!!`/`!n`/`!prefix` expansion references the Expansion
// Engine consults.
//
// Grounded on diillson-chatcli/cli/history_manager.go's synchronous
// load-on-construction plus size-capped-with-backup save, generalized
// from a byte-size cap to spec's entry-count cap and from a bare
// load/save pair to the full add/search/expand/stats surface.
package history

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/sahilm/fuzzy"
	"go.uber.org/zap"
)

// Options configures one Store.
type Options struct {
	Path             string
	MaxEntries       int
	IgnoreSpace      bool // reject entries with a leading space
	IgnoreDuplicates bool // reject a consecutive duplicate of the last entry
}

// DefaultMaxEntries matches a conventional interactive shell's history
// cap when Options.MaxEntries is left zero.
const DefaultMaxEntries = 10000

// Store is one session's command history, synchronously loaded at
// construction so the shell can reference it (e.g. for `!!` expansion)
// before any background reconciliation finishes.
type Store struct {
	mu      sync.Mutex
	path    string
	max     int
	opts    Options
	entries []string
	log     *zap.Logger
}

// Open loads opts.Path synchronously (a missing file is not an error,
// matching the teacher's LoadHistory treating os.IsNotExist as empty
// history) and returns a ready Store.
func Open(opts Options, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultMaxEntries
	}
	s := &Store{path: opts.Path, max: opts.MaxEntries, opts: opts, log: logger}

	entries, err := loadFile(opts.Path)
	if err != nil {
		return nil, err
	}
	s.entries = entries
	return s, nil
}

func loadFile(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("history: opening %q: %w", path, err)
	}
	defer f.Close()

	var entries []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		entries = append(entries, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("history: reading %q: %w", path, err)
	}
	return entries, nil
}

// Add appends cmd to history, applying the reject/dedup/cap policies.
// Returns false if cmd was rejected (empty, leading-space, or a
// consecutive duplicate under the configured policy).
func (s *Store) Add(cmd string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cmd == "" {
		return false
	}
	if s.opts.IgnoreSpace && strings.HasPrefix(cmd, " ") {
		return false
	}
	if s.opts.IgnoreDuplicates && len(s.entries) > 0 && s.entries[len(s.entries)-1] == cmd {
		return false
	}

	s.entries = append(s.entries, cmd)
	if len(s.entries) > s.max {
		s.entries = s.entries[len(s.entries)-s.max:]
	}
	return true
}

// Save writes the full in-memory history to disk, one entry per line.
func (s *Store) Save() error {
	s.mu.Lock()
	entries := append([]string(nil), s.entries...)
	path := s.path
	s.mu.Unlock()

	if path == "" {
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		s.log.Warn("could not save history", zap.String("path", path), zap.Error(err))
		return fmt.Errorf("history: saving %q: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, e := range entries {
		fmt.Fprintln(w, e)
	}
	return w.Flush()
}

// All returns a copy of every entry, oldest first.
func (s *Store) All() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.entries...)
}

// Clear discards every in-memory entry (`history -c`). Callers wanting
// the change to survive the session must call Save afterward.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
}

// Len returns the current entry count.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// SearchMode selects one of spec §4.G's four search algorithms.
type SearchMode int

const (
	SearchExact SearchMode = iota
	SearchStartsWith
	SearchRegex
	SearchFuzzy
)

// Search returns entries matching query under mode, capped at limit
// entries (limit <= 0 means unlimited). Results are most-recent first,
// except under SearchFuzzy, where they are ordered by match score, best
// first.
func (s *Store) Search(query string, mode SearchMode, limit int) []string {
	s.mu.Lock()
	entries := append([]string(nil), s.entries...)
	s.mu.Unlock()

	var matched []string
	switch mode {
	case SearchExact:
		lq := strings.ToLower(query)
		for _, e := range entries {
			if strings.Contains(strings.ToLower(e), lq) {
				matched = append(matched, e)
			}
		}
	case SearchStartsWith:
		lq := strings.ToLower(query)
		for _, e := range entries {
			if strings.HasPrefix(strings.ToLower(e), lq) {
				matched = append(matched, e)
			}
		}
	case SearchRegex:
		re, err := regexp.Compile(query)
		if err != nil {
			return nil
		}
		for _, e := range entries {
			if re.MatchString(e) {
				matched = append(matched, e)
			}
		}
	case SearchFuzzy:
		results := fuzzy.Find(query, entries)
		sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
		// Appended worst score first so the reversal below leaves the
		// best score first.
		for i := len(results) - 1; i >= 0; i-- {
			matched = append(matched, results[i].Str)
		}
	}

	reverse(matched)
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched
}

func reverse(ss []string) {
	for i, j := 0, len(ss)-1; i < j; i, j = i+1, j-1 {
		ss[i], ss[j] = ss[j], ss[i]
	}
}

var bangRefPattern = regexp.MustCompile(`^!(!|-?\d+|[^\s!]+)$`)

// ExpandRef resolves a history reference to the command text it refers
// to. ref may be given in full (`!!`, `!n`, `!prefix`) or as the body
// after the leading '!' (`!`, `n`, `prefix`), the form the expansion
// engine passes, so Store satisfies expand.HistoryExpander. ok is false
// if ref doesn't match the reference grammar or no entry satisfies it.
func (s *Store) ExpandRef(ref string) (string, bool) {
	if ref == "!" || !strings.HasPrefix(ref, "!") {
		ref = "!" + ref
	}
	m := bangRefPattern.FindStringSubmatch(ref)
	if m == nil {
		return "", false
	}
	spec := m[1]

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.entries) == 0 {
		return "", false
	}

	if spec == "!" {
		return s.entries[len(s.entries)-1], true
	}
	if n, err := strconv.Atoi(spec); err == nil {
		idx := n - 1
		if n < 0 {
			idx = len(s.entries) + n
		}
		if idx < 0 || idx >= len(s.entries) {
			return "", false
		}
		return s.entries[idx], true
	}
	for i := len(s.entries) - 1; i >= 0; i-- {
		if strings.HasPrefix(s.entries[i], spec) {
			return s.entries[i], true
		}
	}
	return "", false
}

// Stats summarizes the history store for a `history stats`-style
// builtin.
type Stats struct {
	Count      int
	Path       string
	MaxEntries int
}

func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{Count: len(s.entries), Path: s.path, MaxEntries: s.max}
}
