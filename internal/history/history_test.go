package history

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T, opts Options) *Store {
	t.Helper()
	if opts.Path == "" {
		opts.Path = filepath.Join(t.TempDir(), "history")
	}
	s, err := Open(opts, nil)
	require.NoError(t, err)
	return s
}

func TestOpenMissingFileIsEmptyNotError(t *testing.T) {
	s := openTemp(t, Options{})
	assert.Equal(t, 0, s.Len())
}

func TestAddRejectsEmpty(t *testing.T) {
	s := openTemp(t, Options{})
	assert.False(t, s.Add(""))
	assert.Equal(t, 0, s.Len())
}

func TestAddRejectsLeadingSpaceWhenIgnoreSpace(t *testing.T) {
	s := openTemp(t, Options{IgnoreSpace: true})
	assert.False(t, s.Add(" secret-command"))
	assert.True(t, s.Add("normal-command"))
	assert.Equal(t, 1, s.Len())
}

func TestAddRejectsConsecutiveDuplicate(t *testing.T) {
	s := openTemp(t, Options{IgnoreDuplicates: true})
	assert.True(t, s.Add("ls"))
	assert.False(t, s.Add("ls"))
	assert.True(t, s.Add("pwd"))
	assert.True(t, s.Add("ls"), "non-consecutive duplicate is allowed")
	assert.Equal(t, 3, s.Len())
}

func TestAddCapsAtMaxEntriesDroppingOldest(t *testing.T) {
	s := openTemp(t, Options{MaxEntries: 2})
	s.Add("one")
	s.Add("two")
	s.Add("three")
	assert.Equal(t, []string{"two", "three"}, s.All())
}

func TestSaveAndReopenRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history")
	s := openTemp(t, Options{Path: path})
	s.Add("echo one")
	s.Add("echo two")
	require.NoError(t, s.Save())

	reopened := openTemp(t, Options{Path: path})
	assert.Equal(t, []string{"echo one", "echo two"}, reopened.All())
}

func TestSearchExactIsCaseInsensitiveSubstring(t *testing.T) {
	s := openTemp(t, Options{})
	s.Add("echo Hello")
	s.Add("ls -la")
	results := s.Search("hello", SearchExact, 0)
	assert.Equal(t, []string{"echo Hello"}, results)
}

func TestSearchStartsWith(t *testing.T) {
	s := openTemp(t, Options{})
	s.Add("git status")
	s.Add("git commit")
	s.Add("ls -la")
	results := s.Search("git", SearchStartsWith, 0)
	assert.ElementsMatch(t, []string{"git status", "git commit"}, results)
}

func TestSearchRegexInvalidReturnsEmpty(t *testing.T) {
	s := openTemp(t, Options{})
	s.Add("echo hi")
	results := s.Search("[", SearchRegex, 0)
	assert.Empty(t, results)
}

func TestSearchMostRecentFirst(t *testing.T) {
	s := openTemp(t, Options{})
	s.Add("git a")
	s.Add("git b")
	results := s.Search("git", SearchStartsWith, 0)
	require.Len(t, results, 2)
	assert.Equal(t, "git b", results[0])
}

func TestExpandRefLastCommand(t *testing.T) {
	s := openTemp(t, Options{})
	s.Add("echo one")
	s.Add("echo two")
	cmd, ok := s.ExpandRef("!!")
	require.True(t, ok)
	assert.Equal(t, "echo two", cmd)
}

func TestExpandRefByIndex(t *testing.T) {
	s := openTemp(t, Options{})
	s.Add("echo one")
	s.Add("echo two")
	cmd, ok := s.ExpandRef("!1")
	require.True(t, ok)
	assert.Equal(t, "echo one", cmd)
}

func TestExpandRefByPrefix(t *testing.T) {
	s := openTemp(t, Options{})
	s.Add("git status")
	s.Add("echo hi")
	s.Add("git commit")
	cmd, ok := s.ExpandRef("!git")
	require.True(t, ok)
	assert.Equal(t, "git commit", cmd)
}

func TestExpandRefUnknownPrefixFails(t *testing.T) {
	s := openTemp(t, Options{})
	s.Add("echo hi")
	_, ok := s.ExpandRef("!nomatch")
	assert.False(t, ok)
}

func TestStatsReportsCount(t *testing.T) {
	s := openTemp(t, Options{MaxEntries: 50})
	s.Add("a")
	s.Add("b")
	st := s.Stats()
	assert.Equal(t, 2, st.Count)
	assert.Equal(t, 50, st.MaxEntries)
}
