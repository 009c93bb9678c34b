package completion

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/krustyshell/krusty/internal/editor"
)

// completeCommandNames returns builtins ∪ aliases ∪ PATH executables
// matching prefix, fuzzy-ranked and with the PATH-sourced portion
// capped at cfg.BinPathMaxSuggestions.
func (c *Completer) completeCommandNames(prefix string) []editor.Suggestion {
	var out []editor.Suggestion
	for _, name := range fuzzyRank(prefix, c.cfg.Builtins()) {
		out = append(out, editor.Suggestion{Label: name, Insert: name})
	}
	for _, name := range fuzzyRank(prefix, c.cfg.Aliases()) {
		out = append(out, editor.Suggestion{Label: name, Insert: name})
	}

	path := c.pathExecutables(prefix)
	if len(path) > c.cfg.BinPathMaxSuggestions {
		path = path[:c.cfg.BinPathMaxSuggestions]
	}
	for _, name := range path {
		out = append(out, editor.Suggestion{Label: name, Insert: name})
	}
	return out
}

// pathExecutables scans every directory on $PATH for executable,
// non-directory entries whose name matches prefix, matching
// diillson-chatcli/cli.go's completeSystemCommands scan generalized
// with fuzzy ranking instead of a strict HasPrefix test.
func (c *Completer) pathExecutables(prefix string) []string {
	pathEnv := c.cfg.Getenv("PATH")
	dirs := strings.Split(pathEnv, string(os.PathListSeparator))

	seen := make(map[string]bool)
	var names []string
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		entries, err := c.cfg.FS.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() || seen[entry.Name()] {
				continue
			}
			info, err := entry.Info()
			if err != nil || info.Mode()&0o111 == 0 {
				continue
			}
			seen[entry.Name()] = true
			names = append(names, entry.Name())
		}
	}
	return fuzzyRank(prefix, names)
}

// completeFilenames returns directory entries matching prefix's final
// path segment, directories suffixed with the path separator, mirroring
// completeFilePath but fuzzy-ranked on the base name.
func (c *Completer) completeFilenames(prefix string) []editor.Suggestion {
	return c.completePaths(prefix, false)
}

// completeDirectories is completeFilenames restricted to directory
// entries only, for the `cd` builtin contract.
func (c *Completer) completeDirectories(prefix string) []editor.Suggestion {
	return c.completePaths(prefix, true)
}

func (c *Completer) completePaths(prefix string, dirsOnly bool) []editor.Suggestion {
	dir, base := filepath.Split(prefix)
	lookDir := dir
	if lookDir == "" {
		lookDir = "."
	}
	if strings.HasPrefix(lookDir, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			lookDir = filepath.Join(home, strings.TrimPrefix(lookDir, "~"))
		}
	}
	lookDir = os.ExpandEnv(lookDir)

	entries, err := c.cfg.FS.ReadDir(lookDir)
	if err != nil {
		return nil
	}

	var names []string
	isDir := make(map[string]bool)
	for _, entry := range entries {
		if dirsOnly && !entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
		isDir[entry.Name()] = entry.IsDir()
	}

	var out []editor.Suggestion
	for _, name := range fuzzyRank(base, names) {
		full := dir + name
		if isDir[name] {
			full += string(os.PathSeparator)
		}
		out = append(out, editor.Suggestion{Label: full, Insert: full})
	}
	return out
}
