package expand

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// Caches holds the three bounded LRU caches spec §4.B calls for: split
// results for repeated unquoted word splits, resolved PATH lookups, and
// parsed arithmetic ASTs. Sized independently so a busy prompt loop
// doesn't evict PATH lookups to make room for one-off splits.
type Caches struct {
	splits *lru.Cache[string, []string]
	paths  *lru.Cache[string, string]
	arith  *lru.Cache[string, arithNode]
}

// CacheSizes configures the three LRU caches' max entry counts. Zero
// values fall back to DefaultCacheSizes.
type CacheSizes struct {
	Splits int
	Paths  int
	Arith  int
}

// DefaultCacheSizes matches spec §4.B's suggested defaults: generous
// enough for an interactive session's working set without growing
// unbounded over a long-lived shell.
var DefaultCacheSizes = CacheSizes{Splits: 256, Paths: 128, Arith: 128}

// NewCaches builds the three bounded caches, applying DefaultCacheSizes
// for any zero field in sizes.
func NewCaches(sizes CacheSizes) (*Caches, error) {
	if sizes.Splits <= 0 {
		sizes.Splits = DefaultCacheSizes.Splits
	}
	if sizes.Paths <= 0 {
		sizes.Paths = DefaultCacheSizes.Paths
	}
	if sizes.Arith <= 0 {
		sizes.Arith = DefaultCacheSizes.Arith
	}
	splits, err := lru.New[string, []string](sizes.Splits)
	if err != nil {
		return nil, err
	}
	paths, err := lru.New[string, string](sizes.Paths)
	if err != nil {
		return nil, err
	}
	arith, err := lru.New[string, arithNode](sizes.Arith)
	if err != nil {
		return nil, err
	}
	return &Caches{splits: splits, paths: paths, arith: arith}, nil
}

func (c *Caches) splitWord(ifs, text string) []string {
	key := ifs + "\x00" + text
	if v, ok := c.splits.Get(key); ok {
		return v
	}
	v := splitIFS(text, ifs)
	c.splits.Add(key, v)
	return v
}

func (c *Caches) resolvePath(path, name string) (string, bool) {
	key := path + "\x00" + name
	if v, ok := c.paths.Get(key); ok {
		return v, v != ""
	}
	resolved, ok := lookPath(path, name)
	if ok {
		c.paths.Add(key, resolved)
	} else {
		c.paths.Add(key, "")
	}
	return resolved, ok
}

func (c *Caches) parseArithCached(expr string) (arithNode, error) {
	if v, ok := c.arith.Get(expr); ok {
		return v, nil
	}
	node, err := parseArith(expr)
	if err != nil {
		return nil, err
	}
	c.arith.Add(expr, node)
	return node, nil
}
