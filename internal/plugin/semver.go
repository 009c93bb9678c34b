package plugin

import (
	"fmt"
	"strconv"
	"strings"
)

// version is a parsed major.minor.patch triple. Missing components
// default to 0, matching how most plugin manifests write "1.2"
// meaning "1.2.0".
type version struct {
	major, minor, patch int
}

func parseVersion(s string) (version, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "v")
	parts := strings.SplitN(s, ".", 3)
	var v version
	var err error
	if len(parts) > 0 && parts[0] != "" {
		if v.major, err = strconv.Atoi(parts[0]); err != nil {
			return version{}, fmt.Errorf("invalid version %q: %w", s, err)
		}
	}
	if len(parts) > 1 {
		if v.minor, err = strconv.Atoi(parts[1]); err != nil {
			return version{}, fmt.Errorf("invalid version %q: %w", s, err)
		}
	}
	if len(parts) > 2 {
		if v.patch, err = strconv.Atoi(parts[2]); err != nil {
			return version{}, fmt.Errorf("invalid version %q: %w", s, err)
		}
	}
	return v, nil
}

// compare returns -1, 0, or 1 as a is less than, equal to, or greater
// than b.
func (a version) compare(b version) int {
	if a.major != b.major {
		return cmpInt(a.major, b.major)
	}
	if a.minor != b.minor {
		return cmpInt(a.minor, b.minor)
	}
	return cmpInt(a.patch, b.patch)
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// operators recognized in a krustyVersion range constraint, per
// spec.md §9's Open Question resolution: "=", ">", ">=", "<", "<=".
// Checked longest-prefix-first so ">=" isn't mistaken for ">".
var rangeOperators = []string{">=", "<=", "=", ">", "<"}

// satisfiesRange reports whether hostVersion satisfies a constraint
// like ">=1.0.0", "=2.1.0", "<3.0.0". A bare version with no leading
// operator is treated as "=".
func satisfiesRange(hostVersion, constraint string) (bool, error) {
	constraint = strings.TrimSpace(constraint)
	if constraint == "" {
		return true, nil
	}
	op := "="
	rest := constraint
	for _, candidate := range rangeOperators {
		if strings.HasPrefix(constraint, candidate) {
			op = candidate
			rest = strings.TrimSpace(strings.TrimPrefix(constraint, candidate))
			break
		}
	}

	host, err := parseVersion(hostVersion)
	if err != nil {
		return false, err
	}
	want, err := parseVersion(rest)
	if err != nil {
		return false, err
	}

	cmp := host.compare(want)
	switch op {
	case "=":
		return cmp == 0, nil
	case ">":
		return cmp > 0, nil
	case ">=":
		return cmp >= 0, nil
	case "<":
		return cmp < 0, nil
	case "<=":
		return cmp <= 0, nil
	default:
		return false, fmt.Errorf("unsupported version range operator in %q", constraint)
	}
}
