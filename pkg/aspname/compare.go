// pkg/aspname/compare.go
package aspname

import (
	"sort"
	"strings"
	"time"

	version "github.com/knqyf263/go-rpm-version"
)

// Compare orders names by package name, then version, then build time.
// Versions use rpm ordering: numeric runs compare as numbers, alpha runs
// lexically, and a numeric run beats an alpha one.
func Compare(a, b *Name) int {
	if c := strings.Compare(a.Name, b.Name); c != 0 {
		return c
	}
	if c := CompareVersions(a.Version, b.Version); c != 0 {
		return c
	}
	if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
		return c
	}
	return strings.Compare(a.Raw, b.Raw)
}

// CompareVersions compares two bare version strings
func CompareVersions(a, b string) int {
	return version.NewVersion(a).Compare(version.NewVersion(b))
}

// Latest returns the greatest name, or nil for an empty slice
func Latest(names []*Name) *Name {
	var latest *Name
	for _, n := range names {
		if latest == nil || Compare(n, latest) > 0 {
			latest = n
		}
	}
	return latest
}

// Sort orders names in place, oldest first
func Sort(names []*Name) {
	sort.SliceStable(names, func(i, j int) bool {
		return Compare(names[i], names[j]) < 0
	})
}

// IsOlderThan reports whether n was built more than age before now
func (n *Name) IsOlderThan(age time.Duration, now time.Time) bool {
	return now.Sub(n.Timestamp) > age
}
