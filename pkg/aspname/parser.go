// pkg/aspname/parser.go
package aspname

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/arc-language/aspkg/pkg/core"
)

// Parse parses an ASP file name. Directories are ignored, so a full path
// may be passed.
func Parse(filename string) (*Name, error) {
	base := filepath.Base(filename)
	stem, ext := StripExt(base)

	n := &Name{Raw: base, Ext: ext}

	if m := bracketRe.FindStringSubmatch(stem); m != nil {
		n.Bracketed = true
		n.Name = m[bracketRe.SubexpIndex("name")]
		n.Version = m[bracketRe.SubexpIndex("version")]
		n.Status = m[bracketRe.SubexpIndex("status")]
		n.Stamp = m[bracketRe.SubexpIndex("timestamp")]
		n.HostInfo = m[bracketRe.SubexpIndex("hostinfo")]
	} else if m := plainRe.FindStringSubmatch(stem); m != nil {
		n.Name = m[plainRe.SubexpIndex("name")]
		n.Version = m[plainRe.SubexpIndex("version")]
		n.Stamp = m[plainRe.SubexpIndex("timestamp")]
	} else {
		return nil, fmt.Errorf("%w: %q", core.ErrMalformedName, base)
	}

	ts, err := ParseTimestamp(n.Stamp)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", core.ErrMalformedName, base, err)
	}
	n.Timestamp = ts
	n.VersionFields = SplitVersion(n.Version)

	return n, nil
}

// MustParse is like Parse but panics on error. Intended for tests and
// constant tables.
func MustParse(filename string) *Name {
	n, err := Parse(filename)
	if err != nil {
		panic(err)
	}
	return n
}

// ParseTimestamp accepts every timestamp layout found in ASP names
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if len(layout) != len(s) {
			continue
		}
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// SplitVersion splits a version string into its alphanumeric fields
func SplitVersion(v string) []string {
	var fields []string
	for _, f := range fieldSplitRe.Split(v, -1) {
		if f != "" {
			fields = append(fields, f)
		}
	}
	return fields
}

// StripExt removes one known extension from base
func StripExt(base string) (string, string) {
	for _, ext := range Extensions {
		if strings.HasSuffix(base, ext) && len(base) > len(ext) {
			return strings.TrimSuffix(base, ext), ext
		}
	}
	return base, ""
}

// Normalize turns a path or file name into a registry key: the basename
// with a known extension removed. It does not require the name to parse.
func Normalize(name string) string {
	stem, _ := StripExt(filepath.Base(name))
	return stem
}

// ASPName returns the registry key for n
func (n *Name) ASPName() string {
	if n.Bracketed {
		return fmt.Sprintf("(%s)-(%s)-(%s)-(%s)-(%s)", n.Name, n.Version, n.Status, n.Stamp, n.HostInfo)
	}
	return fmt.Sprintf("%s-%s-%s", n.Name, n.Version, n.Stamp)
}

// Format renders n back into the file name it was parsed from
func (n *Name) Format() string {
	return n.ASPName() + n.Ext
}

func (n *Name) String() string {
	return n.ASPName()
}
