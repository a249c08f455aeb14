// pkg/aspname/constants.go
package aspname

import "regexp"

// Extensions stripped from a filename before parsing. Registry entries use
// ".xz", archives use ".asp".
var Extensions = []string{".asp", ".xz"}

// Timestamp layouts, most specific first
var timestampLayouts = []string{
	"20060102.150405.000000",
	"20060102150405.000000",
	"20060102.150405",
	"20060102150405",
	"20060102",
}

var (
	// name-version-timestamp
	plainRe = regexp.MustCompile(
		`^(?P<name>[A-Za-z0-9_+][A-Za-z0-9_.+-]*?)-(?P<version>[0-9][^-]*)-(?P<timestamp>[0-9]{8}(?:\.?[0-9]{6})?(?:\.[0-9]{6})?)$`,
	)

	// (name)-(version)-(status)-(timestamp)-(hostinfo)
	bracketRe = regexp.MustCompile(
		`^\((?P<name>[^()]+)\)-\((?P<version>[^()]+)\)-\((?P<status>[^()]*)\)-\((?P<timestamp>[0-9.]+)\)-\((?P<hostinfo>[^()]+)\)$`,
	)

	fieldSplitRe = regexp.MustCompile(`[^A-Za-z0-9]+`)
)
